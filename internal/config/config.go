// Package config provides unified configuration loading for the labor
// intelligence engine. Supports YAML files, environment variables, and
// programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Dataset       DatasetConfig       `yaml:"dataset"`
	Patterns      PatternsConfig      `yaml:"patterns"`
	Routing       RoutingConfig       `yaml:"routing"`
	Search        SearchConfig        `yaml:"search"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Narration     NarrationConfig     `yaml:"narration"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds audit database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// DatasetConfig locates the workforce dataset.
type DatasetConfig struct {
	Path string `yaml:"path"`
}

// PatternsConfig locates the task category pattern definitions.
type PatternsConfig struct {
	Path          string  `yaml:"path"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// RoutingConfig holds query classification settings.
type RoutingConfig struct {
	ComputationalKeywords []string `yaml:"computational_keywords"`
	SemanticKeywords      []string `yaml:"semantic_keywords"`
	DefaultTopK           int      `yaml:"default_top_k"`
	MaxTopK               int      `yaml:"max_top_k"`
}

// SearchConfig holds semantic search settings.
type SearchConfig struct {
	TaskDetailResults int  `yaml:"task_detail_results"`
	FilteredResults   int  `yaml:"filtered_results"`
	CacheResults      bool `yaml:"cache_results"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// NarrationConfig holds language-model narration settings.
type NarrationConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AnalysisConfig holds numeric analysis settings.
type AnalysisConfig struct {
	SavingsFraction float64          `yaml:"savings_fraction"`
	Tolerances      TolerancesConfig `yaml:"tolerances"`
}

// TolerancesConfig holds discrepancy classification thresholds, expressed
// as percentages of the computed value.
type TolerancesConfig struct {
	ExactMatch             float64 `yaml:"exact_match"`
	Minor                  float64 `yaml:"minor"`
	Major                  float64 `yaml:"major"`
	Critical               float64 `yaml:"critical"`
	CorrespondenceBallpark float64 `yaml:"correspondence_ballpark"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		// Relative paths in a config file are resolved against the file's
		// own directory, not the working directory.
		cfg.Dataset.Path = ResolveRelativePath(path, cfg.Dataset.Path)
		cfg.Patterns.Path = ResolveRelativePath(path, cfg.Patterns.Path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "/tmp/labor-intel.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        15 * time.Minute,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Dataset: DatasetConfig{
			Path: "data/labor_dataset.csv",
		},
		Patterns: PatternsConfig{
			Path:          "configs/task_patterns.yaml",
			MinConfidence: 0.7,
		},
		Routing: RoutingConfig{
			ComputationalKeywords: []string{
				"count", "total", "how many", "sum", "average", "top",
				"rank", "percentage", "proportion", "compare", "most",
				"least", "group by",
			},
			SemanticKeywords: []string{
				"similar", "like", "related", "explain", "describe",
				"what is", "tell me about", "difference between",
				"comparison",
			},
			DefaultTopK: 10,
			MaxTopK:     50,
		},
		Search: SearchConfig{
			TaskDetailResults: 30,
			FilteredResults:   50,
			CacheResults:      true,
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			APIKeyEnv: "OPENROUTER_API_KEY",
			Model:     "qwen/qwen3-embedding-8b",
			Dimension: 768,
			BatchSize: 100,
			Timeout:   30 * time.Second,
		},
		Narration: NarrationConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			APIKeyEnv:   "OPENROUTER_API_KEY",
			Model:       "openai/gpt-4o-mini",
			MaxTokens:   1500,
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Analysis: AnalysisConfig{
			SavingsFraction: 0.4,
			Tolerances: TolerancesConfig{
				ExactMatch:             0.01,
				Minor:                  0.1,
				Major:                  1.0,
				Critical:               5.0,
				CorrespondenceBallpark: 50.0,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "debug",
			LogFormat:   "json",
			ServiceName: "labor-intel",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Patterns.MinConfidence < 0 || c.Patterns.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be between 0 and 1")
	}

	if c.Routing.DefaultTopK < 1 || c.Routing.DefaultTopK > c.Routing.MaxTopK {
		return fmt.Errorf("default_top_k must be between 1 and max_top_k")
	}

	if c.Analysis.SavingsFraction < 0 || c.Analysis.SavingsFraction > 1 {
		return fmt.Errorf("savings_fraction must be between 0 and 1")
	}

	t := c.Analysis.Tolerances
	if t.Minor > t.Major || t.Major > t.Critical {
		return fmt.Errorf("tolerance tiers must be ordered minor <= major <= critical")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Database.Driver == "sqlite"
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("DATASET_PATH"); v != "" {
		cfg.Dataset.Path = v
	}

	if v := os.Getenv("TASK_PATTERNS_PATH"); v != "" {
		cfg.Patterns.Path = v
	}

	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if v := os.Getenv("NARRATION_MODEL"); v != "" {
		cfg.Narration.Model = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
