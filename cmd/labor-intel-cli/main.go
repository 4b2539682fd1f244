// Package main provides the labor-intel CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/atlasworkforce/labor-intel/internal/cache"
	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/dataset"
	"github.com/atlasworkforce/labor-intel/internal/narrate"
	"github.com/atlasworkforce/labor-intel/internal/observability"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
	"github.com/atlasworkforce/labor-intel/internal/retrieval"
	"github.com/atlasworkforce/labor-intel/internal/routing"
	"github.com/atlasworkforce/labor-intel/internal/semantic"
	"github.com/atlasworkforce/labor-intel/internal/storage"
	"github.com/atlasworkforce/labor-intel/pkg/engine"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "labor-intel",
	Short: "Labor market analytics over the occupation/industry task dataset",
	Long: `labor-intel answers natural-language questions about the workforce
task dataset.

Use this tool to:
- Ask one-shot questions or hold an interactive session
- Inspect the loaded dataset and its columns
- List task categories and test category detection
- Review query history and arithmetic discrepancies

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := cfg.Observability.LogFormat
		level := cfg.Observability.LogLevel
		if outputJSON {
			logFormat = "json"
		}
		if verbose {
			level = "debug"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      logFormat,
			ServiceName: "labor-intel-cli",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults + env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newDatasetCmd())
	rootCmd.AddCommand(newCategoriesCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired pipeline and its closers.
type app struct {
	engine  *engine.Engine
	service *retrieval.Service
	store   *patterns.Store
	audit   *storage.AuditStore
	closers []func() error
}

// Close releases database and cache handles.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}
}

// buildApp wires the full pipeline from configuration. Optional stages
// (semantic search, narration, audit store, cache) degrade to nil with a
// warning instead of failing startup.
func buildApp(ctx context.Context, withIndex bool) (*app, error) {
	a := &app{}

	sp := NewSpinner("Loading dataset " + cfg.Dataset.Path)
	sp.Start()
	table, err := dataset.LoadCSV(cfg.Dataset.Path)
	sp.Stop()
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	logger.Info().Int("rows", table.Len()).Msg("dataset loaded")

	a.store = patterns.LoadStore(cfg.Patterns.Path, logger)
	matcher := patterns.NewMatcher(a.store, logger)
	router := routing.NewRouter(cfg.Routing, cfg.Search, matcher, logger)

	var searcher semantic.Searcher
	if withIndex {
		embedder, err := semantic.NewClient(cfg.Embedding)
		if err != nil {
			logger.Warn().Err(err).Msg("embedding client unavailable, semantic search disabled")
		} else {
			sp = NewSpinner(fmt.Sprintf("Indexing %d task rows", table.Len()))
			sp.Start()
			index, err := semantic.BuildIndex(ctx, table, embedder, logger)
			sp.Stop()
			if err != nil {
				logger.Warn().Err(err).Msg("index build failed, semantic search disabled")
			} else {
				searcher = semantic.NewVectorSearcher(embedder, index, logger)
			}
		}
	}

	a.service = retrieval.NewService(table, router, matcher, searcher, cfg, logger)

	var narrator narrate.Narrator
	if client, err := narrate.NewClient(cfg.Narration); err != nil {
		logger.Warn().Err(err).Msg("narration client unavailable, answers degrade to computed figures")
	} else {
		narrator = client
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("audit store unavailable, history disabled")
	} else {
		a.audit = storage.NewAuditStore(db)
		a.closers = append(a.closers, db.Close)
	}

	cacheClient, err := cache.Open(cfg.Cache)
	if err != nil {
		logger.Warn().Err(err).Msg("cache unavailable, queries run uncached")
		cacheClient = nil
	} else {
		a.closers = append(a.closers, cacheClient.Close)
	}

	a.engine = engine.New(a.service, narrator, a.audit, cacheClient, cfg, logger)
	return a, nil
}

// openAudit opens just the audit store, for history commands that do not
// need the full pipeline.
func openAudit() (*storage.AuditStore, func() error, error) {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit database: %w", err)
	}
	return storage.NewAuditStore(db), db.Close, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the labor-intel version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("labor-intel v0.3.0")
		},
	}
}
