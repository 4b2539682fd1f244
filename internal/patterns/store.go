// Package patterns provides configuration-driven task category matching.
//
// Categories are defined in a YAML file as tiered lists of action verbs and
// object keywords. The matcher scores user queries against category
// signatures and filters task descriptions by category membership.
package patterns

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/atlasworkforce/labor-intel/internal/observability"
)

// DefaultMinConfidence applies when a category does not set its own
// matching threshold.
const DefaultMinConfidence = 0.7

// TierList holds tiered term lists for one pattern dimension.
type TierList struct {
	Primary   []string `yaml:"primary"`
	Secondary []string `yaml:"secondary"`
	Exclude   []string `yaml:"exclude"`
}

// All returns primary and secondary terms, skipping any that are also
// listed in Exclude.
func (t TierList) All() []string {
	excluded := make(map[string]bool, len(t.Exclude))
	for _, term := range t.Exclude {
		excluded[term] = true
	}
	out := make([]string, 0, len(t.Primary)+len(t.Secondary))
	for _, term := range append(append([]string{}, t.Primary...), t.Secondary...) {
		if !excluded[term] {
			out = append(out, term)
		}
	}
	return out
}

// MatchingConfig holds per-category matching settings.
type MatchingConfig struct {
	Strategy      string  `yaml:"strategy"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// Category is one task category definition.
type Category struct {
	Name           string         `yaml:"-"`
	DisplayName    string         `yaml:"display_name"`
	Description    string         `yaml:"description"`
	ActionVerbs    TierList       `yaml:"action_verbs"`
	ObjectKeywords TierList       `yaml:"object_keywords"`
	Matching       MatchingConfig `yaml:"matching"`
}

// Strategy returns the category's matching strategy, defaulting to
// verb_object.
func (c *Category) Strategy() string {
	if c.Matching.Strategy == "" {
		return StrategyVerbObject
	}
	return c.Matching.Strategy
}

// MinConfidence returns the category's confidence threshold.
func (c *Category) MinConfidence() float64 {
	if c.Matching.MinConfidence == 0 {
		return DefaultMinConfidence
	}
	return c.Matching.MinConfidence
}

type storeFile struct {
	TaskCategories map[string]*Category `yaml:"task_categories"`
}

// Store holds the loaded category definitions.
type Store struct {
	mu         sync.RWMutex
	categories map[string]*Category
	log        *observability.Logger
}

// LoadStore reads category definitions from a YAML file. Load failures
// degrade to an empty store so that callers keep working with semantic
// search only.
func LoadStore(path string, log *observability.Logger) *Store {
	if log == nil {
		log = observability.DefaultLogger()
	}
	s := &Store{categories: make(map[string]*Category), log: log}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("task patterns unavailable, matching disabled")
		return s
	}

	var file storeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("task patterns unparsable, matching disabled")
		return s
	}

	for name, cat := range file.TaskCategories {
		if cat == nil {
			continue
		}
		cat.Name = name
		if cat.DisplayName == "" {
			cat.DisplayName = name
		}
		s.categories[name] = cat
	}

	log.Info().Int("categories", len(s.categories)).Str("path", path).Msg("loaded task categories")
	return s
}

// NewStore builds a store from in-memory definitions, used by tests and
// programmatic registration.
func NewStore(categories []*Category, log *observability.Logger) *Store {
	if log == nil {
		log = observability.DefaultLogger()
	}
	s := &Store{categories: make(map[string]*Category, len(categories)), log: log}
	for _, cat := range categories {
		if cat == nil || cat.Name == "" {
			continue
		}
		if cat.DisplayName == "" {
			cat.DisplayName = cat.Name
		}
		s.categories[cat.Name] = cat
	}
	return s
}

// Get returns a category by name.
func (s *Store) Get(name string) (*Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cat, ok := s.categories[name]
	return cat, ok
}

// Register adds or replaces a category definition at runtime.
func (s *Store) Register(cat *Category) error {
	if cat == nil || cat.Name == "" {
		return fmt.Errorf("category name is required")
	}
	if cat.DisplayName == "" {
		cat.DisplayName = cat.Name
	}
	s.mu.Lock()
	s.categories[cat.Name] = cat
	s.mu.Unlock()
	s.log.Info().Str("category", cat.Name).Msg("registered task category")
	return nil
}

// Names returns all category names sorted alphabetically.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.categories))
	for name := range s.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all categories sorted by name.
func (s *Store) List() []*Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Category, 0, len(s.categories))
	for _, cat := range s.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of loaded categories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories)
}
