// Package retrieval orchestrates hybrid retrieval: routing, semantic
// search, and the computational pass over the labor dataset.
package retrieval

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/atlasworkforce/labor-intel/internal/aggregate"
	"github.com/atlasworkforce/labor-intel/internal/arithmetic"
	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/dataset"
	"github.com/atlasworkforce/labor-intel/internal/observability"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
	"github.com/atlasworkforce/labor-intel/internal/routing"
	"github.com/atlasworkforce/labor-intel/internal/semantic"
)

// Result is everything one retrieval pass produced for a query.
type Result struct {
	Query         string
	Decision      routing.Decision
	SemanticHits  []semantic.Result
	Computational *aggregate.Results
	Validator     *arithmetic.Validator
	FilteredRows  int
	LatencyMS     int64
}

// Service runs the retrieval pipeline. A detected category materializes a
// filtered table that is reused for follow-up queries until ClearScope.
type Service struct {
	log      *observability.Logger
	router   *routing.Router
	matcher  *patterns.Matcher
	table    *dataset.Table
	searcher semantic.Searcher
	tol      config.TolerancesConfig
	savings  float64

	mu            sync.Mutex
	scoped        *dataset.Table
	scopeCategory string
}

// NewService creates the retrieval service. The searcher may be nil, in
// which case semantic search is skipped.
func NewService(
	table *dataset.Table,
	router *routing.Router,
	matcher *patterns.Matcher,
	searcher semantic.Searcher,
	cfg *config.Config,
	log *observability.Logger,
) *Service {
	if log == nil {
		log = observability.DefaultLogger()
	}
	savings := cfg.Analysis.SavingsFraction
	if savings <= 0 || savings > 1 {
		savings = 0.4
	}
	return &Service{
		log:      log,
		router:   router,
		matcher:  matcher,
		table:    table,
		searcher: searcher,
		tol:      cfg.Analysis.Tolerances,
		savings:  savings,
	}
}

// Table returns the full dataset table.
func (s *Service) Table() *dataset.Table {
	return s.table
}

// ClearScope drops the session-scoped filtered table.
func (s *Service) ClearScope() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoped = nil
	s.scopeCategory = ""
}

// ScopeCategory returns the category of the active scoped table, if any.
func (s *Service) ScopeCategory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scopeCategory
}

// RouteAndExecute routes one query and runs the planned retrieval. A fresh
// validator ledger backs the computational pass so every figure the
// narration will cite has recorded ground truth.
func (s *Service) RouteAndExecute(ctx context.Context, query string) (*Result, error) {
	start := time.Now()

	decision := s.router.Route(query)
	validator := arithmetic.NewValidator(s.tol, s.log)
	res := &Result{
		Query:     query,
		Decision:  decision,
		Validator: validator,
	}

	log := s.log.WithQuery(query)
	log.Debug().
		Str("intent", string(decision.Intent)).
		Str("category", decision.Params.Category).
		Int("k_results", decision.Strategy.KResults).
		Msg("executing retrieval plan")

	if decision.Strategy.UseVectorSearch && s.searcher != nil {
		hits, err := s.searcher.Search(ctx, query, decision.Strategy.KResults)
		if err != nil {
			// Degrade to computational-only rather than failing the query.
			log.Warn().Err(err).Msg("semantic search failed, continuing without it")
			hits = nil
		}
		res.SemanticHits = hits
	}

	if decision.Strategy.UseAggregations || decision.Strategy.UseFiltering {
		res.Computational = s.compute(decision, res.SemanticHits, validator, &res.FilteredRows)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.LatencyMS = time.Since(start).Milliseconds()
	log.Info().
		Str("intent", string(decision.Intent)).
		Int("semantic_hits", len(res.SemanticHits)).
		Bool("computed", !res.Computational.Empty()).
		Int64("latency_ms", res.LatencyMS).
		Msg("retrieval complete")
	return res, nil
}

// compute runs the aggregation dispatch for one decision. Semantic hits
// narrow the working table to the retrieved rows; otherwise the
// session-scoped table (or the full one) is used.
func (s *Service) compute(
	d routing.Decision,
	hits []semantic.Result,
	validator *arithmetic.Validator,
	filteredRows *int,
) *aggregate.Results {
	sub := s.workingTable(d.Params.Category)
	if idx := rowIndexes(hits); len(idx) > 0 {
		sub = s.table.Filter(idx)
	}
	*filteredRows = sub.Len()

	eng := aggregate.NewEngine(sub, validator, s.matcher, s.log)

	generic := &aggregate.Results{}
	switch d.Params.Aggregation {
	case routing.AggCount:
		generic.Counts = eng.Counts()
	case routing.AggSum:
		generic.Totals = eng.Totals()
	case routing.AggAverage:
		generic.Averages = eng.Averages()
		generic.Time = eng.TimeStats()
		generic.Wages = eng.WageStats()
	case routing.AggPercentage:
		generic.Percentages = s.datasetShare(sub, validator)
	}

	grouped := &aggregate.Results{}
	switch d.Params.GroupBy {
	case routing.GroupByOccupation:
		grouped.Occupations = eng.OccupationSummaries()
		if d.Params.TopN > 0 {
			grouped.Occupations = aggregate.TopN(grouped.Occupations, d.Params.TopN)
		}
	case routing.GroupByIndustry:
		if d.Params.Aggregation == routing.AggPercentage && d.Params.Category != "" {
			grouped.Proportions = eng.IndustryProportions(d.Params.Category)
			if d.Params.TopN > 0 {
				grouped.Proportions = aggregate.TopN(grouped.Proportions, d.Params.TopN)
			}
		} else {
			grouped.Industries = eng.IndustrySummaries()
			if d.Params.TopN > 0 {
				grouped.Industries = aggregate.TopN(grouped.Industries, d.Params.TopN)
			}
		}
	}

	specific := &aggregate.Results{}
	if d.Params.TaskQuery {
		specific.Tasks = eng.TaskDetails(d.Params.Category, 0, 0)
	}

	// Occupation questions rank over the full dataset. A semantically
	// narrowed subset would hide occupations the pattern should surface.
	if d.Params.OccupationQuery && d.Params.Category != "" {
		fullEng := aggregate.NewEngine(s.table, validator, s.matcher, s.log)
		specific.PatternAnalysis = fullEng.PatternOccupationAnalysis(d.Params.Category)
	}

	if d.Params.Category != "" && wantsSavings(d.Query) {
		fullEng := aggregate.NewEngine(s.table, validator, s.matcher, s.log)
		fraction := aggregate.SavingsFractionFromQuery(d.Query, s.savings)
		specific.Savings = fullEng.Savings(d.Params.Category, fraction)
	}

	return aggregate.Merge(&aggregate.Results{}, generic, grouped, specific)
}

// workingTable returns the table the computational pass should run over.
// A category materializes and stores a filtered table; later queries with
// no category of their own keep using it.
func (s *Service) workingTable(category string) *dataset.Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category != "" {
		if s.scopeCategory != category {
			eng := aggregate.NewEngine(s.table, arithmetic.NewValidator(s.tol, s.log), s.matcher, s.log)
			s.scoped = eng.MatchingTable(category)
			s.scopeCategory = category
			s.log.Debug().
				Str("category", category).
				Int("rows", s.scoped.Len()).
				Msg("materialized scoped table")
		}
		return s.scoped
	}
	if s.scoped != nil {
		return s.scoped
	}
	return s.table
}

// datasetShare reports the working rows as a share of the full dataset.
func (s *Service) datasetShare(sub *dataset.Table, validator *arithmetic.Validator) map[string]float64 {
	if s.table.Len() == 0 {
		return nil
	}
	pct := validator.Percentage(float64(sub.Len()), float64(s.table.Len()), "share of dataset")
	return map[string]float64{"percentage_of_dataset": pct.Value}
}

func rowIndexes(hits []semantic.Result) []int {
	idx := make([]int, 0, len(hits))
	for _, hit := range hits {
		if hit.RowIndex >= 0 {
			idx = append(idx, hit.RowIndex)
		}
	}
	return idx
}

func wantsSavings(query string) bool {
	lower := strings.ToLower(query)
	for _, marker := range []string{"saving", "saved", "save", "automat"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
