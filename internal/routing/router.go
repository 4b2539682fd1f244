// Package routing classifies user queries and plans their execution.
//
// A query is scored against computational and semantic keyword lists, its
// parameters (top-N, aggregation kind, grouping, export flags) are
// extracted with independent best-effort rules, and the resulting intent is
// mapped to an execution strategy. No extraction failure is fatal; absent
// signals simply leave fields unset.
package routing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/observability"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
)

// Intent is the query's classified execution intent.
type Intent string

// Query intents.
const (
	IntentSemantic      Intent = "semantic"
	IntentComputational Intent = "computational"
	IntentHybrid        Intent = "hybrid"
)

// AggKind names a requested aggregation.
type AggKind string

// Aggregation kinds extracted from query phrasing.
const (
	AggCount      AggKind = "count"
	AggSum        AggKind = "sum"
	AggAverage    AggKind = "average"
	AggPercentage AggKind = "percentage"
)

// GroupBy names a requested reporting dimension.
type GroupBy string

// Grouping dimensions.
const (
	GroupByIndustry   GroupBy = "industry"
	GroupByOccupation GroupBy = "occupation"
)

// Params are the signals extracted from one query.
type Params struct {
	TopN            int
	Aggregation     AggKind
	GroupBy         GroupBy
	Category        string
	CategoryScore   float64
	Comparison      bool
	ExportCSV       bool
	TaskQuery       bool
	OccupationQuery bool
	CompScore       int
	SemScore        int
}

// Strategy is the execution plan for a classified query.
type Strategy struct {
	UseVectorSearch bool
	UseAggregations bool
	UseFiltering    bool
	NeedsNarration  bool
	KResults        int
}

// Decision bundles everything the pipeline needs to execute a query.
type Decision struct {
	Query    string
	Intent   Intent
	Params   Params
	Strategy Strategy
}

var topNPatterns = []*regexp.Regexp{
	regexp.MustCompile(`top\s+(\d+)`),
	regexp.MustCompile(`top-(\d+)`),
	regexp.MustCompile(`(\d+)\s+most`),
	regexp.MustCompile(`(\d+)\s+highest`),
	regexp.MustCompile(`(\d+)\s+largest`),
	regexp.MustCompile(`first\s+(\d+)`),
}

var taskIndicators = []string{
	"specific tasks", "what tasks", "which tasks", "tasks that",
	"tasks involve", "task descriptions", "list of tasks", "list tasks",
}

var occupationIndicators = []string{
	"what jobs", "which jobs", "what occupations", "which occupations",
	"list jobs", "list occupations", "jobs that", "occupations that",
}

// Router classifies queries against the configured keyword lists.
type Router struct {
	routing config.RoutingConfig
	search  config.SearchConfig
	matcher *patterns.Matcher
	log     *observability.Logger
}

// NewRouter creates a Router. The matcher may be nil, in which case no
// category detection happens. Unset config fields take their defaults one
// field at a time; supplied keyword lists are kept as given.
func NewRouter(routing config.RoutingConfig, search config.SearchConfig, matcher *patterns.Matcher, log *observability.Logger) *Router {
	if log == nil {
		log = observability.DefaultLogger()
	}
	def := config.DefaultConfig()
	if len(routing.ComputationalKeywords) == 0 {
		routing.ComputationalKeywords = def.Routing.ComputationalKeywords
	}
	if len(routing.SemanticKeywords) == 0 {
		routing.SemanticKeywords = def.Routing.SemanticKeywords
	}
	if routing.DefaultTopK == 0 {
		routing.DefaultTopK = def.Routing.DefaultTopK
	}
	if routing.MaxTopK == 0 {
		routing.MaxTopK = def.Routing.MaxTopK
	}
	if search.TaskDetailResults == 0 {
		search.TaskDetailResults = def.Search.TaskDetailResults
	}
	if search.FilteredResults == 0 {
		search.FilteredResults = def.Search.FilteredResults
	}
	return &Router{routing: routing, search: search, matcher: matcher, log: log}
}

// Classify scores the query and extracts its parameters. Task-detail
// indicators force semantic intent regardless of keyword scores.
func (r *Router) Classify(query string) (Intent, Params) {
	queryLower := strings.ToLower(query)

	params := r.extractParams(queryLower)
	params.CompScore = countKeywords(queryLower, r.routing.ComputationalKeywords)
	params.SemScore = countKeywords(queryLower, r.routing.SemanticKeywords)

	if r.matcher != nil {
		if det := r.matcher.DetectCategory(query); det.Detected() {
			params.Category = det.Category
			params.CategoryScore = det.Score
		}
	}

	var intent Intent
	switch {
	case params.TaskQuery:
		// Task-detail queries need raw task text, not aggregates.
		intent = IntentSemantic
	case params.CompScore > 0 && params.SemScore > 0:
		intent = IntentHybrid
	case params.CompScore > params.SemScore:
		intent = IntentComputational
	case params.SemScore > 0:
		intent = IntentSemantic
	default:
		intent = IntentHybrid
	}

	r.log.Info().
		Str("intent", string(intent)).
		Int("comp_score", params.CompScore).
		Int("sem_score", params.SemScore).
		Str("category", params.Category).
		Bool("task_query", params.TaskQuery).
		Msg("classified query")

	return intent, params
}

func (r *Router) extractParams(queryLower string) Params {
	var params Params

	for _, re := range topNPatterns {
		if m := re.FindStringSubmatch(queryLower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				if n > r.routing.MaxTopK {
					n = r.routing.MaxTopK
				}
				params.TopN = n
			}
			break
		}
	}

	switch {
	case strings.Contains(queryLower, "count") || strings.Contains(queryLower, "how many"):
		params.Aggregation = AggCount
	case strings.Contains(queryLower, "total") || strings.Contains(queryLower, "sum"):
		params.Aggregation = AggSum
	case strings.Contains(queryLower, "average") || strings.Contains(queryLower, "mean"):
		params.Aggregation = AggAverage
	case strings.Contains(queryLower, "percentage") || strings.Contains(queryLower, "proportion"):
		params.Aggregation = AggPercentage
	}

	if strings.Contains(queryLower, "compare") || strings.Contains(queryLower, "vs") || strings.Contains(queryLower, "versus") {
		params.Comparison = true
	}

	switch {
	case strings.Contains(queryLower, "by industry") || strings.Contains(queryLower, "per industry"):
		params.GroupBy = GroupByIndustry
	case strings.Contains(queryLower, "by occupation") || strings.Contains(queryLower, "per occupation"):
		params.GroupBy = GroupByOccupation
	}

	if strings.Contains(queryLower, "csv") || strings.Contains(queryLower, "export") || strings.Contains(queryLower, "download") {
		params.ExportCSV = true
	}

	for _, indicator := range taskIndicators {
		if strings.Contains(queryLower, indicator) {
			params.TaskQuery = true
			break
		}
	}

	for _, indicator := range occupationIndicators {
		if strings.Contains(queryLower, indicator) {
			params.OccupationQuery = true
			break
		}
	}

	return params
}

// BuildStrategy maps an intent and its parameters to an execution plan.
// Narration is always required.
func (r *Router) BuildStrategy(intent Intent, params Params) Strategy {
	s := Strategy{NeedsNarration: true, KResults: r.routing.DefaultTopK}

	switch intent {
	case IntentSemantic:
		s.UseVectorSearch = true
		if params.TaskQuery {
			// The de-duplicated task listing comes out of the
			// computational pass, so task queries run it too.
			s.UseFiltering = true
			s.KResults = r.search.TaskDetailResults
		} else if params.TopN > 0 {
			s.KResults = params.TopN
		}
	case IntentComputational:
		s.UseAggregations = true
		s.UseFiltering = true
		if params.Category != "" {
			s.UseVectorSearch = true
			s.KResults = r.search.FilteredResults
		}
	case IntentHybrid:
		s.UseVectorSearch = true
		s.UseAggregations = true
		s.UseFiltering = true
		if params.TopN > 0 {
			s.KResults = params.TopN
		} else {
			s.KResults = r.routing.DefaultTopK * 2
		}
	}

	return s
}

// Route classifies the query and plans its execution in one call.
func (r *Router) Route(query string) Decision {
	intent, params := r.Classify(query)
	strategy := r.BuildStrategy(intent, params)

	r.log.Info().
		Str("intent", string(intent)).
		Bool("vector", strategy.UseVectorSearch).
		Bool("aggregations", strategy.UseAggregations).
		Int("k", strategy.KResults).
		Msg("routed query")

	return Decision{Query: query, Intent: intent, Params: params, Strategy: strategy}
}

func countKeywords(queryLower string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(queryLower, kw) {
			count++
		}
	}
	return count
}
