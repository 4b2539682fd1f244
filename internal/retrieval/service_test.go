package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/dataset"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
	"github.com/atlasworkforce/labor-intel/internal/routing"
	"github.com/atlasworkforce/labor-intel/internal/semantic"
)

type stubSearcher struct {
	hits []semantic.Result
	err  error
	k    int
}

func (s *stubSearcher) Search(ctx context.Context, query string, k int) ([]semantic.Result, error) {
	s.k = k
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func wage(v float64) *float64 { return &v }

func testTable() *dataset.Table {
	return dataset.NewTable([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft financial reports", Employment: 100, Wage: wage(40), HoursPerWeek: 10},
		{Occupation: "Accountants", Industry: "Finance", Task: "Audit accounts", Employment: 100, Wage: wage(40), HoursPerWeek: 5},
		{Occupation: "Paralegals", Industry: "Legal", Task: "Draft legal documents", Employment: 50, Wage: wage(25), HoursPerWeek: 8},
		{Occupation: "Machinists", Industry: "Manufacturing", Task: "Operate lathes", Employment: 80, Wage: wage(30), HoursPerWeek: 20},
	})
}

func testMatcher() *patterns.Matcher {
	store := patterns.NewStore([]*patterns.Category{{
		Name:        "document_creation",
		DisplayName: "Document Creation",
		ActionVerbs: patterns.TierList{
			Primary: []string{"write", "draft", "prepare"},
			Exclude: []string{"read", "review"},
		},
		ObjectKeywords: patterns.TierList{
			Primary: []string{"report", "document", "memo"},
		},
		Matching: patterns.MatchingConfig{
			Strategy:      patterns.StrategyVerbObject,
			MinConfidence: 0.5,
		},
	}}, nil)
	return patterns.NewMatcher(store, nil)
}

func newTestService(searcher semantic.Searcher) *Service {
	cfg := config.DefaultConfig()
	matcher := testMatcher()
	router := routing.NewRouter(cfg.Routing, cfg.Search, matcher, nil)
	return NewService(testTable(), router, matcher, searcher, cfg, nil)
}

func TestRouteAndExecuteComputational(t *testing.T) {
	s := newTestService(nil)

	res, err := s.RouteAndExecute(context.Background(), "How many occupations draft reports?")
	require.NoError(t, err)

	assert.Equal(t, routing.IntentComputational, res.Decision.Intent)
	assert.Equal(t, "document_creation", res.Decision.Params.Category)
	require.NotNil(t, res.Computational)
	// scoped to the two drafting rows: 2 occupations
	assert.InDelta(t, 2, res.Computational.Counts["occupations"], 1e-9)
	assert.Empty(t, res.SemanticHits)
	assert.NotNil(t, res.Validator)
}

func TestScopedTableReusedAcrossQueries(t *testing.T) {
	s := newTestService(nil)

	_, err := s.RouteAndExecute(context.Background(), "How many occupations draft reports?")
	require.NoError(t, err)
	require.Equal(t, "document_creation", s.ScopeCategory())

	// No category of its own, so the drafting scope still applies.
	res, err := s.RouteAndExecute(context.Background(), "sum the employment figures")
	require.NoError(t, err)
	require.NotNil(t, res.Computational)
	assert.InDelta(t, 150, res.Computational.Totals["total_employment"], 1e-9)

	s.ClearScope()
	assert.Empty(t, s.ScopeCategory())

	res, err = s.RouteAndExecute(context.Background(), "sum the employment figures")
	require.NoError(t, err)
	assert.InDelta(t, 230, res.Computational.Totals["total_employment"], 1e-9)
}

func TestSemanticHitsNarrowComputation(t *testing.T) {
	searcher := &stubSearcher{hits: []semantic.Result{
		{Text: "Machinists | Manufacturing | Operate lathes", Score: 0.9, RowIndex: 3},
	}}
	s := newTestService(searcher)

	res, err := s.RouteAndExecute(context.Background(), "Tell me about the total employment for machine work")
	require.NoError(t, err)

	assert.Equal(t, routing.IntentHybrid, res.Decision.Intent)
	require.Len(t, res.SemanticHits, 1)
	assert.Equal(t, 1, res.FilteredRows)
	assert.InDelta(t, 80, res.Computational.Totals["total_employment"], 1e-9)
}

func TestSemanticFailureDegrades(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("index unavailable")}
	s := newTestService(searcher)

	res, err := s.RouteAndExecute(context.Background(), "Tell me about the total employment in finance")
	require.NoError(t, err)

	assert.Empty(t, res.SemanticHits)
	require.NotNil(t, res.Computational)
	assert.InDelta(t, 230, res.Computational.Totals["total_employment"], 1e-9)
}

func TestOccupationQueryRanksOverFullTable(t *testing.T) {
	// Semantic hits narrow the subset, but the pattern ranking must still
	// see every occupation.
	searcher := &stubSearcher{hits: []semantic.Result{
		{Text: "Accountants | Finance | Draft financial reports", Score: 0.95, RowIndex: 0},
	}}
	s := newTestService(searcher)

	res, err := s.RouteAndExecute(context.Background(), "Which occupations draft the most reports?")
	require.NoError(t, err)

	require.NotNil(t, res.Computational)
	require.Len(t, res.Computational.PatternAnalysis, 2)
	occupations := []string{
		res.Computational.PatternAnalysis[0].Occupation,
		res.Computational.PatternAnalysis[1].Occupation,
	}
	assert.Contains(t, occupations, "Paralegals")
}

func TestTaskQueryProducesTaskDetails(t *testing.T) {
	s := newTestService(nil)

	res, err := s.RouteAndExecute(context.Background(), "What tasks involve drafting reports?")
	require.NoError(t, err)

	assert.Equal(t, routing.IntentSemantic, res.Decision.Intent)
	assert.True(t, res.Decision.Params.TaskQuery)
	require.NotNil(t, res.Computational)

	// drafting rows only, ordered by hours per week
	require.Len(t, res.Computational.Tasks, 2)
	assert.Equal(t, "Draft financial reports", res.Computational.Tasks[0].Task)
	assert.Equal(t, "Draft legal documents", res.Computational.Tasks[1].Task)
}

func TestSavingsProjectionTriggered(t *testing.T) {
	s := newTestService(nil)

	res, err := s.RouteAndExecute(context.Background(), "Total savings from automating half of drafting reports")
	require.NoError(t, err)

	require.NotNil(t, res.Computational)
	require.NotNil(t, res.Computational.Savings)
	assert.InDelta(t, 0.5, res.Computational.Savings.Fraction, 1e-9)
}

func TestVectorSearchUsesStrategyK(t *testing.T) {
	searcher := &stubSearcher{}
	s := newTestService(searcher)

	_, err := s.RouteAndExecute(context.Background(), "Describe tasks similar to drafting reports")
	require.NoError(t, err)

	assert.Equal(t, 10, searcher.k)
}
