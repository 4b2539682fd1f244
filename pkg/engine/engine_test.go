package engine

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasworkforce/labor-intel/internal/cache"
	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/dataset"
	"github.com/atlasworkforce/labor-intel/internal/export"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
	"github.com/atlasworkforce/labor-intel/internal/retrieval"
	"github.com/atlasworkforce/labor-intel/internal/routing"
	"github.com/atlasworkforce/labor-intel/internal/storage"
)

type stubNarrator struct {
	answer string
	err    error
	calls  int
}

func (n *stubNarrator) Narrate(ctx context.Context, system, user string) (string, error) {
	n.calls++
	if n.err != nil {
		return "", n.err
	}
	return n.answer, nil
}

func wage(v float64) *float64 { return &v }

func testService() *retrieval.Service {
	table := dataset.NewTable([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft financial reports", Employment: 100, Wage: wage(40), HoursPerWeek: 10},
		{Occupation: "Accountants", Industry: "Finance", Task: "Audit accounts", Employment: 100, Wage: wage(40), HoursPerWeek: 5},
		{Occupation: "Paralegals", Industry: "Legal", Task: "Draft legal documents", Employment: 50, Wage: wage(25), HoursPerWeek: 8},
		{Occupation: "Machinists", Industry: "Manufacturing", Task: "Operate lathes", Employment: 80, Wage: wage(30), HoursPerWeek: 20},
	})
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
	matcher := patterns.NewMatcher(store, nil)
	cfg := config.DefaultConfig()
	router := routing.NewRouter(cfg.Routing, cfg.Search, matcher, nil)
	return retrieval.NewService(table, router, matcher, nil, cfg, nil)
}

func testAudit(t *testing.T) *storage.AuditStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	require.NoError(t, storage.Migrate(db))
	return storage.NewAuditStore(db)
}

func TestProcessQueryCorrectsWrongTotal(t *testing.T) {
	narrator := &stubNarrator{answer: "The drafting workforce is sizable.\n\nTotal Employment: 180 thousand workers across 2 occupations."}
	audit := testAudit(t)
	eng := New(testService(), narrator, audit, nil, config.DefaultConfig(), nil)

	resp, err := eng.ProcessQuery(context.Background(), "s1", "Total employment by occupation for those who draft reports")
	require.NoError(t, err)

	// scoped drafting rows: Accountants 100 + Paralegals 50
	assert.True(t, resp.Corrected)
	assert.Contains(t, resp.Answer, "Total Employment: 150.00 thousand workers across 2 occupations")
	assert.NotContains(t, resp.Answer, "180")

	require.NotEmpty(t, resp.Discrepancies)
	assert.False(t, resp.Validation.Passed)
	assert.NotEmpty(t, resp.Report)

	// audit trail
	got, err := audit.GetQuery(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Answer, "150.00")
	discs, err := audit.ListDiscrepancies(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Len(t, discs, len(resp.Discrepancies))
}

func TestProcessQueryCleanNarrationUntouched(t *testing.T) {
	narrator := &stubNarrator{answer: "Total Employment: 150.00 thousand workers across 2 occupations."}
	eng := New(testService(), narrator, nil, nil, config.DefaultConfig(), nil)

	resp, err := eng.ProcessQuery(context.Background(), "s1", "Total employment by occupation for those who draft reports")
	require.NoError(t, err)

	assert.False(t, resp.Corrected)
	assert.Empty(t, resp.Discrepancies)
	assert.True(t, resp.Validation.Passed)
	assert.Equal(t, narrator.answer, resp.Answer)
}

func TestProcessQueryNarrationFailureDegrades(t *testing.T) {
	narrator := &stubNarrator{err: errors.New("upstream down")}
	eng := New(testService(), narrator, nil, nil, config.DefaultConfig(), nil)

	resp, err := eng.ProcessQuery(context.Background(), "s1", "How many occupations draft reports?")
	require.NoError(t, err)

	// apology is later replaced by the appended verified figures where
	// available; here only counts exist, so the apology stands
	assert.Contains(t, resp.Answer, "I apologize")
	require.NotNil(t, resp.CSV)
	assert.Equal(t, export.TierComputational, resp.CSV.Tier)
}

func TestProcessQueryNoNarratorUsesApology(t *testing.T) {
	eng := New(testService(), nil, nil, nil, config.DefaultConfig(), nil)

	resp, err := eng.ProcessQuery(context.Background(), "s1", "How many occupations draft reports?")
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "I apologize")
}

func TestProcessQueryCachesResponses(t *testing.T) {
	narrator := &stubNarrator{answer: "Total Employment: 150.00 thousand workers across 2 occupations."}
	mem := cache.NewMemoryClient(10)
	defer mem.Close()
	eng := New(testService(), narrator, nil, mem, config.DefaultConfig(), nil)

	first, err := eng.ProcessQuery(context.Background(), "s1", "Total employment by occupation for those who draft reports")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := eng.ProcessQuery(context.Background(), "s2", "total EMPLOYMENT by occupation for those who draft reports")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "s2", second.SessionID)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, narrator.calls)
}

func TestProcessQueryCacheRespectsScope(t *testing.T) {
	narrator := &stubNarrator{answer: "Here are the figures."}
	mem := cache.NewMemoryClient(10)
	defer mem.Close()
	eng := New(testService(), narrator, nil, mem, config.DefaultConfig(), nil)

	// Unscoped: all unique pairs, 100 + 50 + 80.
	first, err := eng.ProcessQuery(context.Background(), "s1", "sum the employment figures")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.InDelta(t, 230, first.Computational.Totals["total_employment"], 1e-9)

	// Materialize the drafting scope.
	_, err = eng.ProcessQuery(context.Background(), "s1", "How many occupations draft reports?")
	require.NoError(t, err)

	// The same question now has a different answer; the unscoped cache
	// entry must not replay.
	scoped, err := eng.ProcessQuery(context.Background(), "s1", "sum the employment figures")
	require.NoError(t, err)
	assert.False(t, scoped.CacheHit)
	assert.InDelta(t, 150, scoped.Computational.Totals["total_employment"], 1e-9)

	// Clearing the scope brings back the unscoped cached answer.
	eng.ClearScope()
	cleared, err := eng.ProcessQuery(context.Background(), "s1", "sum the employment figures")
	require.NoError(t, err)
	assert.True(t, cleared.CacheHit)
	assert.InDelta(t, 230, cleared.Computational.Totals["total_employment"], 1e-9)
}

func TestProcessQueryFallbackCSVForNarrativeQueries(t *testing.T) {
	narrator := &stubNarrator{answer: "Purely narrative answer."}
	eng := New(testService(), narrator, nil, nil, config.DefaultConfig(), nil)

	// semantic intent with no searcher configured: no hits, no aggregations
	resp, err := eng.ProcessQuery(context.Background(), "s1", "Tell me about interesting work")
	require.NoError(t, err)

	require.NotNil(t, resp.CSV)
	assert.Equal(t, export.TierFallback, resp.CSV.Tier)
}
