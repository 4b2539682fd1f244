package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *AuditStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// In-memory SQLite loses the schema if the pool opens a second
	// connection.
	db.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))

	return NewAuditStore(db)
}

func TestSaveAndGetQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &QueryRecord{
		SessionID: "s1",
		Query:     "how many occupations draft reports",
		Intent:    "computational",
		Category:  "document_creation",
		Answer:    "There are 14 occupations.",
		LatencyMS: 420,
		CacheHit:  false,
	}
	require.NoError(t, store.SaveQuery(ctx, rec))
	require.NotEqual(t, uuid.Nil, rec.ID)

	got, err := store.GetQuery(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Query, got.Query)
	assert.Equal(t, rec.Intent, got.Intent)
	assert.Equal(t, rec.Category, got.Category)
	assert.Equal(t, rec.LatencyMS, got.LatencyMS)
	assert.False(t, got.CacheHit)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetQueryNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetQuery(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListQueriesBySession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, sid := range []string{"s1", "s1", "s2"} {
		require.NoError(t, store.SaveQuery(ctx, &QueryRecord{
			SessionID: sid,
			Query:     "q",
			Intent:    "hybrid",
		}))
	}

	recs, err := store.ListQueries(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	all, err := store.ListQueries(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSaveComputationsAndDiscrepancies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	q := &QueryRecord{SessionID: "s1", Query: "total employment", Intent: "computational"}
	require.NoError(t, store.SaveQuery(ctx, q))

	comps := []ComputationRecord{
		{Op: "sum", Description: "employment across occupations", Value: 600.5, Unit: "k"},
		{Op: "count", Description: "occupations", Value: 3, Unit: "count"},
	}
	require.NoError(t, store.SaveComputations(ctx, q.ID, comps))

	discs := []DiscrepancyRecord{
		{Op: "sum", ComputedValue: 600.5, NarratedValue: 800, DifferencePct: 33.2, Severity: "critical"},
	}
	require.NoError(t, store.SaveDiscrepancies(ctx, q.ID, discs))

	got, err := store.ListDiscrepancies(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sum", got[0].Op)
	assert.Equal(t, q.ID, got[0].QueryID)
	assert.Equal(t, "critical", got[0].Severity)
	assert.InDelta(t, 33.2, got[0].DifferencePct, 1e-9)
}
