package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// QueryRecord is one answered query.
type QueryRecord struct {
	ID        uuid.UUID
	SessionID string
	Query     string
	Intent    string
	Category  string
	Answer    string
	LatencyMS int64
	CacheHit  bool
	CreatedAt time.Time
}

// ComputationRecord is one ground-truth figure computed for a query.
type ComputationRecord struct {
	ID          uuid.UUID
	QueryID     uuid.UUID
	Op          string
	Description string
	Value       float64
	Unit        string
	CreatedAt   time.Time
}

// DiscrepancyRecord is one disagreement between a narrated figure and the
// computed ground truth.
type DiscrepancyRecord struct {
	ID            uuid.UUID
	QueryID       uuid.UUID
	Op            string
	ComputedValue float64
	NarratedValue float64
	DifferencePct float64
	Severity      string
	CreatedAt     time.Time
}

// AuditStore persists and reads the audit trail.
type AuditStore struct {
	db DB
}

// NewAuditStore creates an audit store over an open connection.
func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// SaveQuery inserts one query record, assigning an ID if unset.
func (s *AuditStore) SaveQuery(ctx context.Context, rec *QueryRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO queries (id, session_id, query, intent, category, answer, latency_ms, cache_hit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID.String(), rec.SessionID, rec.Query, rec.Intent, rec.Category,
		rec.Answer, rec.LatencyMS, rec.CacheHit, rec.CreatedAt,
	)
	return err
}

// SaveComputations inserts the ground-truth computations for one query.
func (s *AuditStore) SaveComputations(ctx context.Context, queryID uuid.UUID, recs []ComputationRecord) error {
	query := `
		INSERT INTO computations (id, query_id, op, description, value, unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now().UTC()
	for i := range recs {
		rec := &recs[i]
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		rec.QueryID = queryID
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if _, err := s.db.ExecContext(ctx, query,
			rec.ID.String(), rec.QueryID.String(), rec.Op, rec.Description,
			rec.Value, rec.Unit, rec.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// SaveDiscrepancies inserts validation discrepancies for one query.
func (s *AuditStore) SaveDiscrepancies(ctx context.Context, queryID uuid.UUID, recs []DiscrepancyRecord) error {
	query := `
		INSERT INTO discrepancies (id, query_id, op, computed_value, narrated_value, difference_pct, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	now := time.Now().UTC()
	for i := range recs {
		rec := &recs[i]
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		rec.QueryID = queryID
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if _, err := s.db.ExecContext(ctx, query,
			rec.ID.String(), rec.QueryID.String(), rec.Op, rec.ComputedValue,
			rec.NarratedValue, rec.DifferencePct, rec.Severity, rec.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetQuery retrieves one query record by ID.
func (s *AuditStore) GetQuery(ctx context.Context, id uuid.UUID) (*QueryRecord, error) {
	query := `
		SELECT id, session_id, query, intent, category, answer, latency_ms, cache_hit, created_at
		FROM queries WHERE id = $1
	`
	rec := &QueryRecord{}
	var rawID string
	err := s.db.QueryRowContext(ctx, query, id.String()).Scan(
		&rawID, &rec.SessionID, &rec.Query, &rec.Intent, &rec.Category,
		&rec.Answer, &rec.LatencyMS, &rec.CacheHit, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.ID, err = uuid.Parse(rawID)
	return rec, err
}

// ListQueries returns the most recent queries for a session, newest first.
// An empty session lists across all sessions.
func (s *AuditStore) ListQueries(ctx context.Context, sessionID string, limit int) ([]*QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, session_id, query, intent, category, answer, latency_ms, cache_hit, created_at
		FROM queries
		WHERE ($1 = '' OR session_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*QueryRecord
	for rows.Next() {
		rec := &QueryRecord{}
		var rawID string
		if err := rows.Scan(
			&rawID, &rec.SessionID, &rec.Query, &rec.Intent, &rec.Category,
			&rec.Answer, &rec.LatencyMS, &rec.CacheHit, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if rec.ID, err = uuid.Parse(rawID); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ListDiscrepancies returns the discrepancies recorded for one query.
func (s *AuditStore) ListDiscrepancies(ctx context.Context, queryID uuid.UUID) ([]*DiscrepancyRecord, error) {
	query := `
		SELECT id, query_id, op, computed_value, narrated_value, difference_pct, severity, created_at
		FROM discrepancies WHERE query_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, queryID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*DiscrepancyRecord
	for rows.Next() {
		rec := &DiscrepancyRecord{}
		var rawID, rawQueryID string
		if err := rows.Scan(
			&rawID, &rawQueryID, &rec.Op, &rec.ComputedValue,
			&rec.NarratedValue, &rec.DifferencePct, &rec.Severity, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if rec.ID, err = uuid.Parse(rawID); err != nil {
			return nil, err
		}
		if rec.QueryID, err = uuid.Parse(rawQueryID); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
