// Package engine is the public facade over the analytics pipeline: one
// call takes a natural-language query through routing, retrieval,
// narration, arithmetic validation, total correction, CSV export, and the
// audit trail.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/atlasworkforce/labor-intel/internal/aggregate"
	"github.com/atlasworkforce/labor-intel/internal/arithmetic"
	"github.com/atlasworkforce/labor-intel/internal/cache"
	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/export"
	"github.com/atlasworkforce/labor-intel/internal/narrate"
	"github.com/atlasworkforce/labor-intel/internal/observability"
	"github.com/atlasworkforce/labor-intel/internal/retrieval"
	"github.com/atlasworkforce/labor-intel/internal/routing"
	"github.com/atlasworkforce/labor-intel/internal/semantic"
	"github.com/atlasworkforce/labor-intel/internal/storage"
)

// Response is the full answer to one processed query.
type Response struct {
	ID            uuid.UUID                `json:"id"`
	SessionID     string                   `json:"session_id"`
	Query         string                   `json:"query"`
	Intent        routing.Intent           `json:"intent"`
	Category      string                   `json:"category,omitempty"`
	Answer        string                   `json:"answer"`
	Corrected     bool                     `json:"corrected"`
	Discrepancies []arithmetic.Discrepancy `json:"discrepancies,omitempty"`
	Validation    arithmetic.Summary       `json:"validation"`
	Report        string                   `json:"report,omitempty"`
	SemanticHits  []semantic.Result        `json:"semantic_hits,omitempty"`
	Computational *aggregate.Results       `json:"computational,omitempty"`
	CSV           *export.Document         `json:"csv"`
	LatencyMS     int64                    `json:"latency_ms"`
	CacheHit      bool                     `json:"cache_hit"`
}

// Engine wires the pipeline stages together. Narrator, audit store, and
// cache are all optional; a missing stage degrades the response instead of
// failing it.
type Engine struct {
	log      *observability.Logger
	svc      *retrieval.Service
	narrator narrate.Narrator
	csv      *export.Generator
	audit    *storage.AuditStore
	cache    cache.Client
	cacheTTL time.Duration
}

// New creates an Engine.
func New(
	svc *retrieval.Service,
	narrator narrate.Narrator,
	audit *storage.AuditStore,
	cacheClient cache.Client,
	cfg *config.Config,
	log *observability.Logger,
) *Engine {
	if log == nil {
		log = observability.DefaultLogger()
	}
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if !cfg.Search.CacheResults {
		cacheClient = nil
	}
	return &Engine{
		log:      log,
		svc:      svc,
		narrator: narrator,
		csv:      export.NewGenerator(log),
		audit:    audit,
		cache:    cacheClient,
		cacheTTL: ttl,
	}
}

// ClearScope drops the session-scoped filtered table.
func (e *Engine) ClearScope() {
	e.svc.ClearScope()
}

// CSVStats reports per-tier CSV generation counts.
func (e *Engine) CSVStats() export.Stats {
	return e.csv.Stats()
}

// ProcessQuery answers one query end to end.
func (e *Engine) ProcessQuery(ctx context.Context, sessionID, query string) (*Response, error) {
	start := time.Now()
	log := e.log.WithSession(sessionID).WithQuery(query)

	// The scope category is part of the answer's identity: the same query
	// means something else once a category scope is active.
	if cached := e.fromCache(ctx, cache.QueryKey(query, e.svc.ScopeCategory())); cached != nil {
		cached.CacheHit = true
		cached.SessionID = sessionID
		cached.LatencyMS = time.Since(start).Milliseconds()
		log.Info().Msg("answered from cache")
		return cached, nil
	}

	res, err := e.svc.RouteAndExecute(ctx, query)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		ID:            uuid.New(),
		SessionID:     sessionID,
		Query:         query,
		Intent:        res.Decision.Intent,
		Category:      res.Decision.Params.Category,
		SemanticHits:  res.SemanticHits,
		Computational: res.Computational,
	}

	resp.Answer = e.narrateAnswer(ctx, res, log)

	resp.Discrepancies = res.Validator.Validate(resp.Answer)
	resp.Validation = res.Validator.Summary()
	if len(resp.Discrepancies) > 0 {
		resp.Report = res.Validator.Report()
		log.Warn().Int("discrepancies", len(resp.Discrepancies)).Msg("narration disagrees with computed figures")
	}

	if total, count, entity, ok := e.verifiedTotal(res); ok {
		resp.Answer, resp.Corrected = narrate.CorrectTotals(resp.Answer, total, count, entity, e.log)
	}

	resp.CSV = e.csv.Generate(query, res.SemanticHits, res.Computational, res.Decision)
	resp.LatencyMS = time.Since(start).Milliseconds()

	e.persist(ctx, resp, res, log)
	// Stored under the post-execution scope: a query that materializes its
	// own scope replays only while that scope is still the active one.
	e.toCache(ctx, cache.QueryKey(query, e.svc.ScopeCategory()), resp)

	log.Info().
		Str("intent", string(resp.Intent)).
		Bool("corrected", resp.Corrected).
		Int64("latency_ms", resp.LatencyMS).
		Msg("query processed")
	return resp, nil
}

// narrateAnswer builds the prompt and calls the narrator. Any failure
// degrades to the apology text; the computed figures still ship in the
// response.
func (e *Engine) narrateAnswer(ctx context.Context, res *retrieval.Result, log *observability.Logger) string {
	if e.narrator == nil {
		return narrate.Apology
	}

	dataContext := narrate.FormatContext(res.SemanticHits, res.Computational)
	prompt := narrate.AnalysisPrompt(res.Query, dataContext, string(res.Decision.Intent))

	answer, err := e.narrator.Narrate(ctx, narrate.SystemPrompt, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("narration failed, using apology text")
		return narrate.Apology
	}
	if answer == "" {
		log.Warn().Msg("narrator returned empty content")
		return narrate.Apology
	}
	return answer
}

// verifiedTotal picks the ledger total and entity the correction pass
// should enforce. Tasks outrank occupations, which outrank industries.
func (e *Engine) verifiedTotal(res *retrieval.Result) (total float64, count int, entity string, ok bool) {
	comp := res.Computational
	if comp.Empty() {
		return 0, 0, "", false
	}

	switch {
	case len(comp.Tasks) > 0:
		entity = "tasks"
		count = len(comp.Tasks)
	case len(comp.Occupations) > 0:
		entity = "occupations"
		count = len(comp.Occupations)
	case len(comp.PatternAnalysis) > 0:
		entity = "occupations"
		count = len(comp.PatternAnalysis)
	case len(comp.Industries) > 0:
		entity = "industries"
		count = len(comp.Industries)
	default:
		return 0, 0, "", false
	}

	for _, desc := range []string{
		"total employment",
		"employment across occupations",
		"employment across industries",
	} {
		if ledger, found := res.Validator.Lookup(arithmetic.OpSum, desc); found && ledger.Value > 0 {
			return ledger.Value, count, entity, true
		}
	}
	return 0, 0, "", false
}

// persist writes the audit trail. Failures are logged, never fatal.
func (e *Engine) persist(ctx context.Context, resp *Response, res *retrieval.Result, log *observability.Logger) {
	if e.audit == nil {
		return
	}

	rec := &storage.QueryRecord{
		ID:        resp.ID,
		SessionID: resp.SessionID,
		Query:     resp.Query,
		Intent:    string(resp.Intent),
		Category:  resp.Category,
		Answer:    resp.Answer,
		LatencyMS: resp.LatencyMS,
		CacheHit:  resp.CacheHit,
	}
	if err := e.audit.SaveQuery(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to persist query record")
		return
	}

	computed := res.Validator.Computed()
	comps := make([]storage.ComputationRecord, 0, len(computed))
	for _, c := range computed {
		comps = append(comps, storage.ComputationRecord{
			Op:          string(c.Op),
			Description: c.Description,
			Value:       c.Value,
			Unit:        c.Unit,
		})
	}
	if err := e.audit.SaveComputations(ctx, resp.ID, comps); err != nil {
		log.Warn().Err(err).Msg("failed to persist computations")
	}

	if len(resp.Discrepancies) > 0 {
		discs := make([]storage.DiscrepancyRecord, 0, len(resp.Discrepancies))
		for _, d := range resp.Discrepancies {
			discs = append(discs, storage.DiscrepancyRecord{
				Op:            string(d.Op),
				ComputedValue: d.ComputedValue,
				NarratedValue: d.NarratedValue,
				DifferencePct: d.DifferencePct,
				Severity:      string(d.Severity),
			})
		}
		if err := e.audit.SaveDiscrepancies(ctx, resp.ID, discs); err != nil {
			log.Warn().Err(err).Msg("failed to persist discrepancies")
		}
	}
}

func (e *Engine) fromCache(ctx context.Context, key string) *Response {
	if e.cache == nil {
		return nil
	}
	data, err := e.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		e.log.Warn().Err(err).Msg("dropping malformed cache entry")
		return nil
	}
	return &resp
}

func (e *Engine) toCache(ctx context.Context, key string, resp *Response) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to marshal response for cache")
		return
	}
	if err := e.cache.Set(ctx, key, data, e.cacheTTL); err != nil {
		e.log.Warn().Err(err).Msg("failed to cache response")
	}
}
