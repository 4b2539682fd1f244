// Package main: HTTP handlers for the labor-intel API.
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlasworkforce/labor-intel/internal/observability"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
	"github.com/atlasworkforce/labor-intel/internal/storage"
	"github.com/atlasworkforce/labor-intel/pkg/engine"
)

// QueryHandler handles query, category, and history requests.
type QueryHandler struct {
	logger *observability.Logger
	engine *engine.Engine
	audit  *storage.AuditStore
	store  *patterns.Store
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(
	logger *observability.Logger,
	eng *engine.Engine,
	audit *storage.AuditStore,
	store *patterns.Store,
) *QueryHandler {
	return &QueryHandler{logger: logger, engine: eng, audit: audit, store: store}
}

// QueryRequestDTO represents the API request for a query.
type QueryRequestDTO struct {
	SessionID string `json:"sessionId,omitempty"`
	Query     string `json:"query"`
}

// CategoryDTO represents one configured task category.
type CategoryDTO struct {
	Name          string  `json:"name"`
	DisplayName   string  `json:"displayName"`
	Description   string  `json:"description,omitempty"`
	Strategy      string  `json:"strategy"`
	MinConfidence float64 `json:"minConfidence"`
}

// HistoryEntryDTO represents one recorded query.
type HistoryEntryDTO struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Query     string `json:"query"`
	Intent    string `json:"intent"`
	Category  string `json:"category,omitempty"`
	Answer    string `json:"answer"`
	LatencyMS int64  `json:"latencyMs"`
	CacheHit  bool   `json:"cacheHit"`
	CreatedAt string `json:"createdAt"`
}

// DiscrepancyDTO represents one recorded arithmetic discrepancy.
type DiscrepancyDTO struct {
	Op            string  `json:"op"`
	ComputedValue float64 `json:"computedValue"`
	NarratedValue float64 `json:"narratedValue"`
	DifferencePct float64 `json:"differencePct"`
	Severity      string  `json:"severity"`
}

type errorDTO struct {
	Error string `json:"error"`
}

// Query handles POST /api/v1/query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.process(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// QueryCSV handles POST /api/v1/query/csv, returning the supporting data
// as a CSV attachment instead of the JSON envelope.
func (h *QueryHandler) QueryCSV(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.process(w, r)
	if !ok {
		return
	}
	if resp.CSV == nil {
		writeJSON(w, http.StatusNoContent, nil)
		return
	}

	data, err := resp.CSV.Bytes()
	if err != nil {
		h.logger.Error().Err(err).Msg("csv rendering failed")
		writeJSON(w, http.StatusInternalServerError, errorDTO{Error: "csv rendering failed"})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="query_results.csv"`)
	w.Header().Set("X-Export-Tier", string(resp.CSV.Tier))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *QueryHandler) process(w http.ResponseWriter, r *http.Request) (*engine.Response, bool) {
	var req QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorDTO{Error: "invalid JSON body"})
		return nil, false
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorDTO{Error: "query is required"})
		return nil, false
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	resp, err := h.engine.ProcessQuery(r.Context(), req.SessionID, req.Query)
	if err != nil {
		h.logger.Error().Err(err).Msg("query processing failed")
		writeJSON(w, http.StatusInternalServerError, errorDTO{Error: "query processing failed"})
		return nil, false
	}
	return resp, true
}

// ClearScope handles DELETE /api/v1/scope.
func (h *QueryHandler) ClearScope(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearScope()
	writeJSON(w, http.StatusOK, map[string]string{"status": "scope cleared"})
}

// Categories handles GET /api/v1/categories.
func (h *QueryHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats := h.store.List()
	out := make([]CategoryDTO, 0, len(cats))
	for _, cat := range cats {
		out = append(out, CategoryDTO{
			Name:          cat.Name,
			DisplayName:   cat.DisplayName,
			Description:   cat.Description,
			Strategy:      cat.Strategy(),
			MinConfidence: cat.MinConfidence(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// History handles GET /api/v1/history.
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorDTO{Error: "audit store unavailable"})
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorDTO{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := h.audit.ListQueries(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("history listing failed")
		writeJSON(w, http.StatusInternalServerError, errorDTO{Error: "history listing failed"})
		return
	}

	out := make([]HistoryEntryDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toHistoryDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// HistoryEntry handles GET /api/v1/history/{queryID}.
func (h *QueryHandler) HistoryEntry(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorDTO{Error: "audit store unavailable"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "queryID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorDTO{Error: "invalid query ID"})
		return
	}

	rec, err := h.audit.GetQuery(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorDTO{Error: "query not found"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("history lookup failed")
		writeJSON(w, http.StatusInternalServerError, errorDTO{Error: "history lookup failed"})
		return
	}

	discs, err := h.audit.ListDiscrepancies(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("discrepancy listing failed")
		writeJSON(w, http.StatusInternalServerError, errorDTO{Error: "discrepancy listing failed"})
		return
	}

	discDTOs := make([]DiscrepancyDTO, 0, len(discs))
	for _, d := range discs {
		discDTOs = append(discDTOs, DiscrepancyDTO{
			Op:            d.Op,
			ComputedValue: d.ComputedValue,
			NarratedValue: d.NarratedValue,
			DifferencePct: d.DifferencePct,
			Severity:      d.Severity,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":         toHistoryDTO(rec),
		"discrepancies": discDTOs,
	})
}

// CSVStats handles GET /api/v1/stats/csv.
func (h *QueryHandler) CSVStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.CSVStats())
}

func toHistoryDTO(rec *storage.QueryRecord) HistoryEntryDTO {
	return HistoryEntryDTO{
		ID:        rec.ID.String(),
		SessionID: rec.SessionID,
		Query:     rec.Query,
		Intent:    rec.Intent,
		Category:  rec.Category,
		Answer:    rec.Answer,
		LatencyMS: rec.LatencyMS,
		CacheHit:  rec.CacheHit,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
