package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opencompliance/complycal/internal/calendar"
	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
	"github.com/opencompliance/complycal/internal/matcher"
	"github.com/opencompliance/complycal/internal/report"
)

// calendarCacheTTL bounds how long a generated calendar is served from
// cache. Priorities depend on the real clock, so entries must age out.
const calendarCacheTTL = 15 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	catalog   *catalog.Catalog
	matcher   *matcher.Matcher
	generator *calendar.Generator
	reports   *report.Builder
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, cat *catalog.Catalog, m *matcher.Matcher, g *calendar.Generator, rb *report.Builder, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		catalog:   cat,
		matcher:   m,
		generator: g,
		reports:   rb,
		version:   version,
	}
}

// ProfileRequest is the request body shared by the match, calendar, and
// report endpoints.
type ProfileRequest struct {
	Profile domain.BusinessProfile `json:"profile"`

	// Reference is the calendar window start in ISO format. Empty means today.
	Reference string `json:"reference,omitempty"`

	// Month filters calendar entries to one month label, e.g. "April 2025".
	Month string `json:"month,omitempty"`

	// Category filters calendar entries to one category. "all" and empty
	// pass everything through.
	Category string `json:"category,omitempty"`
}

func decodeProfileRequest(r *http.Request) (*ProfileRequest, error) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON request body")
	}
	if err := validateProfile(&req.Profile); err != nil {
		return nil, err
	}
	return &req, nil
}

func validateProfile(p *domain.BusinessProfile) error {
	if !domain.ValidBusinessType(p.BusinessType) {
		return fmt.Errorf("unknown businessType %q", p.BusinessType)
	}
	if p.State == "" {
		return fmt.Errorf("state is required")
	}
	if !domain.KnownRegion(p.State) {
		return fmt.Errorf("unknown state %q", p.State)
	}
	if _, ok := p.Turnover.Midpoint(); !ok {
		return fmt.Errorf("unknown turnover bracket %q", p.Turnover)
	}
	if _, ok := p.Employees.Midpoint(); !ok {
		return fmt.Errorf("unknown employees bracket %q", p.Employees)
	}
	return nil
}

func (r *ProfileRequest) referenceDate() (time.Time, error) {
	if r.Reference == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", r.Reference)
	if err != nil {
		return time.Time{}, fmt.Errorf("reference must be a YYYY-MM-DD date")
	}
	return t, nil
}

// MatchResponse is the response for POST /match.
type MatchResponse struct {
	ApplicableIDs []string                 `json:"applicableCompliances"`
	Obligations   []*domain.ObligationRule `json:"obligations"`
	Count         int                      `json:"count"`
}

// Match handles POST /match requests.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	req, err := decodeProfileRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	matched := h.matcher.Match(r.Context(), &req.Profile)
	ids := make([]string, len(matched))
	for i, rule := range matched {
		ids[i] = rule.ID
	}

	writeJSON(w, http.StatusOK, MatchResponse{
		ApplicableIDs: ids,
		Obligations:   matched,
		Count:         len(matched),
	})
}

// CalendarResponse is the response for POST /calendar.
type CalendarResponse struct {
	ObligationIDs []string               `json:"applicableCompliances"`
	Entries       []domain.CalendarEntry `json:"entries"`
	Count         int                    `json:"count"`
	GeneratedAt   time.Time              `json:"generatedAt"`
	Cached        bool                   `json:"cached"`
}

// Calendar handles POST /calendar requests.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeProfileRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	reference, err := req.referenceDate()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var resp CalendarResponse
	cacheKey := calendarCacheKey(&req.Profile, reference)

	if h.cache != nil {
		if data, err := h.cache.Get(ctx, cacheKey); err == nil && data != nil {
			if err := json.Unmarshal(data, &resp); err == nil {
				resp.Cached = true
				writeJSON(w, http.StatusOK, filterCalendar(resp, req))
				return
			}
		}
	}

	matched := h.matcher.Match(ctx, &req.Profile)
	ids := make([]string, len(matched))
	for i, rule := range matched {
		ids[i] = rule.ID
	}

	resp = CalendarResponse{
		ObligationIDs: ids,
		Entries:       h.generator.Generate(ids, reference),
		GeneratedAt:   time.Now().UTC(),
	}
	resp.Count = len(resp.Entries)

	if h.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := h.cache.Set(ctx, cacheKey, data, calendarCacheTTL); err != nil {
				slog.Warn("failed to cache calendar", "error", err)
			}
		}
	}

	h.publish(ctx, domain.TopicCalendarGenerated, resp)

	writeJSON(w, http.StatusOK, filterCalendar(resp, req))
}

// filterCalendar applies the optional month and category filters.
func filterCalendar(resp CalendarResponse, req *ProfileRequest) CalendarResponse {
	entries := resp.Entries
	if req.Month != "" {
		entries = calendar.FilterByMonth(entries, req.Month)
	}
	entries = calendar.FilterByCategory(entries, req.Category)
	resp.Entries = entries
	resp.Count = len(entries)
	return resp
}

// calendarCacheKey digests the profile and window start. Identical
// questionnaires hit the same entry.
func calendarCacheKey(p *domain.BusinessProfile, reference time.Time) string {
	data, _ := json.Marshal(p)
	sum := sha256.Sum256(append(data, []byte(reference.Format("2006-01-02"))...))
	return "calendar:" + hex.EncodeToString(sum[:])
}

// Report handles POST /report requests.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeProfileRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	reference, err := req.referenceDate()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	matched := h.matcher.Match(ctx, &req.Profile)
	ids := make([]string, len(matched))
	for i, rule := range matched {
		ids[i] = rule.ID
	}

	entries := h.generator.Generate(ids, reference)
	facts := h.reports.Build(req.Profile, entries, ids)

	h.publish(ctx, domain.TopicReportGenerated, facts)

	writeJSON(w, http.StatusOK, facts)
}

// ListObligations returns the full catalog.
func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	rules := h.catalog.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"obligations": rules,
		"count":       len(rules),
	})
}

// GetObligation retrieves one obligation by ID.
func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "obligation id is required"})
		return
	}

	rule, ok := h.catalog.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "obligation not found"})
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// CreateObligation registers a custom obligation. Custom obligations carry a
// CEL applicability expression over the profile variables.
func (h *Handler) CreateObligation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.ObligationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}

	// Runtime registrations are never built in
	rule.Builtin = false

	if err := catalog.Validate(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if rule.Applicability.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "applicability.expression is required"})
		return
	}
	if existing, ok := h.catalog.Get(rule.ID); ok && existing.Builtin {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot replace a built-in obligation"})
		return
	}
	if err := h.matcher.ValidateExpression(rule.ID, rule.Applicability.Expression); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid applicability expression: " + err.Error()})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveObligation(ctx, &rule); err != nil {
			slog.Error("failed to save obligation", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save obligation"})
			return
		}
	}
	if err := h.catalog.Upsert(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if rule.Enabled {
		if err := h.matcher.LoadRule(&rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	h.publish(ctx, domain.TopicObligationUpdated, map[string]string{"id": rule.ID, "action": "created"})

	slog.Info("obligation created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, &rule)
}

// DeleteObligation disables an obligation. Built-in obligations cannot be
// removed; disable them through an update instead.
func (h *Handler) DeleteObligation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "obligation id is required"})
		return
	}

	rule, ok := h.catalog.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "obligation not found"})
		return
	}
	if rule.Builtin {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot delete a built-in obligation"})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteObligation(ctx, id); err != nil {
			slog.Error("failed to delete obligation", "id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete obligation"})
			return
		}
	}
	h.catalog.Remove(id)

	h.publish(ctx, domain.TopicObligationUpdated, map[string]string{"id": id, "action": "deleted"})

	slog.Info("obligation deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "obligation deleted"})
}

// ReloadObligations reloads the catalog from the repository and recompiles
// custom applicability expressions. This enables hot-reloading without a
// server restart.
func (h *Handler) ReloadObligations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "repository not available"})
		return
	}

	stored, err := h.repo.ListObligations(ctx)
	if err != nil {
		slog.Error("failed to list obligations", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load obligations"})
		return
	}

	if err := h.catalog.Replace(stored, slog.Default()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reload catalog: " + err.Error()})
		return
	}
	if err := h.matcher.ReloadRules(h.catalog.List()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reload expressions: " + err.Error()})
		return
	}

	slog.Info("obligations reloaded", "count", h.catalog.Len())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "obligations reloaded successfully",
		"count":   h.catalog.Len(),
	})
}

// CatalogMetadata returns the catalog provenance block.
func (h *Handler) CatalogMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Metadata())
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.catalog.Len() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// publish sends an event without failing the request on bus errors.
func (h *Handler) publish(ctx context.Context, topic string, v interface{}) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
