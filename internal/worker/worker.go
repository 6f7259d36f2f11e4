// Package worker provides async calendar generation for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opencompliance/complycal/internal/calendar"
	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
	"github.com/opencompliance/complycal/internal/matcher"
	"github.com/opencompliance/complycal/internal/report"
)

// Worker consumes calendar requests from the EventBus, runs the matching and
// generation pipeline, and publishes the results.
type Worker struct {
	bus       domain.EventBus
	catalog   *catalog.Catalog
	matcher   *matcher.Matcher
	generator *calendar.Generator
	reports   *report.Builder
	logger    *slog.Logger

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, cat *catalog.Catalog, m *matcher.Matcher, g *calendar.Generator, rb *report.Builder, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		catalog:   cat,
		matcher:   m,
		generator: g,
		reports:   rb,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the request and rule-change topics.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicCalendarRequested, w.handleRequest)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	ruleSub, err := w.bus.Subscribe(w.ctx, domain.TopicObligationUpdated, w.handleObligationUpdated)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, ruleSub)

	w.logger.Info("worker started",
		"topics", []string{domain.TopicCalendarRequested, domain.TopicObligationUpdated},
	)
	return nil
}

// CalendarRequest is the payload consumed from the request topic.
type CalendarRequest struct {
	RequestID string                 `json:"requestId"`
	Profile   domain.BusinessProfile `json:"profile"`

	// Reference is the window start date in ISO format. Empty means today.
	Reference string `json:"reference,omitempty"`

	// IncludeReport asks for report facts alongside the calendar.
	IncludeReport bool `json:"includeReport,omitempty"`
}

// CalendarResult is the payload published to the generated topic.
type CalendarResult struct {
	RequestID     string                 `json:"requestId"`
	ObligationIDs []string               `json:"obligationIds"`
	Entries       []domain.CalendarEntry `json:"entries"`
	GeneratedAt   time.Time              `json:"generatedAt"`
}

// handleRequest runs the full pipeline for one request message.
func (w *Worker) handleRequest(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req CalendarRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("failed to parse calendar request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = msg.ID
	}

	reference := time.Now().UTC()
	if req.Reference != "" {
		parsed, err := time.Parse("2006-01-02", req.Reference)
		if err != nil {
			w.logger.Error("invalid reference date in request",
				"request_id", requestID,
				"reference", req.Reference,
				"error", err,
			)
			return err
		}
		reference = parsed
	}

	matched := w.matcher.Match(ctx, &req.Profile)
	ids := make([]string, len(matched))
	for i, rule := range matched {
		ids[i] = rule.ID
	}

	entries := w.generator.Generate(ids, reference)

	result := CalendarResult{
		RequestID:     requestID,
		ObligationIDs: ids,
		Entries:       entries,
		GeneratedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := w.bus.Publish(ctx, domain.TopicCalendarGenerated, payload); err != nil {
		w.logger.Error("failed to publish calendar result",
			"request_id", requestID,
			"error", err,
		)
		return err
	}

	if req.IncludeReport && w.reports != nil {
		facts := w.reports.Build(req.Profile, entries, ids)
		reportPayload, err := json.Marshal(struct {
			RequestID string              `json:"requestId"`
			Report    *domain.ReportFacts `json:"report"`
		}{requestID, facts})
		if err == nil {
			if err := w.bus.Publish(ctx, domain.TopicReportGenerated, reportPayload); err != nil {
				w.logger.Error("failed to publish report",
					"request_id", requestID,
					"error", err,
				)
			}
		}
	}

	w.logger.Info("calendar request processed",
		"request_id", requestID,
		"obligations", len(ids),
		"entries", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// handleObligationUpdated recompiles matcher programs after a catalog change.
func (w *Worker) handleObligationUpdated(ctx context.Context, msg *domain.Message) error {
	if err := w.matcher.ReloadRules(w.catalog.List()); err != nil {
		w.logger.Error("failed to reload rules",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	w.logger.Info("rules reloaded", "count", w.matcher.RulesCount())
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
