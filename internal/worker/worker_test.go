package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/opencompliance/complycal/internal/bus"
	"github.com/opencompliance/complycal/internal/calendar"
	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
	"github.com/opencompliance/complycal/internal/matcher"
	"github.com/opencompliance/complycal/internal/report"
)

func newTestWorker(t *testing.T, b domain.EventBus) *Worker {
	t.Helper()

	cat, err := catalog.Load(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	m, err := matcher.New(cat, nil)
	if err != nil {
		t.Fatalf("failed to create matcher: %v", err)
	}
	return NewWorker(b, cat, m, calendar.NewGenerator(cat, nil), report.NewBuilder(cat), nil)
}

func TestWorkerProcessesRequest(t *testing.T) {
	ctx := context.Background()
	b := bus.NewChannelBus(100)
	defer b.Close()

	w := newTestWorker(t, b)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	results := make(chan *domain.Message, 1)
	sub, err := b.Subscribe(ctx, domain.TopicCalendarGenerated, func(ctx context.Context, msg *domain.Message) error {
		results <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	req := CalendarRequest{
		RequestID: "req-1",
		Profile: domain.BusinessProfile{
			BusinessType:   domain.BusinessService,
			State:          "Maharashtra",
			Industry:       "IT Services",
			Turnover:       domain.Turnover40Lto1Cr,
			Employees:      domain.Employees20to49,
			MSMERegistered: true,
		},
		Reference: "2025-03-01",
	}
	payload, _ := json.Marshal(req)
	if err := b.Publish(ctx, domain.TopicCalendarRequested, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-results:
		var result CalendarResult
		if err := json.Unmarshal(msg.Payload, &result); err != nil {
			t.Fatalf("failed to unmarshal result: %v", err)
		}
		if result.RequestID != "req-1" {
			t.Errorf("expected request id req-1, got %s", result.RequestID)
		}
		if len(result.ObligationIDs) == 0 {
			t.Fatal("expected matched obligations")
		}
		if len(result.Entries) == 0 {
			t.Fatal("expected calendar entries")
		}
		for _, e := range result.Entries {
			if e.DueDate.Before(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("entry %s due before window start: %s", e.ID, e.DueDate)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for calendar result")
	}
}

func TestWorkerPublishesReport(t *testing.T) {
	ctx := context.Background()
	b := bus.NewChannelBus(100)
	defer b.Close()

	w := newTestWorker(t, b)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	reports := make(chan *domain.Message, 1)
	sub, err := b.Subscribe(ctx, domain.TopicReportGenerated, func(ctx context.Context, msg *domain.Message) error {
		reports <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	req := CalendarRequest{
		RequestID: "req-2",
		Profile: domain.BusinessProfile{
			BusinessType: domain.BusinessManufacturing,
			State:        "Karnataka",
			Turnover:     domain.Turnover1Crto5Cr,
			Employees:    domain.Employees50to99,
		},
		Reference:     "2025-03-01",
		IncludeReport: true,
	}
	payload, _ := json.Marshal(req)
	if err := b.Publish(ctx, domain.TopicCalendarRequested, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-reports:
		var result struct {
			RequestID string              `json:"requestId"`
			Report    *domain.ReportFacts `json:"report"`
		}
		if err := json.Unmarshal(msg.Payload, &result); err != nil {
			t.Fatalf("failed to unmarshal report: %v", err)
		}
		if result.RequestID != "req-2" {
			t.Errorf("expected request id req-2, got %s", result.RequestID)
		}
		if result.Report == nil {
			t.Fatal("expected report facts")
		}
		if result.Report.Costs.TotalAnnualCost <= 0 {
			t.Errorf("expected positive total cost, got %v", result.Report.Costs.TotalAnnualCost)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for report")
	}
}

func TestWorkerSkipsMalformedRequest(t *testing.T) {
	ctx := context.Background()
	b := bus.NewChannelBus(100)
	defer b.Close()

	w := newTestWorker(t, b)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	results := make(chan *domain.Message, 1)
	sub, err := b.Subscribe(ctx, domain.TopicCalendarGenerated, func(ctx context.Context, msg *domain.Message) error {
		results <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, domain.TopicCalendarRequested, []byte("not json")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case <-results:
		t.Fatal("expected no result for malformed request")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWorkerStats(t *testing.T) {
	b := bus.NewChannelBus(100)
	defer b.Close()

	w := newTestWorker(t, b)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats := w.GetStats()
	if stats.SubscriptionCount != 2 {
		t.Errorf("expected 2 subscriptions, got %d", stats.SubscriptionCount)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := w.GetStats().SubscriptionCount; got != 0 {
		t.Errorf("expected 0 subscriptions after stop, got %d", got)
	}
}
