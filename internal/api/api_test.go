package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opencompliance/complycal/internal/bus"
	"github.com/opencompliance/complycal/internal/cache"
	"github.com/opencompliance/complycal/internal/calendar"
	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
	"github.com/opencompliance/complycal/internal/matcher"
	"github.com/opencompliance/complycal/internal/report"
)

func newTestServer(t *testing.T, rateLimit int) *Server {
	t.Helper()

	cat, err := catalog.Load(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	m, err := matcher.New(cat, nil)
	if err != nil {
		t.Fatalf("failed to create matcher: %v", err)
	}

	c := cache.NewLRUCache(1000)
	b := bus.NewChannelBus(100)
	t.Cleanup(func() {
		c.Close()
		b.Close()
	})

	cfg := domain.ServerConfig{Host: "127.0.0.1", Port: 0}
	return NewServer(cfg, nil, c, b, cat, m, calendar.NewGenerator(cat, nil), report.NewBuilder(cat), "test", rateLimit)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func serviceProfile() domain.BusinessProfile {
	return domain.BusinessProfile{
		BusinessType:   domain.BusinessService,
		State:          "Maharashtra",
		Industry:       "IT Services",
		Turnover:       domain.Turnover40Lto1Cr,
		Employees:      domain.Employees20to49,
		MSMERegistered: true,
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("Health", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/health", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		if body["status"] != "healthy" {
			t.Errorf("expected healthy, got %s", body["status"])
		}
		if body["version"] != "test" {
			t.Errorf("expected version test, got %s", body["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/ready", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("RequestIDHeader", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/health", nil)
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected X-Request-ID header")
		}
	})
}

func TestMatchEndpoint(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("ServiceBusiness", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/match", ProfileRequest{Profile: serviceProfile()})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp MatchResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		got := make(map[string]bool, len(resp.ApplicableIDs))
		for _, id := range resp.ApplicableIDs {
			got[id] = true
		}
		for _, want := range []string{
			domain.ObligationGST,
			domain.ObligationEPF,
			domain.ObligationESI,
			domain.ObligationProfessionalTax,
			domain.ObligationTDS,
			domain.ObligationIncomeTax,
			domain.ObligationMSMEReturn,
			domain.ObligationShopsEstab,
		} {
			if !got[want] {
				t.Errorf("expected %s to apply", want)
			}
		}
		if got[domain.ObligationTaxAudit] {
			t.Error("tax-audit should not apply below threshold")
		}
		if got[domain.ObligationMSMEForm1] {
			t.Error("msme-form-1 should not apply")
		}
		if resp.Count != len(resp.ApplicableIDs) {
			t.Errorf("count %d does not match ids %d", resp.Count, len(resp.ApplicableIDs))
		}
	})

	t.Run("InvalidBusinessType", func(t *testing.T) {
		p := serviceProfile()
		p.BusinessType = "Agriculture"
		rec := doJSON(t, srv, http.MethodPost, "/match", ProfileRequest{Profile: p})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("UnknownState", func(t *testing.T) {
		p := serviceProfile()
		p.State = "Atlantis"
		rec := doJSON(t, srv, http.MethodPost, "/match", ProfileRequest{Profile: p})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewBufferString("not json"))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCalendarEndpoint(t *testing.T) {
	srv := newTestServer(t, 0)

	request := ProfileRequest{Profile: serviceProfile(), Reference: "2025-03-01"}

	t.Run("GeneratesEntries", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/calendar", request)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp CalendarResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if len(resp.Entries) == 0 {
			t.Fatal("expected calendar entries")
		}
		if resp.Cached {
			t.Error("first call should not be cached")
		}
		for i := 1; i < len(resp.Entries); i++ {
			if resp.Entries[i].DueDate.Before(resp.Entries[i-1].DueDate) {
				t.Fatal("entries not sorted by due date")
			}
		}
	})

	t.Run("SecondCallCached", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/calendar", request)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp CalendarResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if !resp.Cached {
			t.Error("second identical call should be served from cache")
		}
	})

	t.Run("MonthFilter", func(t *testing.T) {
		filtered := request
		filtered.Month = "April 2025"
		rec := doJSON(t, srv, http.MethodPost, "/calendar", filtered)
		var resp CalendarResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if len(resp.Entries) == 0 {
			t.Fatal("expected entries for April 2025")
		}
		for _, e := range resp.Entries {
			if e.Month != "April 2025" {
				t.Errorf("entry %s has month %s", e.ID, e.Month)
			}
		}
	})

	t.Run("CategoryFilter", func(t *testing.T) {
		filtered := request
		filtered.Category = "Labor"
		rec := doJSON(t, srv, http.MethodPost, "/calendar", filtered)
		var resp CalendarResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		for _, e := range resp.Entries {
			if e.Category != domain.CategoryLabor {
				t.Errorf("entry %s has category %s", e.ID, e.Category)
			}
		}
	})

	t.Run("InvalidReference", func(t *testing.T) {
		bad := request
		bad.Reference = "03/01/2025"
		rec := doJSON(t, srv, http.MethodPost, "/calendar", bad)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestReportEndpoint(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := doJSON(t, srv, http.MethodPost, "/report", ProfileRequest{Profile: serviceProfile(), Reference: "2025-03-01"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var facts domain.ReportFacts
	if err := json.Unmarshal(rec.Body.Bytes(), &facts); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(facts.ApplicableIDs) == 0 {
		t.Fatal("expected applicable obligations")
	}
	if facts.Costs.TotalAnnualCost <= 0 {
		t.Errorf("expected positive total cost, got %v", facts.Costs.TotalAnnualCost)
	}
	if facts.Risk.RiskScore < 0 || facts.Risk.RiskScore > 10 {
		t.Errorf("risk score out of range: %d", facts.Risk.RiskScore)
	}
	if facts.Overview.TotalObligations != len(facts.ApplicableIDs) {
		t.Errorf("overview total %d does not match ids %d", facts.Overview.TotalObligations, len(facts.ApplicableIDs))
	}
}

func TestObligationEndpoints(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("List", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/obligations", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if body.Count != 10 {
			t.Errorf("expected 10 obligations, got %d", body.Count)
		}
	})

	t.Run("Get", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/obligations/gst", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var rule domain.ObligationRule
		if err := json.Unmarshal(rec.Body.Bytes(), &rule); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if rule.ID != domain.ObligationGST {
			t.Errorf("expected gst, got %s", rule.ID)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/obligations/nope", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	custom := domain.ObligationRule{
		ID:       "pollution-consent",
		Name:     "Pollution Control Consent",
		Category: domain.CategoryEnvironmental,
		Applicability: domain.Applicability{
			Condition:  "Manufacturing with 50+ employees",
			Expression: `business_type == "Manufacturing" && employees >= 50`,
		},
		Frequency: "annual",
		Forms: []domain.FormSpec{{
			Name:        "Consent to Operate Renewal",
			Description: "State pollution board consent renewal",
			Deadline:    domain.DeadlineRule{Kind: domain.DeadlineAnnual, Day: 31},
		}},
		Enabled: true,
	}

	t.Run("Create", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/obligations", custom)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("CustomRuleMatches", func(t *testing.T) {
		p := domain.BusinessProfile{
			BusinessType: domain.BusinessManufacturing,
			State:        "Gujarat",
			Turnover:     domain.Turnover1Crto5Cr,
			Employees:    domain.Employees50to99,
		}
		rec := doJSON(t, srv, http.MethodPost, "/match", ProfileRequest{Profile: p})
		var resp MatchResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		found := false
		for _, id := range resp.ApplicableIDs {
			if id == "pollution-consent" {
				found = true
			}
		}
		if !found {
			t.Error("expected custom obligation to match")
		}
	})

	t.Run("CreateWithBadExpression", func(t *testing.T) {
		bad := custom
		bad.ID = "bad-rule"
		bad.Applicability.Expression = `turnover + 1`
		rec := doJSON(t, srv, http.MethodPost, "/obligations", bad)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("CreateOverBuiltin", func(t *testing.T) {
		bad := custom
		bad.ID = domain.ObligationGST
		rec := doJSON(t, srv, http.MethodPost, "/obligations", bad)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("DeleteBuiltin", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodDelete, "/obligations/gst", nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("DeleteCustom", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodDelete, "/obligations/pollution-consent", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		rec = doJSON(t, srv, http.MethodGet, "/obligations/pollution-consent", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", rec.Code)
		}
	})

	t.Run("ReloadWithoutRepository", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/obligations/reload", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestCatalogMetadataEndpoint(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := doJSON(t, srv, http.MethodGet, "/catalog/metadata", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var meta domain.CatalogMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if meta.Version == "" {
		t.Error("expected catalog version")
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/match", ProfileRequest{Profile: serviceProfile()})
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := doJSON(t, srv, http.MethodPost, "/match", ProfileRequest{Profile: serviceProfile()})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Health stays reachable when limited
	health := doJSON(t, srv, http.MethodGet, "/health", nil)
	if health.Code != http.StatusOK {
		t.Errorf("expected health 200, got %d", health.Code)
	}
}
