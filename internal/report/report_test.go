package report

import (
	"context"
	"testing"
	"time"

	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	cat, err := catalog.Load(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	return NewBuilder(cat)
}

func TestSizeMultiplier(t *testing.T) {
	tests := []struct {
		employees int
		want      float64
	}{
		{5, 0.8},
		{9, 0.8},
		{10, 1.0},
		{35, 1.0},
		{49, 1.0},
		{50, 1.3},
		{99, 1.3},
		{100, 1.5},
		{150, 1.5},
	}
	for _, tc := range tests {
		if got := sizeMultiplier(tc.employees); got != tc.want {
			t.Errorf("sizeMultiplier(%d) = %v, want %v", tc.employees, got, tc.want)
		}
	}
}

func TestCosts(t *testing.T) {
	b := newTestBuilder(t)

	t.Run("baseline at standard size", func(t *testing.T) {
		costs := b.Costs([]string{domain.ObligationGST}, domain.BusinessProfile{EmployeeCount: 35})
		if len(costs) != 1 {
			t.Fatalf("got %d breakdowns, want 1", len(costs))
		}
		c := costs[0]
		if c.Total != 20000 {
			t.Errorf("gst total = %v, want 20000", c.Total)
		}
		if c.ObligationName != "GST Returns" {
			t.Errorf("name = %q, want GST Returns", c.ObligationName)
		}
	})

	t.Run("small business discount", func(t *testing.T) {
		costs := b.Costs([]string{domain.ObligationEPF}, domain.BusinessProfile{EmployeeCount: 5})
		// 6000*0.8 + 3000*0.8 = 7200
		if costs[0].Total != 7200 {
			t.Errorf("epf total at small size = %v, want 7200", costs[0].Total)
		}
	})

	t.Run("software cost not scaled", func(t *testing.T) {
		costs := b.Costs([]string{domain.ObligationGST}, domain.BusinessProfile{EmployeeCount: 150})
		if costs[0].Software != 6000 {
			t.Errorf("software cost = %v, want 6000 regardless of size", costs[0].Software)
		}
		// 12000*1.5 + 6000 + 2000*1.5 = 27000
		if costs[0].Total != 27000 {
			t.Errorf("gst total at large size = %v, want 27000", costs[0].Total)
		}
	})

	t.Run("unknown obligation gets default cost", func(t *testing.T) {
		costs := b.Costs([]string{"custom-levy"}, domain.BusinessProfile{EmployeeCount: 35})
		if costs[0].Total != 3000 {
			t.Errorf("default total = %v, want 3000", costs[0].Total)
		}
		if costs[0].ObligationName != "custom-levy" {
			t.Errorf("unknown obligation name = %q, want the id", costs[0].ObligationName)
		}
	})
}

func TestRisk(t *testing.T) {
	b := newTestBuilder(t)
	b.now = func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }

	t.Run("small clean profile is low risk", func(t *testing.T) {
		risk := b.Risk(domain.BusinessProfile{BusinessType: domain.BusinessService},
			nil, []string{domain.ObligationIncomeTax, domain.ObligationShopsEstab})
		if risk.OverallRisk != domain.RiskLow {
			t.Errorf("overall = %s, want Low", risk.OverallRisk)
		}
		if len(risk.Recommendations) == 0 {
			t.Error("expected recommendations")
		}
	})

	t.Run("heavy profile is high risk", func(t *testing.T) {
		ids := []string{
			domain.ObligationGST, domain.ObligationEPF, domain.ObligationESI,
			domain.ObligationProfessionalTax, domain.ObligationTDS,
			domain.ObligationMSMEReturn, domain.ObligationIncomeTax,
			domain.ObligationShopsEstab,
		}
		var entries []domain.CalendarEntry
		for day := 5; day <= 25; day += 3 {
			entries = append(entries, domain.CalendarEntry{
				DueDate: time.Date(2025, time.June, day, 0, 0, 0, 0, time.UTC),
			})
		}
		risk := b.Risk(domain.BusinessProfile{
			BusinessType:   domain.BusinessManufacturing,
			MSMERegistered: true,
		}, entries, ids)

		// 2 (count) + 2 (near-term filings) + 2 (high-penalty) + 1 + 1 = 8
		if risk.RiskScore != 8 {
			t.Errorf("score = %d, want 8", risk.RiskScore)
		}
		if risk.OverallRisk != domain.RiskHigh {
			t.Errorf("overall = %s, want High", risk.OverallRisk)
		}
		if len(risk.RiskFactors) != 5 {
			t.Errorf("got %d factors, want 5", len(risk.RiskFactors))
		}
	})

	t.Run("score capped at ten", func(t *testing.T) {
		ids := []string{
			domain.ObligationGST, domain.ObligationEPF, domain.ObligationESI,
			domain.ObligationProfessionalTax, domain.ObligationTDS,
			domain.ObligationMSMEReturn, domain.ObligationMSMEForm1,
			domain.ObligationIncomeTax, domain.ObligationTaxAudit,
			domain.ObligationShopsEstab, "custom-a", "custom-b",
		}
		risk := b.Risk(domain.BusinessProfile{BusinessType: domain.BusinessManufacturing, MSMERegistered: true}, nil, ids)
		if risk.RiskScore > 10 {
			t.Errorf("score = %d, must not exceed 10", risk.RiskScore)
		}
	})
}

func TestOverview(t *testing.T) {
	b := newTestBuilder(t)

	ids := []string{
		domain.ObligationGST,       // monthly forms
		domain.ObligationTDS,       // monthly + quarterly, counts as monthly
		domain.ObligationIncomeTax, // annual
		domain.ObligationMSMEForm1, // fixed, counts as annual
		"unknown-id",               // skipped
	}
	entries := []domain.CalendarEntry{
		{Category: domain.CategoryTax},
		{Category: domain.CategoryTax},
		{Category: domain.CategoryStatutory},
	}

	ov := b.Overview(ids, entries)
	if ov.TotalObligations != 5 {
		t.Errorf("total = %d, want 5", ov.TotalObligations)
	}
	if ov.MonthlyObligations != 2 {
		t.Errorf("monthly = %d, want 2", ov.MonthlyObligations)
	}
	if ov.QuarterlyObligations != 0 {
		t.Errorf("quarterly = %d, want 0", ov.QuarterlyObligations)
	}
	if ov.AnnualObligations != 2 {
		t.Errorf("annual = %d, want 2", ov.AnnualObligations)
	}
	if ov.CategoryBreakdown["Tax"] != 2 || ov.CategoryBreakdown["Statutory"] != 1 {
		t.Errorf("category breakdown = %v", ov.CategoryBreakdown)
	}
}

func TestDeadlineBuckets(t *testing.T) {
	b := newTestBuilder(t)
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	entry := func(days int) domain.CalendarEntry {
		return domain.CalendarEntry{DueDate: now.AddDate(0, 0, days)}
	}
	entries := []domain.CalendarEntry{
		entry(-3), // past, excluded everywhere
		entry(2),
		entry(7),
		entry(20),
		entry(60),
		entry(120), // beyond all buckets
	}

	d := b.Deadlines(entries)
	if len(d.Next7Days) != 2 {
		t.Errorf("next7 = %d, want 2", len(d.Next7Days))
	}
	if len(d.Next30Days) != 3 {
		t.Errorf("next30 = %d, want 3 (cumulative)", len(d.Next30Days))
	}
	if len(d.Next90Days) != 4 {
		t.Errorf("next90 = %d, want 4 (cumulative)", len(d.Next90Days))
	}
}

func TestBuild(t *testing.T) {
	b := newTestBuilder(t)
	b.now = func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }

	profile := domain.BusinessProfile{
		BusinessType:  domain.BusinessService,
		State:         "Maharashtra",
		EmployeeCount: 35,
	}
	ids := []string{domain.ObligationGST, domain.ObligationIncomeTax}

	facts := b.Build(profile, nil, ids)
	if facts.Costs.TotalAnnualCost != 33000 { // 20000 + 13000
		t.Errorf("total cost = %v, want 33000", facts.Costs.TotalAnnualCost)
	}
	if facts.Overview.TotalObligations != 2 {
		t.Errorf("overview total = %d, want 2", facts.Overview.TotalObligations)
	}
	if facts.GeneratedAt.IsZero() {
		t.Error("generatedAt not set")
	}
	if len(facts.ApplicableIDs) != 2 {
		t.Errorf("applicable ids = %v", facts.ApplicableIDs)
	}
}
