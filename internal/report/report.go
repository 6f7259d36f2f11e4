// Package report derives structured compliance facts from a profile and
// its generated calendar: cost estimates, a risk assessment, frequency
// counts, and deadline buckets. It emits facts only; narrative rendering
// belongs to clients.
package report

import (
	"math"
	"time"

	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
)

type baseCost struct {
	filingFee       float64
	professionalFee float64
	software        float64
	timeValue       float64
}

// Annual cost estimates per obligation, in rupees, before size adjustment.
var obligationCosts = map[string]baseCost{
	domain.ObligationGST:             {0, 12000, 6000, 2000},
	domain.ObligationEPF:             {0, 6000, 0, 3000},
	domain.ObligationESI:             {0, 4000, 0, 2000},
	domain.ObligationProfessionalTax: {0, 2000, 0, 1000},
	domain.ObligationTDS:             {0, 5000, 2000, 1000},
	domain.ObligationTaxAudit:        {0, 25000, 5000, 0},
	domain.ObligationIncomeTax:       {0, 8000, 3000, 2000},
	domain.ObligationMSMEReturn:      {0, 1500, 0, 500},
	domain.ObligationMSMEForm1:       {0, 1000, 0, 0},
	domain.ObligationShopsEstab:      {0, 2000, 0, 500},
}

// defaultCost covers custom obligations with no entry in the table.
var defaultCost = baseCost{0, 2000, 0, 1000}

// Builder assembles report facts against a catalog.
type Builder struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewBuilder creates a report builder over the given catalog.
func NewBuilder(cat *catalog.Catalog) *Builder {
	return &Builder{catalog: cat, now: time.Now}
}

// Build assembles the full fact set for a matched profile.
func (b *Builder) Build(profile domain.BusinessProfile, entries []domain.CalendarEntry, obligationIDs []string) *domain.ReportFacts {
	costs := b.Costs(obligationIDs, profile)
	var total float64
	for _, c := range costs {
		total += c.Total
	}
	return &domain.ReportFacts{
		Profile:           profile,
		ApplicableIDs:     obligationIDs,
		Overview:          b.Overview(obligationIDs, entries),
		UpcomingDeadlines: b.Deadlines(entries),
		Costs:             domain.CostAnalysis{TotalAnnualCost: total, Breakdown: costs},
		Risk:              b.Risk(profile, entries, obligationIDs),
		GeneratedAt:       b.now(),
	}
}

// sizeMultiplier scales professional and time costs by business size.
// Small businesses pay less for the same filings; larger ones pay more.
func sizeMultiplier(employeeCount int) float64 {
	switch {
	case employeeCount < 10:
		return 0.8
	case employeeCount >= 100:
		return 1.5
	case employeeCount >= 50:
		return 1.3
	default:
		return 1.0
	}
}

// Costs itemizes the estimated annual cost of each obligation, scaled by
// the profile's size. Filing fees and software costs are size-independent.
func (b *Builder) Costs(obligationIDs []string, profile domain.BusinessProfile) []domain.CostBreakdown {
	mult := sizeMultiplier(profile.EmployeeCount)

	out := make([]domain.CostBreakdown, 0, len(obligationIDs))
	for _, id := range obligationIDs {
		base, ok := obligationCosts[id]
		if !ok {
			base = defaultCost
		}
		professional := math.Round(base.professionalFee * mult)
		timeValue := math.Round(base.timeValue * mult)
		out = append(out, domain.CostBreakdown{
			ObligationID:    id,
			ObligationName:  b.obligationName(id),
			FilingFee:       base.filingFee,
			ProfessionalFee: professional,
			Software:        base.software,
			TimeValue:       timeValue,
			Total:           base.filingFee + professional + base.software + timeValue,
		})
	}
	return out
}

func (b *Builder) obligationName(id string) string {
	if r, ok := b.catalog.Get(id); ok {
		return r.Name
	}
	return id
}

// Risk scores the profile's compliance burden on a 0-10 scale from five
// additive factors.
func (b *Builder) Risk(profile domain.BusinessProfile, entries []domain.CalendarEntry, obligationIDs []string) domain.RiskAssessment {
	score := 0
	var factors []domain.RiskFactor

	switch n := len(obligationIDs); {
	case n > 10:
		score += 3
		factors = append(factors, domain.RiskFactor{
			Factor:      "High number of compliances",
			Severity:    domain.RiskHigh,
			Impact:      4,
			Description: "Many distinct compliance requirements to manage",
			Mitigation:  "Consider compliance management software or a dedicated compliance officer",
		})
	case n > 5:
		score += 2
		factors = append(factors, domain.RiskFactor{
			Factor:      "Moderate number of compliances",
			Severity:    domain.RiskMedium,
			Impact:      3,
			Description: "Several compliance requirements to track",
			Mitigation:  "Set up a compliance calendar and regular reminders",
		})
	}

	if nearTerm := b.nearTermCount(entries); nearTerm > 5 {
		score += 2
		factors = append(factors, domain.RiskFactor{
			Factor:      "High-frequency filings",
			Severity:    domain.RiskHigh,
			Impact:      4,
			Description: "Multiple filing deadlines fall due within the coming two months",
			Mitigation:  "Consider automation or outsourcing to reduce manual effort",
		})
	}

	for _, id := range obligationIDs {
		if id == domain.ObligationGST || id == domain.ObligationEPF || id == domain.ObligationTDS {
			score += 2
			factors = append(factors, domain.RiskFactor{
				Factor:      "High-penalty compliances",
				Severity:    domain.RiskHigh,
				Impact:      5,
				Description: "GST, EPF and TDS carry significant penalty and interest exposure",
				Mitigation:  "Ensure timely filing; consider professional help for these obligations",
			})
			break
		}
	}

	if profile.BusinessType == domain.BusinessManufacturing {
		score++
		factors = append(factors, domain.RiskFactor{
			Factor:      "Manufacturing complexity",
			Severity:    domain.RiskMedium,
			Impact:      2,
			Description: "Manufacturing units face additional environmental and safety requirements",
			Mitigation:  "Stay current on pollution control and factory regulations",
		})
	}

	if profile.MSMERegistered {
		score++
		factors = append(factors, domain.RiskFactor{
			Factor:      "MSME registration",
			Severity:    domain.RiskLow,
			Impact:      2,
			Description: "Udyam registration carries its own filing obligations",
			Mitigation:  "File the MSME annual return on time to keep registration active",
		})
	}

	var overall domain.RiskLevel
	switch {
	case score <= 3:
		overall = domain.RiskLow
	case score <= 6:
		overall = domain.RiskMedium
	default:
		overall = domain.RiskHigh
	}

	var recommendations []string
	switch {
	case score > 6:
		recommendations = []string{
			"Consider hiring a dedicated compliance officer or CA firm",
			"Implement compliance management software",
			"Set up automated reminders for all deadlines",
		}
	case score > 3:
		recommendations = []string{
			"Use a compliance calendar to track all deadlines",
			"Consider professional help for high-penalty compliances",
			"Schedule regular compliance reviews",
		}
	default:
		recommendations = []string{
			"Maintain current compliance practices",
			"Set up a basic reminder system",
		}
	}

	if score > 10 {
		score = 10
	}
	return domain.RiskAssessment{
		OverallRisk:     overall,
		RiskScore:       score,
		RiskFactors:     factors,
		Recommendations: recommendations,
	}
}

// nearTermCount counts entries due in the current or next calendar month.
func (b *Builder) nearTermCount(entries []domain.CalendarEntry) int {
	nowMonth := int(b.now().Month())
	count := 0
	for _, e := range entries {
		diff := (int(e.DueDate.Month()) - nowMonth + 12) % 12
		if diff <= 1 {
			count++
		}
	}
	return count
}

// Overview counts obligations by filing frequency and calendar entries by
// category. Frequency is taken from each obligation's most frequent form.
func (b *Builder) Overview(obligationIDs []string, entries []domain.CalendarEntry) domain.ComplianceOverview {
	ov := domain.ComplianceOverview{
		TotalObligations:  len(obligationIDs),
		CategoryBreakdown: make(map[string]int),
	}
	for _, id := range obligationIDs {
		rule, ok := b.catalog.Get(id)
		if !ok {
			continue
		}
		switch dominantKind(rule) {
		case domain.DeadlineMonthly:
			ov.MonthlyObligations++
		case domain.DeadlineQuarterly:
			ov.QuarterlyObligations++
		default:
			ov.AnnualObligations++
		}
	}
	for _, e := range entries {
		ov.CategoryBreakdown[string(e.Category)]++
	}
	return ov
}

// dominantKind picks the most frequent recurrence among an obligation's
// forms; an obligation with any monthly form is a monthly burden.
func dominantKind(rule *domain.ObligationRule) domain.DeadlineKind {
	kind := domain.DeadlineAnnual
	for _, f := range rule.Forms {
		switch f.Deadline.Kind {
		case domain.DeadlineMonthly:
			return domain.DeadlineMonthly
		case domain.DeadlineQuarterly:
			kind = domain.DeadlineQuarterly
		}
	}
	return kind
}

// Deadlines buckets entries by days until due from the real current time.
// Buckets are cumulative: an entry due in 5 days appears in all three.
func (b *Builder) Deadlines(entries []domain.CalendarEntry) domain.UpcomingDeadlines {
	now := b.now()
	var d domain.UpcomingDeadlines
	for _, e := range entries {
		days := int(math.Ceil(e.DueDate.Sub(now).Hours() / 24))
		if days < 0 {
			continue
		}
		if days <= 7 {
			d.Next7Days = append(d.Next7Days, e)
		}
		if days <= 30 {
			d.Next30Days = append(d.Next30Days, e)
		}
		if days <= 90 {
			d.Next90Days = append(d.Next90Days, e)
		}
	}
	return d
}
