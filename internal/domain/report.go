package domain

import "time"

// CostBreakdown itemizes the estimated annual cost of one obligation.
// Amounts are rupees per year.
type CostBreakdown struct {
	ObligationID    string  `json:"complianceId"`
	ObligationName  string  `json:"complianceName"`
	FilingFee       float64 `json:"filingFee"`
	ProfessionalFee float64 `json:"professionalFee"`
	Software        float64 `json:"software"`
	TimeValue       float64 `json:"timeValue"`
	Total           float64 `json:"total"`
}

// RiskLevel grades a risk factor or the overall assessment.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskFactor is one contributor to the overall risk score.
type RiskFactor struct {
	Factor      string    `json:"factor"`
	Severity    RiskLevel `json:"severity"`
	Impact      int       `json:"impact"` // 1-5
	Description string    `json:"description"`
	Mitigation  string    `json:"mitigation"`
}

// RiskAssessment summarizes compliance risk for a profile.
type RiskAssessment struct {
	OverallRisk     RiskLevel    `json:"overallRisk"`
	RiskScore       int          `json:"riskScore"` // 0-10
	RiskFactors     []RiskFactor `json:"riskFactors"`
	Recommendations []string     `json:"recommendations"`
}

// ComplianceOverview counts obligations by frequency and category.
type ComplianceOverview struct {
	TotalObligations     int            `json:"totalCompliances"`
	MonthlyObligations   int            `json:"monthlyCompliances"`
	QuarterlyObligations int            `json:"quarterlyCompliances"`
	AnnualObligations    int            `json:"annualCompliances"`
	CategoryBreakdown    map[string]int `json:"categoryBreakdown"`
}

// UpcomingDeadlines buckets calendar entries by how soon they fall due.
type UpcomingDeadlines struct {
	Next7Days  []CalendarEntry `json:"next7Days"`
	Next30Days []CalendarEntry `json:"next30Days"`
	Next90Days []CalendarEntry `json:"next90Days"`
}

// CostAnalysis aggregates per-obligation costs.
type CostAnalysis struct {
	TotalAnnualCost float64         `json:"totalAnnualCost"`
	Breakdown       []CostBreakdown `json:"breakdown"`
}

// ReportFacts is the structured output consumed by downstream narrative
// generation. Prose rendering is not this service's concern; it only emits
// the facts.
type ReportFacts struct {
	Profile           BusinessProfile    `json:"businessProfile"`
	ApplicableIDs     []string           `json:"applicableCompliances"`
	Overview          ComplianceOverview `json:"complianceOverview"`
	UpcomingDeadlines UpcomingDeadlines  `json:"upcomingCriticalDeadlines"`
	Costs             CostAnalysis       `json:"costAnalysis"`
	Risk              RiskAssessment     `json:"riskAssessment"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}
