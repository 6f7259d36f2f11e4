package domain

// Category groups obligations for filtering and reporting.
type Category string

const (
	CategoryTax           Category = "Tax"
	CategoryLabor         Category = "Labor"
	CategoryStatutory     Category = "Statutory"
	CategoryEnvironmental Category = "Environmental"
)

// DeadlineKind selects the recurrence algorithm for a form's due dates.
type DeadlineKind string

const (
	// DeadlineMonthly fires on a fixed day every month.
	DeadlineMonthly DeadlineKind = "monthly"

	// DeadlineQuarterly fires on a fixed day every third month, aligned to
	// calendar quarters (Jan/Apr/Jul/Oct), not to the reference month.
	DeadlineQuarterly DeadlineKind = "quarterly"

	// DeadlineAnnual fires once per calendar year in January.
	DeadlineAnnual DeadlineKind = "annual"

	// DeadlineFixed is currently expanded identically to DeadlineAnnual.
	// Whether it should mean a one-off calendar date instead is an open
	// product question; do not change the treatment without a ruling.
	DeadlineFixed DeadlineKind = "fixed"
)

// DeadlineRule is the recurrence definition for a form.
type DeadlineRule struct {
	Kind DeadlineKind `json:"type"`

	// Day is the target day of month (1-31) for monthly/quarterly kinds and
	// the January day for annual/fixed kinds.
	Day int `json:"day,omitempty"`

	// Formula and Calculation are human-readable descriptions carried through
	// to clients; the engine never parses them.
	Formula     string `json:"formula,omitempty"`
	Calculation string `json:"calculation,omitempty"`
}

// FormSpec is one filing requirement within an obligation.
type FormSpec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Deadline    DeadlineRule `json:"deadline"`
	Penalty     string       `json:"penalty"`
}

// Applicability describes when an obligation applies. For the ten built-in
// obligations this block is descriptive metadata (the matcher's predicates
// are compiled in); for custom obligations Expression carries a CEL predicate
// over the profile variables.
type Applicability struct {
	Condition  string             `json:"condition"`
	Thresholds map[string]float64 `json:"thresholds,omitempty"`
	States     []string           `json:"states,omitempty"`
	Expression string             `json:"expression,omitempty"`
}

// ContributionRate holds employer/employee contribution percentages for
// obligations that have them (EPF, ESI).
type ContributionRate struct {
	Employer string `json:"employer"`
	Employee string `json:"employee"`
}

// Resource is an external link shown alongside calendar entries.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ObligationRule is one entry in the rule catalog.
type ObligationRule struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Category      Category          `json:"category"`
	Applicability Applicability     `json:"applicability"`
	Frequency     string            `json:"frequency"`
	Forms         []FormSpec        `json:"forms"`
	Contribution  *ContributionRate `json:"contribution,omitempty"`
	Resources     []Resource        `json:"resources,omitempty"`

	// Builtin marks the ten obligations whose applicability is decided by
	// the matcher's compiled-in predicates rather than a CEL expression.
	Builtin bool `json:"builtin,omitempty"`

	Enabled bool `json:"enabled"`
}

// CatalogMetadata describes the provenance of the rule catalog.
type CatalogMetadata struct {
	Version       string `json:"version"`
	GeneratedAt   string `json:"generatedAt"`
	LastUpdated   string `json:"lastUpdated"`
	Source        string `json:"source"`
	ApplicableFor string `json:"applicableFor"`
	Disclaimer    string `json:"disclaimer"`
}

// Stable identifiers for the built-in obligations.
const (
	ObligationGST             = "gst"
	ObligationEPF             = "epf"
	ObligationESI             = "esi"
	ObligationProfessionalTax = "professional-tax"
	ObligationTDS             = "tds"
	ObligationMSMEReturn      = "msme-annual-return"
	ObligationMSMEForm1       = "msme-form-1"
	ObligationIncomeTax       = "income-tax"
	ObligationTaxAudit        = "tax-audit"
	ObligationShopsEstab      = "shops-establishments"
)
