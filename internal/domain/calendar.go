package domain

import "time"

// Priority reflects how soon an entry is due, measured from the real current
// date at generation time (not from the window's reference date).
type Priority string

const (
	PriorityHigh   Priority = "High"   // due in under 7 days
	PriorityMedium Priority = "Medium" // due in 7-29 days
	PriorityLow    Priority = "Low"    // due in 30+ days
)

// CalendarEntry is one concrete, dated obligation instance. Entries are
// created fresh on every generation call and never mutated afterward.
type CalendarEntry struct {
	// ID is unique within a generated batch: obligation id, normalized form
	// name, ISO date, and a disambiguating index.
	ID string `json:"id"`

	ObligationID   string `json:"complianceId"`
	ObligationName string `json:"complianceName"`
	FormName       string `json:"formName"`
	Description    string `json:"description"`

	// DueDate carries a calendar date only; the time component is always
	// midnight UTC.
	DueDate time.Time `json:"dueDate"`

	// Month is the due date formatted as e.g. "January 2025". Month-based
	// grouping and filtering elsewhere compares this string exactly.
	Month string `json:"month"`

	Category  Category   `json:"category"`
	Priority  Priority   `json:"priority"`
	Penalty   string     `json:"penalty"`
	Resources []Resource `json:"resources"`
}

// MonthLabel formats a date the way CalendarEntry.Month does. Every producer
// and consumer of month strings goes through this one function.
func MonthLabel(t time.Time) string {
	return t.Format("January 2006")
}
