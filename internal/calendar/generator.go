// Package calendar expands matched obligations into dated calendar entries
// over a 12-month window.
package calendar

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
)

// WindowMonths is the generation window length.
const WindowMonths = 12

// Generator expands obligation IDs into calendar entries. All dates it
// produces are midnight UTC.
type Generator struct {
	catalog *catalog.Catalog
	logger  *slog.Logger

	// now supplies the real current time for priority calculation. Priority
	// is always measured from now, not from the window's reference date.
	now func() time.Time
}

// NewGenerator creates a calendar generator over the given catalog.
func NewGenerator(cat *catalog.Catalog, logger *slog.Logger) *Generator {
	return &Generator{
		catalog: cat,
		logger:  logger,
		now:     time.Now,
	}
}

// Generate produces every dated entry for the given obligation IDs within
// [reference, reference+12 months), sorted ascending by due date. Unknown
// IDs and unrecognized deadline kinds are skipped; partial output is always
// preferred over failure.
func (g *Generator) Generate(obligationIDs []string, reference time.Time) []domain.CalendarEntry {
	reference = midnightUTC(reference)

	var entries []domain.CalendarEntry
	for _, id := range obligationIDs {
		rule, ok := g.catalog.Get(id)
		if !ok {
			if g.logger != nil {
				g.logger.Warn("obligation not found in catalog", "obligation", id)
			}
			continue
		}
		for formIdx, form := range rule.Forms {
			dates := g.dueDates(rule.ID, form, reference)
			for dateIdx, due := range dates {
				entries = append(entries, newEntry(rule, form, due, formIdx*1000+dateIdx, g.now()))
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DueDate.Before(entries[j].DueDate)
	})
	return entries
}

// dueDates expands a form's deadline rule into concrete dates, then filters
// them to the window. The shift-forward rules below compare only against the
// reference date, so a candidate near the end of the window can shift past
// it; the final filter drops those.
func (g *Generator) dueDates(obligationID string, form domain.FormSpec, reference time.Time) []time.Time {
	d := form.Deadline
	var dates []time.Time

	switch d.Kind {
	case domain.DeadlineMonthly:
		for i := 0; i < WindowMonths; i++ {
			month := addMonths(reference, i)
			due := dayInMonth(month, d.Day)
			if due.Before(reference) {
				due = dayInMonth(addMonths(month, 1), d.Day)
			}
			dates = append(dates, due)
		}

	case domain.DeadlineQuarterly:
		// Quarters align to the calendar (Jan/Apr/Jul/Oct), starting from
		// the quarter containing the reference date.
		quarterStart := time.Date(reference.Year(), reference.Month()-(reference.Month()-1)%3, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < WindowMonths; i += 3 {
			month := addMonths(quarterStart, i)
			due := dayInMonth(month, d.Day)
			if due.Before(reference) {
				due = dayInMonth(addMonths(month, 3), d.Day)
			}
			dates = append(dates, due)
		}

	case domain.DeadlineAnnual, domain.DeadlineFixed:
		// One January date per year, pushed to next year once it has passed.
		due := time.Date(reference.Year(), time.January, d.Day, 0, 0, 0, 0, time.UTC)
		if due.Before(reference) {
			due = time.Date(reference.Year()+1, time.January, d.Day, 0, 0, 0, 0, time.UTC)
		}
		dates = append(dates, due)

	default:
		if g.logger != nil {
			g.logger.Warn("unrecognized deadline type",
				"obligation", obligationID, "form", form.Name, "type", string(d.Kind))
		}
		return nil
	}

	kept := dates[:0]
	for _, due := range dates {
		offset := monthOffset(reference, due)
		if offset >= 0 && offset < WindowMonths {
			kept = append(kept, due)
		}
	}
	return kept
}

func newEntry(rule *domain.ObligationRule, form domain.FormSpec, due time.Time, index int, now time.Time) domain.CalendarEntry {
	return domain.CalendarEntry{
		ID:             entryID(rule.ID, form.Name, due, index),
		ObligationID:   rule.ID,
		ObligationName: rule.Name,
		FormName:       form.Name,
		Description:    form.Description,
		DueDate:        due,
		Month:          domain.MonthLabel(due),
		Category:       rule.Category,
		Priority:       priorityFor(due, now),
		Penalty:        form.Penalty,
		Resources:      rule.Resources,
	}
}

func entryID(obligationID, formName string, due time.Time, index int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(formName)), "-")
	return fmt.Sprintf("%s-%s-%s-%d", obligationID, normalized, due.Format("2006-01-02"), index)
}

// priorityFor buckets an entry by full days between now and its due date:
// under 7 is High, 7 to 29 is Medium, 30 and beyond is Low.
func priorityFor(due, now time.Time) domain.Priority {
	days := int(due.Sub(now).Hours() / 24)
	switch {
	case days < 7:
		return domain.PriorityHigh
	case days < 30:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// monthOffset counts calendar months from a to b, ignoring the day.
func monthOffset(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// addMonths moves to the first of the month i months after t's month.
func addMonths(t time.Time, i int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
}

// dayInMonth places day within t's month. Out-of-range days normalize
// forward (day 31 in April becomes May 1), matching calendar arithmetic
// elsewhere in the generator.
func dayInMonth(t time.Time, day int) time.Time {
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, time.UTC)
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
