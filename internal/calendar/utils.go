package calendar

import (
	"sort"
	"strings"

	"github.com/opencompliance/complycal/internal/domain"
)

// SortByDate returns a copy of the entries sorted ascending by due date.
func SortByDate(entries []domain.CalendarEntry) []domain.CalendarEntry {
	out := make([]domain.CalendarEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}

// FilterByMonth returns the entries whose month label matches exactly,
// e.g. "January 2025".
func FilterByMonth(entries []domain.CalendarEntry, month string) []domain.CalendarEntry {
	var out []domain.CalendarEntry
	for _, e := range entries {
		if e.Month == month {
			out = append(out, e)
		}
	}
	return out
}

// FilterByCategory returns the entries in the given category,
// case-insensitively. An empty category or "all" passes everything through.
func FilterByCategory(entries []domain.CalendarEntry, category string) []domain.CalendarEntry {
	if category == "" || strings.EqualFold(category, "all") {
		return entries
	}
	var out []domain.CalendarEntry
	for _, e := range entries {
		if strings.EqualFold(string(e.Category), category) {
			out = append(out, e)
		}
	}
	return out
}

// GroupByMonth buckets entries by their month label, sorting each bucket
// ascending by due date.
func GroupByMonth(entries []domain.CalendarEntry) map[string][]domain.CalendarEntry {
	grouped := make(map[string][]domain.CalendarEntry)
	for _, e := range entries {
		grouped[e.Month] = append(grouped[e.Month], e)
	}
	for month, bucket := range grouped {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].DueDate.Before(bucket[j].DueDate)
		})
		grouped[month] = bucket
	}
	return grouped
}
