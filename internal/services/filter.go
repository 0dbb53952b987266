package services

import (
	"sort"
	"strings"
	"time"

	"fintrack/internal/core"
)

// All disables the type, category or date range predicate.
const All = "all"

// Criteria selects entries for display. Empty fields behave like All.
type Criteria struct {
	SearchText string
	Type       string
	Category   string
	DateRange  core.DateRange
}

func (c Criteria) Validate() error {
	switch c.Type {
	case "", All, string(core.Income), string(core.Expense):
	default:
		return core.NewValidationError("type", "type must be all, income or expense")
	}
	if c.DateRange != "" && !c.DateRange.Valid() {
		return core.NewValidationError("range", "range must be all, today, week, month or year")
	}
	return nil
}

// Filter returns the entries matching every predicate in c, sorted by date
// descending. Entries sharing a date keep their original relative order.
func Filter(entries []core.Transaction, c Criteria, now time.Time, weekStart time.Weekday) ([]core.Transaction, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(c.SearchText))
	interval, bounded := core.IntervalFor(c.DateRange, now, weekStart)

	out := make([]core.Transaction, 0, len(entries))
	for _, e := range entries {
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Description), search) &&
			!strings.Contains(strings.ToLower(e.Category), search) {
			continue
		}
		if c.Type != "" && c.Type != All && string(e.Type) != c.Type {
			continue
		}
		if c.Category != "" && c.Category != All && e.Category != c.Category {
			continue
		}
		if bounded && !interval.Contains(e.Date) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}
