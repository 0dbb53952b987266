package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var hundred = decimal.NewFromInt(100)

// TotalsFor sums income and expense amounts. Balance is income minus
// expense, computed in decimal so the identity holds exactly.
func TotalsFor(entries []core.Transaction) core.Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, e := range entries {
		switch e.Type {
		case core.Income:
			income = income.Add(e.Amount)
		case core.Expense:
			expense = expense.Add(e.Amount)
		}
	}
	return core.Totals{Income: income, Expense: expense, Balance: income.Sub(expense)}
}

// GroupByCategory sums amounts of entries of type t per category.
// Categories without matching entries are absent from the result.
func GroupByCategory(entries []core.Transaction, t core.EntryType) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, e := range entries {
		if e.Type != t {
			continue
		}
		out[e.Category] = out[e.Category].Add(e.Amount)
	}
	return out
}

// BucketByPeriod totals entries per interval. An entry counts toward the
// first interval containing its date; entries outside every interval are
// ignored. Intervals must not overlap.
func BucketByPeriod(entries []core.Transaction, intervals []core.Interval) []core.BucketTotal {
	buckets := make([]core.BucketTotal, len(intervals))
	members := make([][]core.Transaction, len(intervals))
	for i, iv := range intervals {
		buckets[i].Interval = iv
	}
	for _, e := range entries {
		for i, iv := range intervals {
			if iv.Contains(e.Date) {
				members[i] = append(members[i], e)
				break
			}
		}
	}
	for i := range buckets {
		buckets[i].Totals = TotalsFor(members[i])
		buckets[i].Count = len(members[i])
	}
	return buckets
}

// Percent returns part as a percentage of total rounded to two places.
// A zero total yields zero.
func Percent(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred).Round(2)
}

// CategoryShares is GroupByCategory with each category's share of the
// type's total, sorted by amount descending then name.
func CategoryShares(entries []core.Transaction, t core.EntryType) []core.CategoryAmount {
	groups := GroupByCategory(entries, t)
	total := decimal.Zero
	for _, amount := range groups {
		total = total.Add(amount)
	}

	out := make([]core.CategoryAmount, 0, len(groups))
	for name, amount := range groups {
		out = append(out, core.CategoryAmount{Name: name, Amount: amount, Percent: Percent(amount, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MonthlyIntervals returns the n calendar months ending with the month
// containing now, oldest first.
func MonthlyIntervals(now time.Time, n int) []core.Interval {
	today := core.DateOf(now)
	current := core.NewDate(today.Year(), int(today.Month()), 1)
	out := make([]core.Interval, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := core.Date{Time: current.AddDate(0, -i, 0)}
		out = append(out, core.Interval{Start: start, End: core.Date{Time: start.AddDate(0, 1, 0)}})
	}
	return out
}

// WeeklyIntervals returns the n weeks ending with the week containing now,
// oldest first.
func WeeklyIntervals(now time.Time, n int, weekStart time.Weekday) []core.Interval {
	current := core.StartOfWeek(core.DateOf(now), weekStart)
	out := make([]core.Interval, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := current.AddDays(-7 * i)
		out = append(out, core.Interval{Start: start, End: start.AddDays(7)})
	}
	return out
}

// DailyIntervals returns the n days ending with today, oldest first.
func DailyIntervals(now time.Time, n int) []core.Interval {
	today := core.DateOf(now)
	out := make([]core.Interval, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := today.AddDays(-i)
		out = append(out, core.Interval{Start: start, End: start.AddDays(1)})
	}
	return out
}

// IntervalsFor builds n buckets of the named period ending at now.
func IntervalsFor(period string, now time.Time, n int, weekStart time.Weekday) ([]core.Interval, error) {
	if n <= 0 || n > 366 {
		return nil, core.NewValidationError("count", "count must be between 1 and 366")
	}
	switch period {
	case "day":
		return DailyIntervals(now, n), nil
	case "week":
		return WeeklyIntervals(now, n, weekStart), nil
	case "month", "":
		return MonthlyIntervals(now, n), nil
	default:
		return nil, core.NewValidationError("period", "period must be day, week or month")
	}
}
