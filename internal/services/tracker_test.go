package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/repository"
)

func newTracker(t *testing.T, h *harness) *Tracker {
	t.Helper()
	profileRepo := repository.New(h.kv, repository.KeyProfile, repository.WithDefault(core.DefaultProfile))
	profiles := NewProfileService(profileRepo, nil, nil)
	return NewTracker(h.entries, h.templates, h.processor, profiles, nil, h.clock, time.Monday)
}

func TestTracker_TotalsViewAndSeries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC))
	tr := newTracker(t, h)

	for _, e := range []core.Transaction{
		entry(core.Income, "2000", "Salary", "Pay", core.NewDate(2024, 3, 1)),
		entry(core.Expense, "50", "Food", "Groceries", core.NewDate(2024, 3, 12)),
		entry(core.Expense, "150", "Transport", "Train", core.NewDate(2024, 2, 20)),
	} {
		_, err := h.entries.Create(ctx, e)
		require.NoError(t, err)
	}

	totals, err := tr.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1800", totals.Balance.String())

	view, err := tr.View(ctx, Criteria{DateRange: core.RangeMonth, Type: "expense"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Groceries"}, descriptions(view))

	shares, total, err := tr.Breakdown(ctx, core.Expense, core.RangeAll)
	require.NoError(t, err)
	assert.Equal(t, "200", total.String())
	assert.Equal(t, "Transport", shares[0].Name)

	series, err := tr.Series(ctx, "month", 2)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 1, series[0].Count)
	assert.Equal(t, 2, series[1].Count)
}

func TestTracker_ProfileDrivesWeekStartAndCurrency(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC))
	tr := newTracker(t, h)

	assert.Equal(t, time.Monday, tr.WeekStart(ctx))
	assert.Equal(t, "EUR", tr.Currency(ctx))

	_, err := tr.Profiles.Update(ctx, core.Profile{Name: " Ada ", Currency: "usd", Theme: "dark", WeekStart: "sunday"})
	require.NoError(t, err)

	assert.Equal(t, time.Sunday, tr.WeekStart(ctx))
	assert.Equal(t, "USD", tr.Currency(ctx))

	_, err = tr.Profiles.Update(ctx, core.Profile{Currency: "EURO", Theme: "dark"})
	assert.True(t, core.IsValidation(err))
}

func TestTracker_BreakdownRejectsBadType(t *testing.T) {
	h := newHarness(t, time.Now())
	_, _, err := newTracker(t, h).Breakdown(context.Background(), "transfer", core.RangeAll)
	assert.True(t, core.IsValidation(err))
}

func TestProfileService_Categories(t *testing.T) {
	h := newHarness(t, time.Now())
	cats := newTracker(t, h).Profiles.Categories()
	assert.Contains(t, cats[core.Expense], "Food")
	assert.Contains(t, cats[core.Income], "Salary")
}
