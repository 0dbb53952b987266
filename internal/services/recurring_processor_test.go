package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"fintrack/internal/claim/mocks"
	"fintrack/internal/core"
	"fintrack/internal/metrics"
	"fintrack/internal/repository"
)

func TestProcessDue_MonthlyFirstEmission(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	rt := h.addTemplate(t, rentTemplate(core.NewDate(2024, 1, 1), core.Monthly))

	result, err := h.processor.ProcessDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, result.Emitted, 1)
	assert.Empty(t, result.Failures)

	got := result.Emitted[0]
	assert.Equal(t, "2024-01-01", got.Date.String())
	assert.Equal(t, "Rent (Auto)", got.Description)
	assert.True(t, got.IsRecurring)
	assert.Equal(t, rt.ID, got.RecurringID)
	assert.True(t, got.Amount.Equal(rt.Amount))
	assert.Equal(t, core.Expense, got.Type)

	stored, err := h.templates.Get(ctx, rt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextDue)
	assert.Equal(t, "2024-02-01", stored.NextDue.String())
	require.NotNil(t, stored.LastProcessed)
	assert.Equal(t, "2024-01-01", stored.LastProcessed.String())

	entries, err := h.entries.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestProcessDue_TwiceAtSameInstantEmitsOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.addTemplate(t, rentTemplate(core.NewDate(2024, 1, 1), core.Monthly))
	h.addTemplate(t, rentTemplate(core.NewDate(2023, 12, 1), core.Weekly))

	first, err := h.processor.ProcessDue(ctx, now)
	require.NoError(t, err)
	second, err := h.processor.ProcessDue(ctx, now)
	require.NoError(t, err)

	assert.Len(t, first.Emitted, 2)
	assert.Empty(t, second.Emitted)

	entries, err := h.entries.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestProcessDue_PausedNeverEmits(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	paused := rentTemplate(core.NewDate(2020, 1, 1), core.Weekly)
	paused.IsActive = false
	h.addTemplate(t, paused)

	for day := 0; day < 5; day++ {
		result, err := h.processor.ProcessDue(ctx, now.AddDate(0, 0, day))
		require.NoError(t, err)
		assert.Empty(t, result.Emitted)
	}
}

func TestProcessDue_NotDueYet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.addTemplate(t, rentTemplate(core.NewDate(2024, 1, 2), core.Monthly))

	result, err := h.processor.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, result.Emitted)
}

func TestProcessDue_CatchesUpOnePeriodPerDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	rt := h.addTemplate(t, rentTemplate(core.NewDate(2024, 1, 31), core.Monthly))

	result, err := h.processor.ProcessDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, result.Emitted, 1)

	stored, _ := h.templates.Get(ctx, rt.ID)
	assert.Equal(t, "2024-02-29", stored.NextDue.String())

	result, err = h.processor.ProcessDue(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, result.Emitted, 1)
	stored, _ = h.templates.Get(ctx, rt.ID)
	assert.Equal(t, "2024-03-31", stored.NextDue.String())
}

func TestProcessDue_StopsAtEndDate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	rt := rentTemplate(core.NewDate(2024, 1, 1), core.Weekly)
	rt.EndDate = core.NewDate(2024, 1, 10).Ptr()
	rt = h.addTemplate(t, rt)

	result, err := h.processor.ProcessDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, result.Emitted, 1)

	stored, _ := h.templates.Get(ctx, rt.ID)
	assert.Equal(t, "2024-01-08", stored.NextDue.String())

	result, err = h.processor.ProcessDue(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, result.Emitted, 1)

	result, err = h.processor.ProcessDue(ctx, now.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Empty(t, result.Emitted)
}

func TestProcessDue_FailedEmissionLeavesTemplateUntouched(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	rt := h.addTemplate(t, rentTemplate(core.NewDate(2024, 1, 1), core.Monthly))

	h.kv.failKey = repository.KeyEntries
	result, err := h.processor.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, result.Emitted)
	require.Len(t, result.Failures, 1)
	assert.True(t, core.IsPersistence(result.Failures[0].Err))

	stored, _ := h.templates.Get(ctx, rt.ID)
	assert.Nil(t, stored.NextDue)
	assert.Nil(t, stored.LastProcessed)

	// The claim was released, so the next tick retries.
	h.kv.failKey = ""
	result, err = h.processor.ProcessDue(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, result.Emitted, 1)
}

func TestProcessDue_FailedAdvanceKeepsClaim(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.addTemplate(t, rentTemplate(core.NewDate(2024, 1, 1), core.Monthly))

	h.kv.failKey = repository.KeyTemplates
	result, err := h.processor.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Len(t, result.Emitted, 1)

	h.kv.failKey = ""
	result, err = h.processor.ProcessDue(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, result.Emitted)

	entries, _ := h.entries.List(ctx)
	assert.Len(t, entries, 1)
}

func TestProcessDue_LostClaimSkips(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	rt := h.addTemplate(t, rentTemplate(core.NewDate(2024, 1, 1), core.Monthly))

	ctrl := gomock.NewController(t)
	claims := mocks.NewMockClaimer(ctrl)
	claims.EXPECT().Claim(gomock.Any(), rt.ID, core.NewDate(2024, 1, 1)).Return(false, nil)

	p := NewRecurringProcessor(h.templates, h.entries, claims, h.clock, metrics.NewNop(), nil)
	result, err := p.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, result.Emitted)
	assert.Empty(t, result.Failures)

	entries, _ := h.entries.List(ctx)
	assert.Empty(t, entries)
}

func TestProcessDue_ClaimErrorIsReported(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.addTemplate(t, rentTemplate(core.NewDate(2024, 1, 1), core.Monthly))

	ctrl := gomock.NewController(t)
	claims := mocks.NewMockClaimer(ctrl)
	claims.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	p := NewRecurringProcessor(h.templates, h.entries, claims, h.clock, metrics.NewNop(), nil)
	result, err := p.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Len(t, result.Failures, 1)
}

func TestProcessNow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	future := h.addTemplate(t, rentTemplate(core.NewDate(2024, 2, 1), core.Monthly))

	got, err := h.processor.ProcessNow(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rent (Manual)", got.Description)
	assert.Equal(t, "2024-01-05", got.Date.String())
	assert.Equal(t, future.ID, got.RecurringID)

	stored, _ := h.templates.Get(ctx, future.ID)
	assert.Equal(t, "2024-03-01", stored.NextDue.String())
	assert.Equal(t, "2024-01-05", stored.LastProcessed.String())
}

func TestProcessNow_Errors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)

	_, err := h.processor.ProcessNow(ctx, "missing")
	assert.True(t, core.IsNotFound(err))

	paused := rentTemplate(core.NewDate(2024, 1, 1), core.Monthly)
	paused.IsActive = false
	paused = h.addTemplate(t, paused)
	_, err = h.processor.ProcessNow(ctx, paused.ID)
	assert.True(t, core.IsValidation(err))

	ended := rentTemplate(core.NewDate(2023, 1, 1), core.Monthly)
	ended.EndDate = core.NewDate(2023, 6, 1).Ptr()
	ended = h.addTemplate(t, ended)
	_, err = h.templates.markEmitted(ctx, ended.ID, core.NewDate(2023, 6, 1), core.NewDate(2023, 6, 1))
	require.NoError(t, err)
	_, err = h.processor.ProcessNow(ctx, ended.ID)
	assert.True(t, core.IsValidation(err))
}

func TestEmission_TruncatesLongDescription(t *testing.T) {
	rt := rentTemplate(core.NewDate(2024, 1, 1), core.Monthly)
	long := make([]byte, core.MaxDescriptionLen)
	for i := range long {
		long[i] = 'x'
	}
	rt.Description = string(long)

	got := emission(rt, time.Now(), TriggerAuto)
	assert.Len(t, got.Description, core.MaxDescriptionLen)
	assert.NoError(t, got.Validate())
}

func TestEmission_TruncatesOnCharacterBoundary(t *testing.T) {
	rt := rentTemplate(core.NewDate(2024, 1, 1), core.Monthly)
	rt.Description = strings.Repeat("é", core.MaxDescriptionLen)
	require.NoError(t, rt.Validate())

	got := emission(rt, time.Now(), TriggerAuto)
	assert.True(t, utf8.ValidString(got.Description))
	assert.Equal(t, core.MaxDescriptionLen, utf8.RuneCountInString(got.Description))
	assert.True(t, strings.HasSuffix(got.Description, "é (Auto)"))
	assert.NoError(t, got.Validate())
}

func TestUpcoming(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now)

	later := h.addTemplate(t, rentTemplate(core.NewDate(2024, 3, 1), core.Monthly))
	sooner := h.addTemplate(t, rentTemplate(core.NewDate(2024, 2, 1), core.Yearly))
	paused := rentTemplate(core.NewDate(2024, 1, 10), core.Weekly)
	paused.IsActive = false
	h.addTemplate(t, paused)

	got, err := h.processor.Upcoming(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sooner.ID, got[0].ID)
	assert.Equal(t, later.ID, got[1].ID)

	got, err = h.processor.Upcoming(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
