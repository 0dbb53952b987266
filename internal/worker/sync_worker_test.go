package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/metrics"
	"fintrack/internal/sheets/memory"
)

func tx(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        core.Income,
		Amount:      decimal.NewFromInt(100),
		Category:    "Salary",
		Description: "Pay",
		Date:        core.NewDate(2024, 1, 31),
	}
}

type failingMirror struct{}

func (failingMirror) Upsert(context.Context, core.Transaction) error {
	return errors.New("quota exceeded")
}
func (failingMirror) Delete(context.Context, string) error { return errors.New("quota exceeded") }

func TestSyncWorker_HandleUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	m := metrics.NewNop()
	w := NewSyncWorker(mirror, m, nil)

	require.NoError(t, w.Handle(ctx, amqp.NewUpsertEvent(tx("e1"))))
	_, ok := mirror.Get("e1")
	assert.True(t, ok)

	require.NoError(t, w.Handle(ctx, amqp.NewDeleteEvent("e1")))
	_, ok = mirror.Get("e1")
	assert.False(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SheetSyncs.WithLabelValues("upsert", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SheetSyncs.WithLabelValues("delete", "success")))
}

func TestSyncWorker_HandleFailureIsReturned(t *testing.T) {
	m := metrics.NewNop()
	w := NewSyncWorker(failingMirror{}, m, nil)

	err := w.Handle(context.Background(), amqp.NewUpsertEvent(tx("e1")))
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SheetSyncs.WithLabelValues("upsert", "error")))

	err = w.Handle(context.Background(), amqp.EntryEvent{Action: "rename", EntryID: "e1"})
	assert.Error(t, err)
}

func TestSyncWorker_Reconcile(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	require.NoError(t, mirror.Upsert(ctx, tx("stale")))
	require.NoError(t, mirror.Upsert(ctx, tx("keep")))

	w := NewSyncWorker(mirror, nil, nil)
	res, err := w.Reconcile(ctx, []core.Transaction{tx("keep"), tx("new")})
	require.NoError(t, err)

	assert.Equal(t, ReconcileResult{Upserted: 2, Deleted: 1}, res)
	ids, _ := mirror.ListIDs(ctx)
	assert.ElementsMatch(t, []string{"keep", "new"}, ids)
}

func TestSyncWorker_ReconcileWithoutLister(t *testing.T) {
	w := NewSyncWorker(failingMirror{}, nil, nil)
	res, err := w.Reconcile(context.Background(), []core.Transaction{tx("a")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
}
