package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsImmediatelyAndOnTicks(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	defer s.Stop()

	var runs atomic.Int32
	s.Every("count", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_DisposeStopsTask(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	defer s.Stop()

	var runs atomic.Int32
	dispose := s.Every("count", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)

	dispose()
	dispose()
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestScheduler_SurvivesFailuresAndPanics(t *testing.T) {
	s := NewScheduler(context.Background(), nil)

	var runs atomic.Int32
	s.Every("flaky", 5*time.Millisecond, func(context.Context) error {
		n := runs.Add(1)
		if n == 1 {
			panic("boom")
		}
		return errors.New("still failing")
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()
}

func TestScheduler_StopWaitsAndRejectsNewTasks(t *testing.T) {
	s := NewScheduler(context.Background(), nil)

	var finished atomic.Bool
	started := make(chan struct{})
	s.Every("slow", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})
	<-started

	s.Stop()
	assert.True(t, finished.Load())

	var ran atomic.Bool
	s.Every("late", time.Millisecond, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
}
