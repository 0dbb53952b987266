package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/log"
)

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// Scheduler runs named tasks on fixed intervals. Each task runs once when
// registered and then on every tick; a run never overlaps the previous one.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
}

func NewScheduler(ctx context.Context, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Discard()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{ctx: ctx, cancel: cancel, logger: logger.WithComponent(log.ComponentScheduler)}
}

// Every starts task under name. The returned disposer stops the task and
// waits for a run in progress to finish; calling it twice is safe.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) (dispose func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return func() {}
	}

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.loop(ctx, name, interval, task)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, task Task) {
	s.logger.InfoContext(ctx, "Scheduled task started", "task", name, "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.run(ctx, name, task)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Scheduled task stopped", "task", name)
			return
		case <-ticker.C:
			s.run(ctx, name, task)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, name string, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Scheduled task panicked", "task", name, log.FieldError, fmt.Sprint(r))
		}
	}()
	if err := task(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "Scheduled task failed", "task", name, log.FieldError, err)
		return
	}
	s.logger.DebugContext(ctx, "Scheduled task finished", "task", name, log.FieldDuration, time.Since(start).Milliseconds())
}

// Stop cancels every task and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until the scheduler's context is done and all tasks returned.
func (s *Scheduler) Wait() {
	<-s.ctx.Done()
	s.wg.Wait()
}
