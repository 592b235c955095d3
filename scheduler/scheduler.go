package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-broker-sessions/adapters/gojob"
	"github.com/goliatone/go-broker-sessions/adapters/gologger"
	"github.com/goliatone/go-broker-sessions/core"
)

// RefreshService is the slice of the session service the scheduler drives.
type RefreshService interface {
	DueSessions(ctx context.Context) ([]core.SessionKey, error)
	RefreshSession(ctx context.Context, req core.RefreshRequest) (core.RefreshResult, error)
	CleanupExpiredSessions(ctx context.Context) ([]core.SessionKey, error)
}

type Option func(*Scheduler)

func WithConfig(cfg core.SchedulerConfig) Option {
	return func(s *Scheduler) {
		s.cfg = cfg
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(s *Scheduler) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTaskEnqueuer switches the scheduler from inline dispatch to handing
// refresh work to a queue. A separate Worker drains the queue.
func WithTaskEnqueuer(enqueuer core.TaskEnqueuer) Option {
	return func(s *Scheduler) {
		s.enqueuer = enqueuer
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(s *Scheduler) {
		if nowFn != nil {
			s.nowFn = nowFn
		}
	}
}

// Scheduler periodically collects due sessions and refreshes them, either
// inline on a bounded worker pool or through a task queue. A session with a
// refresh already in flight is skipped until that refresh finishes.
type Scheduler struct {
	service  RefreshService
	cfg      core.SchedulerConfig
	logger   core.Logger
	metrics  core.MetricsRecorder
	enqueuer core.TaskEnqueuer
	nowFn    func() time.Time

	mu       sync.Mutex
	inFlight map[core.SessionKey]bool
	running  bool
	stopFn   context.CancelFunc
	done     chan struct{}
}

func New(service RefreshService, opts ...Option) (*Scheduler, error) {
	if service == nil {
		return nil, fmt.Errorf("scheduler: refresh service is required")
	}
	s := &Scheduler{
		service:  service,
		cfg:      core.DefaultConfig().Scheduler,
		logger:   gologger.Ensure("broker-scheduler"),
		metrics:  core.NopMetricsRecorder{},
		nowFn:    func() time.Time { return time.Now().UTC() },
		inFlight: map[core.SessionKey]bool{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.cfg.Tick <= 0 {
		s.cfg.Tick = core.DefaultConfig().Scheduler.Tick
	}
	if s.cfg.Workers <= 0 {
		s.cfg.Workers = core.DefaultConfig().Scheduler.Workers
	}
	return s, nil
}

// Start launches the tick loop. It returns immediately; the loop runs until
// Stop is called or the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.stopFn = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(loopCtx)
	return nil
}

// Stop cancels the loop and waits for in-flight work to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.stopFn
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	var wg sync.WaitGroup
	slots := make(chan struct{}, s.cfg.Workers)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			s.RunOnce(ctx, &wg, slots)
		}
	}
}

// RunOnce executes a single scheduler pass: expire stale sessions, collect
// due ones, dispatch refreshes. Exposed so callers can drive ticks manually.
func (s *Scheduler) RunOnce(ctx context.Context, wg *sync.WaitGroup, slots chan struct{}) {
	if wg == nil {
		wg = &sync.WaitGroup{}
		defer wg.Wait()
	}
	if slots == nil {
		slots = make(chan struct{}, s.cfg.Workers)
	}

	if dropped, err := s.service.CleanupExpiredSessions(ctx); err != nil {
		s.logger.Error("expired session cleanup failed", "error", err)
	} else if len(dropped) > 0 {
		s.logger.Info("expired sessions dropped", "count", len(dropped))
	}

	due, err := s.service.DueSessions(ctx)
	if err != nil {
		s.logger.Error("due session collection failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.metrics.IncCounter(ctx, "broker_sessions.scheduler.due_total", int64(len(due)), nil)

	for _, key := range due {
		if !s.claim(key) {
			continue
		}
		if s.enqueuer != nil {
			s.dispatchQueued(ctx, key)
			continue
		}
		s.dispatchInline(ctx, key, wg, slots)
	}
}

func (s *Scheduler) dispatchQueued(ctx context.Context, key core.SessionKey) {
	defer s.release(key)

	if err := s.enqueuer.Enqueue(ctx, gojob.RefreshTaskMessage(key)); err != nil {
		s.logger.Error("refresh task enqueue failed",
			"provider", key.Provider,
			"user_id", key.UserID,
			"error", err)
		return
	}
	s.metrics.IncCounter(ctx, "broker_sessions.scheduler.enqueued_total", 1, map[string]string{
		"provider": key.Provider,
	})
}

func (s *Scheduler) dispatchInline(ctx context.Context, key core.SessionKey, wg *sync.WaitGroup, slots chan struct{}) {
	select {
	case slots <- struct{}{}:
	case <-ctx.Done():
		s.release(key)
		return
	}

	wg.Add(1)
	go func() {
		defer func() {
			<-slots
			s.release(key)
			wg.Done()
		}()
		s.refresh(ctx, key)
	}()
}

func (s *Scheduler) refresh(ctx context.Context, key core.SessionKey) {
	started := s.nowFn()
	result, err := s.service.RefreshSession(ctx, core.RefreshRequest{Key: key})
	elapsed := s.nowFn().Sub(started)

	tags := map[string]string{"provider": key.Provider}
	s.metrics.ObserveHistogram(ctx, "broker_sessions.scheduler.refresh_duration_ms",
		float64(elapsed.Milliseconds()), tags)

	switch {
	case err != nil:
		s.metrics.IncCounter(ctx, "broker_sessions.scheduler.refresh_failed_total", 1, tags)
		s.logger.Error("scheduled refresh failed",
			"provider", key.Provider,
			"user_id", key.UserID,
			"attempts", result.Attempts,
			"error", err)
	case result.Stale:
		s.logger.Info("scheduled refresh superseded",
			"provider", key.Provider,
			"user_id", key.UserID)
	default:
		s.metrics.IncCounter(ctx, "broker_sessions.scheduler.refresh_ok_total", 1, tags)
		s.logger.Info("scheduled refresh complete",
			"provider", key.Provider,
			"user_id", key.UserID,
			"attempts", result.Attempts,
			"reconnected", result.Reconnected)
	}
}

func (s *Scheduler) claim(key core.SessionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[key] {
		return false
	}
	s.inFlight[key] = true
	return true
}

func (s *Scheduler) release(key core.SessionKey) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}
