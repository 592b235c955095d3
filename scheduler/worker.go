package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-broker-sessions/adapters/gojob"
	"github.com/goliatone/go-broker-sessions/adapters/gologger"
	"github.com/goliatone/go-broker-sessions/core"
)

type WorkerOption func(*Worker)

func WithWorkerLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithWorkerHook(hook core.TaskWorkerHook) WorkerOption {
	return func(w *Worker) {
		w.hook = hook
	}
}

func WithWorkerBackoff(scheduler core.RefreshBackoffScheduler) WorkerOption {
	return func(w *Worker) {
		if scheduler != nil {
			w.backoff = scheduler
		}
	}
}

// Worker drains refresh tasks from a queue and runs them against the
// session service. It pairs with a Scheduler configured with a task
// enqueuer, so the tick loop and the execution can live in different
// processes.
type Worker struct {
	service  RefreshService
	dequeuer core.TaskDequeuer
	logger   core.Logger
	hook     core.TaskWorkerHook
	backoff  core.RefreshBackoffScheduler
	nowFn    func() time.Time
}

func NewWorker(service RefreshService, dequeuer core.TaskDequeuer, opts ...WorkerOption) (*Worker, error) {
	if service == nil {
		return nil, fmt.Errorf("scheduler: refresh service is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("scheduler: task dequeuer is required")
	}
	w := &Worker{
		service:  service,
		dequeuer: dequeuer,
		logger:   gologger.Ensure("broker-refresh-worker"),
		backoff:  core.ExponentialBackoffScheduler{},
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(w)
	}
	return w, nil
}

// Run consumes deliveries until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logger.Error("dequeue failed", "error", err)
			continue
		}
		if delivery == nil {
			continue
		}
		w.handle(ctx, delivery)
	}
}

// ProcessOne pulls and handles a single delivery. Exposed for tests and for
// callers that drive consumption themselves.
func (w *Worker) ProcessOne(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	w.handle(ctx, delivery)
	return nil
}

func (w *Worker) handle(ctx context.Context, delivery core.TaskDelivery) {
	msg := delivery.Message()
	if msg == nil {
		w.nack(ctx, delivery, core.TaskNackOptions{
			DeadLetter: true,
			Reason:     "empty task message",
		})
		return
	}

	event := core.TaskWorkerEvent{Message: msg, Attempt: 1, StartedAt: w.nowFn()}
	w.emitStart(ctx, event)

	err := w.execute(ctx, msg)
	event.Duration = w.nowFn().Sub(event.StartedAt)
	event.Err = err

	if err == nil {
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			w.logger.Error("ack failed", "task_id", msg.TaskID, "error", ackErr)
		}
		w.emitSuccess(ctx, event)
		return
	}

	if core.IsAuthError(err) {
		// Terminal upstream rejection. Retrying cannot help.
		w.nack(ctx, delivery, core.TaskNackOptions{
			DeadLetter: true,
			Reason:     "auth failure",
		})
		w.emitFailure(ctx, event)
		return
	}

	event.Delay = w.backoff.NextDelay(1)
	w.nack(ctx, delivery, core.TaskNackOptions{
		Delay:   event.Delay,
		Requeue: true,
		Reason:  "refresh failed",
	})
	w.emitRetry(ctx, event)
}

func (w *Worker) execute(ctx context.Context, msg *core.TaskExecutionMessage) error {
	switch msg.TaskID {
	case gojob.TaskIDSessionRefresh:
		key, err := gojob.SessionKeyFromMessage(msg)
		if err != nil {
			return err
		}
		_, err = w.service.RefreshSession(ctx, core.RefreshRequest{Key: key})
		return err
	case gojob.TaskIDSessionCleanup:
		_, err := w.service.CleanupExpiredSessions(ctx)
		return err
	default:
		return fmt.Errorf("scheduler: unknown task id %q", msg.TaskID)
	}
}

func (w *Worker) nack(ctx context.Context, delivery core.TaskDelivery, opts core.TaskNackOptions) {
	if err := delivery.Nack(ctx, opts); err != nil {
		w.logger.Error("nack failed", "reason", opts.Reason, "error", err)
	}
}

func (w *Worker) emitStart(ctx context.Context, event core.TaskWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *Worker) emitSuccess(ctx context.Context, event core.TaskWorkerEvent) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *Worker) emitFailure(ctx context.Context, event core.TaskWorkerEvent) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *Worker) emitRetry(ctx context.Context, event core.TaskWorkerEvent) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}
