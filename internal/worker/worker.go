// Package worker runs the job queue consumers. Handlers are registered by
// job name; delivery is at-least-once, so every handler must tolerate being
// run again after a partial failure.
package worker

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"examcraft/internal/config"
	"examcraft/internal/logger"
	"examcraft/internal/queue"
)

// Handler processes one job payload.
type Handler func(ctx context.Context, data json.RawMessage) error

// Worker polls the queue and dispatches jobs to registered handlers.
type Worker struct {
	queue    *queue.RedisQueue
	handlers map[string]Handler
	cfg      config.QueueConfig
}

func New(q *queue.RedisQueue, cfg config.QueueConfig) *Worker {
	return &Worker{
		queue:    q,
		handlers: make(map[string]Handler),
		cfg:      cfg,
	}
}

// Register binds a handler to a job name. Later registrations win.
func (w *Worker) Register(name string, handler Handler) {
	w.handlers[name] = handler
}

// Run consumes jobs until ctx is cancelled. Concurrency controls how many
// polling loops run in parallel over the shared queue.
func (w *Worker) Run(ctx context.Context) error {
	concurrency := w.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	logger.Get().Info("worker starting",
		zap.Int("concurrency", concurrency),
		zap.Int("handlers", len(w.handlers)))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return w.loop(ctx)
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.queue.PromoteDelayed(ctx); err != nil && ctx.Err() == nil {
			logger.Get().Warn("failed to promote delayed jobs", zap.Error(err))
		}

		job, err := w.queue.Dequeue(ctx, w.cfg.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Get().Warn("failed to dequeue job", zap.Error(err))
			time.Sleep(w.cfg.PollInterval)
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	log := logger.Get().With(
		zap.String("job_id", job.ID),
		zap.String("job_name", job.Name),
		zap.Int("attempt", job.Attempt))

	handler, ok := w.handlers[job.Name]
	if !ok {
		// Unknown names are acked as no-ops so a stale producer cannot
		// wedge the queue.
		log.Warn("no handler registered for job, dropping")
		return
	}

	log.Info("job started")
	start := time.Now()

	if err := handler(ctx, job.Data); err != nil {
		log.Error("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		w.maybeRetry(ctx, job)
		return
	}
	log.Info("job completed", zap.Duration("elapsed", time.Since(start)))
}

func (w *Worker) maybeRetry(ctx context.Context, job *queue.Job) {
	if job.Attempt >= job.MaxAttempts {
		logger.Get().Error("job exhausted retries, dropping",
			zap.String("job_id", job.ID),
			zap.String("job_name", job.Name),
			zap.Int("attempts", job.Attempt))
		return
	}
	delay := Backoff(w.cfg.BackoffBase, job.Attempt)
	if err := w.queue.Retry(ctx, *job, delay); err != nil {
		logger.Get().Error("failed to schedule job retry",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}

// Backoff returns the exponential retry delay for a just-failed attempt:
// base * 2^(attempt-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
}
