package importer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// JobRunner hands an import task to whatever executes it in the background.
// Enqueue returns once the task is accepted, not when it finishes.
type JobRunner interface {
	Enqueue(ctx context.Context, task Task) error
}

// TaskHandler executes one task to completion. *Orchestrator implements it.
type TaskHandler interface {
	Run(ctx context.Context, task Task) error
}

// LocalRunner runs tasks on goroutines owned by the server process rather
// than by the request that submitted them. At most maxConcurrent imports run
// at once; the rest wait their turn.
type LocalRunner struct {
	handler TaskHandler
	sem     chan struct{}
	logger  *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewLocalRunner(handler TaskHandler, maxConcurrent int, logger *logrus.Entry) *LocalRunner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalRunner{
		handler: handler,
		sem:     make(chan struct{}, maxConcurrent),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (r *LocalRunner) Enqueue(_ context.Context, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-r.ctx.Done():
			// Still run so the job is recorded as failed instead of left processing.
		}

		if err := r.handler.Run(r.ctx, task); err != nil {
			r.logger.WithError(err).WithField("job_id", task.JobID).Error("Import task ended with error")
		}
	}()
	return nil
}

// Shutdown stops accepting tasks and waits for running ones. When ctx expires
// first, running imports are cancelled; they end as failed at their next wait.
func (r *LocalRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
