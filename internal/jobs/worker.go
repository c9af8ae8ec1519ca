package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/logger"
	"github.com/cloo-solutions/nutrikb/internal/telemetry"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed interval until stopped.
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWorker creates a new Worker instance
func NewWorker(name string, processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the worker's polling loop. It blocks until the context is
// cancelled or Stop is called; Stop also cancels a run in progress.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	logger.Info("worker started", "worker", w.name, "interval", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped: context cancelled", "worker", w.name)
			return
		case <-w.stopChan:
			logger.Info("worker stopped: stop signal received", "worker", w.name)
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	ctx, span := telemetry.StartTransaction(ctx, "worker."+w.name, "job")
	defer span.End()

	if err := w.processor.ProcessJobs(ctx); err != nil {
		span.SetError(err)
		telemetry.CaptureError(ctx, err)
		logger.Error("error processing jobs", "worker", w.name, "error", err)
	}
}

// Stop cancels the current run, which ends at its next cancellation check,
// and waits for the loop to exit.
func (w *Worker) Stop() {
	close(w.stopChan)
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()
	<-w.doneChan
	logger.Info("worker shutdown complete", "worker", w.name)
}
