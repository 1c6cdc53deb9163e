package visits

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/serroba/go-redirector/internal/messaging"
	"github.com/serroba/go-redirector/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the backlog is at capacity.
	ErrQueueFull = errors.New("visit queue full")

	// ErrStopped is returned by Enqueue after Shutdown.
	ErrStopped = errors.New("visit worker stopped")
)

// WorkerConfig sizes a Worker.
type WorkerConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds each handler call.
	Timeout time.Duration
}

// Worker applies queued visit events on background goroutines.
// Delivery is best effort and unordered.
type Worker struct {
	queue   chan *Event
	handler messaging.Handler[Event]
	cfg     WorkerConfig
	logger  *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewWorker creates a worker handing every event to handler.
func NewWorker(handler messaging.Handler[Event], cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Worker{
		queue:   make(chan *Event, cfg.QueueSize),
		handler: handler,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the worker goroutines. Events keep being applied until
// Shutdown, independent of ctx cancellation.
func (w *Worker) Start(ctx context.Context) error {
	base := context.WithoutCancel(ctx)

	for range w.cfg.Workers {
		w.wg.Add(1)

		go w.run(base)
	}

	w.logger.Info("visit worker started",
		zap.Int("workers", w.cfg.Workers),
		zap.Int("queueSize", w.cfg.QueueSize),
	)

	return nil
}

// Enqueue queues an event without blocking.
func (w *Worker) Enqueue(_ context.Context, event *Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return ErrStopped
	}

	select {
	case w.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued events to be applied.
func (w *Worker) Shutdown() error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()

	w.wg.Wait()

	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for event := range w.queue {
		w.apply(ctx, event)
	}
}

func (w *Worker) apply(ctx context.Context, event *Event) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	if err := w.handler(ctx, event); err != nil {
		metrics.Visits.WithLabelValues(event.Subject, "failed").Inc()
		w.logger.Error("failed to record visit",
			zap.String("subject", event.Subject),
			zap.Int64("subjectId", event.SubjectID),
			zap.Error(err),
		)

		return
	}

	metrics.Visits.WithLabelValues(event.Subject, "recorded").Inc()
}
