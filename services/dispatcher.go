package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Submit when the dispatch queue has no room
var ErrQueueFull = errors.New("dispatch queue full")

// ErrDispatcherStopped is returned by Submit after Stop
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Job is one unit of webhook work
type Job struct {
	ID   string
	Kind string
	Run  func(ctx context.Context)
}

// Dispatcher runs webhook jobs on a fixed pool of workers fed by a bounded queue
type Dispatcher struct {
	workers int
	queue   chan Job
	metrics *Metrics

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Values below 1 are raised to 1.
func NewDispatcher(workers, queueSize int, metrics *Metrics) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		workers: workers,
		queue:   make(chan Job, queueSize),
		metrics: metrics,
	}
}

// Start launches the workers. Cancelling ctx does not stop them; they exit once Stop
// has closed the queue and every accepted job has run.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
	slog.Info("Dispatcher started", "workers", d.workers, "queueSize", cap(d.queue))
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	defer d.wg.Done()
	for job := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		d.run(ctx, worker, job)
	}
}

func (d *Dispatcher) run(ctx context.Context, worker int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatch job panicked", "jobID", job.ID, "kind", job.Kind, "worker", worker, "panic", r)
		}
	}()
	job.Run(ctx)
}

// Submit enqueues job without blocking. A full queue rejects the job.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	select {
	case d.queue <- job:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
		d.metrics.ObserveDropped(job.Kind)
		slog.Warn("Dispatch queue full, dropping event", "jobID", job.ID, "kind", job.Kind)
		return ErrQueueFull
	}
}

// Stop rejects new jobs, lets the workers drain the queue and waits for them
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	slog.Info("Dispatcher stopped")
}
