// Package worker runs station collection jobs off the queue and hands the
// results to a single serialized sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/metroflow/internal/adapters/mq/queue"
	"github.com/okian/metroflow/internal/domain/model"
	"github.com/okian/metroflow/pkg/logger"
	"github.com/okian/metroflow/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrSkip tells the worker a job needs no work, e.g. the station was
// completed by another run.
var ErrSkip = errors.New("job skipped")

// Job is what workers read off the queue.
type Job = queue.Job

// Result is the collected output of one station.
type Result struct {
	Score model.StationScore
	POIs  model.StationPOIs
}

// Processor collects a single station.
type Processor interface {
	Process(ctx context.Context, job Job) (Result, error)
}

// Sink persists results. Commits from all workers of a pool are serialized
// by the sink.
type Sink interface {
	Commit(ctx context.Context, job Job, res Result) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Observer optionally receives per-job outcomes from the worker.
type Observer interface {
	Skipped(ctx context.Context, job Job)
	Failed(ctx context.Context, job Job, err error)
	Interrupted(ctx context.Context, job Job)
}

// Worker processes jobs until its queue is drained or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	sink      Sink
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Processor, s Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		sink:      s,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		// Station boundary: stop before picking up more work.
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "station failed",
					logger.String("station", job.Station.Name),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Shutdown stops the worker and waits for its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	observer, _ := w.sink.(Observer)

	res, err := w.processor.Process(ctx, job)
	switch {
	case errors.Is(err, ErrSkip):
		w.logger.Debug(ctx, "station skipped", logger.String("station", job.Station.Name))
		if observer != nil {
			observer.Skipped(ctx, job)
		}
		return nil
	case ctx.Err() != nil:
		// Interrupted mid-station: nothing is written for it.
		w.logger.Warn(ctx, "station interrupted, discarding partial result",
			logger.String("station", job.Station.Name))
		if observer != nil {
			observer.Interrupted(ctx, job)
		}
		return nil
	case err != nil:
		if observer != nil {
			observer.Failed(ctx, job, err)
		}
		return fmt.Errorf("process %s: %w", job.Station.Name, err)
	}

	if err := w.sink.Commit(ctx, job, res); err != nil {
		metrics.RecordStationCommitError()
		if observer != nil {
			observer.Failed(ctx, job, err)
		}
		return fmt.Errorf("commit %s: %w", job.Station.Name, err)
	}
	metrics.RecordStationProcessed()
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers (at least one).
func NewPool(workerCount int, q Queue, p Processor, s Sink) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, p, s, WithName("worker-"+strconv.Itoa(i)))
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		metrics.UpdateWorkerActiveCount(int(p.active.Add(1)))
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			defer func() { metrics.UpdateWorkerActiveCount(int(p.active.Add(-1))) }()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown closes the queue, stops the workers after their current jobs and
// waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
