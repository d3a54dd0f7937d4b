// Package worker applies queued result imports to their events.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/pkg/logger"
	"github.com/okian/racecheck/pkg/metrics"
)

// Job is what workers read off the queue.
type Job = model.ImportJob

// Importer stores an import job's feed on its event.
type Importer interface {
	ApplyResults(ctx context.Context, job Job) (model.ImportSummary, error)
}

// Source is where workers receive jobs from.
type Source interface {
	Dequeue() <-chan Job
}

// Worker processes import jobs one at a time.
type Worker struct {
	source   Source
	importer Importer
	name     string
	logger   logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a worker.
func New(source Source, importer Importer, opts ...Option) *Worker {
	w := &Worker{
		source:   source,
		importer: importer,
		name:     "worker",
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get()
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes jobs until the source is closed and drained, Shutdown is
// called or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "import failed",
					logger.String("job_id", job.JobID),
					logger.String("event_id", job.EventID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker %s shutdown: %w", w.name, ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) process(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	summary, err := w.importer.ApplyResults(ctx, job)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordImportFailed()
		return fmt.Errorf("apply results for event %s: %w", job.EventID, err)
	}

	if summary.Stale {
		metrics.RecordImportStale()
		w.logger.Debug(ctx, "stale results skipped",
			logger.String("job_id", job.JobID),
			logger.String("event_id", job.EventID),
			logger.String("filename", job.Filename),
		)
		return nil
	}

	metrics.RecordImportApplied()
	w.logger.Info(ctx, "results imported",
		logger.String("job_id", job.JobID),
		logger.String("event_id", job.EventID),
		logger.String("filename", job.Filename),
		logger.Int("valid", summary.Valid),
		logger.Int("invalid", summary.Invalid),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool runs a fixed number of workers over one source.
type Pool struct {
	workers []*Worker
	source  Source
	logger  logger.Logger
	cancel  context.CancelFunc
}

// NewPool creates a pool of count workers; count below 1 means one worker.
func NewPool(count int, source Source, importer Importer, l logger.Logger) *Pool {
	if count < 1 {
		count = 1
	}
	if l == nil {
		l = logger.Get()
	}
	p := &Pool{
		workers: make([]*Worker, count),
		source:  source,
		logger:  l.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = New(source, importer, WithName("worker-"+strconv.Itoa(i)), WithLogger(l))
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker. Jobs run under ctx until Shutdown gives up
// on them.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the source so workers drain what is queued, then waits
// for them. When ctx expires the jobs still running are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "closing queue", logger.Error(err))
		}
	}

	var firstErr error
	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker did not drain in time", logger.Int("worker", i))
			p.abort()
			_ = w.Shutdown(ctx)
			if firstErr == nil {
				firstErr = fmt.Errorf("worker %d shutdown: %w", i, ctx.Err())
			}
		}
	}
	p.abort()
	metrics.UpdateWorkerCount(0)
	return firstErr
}

func (p *Pool) abort() {
	if p.cancel != nil {
		p.cancel()
	}
}
