// Package service provides the business service behind the HTTP API and
// the import workers.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/racecheck/internal/adapters/mq/queue"
	workerpool "github.com/okian/racecheck/internal/adapters/mq/worker"
	"github.com/okian/racecheck/internal/adapters/repository"
	"github.com/okian/racecheck/internal/domain/dedupe"
	"github.com/okian/racecheck/internal/domain/ranking"
	"github.com/okian/racecheck/internal/domain/types"
	"github.com/okian/racecheck/pkg/logger"
	"github.com/okian/racecheck/pkg/metrics"
)

// Service implements event management, result imports and ranked reads.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool
	engine  *ranking.Engine

	// eventMu serializes read-modify-write cycles on stored events.
	eventMu sync.Mutex

	// submitMu guards lastSeq and latest. latest maps an event to the
	// dedupe key of its most recently accepted upload.
	submitMu sync.Mutex
	lastSeq  int64
	latest   map[string]string

	workerCount      int
	queueSize        int
	dedupeSize       int
	maxUploadBytes   int64
	resultsExtension string
	subsecond        bool
	now              func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the event store; in-memory by default.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of import workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the import queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many upload keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxUploadBytes caps the size of a results upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithResultsExtension sets the file extension uploads must carry.
func WithResultsExtension(ext string) Option {
	return func(s *Service) {
		if ext != "" {
			s.resultsExtension = ext
		}
	}
}

// WithSubsecondTieBreak orders equal whole-second times by their fraction.
func WithSubsecondTieBreak(enabled bool) Option {
	return func(s *Service) {
		s.subsecond = enabled
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. The global logger must be initialized unless
// WithLogger is given. Call Start before submitting results.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        1_024,
		dedupeSize:       10_000,
		maxUploadBytes:   10 << 20,
		resultsExtension: ".racecheck",
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewInMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.engine = ranking.New(ranking.WithSubsecondTieBreak(s.subsecond))
	return s
}

// Start creates the import pipeline and starts the workers. Cancelling ctx
// does not stop the workers; Stop drains them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.latest = make(map[string]string)
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, s.logger)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "racecheck service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Bool("subsecond_tiebreak", s.subsecond),
	)
	return nil
}

// Stop drains queued imports, then closes the store. ctx bounds the drain.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping racecheck service")

	var firstErr error
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "import workers did not drain", logger.Error(err))
		firstErr = err
	}
	if err := s.store.Close(ctx); err != nil {
		s.logger.Error(ctx, "closing store", logger.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	s.started = false
	s.logger.Info(ctx, "racecheck service stopped")
	return firstErr
}

// GetStats returns service statistics and refreshes the matching gauges.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.Stats{
		Started:       s.started,
		WorkerCount:   s.workerCount,
		QueueCapacity: s.queueSize,
	}
	if n, err := s.store.Count(ctx); err == nil {
		st.Events = n
		metrics.UpdateEventsStored(n)
	}
	if s.started {
		st.WorkerCount = s.pool.Size()
		st.QueueLength = s.queue.Len()
		st.DedupeEntries = s.deduper.Size()
	}
	return st
}
