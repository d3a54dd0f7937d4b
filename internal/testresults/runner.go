package testresults

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/internal/domain/types"
	"github.com/okian/racecheck/pkg/logger"
)

// ErrMismatch is returned when the service ranked a feed differently from
// the local ranking.
var ErrMismatch = errors.New("ranking mismatch")

const feedFilename = "load-test.racecheck"

// Run executes the complete results test and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("test-results")

	log.Info(ctx, "starting racecheck results test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("events", config.NumEvents),
		logger.Int("runnersPerEvent", config.RunnersPerEvent),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if _, err := client.Get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate events and create them
	events := generateEvents(config.NumEvents, config.RunnersPerEvent)
	if err := createEvents(ctx, client, config, events, stats); err != nil {
		return stats, fmt.Errorf("event creation failed: %w", err)
	}
	if !config.KeepEvents {
		defer deleteEvents(context.WithoutCancel(ctx), client, config, events)
	}

	// Step 3: Upload every feed twice; the second copy must be a duplicate
	uploadFeeds(ctx, client, config, events, stats)

	// Step 4: Wait for the imports to be applied
	if err := waitForImports(ctx, client, config, events, stats); err != nil {
		return stats, fmt.Errorf("waiting for imports failed: %w", err)
	}

	// Step 5: Verify rankings against a local ranking of the same feeds
	verifyEvents(ctx, client, config, events, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.Mismatches > 0 {
		return stats, fmt.Errorf("%w: %d rows differ", ErrMismatch, stats.Mismatches)
	}
	log.Info(ctx, "test completed successfully")
	return stats, nil
}

// forEach runs fn for indexes [0, n) on the configured number of workers.
func forEach(ctx context.Context, workers, n int, fn func(i int)) {
	if workers < 1 {
		workers = 1
	}
	indexes := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					continue
				}
				fn(i)
			}
		}()
	}
send:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break send
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()
}

func createEvents(ctx context.Context, client *HTTPClient, config *Config, events []Event, stats *Stats) error {
	var (
		created  int64
		firstErr error
		errOnce  sync.Once
	)
	forEach(ctx, config.Workers, len(events), func(i int) {
		var e model.Event
		if _, err := client.PostJSON(ctx, "/events", events[i], &e); err != nil {
			errOnce.Do(func() { firstErr = err })
			return
		}
		events[i].ID = e.ID
		atomic.AddInt64(&created, 1)
	})
	stats.EventsCreated = int(created)
	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Get().Info(ctx, "events created", logger.Int("count", stats.EventsCreated))
	return nil
}

func uploadFeeds(ctx context.Context, client *HTTPClient, config *Config, events []Event, stats *Stats) {
	var accepted, duplicate, failed, submitted int64
	forEach(ctx, config.Workers, len(events)*2, func(i int) {
		e := events[i%len(events)]
		atomic.AddInt64(&submitted, 1)
		switch submitFeed(ctx, client, e) {
		case outcomeAccepted:
			atomic.AddInt64(&accepted, 1)
		case outcomeDuplicate:
			atomic.AddInt64(&duplicate, 1)
		default:
			atomic.AddInt64(&failed, 1)
		}
	})
	stats.UploadsSubmitted = int(submitted)
	stats.UploadsAccepted = int(accepted)
	stats.UploadsDuplicate = int(duplicate)
	stats.UploadsFailed = int(failed)

	logger.Get().Info(ctx, "feed upload completed",
		logger.Int("accepted", stats.UploadsAccepted),
		logger.Int("duplicate", stats.UploadsDuplicate),
		logger.Int("failed", stats.UploadsFailed))
}

// submitFeed uploads one feed and classifies the answer.
func submitFeed(ctx context.Context, client *HTTPClient, e Event) string {
	var ack types.Ack
	status, err := client.Upload(ctx, "/events/"+e.ID+"/results", feedFilename, []byte(e.Feed), &ack)
	switch {
	case err != nil:
		return outcomeFailed
	case status == http.StatusAccepted:
		return outcomeAccepted
	case status == http.StatusOK && ack.Duplicate:
		return outcomeDuplicate
	}
	return outcomeFailed
}

// waitForImports polls each event's classification until its feed is
// stored or the import timeout passes.
func waitForImports(ctx context.Context, client *HTTPClient, config *Config, events []Event, stats *Stats) error {
	ctx, cancel := context.WithTimeout(ctx, config.ImportTimeout)
	defer cancel()

	var applied int64
	forEach(ctx, config.Workers, len(events), func(i int) {
		ticker := time.NewTicker(config.PollInterval)
		defer ticker.Stop()
		for {
			var c types.Classification
			if _, err := client.Get(ctx, "/events/"+events[i].ID+"/classification", &c); err == nil && c.Total == config.RunnersPerEvent {
				atomic.AddInt64(&applied, 1)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
	stats.ImportsApplied = int(applied)
	if stats.ImportsApplied < len(events) {
		return fmt.Errorf("%d of %d imports applied: %w", stats.ImportsApplied, len(events), context.DeadlineExceeded)
	}
	return nil
}

func verifyEvents(ctx context.Context, client *HTTPClient, config *Config, events []Event, stats *Stats) {
	var verified, mismatches int64
	forEach(ctx, config.Workers, len(events), func(i int) {
		n, err := verifyEvent(ctx, client, events[i], config)
		if err != nil {
			logger.Get().Warn(ctx, "verification failed", logger.String("event_id", events[i].ID), logger.Error(err))
			atomic.AddInt64(&mismatches, 1)
			return
		}
		atomic.AddInt64(&verified, 1)
		atomic.AddInt64(&mismatches, int64(n))
	})
	stats.EventsVerified = int(verified)
	stats.Mismatches = int(mismatches)
}

func deleteEvents(ctx context.Context, client *HTTPClient, config *Config, events []Event) {
	forEach(ctx, config.Workers, len(events), func(i int) {
		if events[i].ID == "" {
			return
		}
		if _, err := client.Delete(ctx, "/events/"+events[i].ID); err != nil {
			logger.Get().Warn(ctx, "failed to delete event", logger.String("event_id", events[i].ID), logger.Error(err))
		}
	})
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var uploadsPerSecond float64
	if stats.Duration > 0 {
		uploadsPerSecond = float64(stats.UploadsSubmitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("eventsCreated", stats.EventsCreated),
		logger.Int("uploadsSubmitted", stats.UploadsSubmitted),
		logger.Int("uploadsAccepted", stats.UploadsAccepted),
		logger.Int("uploadsDuplicate", stats.UploadsDuplicate),
		logger.Int("uploadsFailed", stats.UploadsFailed),
		logger.Int("importsApplied", stats.ImportsApplied),
		logger.Int("eventsVerified", stats.EventsVerified),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("uploadsPerSecond", uploadsPerSecond))
}
