package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/racecheck/internal/adapters/repository"
	"github.com/okian/racecheck/internal/config"
	"github.com/okian/racecheck/pkg/logger"
	"github.com/okian/racecheck/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestNewStore(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New()

		convey.Convey("Then the in-memory store is used", func() {
			store, err := newStore(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)
			_, ok := store.(*repository.InMemoryStore)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("Then an unknown store is rejected", func() {
			cfg.Store = "postgres"
			_, err := newStore(context.Background(), cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestNewService(t *testing.T) {
	convey.Convey("Given a configuration", t, func() {
		cfg := config.New()
		cfg.WorkerCount = 3
		cfg.QueueSize = 7
		svc := newService(cfg, repository.NewInMemoryStore(), logger.Get())

		convey.Convey("Then the service reflects it", func() {
			stats := svc.GetStats(context.Background())
			convey.So(stats.WorkerCount, convey.ShouldEqual, 3)
			convey.So(stats.QueueCapacity, convey.ShouldEqual, 7)
			convey.So(svc.MaxUploadBytes(), convey.ShouldEqual, cfg.MaxUploadBytes)
		})

		convey.Convey("When service metrics are refreshed", func() {
			updateServiceMetrics(context.Background(), svc)
			updateSystemMetrics()

			convey.Convey("Then the gauges are set", func() {
				families, err := metrics.GetRegistry().Gather()
				convey.So(err, convey.ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				convey.So(strings.Join(names, ","), convey.ShouldContainSubstring, "racecheck_results_queue_capacity")
			})
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the server mux", t, func() {
		ctx := context.Background()
		svc := newService(config.New(), repository.NewInMemoryStore(), logger.Get())
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		mux := newMux(ctx, svc, logger.Get())

		convey.Convey("Then docs and API routes are served", func() {
			for _, path := range []string{"/openapi.yaml", "/api-docs", "/events", "/stats", "/healthz"} {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then an event round-trips", func() {
			body := `{"name":"10K Nocturna","date":"2025-03-01"}`
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			convey.So(svc.GetStats(ctx).Events, convey.ShouldEqual, 1)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a cancelled context", t, func() {
		cfg := config.New()
		cfg.Addr = "127.0.0.1:0"
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		convey.Convey("Then run shuts down cleanly", func() {
			done := make(chan error, 1)
			go func() { done <- run(ctx, cfg, logger.Get()) }()
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(10 * time.Second):
				convey.So("run returned", convey.ShouldEqual, "run still blocked")
			}
		})
	})

	convey.Convey("Given an address already in use", t, func() {
		busy := httptest.NewServer(http.NotFoundHandler())
		defer busy.Close()
		cfg := config.New()
		cfg.Addr = strings.TrimPrefix(busy.URL, "http://")

		convey.Convey("Then run returns after the listener fails", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			convey.So(run(ctx, cfg, logger.Get()), convey.ShouldBeNil)
			convey.So(ctx.Err(), convey.ShouldBeNil)
		})
	})
}
