// Package config defines service configuration and its loader.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Store backends accepted in Config.Store.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory import queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of import workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the upload idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxUploadBytes caps a results upload.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// ResultsExtension is the required extension of uploaded feeds.
	ResultsExtension string `koanf:"results_extension"`

	// Store selects the event store backend: memory or mongo.
	Store string `koanf:"store"`

	MongoURI        string `koanf:"mongo_uri"`
	MongoDatabase   string `koanf:"mongo_database"`
	MongoCollection string `koanf:"mongo_collection"`

	// SubsecondTieBreak orders equal whole-second times by their fraction.
	SubsecondTieBreak bool `koanf:"subsecond_tiebreak"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		QueueSize:        1_024,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       10_000,
		MaxUploadBytes:   10 << 20,
		ResultsExtension: ".racecheck",
		Store:            StoreMemory,
		MongoURI:         "mongodb://localhost:27017",
		MongoDatabase:    "racecheck",
		MongoCollection:  "events",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	case !strings.HasPrefix(c.ResultsExtension, "."):
		return fmt.Errorf("%w: results_extension must start with a dot", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	switch c.Store {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" || c.MongoCollection == "" {
			return fmt.Errorf("%w: mongo store needs mongo_uri, mongo_database and mongo_collection", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	return nil
}
