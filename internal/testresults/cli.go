package testresults

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/racecheck/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging sends log lines to stdout and to logFile. An empty logFile
// gets a timestamped name. The returned closer closes the file.
func SetupLogging(logFile, format string) (io.Closer, error) {
	if logFile == "" {
		logFile = "test_results_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the results test tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `racecheck results test tool
===========================

Creates events on a running racecheck service, uploads a generated feed
to each of them twice, waits for the imports and checks the served
rankings against a local ranking of the same feeds.

Usage:
  go run ./cmd/test-results [options]

Options:
  -url string         Base URL of the service (default "http://localhost:9080")
  -events int         Number of events to create (default 20)
  -runners int        Feed lines per event (default 2000)
  -workers int        Number of concurrent workers (default CPU cores * 2)
  -timeout duration   HTTP request timeout (default 30s)
  -wait duration      How long to wait for imports (default 2m)
  -subsecond          The service breaks ties by fractional seconds
  -keep               Keep the created events
  -log string         Log file (default: test_results_TIMESTAMP.log)
  -verbose            Log every mismatching row
  -help               Show this help message

Examples:
  go run ./cmd/test-results -events 100 -runners 5000
  go run ./cmd/test-results -url http://localhost:8080 -keep -verbose
`)
}
