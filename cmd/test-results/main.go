package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/racecheck/internal/testresults"
)

// Default configuration constants.
const (
	defaultNumEvents    = 20
	defaultRunners      = 2000
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultImportWait   = 2 * time.Minute
	defaultPollInterval = 250 * time.Millisecond
	defaultTestTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numEvents = flag.Int("events", defaultNumEvents, "Number of events to create")
		runners   = flag.Int("runners", defaultRunners, "Feed lines per event")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait      = flag.Duration("wait", defaultImportWait, "How long to wait for imports")
		subsecond = flag.Bool("subsecond", false, "The service breaks ties by fractional seconds")
		keep      = flag.Bool("keep", false, "Keep the created events")
		logFile   = flag.String("log", "", "Log file for test output (default: test_results_TIMESTAMP.log)")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every mismatching row")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testresults.ShowHelp(os.Stdout)
		return
	}

	closer, err := testresults.SetupLogging(*logFile, *logFormat)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testresults.Config{
		BaseURL:         *baseURL,
		NumEvents:       *numEvents,
		RunnersPerEvent: *runners,
		Workers:         *workers,
		Timeout:         *timeout,
		ImportTimeout:   *wait,
		PollInterval:    defaultPollInterval,
		KeepEvents:      *keep,
		Subsecond:       *subsecond,
		Verbose:         *verbose,
	}

	if _, err := testresults.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
