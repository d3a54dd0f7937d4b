package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/racecheck/internal/report"
	"github.com/okian/racecheck/pkg/logger"
)

func main() {
	var (
		eventFile = flag.String("event", "", "YAML file with the event's modalities and genders (required)")
		results   = flag.String("results", "", "racecheck feed to rank (required)")
		modality  = flag.String("modality", "", "Only print this modality")
		xlsxPath  = flag.String("xlsx", "", "Also write the ranking to this XLSX file")
		invalid   = flag.Bool("invalid", false, "List invalid lines and missing categories")
		subsecond = flag.Bool("subsecond", false, "Break whole-second ties by fractional seconds")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		logLevel  = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	if *eventFile == "" || *results == "" {
		flag.Usage()
		os.Exit(2)
	}

	// The table goes to stdout; logs go to stderr.
	if err := logger.Init(logger.WithFormat(*logFormat), logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(*logLevel); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := report.Run(ctx, report.Options{
		EventFile:   *eventFile,
		ResultsFile: *results,
		Modality:    *modality,
		XLSXPath:    *xlsxPath,
		ShowInvalid: *invalid,
		Subsecond:   *subsecond,
	}, os.Stdout)
	if err != nil {
		logger.Get().Fatal(ctx, "racecheck failed", logger.Error(err))
	}
}
