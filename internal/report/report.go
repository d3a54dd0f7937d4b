// Package report ranks a racecheck feed offline against an event file and
// prints the result as a table.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/okian/racecheck/internal/adapters/export"
	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/ranking"
	"github.com/okian/racecheck/pkg/logger"
)

const xlsxFilePermission = 0o644

// Options holds what one report run reads and writes.
type Options struct {
	EventFile   string // YAML event configuration
	ResultsFile string // racecheck feed
	Modality    string // restrict output to one modality
	XLSXPath    string // also write a workbook here
	ShowInvalid bool   // list invalid lines and missing categories
	Subsecond   bool   // break whole-second ties by the fraction
}

// Run loads the event and feed, ranks the feed and writes the table to out.
func Run(ctx context.Context, opts Options, out io.Writer) error {
	ev, err := LoadEventFile(opts.EventFile)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(opts.ResultsFile)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}

	modalities := ev.Modalities
	if opts.Modality != "" {
		modalities = nil
		for _, m := range ev.Modalities {
			if m.Name == opts.Modality {
				modalities = []racecheck.Modality{m}
			}
		}
		if modalities == nil {
			return fmt.Errorf("%w: %q", ErrUnknownModality, opts.Modality)
		}
	}

	// Ranking always sees the whole configuration; Modality only narrows
	// what is printed.
	res := racecheck.Classify(string(raw), ev.Modalities, ev.Genders)
	engine := ranking.New(ranking.WithSubsecondTieBreak(opts.Subsecond))
	ranked := engine.Rank(res.Valid, ev.Modalities, ev.Genders)

	logger.Get().Info(ctx, "feed ranked",
		logger.String("event", ev.Name),
		logger.String("results", opts.ResultsFile),
		logger.Int("valid", len(res.Valid)),
		logger.Int("invalid", len(res.Invalid)),
		logger.Int("ranked", len(ranked)),
	)

	if err := WriteTable(out, modalities, ranked); err != nil {
		return err
	}
	if opts.ShowInvalid {
		if err := WriteInvalid(out, res, ev.Modalities, ev.Genders); err != nil {
			return err
		}
	}
	if opts.XLSXPath != "" {
		if err := writeWorkbook(opts.XLSXPath, modalities, ranked); err != nil {
			return err
		}
		logger.Get().Info(ctx, "workbook written", logger.String("path", opts.XLSXPath))
	}
	return nil
}

// WriteTable prints one aligned table per modality.
func WriteTable(w io.Writer, modalities []racecheck.Modality, ranked []ranking.RankedRunner) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, m := range modalities {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "== %s ==\n", m.Name)
		fmt.Fprintln(tw, strings.Join(export.Header, "\t"))
		for _, rr := range ranking.ByModality(ranked, m.Name) {
			cells := export.Row(rr)
			parts := make([]string, len(cells))
			for j, c := range cells {
				parts[j] = fmt.Sprint(c)
			}
			fmt.Fprintln(tw, strings.Join(parts, "\t"))
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// WriteInvalid prints the invalid lines and the raw values no category or
// gender matched.
func WriteInvalid(w io.Writer, res racecheck.Result, modalities []racecheck.Modality, genders []racecheck.Gender) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\n== invalid lines (%d) ==\n", len(res.Invalid))
	fmt.Fprintln(tw, "Dorsal\tName\tSex\tCategory\tTime")
	for _, r := range res.Invalid {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Dorsal, r.Name, r.Sex, r.Category, r.Time)
	}
	if missing := racecheck.MissingCategories(res.Invalid, modalities); len(missing) > 0 {
		fmt.Fprintf(tw, "missing categories: %s\n", strings.Join(missing, ", "))
	}
	if missing := racecheck.MissingGenders(res.Invalid, genders); len(missing) > 0 {
		fmt.Fprintf(tw, "missing genders: %s\n", strings.Join(missing, ", "))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write invalid lines: %w", err)
	}
	return nil
}

func writeWorkbook(path string, modalities []racecheck.Modality, ranked []ranking.RankedRunner) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, xlsxFilePermission)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()
	if err := export.WriteXLSX(f, modalities, ranked); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
