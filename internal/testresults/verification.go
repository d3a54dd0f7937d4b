package testresults

import (
	"context"
	"fmt"

	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/ranking"
	"github.com/okian/racecheck/internal/domain/types"
	"github.com/okian/racecheck/pkg/logger"
)

// positions identifies one ranked row for comparison.
type positions struct {
	general, category, gender int
}

// verifyEvent compares the service's ranking of e with a local ranking of
// the same feed and returns the number of rows that differ.
func verifyEvent(ctx context.Context, client *HTTPClient, e Event, config *Config) (int, error) {
	var got types.Results
	if _, err := client.Get(ctx, "/events/"+e.ID+"/results", &got); err != nil {
		return 0, fmt.Errorf("fetch results: %w", err)
	}

	want := expected(e, config.Subsecond)
	mismatches := 0
	seen := 0
	for _, mr := range got.Modalities {
		for _, row := range mr.Runners {
			seen++
			key := mr.Modality + "/" + row.Dorsal
			p, ok := want[key]
			if !ok || p != (positions{row.PosGeneral, row.PosCat, row.PosSexo}) {
				mismatches++
				if config.Verbose {
					logger.Get().Warn(ctx, "ranking mismatch",
						logger.String("event_id", e.ID),
						logger.String("runner", key),
						logger.Any("want", p),
						logger.Any("got", positions{row.PosGeneral, row.PosCat, row.PosSexo}),
					)
				}
			}
		}
	}
	if seen != len(want) {
		mismatches += abs(len(want) - seen)
	}
	return mismatches, nil
}

// expected ranks e's feed locally, keyed by modality and dorsal.
func expected(e Event, subsecond bool) map[string]positions {
	res := racecheck.Classify(e.Feed, e.Modalities, e.Genders)
	out := make(map[string]positions)
	engine := ranking.New(ranking.WithSubsecondTieBreak(subsecond))
	for _, rr := range engine.Rank(res.Valid, e.Modalities, e.Genders) {
		out[rr.ModalityRef.Name+"/"+rr.Dorsal] = positions{rr.PosGeneral, rr.PosCat, rr.PosSexo}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
