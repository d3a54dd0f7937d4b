package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/okian/racecheck/internal/adapters/export"
	eventqueue "github.com/okian/racecheck/internal/adapters/mq/queue"
	"github.com/okian/racecheck/internal/domain/dedupe"
	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/ranking"
	"github.com/okian/racecheck/internal/domain/types"
	"github.com/okian/racecheck/pkg/logger"
	"github.com/okian/racecheck/pkg/metrics"
)

// SubmitResults validates an uploaded feed and queues it for import. A feed
// equal to the event's last accepted upload is acknowledged as a duplicate
// and not queued again. Every accepted upload carries a sequence number so
// the latest one wins however the workers interleave.
func (s *Service) SubmitResults(ctx context.Context, eventID, filename string, raw []byte) (types.Ack, error) {
	s.mu.RLock()
	started, deduper, queue, latest := s.started, s.deduper, s.queue, s.latest
	s.mu.RUnlock()
	if !started {
		return types.Ack{}, ErrNotStarted
	}
	if err := s.validateUpload(filename, raw); err != nil {
		return types.Ack{}, err
	}
	if _, err := s.store.Get(ctx, eventID); err != nil {
		return types.Ack{}, fmt.Errorf("submit results: %w", err)
	}

	checksum := dedupe.Checksum(raw)
	key := dedupe.Key(eventID, raw)

	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	if deduper.SeenAndRecord(ctx, key) {
		metrics.RecordImportDuplicate()
		s.logger.Debug(ctx, "duplicate results upload", logger.String("event_id", eventID), logger.String("checksum", checksum))
		return types.Ack{Status: types.StatusDuplicate, Duplicate: true, Checksum: checksum}, nil
	}

	job := model.ImportJob{
		JobID:       uuid.NewString(),
		EventID:     eventID,
		Filename:    filepath.Base(filename),
		Raw:         string(raw),
		Checksum:    checksum,
		Seq:         s.nextSeq(),
		SubmittedAt: s.now(),
	}
	if err := queue.Enqueue(ctx, job); err != nil {
		deduper.Unrecord(ctx, key)
		metrics.RecordImportRejected("backpressure")
		if errors.Is(err, eventqueue.ErrFull) || errors.Is(err, eventqueue.ErrClosed) {
			return types.Ack{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return types.Ack{}, fmt.Errorf("submit results: %w", err)
	}
	if prev, ok := latest[eventID]; ok && prev != key {
		deduper.Unrecord(ctx, prev)
	}
	latest[eventID] = key

	metrics.RecordImportAccepted()
	s.logger.Info(ctx, "results upload accepted",
		logger.String("event_id", eventID),
		logger.String("job_id", job.JobID),
		logger.String("filename", job.Filename),
		logger.Int("bytes", len(raw)),
	)
	return types.Ack{Status: types.StatusAccepted, JobID: job.JobID, Checksum: checksum}, nil
}

// nextSeq returns a sequence number above every one handed out before. It
// starts from the wall clock so stored sequences stay lower after a restart.
// Callers hold submitMu.
func (s *Service) nextSeq() int64 {
	seq := s.now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

// forgetUpload drops the dedupe entry of the event's last accepted upload.
func (s *Service) forgetUpload(ctx context.Context, eventID string) {
	s.mu.RLock()
	deduper, latest := s.deduper, s.latest
	s.mu.RUnlock()
	if latest == nil {
		return
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	if key, ok := latest[eventID]; ok {
		deduper.Unrecord(ctx, key)
		delete(latest, eventID)
	}
}

func (s *Service) validateUpload(filename string, raw []byte) error {
	if ext := filepath.Ext(filename); !strings.EqualFold(ext, s.resultsExtension) {
		metrics.RecordImportRejected("extension")
		return fmt.Errorf("%w: file %q must have extension %s", ErrInvalidUpload, filename, s.resultsExtension)
	}
	if int64(len(raw)) > s.maxUploadBytes {
		metrics.RecordImportRejected("too_large")
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrUploadTooLarge, len(raw), s.maxUploadBytes)
	}
	if len(raw) == 0 {
		metrics.RecordImportRejected("empty")
		return fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}
	if !utf8.Valid(raw) {
		metrics.RecordImportRejected("encoding")
		return fmt.Errorf("%w: file is not UTF-8 text", ErrInvalidUpload)
	}
	return nil
}

// MaxUploadBytes returns the upload size limit.
func (s *Service) MaxUploadBytes() int64 { return s.maxUploadBytes }

// ApplyResults stores an import job's feed on its event. Workers call it.
// A job older than the feed already stored is skipped and reported stale.
func (s *Service) ApplyResults(ctx context.Context, job model.ImportJob) (model.ImportSummary, error) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	e, err := s.store.Get(ctx, job.EventID)
	if err != nil {
		return model.ImportSummary{}, err
	}
	if job.Seq <= e.ImportSeq {
		return model.ImportSummary{JobID: job.JobID, EventID: job.EventID, Stale: true}, nil
	}
	e.Results = job.Raw
	e.ResultsFile = job.Filename
	e.ImportSeq = job.Seq
	e.ImportedAt = s.now()
	e.UpdatedAt = e.ImportedAt
	if err := s.store.Update(ctx, e); err != nil {
		return model.ImportSummary{}, err
	}

	res := s.classify(e)
	return model.ImportSummary{
		JobID:   job.JobID,
		EventID: job.EventID,
		Valid:   len(res.Valid),
		Invalid: len(res.Invalid),
	}, nil
}

// Preview classifies raw against an event's configuration without storing
// anything.
func (s *Service) Preview(ctx context.Context, eventID string, raw []byte) (types.Classification, error) {
	if int64(len(raw)) > s.maxUploadBytes {
		return types.Classification{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrUploadTooLarge, len(raw), s.maxUploadBytes)
	}
	if !utf8.Valid(raw) {
		return types.Classification{}, fmt.Errorf("%w: file is not UTF-8 text", ErrInvalidUpload)
	}
	e, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return types.Classification{}, err
	}
	e.Results = string(raw)
	res := s.classify(e)
	return types.NewClassification(e.ID, res, e.Modalities, e.Genders), nil
}

// Classification classifies the event's stored feed.
func (s *Service) Classification(ctx context.Context, eventID string) (types.Classification, error) {
	e, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return types.Classification{}, err
	}
	res := s.classify(e)
	return types.NewClassification(e.ID, res, e.Modalities, e.Genders), nil
}

// MissingCategories lists the raw category values of the stored feed that
// no configured category matches.
func (s *Service) MissingCategories(ctx context.Context, eventID string) ([]string, error) {
	c, err := s.Classification(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return c.MissingCategories, nil
}

// Results ranks the stored feed. A non-empty modality restricts the answer
// to that modality and must name a configured one.
func (s *Service) Results(ctx context.Context, eventID, modality string) (types.Results, error) {
	e, ranked, err := s.rankEvent(ctx, eventID)
	if err != nil {
		return types.Results{}, err
	}
	if modality != "" && !hasModality(e.Modalities, modality) {
		return types.Results{}, fmt.Errorf("%w: %q", ErrUnknownModality, modality)
	}
	return types.NewResults(e.ID, e.Modalities, ranked, modality), nil
}

// Ticket returns the positions of the runner wearing dorsal. With a
// modality only that modality is searched; otherwise the first hit wins.
func (s *Service) Ticket(ctx context.Context, eventID, dorsal, modality string) (types.Ticket, error) {
	e, ranked, err := s.rankEvent(ctx, eventID)
	if err != nil {
		return types.Ticket{}, err
	}
	if modality != "" {
		if !hasModality(e.Modalities, modality) {
			return types.Ticket{}, fmt.Errorf("%w: %q", ErrUnknownModality, modality)
		}
		ranked = ranking.ByModality(ranked, modality)
	}
	rr, ok := ranking.FindByDorsal(ranked, dorsal)
	if !ok {
		return types.Ticket{}, fmt.Errorf("%w: dorsal %q", ErrRunnerNotFound, dorsal)
	}
	return types.Ticket{
		EventID:   e.ID,
		EventName: e.Name,
		EventDate: e.Date,
		Modality:  rr.ModalityRef.Name,
		ResultRow: types.NewResultRow(rr),
	}, nil
}

// ExportResults writes the ranked roster as an XLSX workbook.
func (s *Service) ExportResults(ctx context.Context, eventID string, w io.Writer) error {
	e, ranked, err := s.rankEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := export.WriteXLSX(w, e.Modalities, ranked); err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	return nil
}

func (s *Service) rankEvent(ctx context.Context, eventID string) (model.Event, []ranking.RankedRunner, error) {
	e, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, nil, err
	}
	res := s.classify(e)

	start := time.Now()
	ranked := s.engine.Rank(res.Valid, e.Modalities, e.Genders)
	metrics.RecordRanking(float64(time.Since(start).Microseconds())/1000, len(ranked))
	return e, ranked, nil
}

func (s *Service) classify(e model.Event) racecheck.Result {
	res := e.Classify()
	metrics.RecordClassification(len(res.Valid), len(res.Invalid))
	return res
}

func hasModality(modalities []racecheck.Modality, name string) bool {
	for _, m := range modalities {
		if m.Name == name {
			return true
		}
	}
	return false
}
