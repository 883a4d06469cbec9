package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/reliefroute/backend/internal/ai"
	"github.com/reliefroute/backend/internal/db"
	"github.com/reliefroute/backend/internal/events"
	"github.com/reliefroute/backend/internal/geocode"
	"github.com/reliefroute/backend/internal/lock"
	"github.com/reliefroute/backend/internal/metrics"
	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/routing"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "completed_with_errors"
	RunStatusFailed    = "failed"

	DefaultLockTTL = 30 * time.Second

	embedConcurrency = 4
)

var (
	errBatchSkipped     = errors.New("skipped: request changed during the run")
	errBatchWriteFailed = errors.New("write failed")
)

// RequestClassifier never fails; ai.Resolver substitutes the fallback itself.
type RequestClassifier interface {
	Classify(ctx context.Context, in ai.Input) models.Classification
}

type ProcessingService struct {
	Store       Repository
	Classifier  RequestClassifier
	Embedder    ai.Embedder
	Geocoder    geocode.Geocoder
	Country     string
	Weights     *WeightStore
	Reliability *ReliabilityTracker
	Locker      lock.Locker
	Bus         events.Bus
	Vocabulary  *routing.Vocabulary
	Policy      routing.Policy
	LockTTL     time.Duration
	Logger      zerolog.Logger

	now func() time.Time
}

type RunSummary struct {
	RunID   string                `json:"run_id"`
	Events  []map[string]any      `json:"events"`
	Counts  map[string]int        `json:"counts"`
	Results []routing.BatchResult `json:"results"`
}

func (s *ProcessingService) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *ProcessingService) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return DefaultLockTTL
}

func (s *ProcessingService) vocabulary() *routing.Vocabulary {
	if s.Vocabulary != nil {
		return s.Vocabulary
	}
	return routing.DefaultVocabulary()
}

// Classify runs the classifier chain on ad-hoc input without persisting anything.
func (s *ProcessingService) Classify(ctx context.Context, in ai.Input) models.Classification {
	return s.Classifier.Classify(ctx, in)
}

// ProcessPending assigns every request still in status new as one batch. Requests are
// ordered by urgency, most urgent first, then by age. Each assignment is committed on
// its own, so one failed write does not undo the others.
func (s *ProcessingService) ProcessPending(ctx context.Context) (RunSummary, error) {
	runID, err := s.Store.CreateRun(ctx, RunStatusRunning)
	if err != nil {
		return RunSummary{}, err
	}
	start := time.Now()
	summary := RunSummary{RunID: runID, Counts: map[string]int{}}

	finish := func(status string) {
		payload, _ := json.Marshal(summary)
		if err := s.Store.FinishRun(context.WithoutCancel(ctx), runID, status, payload); err != nil {
			s.Logger.Error().Err(err).Str("run_id", runID).Msg("failed to finish run")
		}
	}

	pending, err := s.Store.PendingRequests(ctx)
	if err != nil {
		finish(RunStatusFailed)
		return summary, err
	}
	sortByUrgency(pending)
	summary.Events = append(summary.Events, map[string]any{
		"type":  "pending_loaded",
		"count": len(pending),
		"time":  s.clock(),
	})

	dc, err := s.decisionContext(ctx)
	if err != nil {
		finish(RunStatusFailed)
		return summary, err
	}

	items, err := s.batchItems(ctx, pending)
	if err != nil {
		finish(RunStatusFailed)
		return summary, err
	}

	var assigned, unassignable, skipped, failed int
	commit := func(item routing.BatchItem, res routing.BatchResult) error {
		err := s.commitBatchResult(ctx, item.Request, res)
		switch {
		case err == nil:
			assigned++
			metrics.ObserveAssignment("batch", "assigned", res.Total)
			return nil
		case errors.Is(err, lock.ErrLocked), errors.Is(err, db.ErrConflict):
			skipped++
			metrics.ObserveAssignment("batch", "skipped", 0)
			return errBatchSkipped
		default:
			failed++
			metrics.ObserveAssignment("batch", "failed", 0)
			s.Logger.Error().Err(err).Str("request_id", res.RequestID).Msg("batch assignment write failed")
			return errBatchWriteFailed
		}
	}
	results := routing.BatchAssignWith(items, dc.responders, dc.scoring, commit)
	unassignable = len(results) - assigned - skipped - failed
	for i := 0; i < unassignable; i++ {
		metrics.ObserveAssignment("batch", "unassignable", 0)
	}
	summary.Results = results

	summary.Events = append(summary.Events, map[string]any{
		"type":         "assignment",
		"assigned":     assigned,
		"unassignable": unassignable,
		"skipped":      skipped,
		"failed":       failed,
		"elapsed_ms":   time.Since(start).Milliseconds(),
		"time":         s.clock(),
	})
	summary.Counts["pending"] = len(pending)
	summary.Counts["assigned"] = assigned
	summary.Counts["unassignable"] = unassignable
	summary.Counts["skipped"] = skipped
	summary.Counts["failed"] = failed

	status := RunStatusCompleted
	if failed > 0 {
		status = RunStatusPartial
	}
	finish(status)
	s.Logger.Info().Str("run_id", runID).Int("pending", len(pending)).Int("assigned", assigned).
		Int("unassignable", unassignable).Int("failed", failed).Msg("batch processed")
	return summary, nil
}

func (s *ProcessingService) commitBatchResult(ctx context.Context, req models.Request, res routing.BatchResult) error {
	release, err := s.Locker.Acquire(ctx, lockKey(req.ID), s.lockTTL())
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			metrics.ObserveLockContention()
		}
		return err
	}
	defer release()

	fb := newFeedback(req.ID, *res.ResponderID, *res.Components, res.Total, s.clock())
	if err := s.Store.CommitAssignment(ctx, fb); err != nil {
		return err
	}
	s.publishAssigned(ctx, fb, "batch")
	return nil
}

func (s *ProcessingService) batchItems(ctx context.Context, pending []models.Request) ([]routing.BatchItem, error) {
	items := make([]routing.BatchItem, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i := range pending {
		i := i
		items[i].Request = pending[i]
		g.Go(func() error {
			items[i].Embedding = s.embedRequest(gctx, pending[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func sortByUrgency(list []models.Request) {
	sort.SliceStable(list, func(i, j int) bool {
		ui, uj := list[i].Urgency(), list[j].Urgency()
		if ui != uj {
			return ui > uj
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
