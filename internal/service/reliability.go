package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/reliefroute/backend/internal/metrics"
	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/routing"
)

type ReliabilityTracker struct {
	repo   ReliabilityHistory
	logger zerolog.Logger
	now    func() time.Time
}

func NewReliabilityTracker(repo ReliabilityHistory, logger zerolog.Logger) *ReliabilityTracker {
	return &ReliabilityTracker{repo: repo, logger: logger, now: time.Now}
}

// Recompute rebuilds every entry from the full feedback history and overwrites the table.
func (t *ReliabilityTracker) Recompute(ctx context.Context) ([]models.ReliabilityEntry, error) {
	records, err := t.repo.AllFeedback(ctx)
	if err != nil {
		metrics.ObserveRecompute("reliability", "error")
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	entries := routing.ComputeReliability(records, t.now().UTC())
	if err := t.repo.ReplaceReliability(ctx, entries); err != nil {
		metrics.ObserveRecompute("reliability", "error")
		return nil, fmt.Errorf("save reliability: %w", err)
	}
	metrics.ObserveRecompute("reliability", "updated")
	t.logger.Info().Int("records", len(records)).Int("responders", len(entries)).Msg("reliability recomputed")
	return entries, nil
}

// Scores returns responder id -> reliability. Read failures give an empty index so every
// responder gets the neutral default.
func (t *ReliabilityTracker) Scores(ctx context.Context) map[string]float64 {
	entries, err := t.repo.ListReliability(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("reliability unavailable, using neutral scores")
		return map[string]float64{}
	}
	return routing.ReliabilityIndex(entries)
}
