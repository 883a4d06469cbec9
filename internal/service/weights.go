package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/reliefroute/backend/internal/db"
	"github.com/reliefroute/backend/internal/metrics"
	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/routing"
)

const DefaultWeightsTTL = 5 * time.Minute

type WeightStoreConfig struct {
	TTL          time.Duration
	HistoryLimit int
	MinRecords   int
	Defaults     models.WeightVector
}

// WeightStore serves the current weight vector from a time-stamped snapshot. Readers never
// wait on each other: concurrent refreshes collapse into one storage read.
type WeightStore struct {
	repo   WeightHistory
	cfg    WeightStoreConfig
	logger zerolog.Logger
	now    func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	snapshot models.WeightVector
	loadedAt time.Time
	loaded   bool
}

func NewWeightStore(repo WeightHistory, cfg WeightStoreConfig, logger zerolog.Logger) *WeightStore {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultWeightsTTL
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = routing.FeedbackHistoryLimit
	}
	if cfg.MinRecords <= 0 {
		cfg.MinRecords = routing.MinFeedbackRecords
	}
	if cfg.Defaults == (models.WeightVector{}) {
		cfg.Defaults = routing.DefaultWeights()
	}
	return &WeightStore{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

// Current returns the snapshot, refreshing it when older than the TTL. When storage is
// unreachable the last good snapshot is served, or the defaults before the first load.
func (s *WeightStore) Current(ctx context.Context) models.WeightVector {
	s.mu.RLock()
	w, fresh := s.snapshot, s.loaded && s.now().Sub(s.loadedAt) < s.cfg.TTL
	loaded := s.loaded
	s.mu.RUnlock()
	if fresh {
		return w
	}

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Bool("stale", loaded).Msg("weights refresh failed")
		if loaded {
			return w
		}
		return s.cfg.Defaults
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Refresh reloads the snapshot from storage. A store without saved weights yields the defaults.
func (s *WeightStore) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (any, error) {
		w, err := s.repo.LatestWeights(ctx)
		if errors.Is(err, db.ErrNotFound) {
			w, err = s.cfg.Defaults, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load weights: %w", err)
		}
		s.swap(routing.ClampWeights(w, s.cfg.Defaults))
		return nil, nil
	})
	return err
}

// Recompute learns a new vector from recent feedback and persists it. updated is false when
// the history is too short, in which case the current snapshot is returned unchanged.
func (s *WeightStore) Recompute(ctx context.Context) (w models.WeightVector, updated bool, err error) {
	records, err := s.repo.RecentFeedback(ctx, s.cfg.HistoryLimit)
	if err != nil {
		metrics.ObserveRecompute("weights", "error")
		return models.WeightVector{}, false, fmt.Errorf("load feedback: %w", err)
	}

	next, ok := routing.RecomputeWeightsMin(records, s.cfg.Defaults, s.now().UTC(), s.cfg.MinRecords)
	if !ok {
		metrics.ObserveRecompute("weights", "skipped")
		s.logger.Info().Int("records", len(records)).Int("min_records", s.cfg.MinRecords).Msg("not enough feedback to recompute weights")
		return s.Current(ctx), false, nil
	}
	next = routing.ClampWeights(next, s.cfg.Defaults)
	if err := s.repo.SaveWeights(ctx, next); err != nil {
		metrics.ObserveRecompute("weights", "error")
		return models.WeightVector{}, false, fmt.Errorf("save weights: %w", err)
	}
	s.swap(next)
	metrics.ObserveRecompute("weights", "updated")
	s.logger.Info().
		Int("records", len(records)).
		Float64("service", next.Service).
		Float64("location", next.Location).
		Float64("semantic", next.Semantic).
		Float64("eta", next.ETA).
		Float64("load", next.Load).
		Float64("reliability", next.Reliability).
		Msg("weights recomputed")
	return next, true, nil
}

func (s *WeightStore) swap(w models.WeightVector) {
	s.mu.Lock()
	s.snapshot = w
	s.loadedAt = s.now()
	s.loaded = true
	s.mu.Unlock()
}
