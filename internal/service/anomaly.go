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

type AnomalyScanner struct {
	Repo   RequestRepository
	Config routing.AnomalyConfig
	Limit  int
	Logger zerolog.Logger

	now func() time.Time
}

// Detect scores the most recent requests. limit <= 0 uses the scanner default.
func (s *AnomalyScanner) Detect(ctx context.Context, limit int) ([]models.AnomalyFlag, error) {
	if limit <= 0 {
		limit = s.Limit
	}
	if limit <= 0 {
		limit = routing.DefaultAnomalyLimit
	}
	cfg := s.Config
	if cfg.Window <= 0 {
		cfg = routing.DefaultAnomalyConfig()
	}

	requests, err := s.Repo.RecentRequests(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load recent requests: %w", err)
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	flags := routing.DetectAnomalies(requests, now().UTC(), cfg)
	metrics.ObserveAnomalies(len(flags))
	if len(flags) > 0 {
		s.Logger.Info().Int("scanned", len(requests)).Int("flagged", len(flags)).Msg("anomalies detected")
	}
	return flags, nil
}
