package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/reliefroute/backend/internal/events"
	"github.com/reliefroute/backend/internal/models"
)

type RecomputeReport struct {
	Weights        models.WeightVector       `json:"weights"`
	WeightsUpdated bool                      `json:"weights_updated"`
	Reliability    []models.ReliabilityEntry `json:"reliability"`
}

// Recomputer refreshes learned state after outcomes arrive.
type Recomputer struct {
	Weights     *WeightStore
	Reliability *ReliabilityTracker
	Logger      zerolog.Logger
}

// Run recomputes weights and reliability side by side. Both tasks always run to the end;
// their errors are joined.
func (r *Recomputer) Run(ctx context.Context) (RecomputeReport, error) {
	var (
		report     RecomputeReport
		weightsErr error
		relErr     error
	)
	var g errgroup.Group
	g.Go(func() error {
		report.Weights, report.WeightsUpdated, weightsErr = r.Weights.Recompute(ctx)
		return weightsErr
	})
	g.Go(func() error {
		report.Reliability, relErr = r.Reliability.Recompute(ctx)
		return relErr
	})
	_ = g.Wait()
	return report, errors.Join(weightsErr, relErr)
}

// Subscribe runs a recompute for every resolved request.
func (r *Recomputer) Subscribe(bus events.Bus) error {
	return bus.Subscribe(events.SubjectRequestResolved, func(ctx context.Context, payload []byte) error {
		evt, err := events.Decode[events.RequestResolved](payload)
		if err != nil {
			return err
		}
		if _, err := r.Run(ctx); err != nil {
			r.Logger.Error().Err(err).Str("request_id", evt.RequestID).Msg("recompute after resolution failed")
			return err
		}
		r.Logger.Debug().Str("request_id", evt.RequestID).Str("outcome", evt.Outcome).Msg("recompute after resolution done")
		return nil
	})
}
