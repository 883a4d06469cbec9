package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reliefroute/backend/internal/ai"
	"github.com/reliefroute/backend/internal/db"
	"github.com/reliefroute/backend/internal/events"
	"github.com/reliefroute/backend/internal/lock"
	"github.com/reliefroute/backend/internal/metrics"
	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/routing"
)

// ErrNotAssignable is returned when the request has already left status new.
var ErrNotAssignable = errors.New("request is not awaiting assignment")

type AssignmentResult struct {
	Request    models.Request    `json:"request"`
	Selection  routing.Selection `json:"selection"`
	FeedbackID string            `json:"feedback_id,omitempty"`
}

type decision struct {
	responders []models.Responder
	scoring    routing.Context
}

// decisionContext gathers the read-only inputs of one decision. Only an unreachable
// responder list is fatal; loads degrade to zero and weights to the last snapshot.
func (s *ProcessingService) decisionContext(ctx context.Context) (decision, error) {
	responders, err := s.Store.ListResponders(ctx, true)
	if err != nil {
		return decision{}, fmt.Errorf("load responders: %w", err)
	}
	loads, err := s.Store.ActiveAssignmentCounts(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("active assignment counts unavailable, assuming zero load")
		loads = map[string]int{}
	}
	weights := routing.DefaultWeights()
	if s.Weights != nil {
		weights = s.Weights.Current(ctx)
	}
	reliability := map[string]float64{}
	if s.Reliability != nil {
		reliability = s.Reliability.Scores(ctx)
	}
	return decision{
		responders: responders,
		scoring: routing.Context{
			Weights:     weights,
			Loads:       loads,
			Reliability: reliability,
			Vocabulary:  s.vocabulary(),
			Policy:      s.Policy,
		},
	}, nil
}

// Assign picks a responder for one request and commits the decision. An unassignable
// request is reported in the result, not as an error.
func (s *ProcessingService) Assign(ctx context.Context, requestID string) (AssignmentResult, error) {
	release, err := s.Locker.Acquire(ctx, lockKey(requestID), s.lockTTL())
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			metrics.ObserveLockContention()
		}
		return AssignmentResult{}, err
	}
	defer release()

	req, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return AssignmentResult{}, err
	}
	if req.Status != models.StatusNew {
		return AssignmentResult{Request: req}, ErrNotAssignable
	}

	dc, err := s.decisionContext(ctx)
	if err != nil {
		return AssignmentResult{}, err
	}
	dc.scoring.RequestEmbedding = s.embedRequest(ctx, req)

	sel := routing.ScoreAndSelect(req, dc.responders, dc.scoring)
	if sel.Unassignable {
		metrics.ObserveAssignment("single", "unassignable", 0)
		s.Logger.Info().Str("request_id", req.ID).Str("reason", sel.Reason).Msg("request unassignable")
		return AssignmentResult{Request: req, Selection: sel}, nil
	}

	fb := newFeedback(req.ID, sel.ResponderID, sel.Breakdown.Components, sel.Breakdown.Total, s.clock())
	if err := s.Store.CommitAssignment(ctx, fb); err != nil {
		metrics.ObserveAssignment("single", "failed", 0)
		if errors.Is(err, db.ErrConflict) {
			return AssignmentResult{}, ErrNotAssignable
		}
		return AssignmentResult{}, err
	}
	metrics.ObserveAssignment("single", "assigned", fb.Total)
	s.Logger.Info().Str("request_id", req.ID).Str("responder_id", fb.ResponderID).
		Str("breakdown", sel.Breakdown.String()).Msg("request assigned")
	s.publishAssigned(ctx, fb, "single")

	responderID := fb.ResponderID
	req.Status = models.StatusAssigned
	req.AssignedResponderID = &responderID
	req.UpdatedAt = fb.AssignedAt
	return AssignmentResult{Request: req, Selection: sel, FeedbackID: fb.ID}, nil
}

// embedRequest returns nil when no embedder is configured or it fails.
func (s *ProcessingService) embedRequest(ctx context.Context, req models.Request) []float64 {
	if s.Embedder == nil {
		return nil
	}
	text := ai.CombineChannels(req.Text, req.OCRText, req.Transcript)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	vec, err := s.Embedder.Embed(ctx, text)
	if err != nil {
		s.Logger.Warn().Err(err).Str("request_id", req.ID).Msg("embedding failed, semantic score disabled")
		return nil
	}
	return vec
}

func (s *ProcessingService) publishAssigned(ctx context.Context, fb models.FeedbackRecord, mode string) {
	if s.Bus == nil {
		return
	}
	err := s.Bus.Publish(ctx, events.SubjectRequestAssigned, events.RequestAssigned{
		RequestID:   fb.RequestID,
		ResponderID: fb.ResponderID,
		Mode:        mode,
		Total:       fb.Total,
		AssignedAt:  fb.AssignedAt,
	})
	if err != nil {
		s.Logger.Warn().Err(err).Str("request_id", fb.RequestID).Msg("failed to publish assignment")
	}
}

func newFeedback(requestID, responderID string, components models.ComponentScores, total float64, at time.Time) models.FeedbackRecord {
	return models.FeedbackRecord{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		ResponderID: responderID,
		Components:  components,
		Total:       total,
		Outcome:     models.OutcomePending,
		AssignedAt:  at,
	}
}

func lockKey(requestID string) string {
	return "assign:" + requestID
}
