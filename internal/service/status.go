package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/reliefroute/backend/internal/events"
	"github.com/reliefroute/backend/internal/models"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Assignment itself moves new -> assigned; status updates cover the rest of the lifecycle.
var transitions = map[string][]string{
	models.StatusAssigned:   {models.StatusInProgress, models.StatusFailed},
	models.StatusInProgress: {models.StatusCompleted, models.StatusFailed},
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func outcomeFor(status string) (string, bool) {
	switch status {
	case models.StatusCompleted:
		return models.OutcomeCompleted, true
	case models.StatusFailed:
		return models.OutcomeFailed, true
	}
	return "", false
}

// UpdateStatus moves a request along its lifecycle. Terminal statuses resolve the pending
// feedback record and publish request.resolved.
func (s *ProcessingService) UpdateStatus(ctx context.Context, requestID, status string) (models.Request, error) {
	release, err := s.Locker.Acquire(ctx, lockKey(requestID), s.lockTTL())
	if err != nil {
		return models.Request{}, err
	}
	defer release()

	req, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return models.Request{}, err
	}
	if !CanTransition(req.Status, status) {
		return req, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, status)
	}

	now := s.clock()
	outcome, terminal := outcomeFor(status)
	if !terminal {
		if err := s.Store.UpdateRequestStatus(ctx, requestID, status); err != nil {
			return models.Request{}, err
		}
		req.Status = status
		req.UpdatedAt = now
		return req, nil
	}

	fb, err := s.Store.ResolveRequest(ctx, requestID, status, outcome, now)
	if err != nil {
		return models.Request{}, err
	}
	req.Status = status
	req.UpdatedAt = now

	responderID := ""
	if fb != nil {
		responderID = fb.ResponderID
	} else if req.AssignedResponderID != nil {
		responderID = *req.AssignedResponderID
	}
	s.Logger.Info().Str("request_id", requestID).Str("status", status).Str("responder_id", responderID).Msg("request resolved")

	if s.Bus != nil {
		err := s.Bus.Publish(ctx, events.SubjectRequestResolved, events.RequestResolved{
			RequestID:   requestID,
			ResponderID: responderID,
			Outcome:     outcome,
			ResolvedAt:  now,
		})
		if err != nil {
			s.Logger.Warn().Err(err).Str("request_id", requestID).Msg("failed to publish resolution")
		}
	}
	return req, nil
}
