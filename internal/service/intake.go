package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reliefroute/backend/internal/ai"
	"github.com/reliefroute/backend/internal/db"
	"github.com/reliefroute/backend/internal/geocode"
	"github.com/reliefroute/backend/internal/metrics"
	"github.com/reliefroute/backend/internal/models"
)

type IntakeInput struct {
	ClientID   string
	Text       string
	OCRText    string
	Transcript string
	Location   models.Location
	Contact    string
}

// Intake classifies and geocodes a new request, then stores it with status new.
// A repeated client id returns the stored request and created=false.
func (s *ProcessingService) Intake(ctx context.Context, in IntakeInput) (req models.Request, created bool, err error) {
	in.ClientID = strings.TrimSpace(in.ClientID)
	if in.ClientID != "" {
		existing, err := s.Store.FindRequestByClientID(ctx, in.ClientID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return models.Request{}, false, err
		}
	}

	now := s.clock()
	req = models.Request{
		ID:         uuid.NewString(),
		ClientID:   in.ClientID,
		Text:       strings.TrimSpace(in.Text),
		OCRText:    strings.TrimSpace(in.OCRText),
		Transcript: strings.TrimSpace(in.Transcript),
		Location:   in.Location,
		Contact:    strings.TrimSpace(in.Contact),
		Status:     models.StatusNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	req.Location.Label = strings.TrimSpace(req.Location.Label)

	var (
		classification models.Classification
		coords         *models.Coordinates
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		classification = s.Classifier.Classify(gctx, ai.Input{
			Text:       req.Text,
			OCRText:    req.OCRText,
			Transcript: req.Transcript,
			Location:   req.Location.Label,
		})
		return nil
	})
	if s.Geocoder != nil && geocode.ShouldGeocode(req.Location) {
		g.Go(func() error {
			coords = s.lookup(gctx, req.Location.Label)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Request{}, false, err
	}
	req.Classification = &classification
	if coords != nil {
		req.Location.Coords = coords
	}

	if err := s.Store.InsertRequest(ctx, req); err != nil {
		if errors.Is(err, db.ErrConflict) && req.ClientID != "" {
			existing, findErr := s.Store.FindRequestByClientID(ctx, req.ClientID)
			if findErr == nil {
				return existing, false, nil
			}
		}
		return models.Request{}, false, err
	}
	s.Logger.Info().
		Str("request_id", req.ID).
		Str("incident_type", classification.IncidentType).
		Int("urgency", classification.Urgency).
		Str("source", classification.Source).
		Bool("geocoded", coords != nil).
		Msg("request received")
	return req, true, nil
}

func (s *ProcessingService) lookup(ctx context.Context, label string) *models.Coordinates {
	query := geocode.BuildQuery(label, s.Country)
	res, err := s.Geocoder.Geocode(ctx, query)
	switch {
	case err == nil:
		metrics.ObserveGeocode("hit")
		c := res.Coords
		return &c
	case errors.Is(err, geocode.ErrNotFound):
		metrics.ObserveGeocode("miss")
	default:
		metrics.ObserveGeocode("error")
		s.Logger.Warn().Err(err).Str("query", query).Msg("geocoding failed")
	}
	return nil
}

// RegisterResponder stores a responder, embedding its profile when an embedder is configured.
func (s *ProcessingService) RegisterResponder(ctx context.Context, r models.Responder) (models.Responder, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.UpdatedAt = s.clock()
	if s.Geocoder != nil && geocode.ShouldGeocode(r.Location) {
		r.Location.Coords = s.lookup(ctx, r.Location.Label)
	}
	if len(r.Embedding) == 0 && s.Embedder != nil {
		profile := ai.CombineChannels(r.Name, strings.Join(r.Capabilities, ", "), r.Location.Label)
		vec, err := s.Embedder.Embed(ctx, profile)
		if err != nil {
			s.Logger.Warn().Err(err).Str("responder_id", r.ID).Msg("responder embedding failed")
		} else {
			r.Embedding = vec
		}
	}
	if err := s.Store.UpsertResponder(ctx, r); err != nil {
		return models.Responder{}, err
	}
	return r, nil
}
