package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/reliefroute/backend/internal/metrics"
	"github.com/reliefroute/backend/internal/models"
)

const DefaultClassifyTimeout = 8 * time.Second

// Resolver is the single entry point for classification. It asks the semantic classifier
// when one is configured and substitutes ClassifyFallback on absence, error, timeout or
// output that fails validation. Classify never returns an error.
type Resolver struct {
	Semantic  Classifier
	Timeout   time.Duration
	Validator *validator.Validate
	Logger    zerolog.Logger
}

func (r *Resolver) Classify(ctx context.Context, in Input) models.Classification {
	fallback := ClassifyFallback(in.Text, in.OCRText, in.Transcript)
	if r.Semantic == nil {
		metrics.ObserveClassification(SourceFallback, "not_configured", 0)
		return fallback
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := r.Semantic.Classify(cctx, in)
	waited := time.Since(start)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		r.Logger.Warn().Err(err).Str("outcome", outcome).Dur("waited", waited).Msg("semantic classifier failed, using fallback")
		metrics.ObserveClassification(SourceFallback, outcome, waited)
		return fallback
	}

	out = normalizeClassification(out)
	if err := r.validator().Struct(out); err != nil {
		r.Logger.Warn().Err(err).Str("incident_type", out.IncidentType).Str("category", out.Category).
			Msg("semantic classifier output invalid, using fallback")
		metrics.ObserveClassification(SourceFallback, "invalid", waited)
		return fallback
	}

	metrics.ObserveClassification(out.Source, "ok", waited)
	return completeClassification(out, fallback)
}

var sharedValidator = sync.OnceValue(NewValidator)

func (r *Resolver) validator() *validator.Validate {
	if r.Validator != nil {
		return r.Validator
	}
	return sharedValidator()
}

func normalizeClassification(c models.Classification) models.Classification {
	c.IncidentType = strings.ToLower(strings.TrimSpace(c.IncidentType))
	c.Category = strings.ToLower(strings.TrimSpace(c.Category))
	if c.Source == "" {
		c.Source = SourceSemantic
	}
	return c
}

// completeClassification fills optional fields the semantic classifier left empty.
func completeClassification(c, fallback models.Classification) models.Classification {
	if c.Severity.Level == 0 {
		c.Severity = fallback.Severity
	} else {
		c.Severity.Level = ClampUrgency(c.Severity.Level)
		if c.Severity.Label == "" {
			c.Severity.Label = SeverityLabel(c.Severity.Level)
		}
	}
	if c.PeopleAffected == 0 {
		c.PeopleAffected = fallback.PeopleAffected
	}
	if !c.Trapped {
		c.Trapped = fallback.Trapped
	}
	if !c.Injured {
		c.Injured = fallback.Injured
	}
	if c.SpecialConstraints == nil {
		c.SpecialConstraints = fallback.SpecialConstraints
	}
	if len(c.Needs) == 0 {
		c.Needs = fallback.Needs
	}
	if c.UncertaintyReasons == nil {
		c.UncertaintyReasons = []string{}
	}
	if strings.TrimSpace(c.Summary) == "" {
		c.Summary = fallback.Summary
	}
	return c
}
