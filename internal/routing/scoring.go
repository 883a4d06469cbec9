package routing

import (
	"fmt"
	"math"

	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/utils"
)

// Policy holds operator-tunable selection behaviour.
type Policy struct {
	// NearestOverride makes the closest responder with coordinates win outright.
	NearestOverride bool
}

// Context is everything the scoring function needs besides the request and responder.
// It is read-only during a decision.
type Context struct {
	Weights          models.WeightVector
	Loads            map[string]int
	Reliability      map[string]float64
	RequestEmbedding []float64
	Vocabulary       *Vocabulary
	Policy           Policy
}

type Breakdown struct {
	ResponderID   string                 `json:"responder_id"`
	ResponderName string                 `json:"responder_name"`
	Components    models.ComponentScores `json:"components"`
	DistanceKm    *float64               `json:"distance_km,omitempty"`
	ETAMinutes    *float64               `json:"eta_minutes,omitempty"`
	Total         float64                `json:"total"`
}

func (b Breakdown) String() string {
	c := b.Components
	s := fmt.Sprintf("service=%.2f location=%.2f semantic=%.2f eta=%.2f load=%.2f reliability=%.2f total=%.2f",
		c.Service, c.Location, c.Semantic, c.ETA, c.Load, c.Reliability, b.Total)
	if b.DistanceKm != nil {
		s += fmt.Sprintf(" distance_km=%.1f", *b.DistanceKm)
	}
	return s
}

// Score evaluates one responder for one request. It has no side effects.
func Score(req models.Request, responder models.Responder, ctx Context) Breakdown {
	c := models.ComponentScores{
		Service:     ServiceMatch(req.IncidentType(), responder.Capabilities, ctx.Vocabulary),
		Location:    LocationScore(req.Location, responder.Location),
		Semantic:    SemanticScore(ctx.RequestEmbedding, responder.Embedding),
		ETA:         ETAScore(req.Location, responder.Location),
		Load:        LoadScore(ctx.Loads[responder.ID]),
		Reliability: ReliabilityScore(ctx.Reliability, responder.ID),
	}

	b := Breakdown{
		ResponderID:   responder.ID,
		ResponderName: responder.Name,
		Components:    c,
		Total:         Combine(c, ctx.Weights),
	}
	if d, ok := Distance(req.Location, responder.Location); ok {
		eta := utils.TravelMinutes(d)
		b.DistanceKm = &d
		b.ETAMinutes = &eta
	}
	return b
}

// Combine applies the weight vector. The load term always subtracts.
func Combine(c models.ComponentScores, w models.WeightVector) float64 {
	return w.Service*c.Service +
		w.Location*c.Location +
		w.Semantic*c.Semantic +
		w.ETA*c.ETA -
		math.Abs(w.Load*c.Load) +
		w.Reliability*c.Reliability
}
