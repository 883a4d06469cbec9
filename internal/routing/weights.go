package routing

import (
	"math"
	"time"

	"github.com/reliefroute/backend/internal/models"
)

const (
	FeedbackHistoryLimit = 200
	MinFeedbackRecords   = 20

	minAdjustment = 0.5
	maxAdjustment = 1.5
)

// DefaultWeights folds the historic service multiplier into the service weight so every
// caller ranks on the same scale.
func DefaultWeights() models.WeightVector {
	return models.WeightVector{
		Service:     20,
		Location:    1,
		Semantic:    1,
		ETA:         1,
		Load:        -1.5,
		Reliability: 4,
	}
}

// ClampWeights keeps every weight within [0.5, 1.5] of its default and the load weight non-positive.
func ClampWeights(w, defaults models.WeightVector) models.WeightVector {
	w.Service = clampAround(w.Service, defaults.Service)
	w.Location = clampAround(w.Location, defaults.Location)
	w.Semantic = clampAround(w.Semantic, defaults.Semantic)
	w.ETA = clampAround(w.ETA, defaults.ETA)
	w.Load = math.Min(0, clampAround(w.Load, defaults.Load))
	w.Reliability = clampAround(w.Reliability, defaults.Reliability)
	return w
}

func clampAround(v, def float64) float64 {
	lo, hi := def*minAdjustment, def*maxAdjustment
	if lo > hi {
		lo, hi = hi, lo
	}
	if math.IsNaN(v) {
		return def
	}
	return math.Max(lo, math.Min(hi, v))
}

// RecomputeWeights derives a new weight vector from recent feedback. Each dimension is scaled
// by how much larger that signal was, on average, for completed assignments than for all of
// them. ok is false when there are too few records to learn from.
func RecomputeWeights(records []models.FeedbackRecord, defaults models.WeightVector, now time.Time) (models.WeightVector, bool) {
	return RecomputeWeightsMin(records, defaults, now, MinFeedbackRecords)
}

// RecomputeWeightsMin is RecomputeWeights with a caller-chosen minimum history size.
func RecomputeWeightsMin(records []models.FeedbackRecord, defaults models.WeightVector, now time.Time, minRecords int) (models.WeightVector, bool) {
	if minRecords < 1 {
		minRecords = 1
	}
	if len(records) < minRecords {
		return defaults, false
	}

	var all, done [6]float64
	completed := 0
	for _, r := range records {
		v := componentVector(r.Components)
		for i := range v {
			all[i] += math.Abs(v[i])
		}
		if r.Outcome == models.OutcomeCompleted {
			completed++
			for i := range v {
				done[i] += math.Abs(v[i])
			}
		}
	}

	var factors [6]float64
	for i := range factors {
		allAvg := all[i] / float64(len(records))
		doneAvg := 0.0
		if completed > 0 {
			doneAvg = done[i] / float64(completed)
		}
		factors[i] = AdjustmentFactor(doneAvg, allAvg)
	}

	w := models.WeightVector{
		Service:     defaults.Service * factors[0],
		Location:    defaults.Location * factors[1],
		Semantic:    defaults.Semantic * factors[2],
		ETA:         defaults.ETA * factors[3],
		Load:        defaults.Load * factors[4],
		Reliability: defaults.Reliability * factors[5],
		UpdatedAt:   now,
	}
	return w, true
}

// AdjustmentFactor is completedAvg/allAvg clamped to [0.5, 1.5]; degenerate ratios give 1.
func AdjustmentFactor(completedAvg, allAvg float64) float64 {
	f := completedAvg / allAvg
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 1
	}
	return math.Max(minAdjustment, math.Min(maxAdjustment, f))
}

func componentVector(c models.ComponentScores) [6]float64 {
	return [6]float64{c.Service, c.Location, c.Semantic, c.ETA, c.Load, c.Reliability}
}
