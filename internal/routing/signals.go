package routing

import (
	"math"
	"strings"

	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/utils"
)

const (
	PartialMatchWeight = 0.8

	MaxDistancePenalty = 4.0
	DistancePenaltyKm  = 50.0

	LabelExactScore    = 3.0
	LabelPartScore     = 2.0
	LabelContainsScore = 1.0
	LabelMismatchScore = -0.5

	SemanticScale = 30.0

	MaxETAPenalty     = 3.0
	ETAPenaltyMinutes = 30.0

	LoadCap = 5

	DefaultReliability = 0.5
)

type distanceBand struct {
	maxKm float64
	score float64
}

var distanceBands = []distanceBand{
	{5, 5},
	{15, 4},
	{30, 3},
	{60, 2},
	{120, 1},
}

type etaBand struct {
	maxMinutes float64
	score      float64
}

var etaBands = []etaBand{
	{10, 3},
	{20, 2},
	{45, 1},
	{90, 0},
}

// ServiceMatch counts how many of the incident's preferred capabilities a responder offers.
// Exact canonical hits count 1, near misses count PartialMatchWeight, and a responder that
// only advertises generalist capabilities gets a baseline of 1.
func ServiceMatch(incidentType string, capabilities []string, vocab *Vocabulary) float64 {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	tokens := vocab.Tokens(capabilities)
	if len(tokens) == 0 {
		return 0
	}

	score := 0.0
	for _, want := range vocab.Preferred(incidentType) {
		best := 0.0
		for _, tok := range tokens {
			if tok == want {
				best = 1
				break
			}
			if partialMatch(tok, want) {
				best = PartialMatchWeight
			}
		}
		score += best
	}
	if score > 0 {
		return score
	}
	for _, tok := range tokens {
		for _, g := range generalistCapabilities {
			if tok == g {
				return 1
			}
		}
	}
	return 0
}

func partialMatch(token, want string) bool {
	if len(token) >= 4 && (strings.Contains(want, token) || strings.Contains(token, want)) {
		return true
	}
	if len(token) >= 5 && len(want) >= 5 && levenshtein(token, want) <= 2 {
		return true
	}
	return false
}

// Distance returns the great-circle distance when both locations carry coordinates.
func Distance(a, b models.Location) (float64, bool) {
	if a.Coords == nil || b.Coords == nil {
		return 0, false
	}
	return utils.HaversineKm(a.Coords.Lat, a.Coords.Lon, b.Coords.Lat, b.Coords.Lon), true
}

// LocationScore prefers coordinate distance bands and falls back to comparing labels.
func LocationScore(request, responder models.Location) float64 {
	if d, ok := Distance(request, responder); ok {
		return DistanceScore(d)
	}
	return LabelScore(request.Label, responder.Label)
}

func DistanceScore(km float64) float64 {
	for _, b := range distanceBands {
		if km <= b.maxKm {
			return b.score
		}
	}
	return -math.Min(MaxDistancePenalty, km/DistancePenaltyKm)
}

// LabelScore compares free-text locations. Missing labels are neutral.
func LabelScore(requestLabel, responderLabel string) float64 {
	req := normalizePhrase(requestLabel)
	resp := normalizePhrase(responderLabel)
	if req == "" || resp == "" {
		return 0
	}
	if req == resp {
		return LabelExactScore
	}
	for _, part := range strings.FieldsFunc(req, func(r rune) bool { return r == ',' || r == '\n' }) {
		part = strings.TrimSpace(part)
		if part != "" && strings.Contains(resp, part) {
			return LabelPartScore
		}
	}
	if strings.Contains(req, resp) {
		return LabelContainsScore
	}
	return LabelMismatchScore
}

// SemanticScore scales cosine similarity. Missing or incompatible vectors score 0.
func SemanticScore(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0
	}
	return sim * SemanticScale
}

// ETAScore rewards short straight-line travel times; without coordinates it is 0.
func ETAScore(request, responder models.Location) float64 {
	d, ok := Distance(request, responder)
	if !ok {
		return 0
	}
	return ETAScoreForMinutes(utils.TravelMinutes(d))
}

func ETAScoreForMinutes(minutes float64) float64 {
	for _, b := range etaBands {
		if minutes <= b.maxMinutes {
			return b.score
		}
	}
	last := etaBands[len(etaBands)-1].maxMinutes
	return -math.Min(MaxETAPenalty, (minutes-last)/ETAPenaltyMinutes)
}

// LoadScore is the capped active-assignment count expressed as a penalty.
func LoadScore(active int) float64 {
	if active <= 0 {
		return 0
	}
	return -float64(min(active, LoadCap))
}

func ReliabilityScore(scores map[string]float64, responderID string) float64 {
	if s, ok := scores[responderID]; ok {
		return s
	}
	return DefaultReliability
}
