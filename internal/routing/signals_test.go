package routing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reliefroute/backend/internal/models"
)

func TestDistanceScoreBands(t *testing.T) {
	cases := map[float64]float64{
		0:    5,
		4.9:  5,
		10:   4,
		29:   3,
		59:   2,
		119:  1,
		150:  -3,
		1000: -4,
	}
	for km, want := range cases {
		assert.InDelta(t, want, DistanceScore(km), 1e-9, "distance %v", km)
	}
}

func TestDistanceScoreMonotonic(t *testing.T) {
	prev := math.Inf(1)
	for km := 0.0; km <= 400; km += 2.5 {
		s := DistanceScore(km)
		assert.LessOrEqual(t, s, prev, "score increased at %v km", km)
		prev = s
	}
}

func TestLabelScore(t *testing.T) {
	assert.Equal(t, LabelExactScore, LabelScore("Pune", " pune "))
	assert.Equal(t, LabelPartScore, LabelScore("Kothrud, Pune", "Pune City"))
	assert.Equal(t, LabelContainsScore, LabelScore("Kothrud Pune", "Pune"))
	assert.Equal(t, LabelMismatchScore, LabelScore("Mumbai", "Delhi"))
	assert.Equal(t, 0.0, LabelScore("", "Delhi"))
	assert.Equal(t, 0.0, LabelScore("Delhi", ""))
}

func TestLocationScorePrefersCoordinates(t *testing.T) {
	req := models.Location{Coords: &models.Coordinates{Lat: 12.97, Lon: 77.59}, Label: "Mumbai"}
	resp := models.Location{Coords: &models.Coordinates{Lat: 12.98, Lon: 77.60}, Label: "Delhi"}
	assert.Equal(t, 5.0, LocationScore(req, resp))

	resp.Coords = nil
	assert.Equal(t, LabelMismatchScore, LocationScore(req, resp))
}

func TestSemanticScore(t *testing.T) {
	assert.InDelta(t, 30, SemanticScore([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0, SemanticScore([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -30, SemanticScore([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, SemanticScore(nil, []float64{1}))
	assert.Equal(t, 0.0, SemanticScore([]float64{1, 2}, []float64{1}))
	assert.Equal(t, 0.0, SemanticScore([]float64{0, 0}, []float64{1, 1}))
}

func TestETAScoreForMinutes(t *testing.T) {
	assert.Equal(t, 3.0, ETAScoreForMinutes(5))
	assert.Equal(t, 2.0, ETAScoreForMinutes(15))
	assert.Equal(t, 1.0, ETAScoreForMinutes(30))
	assert.Equal(t, 0.0, ETAScoreForMinutes(60))
	assert.InDelta(t, -1, ETAScoreForMinutes(120), 1e-9)
	assert.Equal(t, -MaxETAPenalty, ETAScoreForMinutes(1000))
}

func TestETAScoreWithoutCoordinates(t *testing.T) {
	assert.Equal(t, 0.0, ETAScore(models.Location{Label: "a"}, models.Location{Label: "a"}))
}

func TestLoadScoreNeverPositive(t *testing.T) {
	assert.Equal(t, 0.0, LoadScore(0))
	assert.Equal(t, 0.0, LoadScore(-3))
	assert.Equal(t, -3.0, LoadScore(3))
	assert.Equal(t, -float64(LoadCap), LoadScore(50))
}

func TestReliabilityScoreDefault(t *testing.T) {
	scores := map[string]float64{"r1": 0.9}
	assert.Equal(t, 0.9, ReliabilityScore(scores, "r1"))
	assert.Equal(t, DefaultReliability, ReliabilityScore(scores, "r2"))
	assert.Equal(t, DefaultReliability, ReliabilityScore(nil, "r2"))
}

func TestServiceMatch(t *testing.T) {
	vocab := DefaultVocabulary()

	assert.Equal(t, 2.0, ServiceMatch("earthquake", []string{"Search & Rescue; First Aid"}, vocab))
	assert.Equal(t, 1.0, ServiceMatch("flood", []string{"logistics"}, vocab))
	assert.Equal(t, 0.0, ServiceMatch("epidemic", []string{"logistics"}, vocab))
	assert.Equal(t, 0.0, ServiceMatch("epidemic", nil, vocab))
}

func TestServiceMatchPartialAndGeneralist(t *testing.T) {
	vocab := DefaultVocabulary()

	assert.InDelta(t, PartialMatchWeight, ServiceMatch("earthquake", []string{"temporary shelters for families"}, vocab), 1e-9)
	assert.Equal(t, 1.0, ServiceMatch("epidemic", []string{"general support"}, vocab))
	assert.Equal(t, 1.0, ServiceMatch("earthquake", []string{"Volunteers"}, vocab))
}

func TestServiceMatchUnknownIncidentUsesDefaultPreferences(t *testing.T) {
	assert.Equal(t, 2.0, ServiceMatch("meteor", []string{"food, shelter"}, nil))
}
