package routing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefroute/backend/internal/models"
)

func earthquakeRequest() models.Request {
	return models.Request{
		ID:             "req-1",
		Text:           "building collapsed, people trapped",
		Location:       models.Location{Coords: &models.Coordinates{Lat: 12.97, Lon: 77.59}},
		Classification: &models.Classification{IncidentType: "earthquake", Urgency: 4},
	}
}

func defaultContext() Context {
	return Context{Weights: DefaultWeights(), Loads: map[string]int{}}
}

func TestScoreAndSelectPrefersMatchingNearbyResponder(t *testing.T) {
	req := earthquakeRequest()
	responders := []models.Responder{
		{
			ID:           "a",
			Name:         "Alpha Rescue",
			Capabilities: []string{"search and rescue, medical aid"},
			Location:     models.Location{Coords: &models.Coordinates{Lat: 13.01, Lon: 77.59}},
			Embedding:    []float64{0.9, math.Sqrt(1 - 0.81)},
		},
		{
			ID:           "b",
			Name:         "Bravo Kitchen",
			Capabilities: []string{"food & water"},
			Location:     models.Location{Coords: &models.Coordinates{Lat: 13.42, Lon: 77.59}},
		},
	}
	ctx := defaultContext()
	ctx.RequestEmbedding = []float64{1, 0}

	sel := ScoreAndSelect(req, responders, ctx)
	require.False(t, sel.Unassignable)
	assert.Equal(t, "a", sel.ResponderID)
	assert.Equal(t, ReasonServiceMatch, sel.Reason)
	assert.Equal(t, 2.0, sel.Breakdown.Components.Service)
	assert.Equal(t, 5.0, sel.Breakdown.Components.Location)
	assert.InDelta(t, 27, sel.Breakdown.Components.Semantic, 1e-6)
	assert.Contains(t, sel.Explain(), "service=2.00")
	assert.Len(t, sel.Candidates, 2)
}

func TestScoreAndSelectNoResponders(t *testing.T) {
	sel := ScoreAndSelect(earthquakeRequest(), nil, defaultContext())
	assert.True(t, sel.Unassignable)
	assert.Equal(t, ReasonNoResponders, sel.Reason)
	assert.Empty(t, sel.ResponderID)
}

func TestScoreAndSelectFallsBackToAllResponders(t *testing.T) {
	req := earthquakeRequest()
	req.Classification.IncidentType = "epidemic"
	responders := []models.Responder{
		{ID: "far", Name: "Far Trucks", Capabilities: []string{"boats"},
			Location: models.Location{Coords: &models.Coordinates{Lat: 14.5, Lon: 77.59}}},
		{ID: "near", Name: "Near Trucks", Capabilities: []string{"boats"},
			Location: models.Location{Coords: &models.Coordinates{Lat: 12.98, Lon: 77.59}}},
	}
	sel := ScoreAndSelect(req, responders, defaultContext())
	require.False(t, sel.Unassignable)
	assert.Equal(t, "near", sel.ResponderID)
	assert.Equal(t, ReasonNoServiceMatch, sel.Reason)
}

func TestScoreAndSelectTieBreaksByName(t *testing.T) {
	req := models.Request{ID: "r", Classification: &models.Classification{IncidentType: "flood"}}
	responders := []models.Responder{
		{ID: "2", Name: "Zulu", Capabilities: []string{"logistics"}},
		{ID: "1", Name: "Alpha", Capabilities: []string{"logistics"}},
		{ID: "3", Name: "Mike", Capabilities: []string{"logistics"}},
	}
	sel := ScoreAndSelect(req, responders, defaultContext())
	assert.Equal(t, "1", sel.ResponderID)

	again := ScoreAndSelect(req, []models.Responder{responders[2], responders[0], responders[1]}, defaultContext())
	assert.Equal(t, sel.ResponderID, again.ResponderID)
}

func TestScoreAndSelectLoadShiftsChoice(t *testing.T) {
	req := models.Request{ID: "r", Classification: &models.Classification{IncidentType: "flood"}}
	responders := []models.Responder{
		{ID: "1", Name: "Alpha", Capabilities: []string{"logistics"}},
		{ID: "2", Name: "Bravo", Capabilities: []string{"logistics"}},
	}
	ctx := defaultContext()
	ctx.Loads = map[string]int{"1": 2}
	sel := ScoreAndSelect(req, responders, ctx)
	assert.Equal(t, "2", sel.ResponderID)
	assert.Equal(t, -2.0, sel.Candidates[1].Components.Load)
}

func TestScoreAndSelectNearestOverride(t *testing.T) {
	req := earthquakeRequest()
	responders := []models.Responder{
		{ID: "match", Name: "Matcher", Capabilities: []string{"search and rescue"},
			Location: models.Location{Coords: &models.Coordinates{Lat: 13.3, Lon: 77.59}}},
		{ID: "close", Name: "Closest", Capabilities: []string{"boats"},
			Location: models.Location{Coords: &models.Coordinates{Lat: 12.971, Lon: 77.59}}},
	}
	ctx := defaultContext()
	assert.Equal(t, "match", ScoreAndSelect(req, responders, ctx).ResponderID)

	ctx.Policy.NearestOverride = true
	sel := ScoreAndSelect(req, responders, ctx)
	assert.Equal(t, "close", sel.ResponderID)
	assert.Equal(t, ReasonNearestOverride, sel.Reason)
}

func TestScoreIsPure(t *testing.T) {
	req := earthquakeRequest()
	resp := models.Responder{ID: "a", Name: "A", Capabilities: []string{"medical aid"}}
	ctx := defaultContext()
	ctx.Loads["a"] = 1
	first := Score(req, resp, ctx)
	second := Score(req, resp, ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, ctx.Loads["a"])
}

func TestCombineLoadAlwaysSubtracts(t *testing.T) {
	c := models.ComponentScores{Load: -3}
	w := models.WeightVector{Load: -1.5}
	assert.Equal(t, -4.5, Combine(c, w))
	w.Load = 1.5
	assert.Equal(t, -4.5, Combine(c, w))
}
