package ai

import (
	"context"
	"strings"

	"github.com/reliefroute/backend/internal/models"
)

const (
	SourceSemantic = "semantic"
	SourceFallback = "fallback"
	SourceMock     = "mock"
)

var IncidentTypes = []string{
	"earthquake", "flood", "fire", "cyclone", "landslide", "tsunami", "drought", "heatwave", "coldwave",
	"storm_surge", "building_collapse", "industrial_accident", "chemical_leak", "transport_accident",
	"epidemic", "conflict_violence", "medical_emergency", "other",
}

var Categories = []string{"medical", "rescue", "shelter", "supplies", "unknown"}

// Input is what classifiers see: every text channel of a request plus its location label.
type Input struct {
	Text       string `json:"text"`
	OCRText    string `json:"ocr_text"`
	Transcript string `json:"transcript"`
	Location   string `json:"location"`
}

// Combined joins the non-empty channels with newlines.
func (in Input) Combined() string {
	return CombineChannels(in.Text, in.OCRText, in.Transcript)
}

func CombineChannels(channels ...string) string {
	parts := make([]string, 0, len(channels))
	for _, c := range channels {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n")
}

// Classifier is an external semantic classifier. Implementations may be slow or wrong;
// Resolver guards every call.
type Classifier interface {
	Classify(ctx context.Context, in Input) (models.Classification, error)
}

// Embedder turns text into a fixed-length vector for the semantic signal.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

func ValidIncidentType(v string) bool {
	return contains(IncidentTypes, v)
}

func ValidCategory(v string) bool {
	return contains(Categories, v)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
