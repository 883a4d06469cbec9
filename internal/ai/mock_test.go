package ai

import (
	"context"
	"math"
	"testing"
)

func TestMockClassifierDeterministic(t *testing.T) {
	m := MockClassifier{ModelVersion: "mock-v1"}
	in := Input{Text: "flood water entering homes"}
	a, _ := m.Classify(context.Background(), in)
	b, _ := m.Classify(context.Background(), in)
	if a.Confidence != b.Confidence || a.IncidentType != "flood" || a.Source != SourceMock {
		t.Fatalf("unexpected mock output %+v / %+v", a, b)
	}
	if err := NewValidator().Struct(a); err != nil {
		t.Fatalf("mock output must validate: %v", err)
	}
}

func TestHashEmbedderUnitLength(t *testing.T) {
	vec, err := HashEmbedder{Dim: 16}.Embed(context.Background(), "search and rescue team with boats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if len(vec) != 16 || math.Abs(norm-1) > 1e-9 {
		t.Fatalf("expected unit vector of length 16, got len=%d norm=%f", len(vec), norm)
	}
	if empty, _ := (HashEmbedder{}).Embed(context.Background(), "!!!"); empty != nil {
		t.Fatalf("expected nil for text without words")
	}
}
