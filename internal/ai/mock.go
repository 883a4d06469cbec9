package ai

import (
	"context"
	"math"
	"strings"

	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/utils"
)

// MockClassifier is a deterministic stand-in for a semantic classifier in demos and tests.
// It reuses the keyword rules and varies confidence by request text.
type MockClassifier struct {
	ModelVersion string
}

func (m MockClassifier) Classify(ctx context.Context, in Input) (models.Classification, error) {
	if err := ctx.Err(); err != nil {
		return models.Classification{}, err
	}
	c := ClassifyFallback(in.Text, in.OCRText, in.Transcript)
	confidences := []float64{0.62, 0.75, 0.81, 0.9}
	c.Confidence = confidences[utils.StableIndex(in.Combined(), len(confidences))]
	c.Source = SourceMock
	c.ModelVersion = m.ModelVersion
	return c, nil
}

// HashEmbedder builds bag-of-words vectors by hashing words into Dim buckets. Texts sharing
// vocabulary get positive cosine similarity, which is enough to exercise the semantic signal
// without an embedding service.
type HashEmbedder struct {
	Dim int
}

func (h HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = 64
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	if len(words) == 0 {
		return nil, nil
	}
	vec := make([]float64, dim)
	for _, w := range words {
		vec[utils.StableIndex(w, dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}
