package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/reliefroute/backend/internal/models"
)

// HTTPClassifier talks to a JSON classification service exposing POST /classify.
type HTTPClassifier struct {
	BaseURL string
	Client  *http.Client
}

type classifyResponse struct {
	IncidentType       string   `json:"incident_type"`
	Category           string   `json:"category"`
	Urgency            int      `json:"urgency"`
	Summary            string   `json:"summary"`
	Needs              []string `json:"needs"`
	SeverityLevel      int      `json:"severity_level"`
	SeverityLabel      string   `json:"severity_label"`
	SeverityReason     string   `json:"severity_reason"`
	PeopleAffected     int      `json:"people_affected"`
	Trapped            bool     `json:"trapped"`
	Injured            bool     `json:"injured"`
	SpecialConstraints []string `json:"special_constraints"`
	UncertaintyReasons []string `json:"uncertainty_reasons"`
	Confidence         float64  `json:"confidence"`
	ResponderID        string   `json:"responder_id"`
	ModelVersion       string   `json:"model_version"`
}

func (r classifyResponse) toClassification() models.Classification {
	return models.Classification{
		IncidentType:       r.IncidentType,
		Category:           r.Category,
		Urgency:            r.Urgency,
		Severity:           models.Severity{Level: r.SeverityLevel, Label: r.SeverityLabel, Reason: r.SeverityReason},
		PeopleAffected:     r.PeopleAffected,
		Trapped:            r.Trapped,
		Injured:            r.Injured,
		SpecialConstraints: r.SpecialConstraints,
		Needs:              r.Needs,
		UncertaintyReasons: r.UncertaintyReasons,
		Summary:            r.Summary,
		Confidence:         r.Confidence,
		SuggestedResponder: r.ResponderID,
		Source:             SourceSemantic,
		ModelVersion:       r.ModelVersion,
	}
}

func (h HTTPClassifier) Classify(ctx context.Context, in Input) (models.Classification, error) {
	var out classifyResponse
	if err := postJSON(ctx, h.client(), h.BaseURL+"/classify", in, &out); err != nil {
		return models.Classification{}, fmt.Errorf("classify: %w", err)
	}
	return out.toClassification(), nil
}

func (h HTTPClassifier) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// HTTPEmbedder calls POST /embed and expects {"embedding": [...]}.
type HTTPEmbedder struct {
	BaseURL string
	Client  *http.Client
}

func (h HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if err := postJSON(ctx, client, h.BaseURL+"/embed", map[string]string{"text": text}, &out); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return out.Embedding, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream http error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
