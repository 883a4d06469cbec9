package models

import "time"

const (
	StatusNew        = "new"
	StatusAssigned   = "assigned"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	OutcomePending   = "pending"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location carries optional coordinates plus the free-text label they came from.
type Location struct {
	Coords *Coordinates `json:"coords,omitempty"`
	Label  string       `json:"label"`
}

func (l Location) HasCoords() bool {
	return l.Coords != nil
}

type Request struct {
	ID                  string          `json:"id"`
	ClientID            string          `json:"client_id,omitempty"`
	Text                string          `json:"text"`
	OCRText             string          `json:"ocr_text,omitempty"`
	Transcript          string          `json:"transcript,omitempty"`
	Location            Location        `json:"location"`
	Contact             string          `json:"contact,omitempty"`
	Status              string          `json:"status"`
	AssignedResponderID *string         `json:"assigned_responder_id"`
	Classification      *Classification `json:"classification,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// IncidentType returns the classified incident type, or "other" before classification.
func (r Request) IncidentType() string {
	if r.Classification == nil || r.Classification.IncidentType == "" {
		return "other"
	}
	return r.Classification.IncidentType
}

func (r Request) Urgency() int {
	if r.Classification == nil {
		return 0
	}
	return r.Classification.Urgency
}

type Responder struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Capabilities []string  `json:"capabilities"`
	Location     Location  `json:"location"`
	Embedding    []float64 `json:"-"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Severity struct {
	Level  int    `json:"level"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// Classification is produced either by a semantic classifier or by the keyword fallback.
type Classification struct {
	IncidentType       string   `json:"incident_type" validate:"required,incident_type"`
	Category           string   `json:"category" validate:"required,category"`
	Urgency            int      `json:"urgency" validate:"min=1,max=5"`
	Severity           Severity `json:"severity"`
	PeopleAffected     int      `json:"people_affected" validate:"min=0"`
	Trapped            bool     `json:"trapped"`
	Injured            bool     `json:"injured"`
	SpecialConstraints []string `json:"special_constraints"`
	Needs              []string `json:"needs"`
	UncertaintyReasons []string `json:"uncertainty_reasons"`
	Summary            string   `json:"summary"`
	Confidence         float64  `json:"confidence" validate:"min=0,max=1"`
	SuggestedResponder string   `json:"suggested_responder_id,omitempty"`
	Source             string   `json:"source"`
	ModelVersion       string   `json:"model_version,omitempty"`
}

// WeightVector holds the per-signal multipliers of the scoring function. Load is never positive.
type WeightVector struct {
	Service     float64   `json:"service"`
	Location    float64   `json:"location"`
	Semantic    float64   `json:"semantic"`
	ETA         float64   `json:"eta"`
	Load        float64   `json:"load"`
	Reliability float64   `json:"reliability"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ComponentScores are the unweighted signal values captured at decision time.
type ComponentScores struct {
	Service     float64 `json:"service"`
	Location    float64 `json:"location"`
	Semantic    float64 `json:"semantic"`
	ETA         float64 `json:"eta"`
	Load        float64 `json:"load"`
	Reliability float64 `json:"reliability"`
}

type FeedbackRecord struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"request_id"`
	ResponderID string          `json:"responder_id"`
	Components  ComponentScores `json:"components"`
	Total       float64         `json:"total"`
	Outcome     string          `json:"outcome"`
	AssignedAt  time.Time       `json:"assigned_at"`
	ResolvedAt  *time.Time      `json:"resolved_at"`
}

func (f FeedbackRecord) Pending() bool {
	return f.ResolvedAt == nil || f.Outcome == OutcomePending
}

type ReliabilityEntry struct {
	ResponderID string    `json:"responder_id"`
	Completed   int       `json:"completed"`
	Total       int       `json:"total"`
	Score       float64   `json:"score"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AnomalyFlag struct {
	RequestID string   `json:"request_id"`
	Score     float64  `json:"score"`
	Reasons   []string `json:"reasons"`
}

type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Status     string     `json:"status"`
	Summary    []byte     `json:"summary"`
}
