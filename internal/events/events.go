package events

import (
	"context"
	"encoding/json"
	"time"
)

const (
	SubjectRequestAssigned = "relief.request.assigned"
	SubjectRequestResolved = "relief.request.resolved"
)

// Handler receives the raw JSON payload of an event.
type Handler func(ctx context.Context, payload []byte) error

type Bus interface {
	Publish(ctx context.Context, subject string, v any) error
	Subscribe(subject string, h Handler) error
	Close()
}

type RequestAssigned struct {
	RequestID   string    `json:"request_id"`
	ResponderID string    `json:"responder_id"`
	Mode        string    `json:"mode"`
	Total       float64   `json:"total"`
	AssignedAt  time.Time `json:"assigned_at"`
}

type RequestResolved struct {
	RequestID   string    `json:"request_id"`
	ResponderID string    `json:"responder_id,omitempty"`
	Outcome     string    `json:"outcome"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

func Decode[T any](payload []byte) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}
