package service

import (
	"context"
	"time"

	"github.com/reliefroute/backend/internal/models"
)

// ResponderRepository is the responder side of the store.
type ResponderRepository interface {
	ListResponders(ctx context.Context, activeOnly bool) ([]models.Responder, error)
	UpsertResponder(ctx context.Context, r models.Responder) error
	ActiveAssignmentCounts(ctx context.Context) (map[string]int, error)
}

type RequestRepository interface {
	InsertRequest(ctx context.Context, r models.Request) error
	GetRequest(ctx context.Context, id string) (models.Request, error)
	FindRequestByClientID(ctx context.Context, clientID string) (models.Request, error)
	ListRequests(ctx context.Context, status string, limit, offset int) ([]models.Request, error)
	PendingRequests(ctx context.Context) ([]models.Request, error)
	RecentRequests(ctx context.Context, limit int) ([]models.Request, error)
	UpdateRequestStatus(ctx context.Context, id, status string) error
	CommitAssignment(ctx context.Context, fb models.FeedbackRecord) error
	ResolveRequest(ctx context.Context, requestID, status, outcome string, at time.Time) (*models.FeedbackRecord, error)
}

type FeedbackRepository interface {
	RecentFeedback(ctx context.Context, limit int) ([]models.FeedbackRecord, error)
	AllFeedback(ctx context.Context) ([]models.FeedbackRecord, error)
}

type WeightRepository interface {
	LatestWeights(ctx context.Context) (models.WeightVector, error)
	SaveWeights(ctx context.Context, w models.WeightVector) error
}

type ReliabilityRepository interface {
	ListReliability(ctx context.Context) ([]models.ReliabilityEntry, error)
	ReplaceReliability(ctx context.Context, entries []models.ReliabilityEntry) error
}

type RunRepository interface {
	CreateRun(ctx context.Context, status string) (string, error)
	FinishRun(ctx context.Context, runID, status string, summary []byte) error
	GetLatestRun(ctx context.Context) (models.Run, error)
}

type WeightHistory interface {
	WeightRepository
	FeedbackRepository
}

type ReliabilityHistory interface {
	FeedbackRepository
	ReliabilityRepository
}

// Repository is the full storage surface. db.Store and db.MemoryStore satisfy it.
type Repository interface {
	ResponderRepository
	RequestRepository
	FeedbackRepository
	WeightRepository
	ReliabilityRepository
	RunRepository
	Ping(ctx context.Context) error
}
