//go:build integration_pg
// +build integration_pg

package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/reliefroute/backend/internal/models"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func TestStore_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	store, err := New(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.UpsertResponder(ctx, models.Responder{
		ID:           "resp-1",
		Name:         "Harbor Medics",
		Capabilities: []string{"medical aid"},
		Location:     models.Location{Label: "Harbor", Coords: &models.Coordinates{Lat: 48.85, Lon: 2.35}},
		Embedding:    []float64{0.6, 0.8},
		Active:       true,
		UpdatedAt:    now,
	}))

	responders, err := store.ListResponders(ctx, true)
	require.NoError(t, err)
	require.Len(t, responders, 1)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, responders[0].Embedding, 1e-6)
	require.NotNil(t, responders[0].Location.Coords)

	req := models.Request{
		ID:        "req-1",
		ClientID:  "client-1",
		Text:      "injured person near harbor",
		Location:  models.Location{Label: "Harbor"},
		Status:    models.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
		Classification: &models.Classification{
			IncidentType: "medical",
			Category:     "medical",
			Urgency:      4,
		},
	}
	require.NoError(t, store.InsertRequest(ctx, req))

	got, err := store.FindRequestByClientID(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, got.Classification)
	assert.Equal(t, "medical", got.Classification.IncidentType)
	assert.Nil(t, got.Location.Coords)

	fb := models.FeedbackRecord{
		ID:          "fb-1",
		RequestID:   "req-1",
		ResponderID: "resp-1",
		Components:  models.ComponentScores{Service: 1, Location: 3},
		Total:       23,
		AssignedAt:  now,
	}
	require.NoError(t, store.CommitAssignment(ctx, fb))
	assert.ErrorIs(t, store.CommitAssignment(ctx, fb), ErrConflict)

	counts, err := store.ActiveAssignmentCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["resp-1"])

	resolved, err := store.ResolveRequest(ctx, "req-1", models.StatusCompleted, models.OutcomeCompleted, now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, models.ComponentScores{Service: 1, Location: 3}, resolved.Components)

	records, err := store.RecentFeedback(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Pending())

	_, err = store.LatestWeights(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.SaveWeights(ctx, models.WeightVector{Service: 20, Location: 1, Semantic: 1, ETA: 1, Load: -1.5, Reliability: 4, UpdatedAt: now}))
	w, err := store.LatestWeights(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1.5, w.Load)

	require.NoError(t, store.ReplaceReliability(ctx, []models.ReliabilityEntry{{ResponderID: "resp-1", Completed: 1, Total: 1, Score: 1, UpdatedAt: now}}))
	entries, err := store.ListReliability(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	runID, err := store.CreateRun(ctx, "running")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, runID, "completed", []byte(`{"processed":0}`)))
	run, err := store.GetLatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
}
