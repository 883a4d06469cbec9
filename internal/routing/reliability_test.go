package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefroute/backend/internal/models"
)

func TestComputeReliability(t *testing.T) {
	done := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := func(responder, outcome string, resolved bool) models.FeedbackRecord {
		r := models.FeedbackRecord{ResponderID: responder, Outcome: outcome}
		if resolved {
			r.ResolvedAt = &done
		}
		return r
	}
	records := []models.FeedbackRecord{
		rec("r2", models.OutcomeFailed, true),
		rec("r1", models.OutcomeCompleted, true),
		rec("r1", models.OutcomeCompleted, true),
		rec("r1", models.OutcomeCompleted, true),
		rec("r1", models.OutcomeFailed, true),
		rec("r1", models.OutcomePending, false),
		rec("r3", models.OutcomePending, false),
	}
	now := time.Now()

	entries := ComputeReliability(records, now)
	require.Len(t, entries, 2)
	assert.Equal(t, "r1", entries[0].ResponderID)
	assert.Equal(t, 0.75, entries[0].Score)
	assert.Equal(t, 4, entries[0].Total)
	assert.Equal(t, "r2", entries[1].ResponderID)
	assert.Equal(t, 0.0, entries[1].Score)

	again := ComputeReliability(records, now)
	assert.Equal(t, entries, again)

	idx := ReliabilityIndex(entries)
	assert.Equal(t, 0.75, ReliabilityScore(idx, "r1"))
	assert.Equal(t, DefaultReliability, ReliabilityScore(idx, "r3"))
}

func TestComputeReliabilityScoresWithinUnitInterval(t *testing.T) {
	done := time.Now()
	var records []models.FeedbackRecord
	for i := 0; i < 50; i++ {
		outcome := models.OutcomeFailed
		if i%3 == 0 {
			outcome = models.OutcomeCompleted
		}
		records = append(records, models.FeedbackRecord{ResponderID: []string{"a", "b", "c"}[i%3], Outcome: outcome, ResolvedAt: &done})
	}
	for _, e := range ComputeReliability(records, done) {
		assert.GreaterOrEqual(t, e.Score, 0.0)
		assert.LessOrEqual(t, e.Score, 1.0)
	}
}
