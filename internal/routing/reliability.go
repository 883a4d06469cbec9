package routing

import (
	"sort"
	"time"

	"github.com/reliefroute/backend/internal/models"
)

// ComputeReliability rebuilds per-responder completion ratios from the full feedback history.
// Pending records are skipped.
func ComputeReliability(records []models.FeedbackRecord, now time.Time) []models.ReliabilityEntry {
	byResponder := map[string]*models.ReliabilityEntry{}
	for _, r := range records {
		if r.Pending() || r.ResponderID == "" {
			continue
		}
		e, ok := byResponder[r.ResponderID]
		if !ok {
			e = &models.ReliabilityEntry{ResponderID: r.ResponderID}
			byResponder[r.ResponderID] = e
		}
		e.Total++
		if r.Outcome == models.OutcomeCompleted {
			e.Completed++
		}
	}

	out := make([]models.ReliabilityEntry, 0, len(byResponder))
	for _, e := range byResponder {
		e.Score = float64(e.Completed) / float64(e.Total)
		e.UpdatedAt = now
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResponderID < out[j].ResponderID })
	return out
}

func ReliabilityIndex(entries []models.ReliabilityEntry) map[string]float64 {
	idx := make(map[string]float64, len(entries))
	for _, e := range entries {
		idx[e.ResponderID] = e.Score
	}
	return idx
}
