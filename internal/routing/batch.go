package routing

import "github.com/reliefroute/backend/internal/models"

type BatchItem struct {
	Request   models.Request
	Embedding []float64
}

type BatchResult struct {
	RequestID   string                  `json:"request_id"`
	ResponderID *string                 `json:"responder_id"`
	Reason      string                  `json:"reason"`
	Breakdown   string                  `json:"breakdown"`
	Components  *models.ComponentScores `json:"components,omitempty"`
	Total       float64                 `json:"total"`
}

// CommitFunc persists one batch pick. A non-nil error leaves the request unassigned and its
// message becomes the result's reason.
type CommitFunc func(item BatchItem, res BatchResult) error

// BatchAssign places requests greedily in the given order. Every pick bumps the responder's
// in-batch load so later requests see it; the caller's load map is never mutated.
func BatchAssign(items []BatchItem, responders []models.Responder, ctx Context) []BatchResult {
	return BatchAssignWith(items, responders, ctx, nil)
}

// BatchAssignWith is BatchAssign with a commit step after each pick. Only committed picks count
// toward the in-batch load.
func BatchAssignWith(items []BatchItem, responders []models.Responder, ctx Context, commit CommitFunc) []BatchResult {
	loads := make(map[string]int, len(ctx.Loads)+len(responders))
	for id, n := range ctx.Loads {
		loads[id] = n
	}

	results := make([]BatchResult, 0, len(items))
	for _, item := range items {
		itemCtx := ctx
		itemCtx.Loads = loads
		itemCtx.RequestEmbedding = item.Embedding

		sel := ScoreAndSelect(item.Request, responders, itemCtx)
		if sel.Unassignable {
			results = append(results, BatchResult{
				RequestID: item.Request.ID,
				Reason:    sel.Reason,
				Breakdown: sel.Reason,
			})
			continue
		}

		id := sel.ResponderID
		components := sel.Breakdown.Components
		res := BatchResult{
			RequestID:   item.Request.ID,
			ResponderID: &id,
			Reason:      sel.Reason,
			Breakdown:   sel.Breakdown.String(),
			Components:  &components,
			Total:       sel.Breakdown.Total,
		}
		if commit != nil {
			if err := commit(item, res); err != nil {
				res.ResponderID = nil
				res.Reason = err.Error()
				results = append(results, res)
				continue
			}
		}
		loads[id]++
		results = append(results, res)
	}
	return results
}
