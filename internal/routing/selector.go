package routing

import (
	"sort"
	"strings"

	"github.com/reliefroute/backend/internal/models"
)

const (
	ReasonNoResponders    = "no responders available"
	ReasonServiceMatch    = "best score among capability-matched responders"
	ReasonNoServiceMatch  = "no capability match; best score among all responders"
	ReasonNearestOverride = "nearest responder policy"
)

type Selection struct {
	ResponderID   string      `json:"responder_id,omitempty"`
	ResponderName string      `json:"responder_name,omitempty"`
	Unassignable  bool        `json:"unassignable"`
	Reason        string      `json:"reason"`
	Breakdown     Breakdown   `json:"breakdown"`
	Candidates    []Breakdown `json:"candidates"`
}

// Explain renders the winning breakdown for audit logs.
func (s Selection) Explain() string {
	if s.Unassignable {
		return s.Reason
	}
	return s.Reason + ": " + s.Breakdown.String()
}

// ScoreAndSelect scores every responder and picks one. Responders with a positive capability
// match form the candidate pool; when none match, every responder competes. Ties go to the
// lexicographically smaller name, then id.
func ScoreAndSelect(req models.Request, responders []models.Responder, ctx Context) Selection {
	if len(responders) == 0 {
		return Selection{Unassignable: true, Reason: ReasonNoResponders}
	}

	scored := make([]Breakdown, 0, len(responders))
	for _, r := range responders {
		scored = append(scored, Score(req, r, ctx))
	}
	sortBreakdowns(scored)

	if ctx.Policy.NearestOverride && req.Location.HasCoords() {
		if nearest, ok := nearestBreakdown(scored); ok {
			return Selection{
				ResponderID:   nearest.ResponderID,
				ResponderName: nearest.ResponderName,
				Reason:        ReasonNearestOverride,
				Breakdown:     nearest,
				Candidates:    scored,
			}
		}
	}

	reason := ReasonServiceMatch
	var pool []Breakdown
	for _, b := range scored {
		if b.Components.Service > 0 {
			pool = append(pool, b)
		}
	}
	if len(pool) == 0 {
		pool = scored
		reason = ReasonNoServiceMatch
	}

	best := pool[0]
	return Selection{
		ResponderID:   best.ResponderID,
		ResponderName: best.ResponderName,
		Reason:        reason,
		Breakdown:     best,
		Candidates:    scored,
	}
}

func sortBreakdowns(list []Breakdown) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Total != list[j].Total {
			return list[i].Total > list[j].Total
		}
		return lessByName(list[i], list[j])
	})
}

func nearestBreakdown(list []Breakdown) (Breakdown, bool) {
	var (
		best  Breakdown
		found bool
	)
	for _, b := range list {
		if b.DistanceKm == nil {
			continue
		}
		if !found || *b.DistanceKm < *best.DistanceKm ||
			(*b.DistanceKm == *best.DistanceKm && lessByName(b, best)) {
			best = b
			found = true
		}
	}
	return best, found
}

func lessByName(a, b Breakdown) bool {
	an, bn := strings.ToLower(a.ResponderName), strings.ToLower(b.ResponderName)
	if an != bn {
		return an < bn
	}
	return a.ResponderID < b.ResponderID
}
