package routing

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/reliefroute/backend/internal/models"
)

const (
	DefaultAnomalyLimit = 200

	ReasonContactBurst    = "high frequency from same contact"
	ReasonLocationBurst   = "location spike"
	ReasonChannelMismatch = "cross-channel mismatch"
	ReasonRecentInSpike   = "new request during location spike"
)

type AnomalyConfig struct {
	Window time.Duration

	ContactThreshold int
	ContactStep      float64
	ContactCap       float64

	LocationThreshold int
	LocationStep      float64
	LocationCap       float64

	MismatchSimilarity float64
	MismatchPenalty    float64

	RecentAge   time.Duration
	RecentBonus float64
}

func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		Window:             time.Hour,
		ContactThreshold:   2,
		ContactStep:        0.5,
		ContactCap:         3,
		LocationThreshold:  4,
		LocationStep:       0.25,
		LocationCap:        2,
		MismatchSimilarity: 0.15,
		MismatchPenalty:    1.5,
		RecentAge:          10 * time.Minute,
		RecentBonus:        1,
	}
}

// DetectAnomalies scores each request against heuristics that suggest spam, duplicates or
// mis-transcribed input. Only positive scores are returned, highest first.
func DetectAnomalies(requests []models.Request, now time.Time, cfg AnomalyConfig) []models.AnomalyFlag {
	since := now.Add(-cfg.Window)
	inWindow := func(r models.Request) bool {
		return !r.CreatedAt.Before(since) && !r.CreatedAt.After(now)
	}

	contactCounts := map[string]int{}
	locationCounts := map[string]int{}
	for _, r := range requests {
		if !inWindow(r) {
			continue
		}
		if k := contactKey(r.Contact); k != "" {
			contactCounts[k]++
		}
		if k := locationKey(r.Location); k != "" {
			locationCounts[k]++
		}
	}

	var flags []models.AnomalyFlag
	for _, r := range requests {
		score := 0.0
		var reasons []string

		if inWindow(r) {
			if n := contactCounts[contactKey(r.Contact)]; contactKey(r.Contact) != "" && n > cfg.ContactThreshold {
				score += min(cfg.ContactCap, cfg.ContactStep*float64(n-cfg.ContactThreshold))
				reasons = append(reasons, ReasonContactBurst)
			}
			spike := false
			if n := locationCounts[locationKey(r.Location)]; locationKey(r.Location) != "" && n > cfg.LocationThreshold {
				score += min(cfg.LocationCap, cfg.LocationStep*float64(n-cfg.LocationThreshold))
				reasons = append(reasons, ReasonLocationBurst)
				spike = true
			}
			if spike && now.Sub(r.CreatedAt) <= cfg.RecentAge {
				score += cfg.RecentBonus
				reasons = append(reasons, ReasonRecentInSpike)
			}
		}

		if strings.TrimSpace(r.OCRText) != "" && strings.TrimSpace(r.Transcript) != "" {
			if jaccard(wordSet(r.OCRText), wordSet(r.Transcript)) < cfg.MismatchSimilarity {
				score += cfg.MismatchPenalty
				reasons = append(reasons, ReasonChannelMismatch)
			}
		}

		if score > 0 {
			flags = append(flags, models.AnomalyFlag{RequestID: r.ID, Score: score, Reasons: reasons})
		}
	}

	sort.SliceStable(flags, func(i, j int) bool {
		if flags[i].Score != flags[j].Score {
			return flags[i].Score > flags[j].Score
		}
		return flags[i].RequestID < flags[j].RequestID
	})
	return flags
}

func contactKey(contact string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(contact) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '@' || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func locationKey(loc models.Location) string {
	if label := normalizePhrase(loc.Label); label != "" {
		return label
	}
	if loc.Coords != nil {
		return fmt.Sprintf("%.2f,%.2f", loc.Coords.Lat, loc.Coords.Lon)
	}
	return ""
}
