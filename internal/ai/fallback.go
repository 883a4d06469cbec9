package ai

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/reliefroute/backend/internal/models"
)

const (
	fallbackConfidence = 0.35
	summaryMaxRunes    = 400
	shortTextRunes     = 40
	emptySummary       = "No detailed description provided."
)

type incidentRule struct {
	incident string
	pattern  *regexp.Regexp
}

// Evaluated in order; the first hit wins.
var incidentRules = []incidentRule{
	{"earthquake", regexp.MustCompile(`earthquake|tremor|seismic|aftershock`)},
	{"tsunami", regexp.MustCompile(`tsunami`)},
	{"storm_surge", regexp.MustCompile(`storm surge|tidal surge|sea surge`)},
	{"flood", regexp.MustCompile(`flood|inundat|water level|waterlogging|water logging|overflow`)},
	{"landslide", regexp.MustCompile(`landslide|mudslide`)},
	{"cyclone", regexp.MustCompile(`cyclone|hurricane|typhoon|storm|strong winds|gale`)},
	{"building_collapse", regexp.MustCompile(`collapse|structural crack|ceiling fell|roof fell|under debris|trapped under`)},
	{"fire", regexp.MustCompile(`\bfire\b|wildfire|burning|flames|blaze|smoke`)},
	{"industrial_accident", regexp.MustCompile(`explosion|blast|explode|short circuit|sparks from wire|factory accident`)},
	{"chemical_leak", regexp.MustCompile(`chemical|gas leak|hazardous material|toxic|poison`)},
	{"transport_accident", regexp.MustCompile(`accident|car crash|bus crash|collision|hit and run|derail`)},
	{"epidemic", regexp.MustCompile(`epidemic|outbreak|virus|cholera|dengue|disease|fever`)},
	{"conflict_violence", regexp.MustCompile(`violence|riot|\bmob\b|clashes|fighting|shooting|stampede|crowd panic`)},
	{"heatwave", regexp.MustCompile(`heat ?wave|heat stroke|very hot`)},
	{"coldwave", regexp.MustCompile(`cold ?wave|freezing|hypothermia|snow`)},
	{"drought", regexp.MustCompile(`drought|no rain|dry wells|water scarcity`)},
	{"medical_emergency", regexp.MustCompile(`medical emergency|unconscious|heart attack|breathing difficulty|severe injury|bleeding|ambulance|injur`)},
}

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"medical", []string{"injury", "doctor", "medic", "hospital", "medicine", "bleeding", "ambulance", "fracture", "fever", "sick", "pregnant", "unconscious"}},
	{"rescue", []string{"trapped", "rescue", "collapsed", "stuck", "evacuate", "help me", "save", "boat", "lift", "blocked", "search", "buried"}},
	{"shelter", []string{"shelter", "homeless", "evacuated", "displaced", "camp", "tent", "roof", "lodging", "sleep", "relocate"}},
	{"supplies", []string{"food", "water", "blanket", "supplies", "kit", "ration", "milk", "diaper", "sanitary", "flashlight"}},
}

var (
	criticalMarkers      = regexp.MustCompile(`critical|urgent|immediate|bleeding|unconscious|trapped|child|baby|infant`)
	vulnerabilityMarkers = regexp.MustCompile(`elderly|pregnant|disabled|injury|fracture`)

	severityCritical = regexp.MustCompile(`critical|life threatening|unconscious|cardiac|major bleed`)
	severityUrgent   = regexp.MustCompile(`urgent|immediate help|emergency`)
	entrapment       = regexp.MustCompile(`trapped|stuck|buried|collapsed`)
	injuryMarkers    = regexp.MustCompile(`injured|injury|bleeding|fracture|burn|wound`)

	peopleCount = regexp.MustCompile(`(\d+)\s*(people|persons|victims|children|adults|families|residents)`)
	groupHint   = regexp.MustCompile(`family of|we are|we need|my family`)
)

var specialConstraintRules = []struct {
	tag     string
	pattern *regexp.Regexp
}{
	{"children", regexp.MustCompile(`child|children|baby|infant`)},
	{"elderly", regexp.MustCompile(`elderly|old person|senior`)},
	{"pregnant", regexp.MustCompile(`pregnant`)},
	{"disabled", regexp.MustCompile(`disabled|wheelchair|paralyzed`)},
	{"access-blocked", regexp.MustCompile(`blocked road|road blocked|no access|bridge washed`)},
	{"hazardous", regexp.MustCompile(`gas leak|chemical|hazardous|toxic`)},
}

var needRules = []struct {
	need    string
	pattern *regexp.Regexp
}{
	{"medical", regexp.MustCompile(`ambulance|doctor|medic`)},
	{"rescue", regexp.MustCompile(`rescue|trapped|collapsed`)},
	{"shelter", regexp.MustCompile(`shelter|evacuat`)},
	{"supplies", regexp.MustCompile(`food|water|blanket`)},
}

// ClassifyFallback classifies a request from keywords alone. It never fails and always fills
// every field, so callers can rely on it when no semantic classifier answers.
func ClassifyFallback(text, ocrText, transcript string) models.Classification {
	combined := CombineChannels(text, ocrText, transcript)
	lower := strings.ToLower(combined)

	c := models.Classification{
		IncidentType:       classifyIncident(lower),
		Category:           classifyCategory(lower),
		Urgency:            estimateUrgency(lower),
		PeopleAffected:     estimatePeople(lower),
		Trapped:            entrapment.MatchString(lower),
		Injured:            injuryMarkers.MatchString(lower),
		SpecialConstraints: []string{},
		Needs:              []string{},
		UncertaintyReasons: []string{},
		Summary:            summarize(combined),
		Confidence:         fallbackConfidence,
		Source:             SourceFallback,
	}
	c.Severity = estimateSeverity(lower)

	for _, r := range specialConstraintRules {
		if r.pattern.MatchString(lower) {
			c.SpecialConstraints = append(c.SpecialConstraints, r.tag)
		}
	}
	for _, r := range needRules {
		if r.pattern.MatchString(lower) {
			c.Needs = append(c.Needs, r.need)
		}
	}
	if len(c.Needs) == 0 {
		if c.Category == "unknown" {
			c.Needs = append(c.Needs, "general_support")
		} else {
			c.Needs = append(c.Needs, c.Category)
		}
	}

	switch n := len([]rune(combined)); {
	case n == 0:
		c.UncertaintyReasons = append(c.UncertaintyReasons, "no description provided")
	case n < shortTextRunes:
		c.UncertaintyReasons = append(c.UncertaintyReasons, "short description")
	}
	if c.IncidentType == "other" {
		c.UncertaintyReasons = append(c.UncertaintyReasons, "incident type not recognized")
	}
	return c
}

func classifyIncident(lower string) string {
	for _, r := range incidentRules {
		if r.pattern.MatchString(lower) {
			return r.incident
		}
	}
	return "other"
}

func classifyCategory(lower string) string {
	best, bestScore := "unknown", 0
	for _, ck := range categoryKeywords {
		score := 0
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = ck.category, score
		}
	}
	return best
}

func estimateUrgency(lower string) int {
	u := 2
	if criticalMarkers.MatchString(lower) {
		u += 2
	}
	if vulnerabilityMarkers.MatchString(lower) {
		u++
	}
	return ClampUrgency(u)
}

func ClampUrgency(u int) int {
	return max(1, min(5, u))
}

func estimateSeverity(lower string) models.Severity {
	level := 2
	var reasons []string
	if severityCritical.MatchString(lower) {
		level = 5
		reasons = append(reasons, "critical medical keywords")
	}
	if severityUrgent.MatchString(lower) {
		level = max(level, 4)
		reasons = append(reasons, "urgency keywords")
	}
	if entrapment.MatchString(lower) {
		level = max(level, 4)
		reasons = append(reasons, "possible entrapment")
	}
	reason := strings.Join(reasons, "; ")
	if reason == "" {
		reason = "keyword severity estimate"
	}
	return models.Severity{Level: level, Label: SeverityLabel(level), Reason: reason}
}

func SeverityLabel(level int) string {
	switch {
	case level >= 5:
		return "critical"
	case level >= 4:
		return "high"
	case level >= 3:
		return "elevated"
	default:
		return "moderate"
	}
}

func estimatePeople(lower string) int {
	if m := peopleCount.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if groupHint.MatchString(lower) {
		return 2
	}
	return 1
}

func summarize(combined string) string {
	if combined == "" {
		return emptySummary
	}
	r := []rune(combined)
	if len(r) > summaryMaxRunes {
		return string(r[:summaryMaxRunes])
	}
	return combined
}
