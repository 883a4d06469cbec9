package utils

import (
	"strconv"
	"strings"
)

// ParseCoordinates accepts "lat,lon", "lat lon" and the WKT form "POINT(lon lat)".
// ok is false for malformed or out-of-range input.
func ParseCoordinates(raw string) (lat, lon float64, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, 0, false
	}

	swapped := false
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "POINT") {
		open := strings.Index(s, "(")
		end := strings.LastIndex(s, ")")
		if open < 0 || end <= open {
			return 0, 0, false
		}
		s = s[open+1 : end]
		swapped = true
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, false
	}
	if swapped {
		a, b = b, a
	}
	if !ValidCoordinates(a, b) {
		return 0, 0, false
	}
	return a, b, true
}

func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
