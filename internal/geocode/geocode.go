package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/reliefroute/backend/internal/models"
)

var ErrNotFound = errors.New("geocode not found")

type Result struct {
	Coords      models.Coordinates
	DisplayName string
	Confidence  float64
}

// Geocoder resolves a free-text place description to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Result, error)
}

// BuildQuery appends the default country unless the label already mentions it.
func BuildQuery(label, country string) string {
	label = strings.TrimSpace(label)
	country = strings.TrimSpace(country)
	if label == "" {
		return ""
	}
	if country == "" || strings.Contains(strings.ToLower(label), strings.ToLower(country)) {
		return label
	}
	return label + ", " + country
}

// ShouldGeocode reports whether a location has a label but no coordinates yet.
func ShouldGeocode(loc models.Location) bool {
	return loc.Coords == nil && strings.TrimSpace(loc.Label) != ""
}
