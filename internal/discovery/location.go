package discovery

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/garotm/RunOn/internal/models"
	"github.com/rs/zerolog/log"
)

// Geocoder is the geocoding provider used by the resolver
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Location is a resolved search location. Coordinates is nil when the
// location could not be geocoded.
type Location struct {
	Address     string
	Coordinates *models.Coordinates
}

// Resolver turns free-text locations into coordinates and back.
// Provider failures are logged and reported as "not found".
type Resolver struct {
	geocoder Geocoder
}

// NewResolver creates a resolver backed by geocoder. A nil geocoder
// resolves nothing.
func NewResolver(geocoder Geocoder) *Resolver {
	return &Resolver{geocoder: geocoder}
}

// Geocode resolves text to coordinates
func (r *Resolver) Geocode(ctx context.Context, text string) *models.Coordinates {
	if r.geocoder == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	coords, err := r.geocoder.Geocode(ctx, text)
	if err != nil {
		log.Warn().Err(err).Str("location", text).Msg("Geocoding failed")
		return nil
	}
	return coords
}

// Reverse resolves coordinates to a display address, "" when unknown
func (r *Resolver) Reverse(ctx context.Context, lat, lon float64) string {
	if r.geocoder == nil {
		return ""
	}
	address, err := r.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		log.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("Reverse geocoding failed")
		return ""
	}
	return address
}

var (
	nearPrefix  = regexp.MustCompile(`(?i)^near:(?:"([^"]+)"|(\S+))\s*(.*)$`)
	coordinates = regexp.MustCompile(`^(-?\d{1,3}(?:\.\d+)?)\s*,\s*(-?\d{1,3}(?:\.\d+)?)$`)
)

// ParseLocationQuery strips a leading near: prefix from query. It returns
// the remaining query and the location the prefix names, or the query
// unchanged and nil when there is no prefix.
//
//	near:40.7128,-74.0060 running events
//	near:"New York" marathon
//	near:Boston 10k
func (r *Resolver) ParseLocationQuery(ctx context.Context, query string) (string, *Location) {
	trimmed := strings.TrimSpace(query)
	m := nearPrefix.FindStringSubmatch(trimmed)
	if m == nil {
		return query, nil
	}

	target := m[1]
	if target == "" {
		target = m[2]
	}
	clean := strings.TrimSpace(m[3])

	if lat, lon, ok := parseCoordinates(target); ok {
		coords := &models.Coordinates{Latitude: lat, Longitude: lon}
		address := r.Reverse(ctx, lat, lon)
		if address == "" {
			address = target
		}
		return clean, &Location{Address: address, Coordinates: coords}
	}

	return clean, &Location{Address: target}
}

func parseCoordinates(s string) (float64, float64, bool) {
	m := coordinates.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}
