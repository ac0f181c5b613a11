package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/garotm/RunOn/internal/models"
)

type fakeGeocoder struct {
	coords     *models.Coordinates
	address    string
	err        error
	geocodes   []string
	reverseArg [][2]float64
}

func (f *fakeGeocoder) Geocode(_ context.Context, query string) (*models.Coordinates, error) {
	f.geocodes = append(f.geocodes, query)
	return f.coords, f.err
}

func (f *fakeGeocoder) Reverse(_ context.Context, lat, lon float64) (string, error) {
	f.reverseArg = append(f.reverseArg, [2]float64{lat, lon})
	return f.address, f.err
}

func TestResolverSwallowsErrors(t *testing.T) {
	r := NewResolver(&fakeGeocoder{err: errors.New("Geocoding failed")})
	if got := r.Geocode(context.Background(), "Test Location"); got != nil {
		t.Errorf("Geocode() = %v, want nil", got)
	}
	if got := r.Reverse(context.Background(), 1, 2); got != "" {
		t.Errorf("Reverse() = %q, want empty", got)
	}
}

func TestParseLocationQuery(t *testing.T) {
	tests := []struct {
		name        string
		geocoder    *fakeGeocoder
		query       string
		wantQuery   string
		wantAddress string
		wantCoords  *models.Coordinates
		wantNoLoc   bool
	}{
		{
			name:        "coordinates reverse geocoded",
			geocoder:    &fakeGeocoder{address: "123 Test St"},
			query:       "near:40.7128,-74.0060 running events",
			wantQuery:   "running events",
			wantAddress: "123 Test St",
			wantCoords:  &models.Coordinates{Latitude: 40.7128, Longitude: -74.0060},
		},
		{
			name:        "coordinates without address",
			geocoder:    &fakeGeocoder{},
			query:       "near:40.7128,-74.0060 running events",
			wantQuery:   "running events",
			wantAddress: "40.7128,-74.0060",
			wantCoords:  &models.Coordinates{Latitude: 40.7128, Longitude: -74.0060},
		},
		{
			name:        "coordinates with reverse error",
			geocoder:    &fakeGeocoder{err: errors.New("Reverse geocoding failed")},
			query:       "near:40.7128,-74.0060 running events",
			wantQuery:   "running events",
			wantAddress: "40.7128,-74.0060",
			wantCoords:  &models.Coordinates{Latitude: 40.7128, Longitude: -74.0060},
		},
		{
			name:        "quoted place",
			geocoder:    &fakeGeocoder{},
			query:       `near:"New York" marathon`,
			wantQuery:   "marathon",
			wantAddress: "New York",
		},
		{
			name:        "bare place",
			geocoder:    &fakeGeocoder{},
			query:       "NEAR:Boston 10k",
			wantQuery:   "10k",
			wantAddress: "Boston",
		},
		{
			name:        "out of range coordinates treated as text",
			geocoder:    &fakeGeocoder{},
			query:       "near:95.0,10.0 trail",
			wantQuery:   "trail",
			wantAddress: "95.0,10.0",
		},
		{
			name:      "no prefix",
			geocoder:  &fakeGeocoder{},
			query:     "running events near the park",
			wantQuery: "running events near the park",
			wantNoLoc: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.geocoder)
			query, loc := r.ParseLocationQuery(context.Background(), tt.query)
			if query != tt.wantQuery {
				t.Errorf("query = %q, want %q", query, tt.wantQuery)
			}
			if tt.wantNoLoc {
				if loc != nil {
					t.Errorf("location = %+v, want nil", loc)
				}
				return
			}
			if loc == nil {
				t.Fatal("location = nil")
			}
			if loc.Address != tt.wantAddress {
				t.Errorf("address = %q, want %q", loc.Address, tt.wantAddress)
			}
			switch {
			case tt.wantCoords == nil && loc.Coordinates != nil:
				t.Errorf("coordinates = %+v, want nil", loc.Coordinates)
			case tt.wantCoords != nil && (loc.Coordinates == nil || *loc.Coordinates != *tt.wantCoords):
				t.Errorf("coordinates = %+v, want %+v", loc.Coordinates, tt.wantCoords)
			}
		})
	}
}

func TestParseLocationQueryReverseGeocodesCoordinates(t *testing.T) {
	g := &fakeGeocoder{address: "123 Test St"}
	NewResolver(g).ParseLocationQuery(context.Background(), "near:40.7128,-74.0060 running events")

	if len(g.reverseArg) != 1 {
		t.Fatalf("reverse called %d times, want 1", len(g.reverseArg))
	}
	if g.reverseArg[0] != [2]float64{40.7128, -74.0060} {
		t.Errorf("reverse args = %v", g.reverseArg[0])
	}
}
