package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newNominatimServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "runon-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("q") == "Nowhere" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[{"lat":"40.7128","lon":"-74.0060","display_name":"New York, USA"}]`))
		case "/reverse":
			if r.URL.Query().Get("lat") == "0" {
				_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
				return
			}
			_, _ = w.Write([]byte(`{"display_name":"123 Test St"}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestNominatim_Geocode(t *testing.T) {
	srv := newNominatimServer(t)
	defer srv.Close()
	n := NewNominatim(srv.URL, "runon-test", time.Second, nil)

	coords, err := n.Geocode(context.Background(), "New York")
	if err != nil {
		t.Fatalf("Geocode() error: %v", err)
	}
	if coords == nil || coords.Latitude != 40.7128 || coords.Longitude != -74.0060 {
		t.Errorf("coords = %+v", coords)
	}

	coords, err = n.Geocode(context.Background(), "Nowhere")
	if err != nil || coords != nil {
		t.Errorf("Geocode(Nowhere) = %+v, %v; want nil, nil", coords, err)
	}
}

func TestNominatim_Reverse(t *testing.T) {
	srv := newNominatimServer(t)
	defer srv.Close()
	n := NewNominatim(srv.URL, "runon-test", time.Second, nil)

	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"known", 40.7128, -74.0060, "123 Test St"},
		{"unknown", 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Reverse(context.Background(), tt.lat, tt.lon)
			if err != nil {
				t.Fatalf("Reverse() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Reverse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNominatim_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "", time.Second, nil)
	if _, err := n.Geocode(context.Background(), "x"); err == nil {
		t.Error("expected error from Geocode")
	}
	if _, err := n.Reverse(context.Background(), 1, 1); err == nil {
		t.Error("expected error from Reverse")
	}
}
