package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/garotm/RunOn/internal/metrics"
	"github.com/garotm/RunOn/internal/models"
)

// Nominatim is a client for a Nominatim-compatible geocoding API
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	metrics   *metrics.Metrics
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error,omitempty"`
}

func NewNominatim(baseURL, userAgent string, timeout time.Duration, m *metrics.Metrics) *Nominatim {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if userAgent == "" {
		userAgent = "runon-gateway"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    newHTTPClient(timeout),
		metrics:   m,
	}
}

// Geocode returns the coordinates of the best match for query, or nil
// when nothing matches.
func (n *Nominatim) Geocode(ctx context.Context, query string) (*models.Coordinates, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")

	var places []nominatimPlace
	if err := n.get(ctx, "/search?"+q.Encode(), &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad longitude %q: %w", places[0].Lon, err)
	}
	return &models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// Reverse returns the display address at lat/lon, or "" when unknown
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")

	var place nominatimPlace
	if err := n.get(ctx, "/reverse?"+q.Encode(), &place); err != nil {
		return "", err
	}
	if place.Error != "" {
		return "", nil
	}
	return place.DisplayName, nil
}

func (n *Nominatim) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.metrics.ProviderRequest("geocoder", "error")
		return fmt.Errorf("nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		n.metrics.ProviderRequest("geocoder", "error")
		return &StatusError{Provider: "geocoder", StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		n.metrics.ProviderRequest("geocoder", "error")
		return fmt.Errorf("nominatim: decode: %w", err)
	}
	n.metrics.ProviderRequest("geocoder", "ok")
	return nil
}
