package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/garotm/RunOn/internal/metrics"
	"github.com/garotm/RunOn/internal/models"
	"github.com/rs/zerolog/log"
)

// CustomSearchService queries the Google Custom Search JSON API
type CustomSearchService struct {
	apiKey   string
	engineID string
	endpoint string
	client   *http.Client
	metrics  *metrics.Metrics
}

// NewCustomSearchService creates a new search client
func NewCustomSearchService(apiKey, engineID, endpoint string, timeout time.Duration, m *metrics.Metrics) *CustomSearchService {
	if endpoint == "" {
		endpoint = "https://www.googleapis.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &CustomSearchService{
		apiKey:   apiKey,
		engineID: engineID,
		endpoint: endpoint,
		client:   newHTTPClient(timeout),
		metrics:  m,
	}
}

type customSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Search returns up to num hits for query, newest first
func (s *CustomSearchService) Search(ctx context.Context, query string, num int) ([]models.SearchHit, error) {
	if s.apiKey == "" || s.engineID == "" {
		return nil, fmt.Errorf("search API key or engine id not configured")
	}

	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("cx", s.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	params.Set("sort", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/customsearch/v1?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.ProviderRequest("search", "error")
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.metrics.ProviderRequest("search", "error")
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.metrics.ProviderRequest("search", "error")
		log.Error().
			Int("status_code", resp.StatusCode).
			Str("body", string(body)).
			Msg("Search API returned error")
		return nil, &StatusError{Provider: "search", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed customSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.metrics.ProviderRequest("search", "error")
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		s.metrics.ProviderRequest("search", "error")
		return nil, fmt.Errorf("search API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	s.metrics.ProviderRequest("search", "ok")

	hits := make([]models.SearchHit, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		hits = append(hits, models.SearchHit{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
	}

	log.Debug().Str("query", query).Int("hits", len(hits)).Msg("Search API responded")
	return hits, nil
}

// HealthCheck verifies the search client is configured
func (s *CustomSearchService) HealthCheck(ctx context.Context) error {
	if s.apiKey == "" || s.engineID == "" {
		return fmt.Errorf("search API key or engine id not configured")
	}
	return nil
}
