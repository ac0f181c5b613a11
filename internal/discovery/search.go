package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garotm/RunOn/internal/metrics"
	"github.com/garotm/RunOn/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// resultCount is the number of hits requested from the provider
const resultCount = 10

// runningTerms mark a query as already being about running
var runningTerms = []string{"run", "race", "marathon", "5k", "10k", "half", "trail", "ultra", "jog"}

// UndatedPolicy decides what happens to hits without a recognizable date
type UndatedPolicy string

const (
	// UndatedSkip drops hits without a date
	UndatedSkip UndatedPolicy = "skip"
	// UndatedNow stamps hits without a date with the search time
	UndatedNow UndatedPolicy = "now"
)

// ParseUndatedPolicy validates a policy name
func ParseUndatedPolicy(s string) (UndatedPolicy, error) {
	switch p := UndatedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case UndatedSkip, UndatedNow:
		return p, nil
	default:
		return "", fmt.Errorf("unknown undated result policy %q", s)
	}
}

// SearchProvider is the web search backend queried for events
type SearchProvider interface {
	Search(ctx context.Context, query string, num int) ([]models.SearchHit, error)
}

// Orchestrator runs event searches: it resolves the location, consults the
// cache, queries the provider and extracts events from the hits.
type Orchestrator struct {
	provider SearchProvider
	resolver *Resolver
	cache    *Cache
	policy   UndatedPolicy
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewOrchestrator wires a search orchestrator
func NewOrchestrator(provider SearchProvider, resolver *Resolver, cache *Cache, policy UndatedPolicy) *Orchestrator {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	if policy == "" {
		policy = UndatedSkip
	}
	return &Orchestrator{
		provider: provider,
		resolver: resolver,
		cache:    cache,
		policy:   policy,
		now:      time.Now,
	}
}

// SetMetrics attaches a metrics sink for cache hits and misses
func (o *Orchestrator) SetMetrics(m *metrics.Metrics) {
	o.metrics = m
}

// Cache returns the orchestrator's result cache
func (o *Orchestrator) Cache() *Cache {
	return o.cache
}

// Search finds running events matching query near location. A near:
// prefix in query supplies the location when location is empty.
// Provider failures yield an empty, uncached result.
func (o *Orchestrator) Search(ctx context.Context, query, location string) []models.Event {
	cleanQuery, prefixed := o.resolver.ParseLocationQuery(ctx, query)

	var loc *Location
	if strings.TrimSpace(location) != "" {
		loc = &Location{Address: strings.TrimSpace(location)}
	} else if prefixed != nil {
		loc = prefixed
	}
	address := ""
	if loc != nil {
		address = loc.Address
	}

	key := CacheKey(cleanQuery, address)
	if events, ok := o.cache.Get(key); ok {
		o.metrics.CacheHit()
		log.Debug().Str("query", cleanQuery).Str("location", address).Msg("Search cache hit")
		return events
	}
	o.metrics.CacheMiss()

	enhanced := EnhanceQuery(cleanQuery, address)
	hits, err := o.provider.Search(ctx, enhanced, resultCount)
	if err != nil {
		log.Error().Err(err).Str("query", enhanced).Msg("Event search failed")
		return []models.Event{}
	}

	var coords *models.Coordinates
	if loc != nil {
		coords = loc.Coordinates
		if coords == nil {
			coords = o.resolver.Geocode(ctx, address)
		}
	}

	events := make([]models.Event, 0, len(hits))
	for _, hit := range hits {
		event, ok := o.buildEvent(hit, address, coords)
		if !ok {
			log.Debug().Str("title", hit.Title).Msg("Skipping search hit without a date")
			continue
		}
		events = append(events, event)
	}

	o.cache.Put(key, events)

	log.Info().
		Str("query", enhanced).
		Int("hits", len(hits)).
		Int("events", len(events)).
		Msg("Event search completed")

	return events
}

func (o *Orchestrator) buildEvent(hit models.SearchHit, address string, coords *models.Coordinates) (models.Event, bool) {
	text := hit.Title + " " + hit.Snippet

	date := ExtractDate(text)
	if date == nil {
		if o.policy != UndatedNow {
			return models.Event{}, false
		}
		now := o.now().UTC()
		date = &now
	}

	distance := 0.0
	if d := ExtractDistance(text); d != nil {
		distance = *d
	}

	event := models.Event{
		ID:          uuid.New().String(),
		Name:        hit.Title,
		Date:        *date,
		Location:    address,
		Description: hit.Snippet,
		URL:         hit.Link,
		Distance:    distance,
	}
	if coords != nil {
		c := *coords
		event.Coordinates = &c
	}
	return event, true
}

// EnhanceQuery adds running keywords to queries that lack them and scopes
// the query to location when one is known.
func EnhanceQuery(query, location string) string {
	enhanced := strings.TrimSpace(query)

	lower := strings.ToLower(enhanced)
	running := false
	for _, term := range runningTerms {
		if strings.Contains(lower, term) {
			running = true
			break
		}
	}
	if !running {
		enhanced = strings.TrimSpace(enhanced + " running race marathon 5K 10K")
	}

	if location != "" {
		enhanced += " in " + location
	}
	return enhanced
}
