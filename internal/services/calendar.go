package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/garotm/RunOn/internal/metrics"
	"github.com/garotm/RunOn/internal/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	primaryCalendar = "primary"
	runnerEmoji     = "🏃"
	listLimit       = 10
)

// ErrEventNotFound is returned when the calendar has no event with the given id
var ErrEventNotFound = errors.New("calendar event not found")

// Calendar is a user's calendar as seen by the sync handlers
type Calendar interface {
	AddEvent(ctx context.Context, event models.Event) (string, error)
	RemoveEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context) ([]models.CalendarEntry, error)
}

// CalendarFactory opens the calendar authorized by a user's OAuth access token
type CalendarFactory func(ctx context.Context, accessToken string) (Calendar, error)

// GoogleCalendar adapts the Google Calendar v3 API to Calendar
type GoogleCalendar struct {
	svc        *calendar.Service
	calendarID string
	now        func() time.Time
	metrics    *metrics.Metrics
}

// NewGoogleCalendarFactory returns a factory building Google Calendar
// clients. endpoint overrides the API base URL when non-empty.
func NewGoogleCalendarFactory(endpoint string, m *metrics.Metrics) CalendarFactory {
	return func(ctx context.Context, accessToken string) (Calendar, error) {
		return NewGoogleCalendar(ctx, accessToken, endpoint, m)
	}
}

func NewGoogleCalendar(ctx context.Context, accessToken, endpoint string, m *metrics.Metrics) (*GoogleCalendar, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("calendar access token is required")
	}

	// The service outlives the request context that created it.
	client := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &GoogleCalendar{svc: svc, calendarID: primaryCalendar, now: time.Now, metrics: m}, nil
}

// AddEvent inserts event into the calendar and returns its calendar id. An
// event already linked to an existing calendar entry is not inserted again.
func (g *GoogleCalendar) AddEvent(ctx context.Context, event models.Event) (string, error) {
	if event.CalendarEventID != "" {
		existing, err := g.svc.Events.Get(g.calendarID, event.CalendarEventID).Context(ctx).Do()
		switch {
		case err == nil:
			g.metrics.ProviderRequest("calendar", "ok")
			return existing.Id, nil
		case !isNotFound(err):
			g.metrics.ProviderRequest("calendar", "error")
			return "", fmt.Errorf("failed to look up calendar event: %w", err)
		}
	}

	created, err := g.svc.Events.Insert(g.calendarID, CalendarEventBody(event)).Context(ctx).Do()
	if err != nil {
		g.metrics.ProviderRequest("calendar", "error")
		return "", fmt.Errorf("failed to insert calendar event: %w", err)
	}
	g.metrics.ProviderRequest("calendar", "ok")
	return created.Id, nil
}

// RemoveEvent deletes a calendar entry
func (g *GoogleCalendar) RemoveEvent(ctx context.Context, eventID string) error {
	err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			g.metrics.ProviderRequest("calendar", "ok")
			return ErrEventNotFound
		}
		g.metrics.ProviderRequest("calendar", "error")
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}
	g.metrics.ProviderRequest("calendar", "ok")
	return nil
}

// ListEvents returns the next upcoming running events in the calendar
func (g *GoogleCalendar) ListEvents(ctx context.Context) ([]models.CalendarEntry, error) {
	res, err := g.svc.Events.List(g.calendarID).
		TimeMin(g.now().UTC().Format(time.RFC3339)).
		MaxResults(listLimit).
		SingleEvents(true).
		OrderBy("startTime").
		Q(runnerEmoji).
		Context(ctx).
		Do()
	if err != nil {
		g.metrics.ProviderRequest("calendar", "error")
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	g.metrics.ProviderRequest("calendar", "ok")

	entries := make([]models.CalendarEntry, 0, len(res.Items))
	for _, item := range res.Items {
		entries = append(entries, models.CalendarEntry{
			ID:          item.Id,
			Summary:     item.Summary,
			Location:    item.Location,
			Description: item.Description,
			Start:       parseEventTime(item.Start),
			End:         parseEventTime(item.End),
			HTMLLink:    item.HtmlLink,
		})
	}
	return entries, nil
}

// CalendarEventBody renders a running event as a calendar entry
func CalendarEventBody(event models.Event) *calendar.Event {
	when := &calendar.EventDateTime{
		DateTime: event.Date.UTC().Format(time.RFC3339),
		TimeZone: "UTC",
	}
	return &calendar.Event{
		Summary:  runnerEmoji + " " + event.Name,
		Location: event.Location,
		Description: fmt.Sprintf("%s\n\nDistance: %skm\n\nMore info: %s",
			event.Description, formatDistance(event.Distance), event.URL),
		Start: when,
		End:   when,
	}
}

func formatDistance(km float64) string {
	if km == float64(int64(km)) {
		return strconv.FormatFloat(km, 'f', 1, 64)
	}
	return strconv.FormatFloat(km, 'f', -1, 64)
}

func parseEventTime(t *calendar.EventDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
