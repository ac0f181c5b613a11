package models

import (
	"time"
)

// Coordinates is a latitude/longitude pair in decimal degrees
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Event represents a running event discovered through search
type Event struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Date            time.Time    `json:"date"`
	Location        string       `json:"location"`
	Description     string       `json:"description"`
	URL             string       `json:"url"`
	Distance        float64      `json:"distance"` // kilometers, 0 when unknown
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
	CalendarEventID string       `json:"calendar_event_id,omitempty"`
}

// WithCalendarEventID returns a copy of the event linked to a calendar entry
func (e Event) WithCalendarEventID(id string) Event {
	e.CalendarEventID = id
	return e
}

// Equal reports whether two events carry the same values
func (e Event) Equal(other Event) bool {
	if e.ID != other.ID || e.Name != other.Name || !e.Date.Equal(other.Date) ||
		e.Location != other.Location || e.Description != other.Description ||
		e.URL != other.URL || e.Distance != other.Distance ||
		e.CalendarEventID != other.CalendarEventID {
		return false
	}
	if e.Coordinates == nil || other.Coordinates == nil {
		return e.Coordinates == nil && other.Coordinates == nil
	}
	return *e.Coordinates == *other.Coordinates
}

// SearchHit is a single raw result returned by the search provider
type SearchHit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
