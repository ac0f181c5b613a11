package models

import (
	"time"
)

// Sync ledger statuses
const (
	SyncStatusAdded   = "added"
	SyncStatusRemoved = "removed"
)

// CalendarEntry is an event as stored in the user's calendar
type CalendarEntry struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	HTMLLink    string    `json:"html_link,omitempty"`
}

// SyncRecord tracks a running event pushed to (or removed from) a user's calendar
type SyncRecord struct {
	UserID          string    `json:"user_id"`
	CalendarEventID string    `json:"calendar_event_id"`
	Name            string    `json:"name"`
	EventDate       time.Time `json:"event_date"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	URL             string    `json:"url"`
	Distance        float64   `json:"distance"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CalendarSyncEvent is published on the event bus after a calendar change
type CalendarSyncEvent struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	CalendarEventID string    `json:"calendar_event_id"`
	Event           *Event    `json:"event,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// UserLifecycleEvent is published when a profile is created or deleted
type UserLifecycleEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
