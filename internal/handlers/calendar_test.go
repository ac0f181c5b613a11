package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/garotm/RunOn/internal/models"
	"github.com/garotm/RunOn/internal/services"
)

func calendarRequest(body, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/calendar/sync", strings.NewReader(body))
	req.Header.Set(CalendarTokenHeader, "oauth-token")
	return asUser(req, userID)
}

func TestCalendarSyncHandler_Validation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"empty body", ``, "No JSON data provided"},
		{"missing action", `{"event":{"name":"x"}}`, "Missing required action parameter"},
		{"invalid action", `{"action":"update"}`, "Invalid action: update"},
		{"add without event", `{"action":"add"}`, "Missing required event data"},
		{"remove with empty event", `{"action":"remove","event":{}}`, "Missing required event data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := httptest.NewRecorder()
			env.handler.CalendarSyncHandler(w, calendarRequest(tt.body, "u1"))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if body := decodeBody(t, w); body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestCalendarSyncHandler_MissingCalendarToken(t *testing.T) {
	env := newTestEnv(t)
	req := asUser(httptest.NewRequest(http.MethodPost, "/calendar/sync", strings.NewReader(`{"action":"list"}`)), "u1")
	w := httptest.NewRecorder()
	env.handler.CalendarSyncHandler(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCalendarSyncHandler_AddRemoveList(t *testing.T) {
	env := newTestEnv(t)
	env.handler.publisher = services.NewLedgerPublisher(env.store, nil)

	add := `{"action":"add","event":{"id":"e1","name":"Test 5K Run","date":"2025-02-15T00:00:00Z","location":"Boston","url":"http://test.com","distance":5}}`
	w := httptest.NewRecorder()
	env.handler.CalendarSyncHandler(w, calendarRequest(add, "u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}
	event := decodeBody(t, w)["event"].(map[string]interface{})
	if event["calendar_event_id"] != "cal-e1" {
		t.Errorf("calendar_event_id = %v", event["calendar_event_id"])
	}
	if len(env.tokens) != 1 || env.tokens[0] != "oauth-token" {
		t.Errorf("calendar tokens = %v", env.tokens)
	}

	records, _ := env.store.ListSyncs(context.Background(), "u1")
	if len(records) != 1 || records[0].Status != models.SyncStatusAdded || records[0].Name != "Test 5K Run" {
		t.Fatalf("ledger after add = %+v", records)
	}

	w = httptest.NewRecorder()
	env.handler.CalendarSyncHandler(w, calendarRequest(`{"action":"remove","event":{"id":"cal-e1"}}`, "u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["message"] != "Event removed" {
		t.Errorf("message = %v", body["message"])
	}
	if len(env.calendar.removed) != 1 || env.calendar.removed[0] != "cal-e1" {
		t.Errorf("removed = %v", env.calendar.removed)
	}

	records, _ = env.store.ListSyncs(context.Background(), "u1")
	if len(records) != 1 || records[0].Status != models.SyncStatusRemoved || records[0].Name != "Test 5K Run" {
		t.Fatalf("ledger after remove = %+v", records)
	}

	env.calendar.entries = []models.CalendarEntry{{ID: "cal-2", Summary: "🏃 City 10K"}}
	w = httptest.NewRecorder()
	env.handler.CalendarSyncHandler(w, calendarRequest(`{"action":"list"}`, "u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if events := decodeBody(t, w)["events"].([]interface{}); len(events) != 1 {
		t.Errorf("listed %d events", len(events))
	}
}

func TestCalendarSyncHandler_RemoveNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.calendar.err = services.ErrEventNotFound

	w := httptest.NewRecorder()
	env.handler.CalendarSyncHandler(w, calendarRequest(`{"action":"remove","event":{"id":"gone"}}`, "u1"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if len(env.publisher.keys()) != 0 {
		t.Errorf("failed removal was published")
	}
}

func TestSearchAndCreateHandler(t *testing.T) {
	env := newTestEnv(t)
	env.search.events = []models.Event{
		{ID: "a", Name: "Test 5K Run", Date: time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), Distance: 5},
		{ID: "b", Name: "Spring Marathon", Date: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), Distance: 42.195},
	}

	req := httptest.NewRequest(http.MethodPost, "/events/search", strings.NewReader(`{"query":"5k","location":"Boston"}`))
	req.Header.Set(CalendarTokenHeader, "oauth-token")
	w := httptest.NewRecorder()
	env.handler.SearchAndCreateHandler(w, asUser(req, "u1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	events := decodeBody(t, w)["events"].([]interface{})
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	for i, want := range []string{"cal-a", "cal-b"} {
		if got := events[i].(map[string]interface{})["calendar_event_id"]; got != want {
			t.Errorf("events[%d].calendar_event_id = %v, want %s", i, got, want)
		}
	}
	keys := env.publisher.keys()
	if len(keys) != 2 || keys[0] != services.RoutingCalendarEventAdded {
		t.Errorf("published = %v", keys)
	}
}

func TestCalendarHistoryAndExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.UpsertSync(ctx, models.SyncRecord{
		UserID: "u1", CalendarEventID: "cal-1", Name: "Test 5K Run",
		EventDate: time.Date(2025, 2, 15, 8, 0, 0, 0, time.UTC), Location: "Boston",
		URL: "http://test.com", Distance: 5, Status: models.SyncStatusAdded,
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	})
	env.store.UpsertSync(ctx, models.SyncRecord{
		UserID: "u1", CalendarEventID: "cal-2", Name: "Old Race",
		Status: models.SyncStatusRemoved, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	})

	w := httptest.NewRecorder()
	env.handler.CalendarHistoryHandler(w, asUser(httptest.NewRequest(http.MethodGet, "/calendar/history", nil), "u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["count"] != float64(2) {
		t.Errorf("history count = %v", body["count"])
	}

	w = httptest.NewRecorder()
	env.handler.ExportCalendarHandler(w, asUser(httptest.NewRequest(http.MethodGet, "/calendar/export.ics", nil), "u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}

	ics := w.Body.String()
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + icsProductID,
		"UID:cal-1@runon",
		"DTSTART:20250215T080000Z",
		"SUMMARY:🏃 Test 5K Run",
		"LOCATION:Boston",
	} {
		if !strings.Contains(ics, want) {
			t.Errorf("feed missing %q:\n%s", want, ics)
		}
	}
	if strings.Contains(ics, "Old Race") {
		t.Errorf("removed record exported:\n%s", ics)
	}
}
