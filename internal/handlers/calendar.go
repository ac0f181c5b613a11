package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/garotm/RunOn/internal/models"
	"github.com/garotm/RunOn/internal/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CalendarTokenHeader carries the user's Google OAuth access token
const CalendarTokenHeader = "X-Calendar-Token"

type calendarSyncRequest struct {
	Action string        `json:"action"`
	Event  *models.Event `json:"event"`
}

// CalendarSyncHandler adds, removes or lists running events in the caller's calendar
func (h *Handler) CalendarSyncHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	var req calendarSyncRequest
	if !decodeObject(r, &req) {
		writeError(w, http.StatusBadRequest, "No JSON data provided")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "Missing required action parameter")
		return
	}
	switch req.Action {
	case "add", "remove", "list":
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid action: %s", req.Action))
		return
	}
	if req.Action != "list" && (req.Event == nil || req.Event.Equal(models.Event{})) {
		writeError(w, http.StatusBadRequest, "Missing required event data")
		return
	}

	cal, ok := h.openCalendar(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch req.Action {
	case "add":
		id, err := cal.AddEvent(ctx, *req.Event)
		if err != nil {
			writeCalendarError(w, err)
			return
		}
		event := req.Event.WithCalendarEventID(id)
		h.publishCalendarChange(ctx, claims.Subject, id, &event, true)

		log.Info().Str("user_id", claims.Subject).Str("calendar_event_id", id).Msg("Event added to calendar")
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "event": event})

	case "remove":
		id := req.Event.CalendarEventID
		if id == "" {
			id = req.Event.ID
		}
		if id == "" {
			writeError(w, http.StatusBadRequest, "Missing required event data")
			return
		}
		if err := cal.RemoveEvent(ctx, id); err != nil {
			writeCalendarError(w, err)
			return
		}
		var details *models.Event
		if req.Event.Name != "" {
			details = req.Event
		}
		h.publishCalendarChange(ctx, claims.Subject, id, details, false)

		log.Info().Str("user_id", claims.Subject).Str("calendar_event_id", id).Msg("Event removed from calendar")
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "message": "Event removed"})

	case "list":
		entries, err := cal.ListEvents(ctx)
		if err != nil {
			writeCalendarError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "events": entries})
	}
}

// CalendarHistoryHandler lists the caller's sync ledger, newest first
func (h *Handler) CalendarHistoryHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	records, err := h.ledger.ListSyncs(r.Context(), claims.Subject)
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.Subject).Msg("Failed to list calendar syncs")
		writeError(w, http.StatusInternalServerError, "Failed to load calendar history")
		return
	}
	if records == nil {
		records = []models.SyncRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"history": records,
		"count":   len(records),
	})
}

// openCalendar builds the caller's calendar client from the access token header
func (h *Handler) openCalendar(w http.ResponseWriter, r *http.Request) (services.Calendar, bool) {
	token := strings.TrimSpace(r.Header.Get(CalendarTokenHeader))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Missing calendar access token")
		return nil, false
	}
	cal, err := h.calendars(r.Context(), token)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open calendar")
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return cal, true
}

func (h *Handler) publishCalendarChange(ctx context.Context, userID, calendarEventID string, event *models.Event, added bool) {
	routingKey := services.RoutingCalendarEventRemoved
	if added {
		routingKey = services.RoutingCalendarEventAdded
	}
	h.publish(ctx, routingKey, models.CalendarSyncEvent{
		ID:              uuid.New().String(),
		UserID:          userID,
		CalendarEventID: calendarEventID,
		Event:           event,
		Timestamp:       h.now().UTC(),
	})
}

func writeCalendarError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrEventNotFound) {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	log.Error().Err(err).Msg("Calendar request failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}
