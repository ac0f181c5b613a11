package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/garotm/RunOn/internal/models"
	"github.com/rs/zerolog/log"
)

type searchRequest struct {
	Query    string `json:"query"`
	Location string `json:"location"`
}

// DiscoverEventsHandler searches for running events. Parameters come from the
// JSON body on POST and from the query string otherwise.
func (h *Handler) DiscoverEventsHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := readSearchRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	events := h.search.Search(r.Context(), req.Query, req.Location)

	log.Info().
		Str("query", req.Query).
		Str("location", req.Location).
		Int("count", len(events)).
		Msg("Events discovered")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"metadata": map[string]interface{}{
			"query":    req.Query,
			"location": req.Location,
			"count":    len(events),
		},
	})
}

// SearchAndCreateHandler runs a search and adds every result to the caller's
// calendar. The returned events carry their calendar ids.
func (h *Handler) SearchAndCreateHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}
	req, ok := readSearchRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	cal, ok := h.openCalendar(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	found := h.search.Search(ctx, req.Query, req.Location)
	created := make([]models.Event, 0, len(found))
	for _, event := range found {
		id, err := cal.AddEvent(ctx, event)
		if err != nil {
			log.Error().Err(err).Str("event", event.Name).Msg("Failed to add event to calendar")
			writeCalendarError(w, err)
			return
		}
		event = event.WithCalendarEventID(id)
		created = append(created, event)
		h.publishCalendarChange(ctx, claims.Subject, id, &event, true)
	}

	log.Info().
		Str("user_id", claims.Subject).
		Str("query", req.Query).
		Int("created", len(created)).
		Msg("Calendar events created from search")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"events": created,
	})
}

func readSearchRequest(r *http.Request) (searchRequest, bool) {
	var req searchRequest
	if r.Method == http.MethodPost && r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Debug().Err(err).Msg("Ignoring unreadable search body")
		}
	}
	if req.Query == "" {
		req.Query = r.URL.Query().Get("query")
	}
	if req.Location == "" {
		req.Location = r.URL.Query().Get("location")
	}
	req.Query = strings.TrimSpace(req.Query)
	req.Location = strings.TrimSpace(req.Location)
	return req, req.Query != ""
}
