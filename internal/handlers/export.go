package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
	"github.com/garotm/RunOn/internal/models"
	"github.com/rs/zerolog/log"
)

const icsProductID = "-//RunOn//Running Events//EN"

// ExportCalendarHandler renders the caller's synced events as an iCalendar feed
func (h *Handler) ExportCalendarHandler(w http.ResponseWriter, r *http.Request) {
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

	var buf bytes.Buffer
	if err := WriteICS(&buf, records, h.now().UTC()); err != nil {
		log.Error().Err(err).Msg("Failed to encode calendar feed")
		writeError(w, http.StatusInternalServerError, "Failed to encode calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="runon.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// WriteICS encodes the added records as a VCALENDAR. Removed records are skipped.
func WriteICS(w io.Writer, records []models.SyncRecord, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	for _, rec := range records {
		if rec.Status != models.SyncStatusAdded {
			continue
		}

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, rec.CalendarEventID+"@runon")
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetDateTime(ical.PropDateTimeStart, rec.EventDate.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, rec.EventDate.UTC())
		event.Props.SetText(ical.PropSummary, "🏃 "+rec.Name)
		if rec.Location != "" {
			event.Props.SetText(ical.PropLocation, rec.Location)
		}
		event.Props.SetText(ical.PropDescription, eventDescription(rec))
		if u, err := url.Parse(rec.URL); err == nil && rec.URL != "" {
			event.Props.SetURI(ical.PropURL, u)
		}
		cal.Children = append(cal.Children, event.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func eventDescription(rec models.SyncRecord) string {
	desc := rec.Description
	if rec.Distance > 0 {
		if desc != "" {
			desc += "\n\n"
		}
		desc += "Distance: " + strconv.FormatFloat(rec.Distance, 'f', -1, 64) + "km"
	}
	return desc
}
