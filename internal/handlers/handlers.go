package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/garotm/RunOn/internal/auth"
	"github.com/garotm/RunOn/internal/models"
	"github.com/garotm/RunOn/internal/services"
	"github.com/garotm/RunOn/internal/storage"
	"github.com/rs/zerolog/log"
)

// EventSearcher finds running events for a free-text query
type EventSearcher interface {
	Search(ctx context.Context, query, location string) []models.Event
}

// Publisher puts domain events on the event bus
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// PictureStore keeps uploaded profile pictures
type PictureStore interface {
	UploadProfilePicture(ctx context.Context, userID string, reader io.Reader, filename string, contentType string, size int64) (string, string, error)
	DeleteProfilePicture(ctx context.Context, userID, objectURL string) error
}

// HealthChecker is any dependency reported by the health endpoint
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options wires the handler dependencies. Pictures may be nil when object
// storage is disabled.
type Options struct {
	Search    EventSearcher
	Calendars services.CalendarFactory
	Sessions  *auth.SessionManager
	Verifiers map[string]auth.Verifier
	Users     storage.UserStore
	Ledger    storage.SyncStore
	Pictures  PictureStore
	Publisher Publisher
	Checks    map[string]HealthChecker
}

// Handler contains all HTTP handlers
type Handler struct {
	search    EventSearcher
	calendars services.CalendarFactory
	sessions  *auth.SessionManager
	verifiers map[string]auth.Verifier
	users     storage.UserStore
	ledger    storage.SyncStore
	pictures  PictureStore
	publisher Publisher
	checks    map[string]HealthChecker
	now       func() time.Time
}

// NewHandler creates a new handler instance
func NewHandler(opts Options) *Handler {
	return &Handler{
		search:    opts.Search,
		calendars: opts.Calendars,
		sessions:  opts.Sessions,
		verifiers: opts.Verifiers,
		users:     opts.Users,
		ledger:    opts.Ledger,
		pictures:  opts.Pictures,
		publisher: opts.Publisher,
		checks:    opts.Checks,
		now:       time.Now,
	}
}

// HealthCheckHandler returns health status
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "healthy"
	checks := make(map[string]string, len(h.checks))
	for name, dep := range h.checks {
		if err := dep.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// publish sends a bus message. Failures are logged; the HTTP request has
// already succeeded by the time it is called.
func (h *Handler) publish(ctx context.Context, routingKey string, payload interface{}) {
	if err := h.publisher.Publish(ctx, routingKey, payload); err != nil {
		log.Error().Err(err).Str("routing_key", routingKey).Msg("Failed to publish to RabbitMQ")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":  message,
		"status": status,
	})
}

// decodeObject reads a JSON object body. It returns false for an empty
// body, malformed JSON or an empty object.
func decodeObject(r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		return false
	}
	return json.Unmarshal(body, dst) == nil
}

func sessionClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
		return nil, false
	}
	return claims, true
}
