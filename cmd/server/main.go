package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/garotm/RunOn/internal/auth"
	"github.com/garotm/RunOn/internal/config"
	"github.com/garotm/RunOn/internal/discovery"
	"github.com/garotm/RunOn/internal/handlers"
	"github.com/garotm/RunOn/internal/metrics"
	"github.com/garotm/RunOn/internal/models"
	"github.com/garotm/RunOn/internal/services"
	"github.com/garotm/RunOn/internal/storage"
)

func main() {
	// Setup logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, keeping info")
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Msg("Starting RunOn gateway")

	m := metrics.New()
	checks := map[string]handlers.HealthChecker{}

	store := openStore(cfg)
	defer store.Close()
	checks["storage"] = store

	var pictures handlers.PictureStore
	if cfg.MinIOEndpoint != "" {
		log.Info().Msg("Initializing MinIO storage...")
		minioStorage, err := storage.NewMinIOStorage(
			cfg.MinIOEndpoint,
			cfg.MinIOPublicEndpoint,
			cfg.MinIOAccessKey,
			cfg.MinIOSecretKey,
			cfg.MinIOBucket,
			cfg.MinIOUseSSL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MinIO storage")
		}
		pictures = minioStorage
		checks["pictures"] = minioStorage
		log.Info().Msg("MinIO storage initialized successfully")
	} else {
		log.Warn().Msg("MinIO not configured - profile picture uploads are disabled")
	}

	var publisher handlers.Publisher
	if cfg.RabbitMQURL != "" {
		log.Info().Msg("Initializing RabbitMQ publisher...")
		rabbitMQPublisher, err := services.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, m)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize RabbitMQ publisher")
		}
		defer rabbitMQPublisher.Close()
		publisher = rabbitMQPublisher
		checks["rabbitmq"] = rabbitMQPublisher

		log.Info().Msg("Initializing RabbitMQ consumer...")
		rabbitMQConsumer, err := services.NewRabbitMQConsumer(cfg.RabbitMQURL, cfg.RabbitMQExchange, store, m)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize RabbitMQ consumer")
		}
		defer rabbitMQConsumer.Close()

		if err := rabbitMQConsumer.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start RabbitMQ consumer")
		}
		log.Info().Msg("RabbitMQ consumer initialized and started")
	} else {
		log.Warn().Msg("RabbitMQ not configured - calendar syncs are recorded directly")
		publisher = services.NewLedgerPublisher(store, m)
	}

	searchService := services.NewCustomSearchService(cfg.SearchAPIKey, cfg.SearchEngineID, cfg.SearchBaseURL, cfg.SearchTimeout, m)
	checks["search"] = searchService
	geocoder := services.NewNominatim(cfg.GeocoderBaseURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, m)

	policy, err := discovery.ParseUndatedPolicy(cfg.UndatedResultPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid undated result policy")
	}
	orchestrator := discovery.NewOrchestrator(searchService, discovery.NewResolver(geocoder), discovery.NewCache(cfg.SearchCacheTTL), policy)
	orchestrator.SetMetrics(m)

	// The JWKS refresh goroutine stops with this context.
	jwksCtx, stopJWKS := context.WithCancel(context.Background())
	defer stopJWKS()
	appleVerifier, err := auth.NewAppleVerifier(jwksCtx, cfg.AppleClientID, cfg.AppleJWKSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load Apple signing keys")
	}

	sessions := auth.NewSessionManager(cfg.JWTSecretKey, cfg.JWTExpiry)

	log.Info().Msg("Initializing HTTP handlers...")
	handler := handlers.NewHandler(handlers.Options{
		Search:    orchestrator,
		Calendars: services.NewGoogleCalendarFactory(cfg.CalendarBaseURL, m),
		Sessions:  sessions,
		Verifiers: map[string]auth.Verifier{
			models.ProviderGoogle: auth.NewGoogleVerifier(cfg.GoogleClientID),
			models.ProviderApple:  appleVerifier,
		},
		Users:     store,
		Ledger:    store,
		Pictures:  pictures,
		Publisher: publisher,
		Checks:    checks,
	})

	// Setup router
	router := setupRouter(handler, sessions, auth.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow), m)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("address", srv.Addr).
			Msg("🚀 Server starting...")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	log.Info().Msg("✅ RunOn gateway is running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

// openStore connects the document store selected by STORAGE_BACKEND
func openStore(cfg *config.Config) storage.Store {
	if cfg.StorageBackend == "memory" {
		log.Warn().Msg("Using in-memory storage - data is lost on restart")
		return storage.NewMemoryStorage()
	}

	log.Info().Msg("Initializing Postgres storage...")
	store, err := storage.NewPostgresStorage(
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBSSLMode,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Postgres storage")
	}
	log.Info().Msg("Postgres storage initialized")
	return store
}

// setupRouter configures all routes and middleware
func setupRouter(h *handlers.Handler, sessions *auth.SessionManager, limiter *auth.RateLimiter, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()

	// Middleware
	r.Use(loggingMiddleware(m))
	r.Use(recoveryMiddleware)

	// Health and metrics are exempt from rate limiting
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/api/health", h.HealthCheckHandler).Methods("GET")
	r.Handle("/metrics", m.Handler()).Methods("GET")

	public := r.NewRoute().Subrouter()
	public.Use(auth.RateLimit(limiter))
	public.HandleFunc("/events/discover", h.DiscoverEventsHandler).Methods("GET", "POST")
	public.HandleFunc("/auth/login", h.LoginHandler).Methods("POST")

	protected := r.NewRoute().Subrouter()
	protected.Use(auth.RequireSession(sessions))
	protected.Use(auth.RateLimit(limiter))
	protected.HandleFunc("/user/profile", h.GetProfileHandler).Methods("GET")
	protected.HandleFunc("/user/profile", h.UpdateProfileHandler).Methods("PUT")
	protected.HandleFunc("/user/profile", h.DeleteProfileHandler).Methods("DELETE")
	protected.HandleFunc("/user/profile/picture", h.UploadProfilePictureHandler).Methods("POST")
	protected.HandleFunc("/calendar/sync", h.CalendarSyncHandler).Methods("POST")
	protected.HandleFunc("/calendar/history", h.CalendarHistoryHandler).Methods("GET")
	protected.HandleFunc("/calendar/export.ics", h.ExportCalendarHandler).Methods("GET")
	protected.HandleFunc("/events/search", h.SearchAndCreateHandler).Methods("POST")

	log.Info().Msg("Routes configured successfully")
	return r
}

// loggingMiddleware logs all HTTP requests and records them in m
func loggingMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap ResponseWriter to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start)
			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			m.ObserveHTTP(route, r.Method, wrapped.statusCode, elapsed)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration_ms", elapsed).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"Internal Server Error","status":500}`))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
