package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Micheline922/kairo/internal/auth"
	"github.com/Micheline922/kairo/internal/config"
	"github.com/Micheline922/kairo/internal/devotion"
	"github.com/Micheline922/kairo/internal/flow"
	"github.com/Micheline922/kairo/internal/gemini"
	"github.com/Micheline922/kairo/internal/lock"
	"github.com/Micheline922/kairo/internal/metrics"
	"github.com/Micheline922/kairo/internal/store"
)

const (
	serviceName    = "kairo"
	serviceVersion = "1.0.0"

	// maxBodyBytes bounds request bodies; the longest input is an article draft
	maxBodyBytes = 1 << 20

	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 10 * time.Minute
)

// StatsProvider reports model client statistics
type StatsProvider interface {
	GetStats() gemini.ClientStats
}

// Deps are the components the HTTP API serves
type Deps struct {
	Config   *config.Config
	Flows    *flow.Registry
	Devotion *devotion.Service
	Locks    *lock.Manager
	Verifier *auth.Verifier
	Backend  store.Backend
	Stats    StatsProvider       // optional
	Metrics  *metrics.Metrics    // optional
	Gatherer prometheus.Gatherer // defaults to the default registry
	Logger   *slog.Logger
}

// HTTPServer provides the Kairo HTTP API plus monitoring endpoints
type HTTPServer struct {
	server   *http.Server
	router   *mux.Router
	logger   *slog.Logger
	config   *config.Config
	flows    *flow.Registry
	devotion *devotion.Service
	locks    *lock.Manager
	verifier *auth.Verifier
	backend  store.Backend
	stats    StatsProvider
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	limiter  *userLimiter

	startTime time.Time
}

// NewHTTPServer creates the HTTP API server
func NewHTTPServer(deps Deps) (*HTTPServer, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("config is required")
	case deps.Flows == nil:
		return nil, errors.New("flow registry is required")
	case deps.Devotion == nil:
		return nil, errors.New("devotion service is required")
	case deps.Locks == nil:
		return nil, errors.New("lock manager is required")
	case deps.Verifier == nil:
		return nil, errors.New("token verifier is required")
	case deps.Backend == nil:
		return nil, errors.New("store backend is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := &HTTPServer{
		logger:    logger.With(slog.String("component", "http")),
		config:    deps.Config,
		flows:     deps.Flows,
		devotion:  deps.Devotion,
		locks:     deps.Locks,
		verifier:  deps.Verifier,
		backend:   deps.Backend,
		stats:     deps.Stats,
		metrics:   deps.Metrics,
		gatherer:  gatherer,
		limiter:   newUserLimiter(deps.Config.RateLimit.RequestsPerSecond, deps.Config.RateLimit.Burst),
		startTime: time.Now(),
	}

	h.router = mux.NewRouter()
	h.setupRoutes(h.router)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.HTTP.Address, deps.Config.HTTP.Port),
		Handler:      h.router,
		ReadTimeout:  deps.Config.HTTP.GetReadTimeoutDuration(),
		WriteTimeout: deps.Config.HTTP.GetWriteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}

	return h, nil
}

// Handler returns the root handler
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(r *mux.Router) {
	r.Use(h.withMetrics)

	// Monitoring
	r.HandleFunc("/", h.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/config", h.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Public API
	public := r.PathPrefix("/api/v1").Subrouter()
	public.HandleFunc("/verses/daily", h.handleDailyVerse).Methods(http.MethodGet)
	public.HandleFunc("/flows", h.handleListFlows).Methods(http.MethodGet)

	// Authenticated API
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.verifier.Middleware)

	api.Handle("/flows/{name}", h.rateLimited(h.handleRunFlow)).Methods(http.MethodPost)

	api.HandleFunc("/journal/lock", h.handleLockStatus).Methods(http.MethodGet)
	api.HandleFunc("/journal/lock", h.handleLock).Methods(http.MethodPost)
	api.HandleFunc("/journal/unlock", h.handleUnlock).Methods(http.MethodPost)

	journal := api.PathPrefix("/journal").Subrouter()
	journal.Use(h.requireUnlocked)
	journal.Handle("/{id}/analyze", h.rateLimited(h.handleAnalyzeJournal)).Methods(http.MethodPost)
	registerCollection(h, journal, "", h.devotion.Journal)

	api.HandleFunc("/prayers/{id}/answer", h.handleMarkAnswered).Methods(http.MethodPost)
	api.HandleFunc("/fasts/{id}/progress", h.handleFastProgress).Methods(http.MethodPut)
	api.Handle("/fasts/plan", h.rateLimited(h.handlePlanFast)).Methods(http.MethodPost)

	registerCollection(h, api, "/pearls", h.devotion.Pearls)
	registerCollection(h, api, "/prayers", h.devotion.Prayers)
	registerCollection(h, api, "/prayer-plans", h.devotion.Plans)
	registerCollection(h, api, "/insights", h.devotion.Insights)
	registerCollection(h, api, "/guidances", h.devotion.Guidances)
	registerCollection(h, api, "/articles", h.devotion.Articles)
	registerCollection(h, api, "/fasts", h.devotion.Fasts)
}

// withMetrics records every routed request under its path template
func (h *HTTPServer) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	})
}

// rateLimited rejects a user's requests beyond the configured rate
func (h *HTTPServer) rateLimited(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if user != nil && !h.limiter.Allow(user.ID) {
			endpoint := r.URL.Path
			if tmpl, err := mux.CurrentRoute(r).GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
			h.metrics.RecordRateLimited(endpoint)
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next(w, r)
	})
}

// requireUnlocked rejects journal requests without a valid unlock token
func (h *HTTPServer) requireUnlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		if err := h.locks.Check(user.ID, r.Header.Get(unlockHeader)); err != nil {
			h.writeError(w, r, err, http.StatusLocked)
			return
		}
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

// Run serves until ctx is cancelled, then shuts down gracefully
func (h *HTTPServer) Run(ctx context.Context) error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go h.limiter.run(ctx, limiterCleanupInterval, limiterMaxIdle)

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return h.Stop(shutdownCtx)
	}
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	storeStatus := map[string]interface{}{
		"status":  "running",
		"backend": h.config.Store.Backend,
	}
	if err := h.backend.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		storeStatus["status"] = "unreachable"
		storeStatus["error"] = err.Error()
	}

	components := map[string]interface{}{
		"store": storeStatus,
		"flows": map[string]interface{}{
			"status": "running",
			"count":  len(h.flows.Names()),
		},
		"journal_lock": map[string]interface{}{
			"status":          "running",
			"active_sessions": h.locks.GetActiveSessionCount(),
		},
	}
	if h.stats != nil {
		stats := h.stats.GetStats()
		components["model"] = map[string]interface{}{
			"status":          "running",
			"total_requests":  stats.TotalRequests,
			"success_rate":    stats.SuccessRate,
			"active_requests": stats.ActiveRequests,
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": components,
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	c := h.config

	// Secrets (API keys, JWT secret, password hashes) are never returned
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"http": map[string]interface{}{
			"address":       c.HTTP.Address,
			"port":          c.HTTP.Port,
			"read_timeout":  c.HTTP.ReadTimeout,
			"write_timeout": c.HTTP.WriteTimeout,
		},
		"genai": map[string]interface{}{
			"text_model":     c.GenAI.TextModel,
			"speech_model":   c.GenAI.SpeechModel,
			"voice":          c.GenAI.Voice,
			"temperature":    c.GenAI.Temperature,
			"timeout":        c.GenAI.Timeout,
			"max_retries":    c.GenAI.MaxRetries,
			"max_concurrent": c.GenAI.MaxConcurrent,
		},
		"audio": map[string]interface{}{
			"sample_rate": c.Audio.SampleRate,
			"channels":    c.Audio.Channels,
			"bit_depth":   c.Audio.BitDepth,
		},
		"store": map[string]interface{}{
			"backend":        c.Store.Backend,
			"sqlite_path":    c.Store.SQLitePath,
			"supabase_url":   c.Store.Supabase.URL,
			"supabase_table": c.Store.Supabase.Table,
		},
		"auth": map[string]interface{}{
			"reauth":         c.Auth.Reauth,
			"unlock_ttl":     c.Auth.UnlockTTL,
			"cleanup_period": c.Auth.CleanupPeriod,
		},
		"rate_limit": map[string]interface{}{
			"requests_per_second": c.RateLimit.RequestsPerSecond,
			"burst":               c.RateLimit.Burst,
		},
		"logging": map[string]interface{}{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
			"output": c.Logging.Output,
		},
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"journal_lock": map[string]interface{}{
			"active_sessions": h.locks.GetActiveSessionCount(),
		},
		"rate_limit": map[string]interface{}{
			"tracked_users": h.limiter.Len(),
		},
	}
	if h.stats != nil {
		stats["model"] = h.stats.GetStats()
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Kairo API",
		"version": serviceVersion,
		"endpoints": map[string]interface{}{
			"GET /":                               "API documentation",
			"GET /health":                         "Service health check",
			"GET /config":                         "Service configuration without secrets",
			"GET /stats":                          "Service statistics",
			"GET /metrics":                        "Prometheus metrics",
			"GET /api/v1/verses/daily":            "Verse of the day (?lang=, ?date=YYYY-MM-DD, ?random=true)",
			"GET /api/v1/flows":                   "List AI flows",
			"POST /api/v1/flows/{name}":           "Run an AI flow",
			"GET|POST /api/v1/journal/lock":       "Journal lock status, or lock the journal",
			"POST /api/v1/journal/unlock":         "Unlock the journal with the account password",
			"GET|POST /api/v1/journal":            "List or add journal entries (X-Journal-Unlock required)",
			"GET|DELETE /api/v1/journal/{id}":     "Read or delete a journal entry (X-Journal-Unlock required)",
			"POST /api/v1/journal/{id}/analyze":   "Spiritual analysis of a journal entry",
			"GET|POST /api/v1/{collection}":       "List or add records: pearls, prayers, prayer-plans, insights, guidances, articles, fasts",
			"GET|DELETE /api/v1/{collection}/{id}": "Read or delete a record",
			"POST /api/v1/prayers/{id}/answer":    "Mark a prayer request answered",
			"PUT /api/v1/fasts/{id}/progress":     "Set fast progress (0-100)",
			"POST /api/v1/fasts/plan":             "Start a fast with a generated reading plan",
		},
		"timestamp": time.Now().UTC(),
	})
}
