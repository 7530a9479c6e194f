package web

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"weddingapp/internal/alerts"
	"weddingapp/internal/config"
	"weddingapp/internal/content"
	appLog "weddingapp/internal/log"
	"weddingapp/internal/metrics"
	"weddingapp/internal/push"
	"weddingapp/internal/rsvp"
	"weddingapp/internal/weather"
)

// Deps are the collaborators the HTTP layer serves. Tokens and
// Broadcaster are nil when Firebase is not configured.
type Deps struct {
	Config      *config.Config
	Content     *content.Content
	Alerts      *alerts.Synchronizer
	RSVP        *rsvp.Submitter
	Weather     *weather.Client
	Tokens      push.TokenStore
	Broadcaster *push.Broadcaster
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the JSON API, the embedded UI and the service worker.
type Server struct {
	deps  Deps
	cfg   *config.Config
	debug bool
	mux   *http.ServeMux
}

// embeddedStatic contains the guest UI.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(deps Deps, debug bool) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		deps:  deps,
		cfg:   deps.Config,
		debug: debug,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled for admin endpoints")
	}
	return s.basicAuthMiddleware(h)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware guards /api/admin/*. Without credentials configured
// the admin endpoints are closed entirely.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/admin/") {
			next.ServeHTTP(w, r)
			return
		}
		if !s.basicAuthEnabled() {
			writeError(w, http.StatusForbidden, "admin_disabled", "admin endpoints need basic_auth in the config")
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, s.cfg.BasicAuth.Username) || !secureCompare(p, s.cfg.BasicAuth.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Wedding Admin", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())

	s.mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	s.mux.HandleFunc("POST /api/rsvp", s.handleRSVP)
	s.mux.HandleFunc("GET /api/content", s.handleContent)
	s.mux.HandleFunc("GET /api/countdown", s.handleCountdown)
	s.mux.HandleFunc("GET /api/weather", s.handleWeather)
	s.mux.HandleFunc("GET /api/config/public", s.handlePublicConfig)
	s.mux.HandleFunc("POST /api/push/register", s.handlePushRegister)
	s.mux.HandleFunc("POST /api/push/token", s.handlePushToken)

	s.mux.HandleFunc("POST /api/admin/broadcast", s.handleBroadcast)
	s.mux.HandleFunc("POST /api/admin/alerts/refresh", s.handleAlertsRefresh)

	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET "+push.WorkerScript, s.handleServiceWorker)

	// Everything else is the embedded UI.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves the embedded files from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Unknown /api/* paths get a JSON 404, never the HTML shell.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, struct {
		Error apiError `json:"error"`
	}{Error: apiError{Code: code, Message: msg}})
}

// decodeJSON reads a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}
