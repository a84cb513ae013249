// Package httpapi exposes the backend over HTTP: the teacher-facing REST
// reads, the agent ingestion endpoints, command forwarding to agents, and
// the WebSocket upgrade endpoints for the hub and the screen relay.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/classwatch/classwatch/config"
	"github.com/classwatch/classwatch/hub"
	"github.com/classwatch/classwatch/internal/logctx"
	"github.com/classwatch/classwatch/relay"
	"github.com/classwatch/classwatch/store"
)

// agentRequestTimeout bounds every forwarded command to a student agent.
const agentRequestTimeout = 5 * time.Second

var _ http.Handler = (*Handler)(nil)

// Handler is the backend's HTTP surface.
type Handler struct {
	log     *slog.Logger
	mux     *http.ServeMux
	store   *store.Store
	relay   *relay.Relay
	hub     *hub.Hub
	cfg     atomic.Pointer[config.Config]
	agent   *http.Client
	started time.Time

	upgrader websocket.Upgrader
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithAgentClient replaces the HTTP client used to reach student agents.
func WithAgentClient(c *http.Client) Option {
	return func(h *Handler) { h.agent = c }
}

// New builds the Handler and its routing table.
func New(cfg config.Config, st *store.Store, rl *relay.Relay, hb *hub.Hub, opts ...Option) *Handler {
	h := &Handler{
		log:     slog.Default(),
		store:   st,
		relay:   rl,
		hub:     hb,
		agent:   &http.Client{Timeout: agentRequestTimeout},
		started: time.Now().UTC(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The dashboard and agents live on the classroom LAN; origin
			// checks mirror the permissive CORS policy on /api.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = slog.New(logctx.Handler{Handler: h.log.Handler()})
	h.cfg.Store(&cfg)

	mux := http.NewServeMux()

	// Teacher-facing reads.
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/info", h.handleInfo)
	mux.HandleFunc("GET /api/config", h.handleConfig)
	mux.HandleFunc("GET /api/violations", h.handleViolations)
	mux.HandleFunc("GET /api/students", h.handleListStudents)
	mux.HandleFunc("GET /api/students/active", h.handleListActive)
	mux.HandleFunc("GET /api/students/{hostname}", h.handleStudentDetail)
	mux.HandleFunc("GET /api/screen/students", h.handleScreenStudents)

	// Commands forwarded to student agents.
	mux.HandleFunc("POST /api/students/{hostname}/lock", h.handleLockStudent)
	mux.HandleFunc("POST /api/students/{hostname}/open-url", h.handleOpenURL)
	mux.HandleFunc("POST /api/broadcast/open-url", h.handleBroadcastOpenURL)

	// Agent data ingestion.
	mux.HandleFunc("POST /api/agent/heartbeat", h.handleHeartbeat)
	mux.HandleFunc("POST /api/agent/screenshot", h.handleScreenshot)
	mux.HandleFunc("POST /api/agent/notification", h.handleNotification)
	mux.HandleFunc("POST /api/agent/apps", h.handleApps)
	mux.HandleFunc("POST /api/agent/violation", h.handleViolation)

	// WebSocket endpoints.
	mux.HandleFunc("GET /ws", h.handleHubWS)
	mux.HandleFunc("GET /ws/screen", h.handleStudentWS)
	mux.HandleFunc("GET /ws/screen/view", h.handleViewerWS)

	// Dashboard static files.
	if dir := cfg.FrontendDir; dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
	}

	h.mux = mux
	return h
}

// SetConfig swaps the live configuration; wired to the config file watcher.
func (h *Handler) SetConfig(cfg config.Config) {
	h.cfg.Store(&cfg)
}

func (h *Handler) config() config.Config {
	return *h.cfg.Load()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
	})

	// The original backend runs with a permissive CORS layer.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError emits a minimal JSON error body: {"error":"<reason>"}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
