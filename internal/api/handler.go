package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eugenenazirov/forum-settings/internal/database"
	"github.com/eugenenazirov/forum-settings/internal/settings"
	"github.com/eugenenazirov/forum-settings/internal/status"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const defaultProbeTimeout = 3 * time.Second

// Pinger checks database connectivity. *database.Prober satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the resolved settings. The settings never change after
// construction; only the database status is updated by health checks.
type Handler struct {
	result  settings.Result
	tracker status.Tracker

	pinger       Pinger
	probeTimeout time.Duration

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithDatabaseProbe makes the health endpoint ping the database.
func WithDatabaseProbe(p Pinger, timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		h.pinger = p
		if timeout > 0 {
			h.probeTimeout = timeout
		}
	}
}

// NewHandler constructs a Handler over an already resolved configuration.
func NewHandler(result settings.Result, tracker status.Tracker, opts ...HandlerOption) *Handler {
	h := &Handler{
		result:       result,
		tracker:      tracker,
		probeTimeout: defaultProbeTimeout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	code := http.StatusOK

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.probeTimeout)
		err := h.pinger.Ping(ctx)
		cancel()

		dbStatus := "ok"
		if err != nil {
			h.tracker.RecordDatabaseError(database.ErrorCode(err), h.clock())
			dbStatus = "unavailable"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			h.tracker.ClearDatabaseError()
		}

		last := h.tracker.LastDatabaseError()
		resp.Database = &databaseHealth{
			Status:        dbStatus,
			LastErrorCode: last.Code,
		}
		if !last.At.IsZero() {
			at := last.At
			resp.Database.LastErrorAt = &at
		}
	}

	writeJSON(w, code, resp)
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, h.result.Settings.Redacted())
}

func (h *Handler) handleGetPaths(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := pathsResponse{
		ForumRoot:  h.result.ForumRoot,
		Sources:    h.result.Sources,
		Cache:      h.result.Cache,
		Unresolved: h.result.Unresolved(),
	}
	if resp.Unresolved == nil {
		resp.Unresolved = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetMaintenance(w http.ResponseWriter, r *http.Request) {
	_ = r
	m := h.result.Settings.Maintenance
	resp := maintenanceResponse{
		Mode:     int(m.Mode),
		ModeName: m.Mode.String(),
		Title:    m.Title,
		Message:  m.Message,
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Database  *databaseHealth `json:"database,omitempty"`
}

type databaseHealth struct {
	Status        string     `json:"status"`
	LastErrorCode int        `json:"lastErrorCode"`
	LastErrorAt   *time.Time `json:"lastErrorAt,omitempty"`
}

type pathsResponse struct {
	ForumRoot  settings.PathResolution `json:"forumRoot"`
	Sources    settings.PathResolution `json:"sources"`
	Cache      settings.PathResolution `json:"cache"`
	Unresolved []string                `json:"unresolved"`
}

type maintenanceResponse struct {
	Mode     int    `json:"mode"`
	ModeName string `json:"modeName"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}
