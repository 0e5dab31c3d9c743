package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/forum-settings/internal/api"
	"github.com/eugenenazirov/forum-settings/internal/config"
	"github.com/eugenenazirov/forum-settings/internal/database"
	"github.com/eugenenazirov/forum-settings/internal/settings"
	"github.com/eugenenazirov/forum-settings/internal/status"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	artifact settings.Artifact
	result   settings.Result
	tracker  *status.MemoryTracker
	prober   *database.Prober
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// LoadSettings reads and resolves the forum settings named by cfg, applying
// FORUM_* environment overrides, and logs how each directory was resolved.
func LoadSettings(cfg config.Config, logger *zap.Logger) (settings.Artifact, settings.Result, error) {
	artifact, result, err := settings.Load(cfg.SettingsFile, os.LookupEnv)
	if err != nil {
		return settings.Artifact{}, settings.Result{}, fmt.Errorf("load forum settings: %w", err)
	}

	logger.Info("forum settings loaded",
		zap.String("path", artifact.Path),
		zap.String("format", artifact.Format),
		zap.Object("settings", result.Settings),
	)
	if len(artifact.Unknown) > 0 {
		logger.Debug("ignoring unknown settings", zap.Strings("names", artifact.Unknown))
	}
	if len(artifact.Skipped) > 0 {
		logger.Debug("skipping non-literal settings", zap.Strings("names", artifact.Skipped))
	}
	logResolution(logger, "forum_root", result.ForumRoot)
	logResolution(logger, "sources_dir", result.Sources)
	logResolution(logger, "cache_dir", result.Cache)

	return artifact, result, nil
}

func logResolution(logger *zap.Logger, field string, p settings.PathResolution) {
	switch {
	case !p.Resolved:
		logger.Warn("directory does not exist and no fallback was found",
			zap.String("field", field), zap.Object("path", p))
	case p.Fallback:
		logger.Info("directory relocated",
			zap.String("field", field), zap.Object("path", p))
	default:
		logger.Debug("directory resolved",
			zap.String("field", field), zap.Object("path", p))
	}
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	artifact, result, err := LoadSettings(cfg, logger)
	if err != nil {
		return nil, err
	}

	tracker := status.NewMemoryTracker(result.Settings.LastDBError)

	var handlerOpts []api.HandlerOption
	var prober *database.Prober
	if cfg.ProbeDatabase {
		prober, err = database.Open(result.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare database probe: %w", err)
		}
		handlerOpts = append(handlerOpts, api.WithDatabaseProbe(prober, cfg.ProbeTimeout))
	}

	handler := api.NewHandler(result, tracker, handlerOpts...)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		artifact: artifact,
		result:   result,
		tracker:  tracker,
		prober:   prober,
		handler:  handler,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(cfg, BuildRootHandler(apiRouter, result.Settings.Forum.Name)),
	}, nil
}

// BuildRootHandler constructs the root HTTP handler: API traffic goes to
// apiHandler and "/" describes the available endpoints.
func BuildRootHandler(apiHandler http.Handler, forumName string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)

	index := indexResponse{
		Forum: forumName,
		Endpoints: []string{
			"/api/health",
			"/api/settings",
			"/api/settings/paths",
			"/api/maintenance",
		},
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(index)
	}))

	return mux
}

type indexResponse struct {
	Forum     string   `json:"forum"`
	Endpoints []string `json:"endpoints"`
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.String("forum", a.result.Settings.Forum.Name),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Result returns the resolved settings the application serves.
func (a *App) Result() settings.Result {
	return a.result
}

// Close releases the database probe, if any.
func (a *App) Close() error {
	if a.prober == nil {
		return nil
	}
	return a.prober.Close()
}
