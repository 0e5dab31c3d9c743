package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/forum-settings/internal/application"
	"github.com/eugenenazirov/forum-settings/internal/config"
	"github.com/eugenenazirov/forum-settings/internal/database"
	"github.com/eugenenazirov/forum-settings/internal/logging"
	"github.com/eugenenazirov/forum-settings/internal/settings"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("forum-settings", "Forum settings loader - resolves and serves the deployment settings of an SMF installation")
	configFile := kingpinApp.Flag("config", "Path to YAML service configuration file").String()
	settingsFile := kingpinApp.Flag("settings", "Path to the forum settings (Settings.php, .yaml or .toml)").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()

	serveCmd := kingpinApp.Command("serve", "Serve the resolved settings over HTTP").Default()
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()
	var probeSet bool
	probeDatabase := serveCmd.Flag("probe-database", "Ping the database on health checks").IsSetByUser(&probeSet).Bool()

	showCmd := kingpinApp.Command("show", "Print the resolved settings with secrets redacted")

	checkCmd := kingpinApp.Command("check", "Probe the configured database and its settings table")
	checkSSI := checkCmd.Flag("ssi", "Connect with the SSI credentials").Bool()
	checkTimeout := checkCmd.Flag("timeout", "Probe timeout").Default("5s").Duration()

	command := kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *settingsFile != "" {
		overrides.SettingsFile = settingsFile
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *port != "" {
		overrides.Port = port
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	if probeSet {
		overrides.ProbeDatabase = probeDatabase
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch command {
	case showCmd.FullCommand():
		artifact, result, err := application.LoadSettings(cfg, logger)
		if err != nil {
			logger.Fatal("failed to load settings", zap.Error(err))
		}
		if err := writeReport(os.Stdout, artifact, result); err != nil {
			logger.Fatal("failed to write report", zap.Error(err))
		}

	case checkCmd.FullCommand():
		_, result, err := application.LoadSettings(cfg, logger)
		if err != nil {
			logger.Fatal("failed to load settings", zap.Error(err))
		}
		var opts []database.Option
		if *checkSSI {
			opts = append(opts, database.WithSSICredentials())
		}
		if err := checkDatabase(result.Settings, *checkTimeout, logger, opts...); err != nil {
			logger.Error("database check failed",
				zap.Error(err),
				zap.Int("error_code", database.ErrorCode(err)),
			)
			_ = logger.Sync()
			os.Exit(1)
		}

	default:
		app, err := application.New(cfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize application", zap.Error(err))
		}
		defer func() {
			_ = app.Close()
		}()

		if err := app.Start(); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}

		shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	}
}

// report is what `show` prints.
type report struct {
	Artifact   string                `yaml:"artifact"`
	Format     string                `yaml:"format"`
	Settings   settings.Settings     `yaml:"settings"`
	Paths      map[string]pathReport `yaml:"paths"`
	Unknown    []string              `yaml:"unknown,omitempty"`
	Skipped    []string              `yaml:"skipped,omitempty"`
	Unresolved []string              `yaml:"unresolved,omitempty"`
}

type pathReport struct {
	settings.PathResolution `yaml:",inline"`
	Outcome                 string `yaml:"outcome"`
}

func outcome(p settings.PathResolution) string {
	switch {
	case !p.Resolved:
		return "missing"
	case p.Fallback:
		return "fallback"
	default:
		return "declared"
	}
}

func writeReport(w io.Writer, artifact settings.Artifact, result settings.Result) error {
	out := report{
		Artifact: artifact.Path,
		Format:   artifact.Format,
		Settings: result.Settings.Redacted(),
		Paths: map[string]pathReport{
			"forumRoot": {result.ForumRoot, outcome(result.ForumRoot)},
			"sources":   {result.Sources, outcome(result.Sources)},
			"cache":     {result.Cache, outcome(result.Cache)},
		},
		Unknown:    artifact.Unknown,
		Skipped:    artifact.Skipped,
		Unresolved: result.Unresolved(),
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

func checkDatabase(s settings.Settings, timeout time.Duration, logger *zap.Logger, opts ...database.Option) error {
	prober, err := database.Open(s, opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = prober.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := prober.Ping(ctx); err != nil {
		return err
	}
	if err := prober.VerifySchema(ctx); err != nil {
		return err
	}

	logger.Info("database check passed",
		zap.Object("database", s.Database),
		zap.String("table", prober.Table()),
	)
	return nil
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
