package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/forum-settings/internal/api"
	"github.com/eugenenazirov/forum-settings/internal/application"
	"github.com/eugenenazirov/forum-settings/internal/settings"
	"github.com/eugenenazirov/forum-settings/internal/status"
)

const movedSettings = `<?php
$maintenance = 0;
$mtitle = 'Maintenance Mode';
$mmessage = 'Okay faithful users...we\'re attempting to restore an older backup of the database...news will be posted once we\'re back!';
$mbname = 'DUVAL';
$language = 'spanish_es-utf8';
$boardurl = 'http://duval.example.org/foro';
$webmaster_email = 'webmaster@example.org';
$cookiename = 'SMFCookie956';

$db_type = 'mysql';
$db_server = 'localhost';
$db_name = 'duval_foro';
$db_user = 'duval';
$db_passwd = 's3cret';
$db_prefix = 'smf_';
$db_persist = 0;
$db_error_send = 1;

$boarddir = '/home/old/public_html/foro';
$sourcedir = '/home/old/public_html/foro/Sources';
$cachedir = '/home/old/public_html/foro/cache';

$db_last_error = 1366;
if (file_exists(dirname(__FILE__) . '/install.php'))
{
	header('Location: http' . (!empty($_SERVER['HTTPS']) ? 's' : '') . '://' . (empty($_SERVER['HTTP_HOST']) ? $_SERVER['SERVER_NAME'] : $_SERVER['HTTP_HOST']) . '/install.php'); exit;
}
?>`

func writeForum(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	for _, dir := range []string{"Sources", "cache"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, settings.MarkerFile), []byte("terms"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	path := filepath.Join(root, "Settings.php")
	if err := os.WriteFile(path, []byte(movedSettings), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return root
}

func newRouter(t *testing.T, result settings.Result) http.Handler {
	t.Helper()

	handler := api.NewHandler(result, status.NewMemoryTracker(result.Settings.LastDBError))
	logger := zaptest.NewLogger(t)
	return application.BuildRootHandler(api.NewRouter(handler, logger), result.Settings.Forum.Name)
}

func getJSON(t *testing.T, handler http.Handler, target string, out any) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return rec
}

func TestMovedInstallationIsServedFromNewLocation(t *testing.T) {
	root := writeForum(t)

	_, result, err := settings.Load(filepath.Join(root, "Settings.php"), nil)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	handler := newRouter(t, result)

	var paths struct {
		ForumRoot  settings.PathResolution `json:"forumRoot"`
		Sources    settings.PathResolution `json:"sources"`
		Cache      settings.PathResolution `json:"cache"`
		Unresolved []string                `json:"unresolved"`
	}
	rec := getJSON(t, handler, "/api/settings/paths", &paths)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from paths, got %d", rec.Code)
	}
	if paths.ForumRoot.Value != root || !paths.ForumRoot.Fallback {
		t.Fatalf("expected root relocated to %s, got %+v", root, paths.ForumRoot)
	}
	if paths.Sources.Value != filepath.Join(root, "Sources") || !paths.Sources.Resolved {
		t.Fatalf("unexpected sources %+v", paths.Sources)
	}
	if paths.Cache.Value != filepath.Join(root, "cache") || !paths.Cache.Resolved {
		t.Fatalf("unexpected cache %+v", paths.Cache)
	}
	if len(paths.Unresolved) != 0 {
		t.Fatalf("expected every path resolved, got %v", paths.Unresolved)
	}

	rec = getJSON(t, handler, "/api/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from settings, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "s3cret") {
		t.Fatalf("password leaked: %s", rec.Body.String())
	}

	var maintenance struct {
		ModeName string `json:"modeName"`
		Message  string `json:"message"`
	}
	getJSON(t, handler, "/api/maintenance", &maintenance)
	if maintenance.ModeName != "off" {
		t.Fatalf("expected maintenance off, got %s", maintenance.ModeName)
	}
	if !strings.Contains(maintenance.Message, "we're attempting") {
		t.Fatalf("expected unescaped message, got %q", maintenance.Message)
	}

	var index struct {
		Forum     string   `json:"forum"`
		Endpoints []string `json:"endpoints"`
	}
	getJSON(t, handler, "/", &index)
	if index.Forum != "DUVAL" || len(index.Endpoints) == 0 {
		t.Fatalf("unexpected index %+v", index)
	}
}

func TestHealthIgnoresDeclaredLastError(t *testing.T) {
	root := writeForum(t)

	_, result, err := settings.Load(filepath.Join(root, "Settings.php"), nil)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if result.Settings.LastDBError != 1366 {
		t.Fatalf("expected declared last error 1366, got %d", result.Settings.LastDBError)
	}

	handler := newRouter(t, result)
	rec := getJSON(t, handler, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without a database probe, got %d", rec.Code)
	}
}

func TestEnvironmentOverridesReachTheAPI(t *testing.T) {
	root := writeForum(t)

	env := map[string]string{
		settings.EnvMaintenance: "lockout",
		settings.EnvDBPassword:  "rotated",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	_, result, err := settings.Load(filepath.Join(root, "Settings.php"), lookup)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if result.Settings.Database.Password != "rotated" {
		t.Fatalf("expected overridden password")
	}

	handler := newRouter(t, result)

	var maintenance struct {
		Mode int `json:"mode"`
	}
	getJSON(t, handler, "/api/maintenance", &maintenance)
	if maintenance.Mode != int(settings.MaintenanceLockout) {
		t.Fatalf("expected lockout, got %d", maintenance.Mode)
	}

	rec := getJSON(t, handler, "/api/settings", nil)
	if strings.Contains(rec.Body.String(), "rotated") {
		t.Fatalf("overridden password leaked: %s", rec.Body.String())
	}
}
