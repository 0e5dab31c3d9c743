package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/eugenenazirov/forum-settings/internal/settings"
)

func mysqlSettings() settings.Settings {
	s := settings.Defaults()
	s.Database.Name = "dbname"
	s.Database.User = "dbuser"
	s.Database.Password = "dbpass"
	s.Database.SSIUser = "ssiuser"
	s.Database.SSIPassword = "ssipass"
	return s
}

func TestDriverMapsSMFTypes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"mysql":      DriverMySQL,
		"MySQLi":     DriverMySQL,
		"postgresql": DriverPostgres,
		"sqlite":     DriverSQLite,
	}
	for dbType, want := range cases {
		got, err := Driver(dbType)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", dbType, err)
		}
		if got != want {
			t.Fatalf("%s: expected %s, got %s", dbType, want, got)
		}
	}

	if _, err := Driver("oracle"); !errors.Is(err, ErrUnsupportedDatabase) {
		t.Fatalf("expected ErrUnsupportedDatabase, got %v", err)
	}
}

func TestNewTargetMySQL(t *testing.T) {
	t.Parallel()

	target, err := NewTarget(mysqlSettings())
	if err != nil {
		t.Fatalf("NewTarget returned error: %v", err)
	}
	if target.Driver != DriverMySQL {
		t.Fatalf("expected mysql driver, got %s", target.Driver)
	}

	cfg, err := mysql.ParseDSN(target.DSN)
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cfg.User != "dbuser" || cfg.Passwd != "dbpass" || cfg.DBName != "dbname" {
		t.Fatalf("unexpected credentials in DSN: %+v", cfg)
	}
	if cfg.Net != "tcp" || cfg.Addr != "localhost:3306" {
		t.Fatalf("expected tcp localhost:3306, got %s %s", cfg.Net, cfg.Addr)
	}
	if !strings.Contains(target.DSN, "charset=utf8") {
		t.Fatalf("expected charset in DSN, got %s", target.DSN)
	}
}

func TestNewTargetMySQLSocketAndSSI(t *testing.T) {
	t.Parallel()

	s := mysqlSettings()
	s.Database.Server = "/var/run/mysqld/mysqld.sock"

	target, err := NewTarget(s, WithSSICredentials())
	if err != nil {
		t.Fatalf("NewTarget returned error: %v", err)
	}
	cfg, err := mysql.ParseDSN(target.DSN)
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cfg.Net != "unix" || cfg.Addr != "/var/run/mysqld/mysqld.sock" {
		t.Fatalf("expected unix socket, got %s %s", cfg.Net, cfg.Addr)
	}
	if cfg.User != "ssiuser" || cfg.Passwd != "ssipass" {
		t.Fatalf("expected SSI credentials, got %s/%s", cfg.User, cfg.Passwd)
	}
}

func TestNewTargetPostgres(t *testing.T) {
	t.Parallel()

	s := mysqlSettings()
	s.Database.Type = "postgresql"
	s.Database.Server = "db.internal:6432"
	s.Database.Password = "it's secret"

	target, err := NewTarget(s)
	if err != nil {
		t.Fatalf("NewTarget returned error: %v", err)
	}
	want := `host=db.internal port=6432 dbname=dbname user=dbuser password='it\'s secret' sslmode=require client_encoding=UTF8`
	if target.DSN != want {
		t.Fatalf("expected DSN\n%s\ngot\n%s", want, target.DSN)
	}

	s.Database.Server = "localhost"
	s.Database.Password = ""
	s.Database.CharacterSet = "latin1"
	target, err = NewTarget(s)
	if err != nil {
		t.Fatalf("NewTarget returned error: %v", err)
	}
	if target.DSN != "host=localhost port=5432 dbname=dbname user=dbuser sslmode=disable" {
		t.Fatalf("unexpected local DSN %s", target.DSN)
	}
}

func TestNewTargetSQLiteRelativeToForumRoot(t *testing.T) {
	t.Parallel()

	s := settings.Defaults()
	s.Database.Type = "sqlite"
	s.Database.Name = "smf.sqlite"
	s.Paths.ForumRoot = "/srv/foro"

	target, err := NewTarget(s)
	if err != nil {
		t.Fatalf("NewTarget returned error: %v", err)
	}
	if target.DSN != "file:/srv/foro/smf.sqlite?mode=rw" {
		t.Fatalf("unexpected sqlite DSN %s", target.DSN)
	}
}

func TestProberSQLite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forum.sqlite")

	seed, err := sql.Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("open seed database: %v", err)
	}
	if _, err := seed.Exec("CREATE TABLE smf2_settings (variable TEXT PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := seed.Close(); err != nil {
		t.Fatalf("close seed database: %v", err)
	}

	s := settings.Defaults()
	s.Database.Type = "sqlite"
	s.Database.Name = "forum.sqlite"
	s.Database.TablePrefix = "smf2_"
	s.Paths.ForumRoot = dir

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prober, err := Open(s)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = prober.Close() })

	if err := prober.Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if err := prober.VerifySchema(ctx); err != nil {
		t.Fatalf("VerifySchema returned error: %v", err)
	}
	if prober.Table() != "smf2_settings" {
		t.Fatalf("unexpected table %s", prober.Table())
	}

	s.Database.TablePrefix = "other_"
	missing, err := Open(s)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = missing.Close() })

	err = missing.VerifySchema(ctx)
	if err == nil {
		t.Fatalf("expected error for missing table")
	}
	if code := ErrorCode(err); code <= 0 {
		t.Fatalf("expected sqlite error code, got %d", code)
	}
}

func TestProberSQLiteDoesNotCreateDatabase(t *testing.T) {
	s := settings.Defaults()
	s.Database.Type = "sqlite"
	s.Database.Name = filepath.Join(t.TempDir(), "absent.sqlite")

	prober, err := Open(s)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = prober.Close() })

	if err := prober.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail for a missing database file")
	}
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	if ErrorCode(nil) != 0 {
		t.Fatalf("expected 0 for nil")
	}
	if got := ErrorCode(&mysql.MySQLError{Number: 1045, Message: "access denied"}); got != 1045 {
		t.Fatalf("expected 1045, got %d", got)
	}
	if got := ErrorCode(fmt.Errorf("ping postgres database: %w", &pq.Error{Code: "28P01"})); got != -1 {
		t.Fatalf("expected -1 for postgres errors, got %d", got)
	}
	if got := ErrorCode(errors.New("boom")); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}
