package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/eugenenazirov/forum-settings/internal/settings"
)

// ErrUnsupportedDatabase indicates a db_type with no registered driver.
var ErrUnsupportedDatabase = errors.New("unsupported database type")

// Driver names registered with database/sql.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const (
	defaultMySQLPort    = "3306"
	defaultPostgresPort = "5432"
	settingsTable       = "settings"
)

// Target is a driver name plus the DSN to hand to sql.Open.
type Target struct {
	Driver string
	DSN    string
}

// Option configures Open.
type Option func(*options)

type options struct {
	ssi bool
}

// WithSSICredentials connects with the server-side include login instead of
// the primary one.
func WithSSICredentials() Option {
	return func(o *options) {
		o.ssi = true
	}
}

// Driver maps an SMF db_type onto a database/sql driver name.
func Driver(dbType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "mysql", "mysqli":
		return DriverMySQL, nil
	case "postgresql", "postgres":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDatabase, dbType)
	}
}

// NewTarget builds the connection target for s. Relative SQLite database
// names are taken relative to the forum root.
func NewTarget(s settings.Settings, opts ...Option) (Target, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	driver, err := Driver(s.Database.Type)
	if err != nil {
		return Target{}, err
	}

	user, password := s.Database.User, s.Database.Password
	if o.ssi {
		user, password = s.Database.SSICredentials()
	}

	var dsn string
	switch driver {
	case DriverMySQL:
		dsn = mysqlDSN(s.Database, user, password)
	case DriverPostgres:
		dsn = postgresDSN(s.Database, user, password)
	case DriverSQLite:
		dsn = sqliteDSN(s.Database, s.Paths.ForumRoot)
	}
	return Target{Driver: driver, DSN: dsn}, nil
}

func mysqlDSN(db settings.Database, user, password string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = db.Name
	if strings.HasPrefix(db.Server, "/") {
		cfg.Net = "unix"
		cfg.Addr = db.Server
	} else {
		cfg.Net = "tcp"
		cfg.Addr = withDefaultPort(db.Server, defaultMySQLPort)
	}
	dsn := cfg.FormatDSN()
	// charset must stay a DSN parameter; in Params it becomes a SET statement.
	if db.CharacterSet != "" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "charset=" + url.QueryEscape(db.CharacterSet)
	}
	return dsn
}

func postgresDSN(db settings.Database, user, password string) string {
	host, port := db.Server, defaultPostgresPort
	if h, p, err := net.SplitHostPort(db.Server); err == nil {
		host, port = h, p
	}

	sslMode := "require"
	if isLocalHost(host) {
		sslMode = "disable"
	}

	parts := []string{
		"host=" + quoteConnValue(host),
		"port=" + quoteConnValue(port),
		"dbname=" + quoteConnValue(db.Name),
		"user=" + quoteConnValue(user),
	}
	if password != "" {
		parts = append(parts, "password="+quoteConnValue(password))
	}
	parts = append(parts, "sslmode="+sslMode)
	// lib/pq only speaks UTF8 on the wire.
	if strings.EqualFold(db.CharacterSet, "utf8") {
		parts = append(parts, "client_encoding=UTF8")
	}
	return strings.Join(parts, " ")
}

// sqliteDSN opens the database read-write without creating it.
func sqliteDSN(db settings.Database, forumRoot string) string {
	path := db.Name
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(forumRoot, path)
	}
	return "file:" + path + "?mode=rw"
}

func withDefaultPort(server, port string) string {
	if server == "" {
		server = "localhost"
	}
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, port)
}

func isLocalHost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasPrefix(host, "/")
}

// quoteConnValue quotes a libpq key/value connection string value.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Prober checks that the configured database is reachable.
type Prober struct {
	db     *sql.DB
	driver string
	table  string
}

// Open prepares a Prober for s. No connection is made until Ping.
func Open(s settings.Settings, opts ...Option) (*Prober, error) {
	target, err := NewTarget(s, opts...)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", target.Driver, err)
	}

	db.SetMaxOpenConns(2)
	if s.Database.Persistent {
		db.SetMaxIdleConns(2)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxIdleConns(0)
	}

	return &Prober{
		db:     db,
		driver: target.Driver,
		table:  s.Database.Table(settingsTable),
	}, nil
}

// Ping verifies a connection can be established.
func (p *Prober) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s database: %w", p.driver, err)
	}
	return nil
}

// VerifySchema checks that the prefixed settings table can be queried.
func (p *Prober) VerifySchema(ctx context.Context) error {
	query := "SELECT 1 FROM " + p.quoteIdentifier(p.table) + " LIMIT 1"
	var one int
	err := p.db.QueryRowContext(ctx, query).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("query %s: %w", p.table, err)
	}
	return nil
}

// Table is the prefixed settings table the schema check reads.
func (p *Prober) Table() string {
	return p.table
}

// Close releases the connection pool.
func (p *Prober) Close() error {
	return p.db.Close()
}

func (p *Prober) quoteIdentifier(name string) string {
	switch p.driver {
	case DriverPostgres:
		return pq.QuoteIdentifier(name)
	case DriverMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// ErrorCode maps a database error onto the integer code recorded as the last
// database error: the MySQL error number, the SQLite extended result code,
// -1 for any other failure and 0 for nil. PostgreSQL reports alphanumeric
// SQLSTATE codes (*pq.Error), so its failures are recorded as -1.
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return int(mysqlErr.Number)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return int(sqliteErr.ExtendedCode)
	}

	return -1
}
