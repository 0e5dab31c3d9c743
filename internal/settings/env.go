package settings

import (
	"fmt"
	"strings"
)

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Environment variables that override declared values.
const (
	EnvDBServer    = "FORUM_DB_SERVER"
	EnvDBName      = "FORUM_DB_NAME"
	EnvDBUser      = "FORUM_DB_USER"
	EnvDBPassword  = "FORUM_DB_PASSWORD"
	EnvBaseURL     = "FORUM_BOARD_URL"
	EnvMaintenance = "FORUM_MAINTENANCE"
)

// ApplyEnv returns s with the FORUM_* overrides applied. Unset or blank
// variables leave the declared value alone. Values are trimmed except the
// password, which is taken as set.
func ApplyEnv(s Settings, lookup LookupFunc) (Settings, error) {
	raw := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return "", false
		}
		return value, true
	}
	get := func(key string) (string, bool) {
		value, ok := raw(key)
		return strings.TrimSpace(value), ok
	}

	if v, ok := get(EnvDBServer); ok {
		s.Database.Server = v
	}
	if v, ok := get(EnvDBName); ok {
		s.Database.Name = v
	}
	if v, ok := get(EnvDBUser); ok {
		s.Database.User = v
	}
	if v, ok := raw(EnvDBPassword); ok {
		s.Database.Password = v
	}
	if v, ok := get(EnvBaseURL); ok {
		s.Forum.BaseURL = v
	}
	if v, ok := get(EnvMaintenance); ok {
		mode, err := ParseMaintenanceMode(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvMaintenance, err)
		}
		s.Maintenance.Mode = mode
	}

	return s, nil
}
