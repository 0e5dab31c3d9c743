package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat indicates an artifact extension no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported settings file format")

// Artifact formats recognised by ReadArtifact.
const (
	FormatPHP  = "php"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Artifact is a settings file as read from disk, before resolution.
type Artifact struct {
	Path     string
	Format   string
	Settings Settings
	// Unknown lists variables or keys the reader does not map to a field.
	Unknown []string
	// Skipped lists variables assigned an expression instead of a literal.
	Skipped []string
}

// Dir is the directory holding the artifact, used to self-locate the forum root.
func (a Artifact) Dir() string {
	return filepath.Dir(a.Path)
}

// Load reads the artifact at path, applies environment overrides from lookup
// (nil skips them) and resolves the directory fields.
func Load(path string, lookup LookupFunc, opts ...ResolveOption) (Artifact, Result, error) {
	artifact, err := ReadArtifact(path)
	if err != nil {
		return Artifact{}, Result{}, err
	}

	declared := artifact.Settings
	if lookup != nil {
		declared, err = ApplyEnv(declared, lookup)
		if err != nil {
			return Artifact{}, Result{}, fmt.Errorf("apply environment overrides: %w", err)
		}
	}

	return artifact, Resolve(declared, artifact.Dir(), opts...), nil
}

// ReadArtifact reads the declared settings from a Settings.php, YAML or TOML
// file. Keys the file does not declare keep their Defaults.
func ReadArtifact(path string) (Artifact, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("resolve settings path: %w", err)
	}

	format, err := formatFor(abs)
	if err != nil {
		return Artifact{}, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return Artifact{}, fmt.Errorf("read settings file: %w", err)
	}

	artifact := Artifact{Path: abs, Format: format}
	switch format {
	case FormatPHP:
		err = decodePHP(data, &artifact)
	case FormatYAML:
		err = decodeYAML(data, &artifact)
	case FormatTOML:
		err = decodeTOML(data, &artifact)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("parse %s settings %s: %w", format, abs, err)
	}
	return artifact, nil
}

func formatFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".php":
		return FormatPHP, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// phpFields maps Settings.php variable names onto Settings fields.
var phpFields = map[string]func(*Settings, phpValue) error{
	"maintenance": func(s *Settings, v phpValue) error {
		n, err := v.asInt()
		if err != nil {
			return err
		}
		s.Maintenance.Mode, err = maintenanceFromInt(n)
		return err
	},
	"mtitle":           func(s *Settings, v phpValue) error { s.Maintenance.Title = v.asString(); return nil },
	"mmessage":         func(s *Settings, v phpValue) error { s.Maintenance.Message = v.asString(); return nil },
	"mbname":           func(s *Settings, v phpValue) error { s.Forum.Name = v.asString(); return nil },
	"language":         func(s *Settings, v phpValue) error { s.Forum.Language = v.asString(); return nil },
	"boardurl":         func(s *Settings, v phpValue) error { s.Forum.BaseURL = v.asString(); return nil },
	"webmaster_email":  func(s *Settings, v phpValue) error { s.Forum.WebmasterMail = v.asString(); return nil },
	"cookiename":       func(s *Settings, v phpValue) error { s.Forum.CookieName = v.asString(); return nil },
	"db_type":          func(s *Settings, v phpValue) error { s.Database.Type = v.asString(); return nil },
	"db_server":        func(s *Settings, v phpValue) error { s.Database.Server = v.asString(); return nil },
	"db_name":          func(s *Settings, v phpValue) error { s.Database.Name = v.asString(); return nil },
	"db_user":          func(s *Settings, v phpValue) error { s.Database.User = v.asString(); return nil },
	"db_passwd":        func(s *Settings, v phpValue) error { s.Database.Password = v.asString(); return nil },
	"ssi_db_user":      func(s *Settings, v phpValue) error { s.Database.SSIUser = v.asString(); return nil },
	"ssi_db_passwd":    func(s *Settings, v phpValue) error { s.Database.SSIPassword = v.asString(); return nil },
	"db_prefix":        func(s *Settings, v phpValue) error { s.Database.TablePrefix = v.asString(); return nil },
	"db_persist":       func(s *Settings, v phpValue) error { s.Database.Persistent = v.asBool(); return nil },
	"db_error_send":    func(s *Settings, v phpValue) error { s.Database.ErrorNotify = v.asBool(); return nil },
	"db_character_set": func(s *Settings, v phpValue) error { s.Database.CharacterSet = v.asString(); return nil },
	"boarddir":         func(s *Settings, v phpValue) error { s.Paths.ForumRoot = v.asString(); return nil },
	"sourcedir":        func(s *Settings, v phpValue) error { s.Paths.Sources = v.asString(); return nil },
	"cachedir":         func(s *Settings, v phpValue) error { s.Paths.Cache = v.asString(); return nil },
	"db_last_error": func(s *Settings, v phpValue) error {
		n, err := v.asInt()
		s.LastDBError = n
		return err
	},
}

func decodePHP(data []byte, artifact *Artifact) error {
	assigned, err := scanPHP(data)
	if err != nil {
		return err
	}

	s := Defaults()
	for name, value := range assigned.values {
		apply, ok := phpFields[name]
		if !ok {
			artifact.Unknown = append(artifact.Unknown, name)
			continue
		}
		if err := apply(&s, value); err != nil {
			return fmt.Errorf("$%s: %w", name, err)
		}
	}
	sort.Strings(artifact.Unknown)

	artifact.Settings = s
	artifact.Skipped = assigned.skipped
	return nil
}

// fileSettings is the flat key layout shared by the YAML and TOML formats.
type fileSettings struct {
	MaintenanceMode    *int    `yaml:"maintenanceMode" toml:"maintenanceMode"`
	MaintenanceTitle   *string `yaml:"maintenanceTitle" toml:"maintenanceTitle"`
	MaintenanceMessage *string `yaml:"maintenanceMessage" toml:"maintenanceMessage"`
	ForumName          *string `yaml:"forumName" toml:"forumName"`
	Language           *string `yaml:"language" toml:"language"`
	BaseURL            *string `yaml:"baseUrl" toml:"baseUrl"`
	WebmasterEmail     *string `yaml:"webmasterEmail" toml:"webmasterEmail"`
	CookieName         *string `yaml:"cookieName" toml:"cookieName"`
	DBType             *string `yaml:"dbType" toml:"dbType"`
	DBServer           *string `yaml:"dbServer" toml:"dbServer"`
	DBName             *string `yaml:"dbName" toml:"dbName"`
	DBUser             *string `yaml:"dbUser" toml:"dbUser"`
	DBPassword         *string `yaml:"dbPassword" toml:"dbPassword"`
	SSIDBUser          *string `yaml:"ssiDbUser" toml:"ssiDbUser"`
	SSIDBPassword      *string `yaml:"ssiDbPassword" toml:"ssiDbPassword"`
	TablePrefix        *string `yaml:"tablePrefix" toml:"tablePrefix"`
	DBPersistent       *bool   `yaml:"dbPersistent" toml:"dbPersistent"`
	DBErrorNotify      *bool   `yaml:"dbErrorNotify" toml:"dbErrorNotify"`
	ForumRootDir       *string `yaml:"forumRootDir" toml:"forumRootDir"`
	SourcesDir         *string `yaml:"sourcesDir" toml:"sourcesDir"`
	CacheDir           *string `yaml:"cacheDir" toml:"cacheDir"`
	DBCharacterSet     *string `yaml:"dbCharacterSet" toml:"dbCharacterSet"`
	DBLastError        *int    `yaml:"dbLastError" toml:"dbLastError"`
}

func decodeYAML(data []byte, artifact *Artifact) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	var fs fileSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return err
	}
	artifact.Unknown = unknownKeys(raw)
	return applyFileSettings(fs, artifact)
}

func decodeTOML(data []byte, artifact *Artifact) error {
	var fs fileSettings
	meta, err := toml.Decode(string(data), &fs)
	if err != nil {
		return err
	}
	for _, key := range meta.Undecoded() {
		artifact.Unknown = append(artifact.Unknown, key.String())
	}
	sort.Strings(artifact.Unknown)
	return applyFileSettings(fs, artifact)
}

var fileKeys = map[string]struct{}{
	"maintenanceMode": {}, "maintenanceTitle": {}, "maintenanceMessage": {},
	"forumName": {}, "language": {}, "baseUrl": {}, "webmasterEmail": {}, "cookieName": {},
	"dbType": {}, "dbServer": {}, "dbName": {}, "dbUser": {}, "dbPassword": {},
	"ssiDbUser": {}, "ssiDbPassword": {}, "tablePrefix": {}, "dbPersistent": {},
	"dbErrorNotify": {}, "forumRootDir": {}, "sourcesDir": {}, "cacheDir": {},
	"dbCharacterSet": {}, "dbLastError": {},
}

func unknownKeys(raw map[string]any) []string {
	var unknown []string
	for key := range raw {
		if _, ok := fileKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func applyFileSettings(fs fileSettings, artifact *Artifact) error {
	s := Defaults()

	if fs.MaintenanceMode != nil {
		mode, err := maintenanceFromInt(*fs.MaintenanceMode)
		if err != nil {
			return err
		}
		s.Maintenance.Mode = mode
	}
	setString(&s.Maintenance.Title, fs.MaintenanceTitle)
	setString(&s.Maintenance.Message, fs.MaintenanceMessage)

	setString(&s.Forum.Name, fs.ForumName)
	setString(&s.Forum.Language, fs.Language)
	setString(&s.Forum.BaseURL, fs.BaseURL)
	setString(&s.Forum.WebmasterMail, fs.WebmasterEmail)
	setString(&s.Forum.CookieName, fs.CookieName)

	setString(&s.Database.Type, fs.DBType)
	setString(&s.Database.Server, fs.DBServer)
	setString(&s.Database.Name, fs.DBName)
	setString(&s.Database.User, fs.DBUser)
	setString(&s.Database.Password, fs.DBPassword)
	setString(&s.Database.SSIUser, fs.SSIDBUser)
	setString(&s.Database.SSIPassword, fs.SSIDBPassword)
	setString(&s.Database.TablePrefix, fs.TablePrefix)
	setString(&s.Database.CharacterSet, fs.DBCharacterSet)
	if fs.DBPersistent != nil {
		s.Database.Persistent = *fs.DBPersistent
	}
	if fs.DBErrorNotify != nil {
		s.Database.ErrorNotify = *fs.DBErrorNotify
	}

	setString(&s.Paths.ForumRoot, fs.ForumRootDir)
	setString(&s.Paths.Sources, fs.SourcesDir)
	setString(&s.Paths.Cache, fs.CacheDir)

	if fs.DBLastError != nil {
		s.LastDBError = *fs.DBLastError
	}

	artifact.Settings = s
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
