package settings

import "go.uber.org/zap/zapcore"

// MarshalLogObject lets zap log the settings without exposing secrets.
func (s Settings) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("forum_name", s.Forum.Name)
	enc.AddString("language", s.Forum.Language)
	enc.AddString("base_url", s.Forum.BaseURL)
	enc.AddString("maintenance", s.Maintenance.Mode.String())
	if err := enc.AddObject("database", s.Database); err != nil {
		return err
	}
	enc.AddString("forum_root", s.Paths.ForumRoot)
	enc.AddString("sources_dir", s.Paths.Sources)
	enc.AddString("cache_dir", s.Paths.Cache)
	return nil
}

// MarshalLogObject logs the connection parameters with passwords redacted.
func (d Database) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("type", d.Type)
	enc.AddString("server", d.Server)
	enc.AddString("name", d.Name)
	enc.AddString("user", d.User)
	enc.AddString("password", redact(d.Password))
	if d.SSIUser != "" {
		enc.AddString("ssi_user", d.SSIUser)
		enc.AddString("ssi_password", redact(d.SSIPassword))
	}
	enc.AddString("prefix", d.TablePrefix)
	enc.AddBool("persistent", d.Persistent)
	enc.AddString("charset", d.CharacterSet)
	return nil
}

// MarshalLogObject logs one path resolution.
func (p PathResolution) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("declared", p.Declared)
	enc.AddString("value", p.Value)
	enc.AddBool("resolved", p.Resolved)
	enc.AddBool("fallback", p.Fallback)
	return nil
}
