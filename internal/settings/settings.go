package settings

// RedactedPlaceholder replaces non-empty secrets on every output surface.
const RedactedPlaceholder = "[REDACTED]"

// MarkerFile is the file whose presence next to the settings artifact marks
// that directory as the forum root.
const MarkerFile = "agreement.txt"

const (
	sourcesDirName = "Sources"
	cacheDirName   = "cache"
)

// Settings is the full deployment configuration of one forum installation.
type Settings struct {
	Forum       Forum       `json:"forum" yaml:"forum"`
	Maintenance Maintenance `json:"maintenance" yaml:"maintenance"`
	Database    Database    `json:"database" yaml:"database"`
	Paths       Paths       `json:"paths" yaml:"paths"`
	// LastDBError is the last recorded database error code. Zero means none.
	LastDBError int `json:"lastDbError" yaml:"lastDbError"`
}

// Forum holds the site identity.
type Forum struct {
	Name          string `json:"name" yaml:"name"`
	Language      string `json:"language" yaml:"language"`
	BaseURL       string `json:"baseUrl" yaml:"baseUrl"`
	WebmasterMail string `json:"webmasterEmail" yaml:"webmasterEmail"`
	CookieName    string `json:"cookieName" yaml:"cookieName"`
}

// Maintenance describes the availability state shown to members.
type Maintenance struct {
	Mode    MaintenanceMode `json:"mode" yaml:"mode"`
	Title   string          `json:"title" yaml:"title"`
	Message string          `json:"message" yaml:"message"`
}

// Database holds the connection parameters used by the forum engine.
type Database struct {
	Type         string `json:"type" yaml:"type"`
	Server       string `json:"server" yaml:"server"`
	Name         string `json:"name" yaml:"name"`
	User         string `json:"user" yaml:"user"`
	Password     string `json:"password" yaml:"password"`
	SSIUser      string `json:"ssiUser" yaml:"ssiUser"`
	SSIPassword  string `json:"ssiPassword" yaml:"ssiPassword"`
	TablePrefix  string `json:"tablePrefix" yaml:"tablePrefix"`
	Persistent   bool   `json:"persistent" yaml:"persistent"`
	ErrorNotify  bool   `json:"errorNotify" yaml:"errorNotify"`
	CharacterSet string `json:"characterSet" yaml:"characterSet"`
}

// Paths holds the filesystem roots of the installation.
type Paths struct {
	ForumRoot string `json:"forumRoot" yaml:"forumRoot"`
	Sources   string `json:"sources" yaml:"sources"`
	Cache     string `json:"cache" yaml:"cache"`
}

// Defaults returns the values used for keys an artifact does not declare.
func Defaults() Settings {
	return Settings{
		Forum: Forum{
			Name:       "My Community",
			Language:   "english",
			CookieName: "SMFCookie11",
		},
		Maintenance: Maintenance{
			Mode:    MaintenanceOff,
			Title:   "Maintenance Mode",
			Message: "The forum is down for maintenance. Please check back later.",
		},
		Database: Database{
			Type:         "mysql",
			Server:       "localhost",
			TablePrefix:  "smf_",
			CharacterSet: "utf8",
		},
	}
}

// SSICredentials returns the login used by server-side include integrations.
// The primary credentials are used when no SSI user is configured.
func (d Database) SSICredentials() (user, password string) {
	if d.SSIUser == "" {
		return d.User, d.Password
	}
	return d.SSIUser, d.SSIPassword
}

// Table returns name with the configured table prefix.
func (d Database) Table(name string) string {
	return d.TablePrefix + name
}

// Redacted returns a copy of s with secrets replaced by RedactedPlaceholder.
func (s Settings) Redacted() Settings {
	s.Database.Password = redact(s.Database.Password)
	s.Database.SSIPassword = redact(s.Database.SSIPassword)
	return s
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return RedactedPlaceholder
}
