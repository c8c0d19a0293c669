// Package config loads the zento server configuration. Values are layered:
// struct defaults, then an optional YAML file, then command line flags.
package config

import (
	"database/sql"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var cookieName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Config struct {
	Server   Server   `koanf:"server" json:"server"`
	Database Database `koanf:"database" json:"database"`
	Guest    Guest    `koanf:"guest" json:"guest"`
	Signin   Signin   `koanf:"signin" json:"signin"`
}

type Server struct {
	Addr string `koanf:"addr" json:"addr"`
}

type Database struct {
	Driver       string        `koanf:"driver" json:"driver"`
	DSN          string        `koanf:"dsn" json:"-"`
	Debug        bool          `koanf:"debug" json:"debug"`
	PingTimeout  time.Duration `koanf:"ping_timeout" json:"ping_timeout"`
	PurgeOnStart bool          `koanf:"purge_on_start" json:"purge_on_start"`
}

// Getters for the persistence client

func (d Database) GetDebug() bool                { return d.Debug }
func (d Database) GetDriver() string             { return d.Driver }
func (d Database) GetServer() string             { return d.DSN }
func (d Database) GetDSN() string                { return d.DSN }
func (d Database) GetPingTimeout() time.Duration { return d.PingTimeout }
func (d Database) GetOtelIdentifier() string     { return "zento" }

type Guest struct {
	CookieName  string        `koanf:"cookie_name" json:"cookie_name"`
	Secure      bool          `koanf:"secure" json:"secure"`
	TTL         time.Duration `koanf:"ttl" json:"ttl"`
	MergePolicy string        `koanf:"merge_policy" json:"merge_policy"`
	Isolation   string        `koanf:"isolation" json:"isolation"`
}

type Signin struct {
	SigningKey    string `koanf:"signing_key" json:"-"`
	Issuer        string `koanf:"issuer" json:"issuer"`
	TokenTTLHours int    `koanf:"token_ttl_hours" json:"token_ttl_hours"`
	CookieName    string `koanf:"cookie_name" json:"cookie_name"`
	HashidIDs     bool   `koanf:"hashid_ids" json:"hashid_ids"`
}

// Defaults is safe for local development only. The signing key must be
// overridden anywhere else.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr: ":8978",
		},
		Database: Database{
			Driver:      DriverSQLite,
			DSN:         "file:zento.db?cache=shared",
			PingTimeout: 5 * time.Second,
		},
		Guest: Guest{
			CookieName:  "zento_anon",
			Secure:      true,
			TTL:         180 * 24 * time.Hour,
			MergePolicy: "auto",
			Isolation:   "serializable",
		},
		Signin: Signin{
			SigningKey:    "zento-development-signing-key",
			Issuer:        "zento",
			TokenTTLHours: 24,
			CookieName:    "zento_session",
		},
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Database),
		validation.Field(&c.Guest),
		validation.Field(&c.Signin),
	)
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
	)
}

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverPostgres, DriverSQLite)),
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.PingTimeout, validation.Required),
	)
}

func (g Guest) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.CookieName, validation.Required, validation.Match(cookieName)),
		validation.Field(&g.TTL, validation.Required, validation.Min(time.Hour)),
		validation.Field(&g.MergePolicy, validation.Required, validation.In("auto", "confirm")),
		validation.Field(&g.Isolation, validation.In("default", "read_committed", "repeatable_read", "serializable")),
	)
}

func (s Signin) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&s.Issuer, validation.Required),
		validation.Field(&s.TokenTTLHours, validation.Required, validation.Min(1)),
		validation.Field(&s.CookieName, validation.Required, validation.Match(cookieName)),
	)
}

// IsolationLevel maps the configured name to a sql isolation level
func (g Guest) IsolationLevel() sql.IsolationLevel {
	switch g.Isolation {
	case "read_committed":
		return sql.LevelReadCommitted
	case "repeatable_read":
		return sql.LevelRepeatableRead
	case "default":
		return sql.LevelDefault
	default:
		return sql.LevelSerializable
	}
}

func (s Signin) TokenTTL() time.Duration {
	return time.Duration(s.TokenTTLHours) * time.Hour
}
