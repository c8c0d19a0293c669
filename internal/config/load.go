package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const delim = "."

// Flags returns the flag set understood by Load. Flag names mirror the
// configuration keys so posflag can overlay them directly.
func Flags(name string) *pflag.FlagSet {
	def := Defaults()

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to a YAML configuration file")

	fs.String("server.addr", def.Server.Addr, "HTTP listen address")

	fs.String("database.driver", def.Database.Driver, "database driver: postgres or sqlite")
	fs.String("database.dsn", def.Database.DSN, "database connection string")
	fs.Bool("database.debug", def.Database.Debug, "log every SQL query")
	fs.Duration("database.ping_timeout", def.Database.PingTimeout, "how long to wait for the database on start")
	fs.Bool("database.purge_on_start", def.Database.PurgeOnStart, "delete expired anonymous sessions on start")

	fs.String("guest.cookie_name", def.Guest.CookieName, "guest bearer cookie name")
	fs.Bool("guest.secure", def.Guest.Secure, "send the guest cookie over HTTPS only")
	fs.Duration("guest.ttl", def.Guest.TTL, "anonymous session lifetime")
	fs.String("guest.merge_policy", def.Guest.MergePolicy, "merge on sign-in: auto or confirm")
	fs.String("guest.isolation", def.Guest.Isolation, "merge transaction isolation level")

	fs.String("signin.signing_key", def.Signin.SigningKey, "HS256 key for session tokens")
	fs.String("signin.issuer", def.Signin.Issuer, "session token issuer")
	fs.Int("signin.token_ttl_hours", def.Signin.TokenTTLHours, "session token lifetime in hours")
	fs.String("signin.cookie_name", def.Signin.CookieName, "session cookie name")
	fs.Bool("signin.hashid_ids", def.Signin.HashidIDs, "derive account ids from the email address")

	return fs
}

// Load parses args and returns the validated configuration
func Load(args []string) (*Config, error) {
	fs := Flags("zento")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return LoadFlags(fs)
}

// LoadFlags layers defaults, the file named by --config and the parsed
// flags
func LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(delim)

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(posflag.Provider(fs, delim, k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
