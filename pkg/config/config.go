// Package config loads server settings from defaults, a TOML file, the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAddr           = "localhost:8080"
	DefaultDriver         = "sqlite3"
	DefaultDSN            = "todosync.sqlite3"
	DefaultIdentityHeader = "X-User-Email"
	DefaultConfigFile     = "todosync.toml"
	DefaultSendBuffer     = 64
	DefaultPingInterval   = 30 * time.Second
	DefaultShutdown       = 10 * time.Second
)

type Config struct {
	Addr string `toml:"addr"`
	// EnforceListOwner restricts list edit and delete to the owner.
	EnforceListOwner bool          `toml:"enforce_list_owner"`
	ShutdownTimeout  time.Duration `toml:"shutdown_timeout"`

	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Hub      HubConfig      `toml:"hub"`
	Log      LogConfig      `toml:"log"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type AuthConfig struct {
	// JWTSecret enables HS256 bearer tokens. When empty the identity header is trusted.
	JWTSecret      string `toml:"jwt_secret"`
	IdentityHeader string `toml:"identity_header"`
}

type HubConfig struct {
	SendBuffer   int           `toml:"send_buffer"`
	PingInterval time.Duration `toml:"ping_interval"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func setDefaults(cfg *Config) {
	cfg.Addr = DefaultAddr
	cfg.ShutdownTimeout = DefaultShutdown
	cfg.Database.Driver = DefaultDriver
	cfg.Database.DSN = DefaultDSN
	cfg.Auth.IdentityHeader = DefaultIdentityHeader
	cfg.Hub.SendBuffer = DefaultSendBuffer
	cfg.Hub.PingInterval = DefaultPingInterval
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
}

// Load resolves configuration in priority order:
// 1. Defaults
// 2. Config file (-config flag, TODOSYNC_CONFIG, or todosync.toml in the working directory)
// 3. Environment variables
// 4. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	f := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if path, explicit := configPath(f.configFile); path != "" {
		if err := loadConfigFile(cfg, path, explicit); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	applyFlags(cfg, fs, f)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configPath(flagValue string) (string, bool) {
	if flagValue != "" {
		return flagValue, true
	}
	if v := os.Getenv("TODOSYNC_CONFIG"); v != "" {
		return v, true
	}
	return DefaultConfigFile, false
}

// loadConfigFile decodes path over cfg. A missing default file is not an error.
func loadConfigFile(cfg *Config, path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return err
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys: %v", undecoded)
	}
	return nil
}

// Validate checks values that would otherwise fail later at start-up.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn must not be empty")
	}
	if c.Auth.JWTSecret == "" && c.Auth.IdentityHeader == "" {
		return errors.New("either auth.jwt_secret or auth.identity_header must be set")
	}
	if c.Hub.SendBuffer <= 0 {
		return fmt.Errorf("hub.send_buffer must be positive, got %d", c.Hub.SendBuffer)
	}
	if c.Hub.PingInterval <= 0 {
		return fmt.Errorf("hub.ping_interval must be positive, got %s", c.Hub.PingInterval)
	}
	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}
