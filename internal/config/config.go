package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level pluginwatch configuration.
type Config struct {
	Server Server `mapstructure:"server" yaml:"server"`
	Auth   Auth   `mapstructure:"auth" yaml:"auth"`
	Store  Store  `mapstructure:"store" yaml:"store"`
	Cache  Cache  `mapstructure:"cache" yaml:"cache"`
	Log    Log    `mapstructure:"log" yaml:"log"`
	Watch  Watch  `mapstructure:"watch" yaml:"watch"`
}

// Server defines the HTTP listener.
type Server struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	StaticDir       string        `mapstructure:"static_dir" yaml:"static_dir"`
	BodyLimitBytes  int64         `mapstructure:"body_limit_bytes" yaml:"body_limit_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Auth holds the ingest token and the dashboard Basic credentials.
type Auth struct {
	IngestToken         string `mapstructure:"ingest_token" yaml:"ingest_token"`
	IngestTokenRequired bool   `mapstructure:"ingest_token_required" yaml:"ingest_token_required"`
	BasicUser           string `mapstructure:"basic_user" yaml:"basic_user"`
	BasicPass           string `mapstructure:"basic_pass" yaml:"basic_pass"`
}

// ReadGateEnabled reports whether both Basic credentials are set.
func (a Auth) ReadGateEnabled() bool {
	return a.BasicUser != "" && a.BasicPass != ""
}

// Store locates the SQLite event store.
type Store struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Cache configures the optional redis response cache.
type Cache struct {
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Prefix        string        `mapstructure:"prefix" yaml:"prefix"`
}

// Enabled reports whether a redis address is configured.
func (c Cache) Enabled() bool {
	return c.RedisAddr != ""
}

// Log configures the structured logger.
type Log struct {
	Level       string `mapstructure:"level" yaml:"level"`
	File        string `mapstructure:"file" yaml:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Watch defines watcher polling and alert thresholds.
type Watch struct {
	Interval           time.Duration `mapstructure:"interval" yaml:"interval"`
	NoiseShareWarning  float64       `mapstructure:"noise_share_warning" yaml:"noise_share_warning"`
	IngestStallPeriods int           `mapstructure:"ingest_stall_periods" yaml:"ingest_stall_periods"`
}

// envBindings maps config keys to the environment variables the service
// has always been deployed with.
var envBindings = map[string][]string{
	"server.port":                {"PORT"},
	"server.static_dir":          {"PLUGINWATCH_STATIC_DIR"},
	"auth.ingest_token":          {"ANALYTICS_INGEST_TOKEN"},
	"auth.ingest_token_required": {"ANALYTICS_INGEST_TOKEN_REQUIRED"},
	"auth.basic_user":            {"DASHBOARD_BASIC_AUTH_USER"},
	"auth.basic_pass":            {"DASHBOARD_BASIC_AUTH_PASS"},
	"store.path":                 {"PLUGINWATCH_DB_PATH"},
	"cache.redis_addr":           {"PLUGINWATCH_REDIS_ADDR", "REDIS_ADDR"},
	"cache.redis_password":       {"PLUGINWATCH_REDIS_PASSWORD"},
	"log.level":                  {"PLUGINWATCH_LOG_LEVEL"},
	"log.file":                   {"PLUGINWATCH_LOG_FILE"},
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultServer.Host)
	v.SetDefault("server.port", DefaultServer.Port)
	v.SetDefault("server.static_dir", DefaultServer.StaticDir)
	v.SetDefault("server.body_limit_bytes", DefaultServer.BodyLimitBytes)
	v.SetDefault("server.cors_origins", DefaultServer.CORSOrigins)
	v.SetDefault("server.shutdown_timeout", DefaultServer.ShutdownTimeout)
	v.SetDefault("auth.ingest_token", "")
	v.SetDefault("auth.ingest_token_required", false)
	v.SetDefault("auth.basic_user", "")
	v.SetDefault("auth.basic_pass", "")
	v.SetDefault("store.path", filepath.Join(DefaultConfigDir, DefaultDBName))
	v.SetDefault("cache.redis_addr", DefaultCache.RedisAddr)
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", DefaultCache.RedisDB)
	v.SetDefault("cache.ttl", DefaultCache.TTL)
	v.SetDefault("cache.prefix", DefaultCache.Prefix)
	v.SetDefault("log.level", DefaultLog.Level)
	v.SetDefault("log.file", DefaultLog.File)
	v.SetDefault("log.max_size_mb", DefaultLog.MaxSizeMB)
	v.SetDefault("log.max_backups", DefaultLog.MaxBackups)
	v.SetDefault("log.max_age_days", DefaultLog.MaxAgeDays)
	v.SetDefault("log.development", DefaultLog.Development)
	v.SetDefault("watch.interval", DefaultWatch.Interval)
	v.SetDefault("watch.noise_share_warning", DefaultWatch.NoiseShareWarning)
	v.SetDefault("watch.ingest_stall_periods", DefaultWatch.IngestStallPeriods)
}

// Load reads configuration from the given path (or the default location),
// overlays environment variables and returns a Config with all defaults
// applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(expandPath(DefaultConfigDir))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Auth.IngestToken = strings.TrimSpace(cfg.Auth.IngestToken)
	cfg.Auth.BasicUser = strings.TrimSpace(cfg.Auth.BasicUser)
	cfg.Auth.BasicPass = strings.TrimSpace(cfg.Auth.BasicPass)
	cfg.Store.Path = expandPath(cfg.Store.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Server.StaticDir = expandPath(cfg.Server.StaticDir)

	return &cfg, nil
}

// Validate checks values that would otherwise fail late at listen or
// poll time.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.BodyLimitBytes <= 0 {
		return fmt.Errorf("server.body_limit_bytes must be positive")
	}
	if c.Watch.Interval < MinWatchInterval {
		return fmt.Errorf("watch.interval must be at least %s", MinWatchInterval)
	}
	return nil
}

// Warnings lists settings that are accepted but probably not intended.
func (c *Config) Warnings() []string {
	var warnings []string
	if (c.Auth.BasicUser == "") != (c.Auth.BasicPass == "") {
		warnings = append(warnings, "only one of auth.basic_user / auth.basic_pass is set; dashboard read gate stays open")
	}
	if c.Auth.IngestTokenRequired && c.Auth.IngestToken == "" {
		warnings = append(warnings, "auth.ingest_token_required is set without auth.ingest_token; ingest gate stays open")
	}
	return warnings
}

// WriteDefault writes a starter YAML config to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	path = expandPath(path)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	cfg := Config{
		Server: DefaultServer,
		Store:  Store{Path: filepath.Join(DefaultConfigDir, DefaultDBName)},
		Cache:  DefaultCache,
		Log:    DefaultLog,
		Watch:  DefaultWatch,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// DBPath returns the default full path to the SQLite database.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
