// Package config provides configuration loading and defaults for pluginwatch.
package config

import "time"

// DefaultConfigDir is the default location for pluginwatch configuration.
const DefaultConfigDir = "~/.config/pluginwatch"

// DefaultDBName is the filename for the SQLite event store.
const DefaultDBName = "pluginwatch.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// DefaultServer holds the default HTTP listener settings.
var DefaultServer = Server{
	Port:            4080,
	BodyLimitBytes:  5 << 20,
	CORSOrigins:     []string{"*"},
	ShutdownTimeout: 10 * time.Second,
}

// DefaultCache holds the default response cache settings. An empty
// RedisAddr leaves caching off.
var DefaultCache = Cache{
	TTL:    5 * time.Second,
	Prefix: "pluginwatch:",
}

// DefaultLog holds the default logger settings.
var DefaultLog = Log{
	Level:      "info",
	MaxSizeMB:  100,
	MaxBackups: 3,
	MaxAgeDays: 7,
}

// DefaultWatch holds the default watcher thresholds.
var DefaultWatch = Watch{
	Interval:           30 * time.Second,
	NoiseShareWarning:  0.60,
	IngestStallPeriods: 3,
}

// MinWatchInterval is the smallest accepted polling interval.
const MinWatchInterval = 5 * time.Second
