// Package conf holds the engine's configuration surface: a TOML file
// decoded with github.com/shafreeck/toml, then overlaid with
// environment/flag values via github.com/shafreeck/configo so an
// operator can override a single knob without editing the file.
package conf

import (
	"time"

	"github.com/shafreeck/configo"
	"github.com/shafreeck/toml"
)

// Hash carries the hash field expiration engine's tunables.
type Hash struct {
	MaxListpackEntries     int           `toml:"hash-max-listpack-entries" cfg:"hash.max-listpack-entries"`
	MaxListpackValue       int           `toml:"hash-max-listpack-value" cfg:"hash.max-listpack-value"`
	LazyExpireDisabled     bool          `toml:"lazy-expire-disabled" cfg:"hash.lazy-expire-disabled"`
	ActiveExpireQuota      int           `toml:"active-expire-quota-per-cycle" cfg:"hash.active-expire-quota-per-cycle"`
	ActiveExpireInterval   time.Duration `toml:"active-expire-interval" cfg:"hash.active-expire-interval"`
	NewExpireDiffThreshold int64         `toml:"hash-new-expire-diff-threshold" cfg:"hash.new-expire-diff-threshold"`
	BucketPrecisionMs      int64         `toml:"bucket-precision-ms" cfg:"hash.bucket-precision-ms"`
	PropagateRetries       int           `toml:"propagate-retries" cfg:"hash.propagate-retries"`
}

// Server is the listen/status surface.
type Server struct {
	Listen     string `toml:"listen" cfg:"server.listen"`
	StatusAddr string `toml:"status-listen" cfg:"server.status-listen"`
}

// Log carries the logging knobs (file path + rotation, backed
// by arthurkiller/rollingWriter).
type Log struct {
	Level     string `toml:"level" cfg:"log.level"`
	File      string `toml:"file" cfg:"log.file"`
	MaxSizeMB int    `toml:"max-size-mb" cfg:"log.max-size-mb"`
}

// AppLog is the append-log sink's backing store (db/applog.go, a bbolt
// file), named explicitly in config so an operator can relocate it
// without touching code.
type AppLog struct {
	Path string `toml:"path" cfg:"applog.path"`
}

// Config is the top-level, decoded config file.
type Config struct {
	Server Server `toml:"server"`
	Log    Log    `toml:"log"`
	Hash   Hash   `toml:"hash"`
	AppLog AppLog `toml:"applog"`
}

// Default returns the configuration the server boots with absent a
// config file: conservative thresholds for encoding conversion and
// active-expire pacing.
func Default() *Config {
	return &Config{
		Server: Server{Listen: "127.0.0.1:7379", StatusAddr: "127.0.0.1:7380"},
		Log:    Log{Level: "info", File: "", MaxSizeMB: 100},
		Hash: Hash{
			MaxListpackEntries:     128,
			MaxListpackValue:       64,
			LazyExpireDisabled:     false,
			ActiveExpireQuota:      20,
			ActiveExpireInterval:   100 * time.Millisecond,
			NewExpireDiffThreshold: 4000,
			BucketPrecisionMs:      1024,
			PropagateRetries:       3,
		},
		AppLog: AppLog{Path: "titanhfe.applog.db"},
	}
}

// LoadFile decodes path into a Config seeded with Default(), then applies
// any environment/flag overrides configo finds for the `cfg` struct tags
// above.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := configo.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
