// Package config resolves terminal settings from defaults, an optional YAML
// file, OFFPOS_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix is the environment variable prefix. Nested keys use '_' for
// '.', e.g. OFFPOS_AUTHORITY_URL.
const EnvPrefix = "OFFPOS"

// Config is the resolved configuration. Durations in files and the
// environment use Go duration syntax ("10s", "1m30s").
type Config struct {
	DB        string
	Authority Authority
	Sync      Sync
	Log       Log
}

// Authority configures the remote authority client.
type Authority struct {
	URL             string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Sync configures background synchronization.
type Sync struct {
	// ProbeInterval is the connectivity probe period. Zero disables
	// probing.
	ProbeInterval    time.Duration
	ResubscribeDelay time.Duration
}

// Log configures the process logger.
type Log struct {
	Level  string
	Format string
}

// FlagKeys maps configuration keys to the flag names that override them.
var FlagKeys = map[string]string{
	"db":            "db",
	"authority.url": "authority",
	"log.format":    "log-format",
}

// Options controls Load.
type Options struct {
	// File is an optional YAML file. A named file that cannot be read is an
	// error.
	File string
	// Flags are bound per FlagKeys. Only flags the user set take
	// precedence over the file and environment.
	Flags *pflag.FlagSet
	// Verbose forces log.level=debug.
	Verbose bool
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DB: "offpos.db",
		Authority: Authority{
			URL:             "http://127.0.0.1:8787",
			Timeout:         10 * time.Second,
			BreakerFailures: 3,
			BreakerCooldown: 30 * time.Second,
		},
		Sync: Sync{
			ProbeInterval:    15 * time.Second,
			ResubscribeDelay: 5 * time.Second,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("db", d.DB)
	v.SetDefault("authority.url", d.Authority.URL)
	v.SetDefault("authority.timeout", d.Authority.Timeout)
	v.SetDefault("authority.breaker.failures", d.Authority.BreakerFailures)
	v.SetDefault("authority.breaker.cooldown", d.Authority.BreakerCooldown)
	v.SetDefault("sync.probe_interval", d.Sync.ProbeInterval)
	v.SetDefault("sync.resubscribe_delay", d.Sync.ResubscribeDelay)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load resolves and validates the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for key, name := range FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{
		DB: v.GetString("db"),
		Authority: Authority{
			URL:             v.GetString("authority.url"),
			Timeout:         v.GetDuration("authority.timeout"),
			BreakerFailures: v.GetInt("authority.breaker.failures"),
			BreakerCooldown: v.GetDuration("authority.breaker.cooldown"),
		},
		Sync: Sync{
			ProbeInterval:    v.GetDuration("sync.probe_interval"),
			ResubscribeDelay: v.GetDuration("sync.resubscribe_delay"),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// document is the shape the CUE schema constrains.
type document struct {
	DB        string `json:"db"`
	Authority struct {
		URL     string  `json:"url"`
		Timeout float64 `json:"timeout"`
		Breaker struct {
			Failures int     `json:"failures"`
			Cooldown float64 `json:"cooldown"`
		} `json:"breaker"`
	} `json:"authority"`
	Sync struct {
		ProbeInterval    float64 `json:"probe_interval"`
		ResubscribeDelay float64 `json:"resubscribe_delay"`
	} `json:"sync"`
	Log struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"log"`
}

func (c *Config) document() document {
	var d document
	d.DB = c.DB
	d.Authority.URL = c.Authority.URL
	d.Authority.Timeout = c.Authority.Timeout.Seconds()
	d.Authority.Breaker.Failures = c.Authority.BreakerFailures
	d.Authority.Breaker.Cooldown = c.Authority.BreakerCooldown.Seconds()
	d.Sync.ProbeInterval = c.Sync.ProbeInterval.Seconds()
	d.Sync.ResubscribeDelay = c.Sync.ResubscribeDelay.Seconds()
	d.Log.Level = c.Log.Level
	d.Log.Format = c.Log.Format
	return d
}

// Validate checks c against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	val := def.Unify(ctx.Encode(c.document()))
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return &InvalidError{Err: err}
	}
	return nil
}

// InvalidError reports a configuration that fails the schema.
type InvalidError struct {
	Err error
}

func (e *InvalidError) Error() string { return "invalid config: " + e.Err.Error() }

func (e *InvalidError) Unwrap() error { return e.Err }

// IsInvalid reports whether err is an InvalidError.
func IsInvalid(err error) bool {
	var ie *InvalidError
	return errors.As(err, &ie)
}

// Level returns the slog level for c.Log.Level.
func (c *Config) Level() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	ho := &slog.HandlerOptions{Level: c.Level()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}
