package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Config struct {
	Port          int
	StaticDir     string
	SweepInterval time.Duration
	OutboxSize    int
	InboxSize     int
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	LogLevel      string
	LogFormat     string
}

func Default() Config {
	return Config{
		Port:          3000,
		StaticDir:     "./public",
		SweepInterval: 30 * time.Second,
		OutboxSize:    32,
		InboxSize:     256,
		WriteTimeout:  5 * time.Second,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// Load reads envFiles (a missing file is not an error) and then the process
// environment on top of the defaults. Variables already set in the
// environment win over the files. Like FromEnv, Load does not validate.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Every malformed variable is reported,
// not just the first. The result is not validated: callers apply their own
// overrides first and then call Validate.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	var errs error

	intVar(lookup, "PORT", &c.Port, &errs)
	strVar(lookup, "RELAY_STATIC_DIR", &c.StaticDir)
	durVar(lookup, "RELAY_SWEEP_INTERVAL", &c.SweepInterval, &errs)
	intVar(lookup, "RELAY_OUTBOX_SIZE", &c.OutboxSize, &errs)
	intVar(lookup, "RELAY_INBOX_SIZE", &c.InboxSize, &errs)
	durVar(lookup, "RELAY_WRITE_TIMEOUT", &c.WriteTimeout, &errs)
	durVar(lookup, "RELAY_IDLE_TIMEOUT", &c.IdleTimeout, &errs)
	strVar(lookup, "RELAY_LOG_LEVEL", &c.LogLevel)
	strVar(lookup, "RELAY_LOG_FORMAT", &c.LogFormat)

	if errs != nil {
		return Config{}, errs
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs error
	if c.Port < 0 || c.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.OutboxSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("outbox size must be positive, got %d", c.OutboxSize))
	}
	if c.InboxSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("inbox size must be positive, got %d", c.InboxSize))
	}
	if c.SweepInterval < 0 {
		errs = multierr.Append(errs, errors.New("sweep interval must not be negative"))
	}
	if c.WriteTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("write timeout must be positive"))
	}
	if c.IdleTimeout < 0 {
		errs = multierr.Append(errs, errors.New("idle timeout must not be negative"))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errs
}

func (c Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

func strVar(lookup func(string) (string, bool), key string, dst *string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}

func intVar(lookup func(string) (string, bool), key string, dst *int, errs *error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func durVar(lookup func(string) (string, bool), key string, dst *time.Duration, errs *error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}
