package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Defaults for the query and pool settings.
const (
	DefaultDialect      = "sqlserver"
	DefaultQueryTimeout = 30 * time.Second
	DefaultMaxRows      = 10000
	DefaultMaxOpenConns = 10
	DefaultMaxIdleConns = 5
)

// Settings are the process-wide knobs that are not connection credentials.
type Settings struct {
	Dialect       string
	QueryTimeout  time.Duration
	MaxRows       int
	RejectBatches bool
	LogLevel      slog.Level
	MaxOpenConns  int
	MaxIdleConns  int
}

// Load resolves Settings from src, applying defaults and validating ranges.
func Load(src Source) (Settings, error) {
	s := Settings{
		Dialect:      strings.ToLower(Lookup(src, KeyDialect, DefaultDialect)),
		QueryTimeout: DefaultQueryTimeout,
		MaxRows:      DefaultMaxRows,
		MaxOpenConns: DefaultMaxOpenConns,
		MaxIdleConns: DefaultMaxIdleConns,
	}

	var err error
	if v, ok := src.Get(KeyQueryTimeout); ok && v != "" {
		if s.QueryTimeout, err = ParseDuration(v); err != nil {
			return s, fmt.Errorf("%s: %w", EnvName(KeyQueryTimeout), err)
		}
	}
	if s.MaxRows, err = positiveInt(src, KeyQueryMaxRows, s.MaxRows); err != nil {
		return s, err
	}
	if s.MaxOpenConns, err = positiveInt(src, KeyPoolMaxOpen, s.MaxOpenConns); err != nil {
		return s, err
	}
	if s.MaxIdleConns, err = positiveInt(src, KeyPoolMaxIdle, s.MaxIdleConns); err != nil {
		return s, err
	}
	if v, ok := src.Get(KeyQueryRejectBatches); ok && v != "" {
		if s.RejectBatches, err = ParseBool(v); err != nil {
			return s, fmt.Errorf("%s: %w", EnvName(KeyQueryRejectBatches), err)
		}
	}
	if s.LogLevel, err = ParseLevel(Lookup(src, KeyLogLevel, "info")); err != nil {
		return s, err
	}
	return s, nil
}

// ParseDuration accepts Go durations ("45s") or bare seconds ("45").
func ParseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("duration must be positive, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}

// ParseBool also accepts the yes/no spelling used by ODBC-style settings.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return strconv.ParseBool(v)
}

func ParseLevel(v string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%s: invalid log level %q", EnvName(KeyLogLevel), v)
	}
	return l, nil
}

func positiveInt(src Source, key string, def int) (int, error) {
	v, ok := src.Get(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", EnvName(key), v)
	}
	return n, nil
}

// Open builds the standard source chain: environment, then the YAML file
// at path (if any), then the OS keyring for passwords.
func Open(path string) (Source, *File, error) {
	env := NewEnv()
	chain := Chain{env}

	var file *File
	if path != "" {
		var err error
		if file, err = LoadFile(path); err != nil {
			return nil, nil, err
		}
		chain = append(chain, file)
	}

	service := Lookup(chain, KeyKeyringService, DefaultKeyringService)
	chain = append(chain, NewKeyring(service))
	return chain, file, nil
}
