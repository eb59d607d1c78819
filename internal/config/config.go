// Package config loads docfill settings from built-in defaults, an optional
// TOML file and DOCFILL_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/binding"
	"github.com/goliatone/go-docfill/pkg/store"
)

// EnvPrefix is stripped from environment variables before they are mapped
// onto configuration keys.
const EnvPrefix = "DOCFILL_"

// DefaultPath is read when no explicit config file is given and it exists in
// the working directory.
const DefaultPath = "docfill.toml"

// Config is the complete docfill configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Store   StoreConfig   `koanf:"store"`
	Render  RenderConfig  `koanf:"render"`
	Binding BindingConfig `koanf:"binding"`
	Convert ConvertConfig `koanf:"convert"`
	Log     LogConfig     `koanf:"log"`
	I18n    I18nConfig    `koanf:"i18n"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type StoreConfig struct {
	Dir      string        `koanf:"dir"`
	Patterns []string      `koanf:"patterns"`
	Refresh  string        `koanf:"refresh"`
	Interval time.Duration `koanf:"interval"`
	Debounce time.Duration `koanf:"debounce"`
}

type RenderConfig struct {
	DateLayout string `koanf:"date_layout"`
}

// BindingConfig relaxes choice matching. Both flags default to false, which
// keeps matching exact.
type BindingConfig struct {
	ChoiceTrim bool `koanf:"choice_trim"`
	ChoiceFold bool `koanf:"choice_fold"`
}

type ConvertConfig struct {
	SofficePath     string        `koanf:"soffice_path"`
	Concurrency     int64         `koanf:"concurrency"`
	Timeout         time.Duration `koanf:"timeout"`
	ChromiumEnabled bool          `koanf:"chromium_enabled"`
	ChromiumBin     string        `koanf:"chromium_bin"`
	ChromiumURL     string        `koanf:"chromium_url"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type I18nConfig struct {
	DefaultLang string `koanf:"default_lang"`
}

// Defaults returns the built-in configuration map.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8080",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "5m",
		"server.shutdown_timeout": "10s",

		"store.dir":      "templates",
		"store.patterns": append([]string(nil), store.DefaultPatterns...),
		"store.refresh":  string(store.RefreshPerRequest),
		"store.interval": "30s",
		"store.debounce": "250ms",

		"render.date_layout": binding.DateLayout,

		"binding.choice_trim": false,
		"binding.choice_fold": false,

		"convert.soffice_path":     "",
		"convert.concurrency":      2,
		"convert.timeout":          "2m",
		"convert.chromium_enabled": false,
		"convert.chromium_bin":     "",
		"convert.chromium_url":     "",

		"log.level":  "info",
		"log.format": "console",

		"i18n.default_lang": "en",
	}
}

// Load builds a Config. An explicit path must exist; with an empty path
// DefaultPath is used when present.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	overrides := map[string]any{}
	if port := os.Getenv("PORT"); port != "" && os.Getenv(EnvPrefix+"SERVER_ADDR") == "" {
		overrides["server.addr"] = ":" + port
	}
	if soffice := os.Getenv("SOFFICE_PATH"); soffice != "" && k.String("convert.soffice_path") == "" {
		overrides["convert.soffice_path"] = soffice
	}
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("config: apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Store.Patterns = splitPatterns(cfg.Store.Patterns)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps DOCFILL_STORE_DIR to store.dir and DOCFILL_RENDER_DATE_LAYOUT
// to render.date_layout: only the first underscore separates the section.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// splitPatterns accepts a comma separated list coming from the environment.
// Commas inside {a,b} alternatives belong to the glob and are kept.
func splitPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	add := func(part string) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	for _, p := range patterns {
		depth, start := 0, 0
		for i, r := range p {
			switch r {
			case '{':
				depth++
			case '}':
				if depth > 0 {
					depth--
				}
			case ',':
				if depth == 0 {
					add(p[start:i])
					start = i + 1
				}
			}
		}
		add(p[start:])
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if strings.TrimSpace(c.Store.Dir) == "" {
		errs = append(errs, errors.New("store.dir is required"))
	}
	if len(c.Store.Patterns) == 0 {
		errs = append(errs, errors.New("store.patterns must not be empty"))
	}
	policy, err := store.ParseRefreshPolicy(c.Store.Refresh)
	if err != nil {
		errs = append(errs, err)
	}
	if policy == store.RefreshInterval && c.Store.Interval <= 0 {
		errs = append(errs, errors.New("store.interval must be positive for the interval policy"))
	}
	if strings.TrimSpace(c.Render.DateLayout) == "" {
		errs = append(errs, errors.New("render.date_layout is required"))
	}
	if c.Convert.Concurrency < 1 {
		errs = append(errs, errors.New("convert.concurrency must be at least 1"))
	}
	if c.Convert.Timeout <= 0 {
		errs = append(errs, errors.New("convert.timeout must be positive"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	switch c.I18n.DefaultLang {
	case "en", "ru":
	default:
		errs = append(errs, fmt.Errorf("i18n.default_lang must be en or ru, got %q", c.I18n.DefaultLang))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// RefreshPolicy returns the parsed store refresh policy.
func (c *Config) RefreshPolicy() store.RefreshPolicy {
	policy, err := store.ParseRefreshPolicy(c.Store.Refresh)
	if err != nil {
		return store.RefreshPerRequest
	}
	return policy
}

// StoreOptions translates the store section into store options.
func (c *Config) StoreOptions(logger zerolog.Logger) []store.Option {
	return []store.Option{
		store.WithRoot(c.Store.Dir),
		store.WithPatterns(c.Store.Patterns...),
		store.WithRefresh(c.RefreshPolicy()),
		store.WithInterval(c.Store.Interval),
		store.WithDebounce(c.Store.Debounce),
		store.WithLogger(logger),
	}
}

// ChoicePolicy returns the binder's choice matching policy.
func (c *Config) ChoicePolicy() binding.ChoicePolicy {
	return binding.ChoicePolicy{
		TrimSpace: c.Binding.ChoiceTrim,
		FoldCase:  c.Binding.ChoiceFold,
	}
}

// Logger builds the process logger described by the log section.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if c.Log.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

const sample = `# docfill configuration
[server]
addr = ":8080"
read_timeout = "30s"
write_timeout = "5m"
shutdown_timeout = "10s"

[store]
dir = "templates"
patterns = ["**/*.{docx,html,htm,md,markdown,txt}"]
# startup, request, interval or watch
refresh = "request"
interval = "30s"
debounce = "250ms"

[render]
date_layout = "2006-01-02"

[binding]
choice_trim = false
choice_fold = false

[convert]
# falls back to SOFFICE_PATH, then soffice or libreoffice on PATH
soffice_path = ""
concurrency = 2
timeout = "2m"
chromium_enabled = false
chromium_bin = ""
chromium_url = ""

[log]
level = "info"
format = "console"

[i18n]
default_lang = "en"
`

// InitConfig writes a sample configuration to path, refusing to overwrite
// an existing file.
func InitConfig(path string) error {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
