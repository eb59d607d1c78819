// Package store defines how templates are discovered and looked up. The
// filesystem implementation lives in internal/store; construct it through
// docfill.NewStore.
package store

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/document"
)

// Store resolves template identifiers to loaded templates.
type Store interface {
	// Resolve returns the template for id or a docerr NotFound error.
	Resolve(ctx context.Context, id string) (document.Template, error)
	// List returns every identifier in ascending order.
	List(ctx context.Context) ([]string, error)
	// Close releases watchers. Lookups after Close keep serving the last
	// snapshot.
	Close() error
}

// BulkResolver is implemented by stores that can return every template from
// one snapshot, so enumerating N templates costs a single scan.
type BulkResolver interface {
	// ResolveAll returns every template in List order.
	ResolveAll(ctx context.Context) ([]document.Template, error)
}

// RefreshPolicy controls when the store re-reads its directory.
type RefreshPolicy string

const (
	// RefreshStartup scans once when the store opens.
	RefreshStartup RefreshPolicy = "startup"
	// RefreshPerRequest rescans on every lookup.
	RefreshPerRequest RefreshPolicy = "request"
	// RefreshInterval rescans when the snapshot is older than the interval.
	RefreshInterval RefreshPolicy = "interval"
	// RefreshWatch rescans when the filesystem reports a change.
	RefreshWatch RefreshPolicy = "watch"
)

// ParseRefreshPolicy accepts a policy name; empty means RefreshPerRequest.
func ParseRefreshPolicy(raw string) (RefreshPolicy, error) {
	switch policy := RefreshPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return RefreshPerRequest, nil
	case RefreshStartup, RefreshPerRequest, RefreshInterval, RefreshWatch:
		return policy, nil
	default:
		return "", fmt.Errorf("store: unknown refresh policy %q", raw)
	}
}

// DefaultPatterns matches every template extension at any depth.
var DefaultPatterns = []string{"**/*.{docx,html,htm,md,markdown,txt}"}

// SidecarExtensions lists metadata extensions in lookup order.
var SidecarExtensions = []string{".yaml", ".yml", ".json"}

const (
	defaultInterval = 30 * time.Second
	defaultDebounce = 250 * time.Millisecond
)

// Options configures a Store implementation.
type Options struct {
	// Root is the template directory on disk.
	Root string
	// FileSystem replaces Root for lookups. The watch policy still needs Root.
	FileSystem fs.FS
	// Patterns are doublestar globs relative to the root.
	Patterns []string
	// Refresh selects the refresh policy.
	Refresh RefreshPolicy
	// Interval is the snapshot lifetime under RefreshInterval.
	Interval time.Duration
	// Debounce groups bursts of filesystem events under RefreshWatch.
	Debounce time.Duration
	// Logger receives scan and watch diagnostics.
	Logger zerolog.Logger
}

// Option mutates Options prior to construction.
type Option func(*Options)

// WithRoot sets the template directory.
func WithRoot(dir string) Option {
	return func(opts *Options) {
		opts.Root = dir
	}
}

// WithFileSystem serves templates from files instead of the OS.
func WithFileSystem(files fs.FS) Option {
	return func(opts *Options) {
		opts.FileSystem = files
	}
}

// WithPatterns replaces the include patterns.
func WithPatterns(patterns ...string) Option {
	return func(opts *Options) {
		var cleaned []string
		for _, pattern := range patterns {
			if trimmed := strings.TrimSpace(pattern); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			opts.Patterns = cleaned
		}
	}
}

// WithRefresh selects the refresh policy.
func WithRefresh(policy RefreshPolicy) Option {
	return func(opts *Options) {
		if policy != "" {
			opts.Refresh = policy
		}
	}
}

// WithInterval sets the snapshot lifetime for RefreshInterval.
func WithInterval(d time.Duration) Option {
	return func(opts *Options) {
		if d > 0 {
			opts.Interval = d
		}
	}
}

// WithDebounce sets the event grouping window for RefreshWatch.
func WithDebounce(d time.Duration) Option {
	return func(opts *Options) {
		if d > 0 {
			opts.Debounce = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// NewOptions applies options over the defaults.
func NewOptions(options ...Option) Options {
	cfg := Options{
		Patterns: append([]string(nil), DefaultPatterns...),
		Refresh:  RefreshPerRequest,
		Interval: defaultInterval,
		Debounce: defaultDebounce,
		Logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
