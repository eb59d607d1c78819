// Package store implements pkg/store over a directory tree. Every scan
// builds a complete immutable snapshot that is published atomically.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/document"
	pkgstore "github.com/goliatone/go-docfill/pkg/store"
)

// Store serves templates from a directory.
type Store struct {
	scanner  scanner
	root     string
	policy   pkgstore.RefreshPolicy
	interval time.Duration
	debounce time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	current atomic.Pointer[snapshot]
	group   singleflight.Group

	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ pkgstore.Store        = (*Store)(nil)
	_ pkgstore.BulkResolver = (*Store)(nil)
)

// New opens the store and performs the first scan, so a missing or
// unreadable directory fails here rather than on the first request.
func New(ctx context.Context, options pkgstore.Options) (*Store, error) {
	files := options.FileSystem
	if files == nil {
		if options.Root == "" {
			return nil, errors.New("store: template root is required")
		}
		info, err := os.Stat(options.Root)
		if err != nil {
			return nil, fmt.Errorf("store: template root: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("store: template root %s is not a directory", options.Root)
		}
		files = os.DirFS(options.Root)
	}

	patterns := options.Patterns
	if len(patterns) == 0 {
		patterns = pkgstore.DefaultPatterns
	}
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("store: invalid pattern %q", pattern)
		}
	}

	policy := options.Refresh
	if policy == "" {
		policy = pkgstore.RefreshPerRequest
	}
	if _, err := pkgstore.ParseRefreshPolicy(string(policy)); err != nil {
		return nil, err
	}
	if policy == pkgstore.RefreshWatch && options.Root == "" {
		return nil, errors.New("store: watch refresh needs a root directory")
	}

	s := &Store{
		scanner:  scanner{files: files, patterns: patterns, logger: options.Logger},
		root:     options.Root,
		policy:   policy,
		interval: options.Interval,
		debounce: options.Debounce,
		logger:   options.Logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}

	if _, err := s.refresh(ctx); err != nil {
		return nil, err
	}

	if policy == pkgstore.RefreshWatch {
		if err := s.startWatch(); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("root", options.Root).
		Str("refresh", string(policy)).
		Int("templates", len(s.current.Load().ids)).
		Msg("template store opened")
	return s, nil
}

// Resolve implements pkgstore.Store.
func (s *Store) Resolve(ctx context.Context, id string) (document.Template, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return document.Template{}, err
	}
	tpl, ok := snap.templates[id]
	if !ok {
		return document.Template{}, docerr.New(docerr.KindNotFound, "no template with id %q", id).WithTemplate(id)
	}
	return tpl, nil
}

// List implements pkgstore.Store.
func (s *Store) List(ctx context.Context) ([]string, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), snap.ids...), nil
}

// ResolveAll implements pkgstore.BulkResolver.
func (s *Store) ResolveAll(ctx context.Context) ([]document.Template, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]document.Template, 0, len(snap.ids))
	for _, id := range snap.ids {
		out = append(out, snap.templates[id])
	}
	return out, nil
}

// Refresh forces a rescan regardless of policy.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx)
	return err
}

// Close stops the watcher, if any. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
		s.wg.Wait()
	})
	return err
}

func (s *Store) snapshot(ctx context.Context) (*snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch s.policy {
	case pkgstore.RefreshPerRequest:
		return s.refresh(ctx)
	case pkgstore.RefreshInterval:
		snap := s.current.Load()
		if snap == nil || s.interval <= 0 || s.now().Sub(snap.loadedAt) >= s.interval {
			return s.refresh(ctx)
		}
		return snap, nil
	default:
		return s.current.Load(), nil
	}
}

// refresh coalesces concurrent rescans. The shared scan is detached from
// any single caller's cancellation; each caller still stops waiting when
// its own context ends.
func (s *Store) refresh(ctx context.Context) (*snapshot, error) {
	result := s.group.DoChan("scan", func() (any, error) {
		snap, err := s.scanner.scan(context.WithoutCancel(ctx), s.now())
		if err != nil {
			return nil, err
		}
		s.current.Store(snap)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	}
}
