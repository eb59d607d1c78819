package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

func (s *Store) startWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store: create watcher: %w", err)
	}
	s.watcher = watcher

	if err := s.watchTree(s.root); err != nil {
		_ = watcher.Close()
		return err
	}

	s.wg.Add(1)
	go s.watchLoop()
	return nil
}

// watchTree adds every non-hidden directory below root; fsnotify does not
// recurse on its own.
func (s *Store) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			return fmt.Errorf("store: watch %s: %w", path, err)
		}
		return nil
	})
}

func (s *Store) watchLoop() {
	defer s.wg.Done()

	// Armed by the first event.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := s.watchTree(event.Name); err != nil {
						s.logger.Warn().Err(err).Str("path", event.Name).Msg("watch new directory")
					}
				}
			}
			s.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("template change detected")
			timer.Reset(s.debounce)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("template watcher error")

		case <-timer.C:
			if _, err := s.refresh(context.Background()); err != nil {
				s.logger.Error().Err(err).Msg("template rescan failed")
				continue
			}
			s.logger.Info().Int("templates", len(s.current.Load().ids)).Msg("templates reloaded")
		}
	}
}
