package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/document"
	pkgstore "github.com/goliatone/go-docfill/pkg/store"
)

type snapshot struct {
	templates map[string]document.Template
	ids       []string
	loadedAt  time.Time
}

type scanner struct {
	files    fs.FS
	patterns []string
	logger   zerolog.Logger
}

// scan lists, then reads every template and sidecar fully. Files that
// vanish between listing and reading are skipped.
func (sc scanner) scan(ctx context.Context, now time.Time) (*snapshot, error) {
	names, err := sc.candidates()
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		templates: make(map[string]document.Template, len(names)),
		loadedAt:  now,
	}
	owners := make(map[string]string, len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		format, ok := document.TemplateFormatForPath(name)
		if !ok {
			continue
		}

		id := strings.TrimSuffix(name, path.Ext(name))
		if owner, taken := owners[id]; taken {
			sc.logger.Warn().
				Str("template", id).
				Str("kept", owner).
				Str("ignored", name).
				Msg("duplicate template id")
			continue
		}

		tpl, err := sc.load(id, name, format)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		owners[id] = name
		snap.templates[id] = tpl
		snap.ids = append(snap.ids, id)
	}

	sort.Strings(snap.ids)
	sc.logger.Debug().Int("templates", len(snap.ids)).Msg("template directory scanned")
	return snap, nil
}

// candidates returns matching file names, de-duplicated and sorted so the
// lexically first file wins an id collision.
func (sc scanner) candidates() ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, pattern := range sc.patterns {
		matches, err := doublestar.Glob(sc.files, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("store: glob %q: %w", pattern, err)
		}
		for _, name := range matches {
			if skipped(name) {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (sc scanner) load(id, name string, format document.Format) (document.Template, error) {
	info, err := fs.Stat(sc.files, name)
	if err != nil {
		return document.Template{}, fmt.Errorf("store: stat %s: %w", name, err)
	}
	body, err := fs.ReadFile(sc.files, name)
	if err != nil {
		return document.Template{}, fmt.Errorf("store: read %s: %w", name, err)
	}

	tpl := document.Template{
		ID:      id,
		Name:    path.Base(name),
		Format:  format,
		Body:    body,
		ModTime: info.ModTime(),
	}

	for _, ext := range pkgstore.SidecarExtensions {
		sidecar := id + ext
		raw, err := fs.ReadFile(sc.files, sidecar)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return document.Template{}, fmt.Errorf("store: read %s: %w", sidecar, err)
		}
		tpl.Metadata = &document.Metadata{Name: path.Base(sidecar), Raw: raw}
		break
	}
	return tpl, nil
}

// skipped filters hidden entries at any depth and Word lock files.
func skipped(name string) bool {
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return strings.HasPrefix(path.Base(name), "~$")
}
