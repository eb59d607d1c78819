package gotemplate

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/goliatone/go-docfill/pkg/render/template"
)

// empty backs engines without a page tree so include tags fail cleanly.
var empty embed.FS

const (
	pageExt = ".html"
	// DefaultCacheSize bounds compiled templates kept per engine.
	DefaultCacheSize = 512
)

// Option configures an Engine.
type Option func(*Engine)

// WithName labels the pongo2 set; the name appears in parse errors.
func WithName(name string) Option {
	return func(e *Engine) {
		if name = strings.TrimSpace(name); name != "" {
			e.name = name
		}
	}
}

// WithFS loads named pages from files.
func WithFS(files fs.FS) Option {
	return func(e *Engine) {
		e.files = files
	}
}

// WithBannedTags forbids tags in every template the engine compiles.
func WithBannedTags(tags ...string) Option {
	return func(e *Engine) {
		e.banned = append(e.banned, tags...)
	}
}

// WithCacheSize bounds how many compiled templates are kept. The least
// recently used one is dropped first. Values below 1 keep the default.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// WithFunctions exposes Go functions to templates as globals.
func WithFunctions(funcs map[string]any) Option {
	return func(e *Engine) {
		for name, fn := range funcs {
			e.globals[name] = fn
		}
	}
}

// Engine renders pongo2 templates and keeps compiled ones by key.
type Engine struct {
	name    string
	files   fs.FS
	banned  []string
	globals pongo2.Context

	set *pongo2.TemplateSet

	cacheSize int
	compileMu sync.Mutex
	compiled  *lru.Cache[string, *pongo2.Template]
}

var (
	_ template.BodyRenderer = (*Engine)(nil)
	_ template.PageRenderer = (*Engine)(nil)
)

// New builds an Engine.
func New(options ...Option) (*Engine, error) {
	e := &Engine{
		name:      "docfill",
		globals:   pongo2.Context{},
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}

	compiled, err := lru.New[string, *pongo2.Template](e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("gotemplate: template cache: %w", err)
	}
	e.compiled = compiled

	files := e.files
	if files == nil {
		files = empty
	}
	e.set = pongo2.NewSet(e.name, pongo2.NewFSLoader(files))
	for _, tag := range e.banned {
		if err := e.set.BanTag(strings.TrimSpace(tag)); err != nil {
			return nil, fmt.Errorf("gotemplate: ban tag %q: %w", tag, err)
		}
	}
	if e.set.Globals == nil {
		e.set.Globals = pongo2.Context{}
	}
	e.set.Globals.Update(e.globals)

	if !pongo2.FilterExists("trim") {
		if err := pongo2.RegisterFilter("trim", filterTrim); err != nil {
			return nil, fmt.Errorf("gotemplate: register trim: %w", err)
		}
	}
	return e, nil
}

// RenderCached compiles content on first use of key and executes it.
func (e *Engine) RenderCached(key string, content []byte, data any) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("gotemplate: cache key is required")
	}
	tmpl, err := e.lookup("body:"+key, func() (*pongo2.Template, error) {
		return e.set.FromBytes(content)
	})
	if err != nil {
		return nil, fmt.Errorf("gotemplate: parse %s: %w", key, err)
	}

	var buf bytes.Buffer
	if err := execute(tmpl, data, &buf); err != nil {
		return nil, fmt.Errorf("gotemplate: execute %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// RenderPage executes the page name, adding the .html extension when
// missing. Output is buffered so a failing page writes nothing to w.
func (e *Engine) RenderPage(w io.Writer, name string, data any) error {
	file := name
	if path.Ext(file) == "" {
		file += pageExt
	}
	tmpl, err := e.lookup("page:"+file, func() (*pongo2.Template, error) {
		return e.set.FromFile(file)
	})
	if err != nil {
		return fmt.Errorf("gotemplate: load page %q: %w", file, err)
	}

	var buf bytes.Buffer
	if err := execute(tmpl, data, &buf); err != nil {
		return fmt.Errorf("gotemplate: execute page %q: %w", file, err)
	}
	_, err = buf.WriteTo(w)
	return err
}

func (e *Engine) lookup(key string, compile func() (*pongo2.Template, error)) (*pongo2.Template, error) {
	if tmpl, ok := e.compiled.Get(key); ok {
		return tmpl, nil
	}

	e.compileMu.Lock()
	defer e.compileMu.Unlock()
	if tmpl, ok := e.compiled.Get(key); ok {
		return tmpl, nil
	}
	tmpl, err := compile()
	if err != nil {
		return nil, err
	}
	e.compiled.Add(key, tmpl)
	return tmpl, nil
}

func execute(tmpl *pongo2.Template, data any, w io.Writer) error {
	ctx, err := contextOf(data)
	if err != nil {
		return fmt.Errorf("convert data: %w", err)
	}
	return tmpl.ExecuteWriter(ctx, w)
}

// contextOf turns data into a pongo2 context. Map values that pongo2 cannot
// walk (structs, typed slices) go through JSON, so struct fields appear
// under their json names. Safe values and functions pass through untouched.
func contextOf(data any) (pongo2.Context, error) {
	var top map[string]any
	switch v := data.(type) {
	case nil:
		return pongo2.Context{}, nil
	case pongo2.Context:
		top = v
	case map[string]any:
		top = v
	default:
		if err := roundTrip(v, &top); err != nil {
			return nil, err
		}
	}

	ctx := make(pongo2.Context, len(top))
	for key, value := range top {
		plain, err := plainValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		ctx[key] = plain
	}
	return ctx, nil
}

func plainValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int, int64, float64, *pongo2.Value:
		return v, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			plain, err := plainValue(item)
			if err != nil {
				return nil, err
			}
			out[key] = plain
		}
		return out, nil
	}
	if isFunc(value) {
		return value, nil
	}
	var decoded any
	if err := roundTrip(value, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func roundTrip(in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func isFunc(v any) bool {
	return reflect.ValueOf(v).Kind() == reflect.Func
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}
