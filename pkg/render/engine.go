// Package render substitutes bound values into a template body and produces
// a document in the template's native format. Bodies are executed with
// pongo2, so html, markdown and text templates may also use pongo2 tags; the
// fields a template requires are still exactly its {{ name }} placeholders.
//
// Because the whole body is pongo2 source, a literal "{#", "{%" or "{{"
// that is not a placeholder must be written with templatetag, for example
// {% templatetag opencomment %}. Markdown heading attributes such as
// "## Intro {#intro}" otherwise open a pongo2 comment and fail with
// KindRenderFailed.
package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/flosch/pongo2/v6"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/binding"
	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/docx"
	"github.com/goliatone/go-docfill/pkg/placeholder"
	"github.com/goliatone/go-docfill/pkg/render/template"
	"github.com/goliatone/go-docfill/pkg/render/template/gotemplate"
)

// FieldsKey exposes every placeholder value, by name, to template tags.
const FieldsKey = "fields"

// Tags that would let a template read files or other templates.
var bannedTags = []string{"include", "extends", "import", "ssi"}

// Option configures an Engine.
type Option func(*Engine)

// WithDateLayout sets the Go time layout used for date values.
func WithDateLayout(layout string) Option {
	return func(e *Engine) {
		if layout != "" {
			e.dateLayout = layout
		}
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTemplates replaces the pongo2 renderer, mostly for tests.
func WithTemplates(renderer template.BodyRenderer) Option {
	return func(e *Engine) {
		if renderer != nil {
			e.templates = renderer
		}
	}
}

// Engine renders templates in their native format.
type Engine struct {
	templates  template.BodyRenderer
	dateLayout string
	logger     zerolog.Logger
}

// New constructs an Engine backed by a sandboxed pongo2 set unless
// WithTemplates supplies another renderer.
func New(options ...Option) (*Engine, error) {
	engine := &Engine{
		dateLayout: DefaultDateLayout,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(engine)
		}
	}
	if engine.templates == nil {
		renderer, err := gotemplate.New(
			gotemplate.WithName("docfill-render"),
			gotemplate.WithBannedTags(bannedTags...),
		)
		if err != nil {
			return nil, fmt.Errorf("render: template engine: %w", err)
		}
		engine.templates = renderer
	}
	return engine, nil
}

// DateLayout reports the layout applied to date values.
func (e *Engine) DateLayout() string {
	return e.dateLayout
}

// Render substitutes values into tpl. Placeholders without a bound value
// render as the empty string.
func (e *Engine) Render(ctx context.Context, tpl document.Template, values binding.Values) (document.RenderedDocument, error) {
	if err := ctx.Err(); err != nil {
		return document.RenderedDocument{}, err
	}
	if !tpl.Format.Templatable() {
		return document.RenderedDocument{}, docerr.New(docerr.KindUnsupportedFormat,
			"%s is not a template format", tpl.Format).WithTemplate(tpl.ID)
	}

	var (
		content []byte
		err     error
	)
	if tpl.Format == document.FormatDOCX {
		content, err = e.renderDocx(tpl, values)
	} else {
		content, err = e.renderBody(tpl.Format, tpl.Body, values)
	}
	if err != nil {
		var typed *docerr.Error
		if errors.As(err, &typed) {
			return document.RenderedDocument{}, typed.WithTemplate(tpl.ID)
		}
		return document.RenderedDocument{}, docerr.Wrap(docerr.KindRenderFailed, err, "render %s", tpl.Name).WithTemplate(tpl.ID)
	}

	e.logger.Debug().
		Str("template", tpl.ID).
		Str("format", tpl.Format.String()).
		Int("bytes", len(content)).
		Msg("template rendered")

	return document.NewRenderedDocument(tpl.ID, tpl.Format, content), nil
}

func (e *Engine) renderDocx(tpl document.Template, values binding.Values) ([]byte, error) {
	pkg, err := docx.Open(tpl.Body)
	if err != nil {
		return nil, err
	}
	parts, err := pkg.TextParts()
	if err != nil {
		return nil, err
	}

	replacements := make(map[string][]byte)
	for _, part := range parts {
		if len(placeholder.ScanBytes(part.Data)) == 0 {
			continue
		}
		rendered, err := e.renderBody(document.FormatDOCX, part.Data, values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part.Name, err)
		}
		replacements[part.Name] = rendered
	}
	if len(replacements) == 0 {
		// The store owns tpl.Body; the document must not share it.
		return bytes.Clone(tpl.Body), nil
	}
	return pkg.Rewrite(replacements)
}

// renderBody rewrites each placeholder to a positional alias before handing
// the body to pongo2. Placeholder names may start with a digit or collide
// with pongo2 keywords (in, not, true), neither of which pongo2 accepts as a
// variable.
func (e *Engine) renderBody(format document.Format, body []byte, values binding.Values) ([]byte, error) {
	source, names := aliasPlaceholders(body)

	fields := make(map[string]any, len(names))
	data := make(map[string]any, len(names)+1)
	for i, name := range names {
		text := Escape(format, CanonicalText(values[name], e.dateLayout))
		value := pongo2.AsSafeValue(text)
		data[alias(i)] = value
		fields[name] = value
	}
	data[FieldsKey] = fields

	digest := sha256.Sum256(source)
	key := string(format) + ":" + hex.EncodeToString(digest[:])
	return e.templates.RenderCached(key, source, data)
}

func aliasPlaceholders(body []byte) ([]byte, []string) {
	index := make(map[string]int)
	var names []string
	source := placeholder.Pattern().ReplaceAllFunc(body, func(token []byte) []byte {
		name := string(placeholder.Pattern().FindSubmatch(token)[1])
		i, ok := index[name]
		if !ok {
			i = len(names)
			index[name] = i
			names = append(names, name)
		}
		return []byte("{{ " + alias(i) + " }}")
	})
	return source, names
}

func alias(i int) string {
	return "docfill_field_" + strconv.Itoa(i)
}
