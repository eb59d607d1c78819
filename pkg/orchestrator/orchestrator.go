package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/binding"
	"github.com/goliatone/go-docfill/pkg/convert"
	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/render"
	"github.com/goliatone/go-docfill/pkg/schema"
	"github.com/goliatone/go-docfill/pkg/store"
)

// SchemaResolver derives the fields a template requires.
type SchemaResolver interface {
	Resolve(tpl document.Template) (schema.TemplateSchema, error)
}

// ValueBinder validates raw submitted values against a schema.
type ValueBinder interface {
	Bind(s schema.TemplateSchema, raw map[string]string) (binding.Values, error)
}

// Renderer produces a document in the template's native format.
type Renderer interface {
	Render(ctx context.Context, tpl document.Template, values binding.Values) (document.RenderedDocument, error)
}

// Converter delivers a rendered document in another format.
type Converter interface {
	Convert(ctx context.Context, doc document.RenderedDocument, target document.Format) (document.RenderedDocument, error)
}

type targeter interface {
	Targets(from document.Format) []document.Format
}

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithStore sets the template store. Required.
func WithStore(s store.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithResolver injects a custom schema resolver.
func WithResolver(r SchemaResolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

// WithBinder injects a custom value binder.
func WithBinder(b ValueBinder) Option {
	return func(o *Orchestrator) {
		o.binder = b
	}
}

// WithRenderer injects a custom render engine.
func WithRenderer(r Renderer) Option {
	return func(o *Orchestrator) {
		o.renderer = r
	}
}

// WithConverter injects the format converter. Without one only native
// format requests succeed.
func WithConverter(c Converter) Option {
	return func(o *Orchestrator) {
		o.converter = c
	}
}

// WithObserver registers a hook for stage timings and outcomes.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Orchestrator runs Resolve, Bind, Render and Convert for one request at a
// time. It keeps no state between requests.
type Orchestrator struct {
	store     store.Store
	resolver  SchemaResolver
	binder    ValueBinder
	renderer  Renderer
	converter Converter
	observer  Observer
	logger    zerolog.Logger
}

// New constructs an Orchestrator. Components not supplied fall back to the
// built-in resolver, strict binder, pongo2 engine and a converter with no
// backends.
func New(options ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		observer: nopObserver{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}

	if o.store == nil {
		return nil, errors.New("orchestrator: template store is required")
	}
	if o.resolver == nil {
		o.resolver = schema.NewResolver(schema.WithLogger(o.logger))
	}
	if o.binder == nil {
		o.binder = binding.NewBinder()
	}
	if o.renderer == nil {
		engine, err := render.New(render.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		o.renderer = engine
	}
	if o.converter == nil {
		c, err := convert.New(convert.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		o.converter = c
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	return o, nil
}

// Request describes one generation.
type Request struct {
	// TemplateID identifies the template in the store.
	TemplateID string
	// Values holds raw submitted strings by field name. Unknown names are
	// ignored.
	Values map[string]string
	// Format is the requested output format; empty means the template's
	// native format.
	Format document.Format
}

// Generate resolves the template, binds the values, renders and converts.
// The first failing stage aborts the request; its name is recorded on the
// returned docerr error.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (document.RenderedDocument, error) {
	if ctx == nil {
		return document.RenderedDocument{}, errors.New("orchestrator: context is required")
	}

	started := time.Now()
	doc, stage, err := o.generate(ctx, req)

	outcome := Outcome{
		TemplateID: req.TemplateID,
		Format:     doc.Format,
		Stage:      stage,
		Duration:   time.Since(started),
		Err:        err,
	}
	if err != nil && outcome.Format == "" {
		outcome.Format = req.Format
	}
	o.observer.GenerationFinished(outcome)

	if err != nil {
		event := o.logger.Warn()
		if kind, ok := docerr.KindOf(err); !ok || !kind.Binding() {
			event = o.logger.Error()
		}
		event.Err(err).
			Str("template", req.TemplateID).
			Str("stage", string(stage)).
			Dur("duration", outcome.Duration).
			Msg("generation aborted")
		return document.RenderedDocument{}, err
	}

	o.logger.Info().
		Str("template", req.TemplateID).
		Str("format", doc.Format.String()).
		Int("bytes", len(doc.Content)).
		Dur("duration", outcome.Duration).
		Msg("document generated")
	return doc, nil
}

func (o *Orchestrator) generate(ctx context.Context, req Request) (document.RenderedDocument, Stage, error) {
	var (
		tpl    document.Template
		spec   schema.TemplateSchema
		values binding.Values
		doc    document.RenderedDocument
	)

	err := o.stage(ctx, StageResolve, req.TemplateID, func() error {
		var err error
		tpl, spec, err = o.resolve(ctx, req.TemplateID)
		return err
	})
	if err != nil {
		return doc, StageResolve, err
	}

	err = o.stage(ctx, StageBind, req.TemplateID, func() error {
		var err error
		values, err = o.binder.Bind(spec, req.Values)
		return err
	})
	if err != nil {
		return doc, StageBind, err
	}

	err = o.stage(ctx, StageRender, req.TemplateID, func() error {
		var err error
		doc, err = o.renderer.Render(ctx, tpl, values)
		return err
	})
	if err != nil {
		return document.RenderedDocument{}, StageRender, err
	}

	target := req.Format
	if target == "" {
		target = doc.Format
	}
	err = o.stage(ctx, StageConvert, req.TemplateID, func() error {
		var err error
		doc, err = o.converter.Convert(ctx, doc, target)
		return err
	})
	if err != nil {
		return document.RenderedDocument{}, StageConvert, err
	}
	return doc, StageDone, nil
}

// Schema resolves a template and returns its field schema.
func (o *Orchestrator) Schema(ctx context.Context, id string) (schema.TemplateSchema, error) {
	_, spec, err := o.resolve(ctx, id)
	if err != nil {
		return schema.TemplateSchema{}, annotate(err, StageResolve, id)
	}
	return spec, nil
}

// Templates returns the schema of every template in store order. Templates
// whose schema cannot be resolved are logged and left out so one broken
// sidecar does not hide the rest. Stores implementing store.BulkResolver
// are read once for the whole listing.
func (o *Orchestrator) Templates(ctx context.Context) ([]schema.TemplateSchema, error) {
	if bulk, ok := o.store.(store.BulkResolver); ok {
		templates, err := bulk.ResolveAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: list templates: %w", err)
		}
		out := make([]schema.TemplateSchema, 0, len(templates))
		for _, tpl := range templates {
			spec, err := o.resolver.Resolve(tpl)
			if err != nil {
				o.logger.Warn().Err(annotate(err, StageResolve, tpl.ID)).Str("template", tpl.ID).Msg("skipping template")
				continue
			}
			out = append(out, spec)
		}
		return out, nil
	}

	ids, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list templates: %w", err)
	}

	out := make([]schema.TemplateSchema, 0, len(ids))
	for _, id := range ids {
		spec, err := o.Schema(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			o.logger.Warn().Err(err).Str("template", id).Msg("skipping template")
			continue
		}
		out = append(out, spec)
	}
	return out, nil
}

// Targets lists the formats a template's output can be delivered in, the
// native format first.
func (o *Orchestrator) Targets(native document.Format) []document.Format {
	if t, ok := o.converter.(targeter); ok {
		return t.Targets(native)
	}
	return []document.Format{native}
}

func (o *Orchestrator) resolve(ctx context.Context, id string) (document.Template, schema.TemplateSchema, error) {
	tpl, err := o.store.Resolve(ctx, id)
	if err != nil {
		return document.Template{}, schema.TemplateSchema{}, err
	}
	spec, err := o.resolver.Resolve(tpl)
	if err != nil {
		return document.Template{}, schema.TemplateSchema{}, err
	}
	return tpl, spec, nil
}

func (o *Orchestrator) stage(ctx context.Context, stage Stage, templateID string, run func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()
	err := annotate(run(), stage, templateID)
	elapsed := time.Since(started)

	o.observer.StageFinished(stage, elapsed, err)
	o.logger.Debug().
		Str("template", templateID).
		Str("stage", string(stage)).
		Dur("duration", elapsed).
		Bool("ok", err == nil).
		Msg("stage finished")
	return err
}

// annotate records stage and template on taxonomy errors. Other errors
// (context cancellation, store I/O) pass through unchanged.
func annotate(err error, stage Stage, templateID string) error {
	if err == nil {
		return nil
	}
	var bindErrs *docerr.BindingErrors
	if errors.As(err, &bindErrs) {
		bindErrs.WithStage(string(stage)).WithTemplate(templateID)
		return err
	}
	var typed *docerr.Error
	if errors.As(err, &typed) {
		typed.WithStage(string(stage)).WithTemplate(templateID)
	}
	return err
}
