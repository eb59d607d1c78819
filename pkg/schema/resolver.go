package schema

import (
	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/placeholder"
)

// Option customises a Resolver.
type Option func(*Resolver)

// WithLogger routes resolver diagnostics to logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// Resolver turns a template into its TemplateSchema. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	logger zerolog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(options ...Option) *Resolver {
	r := &Resolver{logger: zerolog.Nop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Resolve scans the template for placeholders and merges sidecar metadata.
// Metadata entries without a matching placeholder are dropped. Malformed
// metadata fails with KindInvalidMetadata.
func (r *Resolver) Resolve(tpl document.Template) (TemplateSchema, error) {
	names, err := placeholder.Scan(tpl)
	if err != nil {
		return TemplateSchema{}, docerr.Wrap(docerr.KindRenderFailed, err, "scan placeholders").WithTemplate(tpl.ID)
	}

	meta := Metadata{}
	if tpl.Metadata != nil {
		meta, err = ParseMetadata(tpl.Metadata.Raw, tpl.Metadata.Name)
		if err != nil {
			return TemplateSchema{}, docerr.Wrap(docerr.KindInvalidMetadata, err, "sidecar %s", tpl.Metadata.Name).WithTemplate(tpl.ID)
		}
	}

	fields := make([]FieldSpec, 0, len(names))
	used := make(map[string]struct{}, len(names))
	for _, name := range names {
		used[name] = struct{}{}
		fields = append(fields, buildField(name, meta))
	}

	for name := range meta {
		if _, ok := used[name]; ok {
			continue
		}
		r.logger.Debug().
			Str("template", tpl.ID).
			Str("field", name).
			Msg("metadata entry has no placeholder, ignoring")
	}

	return TemplateSchema{
		TemplateID: tpl.ID,
		Format:     tpl.Format,
		Fields:     fields,
	}, nil
}

func buildField(name string, meta Metadata) FieldSpec {
	spec := DefaultFieldSpec(name)
	entry, ok := meta[name]
	if !ok {
		return spec
	}
	if entry.Label != "" {
		spec.Label = entry.Label
	}
	if entry.Type != "" {
		spec.Type = entry.Type
	}
	if entry.Required != nil {
		spec.Required = *entry.Required
	}
	if len(entry.Choices) > 0 {
		spec.Choices = append([]string(nil), entry.Choices...)
	}
	return spec
}
