// Package convert turns a rendered document into another final format by
// chaining registered backends along the shortest route.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/document"
)

// ErrToolUnavailable reports a backend whose external program or browser
// cannot be started.
var ErrToolUnavailable = errors.New("convert: conversion tool unavailable")

// Backend performs the conversions listed by Edges. Convert is only called
// with an edge the backend declared.
type Backend interface {
	Name() string
	Edges() []Edge
	Convert(ctx context.Context, content []byte, from, to document.Format) ([]byte, error)
}

// Option configures a Converter.
type Option func(*Converter)

// WithBackends registers backends in order. Registration errors surface
// from New.
func WithBackends(backends ...Backend) Option {
	return func(c *Converter) {
		c.pending = append(c.pending, backends...)
	}
}

// WithRegistry swaps the backend registry.
func WithRegistry(registry *Registry) Option {
	return func(c *Converter) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// Converter plans and runs format conversions.
type Converter struct {
	registry *Registry
	pending  []Backend
	logger   zerolog.Logger
}

// New constructs a Converter. With no backends only same-format requests
// succeed.
func New(options ...Option) (*Converter, error) {
	c := &Converter{
		registry: NewRegistry(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	for _, backend := range c.pending {
		if err := c.registry.Register(backend); err != nil {
			return nil, err
		}
	}
	c.pending = nil
	return c, nil
}

// Registry exposes the backend registry.
func (c *Converter) Registry() *Registry {
	return c.registry
}

// Route plans the conversion from one format to another.
func (c *Converter) Route(from, to document.Format) (Route, bool) {
	return plan(c.registry.Backends(), from, to)
}

// Targets lists the formats a document in the given format can be delivered
// as, the format itself first.
func (c *Converter) Targets(from document.Format) []document.Format {
	return append([]document.Format{from}, reachable(c.registry.Backends(), from)...)
}

// Convert returns doc in the target format. A document already in the target
// format comes back unchanged.
func (c *Converter) Convert(ctx context.Context, doc document.RenderedDocument, target document.Format) (document.RenderedDocument, error) {
	if target == doc.Format {
		return doc, nil
	}
	if !target.Valid() {
		return document.RenderedDocument{}, docerr.New(docerr.KindUnsupportedFormat, "unknown output format %q", string(target))
	}
	if !doc.Format.Valid() {
		return document.RenderedDocument{}, docerr.New(docerr.KindUnsupportedFormat, "unknown source format %q", string(doc.Format))
	}

	route, ok := c.Route(doc.Format, target)
	if !ok {
		return document.RenderedDocument{}, docerr.New(docerr.KindConversionFailed,
			"no conversion route from %s to %s", doc.Format, target)
	}

	content := doc.Content
	for _, step := range route {
		if err := ctx.Err(); err != nil {
			return document.RenderedDocument{}, docerr.Wrap(docerr.KindConversionFailed, err, "%s", step.Edge)
		}
		backend, err := c.registry.Get(step.Backend)
		if err != nil {
			return document.RenderedDocument{}, docerr.Wrap(docerr.KindConversionFailed, err, "%s", step.Edge)
		}

		started := time.Now()
		out, err := backend.Convert(ctx, content, step.From, step.To)
		if err != nil {
			return document.RenderedDocument{}, docerr.Wrap(docerr.KindConversionFailed, err,
				"%s %s", step.Backend, step.Edge)
		}
		c.logger.Debug().
			Str("backend", step.Backend).
			Str("from", step.From.String()).
			Str("to", step.To.String()).
			Dur("duration", time.Since(started)).
			Msg("conversion step finished")
		content = out
	}

	return document.RenderedDocument{
		Format:   target,
		Content:  content,
		Filename: renameFor(doc, target),
	}, nil
}

// Close releases backends that hold external resources.
func (c *Converter) Close() error {
	var errs []error
	for _, backend := range c.registry.Backends() {
		closer, ok := backend.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("convert: close %s: %w", backend.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func renameFor(doc document.RenderedDocument, target document.Format) string {
	base := strings.TrimSuffix(doc.Filename, doc.Format.Extension())
	if base == "" {
		base = "document"
	}
	return base + target.Extension()
}
