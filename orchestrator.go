// Package docfill fills placeholder fields in document templates and
// delivers the result in the requested format.
//
// The quickest path opens a template directory, generates one document and
// closes the directory again:
//
//	doc, err := docfill.Generate(ctx, "./templates", docfill.Request{
//		TemplateID: "agreement",
//		Values:     map[string]string{"agreement_number": "42", "date": "2024-01-01"},
//	})
//
// Long running callers build a store once with NewStore and share an
// Orchestrator between requests.
package docfill

import (
	"context"
	"errors"

	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/orchestrator"
	"github.com/goliatone/go-docfill/pkg/store"
)

// Request describes one generation; alias of orchestrator.Request.
type Request = orchestrator.Request

// RenderedDocument is the generated payload.
type RenderedDocument = document.RenderedDocument

// Format names a document format.
type Format = document.Format

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(options...)
}

// Generate opens dir with the startup refresh policy, runs one request and
// releases the store. Options are applied after the store, so a caller can
// still supply a converter or observer.
func Generate(ctx context.Context, dir string, req Request, options ...orchestrator.Option) (RenderedDocument, error) {
	templates, err := NewStore(ctx, store.WithRoot(dir), store.WithRefresh(store.RefreshStartup))
	if err != nil {
		return RenderedDocument{}, err
	}

	gen, err := orchestrator.New(append([]orchestrator.Option{orchestrator.WithStore(templates)}, options...)...)
	if err != nil {
		return RenderedDocument{}, errors.Join(err, templates.Close())
	}

	doc, err := gen.Generate(ctx, req)
	if closeErr := templates.Close(); closeErr != nil && err == nil {
		return RenderedDocument{}, closeErr
	}
	return doc, err
}
