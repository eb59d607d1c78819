package document

import (
	"path"
	"time"
)

// Metadata carries the raw sidecar document that accompanies a template.
type Metadata struct {
	Name string
	Raw  []byte
}

// Template is a template file as loaded by the store. Body and Metadata are
// owned by the store snapshot and must not be mutated by callers.
type Template struct {
	ID       string
	Name     string
	Format   Format
	Body     []byte
	Metadata *Metadata
	ModTime  time.Time
}

// HasMetadata reports whether a sidecar file was found for the template.
func (t Template) HasMetadata() bool {
	return t.Metadata != nil
}

// RenderedDocument is the request-local output of the pipeline.
type RenderedDocument struct {
	Format   Format
	Content  []byte
	Filename string
}

// NewRenderedDocument names the payload after the template identifier and
// the format extension.
func NewRenderedDocument(templateID string, format Format, content []byte) RenderedDocument {
	return RenderedDocument{
		Format:   format,
		Content:  content,
		Filename: FilenameFor(templateID, format),
	}
}

// ContentType returns the MIME type of the payload.
func (d RenderedDocument) ContentType() string {
	return d.Format.ContentType()
}

// FilenameFor builds "<base>.<ext>" from a possibly nested template id.
func FilenameFor(templateID string, format Format) string {
	base := path.Base(templateID)
	if base == "." || base == "/" || base == "" {
		base = "document"
	}
	return base + format.Extension()
}
