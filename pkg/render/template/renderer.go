package template

import "io"

// BodyRenderer executes template bodies that arrive as bytes, such as a
// stored document or one part of a docx package.
type BodyRenderer interface {
	// RenderCached compiles content once per key. The key must be derived
	// from the content so it never names two different bodies.
	RenderCached(key string, content []byte, data any) ([]byte, error)
}

// PageRenderer executes named templates from a file tree.
type PageRenderer interface {
	RenderPage(w io.Writer, name string, data any) error
}
