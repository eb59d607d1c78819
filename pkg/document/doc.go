// Package document defines the value types shared by every stage of the
// generation pipeline: the closed Format enumeration, the immutable Template
// loaded by the store, and the request-local RenderedDocument handed back to
// callers.
package document
