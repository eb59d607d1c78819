// Package template holds the seams between docfill and its template engine.
// Document bodies go through BodyRenderer, the HTTP pages through
// PageRenderer. The pongo2 implementation lives in the gotemplate
// subpackage.
package template
