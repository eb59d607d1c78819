// Package openapi describes the generation HTTP API as an OpenAPI 3 document.
// Each template gets its own generate operation whose request body lists the
// template's fields, so clients can validate values before submitting.
//
// kin-openapi types stay internal; callers receive encoded JSON.
package openapi
