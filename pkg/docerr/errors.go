// Package docerr defines the error taxonomy surfaced by the generation
// pipeline. Every failure carries a stable Kind that transports can map to a
// status code, plus enough context (template, field, expected type, allowed
// choices) to build a helpful message.
package docerr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidMetadata   Kind = "invalid_metadata"
	KindMissingField      Kind = "missing_field"
	KindInvalidFormat     Kind = "invalid_format"
	KindInvalidChoice     Kind = "invalid_choice"
	KindRenderFailed      Kind = "render_failed"
	KindConversionFailed  Kind = "conversion_failed"
	KindUnsupportedFormat Kind = "unsupported_format"
)

// Sentinels for errors.Is matching against any *Error of the same kind.
var (
	ErrNotFound          = errors.New("template not found")
	ErrInvalidMetadata   = errors.New("invalid template metadata")
	ErrMissingField      = errors.New("missing field")
	ErrInvalidFormat     = errors.New("invalid field format")
	ErrInvalidChoice     = errors.New("invalid choice")
	ErrRenderFailed      = errors.New("render failed")
	ErrConversionFailed  = errors.New("conversion failed")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

var sentinels = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindInvalidMetadata:   ErrInvalidMetadata,
	KindMissingField:      ErrMissingField,
	KindInvalidFormat:     ErrInvalidFormat,
	KindInvalidChoice:     ErrInvalidChoice,
	KindRenderFailed:      ErrRenderFailed,
	KindConversionFailed:  ErrConversionFailed,
	KindUnsupportedFormat: ErrUnsupportedFormat,
}

// Sentinel returns the errors.Is target for the kind.
func (k Kind) Sentinel() error {
	return sentinels[k]
}

// Binding reports whether the kind is produced by value binding.
func (k Kind) Binding() bool {
	switch k {
	case KindMissingField, KindInvalidFormat, KindInvalidChoice:
		return true
	default:
		return false
	}
}

// Error is a classified pipeline failure.
type Error struct {
	Kind     Kind
	Stage    string
	Template string
	Field    string
	// Expected names the declared field type for binding failures.
	Expected string
	Choices  []string
	Value    string
	Message  string
	Err      error
}

// New builds an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Template != "" {
		b.WriteString(" [")
		b.WriteString(e.Template)
		b.WriteString("]")
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(strconv.Quote(e.Field))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel so callers can write errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	return target != nil && target == e.Kind.Sentinel()
}

// WithTemplate records the template identifier on the error.
func (e *Error) WithTemplate(id string) *Error {
	if e != nil && e.Template == "" {
		e.Template = id
	}
	return e
}

// WithStage records the pipeline stage that failed.
func (e *Error) WithStage(stage string) *Error {
	if e != nil && e.Stage == "" {
		e.Stage = stage
	}
	return e
}

// KindOf returns the kind of the first classified error in err's chain. The
// second result is false for unclassified errors.
func KindOf(err error) (Kind, bool) {
	var be *BindingErrors
	if errors.As(err, &be) && len(be.Errors) > 0 {
		return be.Errors[0].Kind, true
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind, true
	}
	return "", false
}
