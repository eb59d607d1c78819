package docerr

import "strings"

// BindingErrors aggregates every field failure of a single submission so a
// caller can correct all of them in one round trip. Errors keep schema order.
type BindingErrors struct {
	Template string
	Stage    string
	Errors   []*Error
}

// Add appends a field error.
func (b *BindingErrors) Add(err *Error) {
	if err == nil {
		return
	}
	b.Errors = append(b.Errors, err)
}

// Len returns the number of field errors.
func (b *BindingErrors) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Errors)
}

// ErrOrNil returns b as an error when it holds at least one failure.
func (b *BindingErrors) ErrOrNil() error {
	if b.Len() == 0 {
		return nil
	}
	return b
}

func (b *BindingErrors) Error() string {
	if b.Len() == 0 {
		return "no binding errors"
	}
	parts := make([]string, 0, len(b.Errors))
	for _, err := range b.Errors {
		parts = append(parts, err.Error())
	}
	return "binding failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the field errors to errors.Is and errors.As.
func (b *BindingErrors) Unwrap() []error {
	out := make([]error, 0, len(b.Errors))
	for _, err := range b.Errors {
		out = append(out, err)
	}
	return out
}

// Fields maps field names to their messages, preserving order per field.
func (b *BindingErrors) Fields() map[string][]string {
	if b.Len() == 0 {
		return nil
	}
	out := make(map[string][]string, len(b.Errors))
	for _, err := range b.Errors {
		out[err.Field] = append(out[err.Field], err.Message)
	}
	return out
}

// WithTemplate records the template on the aggregate and every field error.
func (b *BindingErrors) WithTemplate(id string) *BindingErrors {
	if b == nil {
		return nil
	}
	if b.Template == "" {
		b.Template = id
	}
	for _, err := range b.Errors {
		err.WithTemplate(id)
	}
	return b
}

// WithStage records the stage on the aggregate and every field error.
func (b *BindingErrors) WithStage(stage string) *BindingErrors {
	if b == nil {
		return nil
	}
	if b.Stage == "" {
		b.Stage = stage
	}
	for _, err := range b.Errors {
		err.WithStage(stage)
	}
	return b
}
