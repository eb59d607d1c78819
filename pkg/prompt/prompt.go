// Package prompt collects field values for a template interactively, one
// prompt per field in schema order.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-docfill/pkg/binding"
	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/schema"
)

// ErrAborted signals the user interrupted the prompts.
var ErrAborted = errors.New("prompt: aborted")

// skipOption is offered first for optional choice fields.
const skipOption = "(skip)"

// Option configures a Filler.
type Option func(*Filler)

// WithDriver overrides the terminal driver.
func WithDriver(driver Driver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithChoicePolicy validates answers with the same matching the generator
// applies.
func WithChoicePolicy(policy binding.ChoicePolicy) Option {
	return func(f *Filler) {
		f.binder = binding.NewBinder(binding.WithChoicePolicy(policy))
	}
}

// Filler asks for every field of a schema.
type Filler struct {
	driver Driver
	binder *binding.Binder
}

// New constructs a Filler backed by survey unless another driver is given.
func New(options ...Option) *Filler {
	f := &Filler{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(f)
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver()
	}
	if f.binder == nil {
		f.binder = binding.NewBinder()
	}
	return f
}

// Fill prompts for each field and returns the raw answers. Values in
// defaults are offered as the prompt default. Empty answers to optional
// fields are left out.
func (f *Filler) Fill(ctx context.Context, spec schema.TemplateSchema, defaults map[string]string) (map[string]string, error) {
	if err := f.driver.Info(ctx, fmt.Sprintf("Template %s (%s)", spec.TemplateID, spec.Format)); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(spec.Fields))
	for _, field := range spec.Fields {
		answer, err := f.ask(ctx, field, defaults[field.Name])
		if err != nil {
			return nil, fmt.Errorf("prompt: field %q: %w", field.Name, err)
		}
		if answer == "" && !field.Required {
			continue
		}
		values[field.Name] = answer
	}
	return values, nil
}

func (f *Filler) ask(ctx context.Context, field schema.FieldSpec, current string) (string, error) {
	message := field.Label
	if !field.Required {
		message += " (optional)"
	}

	if field.Type == schema.TypeChoice {
		options := append([]string(nil), field.Choices...)
		if !field.Required {
			options = append([]string{skipOption}, options...)
		}
		idx, err := f.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      options,
			DefaultIndex: indexOf(options, current),
		})
		if err != nil {
			return "", err
		}
		if idx < 0 || idx >= len(options) {
			return "", fmt.Errorf("selection %d out of range", idx)
		}
		if options[idx] == skipOption && !field.Required {
			return "", nil
		}
		return options[idx], nil
	}

	answer, err := f.driver.Input(ctx, InputConfig{
		Message:   message,
		Default:   current,
		Help:      helpFor(field),
		Validator: f.validator(field),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// validator checks one answer with the binder, so the prompt rejects what
// generation would reject.
func (f *Filler) validator(field schema.FieldSpec) func(string) error {
	single := schema.TemplateSchema{Fields: []schema.FieldSpec{field}}
	return func(answer string) error {
		answer = strings.TrimSpace(answer)
		if answer == "" && !field.Required {
			return nil
		}
		_, err := f.binder.Bind(single, map[string]string{field.Name: answer})
		if err == nil {
			return nil
		}
		var bindErrs *docerr.BindingErrors
		if errors.As(err, &bindErrs) && bindErrs.Len() > 0 {
			return errors.New(bindErrs.Errors[0].Message)
		}
		return err
	}
}

func helpFor(field schema.FieldSpec) string {
	switch field.Type {
	case schema.TypeDate:
		return "Date as YYYY-MM-DD"
	case schema.TypeFloat:
		return "Decimal number, for example 12.5"
	default:
		return ""
	}
}
