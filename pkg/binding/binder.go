package binding

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/schema"
)

// DateLayout is the only accepted input layout for date fields, matching
// what HTML date inputs submit.
const DateLayout = "2006-01-02"

var decimalPattern = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

// ChoicePolicy controls how submissions are matched against declared
// choices. The zero value is strict: exact, case-sensitive comparison.
type ChoicePolicy struct {
	TrimSpace bool
	FoldCase  bool
}

// Option customises a Binder.
type Option func(*Binder)

// WithChoicePolicy overrides the strict choice matching.
func WithChoicePolicy(policy ChoicePolicy) Option {
	return func(b *Binder) {
		b.choices = policy
	}
}

// Binder validates submissions. It is stateless and safe for concurrent use.
type Binder struct {
	choices ChoicePolicy
}

// NewBinder constructs a Binder.
func NewBinder(options ...Option) *Binder {
	b := &Binder{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(b)
	}
	return b
}

// Policy returns the choice policy in effect.
func (b *Binder) Policy() ChoicePolicy {
	return b.choices
}

// Bind validates raw against every field of s. All failures are collected
// into a *docerr.BindingErrors in schema order. Submitted keys that are not
// part of the schema are ignored.
func (b *Binder) Bind(s schema.TemplateSchema, raw map[string]string) (Values, error) {
	values := make(Values, len(s.Fields))
	failures := &docerr.BindingErrors{Template: s.TemplateID}

	for _, field := range s.Fields {
		input, submitted := raw[field.Name]
		if !submitted || strings.TrimSpace(input) == "" {
			if field.Required {
				failures.Add(fieldError(docerr.KindMissingField, field, input, "field is required"))
			}
			continue
		}

		value, err := b.bindField(field, input)
		if err != nil {
			failures.Add(err)
			continue
		}
		values[field.Name] = value
	}

	if failures.Len() > 0 {
		return nil, failures.WithTemplate(s.TemplateID)
	}
	return values, nil
}

func (b *Binder) bindField(field schema.FieldSpec, input string) (TypedValue, *docerr.Error) {
	switch field.Type {
	case schema.TypeFloat:
		number, ok := ParseNumber(input)
		if !ok {
			return nil, fieldError(docerr.KindInvalidFormat, field, input, "expected a decimal number")
		}
		return NumberValue{Value: number}, nil
	case schema.TypeDate:
		date, err := time.Parse(DateLayout, strings.TrimSpace(input))
		if err != nil {
			return nil, fieldError(docerr.KindInvalidFormat, field, input, "expected a date formatted as YYYY-MM-DD")
		}
		return DateValue{Time: date}, nil
	case schema.TypeChoice:
		choice, ok := b.MatchChoice(field.Choices, input)
		if !ok {
			return nil, fieldError(docerr.KindInvalidChoice, field, input,
				fmt.Sprintf("must be one of: %s", strings.Join(field.Choices, ", ")))
		}
		return ChoiceValue{Value: choice}, nil
	default:
		return StringValue{Value: input}, nil
	}
}

// MatchChoice returns the declared choice matching input under the policy.
func (b *Binder) MatchChoice(choices []string, input string) (string, bool) {
	candidate := input
	if b.choices.TrimSpace {
		candidate = strings.TrimSpace(candidate)
	}
	for _, choice := range choices {
		declared := choice
		if b.choices.TrimSpace {
			declared = strings.TrimSpace(declared)
		}
		if declared == candidate || (b.choices.FoldCase && strings.EqualFold(declared, candidate)) {
			return choice, true
		}
	}
	return "", false
}

// ParseNumber parses a plain decimal number. A lone comma is accepted as the
// decimal separator ("12,5"); hex, NaN and infinities are rejected.
func ParseNumber(input string) (float64, bool) {
	text := strings.TrimSpace(input)
	if strings.Count(text, ",") == 1 && !strings.Contains(text, ".") {
		text = strings.Replace(text, ",", ".", 1)
	}
	if !decimalPattern.MatchString(text) {
		return 0, false
	}
	number, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(number, 0) || math.IsNaN(number) {
		return 0, false
	}
	return number, true
}

func fieldError(kind docerr.Kind, field schema.FieldSpec, input, message string) *docerr.Error {
	return &docerr.Error{
		Kind:     kind,
		Field:    field.Name,
		Expected: string(field.Type),
		Choices:  append([]string(nil), field.Choices...),
		Value:    input,
		Message:  message,
	}
}
