// Package binding validates raw submitted strings against a TemplateSchema
// and produces typed values. Downstream stages only ever see TypedValue;
// nothing is inferred from raw strings after binding.
package binding

import (
	"time"

	"github.com/goliatone/go-docfill/pkg/schema"
)

// TypedValue is a validated field value: one of StringValue, DateValue,
// NumberValue or ChoiceValue.
type TypedValue interface {
	Type() schema.FieldType
	sealed()
}

// StringValue is accepted verbatim.
type StringValue struct {
	Value string
}

// DateValue is a calendar date (no time of day, UTC).
type DateValue struct {
	Time time.Time
}

// NumberValue is a parsed decimal number.
type NumberValue struct {
	Value float64
}

// ChoiceValue holds the declared choice the submission matched.
type ChoiceValue struct {
	Value string
}

func (StringValue) Type() schema.FieldType { return schema.TypeString }
func (DateValue) Type() schema.FieldType   { return schema.TypeDate }
func (NumberValue) Type() schema.FieldType { return schema.TypeFloat }
func (ChoiceValue) Type() schema.FieldType { return schema.TypeChoice }

func (StringValue) sealed() {}
func (DateValue) sealed()   {}
func (NumberValue) sealed() {}
func (ChoiceValue) sealed() {}

// Values maps field names to bound values. Unbound optional fields are
// absent.
type Values map[string]TypedValue
