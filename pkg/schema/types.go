package schema

import (
	"strings"

	"github.com/goliatone/go-docfill/pkg/document"
)

// FieldType is the declared type of a field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeDate   FieldType = "date"
	TypeFloat  FieldType = "float"
	TypeChoice FieldType = "choice"
)

// ParseFieldType resolves a declared type. An empty value means string.
func ParseFieldType(raw string) (FieldType, bool) {
	switch FieldType(strings.TrimSpace(raw)) {
	case "", TypeString:
		return TypeString, true
	case TypeDate:
		return TypeDate, true
	case TypeFloat:
		return TypeFloat, true
	case TypeChoice:
		return TypeChoice, true
	default:
		return "", false
	}
}

// FieldSpec describes one placeholder of a template.
type FieldSpec struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Choices  []string  `json:"choices,omitempty"`
	Required bool      `json:"required"`
}

// DefaultFieldSpec describes a placeholder that has no metadata entry.
func DefaultFieldSpec(name string) FieldSpec {
	return FieldSpec{
		Name:     name,
		Label:    name,
		Type:     TypeString,
		Required: true,
	}
}

// TemplateSchema is the ordered field list of a template. Field order is
// the first-seen order of placeholders in the body.
type TemplateSchema struct {
	TemplateID string          `json:"id"`
	Format     document.Format `json:"format"`
	Fields     []FieldSpec     `json:"fields"`
}

// Field looks up a field by name.
func (s TemplateSchema) Field(name string) (FieldSpec, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// Names returns the field names in schema order.
func (s TemplateSchema) Names() []string {
	out := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		out = append(out, field.Name)
	}
	return out
}
