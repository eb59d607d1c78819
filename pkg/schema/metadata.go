package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldMeta is the sidecar entry of a single field after validation.
type FieldMeta struct {
	Label    string
	Type     FieldType
	Choices  []string
	Required *bool
}

// Metadata maps field names to their sidecar entries.
type Metadata map[string]FieldMeta

type fieldMetaFile struct {
	Label    string   `yaml:"label"`
	Type     string   `yaml:"type"`
	Choices  []string `yaml:"choices"`
	Required *bool    `yaml:"required"`
}

// ParseMetadata decodes and validates a sidecar document. source names the
// file in error messages. An empty document yields empty metadata.
func ParseMetadata(raw []byte, source string) (Metadata, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Metadata{}, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var doc map[string]*fieldMetaFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Metadata{}, nil
		}
		return nil, fmt.Errorf("schema: parse %s: %w", source, err)
	}

	out := make(Metadata, len(doc))
	for name, entry := range doc {
		field := strings.TrimSpace(name)
		if field == "" {
			return nil, fmt.Errorf("schema: %s declares a field with an empty name", source)
		}
		if _, dup := out[field]; dup {
			return nil, fmt.Errorf("schema: %s declares field %q more than once", source, field)
		}
		meta, err := normaliseEntry(field, entry)
		if err != nil {
			return nil, fmt.Errorf("schema: %s: %w", source, err)
		}
		out[field] = meta
	}
	return out, nil
}

func normaliseEntry(name string, entry *fieldMetaFile) (FieldMeta, error) {
	if entry == nil {
		return FieldMeta{Type: TypeString}, nil
	}

	fieldType, ok := ParseFieldType(entry.Type)
	if !ok {
		return FieldMeta{}, fmt.Errorf("field %q has unknown type %q", name, entry.Type)
	}

	meta := FieldMeta{
		Label:    strings.TrimSpace(entry.Label),
		Type:     fieldType,
		Required: entry.Required,
	}

	if fieldType != TypeChoice {
		if len(entry.Choices) > 0 {
			return FieldMeta{}, fmt.Errorf("field %q declares choices but has type %q", name, fieldType)
		}
		return meta, nil
	}

	if len(entry.Choices) == 0 {
		return FieldMeta{}, fmt.Errorf("choice field %q declares no choices", name)
	}
	seen := make(map[string]struct{}, len(entry.Choices))
	choices := make([]string, 0, len(entry.Choices))
	for idx, choice := range entry.Choices {
		if strings.TrimSpace(choice) == "" {
			return FieldMeta{}, fmt.Errorf("choice field %q has an empty choice at index %d", name, idx)
		}
		if _, dup := seen[choice]; dup {
			return FieldMeta{}, fmt.Errorf("choice field %q repeats choice %q", name, choice)
		}
		seen[choice] = struct{}{}
		choices = append(choices, choice)
	}
	meta.Choices = choices
	return meta, nil
}
