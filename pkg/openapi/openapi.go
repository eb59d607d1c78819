package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-docfill/pkg/binding"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/schema"
)

const (
	// Version is the OpenAPI version emitted.
	Version = "3.0.3"

	schemaTemplate = "TemplateSchema"
	schemaField    = "FieldSpec"
	schemaError    = "Error"
)

// floatPattern mirrors the decimal syntax accepted by the binder.
const floatPattern = `^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`

var componentName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Template is one generate operation: the schema plus the formats a caller
// may request for it.
type Template struct {
	Schema  schema.TemplateSchema
	Formats []document.Format
}

// Info fills the document's info object.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Build assembles the API description and returns it as JSON. The encoded
// document is loaded back and validated, so what callers serve is exactly
// what passed validation.
func Build(ctx context.Context, info Info, templates []Template) ([]byte, error) {
	doc, err := build(info, templates)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi: encode: %w", err)
	}
	if err := Validate(ctx, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Validate parses raw as an OpenAPI document, resolves its references and
// validates it.
func Validate(ctx context.Context, raw []byte) error {
	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return fmt.Errorf("openapi: load: %w", err)
	}
	if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return fmt.Errorf("openapi: validate: %w", err)
	}
	return nil
}

func build(info Info, templates []Template) (*openapi3.T, error) {
	if strings.TrimSpace(info.Title) == "" {
		info.Title = "docfill"
	}
	if strings.TrimSpace(info.Version) == "" {
		info.Version = "dev"
	}

	doc := &openapi3.T{
		OpenAPI: Version,
		Info: &openapi3.Info{
			Title:       info.Title,
			Version:     info.Version,
			Description: info.Description,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				schemaField:    openapi3.NewSchemaRef("", fieldSpecSchema()),
				schemaTemplate: openapi3.NewSchemaRef("", templateSchema()),
				schemaError:    openapi3.NewSchemaRef("", errorSchema()),
			},
		},
	}

	list := openapi3.NewArraySchema()
	list.Items = refSchema(schemaTemplate)
	doc.Paths.Set("/api/templates", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listTemplates",
			Summary:     "List templates with their fields",
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(200, jsonResponse("Template list",
					openapi3.NewObjectSchema().WithProperty("data", list))),
			),
		},
	})

	seen := make(map[string]string, len(templates))
	for _, tpl := range templates {
		id := tpl.Schema.TemplateID
		if id == "" {
			return nil, errors.New("openapi: template id is required")
		}
		name := "Values_" + componentName.ReplaceAllString(id, "_")
		if other, ok := seen[name]; ok {
			return nil, fmt.Errorf("openapi: templates %q and %q share component %q", other, id, name)
		}
		seen[name] = id

		doc.Components.Schemas[name] = openapi3.NewSchemaRef("", valuesSchema(tpl.Schema))
		doc.Paths.Set("/api/templates/"+id, &openapi3.PathItem{
			Get: &openapi3.Operation{
				OperationID: "describe_" + name,
				Summary:     "Describe " + id,
				Tags:        []string{id},
				Responses: openapi3.NewResponses(
					openapi3.WithStatus(200, refResponse("Template schema", schemaTemplate)),
					openapi3.WithStatus(404, errorResponse("Unknown template")),
				),
			},
		})
		doc.Paths.Set("/api/templates/"+id+"/generate", &openapi3.PathItem{
			Post: generateOperation(id, name, tpl),
		})
	}
	return doc, nil
}

func generateOperation(id, component string, tpl Template) *openapi3.Operation {
	formats := tpl.Formats
	if len(formats) == 0 {
		formats = []document.Format{tpl.Schema.Format}
	}

	enum := make([]any, 0, len(formats))
	content := openapi3.Content{}
	for _, f := range formats {
		enum = append(enum, f.String())
		mediaType, _, _ := strings.Cut(f.ContentType(), ";")
		content[mediaType] = openapi3.NewMediaType().
			WithSchema(openapi3.NewStringSchema().WithFormat("binary"))
	}

	formatParam := openapi3.NewQueryParameter("format").
		WithDescription("Output format, defaults to " + tpl.Schema.Format.String()).
		WithSchema(openapi3.NewStringSchema().WithEnum(enum...))

	body := openapi3.NewRequestBody().WithRequired(true)
	ref := refSchema(component)
	body.Content = openapi3.Content{
		"application/json":                  openapi3.NewMediaType().WithSchemaRef(ref),
		"application/x-www-form-urlencoded": openapi3.NewMediaType().WithSchemaRef(ref),
	}

	ok := openapi3.NewResponse().WithDescription("Generated document")
	ok.Content = content

	return &openapi3.Operation{
		OperationID: "generate_" + component,
		Summary:     "Generate " + id,
		Tags:        []string{id},
		Parameters:  openapi3.Parameters{{Value: formatParam}},
		RequestBody: &openapi3.RequestBodyRef{Value: body},
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(200, &openapi3.ResponseRef{Value: ok}),
			openapi3.WithStatus(400, errorResponse("Unsupported output format")),
			openapi3.WithStatus(404, errorResponse("Unknown template")),
			openapi3.WithStatus(422, errorResponse("Field values failed validation")),
			openapi3.WithStatus(502, errorResponse("Conversion backend failed")),
		),
	}
}

// valuesSchema describes the raw strings a submission carries. Dates and
// floats stay strings on the wire and are constrained by format or pattern.
func valuesSchema(s schema.TemplateSchema) *openapi3.Schema {
	out := openapi3.NewObjectSchema()
	var required []string
	for _, field := range s.Fields {
		prop := openapi3.NewStringSchema()
		prop.Title = field.Label
		switch field.Type {
		case schema.TypeDate:
			prop.WithFormat("date")
			prop.Description = "Layout " + binding.DateLayout
		case schema.TypeFloat:
			prop.WithPattern(floatPattern)
		case schema.TypeChoice:
			enum := make([]any, 0, len(field.Choices))
			for _, choice := range field.Choices {
				enum = append(enum, choice)
			}
			prop.WithEnum(enum...)
		}
		out.WithProperty(field.Name, prop)
		if field.Required {
			required = append(required, field.Name)
		}
	}
	out.Required = required
	return out
}

func fieldSpecSchema() *openapi3.Schema {
	types := []any{
		string(schema.TypeString),
		string(schema.TypeDate),
		string(schema.TypeFloat),
		string(schema.TypeChoice),
	}
	s := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("label", openapi3.NewStringSchema()).
		WithProperty("type", openapi3.NewStringSchema().WithEnum(types...)).
		WithProperty("choices", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("required", openapi3.NewBoolSchema())
	s.Required = []string{"name", "label", "type", "required"}
	return s
}

func templateSchema() *openapi3.Schema {
	formats := make([]any, 0, len(document.Formats()))
	for _, f := range document.Formats() {
		formats = append(formats, f.String())
	}
	s := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema()).
		WithProperty("format", openapi3.NewStringSchema().WithEnum(formats...)).
		WithProperty("formats", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema().WithEnum(formats...)))
	fields := openapi3.NewArraySchema()
	fields.Items = refSchema(schemaField)
	s.WithProperty("fields", fields)
	s.Required = []string{"id", "format", "fields"}
	return s
}

func errorSchema() *openapi3.Schema {
	fieldError := openapi3.NewObjectSchema().
		WithProperty("field", openapi3.NewStringSchema()).
		WithProperty("kind", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("expected", openapi3.NewStringSchema()).
		WithProperty("choices", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))
	return openapi3.NewObjectSchema().
		WithProperty("kind", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("template", openapi3.NewStringSchema()).
		WithProperty("stage", openapi3.NewStringSchema()).
		WithProperty("fields", openapi3.NewArraySchema().WithItems(fieldError))
}

func refSchema(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name}
}

func jsonResponse(description string, s *openapi3.Schema) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().
		WithDescription(description).
		WithContent(openapi3.NewContentWithJSONSchema(s))}
}

func refResponse(description, name string) *openapi3.ResponseRef {
	resp := openapi3.NewResponse().WithDescription(description)
	resp.Content = openapi3.Content{
		"application/json": openapi3.NewMediaType().WithSchemaRef(refSchema(name)),
	}
	return &openapi3.ResponseRef{Value: resp}
}

func errorResponse(description string) *openapi3.ResponseRef {
	return refResponse(description, schemaError)
}
