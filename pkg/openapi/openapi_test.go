package openapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/schema"
)

func sampleTemplates() []Template {
	return []Template{
		{
			Schema: schema.TemplateSchema{
				TemplateID: "letters/payment",
				Format:     document.FormatMarkdown,
				Fields: []schema.FieldSpec{
					{Name: "date", Label: "Date", Type: schema.TypeDate, Required: true},
					{Name: "amount", Label: "Amount", Type: schema.TypeFloat, Required: true},
					{Name: "currency", Label: "Currency", Type: schema.TypeChoice, Choices: []string{"EUR", "USD"}, Required: true},
					{Name: "closing", Label: "Closing", Type: schema.TypeString},
				},
			},
			Formats: []document.Format{document.FormatMarkdown, document.FormatHTML, document.FormatPDF},
		},
		{
			Schema: schema.TemplateSchema{
				TemplateID: "memo",
				Format:     document.FormatText,
				Fields:     []schema.FieldSpec{schema.DefaultFieldSpec("to")},
			},
		},
	}
}

func TestBuildProducesValidDocument(t *testing.T) {
	raw, err := Build(context.Background(), Info{Title: "docfill", Version: "1.0.0"}, sampleTemplates())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := Validate(context.Background(), raw); err != nil {
		t.Fatalf("round trip validate: %v", err)
	}

	var decoded struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.OpenAPI != Version {
		t.Fatalf("unexpected version %q", decoded.OpenAPI)
	}
	for _, path := range []string{
		"/api/templates",
		"/api/templates/letters/payment",
		"/api/templates/letters/payment/generate",
		"/api/templates/memo/generate",
	} {
		if _, ok := decoded.Paths[path]; !ok {
			t.Fatalf("missing path %s", path)
		}
	}
}

func TestValuesSchemaReflectsFields(t *testing.T) {
	doc, err := build(Info{}, sampleTemplates())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	values := doc.Components.Schemas["Values_letters_payment"].Value
	if diff := cmp.Diff([]string{"date", "amount", "currency"}, values.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
	if got := values.Properties["date"].Value.Format; got != "date" {
		t.Fatalf("date format = %q", got)
	}
	if got := values.Properties["amount"].Value.Pattern; got != floatPattern {
		t.Fatalf("amount pattern = %q", got)
	}
	if diff := cmp.Diff([]any{"EUR", "USD"}, values.Properties["currency"].Value.Enum); diff != "" {
		t.Fatalf("enum mismatch (-want +got):\n%s", diff)
	}

	op := doc.Paths.Find("/api/templates/letters/payment/generate").Post
	if op.Responses.Status(200).Value.Content.Get("application/pdf") == nil {
		t.Fatalf("expected pdf response content")
	}
	if op.Responses.Status(422) == nil {
		t.Fatalf("expected 422 response")
	}

	memo := doc.Paths.Find("/api/templates/memo/generate").Post
	if diff := cmp.Diff([]any{"text"}, memo.Parameters[0].Value.Schema.Value.Enum); diff != "" {
		t.Fatalf("native-only format enum (-want +got):\n%s", diff)
	}
}

func TestBuildRejectsCollidingComponents(t *testing.T) {
	templates := []Template{
		{Schema: schema.TemplateSchema{TemplateID: "a/b", Format: document.FormatText}},
		{Schema: schema.TemplateSchema{TemplateID: "a b", Format: document.FormatText}},
	}
	if _, err := Build(context.Background(), Info{}, templates); err == nil {
		t.Fatalf("expected collision error")
	}
}
