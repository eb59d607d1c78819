package schema_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/schema"
	"github.com/goliatone/go-docfill/pkg/testsupport"
)

func TestResolveWithoutMetadataDefaultsToString(t *testing.T) {
	tpl := testsupport.Template("letter", document.FormatText,
		[]byte("Dear {{ name }}, your total is {{ total }}. Regards, {{ name }}"), "")

	got, err := schema.NewResolver().Resolve(tpl)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := schema.TemplateSchema{
		TemplateID: "letter",
		Format:     document.FormatText,
		Fields: []schema.FieldSpec{
			{Name: "name", Label: "name", Type: schema.TypeString, Required: true},
			{Name: "total", Label: "total", Type: schema.TypeString, Required: true},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMergesMetadataAndDropsUnknownEntries(t *testing.T) {
	meta := `
date:
  label: Signing date
  type: date
city:
  type: choice
  choices: [Oslo, Bergen]
notes:
  required: false
unused:
  type: float
`
	tpl := testsupport.Template("agreement", document.FormatMarkdown,
		[]byte("# {{ agreement_number }}\n{{ date }} {{ city }}\n{{ notes }}"), meta)

	got, err := schema.NewResolver().Resolve(tpl)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := []schema.FieldSpec{
		{Name: "agreement_number", Label: "agreement_number", Type: schema.TypeString, Required: true},
		{Name: "date", Label: "Signing date", Type: schema.TypeDate, Required: true},
		{Name: "city", Label: "city", Type: schema.TypeChoice, Choices: []string{"Oslo", "Bergen"}, Required: true},
		{Name: "notes", Label: "notes", Type: schema.TypeString, Required: false},
	}
	if diff := cmp.Diff(want, got.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if _, ok := got.Field("unused"); ok {
		t.Fatalf("metadata-only field must not appear in the schema")
	}
}

func TestResolveAcceptsJSONSidecar(t *testing.T) {
	tpl := testsupport.Template("invoice", document.FormatText, []byte("{{ amount }}"), `{"amount": {"type": "float", "label": "Amount"}}`)

	got, err := schema.NewResolver().Resolve(tpl)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	field, _ := got.Field("amount")
	if field.Type != schema.TypeFloat || field.Label != "Amount" {
		t.Fatalf("unexpected field %+v", field)
	}
}

func TestResolveRejectsInvalidMetadata(t *testing.T) {
	cases := map[string]string{
		"not a mapping":     "- a\n- b\n",
		"unparseable":       "date: [unclosed\n",
		"unknown key":       "date:\n  type: date\n  format: dd.mm.yyyy\n",
		"unknown type":      "date:\n  type: datetime\n",
		"empty choices":     "city:\n  type: choice\n  choices: []\n",
		"missing choices":   "city:\n  type: choice\n",
		"blank choice":      "city:\n  type: choice\n  choices: [Oslo, ' ']\n",
		"duplicate choice":  "city:\n  type: choice\n  choices: [Oslo, Oslo]\n",
		"choices on string": "city:\n  choices: [Oslo]\n",
		"scalar entry":      "city: Oslo\n",
		"duplicate name":    "date:\n  type: date\n'date ':\n  label: Date\n",
	}

	for name, meta := range cases {
		t.Run(name, func(t *testing.T) {
			tpl := testsupport.Template("bad", document.FormatText, []byte("{{ date }} {{ city }}"), meta)
			_, err := schema.NewResolver().Resolve(tpl)
			if !errors.Is(err, docerr.ErrInvalidMetadata) {
				t.Fatalf("expected InvalidMetadata, got %v", err)
			}
			var de *docerr.Error
			if !errors.As(err, &de) || de.Template != "bad" {
				t.Fatalf("expected template context, got %#v", err)
			}
		})
	}
}

func TestResolveEmptyMetadataIsValid(t *testing.T) {
	tpl := testsupport.Template("blank", document.FormatText, []byte("{{ a }}"), "# nothing declared\n")

	got, err := schema.NewResolver().Resolve(tpl)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, got.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFieldType(t *testing.T) {
	for raw, want := range map[string]schema.FieldType{
		"":       schema.TypeString,
		"string": schema.TypeString,
		"date":   schema.TypeDate,
		"float":  schema.TypeFloat,
		"choice": schema.TypeChoice,
	} {
		got, ok := schema.ParseFieldType(raw)
		if !ok || got != want {
			t.Fatalf("ParseFieldType(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := schema.ParseFieldType("int"); ok {
		t.Fatalf("int must be rejected")
	}
}
