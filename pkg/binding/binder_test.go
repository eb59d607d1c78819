package binding_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/binding"
	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/schema"
)

func agreementSchema() schema.TemplateSchema {
	return schema.TemplateSchema{
		TemplateID: "agreement",
		Fields: []schema.FieldSpec{
			{Name: "agreement_number", Label: "agreement_number", Type: schema.TypeString, Required: true},
			{Name: "date", Label: "date", Type: schema.TypeDate, Required: true},
			{Name: "amount", Label: "amount", Type: schema.TypeFloat, Required: true},
			{Name: "city", Label: "city", Type: schema.TypeChoice, Choices: []string{"Oslo", "Bergen"}, Required: true},
			{Name: "notes", Label: "notes", Type: schema.TypeString, Required: false},
		},
	}
}

func TestBindProducesTypedValues(t *testing.T) {
	values, err := binding.NewBinder().Bind(agreementSchema(), map[string]string{
		"agreement_number": "42",
		"date":             "2024-01-01",
		"amount":           "12.5",
		"city":             "Oslo",
		"unexpected":       "ignored",
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	want := binding.Values{
		"agreement_number": binding.StringValue{Value: "42"},
		"date":             binding.DateValue{Time: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
		"amount":           binding.NumberValue{Value: 12.5},
		"city":             binding.ChoiceValue{Value: "Oslo"},
	}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if _, ok := values["unexpected"]; ok {
		t.Fatalf("fields outside the schema must be ignored")
	}
}

func TestBindCollectsEveryFailure(t *testing.T) {
	_, err := binding.NewBinder().Bind(agreementSchema(), map[string]string{
		"date":   "01.01.2024",
		"amount": "abc",
		"city":   "oslo",
		"notes":  "",
	})

	var be *docerr.BindingErrors
	if !errors.As(err, &be) {
		t.Fatalf("expected BindingErrors, got %v", err)
	}

	type summary struct {
		Kind  docerr.Kind
		Field string
	}
	var got []summary
	for _, fe := range be.Errors {
		got = append(got, summary{Kind: fe.Kind, Field: fe.Field})
	}
	want := []summary{
		{Kind: docerr.KindMissingField, Field: "agreement_number"},
		{Kind: docerr.KindInvalidFormat, Field: "date"},
		{Kind: docerr.KindInvalidFormat, Field: "amount"},
		{Kind: docerr.KindInvalidChoice, Field: "city"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	choiceErr := be.Errors[3]
	if diff := cmp.Diff([]string{"Oslo", "Bergen"}, choiceErr.Choices); diff != "" {
		t.Fatalf("choice context mismatch (-want +got):\n%s", diff)
	}
	if choiceErr.Expected != "choice" || choiceErr.Value != "oslo" || be.Template != "agreement" {
		t.Fatalf("missing error context: %+v", choiceErr)
	}
}

func TestBindMissingRequiredField(t *testing.T) {
	s := schema.TemplateSchema{
		TemplateID: "agreement",
		Fields: []schema.FieldSpec{
			{Name: "agreement_number", Type: schema.TypeString, Required: true},
			{Name: "date", Type: schema.TypeDate, Required: true},
		},
	}

	for name, input := range map[string]map[string]string{
		"absent": {"date": "2024-01-01"},
		"blank":  {"agreement_number": "   ", "date": "2024-01-01"},
	} {
		t.Run(name, func(t *testing.T) {
			values, err := binding.NewBinder().Bind(s, input)
			if values != nil {
				t.Fatalf("no values expected on failure")
			}
			if !errors.Is(err, docerr.ErrMissingField) {
				t.Fatalf("expected MissingField, got %v", err)
			}
			var be *docerr.BindingErrors
			errors.As(err, &be)
			if be.Len() != 1 || be.Errors[0].Field != "agreement_number" {
				t.Fatalf("unexpected errors: %v", err)
			}
		})
	}
}

func TestBindOptionalFieldLeftUnbound(t *testing.T) {
	s := schema.TemplateSchema{Fields: []schema.FieldSpec{{Name: "notes", Type: schema.TypeString}}}

	values, err := binding.NewBinder().Bind(s, map[string]string{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("optional field must stay unbound, got %v", values)
	}
}

func TestBindStringIsVerbatim(t *testing.T) {
	s := schema.TemplateSchema{Fields: []schema.FieldSpec{{Name: "name", Type: schema.TypeString, Required: true}}}

	values, err := binding.NewBinder().Bind(s, map[string]string{"name": "  Ada <Lovelace> & co  "})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if diff := cmp.Diff(binding.StringValue{Value: "  Ada <Lovelace> & co  "}, values["name"]); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}
}

func TestParseNumber(t *testing.T) {
	valid := map[string]float64{
		"12.5":   12.5,
		"12,5":   12.5,
		" 42 ":   42,
		"-0.25":  -0.25,
		".5":     0.5,
		"1e3":    1000,
		"+7":     7,
		"1000.0": 1000,
	}
	for input, want := range valid {
		got, ok := binding.ParseNumber(input)
		if !ok || got != want {
			t.Fatalf("ParseNumber(%q) = %v, %v; want %v", input, got, ok, want)
		}
	}

	for _, input := range []string{"abc", "", "1,000.5", "1,2,3", "0x10", "NaN", "Inf", "1e999", "12.5kg"} {
		if _, ok := binding.ParseNumber(input); ok {
			t.Fatalf("ParseNumber(%q) should fail", input)
		}
	}
}

func TestChoicePolicies(t *testing.T) {
	choices := []string{"Oslo", "Bergen"}

	cases := []struct {
		name   string
		policy binding.ChoicePolicy
		input  string
		want   string
		ok     bool
	}{
		{name: "strict exact", input: "Oslo", want: "Oslo", ok: true},
		{name: "strict case mismatch", input: "oslo"},
		{name: "strict padded", input: " Oslo "},
		{name: "trimmed padded", policy: binding.ChoicePolicy{TrimSpace: true}, input: " Oslo ", want: "Oslo", ok: true},
		{name: "trimmed case mismatch", policy: binding.ChoicePolicy{TrimSpace: true}, input: "oslo"},
		{name: "fold case", policy: binding.ChoicePolicy{FoldCase: true}, input: "BERGEN", want: "Bergen", ok: true},
		{name: "trim and fold", policy: binding.ChoicePolicy{TrimSpace: true, FoldCase: true}, input: "  bergen", want: "Bergen", ok: true},
		{name: "unknown", policy: binding.ChoicePolicy{TrimSpace: true, FoldCase: true}, input: "Trondheim"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := binding.NewBinder(binding.WithChoicePolicy(tc.policy))
			got, ok := b.MatchChoice(choices, tc.input)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("MatchChoice(%q) = %q, %v; want %q, %v", tc.input, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestBindChoiceBindsDeclaredText(t *testing.T) {
	s := schema.TemplateSchema{Fields: []schema.FieldSpec{{Name: "city", Type: schema.TypeChoice, Choices: []string{"Oslo"}, Required: true}}}
	b := binding.NewBinder(binding.WithChoicePolicy(binding.ChoicePolicy{TrimSpace: true, FoldCase: true}))

	values, err := b.Bind(s, map[string]string{"city": " OSLO "})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if diff := cmp.Diff(binding.ChoiceValue{Value: "Oslo"}, values["city"]); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}
}
