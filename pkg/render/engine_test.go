package render_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/binding"
	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/render"
	"github.com/goliatone/go-docfill/pkg/testsupport"
)

func newEngine(t *testing.T, options ...render.Option) *render.Engine {
	t.Helper()
	engine, err := render.New(options...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func date(t *testing.T, raw string) binding.DateValue {
	t.Helper()
	parsed, err := time.Parse(binding.DateLayout, raw)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return binding.DateValue{Time: parsed}
}

func TestRenderTextSubstitutesCanonicalValues(t *testing.T) {
	engine := newEngine(t)
	tpl := testsupport.Template("agreement", document.FormatText,
		[]byte("No. {{ agreement_number }} of {{date}}, total {{ total }} {{ currency }}."), "")

	values := binding.Values{
		"agreement_number": binding.StringValue{Value: "42"},
		"date":             date(t, "2024-01-01"),
		"total":            binding.NumberValue{Value: 12.5},
		"currency":         binding.ChoiceValue{Value: "EUR"},
	}

	doc, err := engine.Render(testsupport.Context(), tpl, values)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	want := "No. 42 of 2024-01-01, total 12.5 EUR."
	if diff := cmp.Diff(want, string(doc.Content)); diff != "" {
		t.Fatalf("content mismatch (-want +got):\n%s", diff)
	}
	if doc.Format != document.FormatText || doc.Filename != "agreement.txt" {
		t.Fatalf("unexpected document metadata: %+v", doc)
	}
}

func TestRenderUnboundPlaceholderIsEmpty(t *testing.T) {
	engine := newEngine(t)
	tpl := testsupport.Template("note", document.FormatMarkdown, []byte("[{{ note }}]"), "")

	doc, err := engine.Render(testsupport.Context(), tpl, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := string(doc.Content); got != "[]" {
		t.Fatalf("expected empty substitution, got %q", got)
	}
}

func TestRenderAcceptsAwkwardPlaceholderNames(t *testing.T) {
	engine := newEngine(t)
	tpl := testsupport.Template("odd", document.FormatText, []byte("{{ 1st }}/{{ in }}/{{ not }}/{{ 1st }}"), "")

	values := binding.Values{
		"1st": binding.StringValue{Value: "a"},
		"in":  binding.StringValue{Value: "b"},
		"not": binding.StringValue{Value: "c"},
	}
	doc, err := engine.Render(testsupport.Context(), tpl, values)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := string(doc.Content); got != "a/b/c/a" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestRenderEscapesForTargetMarkup(t *testing.T) {
	engine := newEngine(t)
	values := binding.Values{"who": binding.StringValue{Value: `Tom & "Jerry" <co>`}}

	cases := []struct {
		format document.Format
		want   string
	}{
		{document.FormatHTML, "<p>Tom &amp; &#34;Jerry&#34; &lt;co&gt;</p>"},
		{document.FormatMarkdown, `<p>Tom & "Jerry" <co></p>`},
		{document.FormatText, `<p>Tom & "Jerry" <co></p>`},
	}
	for _, tc := range cases {
		t.Run(string(tc.format), func(t *testing.T) {
			tpl := testsupport.Template("esc", tc.format, []byte("<p>{{ who }}</p>"), "")
			doc, err := engine.Render(testsupport.Context(), tpl, values)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if diff := cmp.Diff(tc.want, string(doc.Content)); diff != "" {
				t.Fatalf("escaping mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderTemplateTagsSeeFields(t *testing.T) {
	engine := newEngine(t)
	tpl := testsupport.Template("cond", document.FormatHTML,
		[]byte(`{{ name }}{% if fields.vip %} (VIP){% endif %}`), "")

	doc, err := engine.Render(testsupport.Context(), tpl, binding.Values{
		"name": binding.StringValue{Value: "Ada"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := string(doc.Content); got != "Ada" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestRenderDateLayoutOption(t *testing.T) {
	engine := newEngine(t, render.WithDateLayout("02.01.2006"))
	tpl := testsupport.Template("d", document.FormatText, []byte("{{ date }}"), "")

	doc, err := engine.Render(testsupport.Context(), tpl, binding.Values{"date": date(t, "2024-01-01")})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := string(doc.Content); got != "01.01.2024" {
		t.Fatalf("unexpected date %q", got)
	}
	if engine.DateLayout() != "02.01.2006" {
		t.Fatalf("unexpected layout %q", engine.DateLayout())
	}
}

func TestRenderDocxSubstitutesAcrossRunsAndParts(t *testing.T) {
	engine := newEngine(t)
	body := testsupport.BuildDocx(t,
		testsupport.DocumentXML(
			testsupport.Paragraph("Agreement No. ", "{{ agreement_", "number }}"),
			testsupport.Paragraph("Client: {{ client }}"),
		),
		map[string]string{
			"word/header1.xml": `<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>{{ client }}</w:t></w:r></w:p></w:hdr>`,
			"word/styles.xml":  `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">{{ untouched }}</w:styles>`,
		},
	)
	tpl := testsupport.Template("agreement", document.FormatDOCX, body, "")

	values := binding.Values{
		"agreement_number": binding.StringValue{Value: "42"},
		"client":           binding.StringValue{Value: "Smith & Sons"},
	}
	doc, err := engine.Render(testsupport.Context(), tpl, values)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	main := testsupport.ReadDocxPart(t, doc.Content, "word/document.xml")
	if !strings.Contains(main, "Agreement No. 42") {
		t.Fatalf("expected substituted number, got:\n%s", main)
	}
	if !strings.Contains(main, "Client: Smith &amp; Sons") {
		t.Fatalf("expected escaped client, got:\n%s", main)
	}
	if strings.Contains(main, "{{") {
		t.Fatalf("placeholder leaked into output:\n%s", main)
	}

	header := testsupport.ReadDocxPart(t, doc.Content, "word/header1.xml")
	if !strings.Contains(header, "Smith &amp; Sons") {
		t.Fatalf("expected header substitution, got:\n%s", header)
	}

	styles := testsupport.ReadDocxPart(t, doc.Content, "word/styles.xml")
	if !strings.Contains(styles, "{{ untouched }}") {
		t.Fatalf("non-text part must be copied verbatim, got:\n%s", styles)
	}
	if !bytes.Equal(tpl.Body, body) {
		t.Fatalf("template body was mutated")
	}
}

func TestRenderDocxIsDeterministic(t *testing.T) {
	engine := newEngine(t)
	body := testsupport.BuildDocx(t, testsupport.DocumentXML(testsupport.Paragraph("{{ a }} {{ b }}")), nil)
	tpl := testsupport.Template("det", document.FormatDOCX, body, "")
	values := binding.Values{
		"a": binding.NumberValue{Value: 42},
		"b": date(t, "2024-01-01"),
	}

	first, err := engine.Render(testsupport.Context(), tpl, values)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := engine.Render(testsupport.Context(), tpl, values)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !bytes.Equal(first.Content, second.Content) {
		t.Fatalf("renders differ for identical input")
	}
}

func TestRenderDocxWithoutPlaceholdersReturnsBody(t *testing.T) {
	engine := newEngine(t)
	body := testsupport.BuildDocx(t, testsupport.DocumentXML(testsupport.Paragraph("static")), nil)
	tpl := testsupport.Template("static", document.FormatDOCX, body, "")

	doc, err := engine.Render(testsupport.Context(), tpl, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(doc.Content, body) {
		t.Fatalf("expected body unchanged")
	}

	want := bytes.Clone(body)
	doc.Content[0] ^= 0xff
	if !bytes.Equal(body, want) {
		t.Fatalf("document content shares memory with the template body")
	}
}

func TestRenderFailures(t *testing.T) {
	engine := newEngine(t)

	t.Run("corrupt docx", func(t *testing.T) {
		tpl := testsupport.Template("broken", document.FormatDOCX, []byte("not a zip"), "")
		_, err := engine.Render(testsupport.Context(), tpl, nil)
		if !errors.Is(err, docerr.ErrRenderFailed) {
			t.Fatalf("expected render failure, got %v", err)
		}
		var typed *docerr.Error
		if !errors.As(err, &typed) || typed.Template != "broken" {
			t.Fatalf("expected template id on error, got %#v", err)
		}
	})

	t.Run("bad tag", func(t *testing.T) {
		tpl := testsupport.Template("tag", document.FormatHTML, []byte("{% if %}"), "")
		if _, err := engine.Render(testsupport.Context(), tpl, nil); !errors.Is(err, docerr.ErrRenderFailed) {
			t.Fatalf("expected render failure, got %v", err)
		}
	})

	t.Run("sandboxed include", func(t *testing.T) {
		tpl := testsupport.Template("inc", document.FormatHTML, []byte(`{% include "/etc/passwd" %}`), "")
		if _, err := engine.Render(testsupport.Context(), tpl, nil); !errors.Is(err, docerr.ErrRenderFailed) {
			t.Fatalf("expected render failure, got %v", err)
		}
	})

	t.Run("output only format", func(t *testing.T) {
		tpl := testsupport.Template("pdf", document.FormatPDF, []byte("%PDF"), "")
		if _, err := engine.Render(testsupport.Context(), tpl, nil); !errors.Is(err, docerr.ErrUnsupportedFormat) {
			t.Fatalf("expected unsupported format, got %v", err)
		}
	})
}

func TestCanonicalText(t *testing.T) {
	cases := []struct {
		name  string
		value binding.TypedValue
		want  string
	}{
		{"nil", nil, ""},
		{"string", binding.StringValue{Value: " keep "}, " keep "},
		{"choice", binding.ChoiceValue{Value: "Yes"}, "Yes"},
		{"integral number", binding.NumberValue{Value: 42}, "42"},
		{"fraction", binding.NumberValue{Value: 12.5}, "12.5"},
		{"large number", binding.NumberValue{Value: 1e21}, "1000000000000000000000"},
		{"date", binding.DateValue{Time: testsupport.FixtureTime}, "2024-01-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := render.CanonicalText(tc.value, ""); got != tc.want {
				t.Fatalf("CanonicalText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEscapeDropsInvalidXMLRunes(t *testing.T) {
	got := render.Escape(document.FormatDOCX, "a\x00b\tc<")
	if got != "ab\tc&lt;" {
		t.Fatalf("unexpected escape %q", got)
	}
}

func TestRenderMarkdownBraceHash(t *testing.T) {
	engine := newEngine(t)
	values := binding.Values{"name": binding.StringValue{Value: "Ada"}}

	raw := testsupport.Template("anchors", document.FormatMarkdown, []byte("## Intro {#intro}\n\nHi {{ name }}\n"), "")
	if _, err := engine.Render(testsupport.Context(), raw, values); !errors.Is(err, docerr.ErrRenderFailed) {
		t.Fatalf("expected render failure for a bare {#, got %v", err)
	}

	escaped := testsupport.Template("anchors", document.FormatMarkdown,
		[]byte("## Intro {% templatetag opencomment %}intro}\n\nHi {{ name }}\n"), "")
	doc, err := engine.Render(testsupport.Context(), escaped, values)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff("## Intro {#intro}\n\nHi Ada\n", string(doc.Content)); diff != "" {
		t.Fatalf("content mismatch (-want +got):\n%s", diff)
	}
}
