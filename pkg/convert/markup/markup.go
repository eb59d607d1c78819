// Package markup converts between the lightweight text formats in process:
// markdown to sanitized HTML with goldmark and bluemonday, HTML back to
// markdown with html-to-markdown.
package markup

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/goliatone/go-docfill/pkg/convert"
	"github.com/goliatone/go-docfill/pkg/document"
)

const defaultTitle = "Document"

// Option configures the backend.
type Option func(*Backend)

// WithPolicy replaces the HTML sanitizing policy.
func WithPolicy(policy *bluemonday.Policy) Option {
	return func(b *Backend) {
		if policy != nil {
			b.policy = policy
		}
	}
}

// WithTitle sets the <title> of generated HTML documents.
func WithTitle(title string) Option {
	return func(b *Backend) {
		if strings.TrimSpace(title) != "" {
			b.title = title
		}
	}
}

// Backend is a convert.Backend for markdown, HTML and plain text.
type Backend struct {
	markdown goldmark.Markdown
	toMD     *md.Converter
	policy   *bluemonday.Policy
	title    string
}

var _ convert.Backend = (*Backend)(nil)

// New constructs the backend with GitHub flavored markdown on both sides and
// the bluemonday UGC policy.
func New(options ...Option) *Backend {
	toMD := md.NewConverter("", true, nil)
	toMD.Use(plugin.GitHubFlavored())

	b := &Backend{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		toMD:   toMD,
		policy: bluemonday.UGCPolicy(),
		title:  defaultTitle,
	}
	for _, opt := range options {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name implements convert.Backend.
func (b *Backend) Name() string {
	return "markup"
}

// Edges implements convert.Backend. html to text is reached through
// markdown.
func (b *Backend) Edges() []convert.Edge {
	return []convert.Edge{
		{From: document.FormatMarkdown, To: document.FormatHTML},
		{From: document.FormatHTML, To: document.FormatMarkdown},
		{From: document.FormatMarkdown, To: document.FormatText},
		{From: document.FormatText, To: document.FormatHTML},
	}
}

// Convert implements convert.Backend.
func (b *Backend) Convert(ctx context.Context, content []byte, from, to document.Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case from == document.FormatMarkdown && to == document.FormatHTML:
		return b.MarkdownToHTML(content)
	case from == document.FormatHTML && to == document.FormatMarkdown:
		return b.HTMLToMarkdown(content)
	case from == document.FormatMarkdown && to == document.FormatText:
		return content, nil
	case from == document.FormatText && to == document.FormatHTML:
		return b.TextToHTML(content), nil
	default:
		return nil, fmt.Errorf("markup: cannot convert %s to %s", from, to)
	}
}

// MarkdownToHTML renders markdown, sanitizes the fragment (raw HTML in the
// source is allowed through goldmark and filtered here) and wraps it in a
// standalone UTF-8 document.
func (b *Backend) MarkdownToHTML(content []byte) ([]byte, error) {
	var fragment bytes.Buffer
	if err := b.markdown.Convert(content, &fragment); err != nil {
		return nil, fmt.Errorf("markup: render markdown: %w", err)
	}
	return b.wrap(b.policy.SanitizeBytes(fragment.Bytes())), nil
}

// HTMLToMarkdown converts an HTML document or fragment to GFM markdown.
func (b *Backend) HTMLToMarkdown(content []byte) ([]byte, error) {
	out, err := b.toMD.ConvertBytes(content)
	if err != nil {
		return nil, fmt.Errorf("markup: convert html: %w", err)
	}
	return append(bytes.TrimSpace(out), '\n'), nil
}

// TextToHTML escapes plain text into a preformatted block.
func (b *Backend) TextToHTML(content []byte) []byte {
	body := "<pre>" + html.EscapeString(string(content)) + "</pre>\n"
	return b.wrap([]byte(body))
}

func (b *Backend) wrap(body []byte) []byte {
	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	out.WriteString(html.EscapeString(b.title))
	out.WriteString("</title>\n</head>\n<body>\n")
	out.Write(body)
	out.WriteString("</body>\n</html>\n")
	return out.Bytes()
}
