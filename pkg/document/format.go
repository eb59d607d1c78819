package document

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Format names a document representation. The set is closed; ParseFormat
// rejects anything outside it.
type Format string

const (
	FormatDOCX     Format = "docx"
	FormatODT      Format = "odt"
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

type formatInfo struct {
	contentType string
	extension   string
	template    bool
}

var formats = map[Format]formatInfo{
	FormatDOCX:     {contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", extension: ".docx", template: true},
	FormatODT:      {contentType: "application/vnd.oasis.opendocument.text", extension: ".odt"},
	FormatPDF:      {contentType: "application/pdf", extension: ".pdf"},
	FormatHTML:     {contentType: "text/html; charset=utf-8", extension: ".html", template: true},
	FormatMarkdown: {contentType: "text/markdown; charset=utf-8", extension: ".md", template: true},
	FormatText:     {contentType: "text/plain; charset=utf-8", extension: ".txt", template: true},
}

var aliases = map[string]Format{
	"docx":     FormatDOCX,
	"odt":      FormatODT,
	"pdf":      FormatPDF,
	"html":     FormatHTML,
	"htm":      FormatHTML,
	"markdown": FormatMarkdown,
	"md":       FormatMarkdown,
	"text":     FormatText,
	"txt":      FormatText,
}

var templateExtensions = map[string]Format{
	".docx":     FormatDOCX,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
}

// ParseFormat resolves a format name or alias ("md", "txt", "htm"). Matching
// is case-insensitive and ignores a leading dot.
func ParseFormat(raw string) (Format, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
	if f, ok := aliases[key]; ok {
		return f, nil
	}
	return "", fmt.Errorf("document: unsupported format %q", raw)
}

// Formats returns the supported formats in a stable order.
func Formats() []Format {
	out := make([]Format, 0, len(formats))
	for f := range formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TemplateFormatForPath returns the native format for a template file name.
// Only docx, html, markdown and text files can act as templates.
func TemplateFormatForPath(name string) (Format, bool) {
	f, ok := templateExtensions[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// TemplateExtensions lists the file extensions accepted as templates.
func TemplateExtensions() []string {
	out := make([]string, 0, len(templateExtensions))
	for ext := range templateExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Valid reports whether f belongs to the enumeration.
func (f Format) Valid() bool {
	_, ok := formats[f]
	return ok
}

// ContentType returns the MIME type used when serving the format.
func (f Format) ContentType() string {
	if info, ok := formats[f]; ok {
		return info.contentType
	}
	return "application/octet-stream"
}

// Extension returns the canonical file extension including the dot.
func (f Format) Extension() string {
	if info, ok := formats[f]; ok {
		return info.extension
	}
	return ""
}

// Templatable reports whether templates may be authored in this format.
func (f Format) Templatable() bool {
	return formats[f].template
}

func (f Format) String() string {
	return string(f)
}
