package testsupport

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/document"
)

// FixtureTime is the timestamp stamped on every entry of generated docx
// fixtures so tests can compare bytes across runs.
var FixtureTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

const documentOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentClose = `</w:body></w:document>`

// Paragraph wraps text runs into a w:p element. Each run becomes its own
// w:r, which lets tests reproduce placeholders Word split across runs.
func Paragraph(runs ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, run := range runs {
		b.WriteString(`<w:r><w:t xml:space="preserve">`)
		b.WriteString(run)
		b.WriteString("</w:t></w:r>")
	}
	b.WriteString("</w:p>")
	return b.String()
}

// DocumentXML wraps paragraphs in a w:document body.
func DocumentXML(paragraphs ...string) string {
	return documentOpen + strings.Join(paragraphs, "") + documentClose
}

// BuildDocx assembles a minimal WordprocessingML package. Extra parts (for
// example "word/header1.xml") are appended in sorted order after the
// mandatory ones.
func BuildDocx(t testing.TB, documentXML string, extra map[string]string) []byte {
	t.Helper()

	data, err := BuildDocxBytes(documentXML, extra)
	if err != nil {
		t.Fatalf("build docx: %v", err)
	}
	return data
}

// BuildDocxBytes is BuildDocx without a testing.TB, for setup helpers.
func BuildDocxBytes(documentXML string, extra map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entries := [][2]string{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", documentXML},
	}
	for _, name := range sortedKeys(extra) {
		entries = append(entries, [2]string{name, extra[name]})
	}

	for _, entry := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry[0],
			Method:   zip.Deflate,
			Modified: FixtureTime,
		})
		if err != nil {
			return nil, fmt.Errorf("testsupport: create %s: %w", entry[0], err)
		}
		if _, err := w.Write([]byte(entry[1])); err != nil {
			return nil, fmt.Errorf("testsupport: write %s: %w", entry[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("testsupport: close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadDocxPart extracts a single part from a docx payload.
func ReadDocxPart(t testing.TB, body []byte, name string) string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("open docx: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open part %s: %v", name, err)
		}
		defer rc.Close()
		var out bytes.Buffer
		if _, err := out.ReadFrom(rc); err != nil {
			t.Fatalf("read part %s: %v", name, err)
		}
		return out.String()
	}
	t.Fatalf("part %s not found", name)
	return ""
}

// Template builds an in-memory template with an optional sidecar.
func Template(id string, format document.Format, body []byte, metadata string) document.Template {
	tpl := document.Template{
		ID:      id,
		Name:    id + format.Extension(),
		Format:  format,
		Body:    body,
		ModTime: FixtureTime,
	}
	if metadata != "" {
		tpl.Metadata = &document.Metadata{Name: id + ".yaml", Raw: []byte(metadata)}
	}
	return tpl
}

// WriteTemplateDir writes files (relative name -> content) under a fresh
// temporary directory and returns its path.
func WriteTemplateDir(t testing.TB, files map[string][]byte) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	return dir
}

// WriteFile writes a single file below dir, creating parents.
func WriteFile(t testing.TB, dir, name string, content []byte) {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
