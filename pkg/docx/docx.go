// Package docx reads and rewrites WordprocessingML packages. It knows which
// parts carry user text, repairs placeholders that Word split across runs,
// and writes packages back deterministically so identical inputs always
// yield identical bytes.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
)

var (
	textPartPattern = regexp.MustCompile(`^word/(document|header[0-9]*|footer[0-9]*|footnotes|endnotes)\.xml$`)

	splitOpenPattern  = regexp.MustCompile(`\{(?:<[^>]*>)+\{`)
	splitClosePattern = regexp.MustCompile(`\}(?:<[^>]*>)+\}`)
	placeholderSpan   = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	xmlTag            = regexp.MustCompile(`<[^>]*>`)
)

// ErrNotDocx reports a body that is not a readable WordprocessingML package.
var ErrNotDocx = errors.New("docx: not a word document package")

// Part is a text-bearing XML part of the package.
type Part struct {
	Name string
	Data []byte
}

// Package is a parsed, read-only view over a .docx body.
type Package struct {
	reader *zip.Reader
}

// Open parses body as a zip archive holding word/document.xml.
func Open(body []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}
	found := false
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: word/document.xml missing", ErrNotDocx)
	}
	return &Package{reader: zr}, nil
}

// IsTextPart reports whether the named part may contain placeholders.
func IsTextPart(name string) bool {
	return textPartPattern.MatchString(name)
}

// TextParts returns the normalized text parts ordered with the main document
// first and the remaining parts by name.
func (p *Package) TextParts() ([]Part, error) {
	var parts []Part
	for _, f := range p.reader.File {
		if !IsTextPart(f.Name) {
			continue
		}
		data, err := readFile(f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, Part{Name: f.Name, Data: Normalize(data)})
	}
	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].Name == "word/document.xml" {
			return parts[j].Name != "word/document.xml"
		}
		if parts[j].Name == "word/document.xml" {
			return false
		}
		return parts[i].Name < parts[j].Name
	})
	return parts, nil
}

// Rewrite writes a new package where the named parts are replaced. Entry
// order, names, methods and timestamps are kept; untouched entries are
// copied without recompression.
func (p *Package) Rewrite(replacements map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range p.reader.File {
		data, ok := replacements[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("docx: copy %s: %w", f.Name, err)
			}
			continue
		}
		header := &zip.FileHeader{
			Name:     f.Name,
			Method:   f.Method,
			Modified: f.Modified,
			Comment:  f.Comment,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("docx: create %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("docx: write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx: close package: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalize joins placeholders that Word split across runs. Braces separated
// only by markup are merged and markup inside {{ ... }} is dropped, leaving
// the text of the surrounding run intact.
func Normalize(xml []byte) []byte {
	out := splitOpenPattern.ReplaceAll(xml, []byte("{{"))
	out = splitClosePattern.ReplaceAll(out, []byte("}}"))
	return placeholderSpan.ReplaceAllFunc(out, func(span []byte) []byte {
		return xmlTag.ReplaceAll(span, nil)
	})
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("docx: open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("docx: read %s: %w", f.Name, err)
	}
	return data, nil
}
