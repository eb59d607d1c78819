// Package placeholder finds the {{ name }} tokens a template requires. Only
// plain variable tokens count: names made of letters, digits and underscores
// with optional surrounding whitespace, the same syntax the render engine
// substitutes.
package placeholder

import (
	"fmt"
	"regexp"

	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/docx"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Pattern returns the compiled token expression. Submatch 1 is the name.
func Pattern() *regexp.Regexp {
	return tokenPattern
}

// ScanBytes returns the distinct placeholder names in first-seen order.
func ScanBytes(body []byte) []string {
	return appendDistinct(nil, map[string]struct{}{}, body)
}

// Scan returns the distinct placeholder names of a template in first-seen
// order. Docx templates are scanned part by part, main document first.
func Scan(tpl document.Template) ([]string, error) {
	if tpl.Format != document.FormatDOCX {
		return ScanBytes(tpl.Body), nil
	}

	pkg, err := docx.Open(tpl.Body)
	if err != nil {
		return nil, fmt.Errorf("placeholder: %s: %w", tpl.Name, err)
	}
	parts, err := pkg.TextParts()
	if err != nil {
		return nil, fmt.Errorf("placeholder: %s: %w", tpl.Name, err)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, part := range parts {
		names = appendDistinct(names, seen, part.Data)
	}
	return names, nil
}

func appendDistinct(names []string, seen map[string]struct{}, body []byte) []string {
	for _, match := range tokenPattern.FindAllSubmatch(body, -1) {
		name := string(match[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
