package render

import (
	"html"
	"strconv"
	"strings"

	"github.com/goliatone/go-docfill/pkg/binding"
	"github.com/goliatone/go-docfill/pkg/document"
)

// DefaultDateLayout formats DateValue when no layout is configured.
const DefaultDateLayout = binding.DateLayout

// CanonicalText returns the text substituted for a bound value. Numbers use
// the shortest decimal that round-trips (12.5, 42), never exponent notation.
// A nil value yields "".
func CanonicalText(value binding.TypedValue, dateLayout string) string {
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	switch v := value.(type) {
	case binding.StringValue:
		return v.Value
	case binding.ChoiceValue:
		return v.Value
	case binding.DateValue:
		return v.Time.Format(dateLayout)
	case binding.NumberValue:
		return strconv.FormatFloat(v.Value, 'f', -1, 64)
	default:
		return ""
	}
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape prepares text for insertion into a body of the given format.
func Escape(format document.Format, text string) string {
	switch format {
	case document.FormatDOCX, document.FormatODT:
		return xmlEscaper.Replace(stripXMLInvalid(text))
	case document.FormatHTML:
		return html.EscapeString(text)
	default:
		return text
	}
}

// stripXMLInvalid drops code points XML 1.0 cannot carry at all, escaped or
// not. Word refuses to open a part containing them.
func stripXMLInvalid(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20:
			return -1
		case r == 0xFFFE || r == 0xFFFF:
			return -1
		default:
			return r
		}
	}, text)
}
