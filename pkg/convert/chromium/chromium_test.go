package chromium_test

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/convert"
	"github.com/goliatone/go-docfill/pkg/convert/chromium"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/testsupport"
)

func TestEdges(t *testing.T) {
	backend := chromium.New()
	want := []convert.Edge{{From: document.FormatHTML, To: document.FormatPDF}}
	if diff := cmp.Diff(want, backend.Edges()); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	if backend.Name() != "chromium" {
		t.Fatalf("unexpected name %q", backend.Name())
	}
}

func TestConvertRejectsOtherEdgesWithoutLaunching(t *testing.T) {
	backend := chromium.New(chromium.WithBin("/nonexistent/chrome"))
	if _, err := backend.Convert(testsupport.Context(), nil, document.FormatDOCX, document.FormatPDF); err == nil {
		t.Fatalf("expected error")
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("close without browser: %v", err)
	}
}

// Runs only where a browser is available, e.g. DOCFILL_CHROMIUM_TEST=1.
func TestConvertPrintsPDF(t *testing.T) {
	if os.Getenv("DOCFILL_CHROMIUM_TEST") == "" {
		t.Skip("set DOCFILL_CHROMIUM_TEST to run against a real browser")
	}
	backend := chromium.New(chromium.WithBin(os.Getenv("DOCFILL_CHROMIUM_BIN")))
	t.Cleanup(func() { _ = backend.Close() })

	out, err := backend.Convert(testsupport.Context(), []byte("<h1>Agreement 42</h1>"), document.FormatHTML, document.FormatPDF)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(out) < 4 || string(out[:4]) != "%PDF" {
		t.Fatalf("output is not a pdf")
	}
}
