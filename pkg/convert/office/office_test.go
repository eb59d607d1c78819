package office_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/convert"
	"github.com/goliatone/go-docfill/pkg/convert/office"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/testsupport"
)

// fakeSoffice mimics --convert-to by writing <stem>.<ext> to --outdir.
func fakeSoffice(t *testing.T, seen *[]string) office.Runner {
	return func(_ context.Context, dir, bin string, args ...string) error {
		*seen = append(*seen, bin)
		*seen = append(*seen, args...)

		var outDir, input, filter string
		for i := 0; i < len(args); i++ {
			switch args[i] {
			case "--outdir":
				outDir = args[i+1]
				i++
			case "--convert-to":
				filter = args[i+1]
				i++
			default:
				input = args[i]
			}
		}
		if !strings.HasPrefix(input, dir) {
			t.Errorf("input %s outside work dir %s", input, dir)
		}
		ext := strings.SplitN(filter, ":", 2)[0]
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		data, err := os.ReadFile(input)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(outDir, stem+"."+ext), append(data, []byte("->"+ext)...), 0o600)
	}
}

func TestConvertRunsSofficeInIsolatedDir(t *testing.T) {
	var seen []string
	backend := office.New(
		office.WithBinary("/opt/lo/soffice"),
		office.WithTempDir(t.TempDir()),
		office.WithRunner(fakeSoffice(t, &seen)),
	)

	out, err := backend.Convert(testsupport.Context(), []byte("docx-bytes"), document.FormatDOCX, document.FormatPDF)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if diff := cmp.Diff("docx-bytes->pdf", string(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	if seen[0] != "/opt/lo/soffice" {
		t.Fatalf("unexpected binary %q", seen[0])
	}
	if !strings.HasPrefix(seen[1], "-env:UserInstallation=file://") {
		t.Fatalf("expected private profile, got %q", seen[1])
	}
	joined := strings.Join(seen, " ")
	for _, flag := range []string{"--headless", "--convert-to pdf", "--outdir"} {
		if !strings.Contains(joined, flag) {
			t.Fatalf("missing %q in %s", flag, joined)
		}
	}
}

func TestConvertUsesFilterPerTarget(t *testing.T) {
	var seen []string
	backend := office.New(office.WithBinary("soffice"), office.WithTempDir(t.TempDir()), office.WithRunner(fakeSoffice(t, &seen)))

	out, err := backend.Convert(testsupport.Context(), []byte("odt"), document.FormatODT, document.FormatDOCX)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if string(out) != "odt->docx" {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(strings.Join(seen, " "), "docx:MS Word 2007 XML") {
		t.Fatalf("expected word filter, got %v", seen)
	}
}

func TestBinaryResolution(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		t.Setenv(office.BinaryEnv, "/env/soffice")
		bin, err := office.New(office.WithBinary("/cfg/soffice")).Binary()
		if err != nil || bin != "/cfg/soffice" {
			t.Fatalf("Binary() = %q, %v", bin, err)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(office.BinaryEnv, "/env/soffice")
		bin, err := office.New().Binary()
		if err != nil || bin != "/env/soffice" {
			t.Fatalf("Binary() = %q, %v", bin, err)
		}
	})

	t.Run("path fallback", func(t *testing.T) {
		t.Setenv(office.BinaryEnv, "")
		look := func(name string) (string, error) {
			if name == "libreoffice" {
				return "/usr/bin/libreoffice", nil
			}
			return "", errors.New("not found")
		}
		bin, err := office.New(office.WithLookPath(look)).Binary()
		if err != nil || bin != "/usr/bin/libreoffice" {
			t.Fatalf("Binary() = %q, %v", bin, err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(office.BinaryEnv, "")
		look := func(string) (string, error) { return "", errors.New("not found") }
		_, err := office.New(office.WithLookPath(look)).Convert(testsupport.Context(), nil, document.FormatDOCX, document.FormatPDF)
		if !errors.Is(err, convert.ErrToolUnavailable) {
			t.Fatalf("expected tool unavailable, got %v", err)
		}
	})
}

func TestConvertReportsMissingOutput(t *testing.T) {
	silent := func(context.Context, string, string, ...string) error { return nil }
	backend := office.New(office.WithBinary("soffice"), office.WithTempDir(t.TempDir()), office.WithRunner(silent))

	if _, err := backend.Convert(testsupport.Context(), []byte("x"), document.FormatDOCX, document.FormatPDF); err == nil {
		t.Fatalf("expected error when soffice writes nothing")
	}
}

func TestConvertRejectsUndeclaredTarget(t *testing.T) {
	backend := office.New(office.WithBinary("soffice"))
	if _, err := backend.Convert(testsupport.Context(), []byte("x"), document.FormatDOCX, document.FormatMarkdown); err == nil {
		t.Fatalf("expected error for markdown target")
	}
}

func TestConvertBoundsConcurrency(t *testing.T) {
	var (
		active  int32
		maxSeen int32
		mu      sync.Mutex
		seen    []string
	)
	inner := fakeSoffice(t, &seen)
	runner := func(ctx context.Context, dir, bin string, args ...string) error {
		n := atomic.AddInt32(&active, 1)
		for {
			prev := atomic.LoadInt32(&maxSeen)
			if n <= prev || atomic.CompareAndSwapInt32(&maxSeen, prev, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)

		mu.Lock()
		defer mu.Unlock()
		return inner(ctx, dir, bin, args...)
	}
	backend := office.New(
		office.WithBinary("soffice"),
		office.WithConcurrency(1),
		office.WithTempDir(t.TempDir()),
		office.WithRunner(runner),
	)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := backend.Convert(testsupport.Context(), []byte("x"), document.FormatDOCX, document.FormatPDF); err != nil {
				t.Errorf("convert: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxSeen); got != 1 {
		t.Fatalf("expected at most one concurrent soffice, saw %d", got)
	}
}

func TestConvertCancelledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	blocking := func(ctx context.Context, _, _ string, _ ...string) error {
		<-release
		return nil
	}
	backend := office.New(office.WithBinary("soffice"), office.WithConcurrency(1), office.WithTempDir(t.TempDir()), office.WithRunner(blocking))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = backend.Convert(context.Background(), []byte("x"), document.FormatDOCX, document.FormatPDF)
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := backend.Convert(ctx, []byte("x"), document.FormatDOCX, document.FormatPDF)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation while waiting, got %v", err)
	}

	close(release)
	<-done
}
