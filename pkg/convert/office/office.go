// Package office converts office documents by running LibreOffice in
// headless mode.
package office

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/goliatone/go-docfill/pkg/convert"
	"github.com/goliatone/go-docfill/pkg/document"
)

// BinaryEnv names the environment variable consulted for the soffice path.
const BinaryEnv = "SOFFICE_PATH"

const (
	defaultConcurrency = 2
	defaultTimeout     = 2 * time.Minute
)

var candidates = []string{"soffice", "libreoffice"}

// LibreOffice output filters per target format.
var filters = map[document.Format]string{
	document.FormatPDF:  "pdf",
	document.FormatODT:  "odt",
	document.FormatDOCX: "docx:MS Word 2007 XML",
	document.FormatHTML: "html:XHTML Writer File:UTF8",
}

// Runner executes the converter process. args never include the binary.
type Runner func(ctx context.Context, dir, bin string, args ...string) error

// Option configures the backend.
type Option func(*Backend)

// WithBinary pins the soffice executable, skipping lookup.
func WithBinary(path string) Option {
	return func(b *Backend) {
		b.binary = strings.TrimSpace(path)
	}
}

// WithConcurrency bounds simultaneous soffice processes.
func WithConcurrency(n int64) Option {
	return func(b *Backend) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithTimeout limits a single conversion.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithTempDir sets the parent of per-call work directories.
func WithTempDir(dir string) Option {
	return func(b *Backend) {
		b.tempDir = dir
	}
}

// WithRunner replaces process execution, for tests.
func WithRunner(run Runner) Option {
	return func(b *Backend) {
		if run != nil {
			b.run = run
		}
	}
}

// WithLookPath replaces executable lookup, for tests.
func WithLookPath(look func(string) (string, error)) Option {
	return func(b *Backend) {
		if look != nil {
			b.lookPath = look
		}
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// Backend is a convert.Backend driving soffice --convert-to.
type Backend struct {
	binary      string
	concurrency int64
	timeout     time.Duration
	tempDir     string
	run         Runner
	lookPath    func(string) (string, error)
	logger      zerolog.Logger

	sem *semaphore.Weighted
}

var _ convert.Backend = (*Backend)(nil)

// New constructs the backend. The binary is located lazily so a missing
// LibreOffice only fails conversions that need it.
func New(options ...Option) *Backend {
	b := &Backend{
		concurrency: defaultConcurrency,
		timeout:     defaultTimeout,
		run:         execRunner,
		lookPath:    exec.LookPath,
		logger:      zerolog.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(b)
		}
	}
	b.sem = semaphore.NewWeighted(b.concurrency)
	return b
}

// Name implements convert.Backend.
func (b *Backend) Name() string {
	return "office"
}

// Edges implements convert.Backend.
func (b *Backend) Edges() []convert.Edge {
	return []convert.Edge{
		{From: document.FormatDOCX, To: document.FormatPDF},
		{From: document.FormatDOCX, To: document.FormatODT},
		{From: document.FormatDOCX, To: document.FormatHTML},
		{From: document.FormatODT, To: document.FormatPDF},
		{From: document.FormatODT, To: document.FormatDOCX},
	}
}

// Binary resolves the executable: the configured path, then $SOFFICE_PATH,
// then soffice or libreoffice on PATH.
func (b *Backend) Binary() (string, error) {
	if b.binary != "" {
		return b.binary, nil
	}
	if env := strings.TrimSpace(os.Getenv(BinaryEnv)); env != "" {
		return env, nil
	}
	for _, name := range candidates {
		if path, err := b.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("office: %w: soffice not found (set %s)", convert.ErrToolUnavailable, BinaryEnv)
}

// Convert implements convert.Backend. Every call works in a fresh directory
// with its own LibreOffice profile so parallel runs do not share a lock.
func (b *Backend) Convert(ctx context.Context, content []byte, from, to document.Format) ([]byte, error) {
	filter, ok := filters[to]
	if !ok || from.Extension() == "" {
		return nil, fmt.Errorf("office: cannot convert %s to %s", from, to)
	}
	bin, err := b.Binary()
	if err != nil {
		return nil, err
	}

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("office: wait for slot: %w", err)
	}
	defer b.sem.Release(1)

	workDir, err := os.MkdirTemp(b.tempDir, "docfill-office-")
	if err != nil {
		return nil, fmt.Errorf("office: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	stem := uuid.NewString()
	input := filepath.Join(workDir, stem+from.Extension())
	if err := os.WriteFile(input, content, 0o600); err != nil {
		return nil, fmt.Errorf("office: write input: %w", err)
	}
	outDir := filepath.Join(workDir, "out")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("office: create output dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	args := []string{
		"-env:UserInstallation=" + fileURL(filepath.Join(workDir, "profile")),
		"--headless",
		"--norestore",
		"--nologo",
		"--convert-to", filter,
		"--outdir", outDir,
		input,
	}

	started := time.Now()
	if err := b.run(runCtx, workDir, bin, args...); err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("office: %s to %s: %w", from, to, ctxErr)
		}
		return nil, fmt.Errorf("office: %s to %s: %w", from, to, err)
	}

	output := filepath.Join(outDir, stem+to.Extension())
	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("office: %s to %s produced no output: %w", from, to, err)
	}

	b.logger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Dur("duration", time.Since(started)).
		Msg("soffice conversion finished")
	return data, nil
}

func execRunner(ctx context.Context, dir, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return fmt.Errorf("%w: %v", convert.ErrToolUnavailable, err)
		}
		if msg := strings.TrimSpace(output.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
