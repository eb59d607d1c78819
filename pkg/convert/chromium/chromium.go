// Package chromium prints HTML documents to PDF with a headless Chromium
// driven over the DevTools protocol.
package chromium

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/convert"
	"github.com/goliatone/go-docfill/pkg/document"
)

const defaultTimeout = time.Minute

// Option configures the backend.
type Option func(*Backend)

// WithBin sets the browser executable. Empty lets rod find or fetch one.
func WithBin(path string) Option {
	return func(b *Backend) {
		b.bin = strings.TrimSpace(path)
	}
}

// WithControlURL connects to an already running browser instead of
// launching one.
func WithControlURL(url string) Option {
	return func(b *Backend) {
		b.controlURL = strings.TrimSpace(url)
	}
}

// WithTimeout limits a single print.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// Backend is a convert.Backend for html to pdf. The browser starts on first
// use and lives until Close.
type Backend struct {
	bin        string
	controlURL string
	timeout    time.Duration
	logger     zerolog.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

var _ convert.Backend = (*Backend)(nil)

// New constructs the backend without starting a browser.
func New(options ...Option) *Backend {
	b := &Backend{
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
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
	return "chromium"
}

// Edges implements convert.Backend.
func (b *Backend) Edges() []convert.Edge {
	return []convert.Edge{{From: document.FormatHTML, To: document.FormatPDF}}
}

// Convert implements convert.Backend.
func (b *Backend) Convert(ctx context.Context, content []byte, from, to document.Format) ([]byte, error) {
	if from != document.FormatHTML || to != document.FormatPDF {
		return nil, fmt.Errorf("chromium: cannot convert %s to %s", from, to)
	}

	browser, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("chromium: open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	page = page.Timeout(b.timeout)
	if err := page.SetDocumentContent(string(content)); err != nil {
		return nil, fmt.Errorf("chromium: load html: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("chromium: wait load: %w", err)
	}

	started := time.Now()
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("chromium: print: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("chromium: read pdf: %w", err)
	}

	b.logger.Debug().
		Int("bytes", len(data)).
		Dur("duration", time.Since(started)).
		Msg("chromium print finished")
	return data, nil
}

// Close shuts the browser down and removes its temporary profile.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
		b.launcher = nil
	}
	return err
}

func (b *Backend) connect(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.controlURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		if b.bin != "" {
			l = l.Bin(b.bin)
		}
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("chromium: %w: launch: %v", convert.ErrToolUnavailable, err)
		}
		b.launcher = l
		controlURL = url
	}

	// The browser outlives the request that started it.
	browser := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("chromium: %w: connect: %v", convert.ErrToolUnavailable, err)
	}
	b.browser = browser
	b.logger.Info().Str("control_url", controlURL).Msg("chromium connected")
	return browser, nil
}
