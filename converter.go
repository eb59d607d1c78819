package docfill

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/convert"
	"github.com/goliatone/go-docfill/pkg/convert/chromium"
	"github.com/goliatone/go-docfill/pkg/convert/markup"
	"github.com/goliatone/go-docfill/pkg/convert/office"
)

// ConverterConfig selects and tunes the bundled conversion backends.
type ConverterConfig struct {
	// SofficePath pins the LibreOffice binary; empty falls back to
	// $SOFFICE_PATH and PATH lookup.
	SofficePath string
	// Concurrency bounds simultaneous LibreOffice processes.
	Concurrency int64
	// Timeout limits one backend call.
	Timeout time.Duration
	// Chromium enables html to pdf through a headless browser.
	Chromium bool
	// ChromiumBin pins the browser executable.
	ChromiumBin string
	// ChromiumURL connects to a running browser instead of launching one.
	ChromiumURL string
}

// NewConverter assembles the office and markup backends, plus chromium when
// enabled. Close the converter to stop a launched browser.
func NewConverter(cfg ConverterConfig, logger zerolog.Logger) (*convert.Converter, error) {
	backends := []convert.Backend{
		office.New(
			office.WithBinary(cfg.SofficePath),
			office.WithConcurrency(cfg.Concurrency),
			office.WithTimeout(cfg.Timeout),
			office.WithLogger(logger),
		),
		markup.New(),
	}
	if cfg.Chromium {
		backends = append(backends, chromium.New(
			chromium.WithBin(cfg.ChromiumBin),
			chromium.WithControlURL(cfg.ChromiumURL),
			chromium.WithTimeout(cfg.Timeout),
			chromium.WithLogger(logger),
		))
	}
	return convert.New(convert.WithBackends(backends...), convert.WithLogger(logger))
}
