package officeconv

import (
	"context"
	"log/slog"
	"time"

	"github.com/nicholasgasior/officeconv/internal/sheet"
	"github.com/spf13/afero"
)

// Option configures a Converter instance.
type Option func(*Converter)

// WithBasePath sets the deployment base (local directory or http(s) URL)
// the engine bootstrap script is resolved against.
func WithBasePath(base string) Option {
	return func(c *Converter) {
		c.basePath = base
	}
}

// WithInitTimeout bounds how long Initialize waits for engine readiness
// (default: 300s).
func WithInitTimeout(d time.Duration) Option {
	return func(c *Converter) {
		if d > 0 {
			c.initTimeout = d
		}
	}
}

// WithBootstrap replaces the WASM engine bootstrap.
func WithBootstrap(b Bootstrap) Option {
	return func(c *Converter) {
		c.bootstrap = b
	}
}

// WithWorkRoot pins the engine namespace to a host directory instead of a
// fresh temporary one. The directory is locked while the engine is alive.
func WithWorkRoot(dir string) Option {
	return func(c *Converter) {
		c.workRoot = dir
	}
}

// WithBlobStore sets where media and downloads get their URLs.
func WithBlobStore(s BlobStore) Option {
	return func(c *Converter) {
		c.blobs = s
	}
}

// WithSavePicker enables the interactive save surface. Without one, results
// are persisted through the download fallback.
func WithSavePicker(p SavePicker) Option {
	return func(c *Converter) {
		c.picker = p
	}
}

// WithDownloadDir sets the directory the download fallback writes to
// (default: current directory).
func WithDownloadDir(dir string) Option {
	return func(c *Converter) {
		c.downloadDir = dir
	}
}

// WithHostFS sets the filesystem the download fallback writes to
// (default: the OS filesystem).
func WithHostFS(fs afero.Fs) Option {
	return func(c *Converter) {
		c.hostFS = fs
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMediaConcurrency bounds concurrent media reads (default: 8).
func WithMediaConcurrency(n int) Option {
	return func(c *Converter) {
		if n > 0 {
			c.mediaConcurrency = n
		}
	}
}

// WithCharsetDetection enables statistical charset detection for CSV input
// that is not valid UTF-8, before falling back to Latin-1.
func WithCharsetDetection(enabled bool) Option {
	return func(c *Converter) {
		c.detectCharset = enabled
	}
}

// WithDirectTabular makes CSV conversion try the engine's own CSV reader
// first and only fall back to the XLSX bracket when it fails.
func WithDirectTabular(enabled bool) Option {
	return func(c *Converter) {
		c.directTabular = enabled
	}
}

// WithTabularIntermediate selects the spreadsheet format CSV export goes
// through ("xlsx" or "xls").
func WithTabularIntermediate(format string) Option {
	return func(c *Converter) {
		if f, ok := sheet.ParseFormat(format); ok {
			c.tabularIntermediate = f
		}
	}
}

// WithSpreadsheetLoader replaces the process-wide spreadsheet capability
// loader.
func WithSpreadsheetLoader(load func(ctx context.Context) (*sheet.Capability, error)) Option {
	return func(c *Converter) {
		c.loadSheets = load
	}
}
