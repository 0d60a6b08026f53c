package officeconv

import (
	"context"
	"log/slog"
	"path"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// BlobStore mints dereferenceable URLs for in-memory bytes.
type BlobStore interface {
	CreateObjectURL(ctx context.Context, data []byte, mimeType string) (string, error)
	// Open retrieves the bytes behind a URL minted by CreateObjectURL.
	Open(ctx context.Context, url string) ([]byte, error)
	RevokeObjectURL(url string)
}

// readMediaFiles turns every file the engine left in the media directory
// into a blob URL keyed by "media/<name>". Entries that cannot be read are
// logged and skipped.
func (c *Converter) readMediaFiles(ctx context.Context, h EngineHandle) map[string]string {
	media := make(map[string]string)
	fs := h.FS()

	entries, err := afero.ReadDir(fs, MediaDir)
	if err != nil {
		c.logger.Warn("Failed to read media directory", slog.Any("error", err))
		return media
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.mediaConcurrency)

	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." || entry.IsDir() {
			continue
		}
		g.Go(func() error {
			data, err := afero.ReadFile(fs, path.Join(MediaDir, name))
			if err != nil {
				c.logger.Warn("Failed to read media file", slog.String("file", name), slog.Any("error", err))
				return nil
			}
			url, err := c.blobs.CreateObjectURL(gctx, data, mimetype.Detect(data).String())
			if err != nil {
				c.logger.Warn("Failed to create media URL", slog.String("file", name), slog.Any("error", err))
				return nil
			}
			mu.Lock()
			media["media/"+name] = url
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return media
}

// clearMedia empties the media directory so a result never carries media
// left behind by an earlier document.
func (c *Converter) clearMedia(fs VirtualFS) {
	entries, err := afero.ReadDir(fs, MediaDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if err := fs.RemoveAll(path.Join(MediaDir, entry.Name())); err != nil {
			c.logger.Debug("Failed to remove stale media", slog.String("file", entry.Name()), slog.Any("error", err))
		}
	}
}
