// Package x2t runs a WASI build of the X2T conversion engine with wazero.
//
// The engine sees a private namespace rooted at a host directory; the
// orchestrator reaches the same files through FS.
package x2t

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
)

// Config configures a Bootstrap.
type Config struct {
	// Root pins the engine namespace to a host directory. Empty means a
	// fresh temporary directory per module.
	Root string
	// CacheDir persists compiled code between runs. Empty disables it.
	CacheDir   string
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Bootstrap fetches the engine binary and hands out modules built from it.
type Bootstrap struct {
	cfg Config

	mu   sync.Mutex
	wasm []byte
}

// NewBootstrap returns a Bootstrap with the given configuration.
func NewBootstrap(cfg Config) *Bootstrap {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Bootstrap{cfg: cfg}
}

// Load fetches the engine binary from a local path or an http(s) URL.
func (b *Bootstrap) Load(ctx context.Context, scriptPath string) error {
	data, err := b.fetch(ctx, scriptPath)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("engine binary is empty")
	}

	b.mu.Lock()
	b.wasm = data
	b.mu.Unlock()
	return nil
}

func (b *Bootstrap) fetch(ctx context.Context, scriptPath string) ([]byte, error) {
	if !strings.HasPrefix(scriptPath, "http://") && !strings.HasPrefix(scriptPath, "https://") {
		return os.ReadFile(strings.TrimPrefix(scriptPath, "file://"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scriptPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", scriptPath, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Module returns a new engine module over a fresh namespace, or nil when no
// engine binary has been loaded or the namespace cannot be prepared.
func (b *Bootstrap) Module() *Module {
	b.mu.Lock()
	wasm := b.wasm
	b.mu.Unlock()
	if wasm == nil {
		return nil
	}

	m, err := newModule(wasm, b.cfg)
	if err != nil {
		b.cfg.Logger.Error("Failed to prepare X2T namespace", slog.Any("error", err))
		return nil
	}
	return m
}
