package officeconv

import (
	"log/slog"

	"github.com/nicholasgasior/officeconv/internal/x2t"
)

// wasmBootstrap adapts the wazero-backed engine to Bootstrap.
type wasmBootstrap struct {
	*x2t.Bootstrap
}

// NewWASMBootstrap returns the default engine bootstrap with a persistent
// compilation cache in cacheDir.
func NewWASMBootstrap(root, cacheDir string, logger *slog.Logger) Bootstrap {
	return wasmBootstrap{x2t.NewBootstrap(x2t.Config{Root: root, CacheDir: cacheDir, Logger: logger})}
}

func (b wasmBootstrap) Module() EngineModule {
	m := b.Bootstrap.Module()
	if m == nil {
		return nil
	}
	return m
}
