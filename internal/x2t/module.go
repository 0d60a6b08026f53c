package x2t

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

const (
	programName = "x2t"
	lockName    = ".officeconv.lock"
)

var (
	// ErrNotReady is returned by Call before the module has compiled.
	ErrNotReady = errors.New("X2T runtime not initialized")

	// ErrRootLocked is returned when another process owns the work root.
	ErrRootLocked = errors.New("X2T work root is in use by another process")
)

// Module is one engine instance and its namespace.
type Module struct {
	wasm   []byte
	cfg    Config
	logger *slog.Logger

	root     string
	ownsRoot bool
	lock     *flock.Flock
	fs       afero.Fs

	once       sync.Once
	mu         sync.Mutex
	runtime    wazero.Runtime
	compiled   wazero.CompiledModule
	closed     bool
	compileErr error
	onFail     func(error)
}

func newModule(wasm []byte, cfg Config) (*Module, error) {
	m := &Module{wasm: wasm, cfg: cfg, logger: cfg.Logger}

	if cfg.Root == "" {
		root, err := os.MkdirTemp("", "officeconv-x2t-*")
		if err != nil {
			return nil, fmt.Errorf("create namespace: %w", err)
		}
		m.root, m.ownsRoot = root, true
	} else {
		if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
			return nil, fmt.Errorf("create namespace: %w", err)
		}
		lock := flock.New(filepath.Join(cfg.Root, lockName))
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock namespace: %w", err)
		}
		if !ok {
			return nil, ErrRootLocked
		}
		m.root, m.lock = cfg.Root, lock
	}

	m.fs = afero.NewBasePathFs(afero.NewOsFs(), m.root)
	return m, nil
}

// FS returns the module's namespace. Guest path "/working/x" is FS path
// "/working/x".
func (m *Module) FS() afero.Fs {
	return m.fs
}

// OnRuntimeInitialized compiles the engine in the background and calls fn
// once it is ready to run. Only the first registration takes effect; fn is
// never called if compilation fails.
func (m *Module) OnRuntimeInitialized(fn func()) {
	m.once.Do(func() {
		go func() {
			if err := m.compile(context.Background()); err != nil {
				m.fail(err)
				return
			}
			fn()
		}()
	})
}

// OnRuntimeFailed registers fn to receive the compilation error. A failure
// that already happened is reported immediately.
func (m *Module) OnRuntimeFailed(fn func(error)) {
	m.mu.Lock()
	m.onFail = fn
	err := m.compileErr
	m.mu.Unlock()
	if err != nil {
		fn(err)
	}
}

func (m *Module) fail(err error) {
	m.logger.Error("X2T compilation failed", slog.Any("error", err))
	m.mu.Lock()
	m.compileErr = err
	fn := m.onFail
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (m *Module) compile(ctx context.Context) error {
	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if m.cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(m.cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("open compilation cache: %w", err)
		}
		rc = rc.WithCompilationCache(cache)
	}

	r := wazero.NewRuntimeWithConfig(ctx, rc)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return fmt.Errorf("instantiate WASI: %w", err)
	}
	compiled, err := r.CompileModule(ctx, m.wasm)
	if err != nil {
		r.Close(ctx)
		return fmt.Errorf("compile engine: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		r.Close(ctx)
		return errors.New("module closed during compilation")
	}
	m.runtime, m.compiled = r, compiled
	return nil
}

// Call runs the engine's entry point with arg and returns its exit status.
// Calls are serialized.
func (m *Module) Call(ctx context.Context, arg string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.compiled == nil || m.closed {
		return 0, ErrNotReady
	}

	stdout := newLogWriter(m.logger, "stdout")
	stderr := newLogWriter(m.logger, "stderr")
	defer stdout.Flush()
	defer stderr.Flush()

	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(programName, arg).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(m.root, "/")).
		WithStdout(stdout).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)

	mod, err := m.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			return int(exitErr.ExitCode()), nil
		}
		return 0, fmt.Errorf("run %s: %w", programName, err)
	}
	return 0, mod.Close(ctx)
}

// Close releases the runtime and the namespace. A temporary namespace is
// removed.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if m.runtime != nil {
		errs = append(errs, m.runtime.Close(ctx))
	}
	if m.lock != nil {
		errs = append(errs, m.lock.Unlock())
	}
	if m.ownsRoot {
		errs = append(errs, os.RemoveAll(m.root))
	}
	return errors.Join(errs...)
}

// logWriter forwards engine output to the logger line by line.
type logWriter struct {
	logger *slog.Logger
	stream string
	buf    bytes.Buffer
}

func newLogWriter(logger *slog.Logger, stream string) *logWriter {
	return &logWriter{logger: logger, stream: stream}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line; keep it for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.emit(line[:len(line)-1])
	}
}

func (w *logWriter) Flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *logWriter) emit(line string) {
	w.logger.Debug("x2t", slog.String("stream", w.stream), slog.String("line", line))
}
