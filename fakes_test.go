package officeconv

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nicholasgasior/officeconv/internal/blob"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// taskParams is the subset of a task descriptor the fake engine reads.
type taskParams struct {
	From       string `xml:"m_sFileFrom"`
	To         string `xml:"m_sFileTo"`
	ThemeDir   string `xml:"m_sThemeDir"`
	FormatFrom int    `xml:"m_nFormatFrom"`
	FontDir    string `xml:"m_sFontDir"`
}

// fakeEngine is an in-memory engine. By default it copies the source to the
// destination with a "BIN:" prefix.
type fakeEngine struct {
	fs afero.Fs

	readyAfter time.Duration
	neverReady bool
	startErr   error

	mu    sync.Mutex
	tasks []taskParams
	run   func(fs afero.Fs, p taskParams) int
	late  func()
	fail  func(error)

	closed atomic.Bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{fs: afero.NewMemMapFs()}
}

func (e *fakeEngine) FS() VirtualFS { return e.fs }

func (e *fakeEngine) Call(_ context.Context, arg string) (int, error) {
	raw, err := afero.ReadFile(e.fs, arg)
	if err != nil {
		return 0, err
	}
	var p taskParams
	if err := xml.Unmarshal(raw, &p); err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.tasks = append(e.tasks, p)
	run := e.run
	e.mu.Unlock()

	if run != nil {
		return run(e.fs, p), nil
	}
	src, err := afero.ReadFile(e.fs, p.From)
	if err != nil {
		return 1, nil
	}
	return 0, afero.WriteFile(e.fs, p.To, append([]byte("BIN:"), src...), 0o644)
}

func (e *fakeEngine) OnRuntimeInitialized(fn func()) {
	if e.neverReady {
		e.mu.Lock()
		e.late = fn
		e.mu.Unlock()
		return
	}
	go func() {
		time.Sleep(e.readyAfter)
		if e.startErr != nil {
			e.mu.Lock()
			fail := e.fail
			e.mu.Unlock()
			if fail != nil {
				fail(e.startErr)
			}
			return
		}
		fn()
	}()
}

func (e *fakeEngine) OnRuntimeFailed(fn func(error)) {
	e.mu.Lock()
	e.fail = fn
	e.mu.Unlock()
}

func (e *fakeEngine) Close(context.Context) error {
	e.closed.Store(true)
	return nil
}

func (e *fakeEngine) lastTask(t *testing.T) taskParams {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotEmpty(t, e.tasks)
	return e.tasks[len(e.tasks)-1]
}

func (e *fakeEngine) setRun(run func(fs afero.Fs, p taskParams) int) {
	e.mu.Lock()
	e.run = run
	e.mu.Unlock()
}

// fakeBootstrap hands out engines from newEngine and counts its calls.
type fakeBootstrap struct {
	newEngine func() *fakeEngine
	loadErr   error
	loadDelay time.Duration

	mu      sync.Mutex
	paths   []string
	engines []*fakeEngine
}

func (b *fakeBootstrap) Load(_ context.Context, scriptPath string) error {
	time.Sleep(b.loadDelay)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, scriptPath)
	return b.loadErr
}

func (b *fakeBootstrap) Module() EngineModule {
	if b.newEngine == nil {
		return nil
	}
	e := b.newEngine()
	b.mu.Lock()
	b.engines = append(b.engines, e)
	b.mu.Unlock()
	return e
}

func (b *fakeBootstrap) loads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.paths)
}

func (b *fakeBootstrap) modules() []*fakeEngine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*fakeEngine(nil), b.engines...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	conv   *Converter
	boot   *fakeBootstrap
	engine *fakeEngine
	host   afero.Fs
	blobs  *blob.Store
}

// newTestEnv builds a converter over a single fake engine with downloads
// going to an in-memory host filesystem.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	engine := newFakeEngine()
	env := &testEnv{
		boot:   &fakeBootstrap{newEngine: func() *fakeEngine { return engine }},
		engine: engine,
		host:   afero.NewMemMapFs(),
		blobs:  blob.NewStore(""),
	}
	base := []Option{
		WithBootstrap(env.boot),
		WithLogger(discardLogger()),
		WithHostFS(env.host),
		WithBlobStore(env.blobs),
		WithDownloadDir("downloads"),
		WithInitTimeout(5 * time.Second),
	}
	env.conv = New(append(base, opts...)...)
	t.Cleanup(env.conv.Destroy)
	return env
}

// fakePicker records the options it was shown and either aborts or writes
// into buf.
type fakePicker struct {
	err  error
	opts SaveFilePickerOptions
	buf  bytes.Buffer
}

func (p *fakePicker) ShowSaveFilePicker(_ context.Context, opts SaveFilePickerOptions) (FileHandle, error) {
	p.opts = opts
	if p.err != nil {
		return nil, p.err
	}
	return p, nil
}

func (p *fakePicker) CreateWritable(context.Context) (io.WriteCloser, error) {
	return nopCloser{&p.buf}, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

var errBoom = errors.New("boom")
