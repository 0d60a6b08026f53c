package x2t

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWASM is the smallest valid module: a header with no sections.
var fakeWASM = []byte("\x00asm\x01\x00\x00\x00")

func writeEngine(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "x2t.wasm")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestModuleNilBeforeLoad(t *testing.T) {
	b := NewBootstrap(Config{})
	assert.Nil(t, b.Module())
}

func TestLoadFromFile(t *testing.T) {
	b := NewBootstrap(Config{})
	require.NoError(t, b.Load(context.Background(), writeEngine(t, fakeWASM)))

	m := b.Module()
	require.NotNil(t, m)
	root := m.root

	require.NoError(t, m.FS().MkdirAll("/working", 0o755))
	require.NoError(t, afero.WriteFile(m.FS(), "/working/a.txt", []byte("hi"), 0o644))
	onDisk, err := os.ReadFile(filepath.Join(root, "working", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), onDisk)

	require.NoError(t, m.Close(context.Background()))
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err), "temporary namespace is removed")
}

func TestLoadFileURL(t *testing.T) {
	b := NewBootstrap(Config{})
	assert.NoError(t, b.Load(context.Background(), "file://"+writeEngine(t, fakeWASM)))
}

func TestLoadErrors(t *testing.T) {
	b := NewBootstrap(Config{})

	assert.Error(t, b.Load(context.Background(), filepath.Join(t.TempDir(), "missing.wasm")))
	assert.Error(t, b.Load(context.Background(), writeEngine(t, nil)))
	assert.Nil(t, b.Module())
}

func TestLoadFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wasm/x2t/x2t.wasm" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(fakeWASM)
	}))
	defer srv.Close()

	b := NewBootstrap(Config{})
	require.NoError(t, b.Load(context.Background(), srv.URL+"/wasm/x2t/x2t.wasm"))

	err := b.Load(context.Background(), srv.URL+"/elsewhere.wasm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestWorkRootIsLocked(t *testing.T) {
	root := t.TempDir()
	b := NewBootstrap(Config{Root: root})
	require.NoError(t, b.Load(context.Background(), writeEngine(t, fakeWASM)))

	first := b.Module()
	require.NotNil(t, first)
	assert.Nil(t, b.Module(), "a locked root cannot be shared")

	require.NoError(t, first.Close(context.Background()))
	_, err := os.Stat(root)
	assert.NoError(t, err, "a configured root is kept")

	second := b.Module()
	require.NotNil(t, second)
	require.NoError(t, second.Close(context.Background()))
}

func TestCallBeforeReady(t *testing.T) {
	b := NewBootstrap(Config{})
	require.NoError(t, b.Load(context.Background(), writeEngine(t, fakeWASM)))
	m := b.Module()
	require.NotNil(t, m)
	defer m.Close(context.Background())

	_, err := m.Call(context.Background(), "/working/params.xml")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewBootstrap(Config{})
	require.NoError(t, b.Load(context.Background(), writeEngine(t, fakeWASM)))
	m := b.Module()
	require.NotNil(t, m)

	require.NoError(t, m.Close(context.Background()))
	require.NoError(t, m.Close(context.Background()))
	_, err := m.Call(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestLogWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	w := newLogWriter(logger, "stderr")
	_, _ = w.Write([]byte("first line\nsecond "))
	_, _ = w.Write([]byte("line\nthird"))
	w.Flush()
	w.Flush()

	var lines []string
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &rec))
		assert.Equal(t, "stderr", rec["stream"])
		lines = append(lines, rec["line"].(string))
	}
	assert.Equal(t, []string{"first line", "second line", "third"}, lines)
}

func TestCorruptEngineReportsFailure(t *testing.T) {
	b := NewBootstrap(Config{})
	require.NoError(t, b.Load(context.Background(), writeEngine(t, []byte("definitely not wasm"))))
	m := b.Module()
	require.NotNil(t, m)
	defer m.Close(context.Background())

	failed := make(chan error, 1)
	ready := make(chan struct{})
	m.OnRuntimeFailed(func(err error) { failed <- err })
	m.OnRuntimeInitialized(func() { close(ready) })

	select {
	case err := <-failed:
		assert.Contains(t, err.Error(), "compile engine")
	case <-ready:
		t.Fatal("corrupt engine reported readiness")
	case <-time.After(10 * time.Second):
		t.Fatal("compilation failure was not reported")
	}

	// A late registration still learns about the failure.
	late := make(chan error, 1)
	m.OnRuntimeFailed(func(err error) { late <- err })
	select {
	case err := <-late:
		assert.Error(t, err)
	default:
		t.Fatal("failure not replayed to a late registration")
	}
}

func TestEmptyEngineRuns(t *testing.T) {
	b := NewBootstrap(Config{})
	require.NoError(t, b.Load(context.Background(), writeEngine(t, fakeWASM)))
	m := b.Module()
	require.NotNil(t, m)
	defer m.Close(context.Background())

	ready := make(chan struct{})
	m.OnRuntimeFailed(func(err error) { t.Errorf("unexpected failure: %v", err) })
	m.OnRuntimeInitialized(func() { close(ready) })

	select {
	case <-ready:
	case <-time.After(10 * time.Second):
		t.Fatal("engine never became ready")
	}

	code, err := m.Call(context.Background(), "/working/params.xml")
	require.NoError(t, err)
	assert.Zero(t, code)
}
