package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nicholasgasior/officeconv"
	"github.com/nicholasgasior/officeconv/internal/blob"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "officeconv dev\n", out.String())
}

func TestHelpListsCommands(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())
	for _, name := range []string{"convert", "export", "serve", "version"} {
		assert.Contains(t, out.String(), name)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"version", "--log-level", "loud"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("OFFICECONV_MEDIA_CONCURRENCY", "3")
	t.Setenv("OFFICECONV_INIT_TIMEOUT", "90s")

	a := &app{v: viper.New()}
	root := newAppCmd(a)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"version", "--detect-charset"})
	require.NoError(t, root.Execute())

	assert.Equal(t, 3, a.cfg.MediaConcurrency)
	assert.Equal(t, 90*time.Second, a.cfg.InitTimeout)
	assert.Equal(t, "127.0.0.1:8080", a.cfg.Listen)
	assert.Equal(t, "xlsx", a.cfg.TabularIntermediate)
	assert.True(t, a.cfg.DetectCharset)
	assert.NotNil(t, a.logger)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("warn", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("file", "a.docx"))
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "a.docx")
}

func newTestHandler() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs := blob.NewStore("")
	conv := officeconv.New(officeconv.WithLogger(logger), officeconv.WithBlobStore(blobs))
	return convertHandler(conv, blobs, time.Minute, logger)
}

func multipartBody(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestConvertHandlerUnsupported(t *testing.T) {
	body, contentType := multipartBody(t, "file", "notes.xyz", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "xyz")
	assert.Nil(t, resp.Code)
}

func TestConvertHandlerMissingFile(t *testing.T) {
	body, contentType := multipartBody(t, "other", "a.docx", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnsupportedMediaType, statusFor(&officeconv.UnsupportedFormatError{Extension: "xyz"}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(fmt.Errorf("wrapped: %w", &officeconv.TabularConversionError{Stage: "parse CSV", Err: errors.New("bad")})))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&officeconv.ConversionFailedError{Code: 89}))

	body := errorBody(fmt.Errorf("document conversion failed: %w", &officeconv.ConversionFailedError{Code: 89}))
	require.NotNil(t, body.Code)
	assert.Equal(t, 89, *body.Code)
}
