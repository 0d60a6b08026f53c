package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nicholasgasior/officeconv"
	"github.com/nicholasgasior/officeconv/internal/blob"
	"github.com/spf13/cobra"
)

const maxUploadBytes = 256 << 20

type convertResponse struct {
	FileName string            `json:"fileName"`
	Type     string            `json:"type"`
	Bin      []byte            `json:"bin"`
	Media    map[string]string `json:"media"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  *int   `json:"code,omitempty"`
}

func newServeCmd(a *app) *cobra.Command {
	var mediaTTL time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve conversions and media URLs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			public := a.cfg.PublicURL
			if public == "" {
				public = "http://" + a.cfg.Listen
			}
			blobs := blob.NewStore(public + "/blob/")
			conv := a.newConverter(blobs, a.cfg.DownloadDir, false)
			defer conv.Destroy()

			mux := http.NewServeMux()
			mux.Handle("GET /blob/{id}", blobs.Handler())
			mux.Handle("POST /convert", convertHandler(conv, blobs, mediaTTL, a.logger))

			srv := &http.Server{
				Addr:              a.cfg.Listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Listening", slog.String("addr", a.cfg.Listen), slog.String("public", public))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().String("listen", "127.0.0.1:8080", "Listen address")
	cmd.Flags().String("public-url", "", "Base URL media links are minted under (default: http://<listen>)")
	cmd.Flags().DurationVar(&mediaTTL, "media-ttl", 10*time.Minute, "How long media URLs stay valid")
	return cmd
}

func convertHandler(conv *officeconv.Converter, blobs officeconv.BlobStore, ttl time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		result, err := conv.ConvertDocument(r.Context(), officeconv.SourceFile{
			Name:     header.Filename,
			MIMEType: header.Header.Get("Content-Type"),
			Charset:  r.FormValue("charset"),
			Data:     data,
		})
		if err != nil {
			logger.Error("Conversion failed", slog.String("file", header.Filename), slog.Any("error", err))
			writeJSON(w, statusFor(err), errorBody(err))
			return
		}

		for _, url := range result.Media {
			time.AfterFunc(ttl, func() { blobs.RevokeObjectURL(url) })
		}

		writeJSON(w, http.StatusOK, convertResponse{
			FileName: result.FileName,
			Type:     string(result.Type),
			Bin:      result.Bin,
			Media:    result.Media,
		})
	})
}

func statusFor(err error) int {
	var tabular *officeconv.TabularConversionError
	switch {
	case officeconv.IsUnsupportedFormat(err):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &tabular):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) errorResponse {
	body := errorResponse{Error: err.Error()}
	if code, ok := officeconv.ExitCode(err); ok {
		body.Code = &code
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
