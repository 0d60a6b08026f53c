package officeconv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
)

// executeConversion runs the engine against the descriptor at paramsPath.
// A non-zero status is returned as *ConversionFailedError; the descriptor is
// logged for diagnostics when it can be read back.
func (c *Converter) executeConversion(ctx context.Context, h EngineHandle, paramsPath string) error {
	code, err := h.Call(ctx, paramsPath)
	if err != nil {
		return fmt.Errorf("run X2T: %w", err)
	}
	if code == 0 {
		return nil
	}

	if params, readErr := afero.ReadFile(h.FS(), paramsPath); readErr == nil {
		c.logger.Error("Conversion failed",
			slog.Int("code", code),
			slog.String("params", string(params)))
	} else {
		c.logger.Error("Conversion failed", slog.Int("code", code))
	}
	return &ConversionFailedError{Code: code}
}

// runTask stages input at the task's source path, writes the descriptor,
// runs the engine and reads the output back. The steps never overlap with
// another task's on the shared namespace.
func (c *Converter) runTask(ctx context.Context, h EngineHandle, input []byte, task ConversionTask) ([]byte, error) {
	fs := h.FS()

	if err := afero.WriteFile(fs, task.SourcePath, input, 0o644); err != nil {
		return nil, fmt.Errorf("stage %s: %w", task.SourcePath, err)
	}

	params, err := task.Descriptor()
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fs, ParamsPath, params, 0o644); err != nil {
		return nil, fmt.Errorf("stage task descriptor: %w", err)
	}

	c.logger.Debug("Running X2T task",
		slog.String("from", task.SourcePath),
		slog.String("to", task.DestPath))

	if err := c.executeConversion(ctx, h, ParamsPath); err != nil {
		return nil, err
	}

	out, err := afero.ReadFile(fs, task.DestPath)
	if err != nil {
		return nil, fmt.Errorf("read conversion result: %w", err)
	}
	return out, nil
}
