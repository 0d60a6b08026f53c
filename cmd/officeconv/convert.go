package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nicholasgasior/officeconv"
	"github.com/nicholasgasior/officeconv/internal/blob"
	"github.com/spf13/cobra"
)

func newConvertCmd(a *app) *cobra.Command {
	var (
		output   string
		mimeType string
		charset  string
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a document to the engine's binary format",
		Long: "Convert a document to the engine's binary format. The result is written\n" +
			"to <output>/<name>.bin and embedded media to <output>/media/.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			blobs := blob.NewStore("")
			conv := a.newConverter(blobs, output, false)
			defer conv.Destroy()

			result, err := conv.ConvertDocument(cmd.Context(), officeconv.SourceFile{
				Name:     filepath.Base(args[0]),
				MIMEType: mimeType,
				Charset:  charset,
				Data:     data,
			})
			if err != nil {
				return err
			}

			if err := writeResult(cmd, blobs, output, result); err != nil {
				return err
			}
			a.logger.Info("Converted document",
				slog.String("file", result.FileName),
				slog.String("type", string(result.Type)),
				slog.Int("media", len(result.Media)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory")
	cmd.Flags().StringVarP(&mimeType, "mime-type", "m", "", "MIME type hint")
	cmd.Flags().StringVarP(&charset, "charset", "c", "", "Charset hint for CSV input")
	return cmd
}

func writeResult(cmd *cobra.Command, blobs *blob.Store, dir string, result *officeconv.ConversionResult) error {
	if err := os.MkdirAll(filepath.Join(dir, "media"), 0o755); err != nil {
		return err
	}
	binPath := filepath.Join(dir, result.FileName+".bin")
	if err := os.WriteFile(binPath, result.Bin, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", binPath, err)
	}

	keys := make([]string, 0, len(result.Media))
	for k := range result.Media {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		url := result.Media[key]
		data, err := blobs.Open(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		dest := filepath.Join(dir, filepath.FromSlash(key))
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		blobs.RevokeObjectURL(url)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, mimetype.Detect(data))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", binPath, result.Type, mimetype.Detect(result.Bin))
	return nil
}
