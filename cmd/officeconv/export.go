package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicholasgasior/officeconv/internal/blob"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		name string
		to   string
	)

	cmd := &cobra.Command{
		Use:   "export <file.bin>",
		Short: "Convert an engine binary document to an office format and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), ".bin")
			}

			conv := a.newConverter(blob.NewStore(""), a.cfg.DownloadDir, true)
			defer conv.Destroy()

			result, err := conv.ConvertBinToDocumentAndDownload(cmd.Context(), bin, name, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\n", result.FileName, len(result.Data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Original document name (default: input name without .bin)")
	cmd.Flags().StringVarP(&to, "to", "t", "DOCX", "Target format (DOCX, XLSX, PPTX, PDF, CSV, ...)")
	cmd.Flags().StringP("download-dir", "d", ".", "Directory the file is saved to when no interactive prompt is available")
	return cmd
}
