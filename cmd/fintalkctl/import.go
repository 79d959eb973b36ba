package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sbu-europe/fintalk/internal/ingest"
	"github.com/sbu-europe/fintalk/internal/usecase"
)

type uploader interface {
	Upload(ctx context.Context, in usecase.UploadInput) (usecase.UploadOutput, error)
}

func NewImportCommand(root *RootCommand) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Index every supported document in a directory",
		Long: `Walk a directory and index every supported document (` + strings.Join(ingest.SupportedExtensions(), ", ") + `)
through the same pipeline as the upload endpoint.`,
		Example: `  fintalkctl import --path ./knowledge-base`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.core(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := usecase.NewDocumentService(a.LLM, a.Documents,
				usecase.WithMaxUploadBytes(root.cfg.MaxUploadBytes),
				usecase.WithDocumentLogger(root.logger),
			)
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), docs, dir, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dir, "path", "", "Directory to import")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

// runImport indexes each supported file under dir. A failing file is
// reported and skipped; the returned error summarises the failures.
func runImport(ctx context.Context, docs uploader, dir string, out io.Writer) error {
	var indexed, failed int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !ingest.Supported(d.Name()) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			return nil
		}
		res, err := docs.Upload(ctx, usecase.UploadInput{Filename: d.Name(), Data: data})
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			return nil
		}
		indexed++
		fmt.Fprintf(out, "OK   %s: %d chunks (document %s)\n", path, res.ChunksCreated, res.DocumentID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("import %s: %w", dir, err)
	}
	fmt.Fprintf(out, "Indexed %d documents, %d failed\n", indexed, failed)
	if failed > 0 {
		return errors.New("some documents could not be indexed")
	}
	return nil
}
