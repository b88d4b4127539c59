package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/chwrapper/chwrapper/internal/errors"
	"github.com/chwrapper/chwrapper/internal/observability"
	"github.com/chwrapper/chwrapper/internal/output"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

var documentCmd = &cobra.Command{
	Use:   "document <document-id>",
	Short: "Download the content of a filed document",
	Long: `Download the content of a filed document, usually a PDF.

The file is written to --out, or <document-id>.pdf in the current directory.
Use --out - to write to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocument,
}

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.Flags().String("out", "", "Output file (default <document-id>.pdf, - for stdout)")
}

func runDocument(cmd *cobra.Command, args []string) error {
	documentID := strings.TrimSpace(args[0])
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	outPath = strings.TrimSpace(outPath)
	if outPath == "" {
		outPath = sanitizeFilename(documentID) + ".pdf"
	}

	result, err := fetch(cmd, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
		return c.Document(ctx, documentID, opts...)
	})
	if err != nil {
		return err
	}

	if result.Ignored() {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), output.IgnoredNotice("document "+documentID, result.StatusCode))
		return err
	}
	defer result.Response.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	sink, err := openSink(cmd.OutOrStdout(), outPath)
	if err != nil {
		return apperrors.WrapInternal(cmd.Context(), err, "cannot open output file")
	}

	written, copyErr := io.Copy(sink.writer, result.Response.Body)
	closeErr := sink.close()
	if copyErr != nil {
		return apperrors.WrapExternalService(cmd.Context(), copyErr, "document download interrupted")
	}
	if closeErr != nil {
		return apperrors.WrapInternal(cmd.Context(), closeErr, "cannot write output file")
	}

	if sink.path != "-" {
		observability.CLILogger.Info("Document saved",
			zap.String("path", sink.path),
			zap.Int64("bytes", written),
			zap.String("content_type", result.Response.Header.Get("Content-Type")))
	}
	return nil
}

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

// openSink opens path for writing; "-" writes to stdout.
func openSink(stdout io.Writer, path string) (*outputSink, error) {
	if path == "-" {
		return &outputSink{writer: stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: path}, nil
}

func sanitizeFilename(value string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(value))
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "document"
	}
	return clean
}
