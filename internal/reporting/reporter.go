// Package reporting serializes the per-file diagnostics map for consumption
// by editors and CI: grouped JSON (the default) or SARIF 2.1.0.
package reporting

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
)

// Reporter writes a computed diagnostics map to an output.
type Reporter interface {
	// Write buffers one diagnostics map. Later writes replace nothing; each
	// map is reported as published.
	Write(diagnostics map[string][]schemas.Diagnostic) error
	// Close finalizes the report and closes the underlying writer.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method, so
// closing a stdout-backed reporter never closes stdout itself.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format and output path. An empty
// path, or "stdout", writes to standard output.
func New(format, outputPath, toolVersion string, logger *zap.Logger) (Reporter, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"
	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case "json":
		return NewJSONReporter(writer, logger), nil
	case "sarif":
		return NewSARIFReporter(writer, toolVersion, logger), nil
	default:
		cleanup()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
