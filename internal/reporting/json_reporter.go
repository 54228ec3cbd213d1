package reporting

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/xkilldash9x/opslens-cli/api/schemas"
)

// JSONReporter emits the diagnostics map as one indented JSON document per
// Write, keyed by file URI the way editors consume it.
type JSONReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
}

// NewJSONReporter creates a reporter writing grouped JSON.
func NewJSONReporter(writer io.WriteCloser, logger *zap.Logger) *JSONReporter {
	return &JSONReporter{writer: writer, logger: logger.Named("json_reporter")}
}

// Write encodes one diagnostics map.
func (r *JSONReporter) Write(diagnostics map[string][]schemas.Diagnostic) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(diagnostics); err != nil {
		r.logger.Error("Failed to encode diagnostics", zap.Error(err))
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *JSONReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
