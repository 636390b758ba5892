package writers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/TFMV/bdt/pkg/core"
)

// JSONWriter implements a writer for newline-delimited JSON files, one
// object per row.
type JSONWriter struct {
	file *os.File
	buf  *bufio.Writer
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for JSON writer")
	}

	// Create file
	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file: %w", err)
	}

	return &JSONWriter{
		file: file,
		buf:  bufio.NewWriter(file),
	}, nil
}

// Write writes a record to the file.
func (w *JSONWriter) Write(ctx context.Context, record arrow.Record) error {
	// Check if context is canceled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := array.RecordToJSON(record, w.buf); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (w *JSONWriter) Close() error {
	if w.file == nil {
		return nil
	}

	err := w.buf.Flush()
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	w.file = nil
	return err
}
