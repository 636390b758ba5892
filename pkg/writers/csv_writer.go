package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/TFMV/bdt/pkg/core"
)

// CSVWriter implements a writer for CSV files with a header line.
type CSVWriter struct {
	writer *csv.Writer
	file   *os.File
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for CSV writer")
	}

	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	w := &CSVWriter{file: file}
	if config.Schema != nil {
		w.init(config.Schema)
	}
	return w, nil
}

func (w *CSVWriter) init(schema *arrow.Schema) {
	w.writer = csv.NewWriter(
		w.file,
		schema,
		csv.WithHeader(true),
		csv.WithNullWriter(""),
	)
}

// Write writes a record to the file.
func (w *CSVWriter) Write(ctx context.Context, record arrow.Record) error {
	// Check if context is canceled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if w.writer == nil {
		w.init(record.Schema())
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close flushes pending rows and closes the file.
func (w *CSVWriter) Close() error {
	if w.file == nil {
		return nil
	}

	var err error
	if w.writer != nil {
		err = w.writer.Flush()
		if err == nil {
			err = w.writer.Error()
		}
	}
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	w.file = nil
	return err
}
