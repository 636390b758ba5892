package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/TFMV/bdt/pkg/core"
	"github.com/TFMV/bdt/version"
)

// ParquetWriter implements a writer for Parquet files.
type ParquetWriter struct {
	writer     *pqarrow.FileWriter
	file       *os.File
	schema     *arrow.Schema
	codec      compress.Compression
	properties pqarrow.ArrowWriterProperties
}

// NewParquetWriter creates a new Parquet writer. Output is snappy compressed
// unless config.Zstd is set.
func NewParquetWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Parquet writer")
	}

	// Create file
	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet file: %w", err)
	}

	w := &ParquetWriter{
		file:       file,
		codec:      compress.Codecs.Snappy,
		properties: pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
	}
	if config.Zstd {
		w.codec = compress.Codecs.Zstd
	}

	// Without a schema the writer is created when the first record arrives
	if config.Schema != nil {
		if err := w.init(config.Schema); err != nil {
			file.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *ParquetWriter) init(schema *arrow.Schema) error {
	writeProps := parquet.NewWriterProperties(
		parquet.WithCompression(w.codec),
		parquet.WithDictionaryDefault(false),
		parquet.WithCreatedBy(version.CreatedBy()),
	)

	writer, err := pqarrow.NewFileWriter(schema, w.file, writeProps, w.properties)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	w.writer = writer
	w.schema = schema
	return nil
}

// Write writes a record to the file.
func (w *ParquetWriter) Write(ctx context.Context, record arrow.Record) error {
	// Check if context is canceled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if w.writer == nil {
		if err := w.init(record.Schema()); err != nil {
			return err
		}
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	return nil
}

// Close closes the writer and flushes any pending data.
func (w *ParquetWriter) Close() error {
	var err error

	// The file writer closes the file it writes to
	if w.writer != nil {
		err = w.writer.Close()
		w.writer = nil
		w.file = nil
	}

	if w.file != nil {
		if closeErr := w.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		w.file = nil
	}

	return err
}
