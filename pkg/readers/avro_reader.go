package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/avro"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/bdt/pkg/core"
)

// AvroReader implements a reader for Avro object container files.
type AvroReader struct {
	reader *avro.OCFReader
	file   *os.File
}

// NewAvroReader creates a new Avro OCF reader.
func NewAvroReader(ctx context.Context, config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Avro reader")
	}

	file, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Avro file: %w", err)
	}

	reader, err := avro.NewOCFReader(
		file,
		avro.WithChunk(int(batchSize(config))),
		avro.WithAllocator(memory.NewGoAllocator()),
	)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create Avro reader: %w", err)
	}

	return &AvroReader{reader: reader, file: file}, nil
}

// Read returns the next record batch.
func (r *AvroReader) Read(ctx context.Context) (arrow.Record, error) {
	// Check if context is canceled
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !r.reader.Next() {
		if err := r.reader.Err(); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read Avro: %w", err)
		}
		return nil, io.EOF
	}

	rec := r.reader.Record()
	rec.Retain()
	return rec, nil
}

// Schema returns the schema of the dataset.
func (r *AvroReader) Schema() *arrow.Schema {
	return r.reader.Schema()
}

// AvroSchema returns the writer schema embedded in the file.
func (r *AvroReader) AvroSchema() string {
	return r.reader.AvroSchema()
}

// Close closes the reader and releases resources.
func (r *AvroReader) Close() error {
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
