package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/bdt/pkg/core"
)

// ArrowReader implements a reader for Arrow IPC files (including Feather v2).
type ArrowReader struct {
	schema *arrow.Schema
	reader *ipc.FileReader
	file   *os.File
}

// NewArrowReader creates a new Arrow IPC reader. Files in the IPC stream
// format are read through a stream reader instead.
func NewArrowReader(ctx context.Context, config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Arrow reader")
	}

	file, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Arrow file: %w", err)
	}

	alloc := memory.NewGoAllocator()
	reader, err := ipc.NewFileReader(file, ipc.WithAllocator(alloc))
	if err != nil {
		// Not an IPC file; try the stream format from the start.
		if _, serr := file.Seek(0, io.SeekStart); serr != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
		}
		stream, serr := ipc.NewReader(file, ipc.WithAllocator(alloc))
		if serr != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
		}
		return newStreamReader("Arrow stream", stream, file), nil
	}

	return &ArrowReader{
		schema: reader.Schema(),
		reader: reader,
		file:   file,
	}, nil
}

// Read returns the next record batch.
func (r *ArrowReader) Read(ctx context.Context) (arrow.Record, error) {
	// Check if context is canceled
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	record, err := r.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read Arrow record batch: %w", err)
	}

	// The file reader reuses the record on the next call.
	record.Retain()
	return record, nil
}

// NumRecords returns the number of record batches in the file.
func (r *ArrowReader) NumRecords() int {
	return r.reader.NumRecords()
}

// Schema returns the schema of the dataset.
func (r *ArrowReader) Schema() *arrow.Schema {
	return r.schema
}

// Close closes the reader and releases resources.
func (r *ArrowReader) Close() error {
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}

	// Close the file
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}

	return nil
}
