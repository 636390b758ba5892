package readers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/TFMV/bdt/pkg/core"
)

// NewParquetReader creates a reader for Parquet files. Row groups are decoded
// in batches of config.BatchSize rows.
func NewParquetReader(ctx context.Context, config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Parquet reader")
	}

	// Open the file
	f, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}

	// Create parquet file reader - file is a ReaderAtSeeker
	parquetReader, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create Parquet file reader: %w", err)
	}

	// Create Arrow reader from the Parquet file
	arrowProps := pqarrow.ArrowReadProperties{
		Parallel:  true,
		BatchSize: batchSize(config),
	}
	arrowReader, err := pqarrow.NewFileReader(parquetReader, arrowProps, memory.NewGoAllocator())
	if err != nil {
		parquetReader.Close()
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}

	// nil columns and row groups read the whole file
	recordReader, err := arrowReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		parquetReader.Close()
		return nil, fmt.Errorf("failed to create record reader: %w", err)
	}

	return newStreamReader("Parquet", recordReader, parquetReader), nil
}
