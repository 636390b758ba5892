package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	stdcsv "encoding/csv"

	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/bdt/pkg/core"
)

// NewCSVReader creates a reader for delimited text files. Column types are
// inferred from the first data row and empty fields are read as null.
func NewCSVReader(ctx context.Context, config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for CSV reader")
	}

	// Open the file
	file, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}

	var src io.Reader = file
	if config.NoHeaderRow {
		header, err := positionalHeader(file)
		if err != nil {
			file.Close()
			return nil, err
		}
		src = io.MultiReader(strings.NewReader(header), file)
	}

	reader := csv.NewInferringReader(
		src,
		csv.WithChunk(int(batchSize(config))),
		csv.WithHeader(true),
		csv.WithNullReader(true, ""), // Empty string is treated as null
		csv.WithAllocator(memory.NewGoAllocator()),
	)

	r := newStreamReader("CSV", reader, file)
	if err := r.peek(); err != nil {
		r.Close()
		return nil, err
	}
	if r.Schema() == nil {
		r.Close()
		return nil, fmt.Errorf("cannot infer CSV schema from %s: no data rows", config.Path)
	}
	return r, nil
}

// positionalHeader builds a header line naming the columns of the first
// record column_1, column_2, ... and rewinds file to its start.
func positionalHeader(file *os.File) (string, error) {
	first, err := stdcsv.NewReader(file).Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read CSV: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind CSV file: %w", err)
	}

	names := make([]string, len(first))
	for i := range first {
		names[i] = fmt.Sprintf("column_%d", i+1)
	}
	return strings.Join(names, ",") + "\n", nil
}
