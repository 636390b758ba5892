package readers

import (
	"context"
	"errors"
	"io"

	"github.com/TFMV/bdt/pkg/core"
)

// CountRows reads reader to the end and returns the number of rows it held.
func CountRows(ctx context.Context, reader core.DatasetReader) (int64, error) {
	var rows int64
	for {
		rec, err := reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return 0, err
		}
		rows += rec.NumRows()
		rec.Release()
	}
}
