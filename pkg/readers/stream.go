package readers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// streamReader adapts an Arrow RecordReader to core.DatasetReader. It holds
// at most one record batch at a time.
type streamReader struct {
	format string
	rr     array.RecordReader
	schema *arrow.Schema

	// pending is a batch read ahead of the caller, used when the schema is
	// only known after the first batch has been decoded.
	pending arrow.Record

	// closers run on Close in order, typically the open file.
	closers []io.Closer
}

func newStreamReader(format string, rr array.RecordReader, closers ...io.Closer) *streamReader {
	return &streamReader{
		format:  format,
		rr:      rr,
		schema:  rr.Schema(),
		closers: closers,
	}
}

// peek decodes the first batch so that the schema becomes available.
func (r *streamReader) peek() error {
	if !r.rr.Next() {
		if err := r.rr.Err(); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read %s: %w", r.format, err)
		}
		r.schema = r.rr.Schema()
		return nil
	}
	r.pending = r.rr.Record()
	r.pending.Retain()
	r.schema = r.rr.Schema()
	return nil
}

// Read returns the next record batch.
func (r *streamReader) Read(ctx context.Context) (arrow.Record, error) {
	// Check if context is canceled
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if r.pending != nil {
		rec := r.pending
		r.pending = nil
		return rec, nil
	}

	if !r.rr.Next() {
		if err := r.rr.Err(); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read %s: %w", r.format, err)
		}
		return nil, io.EOF
	}

	rec := r.rr.Record()
	rec.Retain()
	return rec, nil
}

// Schema returns the schema of the dataset.
func (r *streamReader) Schema() *arrow.Schema {
	return r.schema
}

// Close releases the record reader and closes the underlying resources.
func (r *streamReader) Close() error {
	if r.pending != nil {
		r.pending.Release()
		r.pending = nil
	}
	if r.rr != nil {
		r.rr.Release()
		r.rr = nil
	}

	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
