package rows

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/bdt/pkg/core"
)

// ArrowRowSource yields the rows of a DatasetReader one at a time. It holds at
// most one record batch.
type ArrowRowSource struct {
	reader  core.DatasetReader
	schema  core.LogicalSchema
	extract []extractor

	rec  arrow.Record
	next int
	read int64
}

// NewArrowRowSource wraps reader. The row source takes ownership of the
// reader and closes it on Close.
func NewArrowRowSource(reader core.DatasetReader) (*ArrowRowSource, error) {
	if reader == nil {
		return nil, errors.New("reader is required")
	}
	as := reader.Schema()
	if as == nil {
		return nil, errors.New("reader has no schema")
	}

	extract := make([]extractor, as.NumFields())
	for i, f := range as.Fields() {
		_, extract[i] = mapType(f.Type)
	}
	return &ArrowRowSource{
		reader:  reader,
		schema:  SchemaFromArrow(as),
		extract: extract,
	}, nil
}

// Schema implements core.RowSource.
func (s *ArrowRowSource) Schema() core.LogicalSchema {
	return s.schema
}

// RowsRead returns the number of rows yielded so far.
func (s *ArrowRowSource) RowsRead() int64 {
	return s.read
}

// Next implements core.RowSource.
func (s *ArrowRowSource) Next(ctx context.Context) (core.Row, error) {
	for s.rec == nil || int64(s.next) >= s.rec.NumRows() {
		if s.rec != nil {
			s.rec.Release()
			s.rec = nil
		}
		rec, err := s.reader.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read record batch: %w", err)
		}
		if rec.NumCols() != int64(len(s.extract)) {
			rec.Release()
			return nil, fmt.Errorf("record batch has %d columns, schema declares %d", rec.NumCols(), len(s.extract))
		}
		s.rec = rec
		s.next = 0
	}

	row := make(core.Row, len(s.extract))
	for c, extract := range s.extract {
		col := s.rec.Column(c)
		if col.IsNull(s.next) {
			continue
		}
		row[c] = extract(col, s.next)
	}
	s.next++
	s.read++
	return row, nil
}

// Close releases the current batch and closes the underlying reader.
func (s *ArrowRowSource) Close() error {
	if s.rec != nil {
		s.rec.Release()
		s.rec = nil
	}
	return s.reader.Close()
}
