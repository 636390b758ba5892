// Package core provides the core types and interfaces shared by the bdt
// format adapters, the comparison engine and the reporters.
package core

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// DatasetReader defines an interface for reading record batches from a
// physical source (a file or a query result).
type DatasetReader interface {
	// Read returns the next record batch. The caller owns the returned record
	// and must Release it. Returns io.EOF when there are no more batches.
	Read(ctx context.Context) (arrow.Record, error)

	// Schema returns the Arrow schema of the dataset.
	Schema() *arrow.Schema

	// Close closes the reader and releases resources.
	Close() error
}

// DatasetWriter defines an interface for writing record batches to a
// destination.
type DatasetWriter interface {
	// Write writes a record to the destination.
	Write(ctx context.Context, record arrow.Record) error

	// Close closes the writer and flushes any pending data.
	Close() error
}

// RowSource yields a declared schema followed by an ordered, single-pass
// sequence of rows.
type RowSource interface {
	// Schema returns the logical schema of every row produced by Next.
	Schema() LogicalSchema

	// Next returns the next row, or io.EOF when the source is exhausted.
	// Rows are yielded in a stable order; a returned row is only valid until
	// the following call.
	Next(ctx context.Context) (Row, error)
}

// RowSink accepts a schema once and rows thereafter.
type RowSink interface {
	Open(schema LogicalSchema) error
	Write(row Row) error
	Close() error
}

// ReaderConfig provides configuration for creating a reader.
type ReaderConfig struct {
	// Type is the type of the reader (csv, json, parquet, arrow, avro, adbc).
	Type string

	// Path is the path to the file. For adbc readers it holds the SQL text.
	Path string

	// BatchSize is the number of rows per record batch.
	BatchSize int64

	// NoHeaderRow treats the first CSV line as data. Columns are then named
	// by position.
	NoHeaderRow bool

	// Driver is the ADBC driver library (adbc readers only).
	Driver string

	// Entrypoint is the optional ADBC driver init symbol.
	Entrypoint string

	// ConnectionString is the ADBC database URI.
	ConnectionString string

	// Tables are files ingested into the ADBC database before the query
	// runs, each named after its file stem.
	Tables []string
}

// WriterConfig provides configuration for creating a writer.
type WriterConfig struct {
	// Type is the type of the writer (csv, json, parquet, arrow).
	Type string

	// Path is the path to the output file.
	Path string

	// Zstd selects zstd compression for Parquet output instead of snappy.
	Zstd bool

	// Schema, when set, lets the writer create its output before the first
	// record arrives, so that an empty dataset still produces a valid file.
	Schema *arrow.Schema
}
