package writers

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/bdt/pkg/core"
)

// DefaultSinkBatchSize is the number of rows buffered before a record batch
// is handed to the writer.
const DefaultSinkBatchSize = 4096

// RecordSink implements core.RowSink on top of a DatasetWriter. Rows are
// buffered into Arrow builders and flushed as record batches.
type RecordSink struct {
	ctx       context.Context
	factory   *Factory
	config    core.WriterConfig
	batchSize int

	writer  core.DatasetWriter
	schema  *arrow.Schema
	bldr    *array.RecordBuilder
	pending int
	written int64
}

// NewRecordSink returns a sink that creates its writer from config through
// factory when opened. A nil factory uses DefaultFactory.
func NewRecordSink(ctx context.Context, factory *Factory, config core.WriterConfig) *RecordSink {
	if factory == nil {
		factory = DefaultFactory
	}
	return &RecordSink{
		ctx:       ctx,
		factory:   factory,
		config:    config,
		batchSize: DefaultSinkBatchSize,
	}
}

// Open implements core.RowSink.
func (s *RecordSink) Open(schema core.LogicalSchema) error {
	if s.writer != nil {
		return errors.New("sink is already open")
	}

	s.schema = ArrowSchema(schema)
	config := s.config
	config.Schema = s.schema

	w, err := s.factory.Create(config)
	if err != nil {
		return err
	}
	s.writer = w
	s.bldr = array.NewRecordBuilder(memory.NewGoAllocator(), s.schema)
	return nil
}

// Write implements core.RowSink.
func (s *RecordSink) Write(row core.Row) error {
	if s.writer == nil {
		return errors.New("sink is not open")
	}
	if len(row) != len(s.schema.Fields()) {
		return fmt.Errorf("row has %d values, schema declares %d", len(row), len(s.schema.Fields()))
	}

	for i, v := range row {
		if err := appendValue(s.bldr.Field(i), v); err != nil {
			return fmt.Errorf("column %q: %w", s.schema.Field(i).Name, err)
		}
	}
	s.pending++
	s.written++

	if s.pending >= s.batchSize {
		return s.flush()
	}
	return nil
}

// Written returns the number of rows accepted so far.
func (s *RecordSink) Written() int64 {
	return s.written
}

// Close implements core.RowSink. It flushes buffered rows and closes the writer.
func (s *RecordSink) Close() error {
	if s.writer == nil {
		return nil
	}

	err := s.flush()
	if closeErr := s.writer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	s.bldr.Release()
	s.writer = nil
	return err
}

func (s *RecordSink) flush() error {
	if s.pending == 0 {
		return nil
	}
	rec := s.bldr.NewRecord()
	defer rec.Release()
	s.pending = 0
	return s.writer.Write(s.ctx, rec)
}

// ArrowSchema maps a logical schema to the Arrow schema used for writing.
func ArrowSchema(schema core.LogicalSchema) *arrow.Schema {
	fields := make([]arrow.Field, len(schema.Columns))
	for i, c := range schema.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type), Nullable: c.Nullable}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t core.LogicalType) arrow.DataType {
	switch t.Kind {
	case core.KindInteger:
		switch {
		case t.Signed && t.BitWidth <= 8:
			return arrow.PrimitiveTypes.Int8
		case t.Signed && t.BitWidth <= 16:
			return arrow.PrimitiveTypes.Int16
		case t.Signed && t.BitWidth <= 32:
			return arrow.PrimitiveTypes.Int32
		case t.Signed:
			return arrow.PrimitiveTypes.Int64
		case t.BitWidth <= 8:
			return arrow.PrimitiveTypes.Uint8
		case t.BitWidth <= 16:
			return arrow.PrimitiveTypes.Uint16
		case t.BitWidth <= 32:
			return arrow.PrimitiveTypes.Uint32
		default:
			return arrow.PrimitiveTypes.Uint64
		}
	case core.KindFloat:
		if t.BitWidth <= 32 {
			return arrow.PrimitiveTypes.Float32
		}
		return arrow.PrimitiveTypes.Float64
	case core.KindDecimal:
		if t.Precision <= 38 {
			return &arrow.Decimal128Type{Precision: t.Precision, Scale: t.Scale}
		}
		return &arrow.Decimal256Type{Precision: t.Precision, Scale: t.Scale}
	case core.KindBoolean:
		return arrow.FixedWidthTypes.Boolean
	case core.KindTimestamp:
		return &arrow.TimestampType{Unit: arrowUnit(t.Unit), TimeZone: "UTC"}
	case core.KindBinary:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

func arrowUnit(u core.TimeUnit) arrow.TimeUnit {
	switch u {
	case core.Millisecond:
		return arrow.Millisecond
	case core.Microsecond:
		return arrow.Microsecond
	case core.Nanosecond:
		return arrow.Nanosecond
	default:
		return arrow.Second
	}
}

func appendValue(b array.Builder, v core.Value) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch bldr := b.(type) {
	case *array.Int8Builder:
		n, err := asInt64(v)
		bldr.Append(int8(n))
		return err
	case *array.Int16Builder:
		n, err := asInt64(v)
		bldr.Append(int16(n))
		return err
	case *array.Int32Builder:
		n, err := asInt64(v)
		bldr.Append(int32(n))
		return err
	case *array.Int64Builder:
		n, err := asInt64(v)
		bldr.Append(n)
		return err
	case *array.Uint8Builder:
		n, err := asUint64(v)
		bldr.Append(uint8(n))
		return err
	case *array.Uint16Builder:
		n, err := asUint64(v)
		bldr.Append(uint16(n))
		return err
	case *array.Uint32Builder:
		n, err := asUint64(v)
		bldr.Append(uint32(n))
		return err
	case *array.Uint64Builder:
		n, err := asUint64(v)
		bldr.Append(n)
		return err
	case *array.Float32Builder:
		f, ok := v.(float64)
		bldr.Append(float32(f))
		return typeErr(ok, v, "float")
	case *array.Float64Builder:
		f, ok := v.(float64)
		bldr.Append(f)
		return typeErr(ok, v, "float")
	case *array.Decimal128Builder:
		coef, err := decimalCoef(v, bldr.Type().(*arrow.Decimal128Type).Scale)
		if err != nil {
			bldr.AppendNull()
			return err
		}
		bldr.Append(decimal128.FromBigInt(coef))
		return nil
	case *array.Decimal256Builder:
		coef, err := decimalCoef(v, bldr.Type().(*arrow.Decimal256Type).Scale)
		if err != nil {
			bldr.AppendNull()
			return err
		}
		bldr.Append(decimal256.FromBigInt(coef))
		return nil
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		bldr.Append(x)
		return typeErr(ok, v, "boolean")
	case *array.TimestampBuilder:
		ts, ok := v.(core.Timestamp)
		if !ok {
			bldr.AppendNull()
			return typeErr(false, v, "timestamp")
		}
		unit := bldr.Type().(*arrow.TimestampType).Unit
		bldr.Append(arrow.Timestamp(convertTicks(ts, unit)))
		return nil
	case *array.BinaryBuilder:
		x, ok := v.([]byte)
		bldr.Append(x)
		return typeErr(ok, v, "binary")
	case *array.StringBuilder:
		bldr.Append(core.FormatValue(v))
		return nil
	default:
		b.AppendNull()
		return fmt.Errorf("unsupported column type %s", b.Type())
	}
}

func asInt64(v core.Value) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case uint64:
		return int64(x), nil
	default:
		return 0, typeErr(false, v, "integer")
	}
}

func asUint64(v core.Value) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case int64:
		return uint64(x), nil
	default:
		return 0, typeErr(false, v, "integer")
	}
}

// decimalCoef returns the coefficient of v at the given scale.
func decimalCoef(v core.Value, scale int32) (*big.Int, error) {
	d, ok := v.(core.Decimal)
	if !ok {
		return nil, typeErr(false, v, "decimal")
	}
	r := d.Rat()
	r.Mul(r, new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)))
	if !r.IsInt() {
		return nil, fmt.Errorf("decimal %s does not fit scale %d", d, scale)
	}
	return new(big.Int).Set(r.Num()), nil
}

func convertTicks(ts core.Timestamp, unit arrow.TimeUnit) int64 {
	from := ts.Unit.PerSecond()
	to := int64(1)
	switch unit {
	case arrow.Millisecond:
		to = 1_000
	case arrow.Microsecond:
		to = 1_000_000
	case arrow.Nanosecond:
		to = 1_000_000_000
	}
	if to >= from {
		return ts.Value * (to / from)
	}
	return ts.Value / (from / to)
}

func typeErr(ok bool, v core.Value, want string) error {
	if ok {
		return nil
	}
	return fmt.Errorf("cannot write %T as %s", v, want)
}
