package rows

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/bdt/pkg/core"
)

// recordReader is an in-memory core.DatasetReader.
type recordReader struct {
	schema  *arrow.Schema
	records []arrow.Record
	pos     int
	err     error
	closed  bool
}

func (r *recordReader) Read(ctx context.Context) (arrow.Record, error) {
	if r.pos >= len(r.records) {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	rec.Retain()
	r.pos++
	return rec, nil
}

func (r *recordReader) Schema() *arrow.Schema { return r.schema }

func (r *recordReader) Close() error {
	r.closed = true
	for _, rec := range r.records {
		rec.Release()
	}
	return nil
}

func TestSchemaFromArrow(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "i8", Type: arrow.PrimitiveTypes.Int8},
		{Name: "u32", Type: arrow.PrimitiveTypes.Uint32, Nullable: true},
		{Name: "f16", Type: arrow.FixedWidthTypes.Float16},
		{Name: "f64", Type: arrow.PrimitiveTypes.Float64},
		{Name: "d", Type: &arrow.Decimal128Type{Precision: 10, Scale: 2}},
		{Name: "s", Type: arrow.BinaryTypes.LargeString},
		{Name: "b", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "ts", Type: &arrow.TimestampType{Unit: arrow.Microsecond}},
		{Name: "day", Type: arrow.FixedWidthTypes.Date32},
		{Name: "bin", Type: arrow.BinaryTypes.Binary},
		{Name: "dict", Type: &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int8, ValueType: arrow.BinaryTypes.String}},
		{Name: "t32", Type: arrow.FixedWidthTypes.Time32s},
	}, nil)

	got := SchemaFromArrow(schema)
	want := []core.LogicalType{
		core.Integer(8, true),
		core.Integer(32, false),
		core.Float(16),
		core.Float(64),
		core.DecimalOf(10, 2),
		core.Utf8(),
		core.Boolean(),
		core.TimestampOf(core.Microsecond),
		core.TimestampOf(core.Second),
		core.Binary(),
		core.Utf8(),
		core.Utf8(),
	}
	require.Equal(t, len(want), got.NumColumns())
	for i, c := range got.Columns {
		assert.Equal(t, want[i], c.Type, "column %s", c.Name)
	}
	assert.True(t, got.Columns[1].Nullable)
	assert.Equal(t, "u32", got.Columns[1].Name)
}

func TestArrowRowSource(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "score", Type: arrow.PrimitiveTypes.Float32, Nullable: true},
		{Name: "amount", Type: &arrow.Decimal128Type{Precision: 10, Scale: 2}},
		{Name: "day", Type: arrow.FixedWidthTypes.Date32},
	}, nil)

	batch := func(ids []int64, scores []float32, valid []bool) arrow.Record {
		b := array.NewRecordBuilder(mem, schema)
		defer b.Release()
		b.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
		b.Field(1).(*array.Float32Builder).AppendValues(scores, valid)
		for _, id := range ids {
			b.Field(2).(*array.Decimal128Builder).Append(decimal128.FromI64(id * 150))
			b.Field(3).(*array.Date32Builder).Append(arrow.Date32(id))
		}
		return b.NewRecord()
	}

	reader := &recordReader{
		schema: schema,
		records: []arrow.Record{
			batch([]int64{1, 2}, []float32{0.5, 0}, []bool{true, false}),
			batch(nil, nil, nil),
			batch([]int64{3}, []float32{1.25}, nil),
		},
	}

	src, err := NewArrowRowSource(reader)
	require.NoError(t, err)

	var rows []core.Row
	for {
		row, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}

	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), src.RowsRead())

	assert.Equal(t, int64(1), rows[0][0])
	assert.Equal(t, 0.5, rows[0][1])
	assert.Equal(t, core.Decimal{Coef: big.NewInt(150), Scale: 2}, rows[0][2])
	assert.Equal(t, core.Timestamp{Value: 86400, Unit: core.Second}, rows[0][3])

	assert.Nil(t, rows[1][1])
	assert.Equal(t, 1.25, rows[2][1])
	assert.Equal(t, "4.50", core.FormatValue(rows[2][2]))

	require.NoError(t, src.Close())
	assert.True(t, reader.closed)
}

func TestArrowRowSourceDictionary(t *testing.T) {
	mem := memory.NewGoAllocator()
	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int16, ValueType: arrow.BinaryTypes.String}
	schema := arrow.NewSchema([]arrow.Field{{Name: "color", Type: dt, Nullable: true}}, nil)

	bldr := array.NewDictionaryBuilder(mem, dt).(*array.BinaryDictionaryBuilder)
	defer bldr.Release()
	require.NoError(t, bldr.AppendString("red"))
	require.NoError(t, bldr.AppendString("blue"))
	bldr.AppendNull()
	require.NoError(t, bldr.AppendString("red"))
	arr := bldr.NewArray()
	defer arr.Release()

	rec := array.NewRecord(schema, []arrow.Array{arr}, int64(arr.Len()))
	src, err := NewArrowRowSource(&recordReader{schema: schema, records: []arrow.Record{rec}})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, core.Utf8(), src.Schema().Columns[0].Type)

	var got []core.Value
	for {
		row, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, row[0])
	}
	assert.Equal(t, []core.Value{"red", "blue", nil, "red"}, got)
}

func TestArrowRowSourceReadError(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int64}}, nil)
	boom := errors.New("corrupt page")

	src, err := NewArrowRowSource(&recordReader{schema: schema, err: boom})
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestNewArrowRowSourceRequiresReader(t *testing.T) {
	_, err := NewArrowRowSource(nil)
	assert.Error(t, err)
}
