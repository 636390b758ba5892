package writers

import (
	"context"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/bdt/pkg/compare"
	"github.com/TFMV/bdt/pkg/core"
	"github.com/TFMV/bdt/pkg/readers"
	"github.com/TFMV/bdt/pkg/rows"
)

func sinkSchema() core.LogicalSchema {
	return core.NewSchema(
		core.Column{Name: "id", Type: core.Integer(64, true), Nullable: true},
		core.Column{Name: "name", Type: core.Utf8(), Nullable: true},
		core.Column{Name: "score", Type: core.Float(64), Nullable: true},
		core.Column{Name: "ok", Type: core.Boolean(), Nullable: true},
	)
}

func sinkRows(n int) []core.Row {
	out := make([]core.Row, n)
	for i := range out {
		var name core.Value = "n" + string(rune('a'+i%26))
		if i%5 == 0 {
			name = nil
		}
		out[i] = core.Row{int64(i), name, float64(i) + 0.5, i%2 == 0}
	}
	return out
}

type sliceSource struct {
	schema core.LogicalSchema
	rows   []core.Row
	pos    int
}

func (s *sliceSource) Schema() core.LogicalSchema { return s.schema }

func (s *sliceSource) Next(context.Context) (core.Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

func writeRows(t *testing.T, config core.WriterConfig, schema core.LogicalSchema, data []core.Row) {
	t.Helper()
	sink := NewRecordSink(context.Background(), nil, config)
	require.NoError(t, sink.Open(schema))
	for _, r := range data {
		require.NoError(t, sink.Write(r))
	}
	assert.Equal(t, int64(len(data)), sink.Written())
	require.NoError(t, sink.Close())
}

func openRows(t *testing.T, path string) *rows.ArrowRowSource {
	t.Helper()
	reader, err := readers.DefaultFactory.Create(context.Background(), core.ReaderConfig{Path: path})
	require.NoError(t, err)
	src, err := rows.NewArrowRowSource(reader)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestRecordSinkRoundTrip(t *testing.T) {
	data := sinkRows(30)
	for _, ext := range []string{".parquet", ".arrow", ".csv", ".json"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out"+ext)
			writeRows(t, core.WriterConfig{Path: path}, sinkSchema(), data)

			got := openRows(t, path)
			want := &sliceSource{schema: sinkSchema(), rows: data}
			rep, err := compare.Compare(context.Background(), want, got, compare.Options{})
			require.NoError(t, err)
			assert.Equal(t, compare.VerdictEqual, rep.Verdict(), "differences: %+v", rep.Differences)
			assert.Equal(t, uint64(30), rep.Summary.RowsCompared)
		})
	}
}

func TestRecordSinkFlushesBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.arrow")
	sink := NewRecordSink(context.Background(), nil, core.WriterConfig{Path: path})
	sink.batchSize = 4
	require.NoError(t, sink.Open(sinkSchema()))
	for _, r := range sinkRows(10) {
		require.NoError(t, sink.Write(r))
	}
	require.NoError(t, sink.Close())

	reader, err := readers.NewArrowReader(context.Background(), core.ReaderConfig{Path: path})
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, 3, reader.(*readers.ArrowReader).NumRecords())

	n, err := readers.CountRows(context.Background(), reader)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestRecordSinkEmptyDatasetIsValid(t *testing.T) {
	for _, ext := range []string{".parquet", ".arrow"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "empty"+ext)
			writeRows(t, core.WriterConfig{Path: path}, sinkSchema(), nil)

			src := openRows(t, path)
			assert.Equal(t, sinkSchema().Names(), src.Schema().Names())
			_, err := src.Next(context.Background())
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestRecordSinkRichTypes(t *testing.T) {
	schema := core.NewSchema(
		core.Column{Name: "amount", Type: core.DecimalOf(10, 2), Nullable: true},
		core.Column{Name: "at", Type: core.TimestampOf(core.Microsecond), Nullable: true},
		core.Column{Name: "blob", Type: core.Binary(), Nullable: true},
		core.Column{Name: "small", Type: core.Integer(16, true), Nullable: true},
		core.Column{Name: "count", Type: core.Integer(32, false), Nullable: true},
	)
	data := []core.Row{
		{core.Decimal{Coef: big.NewInt(12345), Scale: 2}, core.Timestamp{Value: 1_700_000_000_000_000, Unit: core.Microsecond}, []byte{1, 2}, int64(-3), uint64(7)},
		{core.Decimal{Coef: big.NewInt(5), Scale: 1}, core.Timestamp{Value: 1_700_000_000, Unit: core.Second}, nil, nil, uint64(0)},
	}

	path := filepath.Join(t.TempDir(), "rich.parquet")
	writeRows(t, core.WriterConfig{Path: path}, schema, data)

	got := openRows(t, path)
	rep, err := compare.Compare(context.Background(), &sliceSource{schema: schema, rows: data}, got, compare.Options{})
	require.NoError(t, err)
	assert.Equal(t, compare.VerdictEqual, rep.Verdict(), "differences: %+v", rep.Differences)
}

func TestRecordSinkRejectsBadRows(t *testing.T) {
	sink := NewRecordSink(context.Background(), nil, core.WriterConfig{Path: filepath.Join(t.TempDir(), "x.csv")})
	assert.ErrorContains(t, sink.Write(core.Row{int64(1)}), "not open")

	require.NoError(t, sink.Open(sinkSchema()))
	assert.Error(t, sink.Open(sinkSchema()))
	assert.ErrorContains(t, sink.Write(core.Row{int64(1)}), "row has 1 values")
	assert.ErrorContains(t, sink.Write(core.Row{"x", nil, nil, nil}), `column "id"`)
	require.NoError(t, sink.Close())
}

func TestRecordSinkDecimalScale(t *testing.T) {
	_, err := decimalCoef(core.Decimal{Coef: big.NewInt(1), Scale: 3}, 2)
	assert.ErrorContains(t, err, "does not fit scale")

	coef, err := decimalCoef(core.Decimal{Coef: big.NewInt(15), Scale: 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), coef.Int64())
}

func TestParquetWriterMetadata(t *testing.T) {
	for name, zstd := range map[string]bool{"snappy": false, "zstd": true} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.parquet")
			writeRows(t, core.WriterConfig{Path: path, Zstd: zstd}, sinkSchema(), sinkRows(8))

			pf, err := file.OpenParquetFile(path, false)
			require.NoError(t, err)
			defer pf.Close()

			md := pf.MetaData()
			assert.True(t, strings.HasPrefix(md.GetCreatedBy(), "bdt version"))
			assert.Equal(t, int64(8), pf.NumRows())

			chunk, err := md.RowGroup(0).ColumnChunk(0)
			require.NoError(t, err)
			want := compress.Codecs.Snappy
			if zstd {
				want = compress.Codecs.Zstd
			}
			assert.Equal(t, want, chunk.Compression())
		})
	}
}

func TestCSVWriterOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	writeRows(t, core.WriterConfig{Path: path}, sinkSchema(), sinkRows(2))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,name,score,ok\n0,,0.5,true\n1,nb,1.5,false\n", string(b))
}

func TestJSONWriterOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "b", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "a", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	bldr := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer bldr.Release()
	bldr.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2}, nil)
	bldr.Field(1).(*array.StringBuilder).AppendValues([]string{"x", "y"}, nil)
	rec := bldr.NewRecord()
	defer rec.Release()

	w, err := DefaultFactory.Create(core.WriterConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), rec))
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"a":"x","b":1}`, lines[0])
	assert.JSONEq(t, `{"a":"y","b":2}`, lines[1])
}

func TestWriterCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.arrow")
	schema := ArrowSchema(sinkSchema())
	w, err := DefaultFactory.Create(core.WriterConfig{Path: path, Schema: schema})
	require.NoError(t, err)
	defer w.Close()

	bldr := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer bldr.Release()
	rec := bldr.NewRecord()
	defer rec.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Write(ctx, rec), context.Canceled)
}

func TestDetectType(t *testing.T) {
	for path, want := range map[string]string{
		"a.csv": "csv", "b.jsonl": "json", "c.PARQUET": "parquet", "d.feather": "arrow",
	} {
		got, err := DetectType(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := DetectType("out.avro")
	assert.ErrorContains(t, err, "unsupported extension")
	_, err = DefaultFactory.Create(core.WriterConfig{Type: "xml", Path: "x"})
	assert.ErrorContains(t, err, "unsupported writer type")
}
