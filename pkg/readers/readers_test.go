package readers

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hamba/avro/v2/ocf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/bdt/pkg/core"
	"github.com/TFMV/bdt/pkg/writers"
)

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
}

func testRecord(t *testing.T, n int) arrow.Record {
	t.Helper()
	b := array.NewRecordBuilder(memory.NewGoAllocator(), testSchema())
	defer b.Release()
	for i := 0; i < n; i++ {
		b.Field(0).(*array.Int64Builder).Append(int64(i))
		b.Field(1).(*array.StringBuilder).Append("row" + string(rune('a'+i%26)))
		b.Field(2).(*array.Float64Builder).Append(float64(i) + 0.5)
	}
	return b.NewRecord()
}

// writeFile writes n test rows to path through the writer for its extension.
func writeFile(t *testing.T, path string, n int) {
	t.Helper()
	rec := testRecord(t, n)
	defer rec.Release()

	w, err := writers.DefaultFactory.Create(core.WriterConfig{Path: path, Schema: rec.Schema()})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), rec))
	require.NoError(t, w.Close())
}

// readAll drains reader and returns the total row count.
func readAll(t *testing.T, reader core.DatasetReader) int64 {
	t.Helper()
	var rows int64
	for {
		rec, err := reader.Read(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		rows += rec.NumRows()
		rec.Release()
	}
	return rows
}

func TestReadersRoundTrip(t *testing.T) {
	for _, ext := range []string{".csv", ".json", ".parquet", ".arrow"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data"+ext)
			writeFile(t, path, 25)

			reader, err := DefaultFactory.Create(context.Background(), core.ReaderConfig{Path: path, BatchSize: 10})
			require.NoError(t, err)
			defer reader.Close()

			schema := reader.Schema()
			require.NotNil(t, schema)
			names := make([]string, 0, schema.NumFields())
			for _, f := range schema.Fields() {
				names = append(names, f.Name)
			}
			assert.ElementsMatch(t, []string{"id", "name", "score"}, names)

			assert.Equal(t, int64(25), readAll(t, reader))
		})
	}
}

func TestCSVReaderNoHeaderRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,a\n2,b\n3,c\n"), 0o644))

	reader, err := NewCSVReader(context.Background(), core.ReaderConfig{Path: path, NoHeaderRow: true})
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "column_1", reader.Schema().Field(0).Name)
	assert.Equal(t, "column_2", reader.Schema().Field(1).Name)
	assert.Equal(t, int64(3), readAll(t, reader))
}

func TestCSVReaderEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := NewCSVReader(context.Background(), core.ReaderConfig{Path: path})
	assert.Error(t, err)
}

func TestInferJSONSchema(t *testing.T) {
	input := strings.Join([]string{
		`{"id": 1, "name": "a", "score": 1, "flag": true, "note": null}`,
		`{"id": 2, "score": 2.5, "note": null, "extra": "x"}`,
		``,
		`{"name": "c", "id": 3}`,
	}, "\n")

	schema, err := InferJSONSchema(strings.NewReader(input))
	require.NoError(t, err)

	want := []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "flag", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "note", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "extra", Type: arrow.BinaryTypes.String, Nullable: true},
	}
	assert.Equal(t, want, schema.Fields())
}

func TestInferJSONSchemaErrors(t *testing.T) {
	tests := map[string]string{
		"conflict": "{\"a\": 1}\n{\"a\": \"x\"}\n",
		"nested":   "{\"a\": {\"b\": 1}}\n",
		"array":    "[1, 2]\n",
		"empty":    "",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := InferJSONSchema(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestAvroReader(t *testing.T) {
	type row struct {
		ID    int64   `avro:"id"`
		Name  string  `avro:"name"`
		Score float64 `avro:"score"`
	}
	const schema = `{
		"type": "record",
		"name": "row",
		"fields": [
			{"name": "id", "type": "long"},
			{"name": "name", "type": "string"},
			{"name": "score", "type": "double"}
		]
	}`

	path := filepath.Join(t.TempDir(), "data.avro")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := ocf.NewEncoder(schema, f)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		require.NoError(t, enc.Encode(row{ID: int64(i), Name: "n", Score: float64(i) / 2}))
	}
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	reader, err := DefaultFactory.Create(context.Background(), core.ReaderConfig{Path: path, BatchSize: 3})
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, 3, reader.Schema().NumFields())
	assert.Equal(t, "id", reader.Schema().Field(0).Name)
	assert.Equal(t, int64(7), readAll(t, reader))
}

func TestReaderCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.parquet")
	writeFile(t, path, 5)

	reader, err := DefaultFactory.Create(context.Background(), core.ReaderConfig{Path: path})
	require.NoError(t, err)
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reader.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectType(t *testing.T) {
	tests := map[string]string{
		"a.csv":         "csv",
		"dir/b.PARQUET": "parquet",
		"c.parq":        "parquet",
		"d.ndjson":      "json",
		"e.json":        "json",
		"f.arrow":       "arrow",
		"g.feather":     "arrow",
		"h.avro":        "avro",
	}
	for path, want := range tests {
		got, err := DetectType(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := DetectType("noext")
	assert.Error(t, err)
	_, err = DetectType("file.xlsx")
	assert.Error(t, err)
}

func TestFactoryUnsupportedType(t *testing.T) {
	_, err := DefaultFactory.Create(context.Background(), core.ReaderConfig{Type: "xml", Path: "x"})
	assert.ErrorContains(t, err, "unsupported reader type")
	assert.Contains(t, DefaultFactory.Types(), "adbc")
}

func TestADBCReaderRequiresDriver(t *testing.T) {
	_, err := NewADBCReader(context.Background(), core.ReaderConfig{Path: "SELECT 1"})
	assert.ErrorContains(t, err, "driver is required")

	_, err = NewADBCReader(context.Background(), core.ReaderConfig{Driver: "x"})
	assert.ErrorContains(t, err, "SQL query is required")
}

func TestTableName(t *testing.T) {
	tests := map[string]string{
		"data.csv":                  "data",
		"/tmp/x/sales-2024.parquet": "sales_2024",
		"my data.v2.json":           "my_data_v2",
		"2024.csv":                  "_2024",
		"caf\u00e9.arrow":           "caf_",
		"under_score.avro":          "under_score",
		".csv":                      "_",
	}
	for path, want := range tests {
		assert.Equal(t, want, TableName(path), path)
	}
}

// failingReader yields one record and then fails.
type failingReader struct {
	rec  arrow.Record
	sent bool
}

func (r *failingReader) Read(context.Context) (arrow.Record, error) {
	if !r.sent {
		r.sent = true
		r.rec.Retain()
		return r.rec, nil
	}
	return nil, errors.New("bad block")
}

func (r *failingReader) Schema() *arrow.Schema { return r.rec.Schema() }
func (r *failingReader) Close() error { return nil }

func TestDatasetRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.arrow")
	writeFile(t, path, 12)
	reader, err := DefaultFactory.Create(context.Background(), core.ReaderConfig{Path: path, BatchSize: 5})
	require.NoError(t, err)
	defer reader.Close()

	stream := newDatasetRecords(context.Background(), reader)
	defer stream.Release()
	assert.Equal(t, 3, stream.Schema().NumFields())

	var rows int64
	for stream.Next() {
		rows += stream.Record().NumRows()
	}
	assert.NoError(t, stream.Err())
	assert.Equal(t, int64(12), rows)

	rec := testRecord(t, 3)
	defer rec.Release()
	failing := newDatasetRecords(context.Background(), &failingReader{rec: rec})
	defer failing.Release()
	require.True(t, failing.Next())
	assert.False(t, failing.Next())
	assert.ErrorContains(t, failing.Err(), "bad block")
	assert.False(t, failing.Next())
}

// sqliteConfig returns an in-memory SQLite configuration, skipping the test
// when the ADBC SQLite driver cannot be loaded.
func sqliteConfig(t *testing.T) core.ReaderConfig {
	t.Helper()
	driver := os.Getenv("BDT_ADBC_SQLITE_DRIVER")
	if driver == "" {
		driver = "adbc_driver_sqlite"
	}
	config := core.ReaderConfig{Driver: driver, ConnectionString: ":memory:"}
	session, err := OpenADBC(context.Background(), config)
	if err != nil {
		t.Skipf("ADBC SQLite driver not available: %v", err)
	}
	session.Close()
	return config
}

func TestADBCReaderTables(t *testing.T) {
	config := sqliteConfig(t)
	dir := t.TempDir()
	sales := filepath.Join(dir, "sales-2024.csv")
	writeFile(t, sales, 10)
	people := filepath.Join(dir, "people.parquet")
	writeFile(t, people, 4)

	config.Tables = []string{sales, people}
	config.Path = "SELECT s.id, s.score FROM sales_2024 s JOIN people p ON p.id = s.id WHERE s.id >= 2"
	reader, err := NewADBCReader(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, int64(2), readAll(t, reader))
	require.NoError(t, reader.Close())

	config.Tables = []string{sales, filepath.Join(dir, "sales_2024.json")}
	writeFile(t, config.Tables[1], 1)
	_, err = NewADBCReader(context.Background(), config)
	assert.ErrorContains(t, err, `both register table "sales_2024"`)
}

func TestADBCSessionIngest(t *testing.T) {
	config := sqliteConfig(t)
	session, err := OpenADBC(context.Background(), config)
	require.NoError(t, err)
	defer session.Close()

	rec := testRecord(t, 6)
	defer rec.Release()
	rr, err := array.NewRecordReader(rec.Schema(), []arrow.Record{rec})
	require.NoError(t, err)
	reader := newStreamReader("records", rr)
	defer reader.Close()

	_, err = session.Ingest(context.Background(), "scores", reader)
	require.NoError(t, err)

	result, err := session.Query(context.Background(), "SELECT name FROM scores WHERE score > 3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), readAll(t, result))
	require.NoError(t, result.Close())

	_, err = session.Query(context.Background(), "")
	assert.ErrorContains(t, err, "SQL query is required")
}

func TestCountRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.arrow")
	writeFile(t, path, 12)

	reader, err := DefaultFactory.Create(context.Background(), core.ReaderConfig{Path: path})
	require.NoError(t, err)
	defer reader.Close()

	n, err := CountRows(context.Background(), reader)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}
