package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow-adbc/go/adbc/drivermgr"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/TFMV/bdt/pkg/core"
)

// ADBCSession is an open connection to a database loaded through the ADBC
// driver manager. Tables ingested into it are visible to later queries.
type ADBCSession struct {
	db   adbc.Database
	conn adbc.Connection

	// tables maps ingested table names to their source files.
	tables map[string]string
}

// OpenADBC loads config.Driver and opens a connection to config.ConnectionString.
func OpenADBC(ctx context.Context, config core.ReaderConfig) (*ADBCSession, error) {
	if config.Driver == "" {
		return nil, errors.New("driver is required for ADBC reader")
	}

	opts := map[string]string{"driver": config.Driver}
	if config.Entrypoint != "" {
		opts["entrypoint"] = config.Entrypoint
	}
	if config.ConnectionString != "" {
		opts[adbc.OptionKeyURI] = config.ConnectionString
	}

	drv := drivermgr.Driver{}
	db, err := drv.NewDatabase(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ADBC database: %w", err)
	}

	conn, err := db.Open(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open ADBC connection: %w", err)
	}
	return &ADBCSession{db: db, conn: conn, tables: make(map[string]string)}, nil
}

// Ingest creates table name from every record of reader and returns the
// number of rows written. The table must not exist yet.
func (s *ADBCSession) Ingest(ctx context.Context, name string, reader core.DatasetReader) (int64, error) {
	stmt, err := s.conn.NewStatement()
	if err != nil {
		return 0, fmt.Errorf("create statement failed: %w", err)
	}
	defer stmt.Close()

	if err := stmt.SetOption(adbc.OptionKeyIngestTargetTable, name); err != nil {
		return 0, fmt.Errorf("set ingest target %s: %w", name, err)
	}
	if err := stmt.SetOption(adbc.OptionKeyIngestMode, adbc.OptionValueIngestModeCreate); err != nil {
		return 0, fmt.Errorf("set ingest mode: %w", err)
	}

	stream := newDatasetRecords(ctx, reader)
	defer stream.Release()
	if err := stmt.BindStream(ctx, stream); err != nil {
		return 0, fmt.Errorf("bind %s: %w", name, err)
	}

	n, err := stmt.ExecuteUpdate(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest %s failed: %w", name, err)
	}
	if stream.err != nil {
		return 0, fmt.Errorf("ingest %s failed: %w", name, stream.err)
	}
	return n, nil
}

// IngestFile opens config.Path through DefaultFactory and ingests it as a
// table named by TableName. It returns the table name. Two files mapping to
// the same name are an error.
func (s *ADBCSession) IngestFile(ctx context.Context, config core.ReaderConfig) (string, error) {
	name := TableName(config.Path)
	if prev, ok := s.tables[name]; ok {
		return "", fmt.Errorf("%s and %s both register table %q", prev, config.Path, name)
	}
	reader, err := DefaultFactory.Create(ctx, core.ReaderConfig{
		Type:        config.Type,
		Path:        config.Path,
		BatchSize:   config.BatchSize,
		NoHeaderRow: config.NoHeaderRow,
	})
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", config.Path, err)
	}
	defer reader.Close()

	if _, err := s.Ingest(ctx, name, reader); err != nil {
		return "", err
	}
	s.tables[name] = config.Path
	return name, nil
}

// Query runs sql on the session. Closing the returned reader closes only the
// statement; the session stays open.
func (s *ADBCSession) Query(ctx context.Context, sql string) (core.DatasetReader, error) {
	if sql == "" {
		return nil, errors.New("SQL query is required for ADBC reader")
	}
	stmt, err := s.conn.NewStatement()
	if err != nil {
		return nil, fmt.Errorf("create statement failed: %w", err)
	}
	if err := stmt.SetSqlQuery(sql); err != nil {
		stmt.Close()
		return nil, fmt.Errorf("set SQL query failed: %w", err)
	}

	reader, _, err := stmt.ExecuteQuery(ctx)
	if err != nil {
		stmt.Close()
		return nil, fmt.Errorf("execute query failed: %w", err)
	}
	return newStreamReader("query result", reader, stmt), nil
}

// Close closes the connection and the database.
func (s *ADBCSession) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}

// NewADBCReader executes config.Path as a SQL query through an ADBC driver
// and reads its result set. Files in config.Tables are ingested first, each
// under the name TableName gives it.
func NewADBCReader(ctx context.Context, config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, errors.New("SQL query is required for ADBC reader")
	}

	session, err := OpenADBC(ctx, config)
	if err != nil {
		return nil, err
	}
	for _, path := range config.Tables {
		if _, err := session.IngestFile(ctx, core.ReaderConfig{Path: path, BatchSize: config.BatchSize, NoHeaderRow: config.NoHeaderRow}); err != nil {
			session.Close()
			return nil, err
		}
	}

	reader, err := session.Query(ctx, config.Path)
	if err != nil {
		session.Close()
		return nil, err
	}
	r := reader.(*streamReader)
	r.closers = append(r.closers, session)
	return r, nil
}

// TableName derives a SQL table name from a file path: the file stem with
// every character other than an ASCII letter, digit or underscore replaced
// by an underscore. A name that would start with a digit gets a leading
// underscore.
func TableName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, ch := range stem {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_':
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}

// datasetRecords exposes a core.DatasetReader as an array.RecordReader for
// statement binding. Read errors other than io.EOF end the stream and are
// kept in err.
type datasetRecords struct {
	ctx    context.Context
	reader core.DatasetReader
	refs   int64
	cur    arrow.Record
	err    error
}

func newDatasetRecords(ctx context.Context, reader core.DatasetReader) *datasetRecords {
	return &datasetRecords{ctx: ctx, reader: reader, refs: 1}
}

func (r *datasetRecords) Retain() { atomic.AddInt64(&r.refs, 1) }

func (r *datasetRecords) Release() {
	if atomic.AddInt64(&r.refs, -1) == 0 && r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
}

func (r *datasetRecords) Schema() *arrow.Schema { return r.reader.Schema() }

func (r *datasetRecords) Next() bool {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.err != nil {
		return false
	}
	rec, err := r.reader.Read(r.ctx)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = err
		}
		return false
	}
	r.cur = rec
	return true
}

func (r *datasetRecords) Record() arrow.Record { return r.cur }

func (r *datasetRecords) Err() error { return r.err }

var _ array.RecordReader = (*datasetRecords)(nil)
