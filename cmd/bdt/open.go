package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"

	"github.com/TFMV/bdt/pkg/core"
	"github.com/TFMV/bdt/pkg/readers"
	"github.com/TFMV/bdt/pkg/rows"
)

// readerConfig builds the reader configuration for a location from the
// loaded settings.
func (a *app) readerConfig(path, typ string) core.ReaderConfig {
	return core.ReaderConfig{
		Type:             typ,
		Path:             path,
		BatchSize:        a.cfg.Reader.BatchSize,
		NoHeaderRow:      a.cfg.Reader.NoHeaderRow,
		Driver:           a.cfg.ADBC.Driver,
		Entrypoint:       a.cfg.ADBC.Entrypoint,
		ConnectionString: a.cfg.ADBC.URI,
	}
}

// openReader opens a dataset reader for path. An empty type is detected from
// the file extension.
func (a *app) openReader(ctx context.Context, path, typ string) (core.DatasetReader, error) {
	reader, err := readers.DefaultFactory.Create(ctx, a.readerConfig(path, typ))
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	return reader, nil
}

// openRows opens path as a row source.
func (a *app) openRows(ctx context.Context, path, typ string) (*rows.ArrowRowSource, error) {
	reader, err := a.openReader(ctx, path, typ)
	if err != nil {
		return nil, err
	}
	src, err := rows.NewArrowRowSource(reader)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	return src, nil
}

// startSpinner shows progress on stderr when it is a terminal. The returned
// function stops it.
func (a *app) startSpinner(suffix string) func() {
	f, ok := a.stderr.(*os.File)
	if a.quiet || !ok || !isatty.IsTerminal(f.Fd()) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(f))
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

// printRows renders up to limit rows of src as a table. A limit of 0 prints
// every row. It returns the number of rows printed.
func printRows(ctx context.Context, w io.Writer, src core.RowSource, limit int) (int, error) {
	table := newTable(w, src.Schema().Names()...)

	n := 0
	for limit == 0 || n < limit {
		row, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = core.FormatValue(v)
		}
		table.Append(cells)
		n++
	}
	table.Render()
	return n, nil
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
