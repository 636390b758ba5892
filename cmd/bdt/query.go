package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/bdt/pkg/core"
	"github.com/TFMV/bdt/pkg/readers"
	"github.com/TFMV/bdt/pkg/rows"
)

// QueryOptions represents the options for the query command.
type QueryOptions struct {
	SQL        string
	Tables     []string
	OutputPath string
	Zstd       bool
	Limit      int
	Verbose    bool
}

func newQueryCommand(a *app) *cobra.Command {
	options := &QueryOptions{Limit: 10}

	cmd := &cobra.Command{
		Use:   "query [flags] --sql SQL [--table FILE...]",
		Short: "Run SQL through an ADBC driver",
		Long: `Run a SQL query through an ADBC driver loaded by the driver manager and
print the result, or write it to a file in any supported output format.

Each --table file is loaded into the database first as a table named after
the file stem, with characters other than letters, digits and underscores
replaced by underscores: --table data/sales-2024.csv becomes sales_2024.
`+"`--verbose`"+` prints the database's plan for the query before running it.

The driver, URI and entrypoint may also be set in the adbc section of the
config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd.Context(), options)
		},
	}

	cmd.Flags().StringVar(&options.SQL, "sql", "", "SQL query to run")
	cmd.Flags().StringArrayVarP(&options.Tables, "table", "t", nil, "file to register as a table (repeatable)")
	cmd.Flags().BoolVarP(&options.Verbose, "verbose", "v", false, "print the query plan")
	cmd.Flags().String("driver", "", "ADBC driver library, e.g. libadbc_driver_sqlite.so")
	cmd.Flags().String("uri", "", "database URI passed to the driver")
	cmd.Flags().String("entrypoint", "", "driver init symbol, if not the default")
	cmd.Flags().StringVarP(&options.OutputPath, "output", "o", "", "write the result to this file instead of printing it")
	cmd.Flags().BoolVar(&options.Zstd, "zstd", false, "use zstd compression for Parquet output")
	cmd.Flags().IntVarP(&options.Limit, "limit", "l", options.Limit, "maximum number of rows to print (0 = all)")
	return cmd
}

func (a *app) runQuery(ctx context.Context, options *QueryOptions) error {
	if options.SQL == "" {
		return errors.New("--sql is required")
	}
	if options.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", options.Limit)
	}

	session, err := readers.OpenADBC(ctx, a.readerConfig(options.SQL, "adbc"))
	if err != nil {
		return err
	}
	defer session.Close()

	for _, path := range options.Tables {
		name, err := session.IngestFile(ctx, a.readerConfig(path, ""))
		if err != nil {
			return err
		}
		if !a.quiet {
			fmt.Fprintf(a.stderr, "Registering table '%s' for %s\n", name, path)
		}
		a.log.Info("table registered", zap.String("table", name), zap.String("path", path))
	}

	if options.Verbose {
		a.printPlan(ctx, session, options.SQL)
	}

	reader, err := session.Query(ctx, options.SQL)
	if err != nil {
		return err
	}
	defer reader.Close()

	if options.OutputPath != "" {
		n, err := writeAll(ctx, reader, core.WriterConfig{Path: options.OutputPath, Zstd: options.Zstd})
		if err != nil {
			return err
		}
		a.log.Info("query result written", zap.String("path", options.OutputPath), zap.Int64("rows", n))
		return nil
	}

	src, err := rows.NewArrowRowSource(reader)
	if err != nil {
		return err
	}
	_, err = printRows(ctx, a.stdout, src, options.Limit)
	return err
}

// printPlan prints the database's EXPLAIN output for sql. Drivers without
// EXPLAIN support only get a warning.
func (a *app) printPlan(ctx context.Context, session *readers.ADBCSession, sql string) {
	plan, err := session.Query(ctx, "EXPLAIN "+sql)
	if err != nil {
		a.log.Warn("query plan unavailable", zap.Error(err))
		return
	}
	defer plan.Close()

	src, err := rows.NewArrowRowSource(plan)
	if err != nil {
		a.log.Warn("query plan unavailable", zap.Error(err))
		return
	}
	fmt.Fprintln(a.stdout, "Query plan:")
	if _, err := printRows(ctx, a.stdout, src, 0); err != nil {
		a.log.Warn("query plan unavailable", zap.Error(err))
	}
}
