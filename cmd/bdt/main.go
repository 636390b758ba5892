// Package main provides the entry point for bdt, the boring data tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TFMV/bdt/config"
	"github.com/TFMV/bdt/logger"
	"github.com/TFMV/bdt/report"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a process exit code out of a command. A nil err means
// the outcome has already been reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// app is the state shared by all commands of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	log    *zap.Logger
	stdout io.Writer
	stderr io.Writer

	configPath string
	quiet      bool
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr, log: zap.NewNop()}
	defer logger.Sync()

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return report.ExitEqual
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return report.ExitError
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bdt",
		Short: "bdt is a boring data tool for viewing, converting and comparing tabular files",
		Long: `bdt works with CSV, NDJSON, Parquet, Arrow IPC and Avro files.

It can view and convert files between formats, print schemas, row counts and
Parquet metadata, run SQL through an ADBC driver, and compare two datasets
row by row with optional numeric tolerance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./.bdt.yaml or $HOME/.bdt.yaml)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write JSON logs to this file")
	flags.Int64("batch-size", 0, "rows per record batch when reading")
	flags.Bool("no-header-row", false, "treat the first CSV line as data")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "suppress progress output")

	rootCmd.AddCommand(
		newCompareCommand(a),
		newViewCommand(a),
		newSchemaCommand(a),
		newCountCommand(a),
		newConvertCommand(a),
		newParquetMetaCommand(a),
		newQueryCommand(a),
		newRemoveInvalidUTF8Command(a),
		newServeCommand(a),
		newVersionCommand(a),
	)
	return rootCmd
}

// flagKeys maps command line flags to configuration keys, per command. Flags
// that are set take precedence over the config file and the environment.
var flagKeys = map[string]map[string]string{
	"": {
		"log-level":     "log.level",
		"log-file":      "log.file",
		"batch-size":    "reader.batch_size",
		"no-header-row": "reader.no_header_row",
	},
	"compare": {
		"abs-epsilon":     "compare.absolute_epsilon",
		"rel-epsilon":     "compare.relative_epsilon",
		"limit":           "compare.limit",
		"max-rows":        "compare.max_rows_shown",
		"format":          "compare.format",
		"suggest-renames": "compare.suggest_renames",
	},
	"serve": {
		"port":       "server.port",
		"max-rows":   "compare.max_rows_shown",
		"access-log": "server.access_log",
		"data-dir":   "server.data_dir",
	},
	"query": {
		"driver":     "adbc.driver",
		"uri":        "adbc.uri",
		"entrypoint": "adbc.entrypoint",
	},
}

// setup binds the flags of the running command, loads the configuration and
// initializes logging.
func (a *app) setup(cmd *cobra.Command) error {
	for _, keys := range []map[string]string{flagKeys[""], flagKeys[cmd.Name()]} {
		for name, key := range keys {
			f := cmd.Flags().Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Log.File != "" {
		logger.SetLogPath(cfg.Log.File)
	}
	logger.SetOutput(a.stderr)
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	a.log = logger.WithRunID().With(zap.String("command", cmd.Name()))
	if err := logger.Err(); err != nil {
		a.log.Warn("file logging disabled", zap.Error(err))
	}
	a.log.Debug("configuration loaded", zap.String("config", a.v.ConfigFileUsed()))
	return nil
}
