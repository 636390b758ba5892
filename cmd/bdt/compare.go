package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/bdt/pkg/compare"
	"github.com/TFMV/bdt/pkg/core"
	"github.com/TFMV/bdt/pkg/writers"
	"github.com/TFMV/bdt/report"
)

// CompareOptions represents the options for the compare command that are not
// part of the configuration file.
type CompareOptions struct {
	LeftPath   string
	RightPath  string
	LeftType   string
	RightType  string
	OutputPath string
	Zstd       bool
}

// newCompareCommand creates a new compare command.
func newCompareCommand(a *app) *cobra.Command {
	options := &CompareOptions{}

	cmd := &cobra.Command{
		Use:   "compare [flags] LEFT RIGHT",
		Short: "Compare two datasets row by row",
		Long: `The compare command walks both datasets in lock-step and reports every
cell that differs, columns present on one side only and differing row counts.

Columns are matched by exact, case-sensitive name. Float and decimal values
may be compared with an absolute and/or relative tolerance.

Exit codes:
  0  the datasets are equal
  1  the datasets differ
  2  the datasets are structurally incomparable (incompatible column types)
  3  the comparison could not run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.LeftPath = args[0]
			options.RightPath = args[1]
			return a.runCompare(cmd.Context(), options)
		},
	}

	cmd.Flags().Float64("abs-epsilon", 0, "absolute tolerance for float and decimal values")
	cmd.Flags().Float64("rel-epsilon", 0, "relative tolerance for float and decimal values")
	cmd.Flags().Uint64("limit", 0, "maximum number of cell differences to record (0 = unlimited)")
	cmd.Flags().Int("max-rows", 20, "maximum number of differences to display (0 = all)")
	cmd.Flags().StringP("format", "f", report.FormatText, "output format (text, json, yaml, html)")
	cmd.Flags().StringVar(&options.LeftType, "left-type", "", "left input type (csv, json, parquet, arrow, avro); detected from the extension by default")
	cmd.Flags().StringVar(&options.RightType, "right-type", "", "right input type; detected from the extension by default")
	cmd.Flags().Bool("suggest-renames", false, "point out one-sided columns whose names nearly match")
	cmd.Flags().StringVarP(&options.OutputPath, "output", "o", "", "also write the recorded differences to this file (csv, json, parquet, arrow)")
	cmd.Flags().BoolVar(&options.Zstd, "zstd", false, "use zstd compression for Parquet output")

	return cmd
}

// runCompare executes the compare command with the given options.
func (a *app) runCompare(ctx context.Context, options *CompareOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := report.NewGenerator(a.cfg.Compare.Format)
	if err != nil {
		return &exitError{code: report.ExitError, err: err}
	}

	left, err := a.openRows(ctx, options.LeftPath, options.LeftType)
	if err != nil {
		return &exitError{code: report.ExitError, err: err}
	}
	defer left.Close()

	right, err := a.openRows(ctx, options.RightPath, options.RightType)
	if err != nil {
		return &exitError{code: report.ExitError, err: err}
	}
	defer right.Close()

	a.log.Info("comparing",
		zap.String("left", options.LeftPath),
		zap.String("right", options.RightPath),
		zap.Stringer("left_schema", left.Schema()),
		zap.Stringer("right_schema", right.Schema()))

	stopSpinner := a.startSpinner("comparing...")
	rep, err := compare.Compare(ctx, left, right, compare.Options{
		Policy: a.cfg.Compare.Policy(),
		Limit:  a.cfg.Compare.Limit,
		Logger: a.log,
	})
	stopSpinner()
	if err != nil {
		return &exitError{code: report.ExitError, err: describeCompareError(err)}
	}

	rendered := report.Render(rep, a.cfg.Compare.MaxRowsShown)
	if a.cfg.Compare.SuggestRenames {
		rendered.SuggestRenames(rep)
	}
	out, err := gen.Generate(rendered)
	if err != nil {
		return &exitError{code: report.ExitError, err: err}
	}
	if _, err := a.stdout.Write(out); err != nil {
		return &exitError{code: report.ExitError, err: err}
	}

	if options.OutputPath != "" {
		sink := writers.NewRecordSink(ctx, nil, core.WriterConfig{Path: options.OutputPath, Zstd: options.Zstd})
		if err := report.WriteDifferences(rep, sink); err != nil {
			return &exitError{code: report.ExitError, err: err}
		}
		a.log.Info("differences written", zap.String("path", options.OutputPath), zap.Int("count", len(rep.Differences)))
	}

	verdict := rep.Verdict()
	a.log.Info("comparison finished", zap.String("verdict", string(verdict)))
	return &exitError{code: report.ExitCode(verdict)}
}

// describeCompareError adds context for errors that stop a comparison.
func describeCompareError(err error) error {
	var rse *compare.RowSourceError
	switch {
	case errors.Is(err, compare.ErrDuplicateColumnName):
		return fmt.Errorf("comparison could not run: %w", err)
	case errors.As(err, &rse):
		return fmt.Errorf("comparison aborted reading row %d of the %s input: %w", rse.Ordinal, rse.Side, rse.Err)
	default:
		return err
	}
}
