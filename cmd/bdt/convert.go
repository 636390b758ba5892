package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/bdt/pkg/core"
	"github.com/TFMV/bdt/pkg/writers"
)

// ConvertOptions represents the options for the convert command.
type ConvertOptions struct {
	InputPath  string
	OutputPath string
	InputType  string
	OutputType string
	Zstd       bool
}

func newConvertCommand(a *app) *cobra.Command {
	options := &ConvertOptions{}

	cmd := &cobra.Command{
		Use:   "convert [flags] INPUT OUTPUT",
		Short: "Convert a file to another format",
		Long: `Convert a file between CSV, NDJSON, Parquet, Arrow IPC and Avro (input
only). Formats are detected from the file extensions unless given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.InputPath = args[0]
			options.OutputPath = args[1]
			return a.runConvert(cmd.Context(), options)
		},
	}

	cmd.Flags().StringVar(&options.InputType, "input-type", "", "input type; detected from the extension by default")
	cmd.Flags().StringVar(&options.OutputType, "output-type", "", "output type (csv, json, parquet, arrow); detected from the extension by default")
	cmd.Flags().BoolVar(&options.Zstd, "zstd", false, "use zstd compression for Parquet output")
	return cmd
}

func (a *app) runConvert(ctx context.Context, options *ConvertOptions) error {
	reader, err := a.openReader(ctx, options.InputPath, options.InputType)
	if err != nil {
		return err
	}
	defer reader.Close()

	stopSpinner := a.startSpinner("converting...")
	n, err := writeAll(ctx, reader, core.WriterConfig{
		Type: options.OutputType,
		Path: options.OutputPath,
		Zstd: options.Zstd,
	})
	stopSpinner()
	if err != nil {
		return err
	}

	a.log.Info("conversion finished",
		zap.String("input", options.InputPath),
		zap.String("output", options.OutputPath),
		zap.Int64("rows", n))
	return nil
}

// writeAll copies every record of reader into a new writer built from
// config and returns the number of rows written. The output is created from
// the reader's schema, so an empty input still yields a valid file.
func writeAll(ctx context.Context, reader core.DatasetReader, config core.WriterConfig) (int64, error) {
	config.Schema = reader.Schema()
	writer, err := writers.DefaultFactory.Create(config)
	if err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", config.Path, err)
	}

	var n int64
	for {
		rec, err := reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writer.Close()
			return n, err
		}
		err = writer.Write(ctx, rec)
		n += rec.NumRows()
		rec.Release()
		if err != nil {
			writer.Close()
			return n, err
		}
	}

	if err := writer.Close(); err != nil {
		return n, fmt.Errorf("cannot finish %s: %w", config.Path, err)
	}
	return n, nil
}
