package main

import (
	"context"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TFMV/bdt/pkg/readers"
)

// maxConcurrentCounts bounds the number of files read at once.
const maxConcurrentCounts = 4

// CountOptions represents the options for the count command.
type CountOptions struct {
	Paths []string
	Type  string
}

func newCountCommand(a *app) *cobra.Command {
	options := &CountOptions{}

	cmd := &cobra.Command{
		Use:   "count [flags] FILE...",
		Short: "Count the rows of one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Paths = args
			return a.runCount(cmd.Context(), options)
		},
	}

	cmd.Flags().StringVarP(&options.Type, "type", "t", "", "input type for every file; detected from each extension by default")
	return cmd
}

func (a *app) runCount(ctx context.Context, options *CountOptions) error {
	counts := make([]int64, len(options.Paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCounts)
	for i, path := range options.Paths {
		g.Go(func() error {
			reader, err := a.openReader(ctx, path, options.Type)
			if err != nil {
				return err
			}
			defer reader.Close()

			n, err := readers.CountRows(ctx, reader)
			if err != nil {
				return err
			}
			counts[i] = n
			a.log.Debug("counted rows", zap.String("path", path), zap.Int64("rows", n))
			return nil
		})
	}
	stopSpinner := a.startSpinner("counting...")
	err := g.Wait()
	stopSpinner()
	if err != nil {
		return err
	}

	table := newTable(a.stdout, "File", "Rows")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for i, path := range options.Paths {
		table.Append([]string{path, itoa(counts[i])})
	}
	table.Render()
	return nil
}
