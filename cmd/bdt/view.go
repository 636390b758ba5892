package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ViewOptions represents the options for the view command.
type ViewOptions struct {
	Path  string
	Type  string
	Limit int
}

func newViewCommand(a *app) *cobra.Command {
	options := &ViewOptions{Limit: 10}

	cmd := &cobra.Command{
		Use:   "view [flags] FILE",
		Short: "Print the rows of a file as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Path = args[0]
			return a.runView(cmd.Context(), options)
		},
	}

	cmd.Flags().IntVarP(&options.Limit, "limit", "l", options.Limit, "maximum number of rows to print (0 = all)")
	cmd.Flags().StringVarP(&options.Type, "type", "t", "", "input type; detected from the extension by default")
	return cmd
}

func (a *app) runView(ctx context.Context, options *ViewOptions) error {
	if options.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", options.Limit)
	}

	src, err := a.openRows(ctx, options.Path, options.Type)
	if err != nil {
		return err
	}
	defer src.Close()

	if options.Limit > 0 && !a.quiet {
		fmt.Fprintf(a.stderr, "Limiting to %d rows. Run with --limit 0 to remove limit.\n", options.Limit)
	}
	_, err = printRows(ctx, a.stdout, src, options.Limit)
	return err
}
