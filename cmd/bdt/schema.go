package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TFMV/bdt/pkg/rows"
)

// SchemaOptions represents the options for the schema command.
type SchemaOptions struct {
	Path string
	Type string
}

func newSchemaCommand(a *app) *cobra.Command {
	options := &SchemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema [flags] FILE",
		Short: "Print the schema of a file",
		Long: `Print the columns of a file with their Arrow type and the logical type
used when the file is compared.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Path = args[0]
			return a.runSchema(cmd.Context(), options)
		},
	}

	cmd.Flags().StringVarP(&options.Type, "type", "t", "", "input type; detected from the extension by default")
	return cmd
}

func (a *app) runSchema(ctx context.Context, options *SchemaOptions) error {
	reader, err := a.openReader(ctx, options.Path, options.Type)
	if err != nil {
		return err
	}
	defer reader.Close()

	table := newTable(a.stdout, "Column", "Arrow type", "Logical type", "Nullable")
	for _, f := range reader.Schema().Fields() {
		table.Append([]string{
			f.Name,
			f.Type.String(),
			rows.LogicalTypeOf(f.Type).String(),
			strconv.FormatBool(f.Nullable),
		})
	}
	table.Render()
	return nil
}
