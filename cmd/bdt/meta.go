package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TFMV/bdt/pkg/inspect"
	"github.com/TFMV/bdt/report"
)

// ParquetMetaOptions represents the options for the view-parquet-meta command.
type ParquetMetaOptions struct {
	Path   string
	Format string
}

func newParquetMetaCommand(a *app) *cobra.Command {
	options := &ParquetMetaOptions{Format: report.FormatText}

	cmd := &cobra.Command{
		Use:   "view-parquet-meta [flags] FILE",
		Short: "Print the footer metadata of a Parquet file",
		Long: `Print the format version, writer, schema, row groups and column chunk
statistics of a Parquet file without reading its data pages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Path = args[0]
			return a.runParquetMeta(options)
		},
	}

	cmd.Flags().StringVarP(&options.Format, "format", "f", options.Format, "output format (text, json, yaml)")
	return cmd
}

func (a *app) runParquetMeta(options *ParquetMetaOptions) error {
	info, err := inspect.Parquet(options.Path)
	if err != nil {
		return err
	}

	switch options.Format {
	case report.FormatText, "":
		writeParquetMeta(a.stdout, info)
		return nil
	case report.FormatJSON:
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.stdout, "%s\n", data)
		return err
	case report.FormatYAML:
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", options.Format)
	}
}

func writeParquetMeta(w io.Writer, info *inspect.ParquetInfo) {
	fmt.Fprintf(w, "File:       %s\n", info.Path)
	fmt.Fprintf(w, "Version:    %s\n", info.Version)
	fmt.Fprintf(w, "Created by: %s\n", info.CreatedBy)
	fmt.Fprintf(w, "Rows:       %d\n", info.NumRows)
	fmt.Fprintf(w, "Row groups: %d\n", len(info.RowGroups))

	if len(info.KeyValues) > 0 {
		keys := make([]string, 0, len(info.KeyValues))
		for k := range info.KeyValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "\nKey/value metadata:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", k, info.KeyValues[k])
		}
	}

	fmt.Fprintln(w, "\nSchema:")
	schema := newTable(w, "Column", "Physical type", "Logical type")
	for _, c := range info.Columns {
		schema.Append([]string{c.Path, c.PhysicalType, c.LogicalType})
	}
	schema.Render()

	for i, rg := range info.RowGroups {
		fmt.Fprintf(w, "\nRow group %d: %d rows, %d bytes\n", i, rg.NumRows, rg.TotalByteSize)
		chunks := newTable(w, "Column", "Compression", "Values", "Compressed", "Nulls", "Distinct", "Min", "Max")
		for _, c := range rg.Columns {
			chunks.Append([]string{
				c.Path,
				c.Compression,
				itoa(c.NumValues),
				itoa(c.CompressedSize),
				optional(c.NullCount),
				optional(c.DistinctCount),
				c.Min,
				c.Max,
			})
		}
		chunks.Render()
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

func optional(v *int64) string {
	if v == nil {
		return "-"
	}
	return itoa(*v)
}
