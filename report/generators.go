package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TFMV/bdt/pkg/compare"
)

// -----------------------------
// Text Report Generator
// -----------------------------

// TextGenerator renders tables for a terminal.
type TextGenerator struct{}

// Generate renders the verdict line, the difference table and the summary.
func (g *TextGenerator) Generate(r *Rendered) ([]byte, error) {
	var buf bytes.Buffer

	verdictColor(r.Verdict).Fprintf(&buf, "%s: %s\n", r.Verdict, r.Message)

	for _, c := range r.Incompatible {
		fmt.Fprintf(&buf, "column %q: %s vs %s has no common type\n", c.Name, c.LeftType, c.RightType)
	}
	for _, h := range r.Hints {
		fmt.Fprintf(&buf, "column %q is only in left, %q only in right: renamed?\n", h.Left, h.Right)
	}

	if len(r.Differences) > 0 {
		buf.WriteString("\n")
		table := tablewriter.NewWriter(&buf)
		table.SetHeader([]string{"Row", "Column", "Left", "Right", "Kind"})
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, d := range r.Differences {
			table.Append([]string{rowCell(d), d.Column, cellText(d, d.Left), cellText(d, d.Right), string(d.Kind)})
		}
		table.Render()
	}
	if r.Omitted > 0 {
		fmt.Fprintf(&buf, "... %d more differences not shown\n", r.Omitted)
	}

	buf.WriteString("\n")
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Summary", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	s := r.Summary
	table.AppendBulk([][]string{
		{"Rows compared", u64(s.RowsCompared)},
		{"Rows equal", u64(s.RowsEqual)},
		{"Rows different", u64(s.RowsDifferent)},
		{"Left rows", u64(s.LeftRows)},
		{"Right rows", u64(s.RightRows)},
		{"Cell differences", u64(s.CellDifferences)},
		{"Columns only in left", strconv.Itoa(s.ColumnsLeftOnly)},
		{"Columns only in right", strconv.Itoa(s.ColumnsRightOnly)},
		{"Incompatible columns", strconv.Itoa(s.IncompatibleColumns)},
	})
	table.Render()

	return buf.Bytes(), nil
}

// rowCell leaves the row blank for column level differences.
func rowCell(d compare.Difference) string {
	if d.Kind == compare.LeftOnlyColumn || d.Kind == compare.RightOnlyColumn {
		return "-"
	}
	return u64(d.RowOrdinal)
}

// nullMarker stands for a null cell in the text and HTML reports.
const nullMarker = "<null>"

// isNull reports whether v is a null cell of a cell level difference.
func isNull(d compare.Difference, v *string) bool {
	return v == nil && (d.Kind == compare.ValueMismatch || d.Kind == compare.NullMismatch)
}

func cellText(d compare.Difference, v *string) string {
	if isNull(d, v) {
		return nullMarker
	}
	if v == nil {
		return ""
	}
	return *v
}

func u64(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func verdictColor(v compare.Verdict) *color.Color {
	switch v {
	case compare.VerdictEqual:
		return color.New(color.FgGreen, color.Bold)
	case compare.VerdictUnequal:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgYellow, color.Bold)
	}
}

// -----------------------------
// JSON Report Generator
// -----------------------------

// JSONGenerator generates JSON reports.
type JSONGenerator struct{}

// Generate serializes the rendered report to indented JSON.
func (g *JSONGenerator) Generate(r *Rendered) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// -----------------------------
// YAML Report Generator
// -----------------------------

// YAMLGenerator generates YAML reports.
type YAMLGenerator struct{}

// Generate serializes the rendered report to YAML.
func (g *YAMLGenerator) Generate(r *Rendered) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// -----------------------------
// HTML Report Generator
// -----------------------------

// HTMLGenerator generates HTML reports.
type HTMLGenerator struct{}

// HTML template for the report.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>bdt Comparison Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { border-collapse: collapse; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f4f4f4; }
        .verdict-Equal { color: green; }
        .verdict-Unequal { color: red; }
        .verdict-StructurallyIncomparable { color: darkorange; }
        .null { color: #999; font-style: italic; }
    </style>
</head>
<body>
    <h1>Comparison Report</h1>
    <p class="verdict-{{.Verdict}}"><strong>{{.Verdict}}</strong>: {{.Message}}</p>
    {{if .Incompatible}}
    <h2>Incompatible Columns</h2>
    <ul>
        {{range .Incompatible}}<li>{{.Name}}: {{.LeftType}} vs {{.RightType}}</li>{{end}}
    </ul>
    {{end}}
    {{if .Hints}}
    <h2>Possibly Renamed Columns</h2>
    <ul>
        {{range .Hints}}<li>{{.Left}} (left) / {{.Right}} (right)</li>{{end}}
    </ul>
    {{end}}

    <h2>Differences</h2>
    <table>
        <tr>
            <th>Row</th>
            <th>Column</th>
            <th>Left</th>
            <th>Right</th>
            <th>Kind</th>
        </tr>
        {{range .Differences}}
        <tr>
            <td>{{rowCell .}}</td>
            <td>{{.Column}}</td>
            <td>{{if isNull . .Left}}<span class="null">null</span>{{else}}{{.LeftValue}}{{end}}</td>
            <td>{{if isNull . .Right}}<span class="null">null</span>{{else}}{{.RightValue}}{{end}}</td>
            <td>{{.Kind}}</td>
        </tr>
        {{else}}
        <tr><td colspan="5">None</td></tr>
        {{end}}
    </table>
    {{if .Omitted}}<p>{{.Omitted}} more differences not shown</p>{{end}}

    <h2>Summary</h2>
    <table>
        <tr><th>Rows compared</th><td>{{.Summary.RowsCompared}}</td></tr>
        <tr><th>Rows equal</th><td>{{.Summary.RowsEqual}}</td></tr>
        <tr><th>Rows different</th><td>{{.Summary.RowsDifferent}}</td></tr>
        <tr><th>Left rows</th><td>{{.Summary.LeftRows}}</td></tr>
        <tr><th>Right rows</th><td>{{.Summary.RightRows}}</td></tr>
        <tr><th>Cell differences</th><td>{{.Summary.CellDifferences}}</td></tr>
        <tr><th>Columns only in left</th><td>{{.Summary.ColumnsLeftOnly}}</td></tr>
        <tr><th>Columns only in right</th><td>{{.Summary.ColumnsRightOnly}}</td></tr>
        <tr><th>Incompatible columns</th><td>{{.Summary.IncompatibleColumns}}</td></tr>
    </table>
</body>
</html>
`

var htmlReport = template.Must(template.New("report").
	Funcs(template.FuncMap{"rowCell": rowCell, "isNull": isNull}).
	Parse(htmlTemplate))

// Generate renders the report as a standalone HTML page.
func (g *HTMLGenerator) Generate(r *Rendered) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlReport.Execute(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
