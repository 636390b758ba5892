package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/TFMV/bdt/pkg/compare"
	"github.com/TFMV/bdt/pkg/core"
	"github.com/TFMV/bdt/pkg/writers"
)

func init() {
	color.NoColor = true
}

func str(s string) *string { return &s }

func createTestReport() *compare.Report {
	return &compare.Report{
		Differences: []compare.Difference{
			{Column: "extra_col", Kind: compare.LeftOnlyColumn},
			{RowOrdinal: 0, Column: "score", Left: str("10.5"), Right: str("10"), Kind: compare.ValueMismatch},
			{RowOrdinal: 3, Column: "name", Right: str("bob"), Kind: compare.NullMismatch},
			{RowOrdinal: 7, Column: "score", Left: str("1"), Right: str("2"), Kind: compare.ValueMismatch},
		},
		Summary: compare.Summary{
			RowsCompared:    10,
			RowsEqual:       6,
			RowsDifferent:   4,
			ColumnsLeftOnly: 1,
			LeftRows:        10,
			RightRows:       10,
			CellDifferences: 5,
		},
		Limited: true,
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(compare.VerdictEqual))
	assert.Equal(t, 1, ExitCode(compare.VerdictUnequal))
	assert.Equal(t, 2, ExitCode(compare.VerdictIncomparable))
	assert.Equal(t, 3, ExitCode(compare.Verdict("bogus")))

	assert.NotEqual(t, Message(compare.VerdictUnequal), Message(compare.VerdictIncomparable))
}

func TestRenderTruncates(t *testing.T) {
	rep := createTestReport()

	r := Render(rep, 2)
	assert.Equal(t, compare.VerdictUnequal, r.Verdict)
	assert.Len(t, r.Differences, 2)
	// two cut for display plus two never recorded
	assert.Equal(t, uint64(4), r.Omitted)
	assert.Equal(t, rep.Summary, r.Summary)
	assert.Len(t, rep.Differences, 4)

	all := Render(rep, 0)
	assert.Len(t, all.Differences, 4)
	assert.Equal(t, uint64(2), all.Omitted)
}

func TestRenderEqual(t *testing.T) {
	r := Render(&compare.Report{Summary: compare.Summary{RowsCompared: 3, RowsEqual: 3, LeftRows: 3, RightRows: 3}}, 10)
	assert.Equal(t, compare.VerdictEqual, r.Verdict)
	assert.NotNil(t, r.Differences)
	assert.Zero(t, r.Omitted)
}

func TestRenderIncompatible(t *testing.T) {
	rep := &compare.Report{
		Incomparable: true,
		Plan: &compare.Plan{Pairings: []compare.ColumnPairing{
			{Kind: compare.Matched, Name: "id", EffectiveType: core.Integer(64, true)},
			{Kind: compare.Matched, Name: "code", LeftType: core.Integer(32, true), RightType: core.Utf8(), Incompatible: true},
		}},
	}
	r := Render(rep, 0)
	assert.Equal(t, compare.VerdictIncomparable, r.Verdict)
	require.Len(t, r.Incompatible, 1)
	assert.Equal(t, IncompatibleColumn{Name: "code", LeftType: "Int32", RightType: "Utf8"}, r.Incompatible[0])

	out, err := (&TextGenerator{}).Generate(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `column "code": Int32 vs Utf8`)
}

func TestRenderHints(t *testing.T) {
	rep := &compare.Report{
		Plan:    onlyPlan([]string{"Email"}, []string{"email"}),
		Summary: compare.Summary{ColumnsLeftOnly: 1, ColumnsRightOnly: 1},
	}
	r := Render(rep, 0)
	assert.Empty(t, r.Hints)
	r.SuggestRenames(rep)
	require.Len(t, r.Hints, 1)

	out, err := (&TextGenerator{}).Generate(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `column "Email" is only in left, "email" only in right`)

	html, err := (&HTMLGenerator{}).Generate(r)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Possibly Renamed Columns")
}

func TestTextGenerator(t *testing.T) {
	out, err := (&TextGenerator{}).Generate(Render(createTestReport(), 3))
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "Unequal: inputs differ\n"), text)
	assert.Contains(t, text, "extra_col")
	assert.Contains(t, text, "NullMismatch")
	assert.Contains(t, text, nullMarker)
	assert.Contains(t, text, "... 3 more differences not shown")
	assert.Contains(t, text, "Rows different")
	assert.NotContains(t, text, "\x1b[")
}

func TestJSONGenerator(t *testing.T) {
	out, err := (&JSONGenerator{}).Generate(Render(createTestReport(), 0))
	require.NoError(t, err)

	var decoded struct {
		Verdict     string               `json:"verdict"`
		Summary     compare.Summary      `json:"summary"`
		Differences []compare.Difference `json:"differences"`
		Omitted     uint64               `json:"omitted"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "Unequal", decoded.Verdict)
	assert.Equal(t, uint64(4), decoded.Summary.RowsDifferent)
	assert.Len(t, decoded.Differences, 4)
	assert.Nil(t, decoded.Differences[0].Left)
	assert.Equal(t, "10.5", decoded.Differences[1].LeftValue())
	assert.Equal(t, uint64(2), decoded.Omitted)
}

func TestYAMLGenerator(t *testing.T) {
	out, err := (&YAMLGenerator{}).Generate(Render(createTestReport(), 1))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "Unequal", decoded["verdict"])
	assert.Len(t, decoded["differences"], 1)
}

func TestHTMLGenerator(t *testing.T) {
	rep := createTestReport()
	rep.Differences[1].Left = str("<b>")

	out, err := (&HTMLGenerator{}).Generate(Render(rep, 0))
	require.NoError(t, err)

	html := string(out)
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>bdt Comparison Report</title>",
		"verdict-Unequal",
		"extra_col",
		"&lt;b&gt;",
		"2 more differences not shown",
		`<span class="null">null</span>`,
	} {
		assert.Contains(t, html, want)
	}
}

func TestNullMarkerDistinguishesNullText(t *testing.T) {
	rep := &compare.Report{
		Differences: []compare.Difference{
			{Column: "name", Right: str("NULL"), Kind: compare.NullMismatch},
		},
		Summary: compare.Summary{RowsCompared: 1, RowsDifferent: 1, LeftRows: 1, RightRows: 1, CellDifferences: 1},
	}

	out, err := (&TextGenerator{}).Generate(Render(rep, 0))
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, nullMarker)
	assert.Contains(t, text, "NULL")

	out, err = (&HTMLGenerator{}).Generate(Render(rep, 0))
	require.NoError(t, err)
	assert.Contains(t, string(out), `<td><span class="null">null</span></td>`)
	assert.Contains(t, string(out), "<td>NULL</td>")

	// column differences have no values, not nulls
	assert.False(t, isNull(compare.Difference{Kind: compare.LeftOnlyColumn}, nil))

	out, err = (&JSONGenerator{}).Generate(Render(rep, 0))
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"left"`)
}

func TestNewGenerator(t *testing.T) {
	for _, f := range Formats() {
		g, err := NewGenerator(f)
		require.NoError(t, err)
		assert.NotNil(t, g)
	}
	_, err := NewGenerator("xml")
	assert.ErrorContains(t, err, "unsupported report format")
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, SaveToFile(&JSONGenerator{}, Render(createTestReport(), 0), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

type memorySink struct {
	schema core.LogicalSchema
	rows   []core.Row
	closed bool
	failAt int
}

func (s *memorySink) Open(schema core.LogicalSchema) error {
	s.schema = schema
	return nil
}

func (s *memorySink) Write(row core.Row) error {
	if s.failAt > 0 && len(s.rows)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.rows = append(s.rows, row)
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

func TestWriteDifferences(t *testing.T) {
	sink := &memorySink{}
	require.NoError(t, WriteDifferences(createTestReport(), sink))

	assert.True(t, sink.closed)
	assert.Equal(t, []string{"row_ordinal", "column", "left", "right", "kind"}, sink.schema.Names())
	require.Len(t, sink.rows, 4)
	assert.Equal(t, core.Row{uint64(0), "extra_col", nil, nil, "LeftOnlyColumn"}, sink.rows[0])
	assert.Equal(t, core.Row{uint64(3), "name", nil, "bob", "NullMismatch"}, sink.rows[2])
}

func TestWriteDifferencesError(t *testing.T) {
	sink := &memorySink{failAt: 2}
	err := WriteDifferences(createTestReport(), sink)
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, sink.closed)
}

func TestWriteDifferencesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diffs.csv")
	sink := writers.NewRecordSink(context.Background(), nil, core.WriterConfig{Path: path})
	require.NoError(t, WriteDifferences(createTestReport(), sink))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "row_ordinal,column,left,right,kind", lines[0])
	assert.Equal(t, "0,score,10.5,10,ValueMismatch", lines[2])
}
