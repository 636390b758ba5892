// Package report renders comparison reports for people and scripts and maps
// verdicts to process exit codes.
package report

import (
	"fmt"
	"os"

	"github.com/TFMV/bdt/pkg/compare"
)

// Exit codes of the compare command.
const (
	ExitEqual        = 0
	ExitUnequal      = 1
	ExitIncomparable = 2
	// ExitError means the comparison could not run at all: bad usage, an
	// unreadable input or a schema with duplicate column names.
	ExitError = 3
)

// ExitCode maps a verdict to the process exit code.
func ExitCode(v compare.Verdict) int {
	switch v {
	case compare.VerdictEqual:
		return ExitEqual
	case compare.VerdictUnequal:
		return ExitUnequal
	case compare.VerdictIncomparable:
		return ExitIncomparable
	default:
		return ExitError
	}
}

// Message returns the one-line, human readable outcome for a verdict.
func Message(v compare.Verdict) string {
	switch v {
	case compare.VerdictEqual:
		return "inputs are equal"
	case compare.VerdictUnequal:
		return "inputs differ"
	case compare.VerdictIncomparable:
		return "inputs are structurally incomparable: matched columns have incompatible types"
	default:
		return fmt.Sprintf("unknown verdict %q", string(v))
	}
}

// Verdict returns the verdict of rep.
func Verdict(rep *compare.Report) compare.Verdict {
	return rep.Verdict()
}

// IncompatibleColumn names a matched column whose two declared types have no
// common representation.
type IncompatibleColumn struct {
	Name      string `json:"name" yaml:"name"`
	LeftType  string `json:"left_type" yaml:"left_type"`
	RightType string `json:"right_type" yaml:"right_type"`
}

// Rendered is the display form of a report. Differences is truncated for
// display; Summary is always complete.
type Rendered struct {
	Verdict      compare.Verdict      `json:"verdict" yaml:"verdict"`
	Message      string               `json:"message" yaml:"message"`
	Summary      compare.Summary      `json:"summary" yaml:"summary"`
	Incompatible []IncompatibleColumn `json:"incompatible_columns,omitempty" yaml:"incompatible_columns,omitempty"`
	Hints        []ColumnHint         `json:"column_hints,omitempty" yaml:"column_hints,omitempty"`
	Differences  []compare.Difference `json:"differences" yaml:"differences"`

	// Omitted counts the differences that are not displayed, whether cut by
	// the display cap or never recorded because of the comparison limit.
	Omitted uint64 `json:"omitted" yaml:"omitted"`

	// Limited is set when the comparison stopped recording differences.
	Limited bool `json:"limited" yaml:"limited"`
}

// Render builds the display form of rep showing at most maxRowsShown
// differences. A maxRowsShown of 0 shows all of them.
func Render(rep *compare.Report, maxRowsShown int) *Rendered {
	verdict := rep.Verdict()
	r := &Rendered{
		Verdict:     verdict,
		Message:     Message(verdict),
		Summary:     rep.Summary,
		Differences: rep.Differences,
		Omitted:     rep.Unrecorded(),
		Limited:     rep.Limited,
	}
	if r.Differences == nil {
		r.Differences = []compare.Difference{}
	}

	if maxRowsShown > 0 && len(r.Differences) > maxRowsShown {
		r.Omitted += uint64(len(r.Differences) - maxRowsShown)
		r.Differences = r.Differences[:maxRowsShown]
	}

	if rep.Plan != nil {
		for _, p := range rep.Plan.Pairings {
			if p.Incompatible {
				r.Incompatible = append(r.Incompatible, IncompatibleColumn{
					Name:      p.Name,
					LeftType:  p.LeftType.String(),
					RightType: p.RightType.String(),
				})
			}
		}
	}
	return r
}

// SuggestRenames fills Hints with the likely renamed columns of rep.
func (r *Rendered) SuggestRenames(rep *compare.Report) {
	r.Hints = ColumnHints(rep.Plan)
}

// -----------------------------
// Report Generator Interfaces
// -----------------------------

// Output format names.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatHTML = "html"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML, FormatHTML}
}

// Generator serializes a rendered report.
type Generator interface {
	Generate(r *Rendered) ([]byte, error)
}

// NewGenerator returns the generator for a format name.
func NewGenerator(format string) (Generator, error) {
	switch format {
	case FormatText, "":
		return &TextGenerator{}, nil
	case FormatJSON:
		return &JSONGenerator{}, nil
	case FormatYAML:
		return &YAMLGenerator{}, nil
	case FormatHTML:
		return &HTMLGenerator{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q (want one of %v)", format, Formats())
	}
}

// SaveToFile writes the report generated by g to filePath.
func SaveToFile(g Generator, r *Rendered, filePath string) error {
	data, err := g.Generate(r)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
