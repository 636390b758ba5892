package compare

// DifferenceKind classifies a recorded difference.
type DifferenceKind string

const (
	ValueMismatch    DifferenceKind = "ValueMismatch"
	NullMismatch     DifferenceKind = "NullMismatch"
	LeftOnlyColumn   DifferenceKind = "LeftOnlyColumn"
	RightOnlyColumn  DifferenceKind = "RightOnlyColumn"
	RowCountMismatch DifferenceKind = "RowCountMismatch"
)

// Difference is one material difference between the two inputs.
//
// For column differences Left/Right are absent. For a cell difference an
// absent side is a null value. For a RowCountMismatch,
// RowOrdinal is where one side ran out and Left/Right carry the number of
// rows each side still had from that point.
type Difference struct {
	RowOrdinal uint64         `json:"row_ordinal" yaml:"row_ordinal"`
	Column     string         `json:"column,omitempty" yaml:"column,omitempty"`
	Left       *string        `json:"left,omitempty" yaml:"left,omitempty"`
	Right      *string        `json:"right,omitempty" yaml:"right,omitempty"`
	Kind       DifferenceKind `json:"kind" yaml:"kind"`
}

// LeftValue returns the rendered left value or "" when absent.
func (d Difference) LeftValue() string { return deref(d.Left) }

// RightValue returns the rendered right value or "" when absent.
func (d Difference) RightValue() string { return deref(d.Right) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Summary holds the complete, never truncated counters of a comparison run.
type Summary struct {
	RowsCompared        uint64 `json:"rows_compared" yaml:"rows_compared"`
	RowsEqual           uint64 `json:"rows_equal" yaml:"rows_equal"`
	RowsDifferent       uint64 `json:"rows_different" yaml:"rows_different"`
	ColumnsLeftOnly     int    `json:"columns_left_only" yaml:"columns_left_only"`
	ColumnsRightOnly    int    `json:"columns_right_only" yaml:"columns_right_only"`
	IncompatibleColumns int    `json:"incompatible_columns" yaml:"incompatible_columns"`
	LeftRows            uint64 `json:"left_rows" yaml:"left_rows"`
	RightRows           uint64 `json:"right_rows" yaml:"right_rows"`

	// CellDifferences counts every value/null mismatch found, including the
	// ones not recorded because the limit was reached.
	CellDifferences uint64 `json:"cell_differences" yaml:"cell_differences"`
}

// Verdict is the terminal outcome of a comparison run.
type Verdict string

const (
	VerdictEqual        Verdict = "Equal"
	VerdictUnequal      Verdict = "Unequal"
	VerdictIncomparable Verdict = "StructurallyIncomparable"
)

// Report is the outcome of one comparison run.
type Report struct {
	Differences []Difference `json:"differences" yaml:"differences"`
	Summary     Summary      `json:"summary" yaml:"summary"`

	// Incomparable is set when the plan has a type-incompatible column.
	Incomparable bool `json:"incomparable" yaml:"incomparable"`

	// Limited is set when the difference limit stopped recording.
	Limited bool `json:"limited" yaml:"limited"`

	Plan *Plan `json:"-" yaml:"-"`
}

// Verdict derives the outcome of the run.
func (r *Report) Verdict() Verdict {
	switch {
	case r.Incomparable:
		return VerdictIncomparable
	case len(r.Differences) == 0 && r.Summary.CellDifferences == 0 &&
		r.Summary.ColumnsLeftOnly == 0 && r.Summary.ColumnsRightOnly == 0 &&
		r.Summary.LeftRows == r.Summary.RightRows:
		return VerdictEqual
	default:
		return VerdictUnequal
	}
}

// Unrecorded returns how many column and cell differences were found but not
// recorded because of the limit.
func (r *Report) Unrecorded() uint64 {
	found := r.Summary.CellDifferences + uint64(r.Summary.ColumnsLeftOnly+r.Summary.ColumnsRightOnly)
	recorded := uint64(0)
	for _, d := range r.Differences {
		if d.Kind != RowCountMismatch {
			recorded++
		}
	}
	if recorded > found {
		return 0
	}
	return found - recorded
}
