package compare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/TFMV/bdt/pkg/core"
)

// State is the lifecycle state of a Comparator.
type State int

const (
	StateNotStarted State = iota
	StateComparing
	StateEqual
	StateUnequal
	StateIncomparable
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateComparing:
		return "Comparing"
	case StateEqual:
		return string(VerdictEqual)
	case StateUnequal:
		return string(VerdictUnequal)
	case StateIncomparable:
		return string(VerdictIncomparable)
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a comparison run.
type Options struct {
	Policy TolerancePolicy

	// Limit caps the number of recorded differences of any kind. 0 means
	// unlimited. A row count mismatch is still recorded past the cap.
	Limit uint64

	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Comparator drives two row sources in lock-step against a precomputed plan.
// A Comparator runs once; construct a new one per comparison.
type Comparator struct {
	plan   *Plan
	opts   Options
	logger *zap.Logger
	state  State

	// minimum row widths required by the plan's indices
	leftWidth  int
	rightWidth int
}

// NewComparator validates the options and returns a comparator for plan.
func NewComparator(plan *Plan, opts Options) (*Comparator, error) {
	if plan == nil {
		return nil, errors.New("comparison plan is nil")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Comparator{plan: plan, opts: opts, logger: logger}
	for _, p := range plan.Pairings {
		if p.LeftIndex+1 > c.leftWidth {
			c.leftWidth = p.LeftIndex + 1
		}
		if p.RightIndex+1 > c.rightWidth {
			c.rightWidth = p.RightIndex + 1
		}
	}
	return c, nil
}

// Compare reconciles the schemas of left and right and compares their rows.
// Duplicate column names fail before any row is consumed.
func Compare(ctx context.Context, left, right core.RowSource, opts Options) (*Report, error) {
	plan, err := Reconcile(left.Schema(), right.Schema())
	if err != nil {
		return nil, err
	}
	c, err := NewComparator(plan, opts)
	if err != nil {
		return nil, err
	}
	return c.Compare(ctx, left, right)
}

// State returns the comparator's current lifecycle state.
func (c *Comparator) State() State {
	return c.state
}

// Compare advances both sources one row at a time and accumulates the
// differences. A row source failure aborts the run and no report is returned.
func (c *Comparator) Compare(ctx context.Context, left, right core.RowSource) (*Report, error) {
	if c.state != StateNotStarted {
		return nil, errors.New("comparator has already been used")
	}
	if n := left.Schema().NumColumns(); n < c.leftWidth {
		return nil, fmt.Errorf("left schema has %d columns, plan requires %d", n, c.leftWidth)
	}
	if n := right.Schema().NumColumns(); n < c.rightWidth {
		return nil, fmt.Errorf("right schema has %d columns, plan requires %d", n, c.rightWidth)
	}

	c.state = StateComparing
	rep := &Report{
		Plan:         c.plan,
		Incomparable: c.plan.Incomparable(),
		Differences:  []Difference{},
	}
	c.recordColumns(rep)

	c.logger.Debug("comparison started",
		zap.Int("matched", c.plan.Count(Matched)),
		zap.Int("left_only", rep.Summary.ColumnsLeftOnly),
		zap.Int("right_only", rep.Summary.ColumnsRightOnly),
		zap.Int("incompatible", rep.Summary.IncompatibleColumns),
		zap.Float64("absolute_epsilon", c.opts.Policy.AbsoluteEpsilon),
		zap.Float64("relative_epsilon", c.opts.Policy.RelativeEpsilon),
		zap.Uint64("limit", c.opts.Limit))

	var ordinal uint64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lrow, lok, err := nextRow(ctx, left, Left, ordinal, c.leftWidth)
		if err != nil {
			return nil, err
		}
		rrow, rok, err := nextRow(ctx, right, Right, ordinal, c.rightWidth)
		if err != nil {
			return nil, err
		}

		if !lok && !rok {
			rep.Summary.LeftRows = ordinal
			rep.Summary.RightRows = ordinal
			break
		}
		if !lok || !rok {
			if err := c.recordRowCount(ctx, rep, ordinal, lok, rok, left, right); err != nil {
				return nil, err
			}
			break
		}

		c.compareRow(rep, ordinal, lrow, rrow)
		ordinal++
	}

	switch rep.Verdict() {
	case VerdictEqual:
		c.state = StateEqual
	case VerdictIncomparable:
		c.state = StateIncomparable
	default:
		c.state = StateUnequal
	}

	c.logger.Debug("comparison finished",
		zap.Stringer("state", c.state),
		zap.Uint64("rows_compared", rep.Summary.RowsCompared),
		zap.Uint64("rows_different", rep.Summary.RowsDifferent),
		zap.Uint64("cell_differences", rep.Summary.CellDifferences),
		zap.Int("recorded", len(rep.Differences)))
	return rep, nil
}

// recordColumns reports every one-sided column once, in plan order.
func (c *Comparator) recordColumns(rep *Report) {
	for _, p := range c.plan.Pairings {
		switch {
		case p.Kind == LeftOnly:
			rep.Summary.ColumnsLeftOnly++
			if c.canRecord(rep) {
				rep.Differences = append(rep.Differences, Difference{Column: p.Name, Kind: LeftOnlyColumn})
			}
		case p.Kind == RightOnly:
			rep.Summary.ColumnsRightOnly++
			if c.canRecord(rep) {
				rep.Differences = append(rep.Differences, Difference{Column: p.Name, Kind: RightOnlyColumn})
			}
		case p.Incompatible:
			rep.Summary.IncompatibleColumns++
			c.logger.Warn("column types have no common representation",
				zap.String("column", p.Name),
				zap.Stringer("left_type", p.LeftType),
				zap.Stringer("right_type", p.RightType))
		case p.Nominal:
			c.logger.Debug("effective type is nominal, comparing values exactly",
				zap.String("column", p.Name),
				zap.Stringer("effective_type", p.EffectiveType))
		}
	}
}

func (c *Comparator) compareRow(rep *Report, ordinal uint64, lrow, rrow core.Row) {
	differs := false
	for _, p := range c.plan.Pairings {
		if p.Kind != Matched {
			continue
		}
		lv, rv := lrow[p.LeftIndex], rrow[p.RightIndex]

		var kind DifferenceKind
		if p.Incompatible {
			kind = ValueMismatch
		} else {
			var equal bool
			if equal, kind = Classify(lv, rv, p.EffectiveType, c.opts.Policy); equal {
				continue
			}
		}

		differs = true
		rep.Summary.CellDifferences++
		if !c.canRecord(rep) {
			continue
		}
		rep.Differences = append(rep.Differences, Difference{
			RowOrdinal: ordinal,
			Column:     p.Name,
			Left:       render(lv),
			Right:      render(rv),
			Kind:       kind,
		})
	}

	rep.Summary.RowsCompared++
	if differs {
		rep.Summary.RowsDifferent++
	} else {
		rep.Summary.RowsEqual++
	}
}

// canRecord reports whether another difference fits under the limit and
// marks rep as limited when it does not.
func (c *Comparator) canRecord(rep *Report) bool {
	if c.opts.Limit > 0 && uint64(len(rep.Differences)) >= c.opts.Limit {
		rep.Limited = true
		return false
	}
	return true
}

// recordRowCount is called when exactly one source ran out at ordinal. The
// other source already yielded one more row; the rest is counted, not kept.
func (c *Comparator) recordRowCount(ctx context.Context, rep *Report, ordinal uint64, lok, rok bool, left, right core.RowSource) error {
	var lrem, rrem uint64
	if lok {
		n, err := drain(ctx, left, Left, ordinal+1)
		if err != nil {
			return err
		}
		lrem = n + 1
	} else {
		n, err := drain(ctx, right, Right, ordinal+1)
		if err != nil {
			return err
		}
		rrem = n + 1
	}

	rep.Summary.LeftRows = ordinal + lrem
	rep.Summary.RightRows = ordinal + rrem
	rep.Differences = append(rep.Differences, Difference{
		RowOrdinal: ordinal,
		Left:       countString(lrem),
		Right:      countString(rrem),
		Kind:       RowCountMismatch,
	})

	c.logger.Debug("row count mismatch",
		zap.Uint64("ordinal", ordinal),
		zap.Uint64("left_remaining", lrem),
		zap.Uint64("right_remaining", rrem))
	return nil
}

// nextRow returns the next row of src. ok is false at end of data.
func nextRow(ctx context.Context, src core.RowSource, side Side, ordinal uint64, width int) (core.Row, bool, error) {
	row, err := src.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &RowSourceError{Side: side, Ordinal: ordinal, Err: err}
	}
	if len(row) < width {
		return nil, false, &RowSourceError{
			Side:    side,
			Ordinal: ordinal,
			Err:     fmt.Errorf("row has %d values, expected at least %d", len(row), width),
		}
	}
	return row, true, nil
}

// drain consumes the rest of src and returns how many rows it had.
func drain(ctx context.Context, src core.RowSource, side Side, ordinal uint64) (uint64, error) {
	var n uint64
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		_, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return 0, &RowSourceError{Side: side, Ordinal: ordinal + n, Err: err}
		}
		n++
	}
}

// render formats a cell value. A null cell is absent, not the text "NULL".
func render(v core.Value) *string {
	if v == nil {
		return nil
	}
	s := core.FormatValue(v)
	return &s
}

func countString(n uint64) *string {
	s := strconv.FormatUint(n, 10)
	return &s
}
