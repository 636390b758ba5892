// Package compare implements the cross-format comparison engine: schema
// reconciliation, tolerant value equality and the lock-step row comparator.
package compare

import (
	"fmt"

	"github.com/TFMV/bdt/pkg/core"
)

// PairingKind distinguishes matched columns from columns present on one side.
type PairingKind int

const (
	Matched PairingKind = iota
	LeftOnly
	RightOnly
)

// String implements fmt.Stringer.
func (k PairingKind) String() string {
	switch k {
	case Matched:
		return "Matched"
	case LeftOnly:
		return "LeftOnly"
	case RightOnly:
		return "RightOnly"
	default:
		return fmt.Sprintf("PairingKind(%d)", int(k))
	}
}

// ColumnPairing aligns one column name across the two schemas.
type ColumnPairing struct {
	Kind PairingKind
	Name string

	// LeftIndex and RightIndex are -1 when the column is absent on that side.
	LeftIndex  int
	RightIndex int

	LeftType  core.LogicalType
	RightType core.LogicalType

	// EffectiveType is the type values are compared as. Only meaningful for
	// compatible Matched pairings.
	EffectiveType core.LogicalType

	// Nominal marks an EffectiveType that cannot hold every value of both
	// declared types: Int64 or Decimal against Float widens to Float64, and
	// decimal precision is capped at 76 digits. Such values are still
	// compared exactly as rationals; the type only selects the tolerance
	// rules.
	Nominal bool

	// Incompatible marks a Matched pairing whose declared types have no common
	// representation.
	Incompatible bool
}

// Plan is the precomputed, read-only column alignment of two schemas.
type Plan struct {
	Pairings []ColumnPairing
}

// Incomparable reports whether any matched pairing is type incompatible.
func (p *Plan) Incomparable() bool {
	for _, pr := range p.Pairings {
		if pr.Incompatible {
			return true
		}
	}
	return false
}

// Count returns the number of pairings of the given kind.
func (p *Plan) Count(kind PairingKind) int {
	n := 0
	for _, pr := range p.Pairings {
		if pr.Kind == kind {
			n++
		}
	}
	return n
}

// Reconcile aligns two schemas by case-sensitive column name. The plan lists
// left columns in left order followed by right-only columns in right order.
func Reconcile(left, right core.LogicalSchema) (*Plan, error) {
	leftIdx, err := indexColumns(left, Left)
	if err != nil {
		return nil, err
	}
	rightIdx, err := indexColumns(right, Right)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Pairings: make([]ColumnPairing, 0, len(left.Columns)+len(right.Columns))}
	for i, lc := range left.Columns {
		j, ok := rightIdx[lc.Name]
		if !ok {
			plan.Pairings = append(plan.Pairings, ColumnPairing{
				Kind:       LeftOnly,
				Name:       lc.Name,
				LeftIndex:  i,
				RightIndex: -1,
				LeftType:   lc.Type,
			})
			continue
		}
		rc := right.Columns[j]
		effective, ok := CommonType(lc.Type, rc.Type)
		plan.Pairings = append(plan.Pairings, ColumnPairing{
			Kind:          Matched,
			Name:          lc.Name,
			LeftIndex:     i,
			RightIndex:    j,
			LeftType:      lc.Type,
			RightType:     rc.Type,
			EffectiveType: effective,
			Nominal:       ok && nominal(lc.Type, rc.Type),
			Incompatible:  !ok,
		})
	}
	for j, rc := range right.Columns {
		if _, ok := leftIdx[rc.Name]; ok {
			continue
		}
		plan.Pairings = append(plan.Pairings, ColumnPairing{
			Kind:       RightOnly,
			Name:       rc.Name,
			LeftIndex:  -1,
			RightIndex: j,
			RightType:  rc.Type,
		})
	}
	return plan, nil
}

func indexColumns(s core.LogicalSchema, side Side) (map[string]int, error) {
	idx := make(map[string]int, len(s.Columns))
	for i, c := range s.Columns {
		if _, dup := idx[c.Name]; dup {
			return nil, &DuplicateColumnError{Side: side, Name: c.Name}
		}
		idx[c.Name] = i
	}
	return idx, nil
}

// maxDecimalPrecision is the widest decimal the Arrow adapters produce.
const maxDecimalPrecision = 76

// CommonType returns the type two declared column types are compared as.
// Identical types compare as themselves; differing numeric types widen to the
// narrowest representation holding both; timestamps widen to the finer unit.
// ok is false when no common representation exists.
func CommonType(a, b core.LogicalType) (core.LogicalType, bool) {
	if a.Equal(b) {
		return a, true
	}
	switch {
	case a.IsNumeric() && b.IsNumeric():
		return commonNumeric(a, b)
	case a.Kind == core.KindTimestamp && b.Kind == core.KindTimestamp:
		if a.Unit > b.Unit {
			return core.TimestampOf(a.Unit), true
		}
		return core.TimestampOf(b.Unit), true
	case a.Kind == b.Kind:
		// Utf8, Boolean and Binary carry no parameters.
		return a, true
	default:
		return core.LogicalType{}, false
	}
}

func commonNumeric(a, b core.LogicalType) (core.LogicalType, bool) {
	// Order the pair so that a.Kind <= b.Kind (Integer < Float < Decimal).
	if a.Kind > b.Kind {
		a, b = b, a
	}
	switch {
	case a.Kind == core.KindInteger && b.Kind == core.KindInteger:
		return commonInteger(a, b), true
	case a.Kind == core.KindFloat && b.Kind == core.KindFloat:
		return core.Float(maxInt(a.BitWidth, b.BitWidth)), true
	case a.Kind == core.KindDecimal && b.Kind == core.KindDecimal:
		return widenDecimal(a, b), true
	case a.Kind == core.KindInteger && b.Kind == core.KindDecimal:
		return widenDecimal(integerAsDecimal(a), b), true
	default:
		// Integer or Decimal against Float. Values are compared exactly
		// (rationally) when the representations differ, so Float64 only
		// governs tolerance semantics. See ColumnPairing.Nominal.
		return core.Float(64), true
	}
}

// nominal reports whether the common type of two compatible numeric types
// loses values of either side.
func nominal(a, b core.LogicalType) bool {
	if !a.IsNumeric() || !b.IsNumeric() || a.Equal(b) {
		return false
	}
	if a.Kind > b.Kind {
		a, b = b, a
	}
	switch {
	case a.Kind == core.KindFloat && b.Kind == core.KindDecimal:
		return true
	case a.Kind == core.KindInteger && b.Kind == core.KindFloat:
		// Float64 holds integers of up to 53 bits exactly.
		return a.BitWidth > 32
	case b.Kind == core.KindDecimal:
		if a.Kind == core.KindInteger {
			a = integerAsDecimal(a)
		}
		return decimalDigits(a, b) > maxDecimalPrecision
	default:
		return false
	}
}

func decimalDigits(a, b core.LogicalType) int32 {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	intDigits := a.Precision - a.Scale
	if d := b.Precision - b.Scale; d > intDigits {
		intDigits = d
	}
	return intDigits + scale
}

func commonInteger(a, b core.LogicalType) core.LogicalType {
	if a.Signed == b.Signed {
		return core.Integer(maxInt(a.BitWidth, b.BitWidth), a.Signed)
	}
	signed, unsigned := a, b
	if !signed.Signed {
		signed, unsigned = b, a
	}
	// A signed integer holds an unsigned one of half its width.
	width := maxInt(signed.BitWidth, unsigned.BitWidth*2)
	if width <= 64 {
		return core.Integer(width, true)
	}
	return core.DecimalOf(20, 0)
}

// integerAsDecimal returns the decimal precision needed for every value of
// an integer type.
func integerAsDecimal(t core.LogicalType) core.LogicalType {
	digits := map[int]int32{8: 3, 16: 5, 32: 10, 64: 19}[t.BitWidth]
	if digits == 0 {
		digits = 20
	}
	if !t.Signed && t.BitWidth == 64 {
		digits = 20
	}
	return core.DecimalOf(digits, 0)
}

func widenDecimal(a, b core.LogicalType) core.LogicalType {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	precision := decimalDigits(a, b)
	if precision > maxDecimalPrecision {
		precision = maxDecimalPrecision
	}
	return core.DecimalOf(precision, scale)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
