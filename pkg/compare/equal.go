package compare

import (
	"bytes"
	"fmt"
	"math"
	"math/big"

	"github.com/TFMV/bdt/pkg/core"
)

// TolerancePolicy governs approximate equality of Float and Decimal values.
// The zero value demands exact equality.
type TolerancePolicy struct {
	AbsoluteEpsilon float64 `json:"absolute_epsilon" yaml:"absolute_epsilon"`
	RelativeEpsilon float64 `json:"relative_epsilon" yaml:"relative_epsilon"`
}

// Validate checks that both epsilons are finite and non-negative.
func (p TolerancePolicy) Validate() error {
	for name, v := range map[string]float64{
		"absolute epsilon": p.AbsoluteEpsilon,
		"relative epsilon": p.RelativeEpsilon,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s must be a finite value >= 0, got %v", ErrInvalidPolicy, name, v)
		}
	}
	return nil
}

// Equal decides whether two cells of the given effective type are equal under
// the policy. Null equals null; null never equals a value.
func Equal(a, b core.Value, t core.LogicalType, p TolerancePolicy) bool {
	ok, _ := Classify(a, b, t, p)
	return ok
}

// Classify is Equal that also names the kind of difference found.
func Classify(a, b core.Value, t core.LogicalType, p TolerancePolicy) (bool, DifferenceKind) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return true, ""
		}
		return false, NullMismatch
	}
	if valuesEqual(a, b, t, p) {
		return true, ""
	}
	return false, ValueMismatch
}

func valuesEqual(a, b core.Value, t core.LogicalType, p TolerancePolicy) bool {
	switch t.Kind {
	case core.KindFloat, core.KindDecimal:
		return numericEqual(a, b, p)
	case core.KindInteger:
		return numericEqual(a, b, TolerancePolicy{})
	case core.KindTimestamp:
		ta, ok1 := a.(core.Timestamp)
		tb, ok2 := b.(core.Timestamp)
		return ok1 && ok2 && timestampEqual(ta, tb)
	case core.KindUtf8:
		sa, ok1 := a.(string)
		sb, ok2 := b.(string)
		return ok1 && ok2 && sa == sb
	case core.KindBoolean:
		ba, ok1 := a.(bool)
		bb, ok2 := b.(bool)
		return ok1 && ok2 && ba == bb
	case core.KindBinary:
		ba, ok1 := a.([]byte)
		bb, ok2 := b.([]byte)
		return ok1 && ok2 && bytes.Equal(ba, bb)
	default:
		return false
	}
}

// floatEqual compares two floats: NaN equals NaN, infinities equal only the
// same-signed infinity, otherwise |a-b| <= abs or |a-b| <= rel*max(|a|,|b|).
func floatEqual(a, b float64, p TolerancePolicy) bool {
	if a == b {
		return true
	}
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	if aNaN || bNaN {
		return aNaN && bNaN
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	diff := math.Abs(a - b)
	if diff <= p.AbsoluteEpsilon {
		return true
	}
	return diff <= p.RelativeEpsilon*math.Max(math.Abs(a), math.Abs(b))
}

// numericEqual compares numbers that may come in different representations
// (int64, uint64, float64, core.Decimal). Mixed representations are compared
// exactly as rationals.
func numericEqual(a, b core.Value, p TolerancePolicy) bool {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return x == y || (p != TolerancePolicy{} && ratEqual(big.NewRat(x, 1), big.NewRat(y, 1), p))
		}
	case uint64:
		if y, ok := b.(uint64); ok && x == y {
			return true
		}
	case float64:
		if y, ok := b.(float64); ok {
			return floatEqual(x, y, p)
		}
	}

	// Non-finite floats only equal their own kind of non-finite float.
	fa, aIsFloat := a.(float64)
	fb, bIsFloat := b.(float64)
	if (aIsFloat && !isFinite(fa)) || (bIsFloat && !isFinite(fb)) {
		if aIsFloat && bIsFloat {
			return floatEqual(fa, fb, p)
		}
		return false
	}

	ra, ok := toRat(a)
	if !ok {
		return false
	}
	rb, ok := toRat(b)
	if !ok {
		return false
	}
	return ratEqual(ra, rb, p)
}

func ratEqual(a, b *big.Rat, p TolerancePolicy) bool {
	diff := new(big.Rat).Sub(a, b)
	diff.Abs(diff)
	if diff.Sign() == 0 {
		return true
	}
	if diff.Cmp(new(big.Rat).SetFloat64(p.AbsoluteEpsilon)) <= 0 {
		return true
	}
	if p.RelativeEpsilon == 0 {
		return false
	}
	absA := new(big.Rat).Abs(a)
	absB := new(big.Rat).Abs(b)
	bound := absA
	if absB.Cmp(absA) > 0 {
		bound = absB
	}
	bound = new(big.Rat).Mul(bound, new(big.Rat).SetFloat64(p.RelativeEpsilon))
	return diff.Cmp(bound) <= 0
}

func toRat(v core.Value) (*big.Rat, bool) {
	switch x := v.(type) {
	case int64:
		return big.NewRat(x, 1), true
	case uint64:
		return new(big.Rat).SetInt(new(big.Int).SetUint64(x)), true
	case float64:
		if !isFinite(x) {
			return nil, false
		}
		return new(big.Rat).SetFloat64(x), true
	case core.Decimal:
		return x.Rat(), true
	default:
		return nil, false
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// timestampEqual compares two instants after normalising both to the finer
// of their units.
func timestampEqual(a, b core.Timestamp) bool {
	if a.Unit == b.Unit {
		return a.Value == b.Value
	}
	unit := a.Unit
	if b.Unit > unit {
		unit = b.Unit
	}
	na := new(big.Int).Mul(big.NewInt(a.Value), big.NewInt(unit.PerSecond()/a.Unit.PerSecond()))
	nb := new(big.Int).Mul(big.NewInt(b.Value), big.NewInt(unit.PerSecond()/b.Unit.PerSecond()))
	return na.Cmp(nb) == 0
}
