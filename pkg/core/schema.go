package core

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// TypeKind enumerates the logical type families.
type TypeKind int

const (
	KindInteger TypeKind = iota
	KindFloat
	KindDecimal
	KindUtf8
	KindBoolean
	KindTimestamp
	KindBinary
)

// String implements fmt.Stringer.
func (k TypeKind) String() string {
	switch k {
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindDecimal:
		return "Decimal"
	case KindUtf8:
		return "Utf8"
	case KindBoolean:
		return "Boolean"
	case KindTimestamp:
		return "Timestamp"
	case KindBinary:
		return "Binary"
	default:
		return fmt.Sprintf("TypeKind(%d)", int(k))
	}
}

// TimeUnit is the resolution of a timestamp value.
type TimeUnit int

const (
	Second TimeUnit = iota
	Millisecond
	Microsecond
	Nanosecond
)

// PerSecond returns the number of ticks of the unit in one second.
func (u TimeUnit) PerSecond() int64 {
	switch u {
	case Millisecond:
		return 1_000
	case Microsecond:
		return 1_000_000
	case Nanosecond:
		return 1_000_000_000
	default:
		return 1
	}
}

// String implements fmt.Stringer.
func (u TimeUnit) String() string {
	switch u {
	case Millisecond:
		return "ms"
	case Microsecond:
		return "us"
	case Nanosecond:
		return "ns"
	default:
		return "s"
	}
}

// LogicalType is a physical-encoding independent column type.
type LogicalType struct {
	Kind TypeKind

	// BitWidth is set for Integer and Float.
	BitWidth int

	// Signed is set for signed Integer types.
	Signed bool

	// Precision and Scale are set for Decimal.
	Precision int32
	Scale     int32

	// Unit is set for Timestamp.
	Unit TimeUnit
}

// Integer returns an integer type of the given width.
func Integer(bits int, signed bool) LogicalType {
	return LogicalType{Kind: KindInteger, BitWidth: bits, Signed: signed}
}

// Float returns a floating point type of the given width.
func Float(bits int) LogicalType {
	return LogicalType{Kind: KindFloat, BitWidth: bits}
}

// DecimalOf returns a fixed point decimal type.
func DecimalOf(precision, scale int32) LogicalType {
	return LogicalType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// Utf8 returns the text type.
func Utf8() LogicalType { return LogicalType{Kind: KindUtf8} }

// Boolean returns the boolean type.
func Boolean() LogicalType { return LogicalType{Kind: KindBoolean} }

// TimestampOf returns a timestamp type with the given unit.
func TimestampOf(unit TimeUnit) LogicalType {
	return LogicalType{Kind: KindTimestamp, Unit: unit}
}

// Binary returns the opaque bytes type.
func Binary() LogicalType { return LogicalType{Kind: KindBinary} }

// IsNumeric reports whether the type is Integer, Float or Decimal.
func (t LogicalType) IsNumeric() bool {
	return t.Kind == KindInteger || t.Kind == KindFloat || t.Kind == KindDecimal
}

// Equal reports whether two types are identical.
func (t LogicalType) Equal(o LogicalType) bool {
	return t == o
}

// String implements fmt.Stringer.
func (t LogicalType) String() string {
	switch t.Kind {
	case KindInteger:
		if t.Signed {
			return fmt.Sprintf("Int%d", t.BitWidth)
		}
		return fmt.Sprintf("UInt%d", t.BitWidth)
	case KindFloat:
		return fmt.Sprintf("Float%d", t.BitWidth)
	case KindDecimal:
		return fmt.Sprintf("Decimal(%d, %d)", t.Precision, t.Scale)
	case KindTimestamp:
		return fmt.Sprintf("Timestamp(%s)", t.Unit)
	default:
		return t.Kind.String()
	}
}

// Column is a named, typed column of a LogicalSchema.
type Column struct {
	Name     string
	Type     LogicalType
	Nullable bool
}

// LogicalSchema is the ordered column layout of a tabular dataset.
// Names are case-sensitive.
type LogicalSchema struct {
	Columns []Column
}

// NewSchema builds a schema from columns.
func NewSchema(columns ...Column) LogicalSchema {
	return LogicalSchema{Columns: columns}
}

// NumColumns returns the number of columns.
func (s LogicalSchema) NumColumns() int { return len(s.Columns) }

// Names returns the column names in schema order.
func (s LogicalSchema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// String implements fmt.Stringer.
func (s LogicalSchema) String() string {
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		parts[i] = fmt.Sprintf("%s: %s", c.Name, c.Type)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Value is a single scalar cell. The concrete type depends on the column's
// logical kind:
//
//	Integer   int64 (signed) or uint64 (unsigned)
//	Float     float64
//	Decimal   Decimal
//	Utf8      string
//	Boolean   bool
//	Timestamp Timestamp
//	Binary    []byte
//
// A nil Value is SQL NULL.
type Value = any

// Row is an ordered sequence of values matching a LogicalSchema.
type Row []Value

// Decimal is an exact fixed point number: Coef * 10^-Scale.
type Decimal struct {
	Coef  *big.Int
	Scale int32
}

// Rat returns the exact rational value of the decimal.
func (d Decimal) Rat() *big.Rat {
	if d.Coef == nil {
		return new(big.Rat)
	}
	r := new(big.Rat).SetInt(d.Coef)
	if d.Scale == 0 {
		return r
	}
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs32(d.Scale))), nil)
	if d.Scale > 0 {
		return r.Quo(r, new(big.Rat).SetInt(pow))
	}
	return r.Mul(r, new(big.Rat).SetInt(pow))
}

// String renders the decimal with exactly Scale fractional digits.
func (d Decimal) String() string {
	if d.Coef == nil {
		return "0"
	}
	if d.Scale <= 0 {
		return d.Rat().FloatString(0)
	}
	return d.Rat().FloatString(int(d.Scale))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Timestamp is an instant counted in Unit ticks since the Unix epoch.
type Timestamp struct {
	Value int64
	Unit  TimeUnit
}

// Time converts the timestamp to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	per := t.Unit.PerSecond()
	return time.Unix(t.Value/per, (t.Value%per)*(1_000_000_000/per)).UTC()
}

// String renders the instant in RFC 3339 with nanosecond precision.
func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}

// FormatValue renders a value for display. Nil renders as "NULL".
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return fmt.Sprintf("0x%x", x)
	case float64:
		return fmt.Sprintf("%v", x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
