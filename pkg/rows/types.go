// Package rows adapts Arrow record batch readers to the row-at-a-time
// core.RowSource interface consumed by the comparison engine.
package rows

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/TFMV/bdt/pkg/core"
)

// extractor reads the non-null value at index i of an array.
type extractor func(arr arrow.Array, i int) core.Value

// SchemaFromArrow maps an Arrow schema to its logical schema.
func SchemaFromArrow(schema *arrow.Schema) core.LogicalSchema {
	cols := make([]core.Column, schema.NumFields())
	for i, f := range schema.Fields() {
		t, _ := mapType(f.Type)
		cols[i] = core.Column{Name: f.Name, Type: t, Nullable: f.Nullable}
	}
	return core.NewSchema(cols...)
}

// LogicalTypeOf returns the logical type Arrow values of dt are read as.
// Types without a logical counterpart are read as their Utf8 rendering.
func LogicalTypeOf(dt arrow.DataType) core.LogicalType {
	t, _ := mapType(dt)
	return t
}

func mapType(dt arrow.DataType) (core.LogicalType, extractor) {
	switch t := dt.(type) {
	case *arrow.Int8Type:
		return core.Integer(8, true), func(a arrow.Array, i int) core.Value { return int64(a.(*array.Int8).Value(i)) }
	case *arrow.Int16Type:
		return core.Integer(16, true), func(a arrow.Array, i int) core.Value { return int64(a.(*array.Int16).Value(i)) }
	case *arrow.Int32Type:
		return core.Integer(32, true), func(a arrow.Array, i int) core.Value { return int64(a.(*array.Int32).Value(i)) }
	case *arrow.Int64Type:
		return core.Integer(64, true), func(a arrow.Array, i int) core.Value { return a.(*array.Int64).Value(i) }
	case *arrow.Uint8Type:
		return core.Integer(8, false), func(a arrow.Array, i int) core.Value { return uint64(a.(*array.Uint8).Value(i)) }
	case *arrow.Uint16Type:
		return core.Integer(16, false), func(a arrow.Array, i int) core.Value { return uint64(a.(*array.Uint16).Value(i)) }
	case *arrow.Uint32Type:
		return core.Integer(32, false), func(a arrow.Array, i int) core.Value { return uint64(a.(*array.Uint32).Value(i)) }
	case *arrow.Uint64Type:
		return core.Integer(64, false), func(a arrow.Array, i int) core.Value { return a.(*array.Uint64).Value(i) }

	case *arrow.Float16Type:
		return core.Float(16), func(a arrow.Array, i int) core.Value {
			return float64(a.(*array.Float16).Value(i).Float32())
		}
	case *arrow.Float32Type:
		return core.Float(32), func(a arrow.Array, i int) core.Value { return float64(a.(*array.Float32).Value(i)) }
	case *arrow.Float64Type:
		return core.Float(64), func(a arrow.Array, i int) core.Value { return a.(*array.Float64).Value(i) }

	case *arrow.Decimal128Type:
		return core.DecimalOf(t.Precision, t.Scale), func(a arrow.Array, i int) core.Value {
			return core.Decimal{Coef: a.(*array.Decimal128).Value(i).BigInt(), Scale: t.Scale}
		}
	case *arrow.Decimal256Type:
		return core.DecimalOf(t.Precision, t.Scale), func(a arrow.Array, i int) core.Value {
			return core.Decimal{Coef: a.(*array.Decimal256).Value(i).BigInt(), Scale: t.Scale}
		}

	case *arrow.StringType, *arrow.LargeStringType, *arrow.StringViewType:
		return core.Utf8(), func(a arrow.Array, i int) core.Value {
			return a.(interface{ Value(int) string }).Value(i)
		}
	case *arrow.BinaryType, *arrow.LargeBinaryType, *arrow.BinaryViewType, *arrow.FixedSizeBinaryType:
		return core.Binary(), func(a arrow.Array, i int) core.Value {
			return bytes.Clone(a.(interface{ Value(int) []byte }).Value(i))
		}

	case *arrow.BooleanType:
		return core.Boolean(), func(a arrow.Array, i int) core.Value { return a.(*array.Boolean).Value(i) }

	case *arrow.TimestampType:
		unit := timeUnit(t.Unit)
		return core.TimestampOf(unit), func(a arrow.Array, i int) core.Value {
			return core.Timestamp{Value: int64(a.(*array.Timestamp).Value(i)), Unit: unit}
		}
	case *arrow.Date32Type:
		return core.TimestampOf(core.Second), func(a arrow.Array, i int) core.Value {
			return core.Timestamp{Value: int64(a.(*array.Date32).Value(i)) * 86400, Unit: core.Second}
		}
	case *arrow.Date64Type:
		return core.TimestampOf(core.Millisecond), func(a arrow.Array, i int) core.Value {
			return core.Timestamp{Value: int64(a.(*array.Date64).Value(i)), Unit: core.Millisecond}
		}

	case *arrow.DictionaryType:
		vt, valueOf := mapType(t.ValueType)
		return vt, func(a arrow.Array, i int) core.Value {
			dict := a.(*array.Dictionary)
			values := dict.Dictionary()
			idx := dict.GetValueIndex(i)
			if values.IsNull(idx) {
				return nil
			}
			return valueOf(values, idx)
		}

	default:
		return core.Utf8(), func(a arrow.Array, i int) core.Value { return a.ValueStr(i) }
	}
}

func timeUnit(u arrow.TimeUnit) core.TimeUnit {
	switch u {
	case arrow.Millisecond:
		return core.Millisecond
	case arrow.Microsecond:
		return core.Microsecond
	case arrow.Nanosecond:
		return core.Nanosecond
	default:
		return core.Second
	}
}
