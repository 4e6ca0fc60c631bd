package wdl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a WDL literal: the result of constant folding, a declaration
// default, or a constant call argument. Raw holds one of int64, float64,
// string, bool, or []Value.
type Value struct {
	T   Type
	Raw any
}

// IntValue, FloatValue, StringValue and BoolValue build primitive values.
func IntValue(i int64) Value     { return Value{T: TypeInt, Raw: i} }
func FloatValue(f float64) Value { return Value{T: TypeFloat, Raw: f} }
func StringValue(s string) Value { return Value{T: TypeString, Raw: s} }
func BoolValue(b bool) Value     { return Value{T: TypeBoolean, Raw: b} }

// ArrayValue builds an array value. The item type is taken from the
// first element; an empty array is Array[String].
func ArrayValue(items []Value) Value {
	item := Type(TypeString)
	if len(items) > 0 {
		item = items[0].T
	}
	return Value{T: Array{Item: item}, Raw: items}
}

// ValueFromAny converts a value exported from the evaluator (goja
// exports numbers as int64 or float64, arrays as []any) to a Value.
func ValueFromAny(x any) (Value, error) {
	switch v := x.(type) {
	case bool:
		return BoolValue(v), nil
	case int64:
		return IntValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
			return IntValue(int64(v)), nil
		}
		return FloatValue(v), nil
	case string:
		return StringValue(v), nil
	case []any:
		items := make([]Value, 0, len(v))
		for _, e := range v {
			ev, err := ValueFromAny(e)
			if err != nil {
				return Value{}, err
			}
			items = append(items, ev)
		}
		return ArrayValue(items), nil
	default:
		return Value{}, fmt.Errorf("unsupported constant value of type %T", x)
	}
}

// SourceString renders the value as a WDL literal, suitable for
// embedding in generated source.
func (v Value) SourceString() string {
	switch raw := v.Raw.(type) {
	case bool:
		return strconv.FormatBool(raw)
	case int64:
		return strconv.FormatInt(raw, 10)
	case float64:
		return strconv.FormatFloat(raw, 'g', -1, 64)
	case string:
		return strconv.Quote(raw)
	case []Value:
		parts := make([]string, len(raw))
		for i, item := range raw {
			parts[i] = item.SourceString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", raw)
	}
}

func (v Value) String() string { return v.SourceString() }
