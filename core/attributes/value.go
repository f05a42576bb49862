package attributes

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"go.opentelemetry.io/collector/pdata/pcommon"
)

var (
	// ErrInvalidKey is returned for empty attribute keys
	ErrInvalidKey = errors.New("attribute key must be a non-empty string")
	// ErrInvalidValue is returned for values outside the attribute type system
	ErrInvalidValue = errors.New("attribute value must be a primitive or a homogeneous slice of primitives")
)

// Type identifies the kind of an attribute Value.
type Type int8

const (
	TypeNull Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeStringSlice
	TypeIntSlice
	TypeFloatSlice
	TypeBoolSlice
)

var typeNames = [...]string{"null", "string", "int", "float", "bool", "[]string", "[]int", "[]float", "[]bool"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// IsSlice reports whether the type is one of the homogeneous slice types.
func (t Type) IsSlice() bool {
	return t >= TypeStringSlice
}

// Value is a validated attribute value. The zero Value is null.
type Value struct {
	typ Type
	raw any
}

// NullValue returns the null attribute value.
func NullValue() Value { return Value{} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{typ: TypeString, raw: s} }

// IntValue wraps i.
func IntValue(i int64) Value { return Value{typ: TypeInt, raw: i} }

// FloatValue wraps f.
func FloatValue(f float64) Value { return Value{typ: TypeFloat, raw: f} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{typ: TypeBool, raw: b} }

// Type returns the value type.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.typ == TypeNull }

// Interface returns the underlying Go value: nil, string, int64, float64,
// bool, []string, []int64, []float64 or []bool.
func (v Value) Interface() any { return v.raw }

// Str returns the string for TypeString values and "" otherwise.
func (v Value) Str() string {
	s, _ := v.raw.(string)
	return s
}

// Int returns the value as an int64 if it is numeric. Floats are truncated.
func (v Value) Int() (int64, bool) {
	switch n := v.raw.(type) {
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// Float returns the value as a float64 if it is numeric.
func (v Value) Float() (float64, bool) {
	switch n := v.raw.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Bool returns the bool for TypeBool values.
func (v Value) Bool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok
}

// AsString renders the value as a string. Slices render as JSON style arrays.
func (v Value) AsString() string {
	switch x := v.raw.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		quoted := make([]string, len(x))
		for i, s := range x {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ",") + "]"
	default:
		return strings.ReplaceAll(fmt.Sprint(x), " ", ",")
	}
}

// ValueOf validates raw and converts it to a Value.
//
// Accepted inputs are nil, strings, booleans, every integer and float kind,
// and slices or arrays whose elements all belong to one of those families.
// Integers and floats mix freely inside a slice and produce a float slice.
// Everything else, including maps, structs, pointers, functions, channels,
// nested slices and slices containing nil, yields ErrInvalidValue.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return x, nil
	case pcommon.Value:
		return fromPValue(x), nil
	}

	if v, ok := primitiveOf(raw); ok {
		return v, nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Value{}, fmt.Errorf("%w: got %T", ErrInvalidValue, raw)
	}
	return sliceOf(rv)
}

func primitiveOf(raw any) (Value, bool) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.String:
		return StringValue(rv.String()), true
	case reflect.Bool:
		return BoolValue(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return FloatValue(float64(u)), true
		}
		return IntValue(int64(u)), true
	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float()), true
	}
	return Value{}, false
}

func sliceOf(rv reflect.Value) (Value, error) {
	n := rv.Len()
	elems := make([]Value, 0, n)
	family := TypeNull
	hasFloat := false

	for i := 0; i < n; i++ {
		ev := rv.Index(i)
		if ev.Kind() == reflect.Interface {
			if ev.IsNil() {
				return Value{}, fmt.Errorf("%w: nil element at index %d", ErrInvalidValue, i)
			}
			ev = ev.Elem()
		}
		pv, ok := primitiveOf(ev.Interface())
		if !ok {
			return Value{}, fmt.Errorf("%w: element %d has type %s", ErrInvalidValue, i, ev.Type())
		}

		f := pv.typ
		if f == TypeFloat {
			hasFloat = true
			f = TypeInt
		}
		if family == TypeNull {
			family = f
		} else if family != f {
			return Value{}, fmt.Errorf("%w: mixed element types", ErrInvalidValue)
		}
		elems = append(elems, pv)
	}

	if family == TypeNull {
		family = emptySliceFamily(rv.Type().Elem())
	}

	switch {
	case family == TypeString:
		out := make([]string, len(elems))
		for i, e := range elems {
			out[i] = e.Str()
		}
		return Value{typ: TypeStringSlice, raw: out}, nil
	case family == TypeBool:
		out := make([]bool, len(elems))
		for i, e := range elems {
			out[i], _ = e.Bool()
		}
		return Value{typ: TypeBoolSlice, raw: out}, nil
	case family == TypeFloat || hasFloat:
		out := make([]float64, len(elems))
		for i, e := range elems {
			out[i], _ = e.Float()
		}
		return Value{typ: TypeFloatSlice, raw: out}, nil
	default:
		out := make([]int64, len(elems))
		for i, e := range elems {
			out[i], _ = e.Int()
		}
		return Value{typ: TypeIntSlice, raw: out}, nil
	}
}

// emptySliceFamily picks the slice type for an empty slice from its element type.
func emptySliceFamily(elem reflect.Type) Type {
	switch elem.Kind() {
	case reflect.Bool:
		return TypeBool
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return TypeInt
	}
	return TypeString
}

// putValue stores v under key in m.
func putValue(m pcommon.Map, key string, v Value) {
	switch x := v.raw.(type) {
	case nil:
		m.PutEmpty(key)
	case string:
		m.PutStr(key, x)
	case int64:
		m.PutInt(key, x)
	case float64:
		m.PutDouble(key, x)
	case bool:
		m.PutBool(key, x)
	case []string:
		s := m.PutEmptySlice(key)
		s.EnsureCapacity(len(x))
		for _, e := range x {
			s.AppendEmpty().SetStr(e)
		}
	case []int64:
		s := m.PutEmptySlice(key)
		s.EnsureCapacity(len(x))
		for _, e := range x {
			s.AppendEmpty().SetInt(e)
		}
	case []float64:
		s := m.PutEmptySlice(key)
		s.EnsureCapacity(len(x))
		for _, e := range x {
			s.AppendEmpty().SetDouble(e)
		}
	case []bool:
		s := m.PutEmptySlice(key)
		s.EnsureCapacity(len(x))
		for _, e := range x {
			s.AppendEmpty().SetBool(e)
		}
	}
}

// fromPValue converts a pdata value. Maps and byte slices have no attribute
// equivalent and are flattened to their string form.
func fromPValue(pv pcommon.Value) Value {
	switch pv.Type() {
	case pcommon.ValueTypeEmpty:
		return Value{}
	case pcommon.ValueTypeStr:
		return StringValue(pv.Str())
	case pcommon.ValueTypeInt:
		return IntValue(pv.Int())
	case pcommon.ValueTypeDouble:
		return FloatValue(pv.Double())
	case pcommon.ValueTypeBool:
		return BoolValue(pv.Bool())
	case pcommon.ValueTypeSlice:
		if v, err := ValueOf(pv.Slice().AsRaw()); err == nil {
			return v
		}
	}
	return StringValue(pv.AsString())
}
