package kvsvalue

import (
	"fmt"
	"math"

	"github.com/qorix-group/kvs/pkg/kvserrors"
)

const op = "kvsvalue.Convert"

func wrongVariant(want Kind, got Kind) error {
	return kvserrors.New(kvserrors.KindDeserializationFailed, op,
		fmt.Sprintf("invalid variant provided: want %s, have %s", want, got))
}

func outOfRange(kind Kind, n any) error {
	return kvserrors.New(kvserrors.KindConversionFailed, op,
		fmt.Sprintf("%v out of range for %s", n, kind))
}

// Int8 narrows an I32 value to int8, failing if it does not fit.
func (v Value) Int8() (int8, error) {
	n, err := v.Int32()
	if err != nil {
		return 0, err
	}
	if n < math.MinInt8 || n > math.MaxInt8 {
		return 0, outOfRange(KindI32, n)
	}
	return int8(n), nil
}

// Int16 narrows an I32 value to int16, failing if it does not fit.
func (v Value) Int16() (int16, error) {
	n, err := v.Int32()
	if err != nil {
		return 0, err
	}
	if n < math.MinInt16 || n > math.MaxInt16 {
		return 0, outOfRange(KindI32, n)
	}
	return int16(n), nil
}

// Int32 extracts an I32 value exactly.
func (v Value) Int32() (int32, error) {
	if v.kind != KindI32 {
		return 0, wrongVariant(KindI32, v.kind)
	}
	return int32(v.i64), nil
}

// Int64 extracts an I64 value exactly.
func (v Value) Int64() (int64, error) {
	if v.kind != KindI64 {
		return 0, wrongVariant(KindI64, v.kind)
	}
	return v.i64, nil
}

// Int narrows an I64 value to the platform int width (the Go analogue of
// Rust's isize), failing if it does not fit.
func (v Value) Int() (int, error) {
	n, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if n < math.MinInt || n > math.MaxInt {
		return 0, outOfRange(KindI64, n)
	}
	return int(n), nil
}

// Uint8 narrows a U32 value to uint8, failing if it does not fit.
func (v Value) Uint8() (uint8, error) {
	n, err := v.Uint32()
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint8 {
		return 0, outOfRange(KindU32, n)
	}
	return uint8(n), nil
}

// Uint16 narrows a U32 value to uint16, failing if it does not fit.
func (v Value) Uint16() (uint16, error) {
	n, err := v.Uint32()
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint16 {
		return 0, outOfRange(KindU32, n)
	}
	return uint16(n), nil
}

// Uint32 extracts a U32 value exactly.
func (v Value) Uint32() (uint32, error) {
	if v.kind != KindU32 {
		return 0, wrongVariant(KindU32, v.kind)
	}
	return uint32(v.u64), nil
}

// Uint64 extracts a U64 value exactly.
func (v Value) Uint64() (uint64, error) {
	if v.kind != KindU64 {
		return 0, wrongVariant(KindU64, v.kind)
	}
	return v.u64, nil
}

// Uint narrows a U64 value to the platform uint width (the Go analogue of
// Rust's usize), failing if it does not fit.
func (v Value) Uint() (uint, error) {
	n, err := v.Uint64()
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint {
		return 0, outOfRange(KindU64, n)
	}
	return uint(n), nil
}

// AsUint64 tolerantly widens any non-negative integer variant (I32, U32,
// I64 or U64) to uint64, unlike Uint64's exact-kind match. Backend
// factories use this for numeric parameters (e.g. "snapshot_max_count")
// that may arrive as any integer kind depending on how the caller built
// the parameters map, such as YAML-decoded manifest options.
func (v Value) AsUint64() (uint64, error) {
	switch v.kind {
	case KindU64, KindU32:
		return v.u64, nil
	case KindI64, KindI32:
		if v.i64 < 0 {
			return 0, outOfRange(v.kind, v.i64)
		}
		return uint64(v.i64), nil
	default:
		return 0, wrongVariant(KindU64, v.kind)
	}
}

// Float32 narrows an F64 value to float32 using standard float narrowing;
// unlike integer narrowing this never fails on range.
func (v Value) Float32() (float32, error) {
	n, err := v.Float64()
	if err != nil {
		return 0, err
	}
	return float32(n), nil
}

// Float64 extracts an F64 value exactly.
func (v Value) Float64() (float64, error) {
	if v.kind != KindF64 {
		return 0, wrongVariant(KindF64, v.kind)
	}
	return v.f64, nil
}

// Bool extracts a Bool value.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, wrongVariant(KindBool, v.kind)
	}
	return v.b, nil
}

// Str extracts a String value.
func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", wrongVariant(KindString, v.kind)
	}
	return v.s, nil
}

// Unit checks that v holds Null, returning an error otherwise.
func (v Value) Unit() error {
	if v.kind != KindNull {
		return wrongVariant(KindNull, v.kind)
	}
	return nil
}

// Array extracts an Array value. The returned slice aliases v's storage.
func (v Value) Array() ([]Value, error) {
	if v.kind != KindArray {
		return nil, wrongVariant(KindArray, v.kind)
	}
	return v.arr, nil
}

// Object extracts an Object value. The returned map aliases v's storage.
func (v Value) Object() (Map, error) {
	if v.kind != KindObject {
		return nil, wrongVariant(KindObject, v.kind)
	}
	return v.obj, nil
}

// From constructs a Value from any of the primitive Go types the data model
// supports: signed/unsigned integers of every width (including the
// platform-width int/uint, the analogue of Rust's isize/usize), 32/64-bit
// floats, bool, string, nil (unit), []Value and Map.
func From(v any) (Value, error) {
	switch n := v.(type) {
	case int8:
		return I32(int32(n)), nil
	case int16:
		return I32(int32(n)), nil
	case int32:
		return I32(n), nil
	case int64:
		return I64(n), nil
	case int:
		return I64(int64(n)), nil
	case uint8:
		return U32(uint32(n)), nil
	case uint16:
		return U32(uint32(n)), nil
	case uint32:
		return U32(n), nil
	case uint64:
		return U64(n), nil
	case uint:
		return U64(uint64(n)), nil
	case float32:
		return F64(float64(n)), nil
	case float64:
		return F64(n), nil
	case bool:
		return Bool(n), nil
	case string:
		return Str(n), nil
	case nil:
		return Null(), nil
	case []Value:
		return Arr(n), nil
	case Map:
		return Obj(n), nil
	case Value:
		return n, nil
	default:
		return Value{}, kvserrors.New(kvserrors.KindSerializationFailed, op,
			fmt.Sprintf("unsupported source type %T", v))
	}
}
