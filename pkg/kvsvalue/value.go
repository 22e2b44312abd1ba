// Package kvsvalue implements the tagged-union value type shared by every
// KVS instance and backend: a small, closed set of scalar, string,
// array and map variants that can hold any value a key may be set to.
package kvsvalue

// Kind identifies which variant a Value currently holds.
type Kind int

const (
	KindI32 Kind = iota
	KindU32
	KindI64
	KindU64
	KindF64
	KindBool
	KindString
	KindNull
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindU32:
		return "u32"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindString:
		return "str"
	case KindNull:
		return "null"
	case KindArray:
		return "arr"
	case KindObject:
		return "obj"
	default:
		return "unknown"
	}
}

// Map is the live or default key space of a KVS instance: a flat string-keyed
// collection of Values. It is also the type an Object-kind Value carries.
type Map map[string]Value

// Clone returns a deep copy so callers can hand out map snapshots without
// aliasing the instance's internal state.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports whether two maps hold the same keys mapped to equal values.
func (m Map) Equal(other Map) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Value is a closed tagged union over the ten variants a KVS key can hold:
// four integer widths/signs, a float, a bool, a string, null (unit), an
// array of Values and an object (Map) of Values.
type Value struct {
	kind Kind
	i64  int64
	u64  uint64
	f64  float64
	b    bool
	s    string
	arr  []Value
	obj  Map
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// I32 constructs a 32-bit signed integer value.
func I32(n int32) Value { return Value{kind: KindI32, i64: int64(n)} }

// U32 constructs a 32-bit unsigned integer value.
func U32(n uint32) Value { return Value{kind: KindU32, u64: uint64(n)} }

// I64 constructs a 64-bit signed integer value.
func I64(n int64) Value { return Value{kind: KindI64, i64: n} }

// U64 constructs a 64-bit unsigned integer value.
func U64(n uint64) Value { return Value{kind: KindU64, u64: n} }

// F64 constructs a 64-bit floating point value.
func F64(f float64) Value { return Value{kind: KindF64, f64: f} }

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Str constructs a string value.
func Str(s string) Value { return Value{kind: KindString, s: s} }

// Null constructs the unit/null value.
func Null() Value { return Value{kind: KindNull} }

// Arr constructs an array value. The slice is not copied; callers should
// treat it as owned by the returned Value afterwards.
func Arr(items []Value) Value { return Value{kind: KindArray, arr: items} }

// Obj constructs an object value wrapping a Map. The map is not copied;
// callers should treat it as owned by the returned Value afterwards.
func Obj(m Map) Value { return Value{kind: KindObject, obj: m} }

// Clone returns a deep copy of v, recursing into arrays and objects.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, e := range v.arr {
			items[i] = e.Clone()
		}
		return Value{kind: KindArray, arr: items}
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	default:
		return v
	}
}

// Equal reports whether v and other hold the same kind and the same content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindI32, KindI64:
		return v.i64 == other.i64
	case KindU32, KindU64:
		return v.u64 == other.u64
	case KindF64:
		return v.f64 == other.f64
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	case KindNull:
		return true
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.obj.Equal(other.obj)
	default:
		return false
	}
}
