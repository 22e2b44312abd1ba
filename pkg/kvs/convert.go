package kvs

import (
	"fmt"

	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// convertTo dispatches a decoded Value to the concrete type T requested by
// GetAs: primitive types go through kvsvalue's narrowing extractors, and
// any other type is given a chance to decode itself via kvsvalue.FromValuer.
func convertTo[T any](v kvsvalue.Value) (T, error) {
	var zero T

	if fv, ok := any(&zero).(kvsvalue.FromValuer); ok {
		if err := fv.FromValue(v); err != nil {
			return zero, err
		}
		return zero, nil
	}

	switch any(zero).(type) {
	case int8:
		n, err := v.Int8()
		return assign[T](n), err
	case int16:
		n, err := v.Int16()
		return assign[T](n), err
	case int32:
		n, err := v.Int32()
		return assign[T](n), err
	case int64:
		n, err := v.Int64()
		return assign[T](n), err
	case int:
		n, err := v.Int()
		return assign[T](n), err
	case uint8:
		n, err := v.Uint8()
		return assign[T](n), err
	case uint16:
		n, err := v.Uint16()
		return assign[T](n), err
	case uint32:
		n, err := v.Uint32()
		return assign[T](n), err
	case uint64:
		n, err := v.Uint64()
		return assign[T](n), err
	case uint:
		n, err := v.Uint()
		return assign[T](n), err
	case float32:
		n, err := v.Float32()
		return assign[T](n), err
	case float64:
		n, err := v.Float64()
		return assign[T](n), err
	case bool:
		b, err := v.Bool()
		return assign[T](b), err
	case string:
		s, err := v.Str()
		return assign[T](s), err
	default:
		return zero, fmt.Errorf("unsupported target type %T", zero)
	}
}

func assign[T any](v any) T {
	t, _ := v.(T)
	return t
}
