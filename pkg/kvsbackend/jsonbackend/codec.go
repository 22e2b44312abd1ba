package jsonbackend

import (
	stdjson "encoding/json"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// json is a drop-in, faster replacement for encoding/json configured to be
// fully compatible with its behavior (map key ordering on encode, number
// decoding into float64 for untyped targets), so the wire format this
// package produces and tolerates is unaffected by the swap. Decoding a
// payload pair opts into UseNumber (see loadPair) so decodeTagged sees
// exact json.Number values instead of float64-rounded ones.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// encodeMap renders a live/defaults map as the bare top-level object a
// snapshot file holds: each entry wrapped as {"t": <tag>, "v": <payload>}.
func encodeMap(m kvsvalue.Map) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v kvsvalue.Value) map[string]any {
	switch v.Kind() {
	case kvsvalue.KindI32:
		n, _ := v.Int32()
		return tagged("i32", n)
	case kvsvalue.KindU32:
		n, _ := v.Uint32()
		return tagged("u32", n)
	case kvsvalue.KindI64:
		n, _ := v.Int64()
		return tagged("i64", n)
	case kvsvalue.KindU64:
		n, _ := v.Uint64()
		return tagged("u64", n)
	case kvsvalue.KindF64:
		n, _ := v.Float64()
		return tagged("f64", n)
	case kvsvalue.KindBool:
		b, _ := v.Bool()
		return tagged("bool", b)
	case kvsvalue.KindString:
		s, _ := v.Str()
		return tagged("str", s)
	case kvsvalue.KindNull:
		return tagged("null", nil)
	case kvsvalue.KindArray:
		arr, _ := v.Array()
		items := make([]any, len(arr))
		for i, e := range arr {
			items[i] = encodeValue(e)
		}
		return tagged("arr", items)
	case kvsvalue.KindObject:
		obj, _ := v.Object()
		return tagged("obj", encodeMap(obj))
	default:
		return tagged("null", nil)
	}
}

func tagged(tag string, payload any) map[string]any {
	return map[string]any{"t": tag, "v": payload}
}

// decodeMap is the inverse of encodeMap, tolerant of any structurally
// unexpected shape per the wire format's forward-compatibility contract:
// unrecognized shapes decode to Null rather than failing.
func decodeMap(raw map[string]any) kvsvalue.Map {
	out := make(kvsvalue.Map, len(raw))
	for k, v := range raw {
		out[k] = decodeValue(v)
	}
	return out
}

// decodeValue decodes a single JSON value into a kvsvalue.Value. An object
// is interpreted as a tagged {"t","v"} pair when both keys are present and
// "t" is a string; otherwise (mirroring the source's json_backend.rs) it is
// treated as a raw map, with whatever "t"/"v" entries it had already
// removed from consideration before the fallback, since those keys were
// consumed while probing for the tagged shape.
func decodeValue(raw any) kvsvalue.Value {
	obj, ok := raw.(map[string]any)
	if !ok {
		return kvsvalue.Null()
	}

	tagRaw, hasTag := obj["t"]
	payload, hasPayload := obj["v"]
	delete(obj, "t")
	delete(obj, "v")

	if hasTag && hasPayload {
		if tag, ok := tagRaw.(string); ok {
			return decodeTagged(tag, payload)
		}
	}

	return kvsvalue.Obj(decodeMap(obj))
}

func decodeTagged(tag string, payload any) kvsvalue.Value {
	switch tag {
	case "i32":
		if n, ok := jsonInt(payload); ok {
			return kvsvalue.I32(int32(n))
		}
	case "u32":
		if n, ok := jsonUint(payload); ok {
			return kvsvalue.U32(uint32(n))
		}
	case "i64":
		if n, ok := jsonInt(payload); ok {
			return kvsvalue.I64(n)
		}
	case "u64":
		if n, ok := jsonUint(payload); ok {
			return kvsvalue.U64(n)
		}
	case "f64":
		if n, ok := jsonFloat(payload); ok {
			return kvsvalue.F64(n)
		}
	case "bool":
		if b, ok := payload.(bool); ok {
			return kvsvalue.Bool(b)
		}
	case "str":
		if s, ok := payload.(string); ok {
			return kvsvalue.Str(s)
		}
	case "null":
		if payload == nil {
			return kvsvalue.Null()
		}
	case "arr":
		if arr, ok := payload.([]any); ok {
			items := make([]kvsvalue.Value, len(arr))
			for i, e := range arr {
				items[i] = decodeValue(e)
			}
			return kvsvalue.Arr(items)
		}
	case "obj":
		if obj, ok := payload.(map[string]any); ok {
			out := make(kvsvalue.Map, len(obj))
			for k, v := range obj {
				out[k] = decodeValue(v)
			}
			return kvsvalue.Obj(out)
		}
	}
	return kvsvalue.Null()
}

// jsonInt, jsonUint and jsonFloat parse a decoded JSON number exactly in
// its target width, relying on the payload decoder's UseNumber mode so
// integer tags never round-trip through float64 and lose precision above
// 2^53 the way an untyped float64 decode would.
func jsonInt(raw any) (int64, bool) {
	num, ok := raw.(stdjson.Number)
	if !ok {
		return 0, false
	}
	n, err := num.Int64()
	return n, err == nil
}

func jsonUint(raw any) (uint64, bool) {
	num, ok := raw.(stdjson.Number)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(string(num), 10, 64)
	return n, err == nil
}

func jsonFloat(raw any) (float64, bool) {
	num, ok := raw.(stdjson.Number)
	if !ok {
		return 0, false
	}
	n, err := num.Float64()
	return n, err == nil
}
