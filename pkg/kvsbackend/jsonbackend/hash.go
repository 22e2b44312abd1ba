package jsonbackend

import (
	"encoding/binary"
	"hash/adler32"

	"github.com/qorix-group/kvs/pkg/kvserrors"
)

// ComputeDigest returns the Adler-32 checksum of payload, exported so test
// suites can construct deliberately-corrupted sidecars without reaching
// into backend internals, the same role the source's own test-only hashing
// helper in json_backend.rs plays for its test suite.
func ComputeDigest(payload []byte) uint32 {
	return adler32.Checksum(payload)
}

// encodeDigest renders a digest as the 4-byte big-endian sidecar format.
func encodeDigest(digest uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, digest)
	return buf
}

// decodeDigest parses a sidecar's raw bytes, failing with
// KindValidationFailed if the length is wrong.
func decodeDigest(op string, raw []byte) (uint32, error) {
	if len(raw) != 4 {
		return 0, kvserrors.New(kvserrors.KindValidationFailed, op, "hash sidecar must be exactly 4 bytes")
	}
	return binary.BigEndian.Uint32(raw), nil
}
