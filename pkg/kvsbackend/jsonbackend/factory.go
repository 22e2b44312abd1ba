package jsonbackend

import (
	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvserrors"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// Factory builds Backend instances from a backend-parameters map, reading
// the optional "working_dir" (String) and "snapshot_max_count" (any
// non-negative integer kind) keys.
type Factory struct{}

var _ kvsbackend.Factory = Factory{}

// New implements kvsbackend.Factory.
func (Factory) New(parameters kvsvalue.Map) (kvsbackend.Backend, error) {
	const op = "jsonbackend.Factory.New"
	builder := NewBuilder()

	if v, ok := parameters["working_dir"]; ok {
		dir, err := v.Str()
		if err != nil {
			return nil, kvserrors.New(kvserrors.KindInvalidBackendParameters, op, `"working_dir" must be a string`)
		}
		builder.WorkingDir(dir)
	}

	if v, ok := parameters["snapshot_max_count"]; ok {
		n, err := v.AsUint64()
		if err != nil {
			return nil, kvserrors.New(kvserrors.KindInvalidBackendParameters, op, `"snapshot_max_count" must be a non-negative integer`)
		}
		builder.SnapshotMaxCount(int(n))
	}

	return builder.Build()
}

// init registers the JSON backend as "json" in the process-wide default
// registry, the same self-registration idiom database/sql drivers use so
// that importing this package for its side effect is enough to make the
// backend available by name.
func init() {
	if err := kvsbackend.DefaultRegistry.Register("json", Factory{}); err != nil {
		panic("jsonbackend: " + err.Error())
	}
}
