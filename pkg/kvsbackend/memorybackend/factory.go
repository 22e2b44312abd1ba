package memorybackend

import (
	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvserrors"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// Factory builds Backend instances that all share a single Store, so
// distinct Build() calls against the same factory observe each other's
// writes the way distinct JSON backends pointed at one working directory
// would.
type Factory struct {
	store *Store
}

var _ kvsbackend.Factory = Factory{}

// NewFactory returns a Factory wrapping store.
func NewFactory(store *Store) Factory {
	return Factory{store: store}
}

// New implements kvsbackend.Factory, reading the optional
// "snapshot_max_count" (any non-negative integer kind) backend parameter.
func (f Factory) New(parameters kvsvalue.Map) (kvsbackend.Backend, error) {
	const op = "memorybackend.Factory.New"
	maxCount := defaultSnapshotMaxCount
	if v, ok := parameters["snapshot_max_count"]; ok {
		n, err := v.AsUint64()
		if err != nil {
			return nil, kvserrors.New(kvserrors.KindInvalidBackendParameters, op, `"snapshot_max_count" must be a non-negative integer`)
		}
		maxCount = int(n)
	}
	return NewBackend(f.store, maxCount), nil
}

// init registers the in-memory backend as "memory-backend" against the
// default registry, sharing DefaultStore, mirroring jsonbackend's own
// self-registration idiom.
func init() {
	if err := kvsbackend.DefaultRegistry.Register("memory-backend", NewFactory(DefaultStore)); err != nil {
		panic("memorybackend: " + err.Error())
	}
}
