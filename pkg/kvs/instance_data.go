package kvs

import "github.com/qorix-group/kvs/pkg/kvsvalue"

// instanceData is the live+defaults maps a single instance shares with
// every handle, guarded by the instance's stateLock. The live map is
// mutated by Set/Remove/Reset/SnapshotRestore; the defaults map is
// populated once at build and never mutated afterwards.
type instanceData struct {
	live     kvsvalue.Map
	defaults kvsvalue.Map
}

func newInstanceData(live, defaults kvsvalue.Map) *instanceData {
	if live == nil {
		live = kvsvalue.Map{}
	}
	if defaults == nil {
		defaults = kvsvalue.Map{}
	}
	return &instanceData{live: live, defaults: defaults}
}
