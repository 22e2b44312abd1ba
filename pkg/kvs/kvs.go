package kvs

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvserrors"
	"github.com/qorix-group/kvs/pkg/kvsmetrics"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// Instance is a handle to a pool-resident KVS instance. Every handle built
// for the same InstanceID shares the same underlying data and lock; the
// handle itself is a thin forwarder, matching the source's Kvs/KvsApi
// split.
type Instance struct {
	parameters Parameters
	backend    kvsbackend.Backend
	lock       *stateLock
	data       *instanceData
}

// Parameters returns the resolved parameters this instance was built with.
func (inst *Instance) Parameters() Parameters { return inst.parameters }

// Reset empties the live map, retaining the defaults map.
func (inst *Instance) Reset() error {
	return inst.lock.withLock(func() error {
		inst.data.live = kvsvalue.Map{}
		return nil
	})
}

// ResetKey removes key from the live map, falling back to its default on
// next Get. Fails with KindKeyDefaultNotFound if key has no default.
func (inst *Instance) ResetKey(key string) error {
	const op = "kvs.ResetKey"
	return inst.lock.withLock(func() error {
		if _, ok := inst.data.defaults[key]; !ok {
			klog.Warningf("resetting key %q without a default value", key)
			return kvserrors.New(kvserrors.KindKeyDefaultNotFound, op, "key has no default value: "+key)
		}
		delete(inst.data.live, key)
		return nil
	})
}

// AllKeys returns every key currently set in the live map.
func (inst *Instance) AllKeys() ([]string, error) {
	var keys []string
	err := inst.lock.withLock(func() error {
		keys = make([]string, 0, len(inst.data.live))
		for k := range inst.data.live {
			keys = append(keys, k)
		}
		return nil
	})
	return keys, err
}

// KeyExists reports whether key is set in the live map.
func (inst *Instance) KeyExists(key string) (bool, error) {
	var exists bool
	err := inst.lock.withLock(func() error {
		_, exists = inst.data.live[key]
		return nil
	})
	return exists, err
}

// Get returns key's value from the live map, falling back to the defaults
// map. Fails with KindKeyNotFound if key is in neither.
func (inst *Instance) Get(key string) (kvsvalue.Value, error) {
	const op = "kvs.Get"
	var value kvsvalue.Value
	err := inst.lock.withLock(func() error {
		if v, ok := inst.data.live[key]; ok {
			value = v
			return nil
		}
		if v, ok := inst.data.defaults[key]; ok {
			value = v
			return nil
		}
		klog.V(4).Infof("Get could not find key %q", key)
		return kvserrors.New(kvserrors.KindKeyNotFound, op, "key not found: "+key)
	})
	return value, err
}

// GetAs looks key up the same way Get does and converts it to T, the Go
// analogue of the source's generic get_value_as<T>. T may be any integer,
// float, bool or string type convertTo supports, or a type whose pointer
// implements kvsvalue.FromValuer.
func GetAs[T any](inst *Instance, key string) (T, error) {
	const op = "kvs.GetAs"
	var zero T
	value, err := inst.Get(key)
	if err != nil {
		return zero, err
	}
	converted, err := convertTo[T](value)
	if err != nil {
		return zero, kvserrors.Wrap(kvserrors.KindConversionFailed, op, err)
	}
	return converted, nil
}

// GetDefault returns key's value from the defaults map only.
func (inst *Instance) GetDefault(key string) (kvsvalue.Value, error) {
	const op = "kvs.GetDefault"
	var value kvsvalue.Value
	err := inst.lock.withLock(func() error {
		v, ok := inst.data.defaults[key]
		if !ok {
			return kvserrors.New(kvserrors.KindKeyNotFound, op, "key not found in defaults: "+key)
		}
		value = v
		return nil
	})
	return value, err
}

// IsDefault reports whether key currently resolves to its default value
// (true), its own set value (false), or fails with KindKeyNotFound if key
// is in neither map.
func (inst *Instance) IsDefault(key string) (bool, error) {
	const op = "kvs.IsDefault"
	var isDefault bool
	err := inst.lock.withLock(func() error {
		if _, ok := inst.data.live[key]; ok {
			isDefault = false
			return nil
		}
		if _, ok := inst.data.defaults[key]; ok {
			isDefault = true
			return nil
		}
		return kvserrors.New(kvserrors.KindKeyNotFound, op, "key not found: "+key)
	})
	return isDefault, err
}

// Set assigns value to key in the live map.
func (inst *Instance) Set(key string, value kvsvalue.Value) error {
	return inst.lock.withLock(func() error {
		inst.data.live[key] = value
		return nil
	})
}

// Remove deletes key from the live map. Fails with KindKeyNotFound if key
// was not set.
func (inst *Instance) Remove(key string) error {
	const op = "kvs.Remove"
	return inst.lock.withLock(func() error {
		if _, ok := inst.data.live[key]; !ok {
			return kvserrors.New(kvserrors.KindKeyNotFound, op, "key not found: "+key)
		}
		delete(inst.data.live, key)
		return nil
	})
}

// Flush commits the live map to the backend as the new snapshot 0, rotating
// older snapshots. A no-op success when SnapshotMaxCount() == 0.
func (inst *Instance) Flush(ctx context.Context) error {
	if inst.backend.SnapshotMaxCount() == 0 {
		klog.Warningf("instance %d: snapshot_max_count == 0, flush ignored", inst.parameters.InstanceID)
		return nil
	}

	timer := kvsmetrics.NewOperationTimer(inst.parameters.InstanceID, kvsmetrics.OpFlush)
	err := inst.lock.withLock(func() error {
		return inst.backend.Flush(ctx, inst.parameters.InstanceID, inst.data.live)
	})
	if err != nil {
		timer.ObserveError()
		return err
	}
	timer.ObserveSuccess()
	klog.Infof("instance %d: flush committed", inst.parameters.InstanceID)
	return nil
}

// SnapshotCount reports how many snapshot generations the backend holds for
// this instance.
func (inst *Instance) SnapshotCount(ctx context.Context) (int, error) {
	return inst.backend.SnapshotCount(ctx, inst.parameters.InstanceID)
}

// SnapshotMaxCount reports the backend's configured ceiling on retained
// snapshot generations.
func (inst *Instance) SnapshotMaxCount() int {
	return inst.backend.SnapshotMaxCount()
}

// SnapshotRestore replaces the live map with the content of an older
// snapshot generation. Restoring does not itself write a snapshot: the
// live map will diverge from snapshot 0 until the next Flush.
func (inst *Instance) SnapshotRestore(ctx context.Context, snapshotID kvsbackend.SnapshotID) error {
	timer := kvsmetrics.NewOperationTimer(inst.parameters.InstanceID, kvsmetrics.OpRestore)
	err := inst.lock.withLock(func() error {
		restored, err := inst.backend.SnapshotRestore(ctx, inst.parameters.InstanceID, snapshotID)
		if err != nil {
			return err
		}
		inst.data.live = restored
		return nil
	})
	if err != nil {
		timer.ObserveError()
		return err
	}
	timer.ObserveSuccess()
	klog.Infof("instance %d: restored from snapshot %d", inst.parameters.InstanceID, snapshotID)
	return nil
}
