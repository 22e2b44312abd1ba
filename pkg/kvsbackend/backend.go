// Package kvsbackend defines the pluggable persistence contract every KVS
// instance stores through, and a thread-safe name→factory registry that
// lets applications (and tests) register backends beyond the built-in JSON
// one. Concrete backends (pkg/kvsbackend/jsonbackend,
// pkg/kvsbackend/memorybackend) implement the Backend/Factory interfaces
// structurally; this package never imports them, so registering the
// default JSON backend happens via that package's own init (see the
// comment on jsonbackend's init), the same driver-registration idiom database/sql
// uses for its drivers.
package kvsbackend

import (
	"context"

	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// InstanceID identifies a KVS instance within the process-wide pool.
type InstanceID int

// SnapshotID identifies a snapshot generation kept by a backend, where 0 is
// always the most recently flushed state.
type SnapshotID int

// Backend is the storage contract a KVS instance persists through: load the
// current snapshot and the defaults map, flush a new snapshot (rotating
// older ones out), report how many snapshots exist, and restore an older
// one back into the live map.
type Backend interface {
	// LoadSnapshot loads the content of the given snapshot generation for
	// instanceID. snapshotID 0 is the most recently flushed state.
	LoadSnapshot(ctx context.Context, instanceID InstanceID, snapshotID SnapshotID) (kvsvalue.Map, error)

	// LoadDefaults loads the default values configured for instanceID.
	LoadDefaults(ctx context.Context, instanceID InstanceID) (kvsvalue.Map, error)

	// Flush persists data as the new snapshot 0, rotating any existing
	// snapshots down by one generation.
	Flush(ctx context.Context, instanceID InstanceID, data kvsvalue.Map) error

	// SnapshotCount reports how many snapshot generations currently exist
	// for instanceID.
	SnapshotCount(ctx context.Context, instanceID InstanceID) (int, error)

	// SnapshotMaxCount reports the maximum number of snapshot generations
	// this backend will ever keep.
	SnapshotMaxCount() int

	// SnapshotRestore loads and returns the content of an older snapshot
	// generation so the caller can replace its live map with it.
	SnapshotRestore(ctx context.Context, instanceID InstanceID, snapshotID SnapshotID) (kvsvalue.Map, error)
}

// Factory constructs a Backend from a backend-parameters map (e.g. the
// JSON backend reads "working_dir" and "snapshot_max_count" from it).
type Factory interface {
	New(parameters kvsvalue.Map) (Backend, error)
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(parameters kvsvalue.Map) (Backend, error)

func (f FactoryFunc) New(parameters kvsvalue.Map) (Backend, error) { return f(parameters) }
