// Package memorybackend is a volatile, process-memory-only backend with no
// files and no integrity sidecar (integrity is meaningless for data that
// never leaves RAM). It is a second, non-JSON backend registered and built
// purely through backend-parameters, exercising the registry's
// multi-backend contract end to end the way
// examples/backend_registration.rs exercises it against the reference
// implementation.
package memorybackend

import (
	"context"
	"sync"

	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvserrors"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

const defaultSnapshotMaxCount = 3

// Store holds the in-memory snapshot history and defaults for every
// instance a Backend built against it may address. Multiple Backend values
// built from the same Store behave like multiple JSON backends pointed at
// the same working directory: they observe each other's writes.
type Store struct {
	mu        sync.Mutex
	snapshots map[kvsbackend.InstanceID][]kvsvalue.Map
	defaults  map[kvsbackend.InstanceID]kvsvalue.Map
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		snapshots: make(map[kvsbackend.InstanceID][]kvsvalue.Map),
		defaults:  make(map[kvsbackend.InstanceID]kvsvalue.Map),
	}
}

// SeedDefaults provisions the defaults map for instanceID, standing in for
// the externally-provisioned defaults file the JSON backend reads — there
// is no file to provision here, so tests call this directly instead.
func (s *Store) SeedDefaults(instanceID kvsbackend.InstanceID, defaults kvsvalue.Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[instanceID] = defaults.Clone()
}

// DefaultStore is the store the package's self-registered "memory-backend"
// factory wraps, so every instance built against it by name shares state
// the way instances built against the JSON backend share a working
// directory.
var DefaultStore = NewStore()

// Backend is the in-memory backend. The zero value is not usable; build one
// with NewBackend or through the registry.
type Backend struct {
	store            *Store
	snapshotMaxCount int
}

var _ kvsbackend.Backend = (*Backend)(nil)

// NewBackend builds a Backend against store, retaining at most
// snapshotMaxCount generations.
func NewBackend(store *Store, snapshotMaxCount int) *Backend {
	return &Backend{store: store, snapshotMaxCount: snapshotMaxCount}
}

func (b *Backend) LoadSnapshot(_ context.Context, instanceID kvsbackend.InstanceID, snapshotID kvsbackend.SnapshotID) (kvsvalue.Map, error) {
	const op = "memorybackend.LoadSnapshot"
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	gens := b.store.snapshots[instanceID]
	if int(snapshotID) >= len(gens) {
		return nil, kvserrors.New(kvserrors.KindFileNotFound, op, "no such snapshot generation in memory")
	}
	return gens[snapshotID].Clone(), nil
}

func (b *Backend) LoadDefaults(_ context.Context, instanceID kvsbackend.InstanceID) (kvsvalue.Map, error) {
	const op = "memorybackend.LoadDefaults"
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	defaults, ok := b.store.defaults[instanceID]
	if !ok {
		return nil, kvserrors.New(kvserrors.KindFileNotFound, op, "no defaults seeded for instance")
	}
	return defaults.Clone(), nil
}

func (b *Backend) Flush(_ context.Context, instanceID kvsbackend.InstanceID, data kvsvalue.Map) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	if b.snapshotMaxCount == 0 {
		return nil
	}

	gens := append([]kvsvalue.Map{data.Clone()}, b.store.snapshots[instanceID]...)
	if len(gens) > b.snapshotMaxCount {
		gens = gens[:b.snapshotMaxCount]
	}
	b.store.snapshots[instanceID] = gens
	return nil
}

func (b *Backend) SnapshotCount(_ context.Context, instanceID kvsbackend.InstanceID) (int, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	n := len(b.store.snapshots[instanceID])
	if n > b.snapshotMaxCount {
		n = b.snapshotMaxCount
	}
	return n, nil
}

func (b *Backend) SnapshotMaxCount() int {
	return b.snapshotMaxCount
}

func (b *Backend) SnapshotRestore(ctx context.Context, instanceID kvsbackend.InstanceID, snapshotID kvsbackend.SnapshotID) (kvsvalue.Map, error) {
	const op = "memorybackend.SnapshotRestore"
	if snapshotID == 0 {
		return nil, kvserrors.New(kvserrors.KindInvalidSnapshotID, op, "snapshot id 0 is the live snapshot, not a restore target")
	}
	count, err := b.SnapshotCount(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if int(snapshotID) >= count {
		return nil, kvserrors.New(kvserrors.KindInvalidSnapshotID, op, "snapshot does not exist")
	}
	return b.LoadSnapshot(ctx, instanceID, snapshotID)
}
