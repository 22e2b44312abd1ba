package kvs

import (
	"context"
	"sync"
	"testing"

	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvsbackend/memorybackend"
	"github.com/qorix-group/kvs/pkg/kvserrors"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

func memoryParams(store *memorybackend.Store) kvsvalue.Map {
	return kvsvalue.Map{"name": kvsvalue.Str("memory-backend")}
}

func newTestRegistry(store *memorybackend.Store) *kvsbackend.Registry {
	reg := kvsbackend.NewRegistry()
	if err := reg.Register("memory-backend", memorybackend.NewFactory(store)); err != nil {
		panic(err)
	}
	return reg
}

func TestBuilderBuildsNewInstance(t *testing.T) {
	store := memorybackend.NewStore()
	pool := NewPool()
	reg := newTestRegistry(store)

	inst, err := NewBuilder(0).Pool(pool).Registry(reg).BackendParameters(memoryParams(store)).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if inst.Parameters().BackendName != "memory-backend" {
		t.Fatalf("unexpected backend name %q", inst.Parameters().BackendName)
	}
	keys, err := inst.AllKeys()
	if err != nil {
		t.Fatalf("AllKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected a fresh instance to start empty, got %v", keys)
	}
}

func TestBuilderReconcilesSameInstance(t *testing.T) {
	store := memorybackend.NewStore()
	pool := NewPool()
	reg := newTestRegistry(store)

	first, err := NewBuilder(1).Pool(pool).Registry(reg).BackendParameters(memoryParams(store)).Build(context.Background())
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if err := first.Set("k", kvsvalue.I32(7)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	second, err := NewBuilder(1).Pool(pool).Registry(reg).BackendParameters(memoryParams(store)).Build(context.Background())
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}

	v, err := second.Get("k")
	if err != nil {
		t.Fatalf("Get via second handle: %v", err)
	}
	n, err := v.Int32()
	if err != nil || n != 7 {
		t.Fatalf("expected shared state to carry the value set via the first handle, got %v err=%v", v, err)
	}
}

func TestBuilderMismatchedParametersFails(t *testing.T) {
	store := memorybackend.NewStore()
	pool := NewPool()
	reg := newTestRegistry(store)

	if _, err := NewBuilder(2).Pool(pool).Registry(reg).BackendParameters(memoryParams(store)).Build(context.Background()); err != nil {
		t.Fatalf("first Build: %v", err)
	}

	_, err := NewBuilder(2).Pool(pool).Registry(reg).BackendParameters(memoryParams(store)).DefaultsPolicy(PolicyRequired).Build(context.Background())
	if !kvserrors.Is(err, kvserrors.KindInstanceParametersMismatch) {
		t.Fatalf("expected KindInstanceParametersMismatch, got %v", err)
	}
}

func TestBuilderInvalidInstanceID(t *testing.T) {
	pool := NewPool()
	_, err := NewBuilder(-1).Pool(pool).Build(context.Background())
	if !kvserrors.Is(err, kvserrors.KindInvalidInstanceID) {
		t.Fatalf("expected KindInvalidInstanceID, got %v", err)
	}

	_, err = NewBuilder(MaxInstances).Pool(pool).Build(context.Background())
	if !kvserrors.Is(err, kvserrors.KindInvalidInstanceID) {
		t.Fatalf("expected KindInvalidInstanceID, got %v", err)
	}
}

func TestBuilderConcurrentBuildsOfSameInstanceReconcile(t *testing.T) {
	store := memorybackend.NewStore()
	pool := NewPool()
	reg := newTestRegistry(store)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = NewBuilder(3).Pool(pool).Registry(reg).BackendParameters(memoryParams(store)).Build(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: unexpected error building identical parameters concurrently: %v", i, err)
		}
	}
}

func TestBuilderDefaultsAndLoadPolicies(t *testing.T) {
	store := memorybackend.NewStore()
	store.SeedDefaults(4, kvsvalue.Map{"greeting": kvsvalue.Str("hi")})
	pool := NewPool()
	reg := newTestRegistry(store)

	inst, err := NewBuilder(4).Pool(pool).Registry(reg).BackendParameters(memoryParams(store)).
		DefaultsPolicy(PolicyRequired).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	v, err := inst.GetDefault("greeting")
	if err != nil {
		t.Fatalf("GetDefault: %v", err)
	}
	s, _ := v.Str()
	if s != "hi" {
		t.Fatalf("expected default greeting %q, got %q", "hi", s)
	}
}

func TestBuilderRequiredDefaultsPropagatesMissingError(t *testing.T) {
	store := memorybackend.NewStore()
	pool := NewPool()
	reg := newTestRegistry(store)

	_, err := NewBuilder(5).Pool(pool).Registry(reg).BackendParameters(memoryParams(store)).
		DefaultsPolicy(PolicyRequired).Build(context.Background())
	if !kvserrors.Is(err, kvserrors.KindFileNotFound) {
		t.Fatalf("expected KindFileNotFound when defaults are required but absent, got %v", err)
	}
}

func TestBuilderUnknownBackendName(t *testing.T) {
	pool := NewPool()
	reg := kvsbackend.NewRegistry()
	_, err := NewBuilder(6).Pool(pool).Registry(reg).
		BackendParameters(kvsvalue.Map{"name": kvsvalue.Str("does-not-exist")}).Build(context.Background())
	if !kvserrors.Is(err, kvserrors.KindUnknownBackend) {
		t.Fatalf("expected KindUnknownBackend, got %v", err)
	}
}
