package kvs

import (
	"context"
	"strconv"

	"k8s.io/klog/v2"

	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvserrors"
	"github.com/qorix-group/kvs/pkg/kvsmetrics"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// Builder collects optional overrides for an instance build, the Go
// analogue of the source's KvsBuilder. Unset options are resolved to
// library defaults on first build, or inherited from the already-built
// instance's parameters on subsequent builds of the same InstanceID.
type Builder struct {
	instanceID        kvsbackend.InstanceID
	pool              *Pool
	registry          *kvsbackend.Registry
	defaultsPolicy    *Policy
	kvsLoadPolicy     *Policy
	backendParameters *kvsvalue.Map
}

// NewBuilder returns a Builder for instanceID, targeting DefaultPool and
// kvsbackend.DefaultRegistry unless overridden.
func NewBuilder(instanceID kvsbackend.InstanceID) *Builder {
	return &Builder{instanceID: instanceID, pool: DefaultPool, registry: kvsbackend.DefaultRegistry}
}

// Pool overrides the pool this builder targets. Mainly useful for tests
// that need isolation between instance ids.
func (b *Builder) Pool(p *Pool) *Builder {
	b.pool = p
	return b
}

// Registry overrides the backend registry this builder resolves names
// against.
func (b *Builder) Registry(r *kvsbackend.Registry) *Builder {
	b.registry = r
	return b
}

// DefaultsPolicy sets how the defaults map is loaded. Defaults to
// PolicyOptional.
func (b *Builder) DefaultsPolicy(p Policy) *Builder {
	b.defaultsPolicy = &p
	return b
}

// KvsLoadPolicy sets how the live map is loaded from snapshot 0. Defaults
// to PolicyOptional.
func (b *Builder) KvsLoadPolicy(p Policy) *Builder {
	b.kvsLoadPolicy = &p
	return b
}

// BackendParameters sets the backend-parameters map, which must contain a
// "name" key the registry resolves a factory from. Defaults to the JSON
// backend in the current working directory with 3 retained snapshots.
func (b *Builder) BackendParameters(params kvsvalue.Map) *Builder {
	b.backendParameters = &params
	return b
}

// Build resolves this builder's options against the pool: if instanceID is
// already built, the handle is returned over the existing shared data
// after checking the merged parameters still match (KindInstanceParametersMismatch
// otherwise); if not, a new backend is constructed, defaults and the live
// snapshot are loaded per their policies, and the new entry is published
// in the pool.
func (b *Builder) Build(ctx context.Context) (*Instance, error) {
	const op = "kvs.Builder.Build"

	if b.instanceID < 0 || int(b.instanceID) >= MaxInstances {
		return nil, kvserrors.New(kvserrors.KindInvalidInstanceID, op, "instance id out of range")
	}

	b.pool.mu.Lock()
	existing := b.pool.slots[b.instanceID]
	b.pool.mu.Unlock()
	if existing != nil {
		return b.reconcile(existing)
	}

	resolved := b.resolveParameters()

	// singleflight coalesces every concurrent first-build of this instance
	// id into one backend construction and one initial load; every caller
	// (the one that actually ran it and every one that waited) reconciles
	// against the published entry afterwards exactly like the
	// already-built fast path above.
	result, err, _ := b.pool.build.Do(strconv.Itoa(int(b.instanceID)), func() (interface{}, error) {
		return b.buildAndPublish(ctx, resolved)
	})
	if err != nil {
		return nil, err
	}
	return b.reconcile(result.(*poolEntry))
}

// reconcile returns a handle over an already-published entry after
// checking this builder's explicitly-set options still agree with it.
func (b *Builder) reconcile(entry *poolEntry) (*Instance, error) {
	const op = "kvs.Builder.Build"
	merged := b.mergeParameters(entry.parameters)
	if !merged.Equal(entry.parameters) {
		return nil, kvserrors.New(kvserrors.KindInstanceParametersMismatch, op,
			"build options do not match the already-built instance's parameters")
	}
	return instanceFromEntry(entry), nil
}

// buildAndPublish constructs the backend, loads the defaults and live maps
// per their policies, and publishes a new poolEntry. Runs at most once per
// instance id at a time via the pool's singleflight group. The pool lock is
// not held during backend I/O; it is re-acquired and the slot re-checked
// before publishing, so an entry already published for this id is returned
// instead of being replaced.
func (b *Builder) buildAndPublish(ctx context.Context, resolved Parameters) (*poolEntry, error) {
	factory, err := b.registry.LookupFromParameters(resolved.BackendParameters)
	if err != nil {
		return nil, err
	}
	backend, err := factory.New(resolved.BackendParameters)
	if err != nil {
		return nil, err
	}

	defaultsMap, err := loadByPolicy(ctx, resolved.InstanceID, resolved.DefaultsPolicy, kvsmetrics.OpLoadDefaults,
		func() (kvsvalue.Map, error) { return backend.LoadDefaults(ctx, resolved.InstanceID) })
	if err != nil {
		return nil, err
	}

	liveMap, err := loadByPolicy(ctx, resolved.InstanceID, resolved.KvsLoadPolicy, kvsmetrics.OpLoadSnapshot,
		func() (kvsvalue.Map, error) { return backend.LoadSnapshot(ctx, resolved.InstanceID, 0) })
	if err != nil {
		return nil, err
	}

	entry := &poolEntry{
		parameters: resolved,
		backend:    backend,
		lock:       &stateLock{},
		data:       newInstanceData(liveMap, defaultsMap),
	}

	b.pool.mu.Lock()
	if existing := b.pool.slots[resolved.InstanceID]; existing != nil {
		b.pool.mu.Unlock()
		return existing, nil
	}
	b.pool.slots[resolved.InstanceID] = entry
	b.pool.mu.Unlock()
	klog.Infof("instance %d built against backend %q", resolved.InstanceID, resolved.BackendName)
	return entry, nil
}

func instanceFromEntry(e *poolEntry) *Instance {
	return &Instance{parameters: e.parameters, backend: e.backend, lock: e.lock, data: e.data}
}

// mergeParameters starts from an already-built instance's parameters and
// overlays whichever options this builder explicitly set, the Go rendering
// of the source's KvsBuilderParameters::create_parameters reconciliation.
func (b *Builder) mergeParameters(existing Parameters) Parameters {
	merged := existing
	if b.defaultsPolicy != nil {
		merged.DefaultsPolicy = *b.defaultsPolicy
	}
	if b.kvsLoadPolicy != nil {
		merged.KvsLoadPolicy = *b.kvsLoadPolicy
	}
	if b.backendParameters != nil {
		merged.BackendParameters = *b.backendParameters
		merged.BackendName, _ = backendNameFrom(*b.backendParameters)
	}
	return merged
}

// Preview resolves this builder's options against library defaults
// without touching the pool or any backend, letting a caller (e.g.
// pkg/kvsconfig validating a manifest) inspect what Build would use.
func (b *Builder) Preview() Parameters {
	return b.resolveParameters()
}

// resolveParameters fills every unset option with the library default:
// PolicyOptional for both policies, and the JSON backend in the current
// working directory with 3 retained snapshots.
func (b *Builder) resolveParameters() Parameters {
	defaultsPolicy := PolicyOptional
	if b.defaultsPolicy != nil {
		defaultsPolicy = *b.defaultsPolicy
	}
	kvsLoadPolicy := PolicyOptional
	if b.kvsLoadPolicy != nil {
		kvsLoadPolicy = *b.kvsLoadPolicy
	}
	backendParameters := kvsvalue.Map{"name": kvsvalue.Str("json")}
	if b.backendParameters != nil {
		backendParameters = *b.backendParameters
	}
	name, _ := backendNameFrom(backendParameters)

	return Parameters{
		InstanceID:        b.instanceID,
		DefaultsPolicy:    defaultsPolicy,
		KvsLoadPolicy:     kvsLoadPolicy,
		BackendName:       name,
		BackendParameters: backendParameters,
	}
}

func backendNameFrom(params kvsvalue.Map) (string, error) {
	v, ok := params["name"]
	if !ok {
		return "", kvserrors.New(kvserrors.KindKeyNotFound, "kvs.Builder", `backend parameters missing "name"`)
	}
	return v.Str()
}

// loadByPolicy runs loader according to policy: PolicyIgnored skips it
// entirely, PolicyOptional tolerates KindFileNotFound as an empty map, and
// PolicyRequired propagates any error.
func loadByPolicy(_ context.Context, instanceID kvsbackend.InstanceID, policy Policy, opName string, loader func() (kvsvalue.Map, error)) (kvsvalue.Map, error) {
	if policy == PolicyIgnored {
		return kvsvalue.Map{}, nil
	}

	timer := kvsmetrics.NewOperationTimer(instanceID, opName)
	m, err := loader()
	if err != nil {
		if policy == PolicyOptional && kvserrors.Is(err, kvserrors.KindFileNotFound) {
			timer.ObserveSuccess()
			klog.Warningf("instance %d: optional load of %s missing, using empty map", instanceID, opName)
			return kvsvalue.Map{}, nil
		}
		timer.ObserveError()
		return nil, err
	}
	timer.ObserveSuccess()
	return m, nil
}
