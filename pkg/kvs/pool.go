package kvs

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/qorix-group/kvs/pkg/kvsbackend"
)

// poolEntry is everything the pool keeps for one built instance: the
// resolved parameters used to reconcile future builds, the backend it was
// built against, and the shared lock+data every handle for this id uses.
type poolEntry struct {
	parameters Parameters
	backend    kvsbackend.Backend
	lock       *stateLock
	data       *instanceData
}

// Pool is a fixed-capacity, process-wide table of KVS instances, the Go
// analogue of the source's KVS_POOL: LazyLock<Mutex<[Option<KvsInner>; 10]>>.
// Most applications use DefaultPool; constructing a private Pool is mainly
// useful for tests that need isolation between instance ids.
type Pool struct {
	mu    sync.Mutex
	slots [MaxInstances]*poolEntry
	// build coalesces concurrent first-builds of the same instance id, so
	// N goroutines racing to build a not-yet-resident instance perform the
	// backend construction and initial load exactly once between them.
	build singleflight.Group
}

// NewPool returns an empty pool with the fixed MaxInstances capacity.
func NewPool() *Pool {
	return &Pool{}
}

// DefaultPool is the process-wide pool every Builder targets unless told
// otherwise.
var DefaultPool = NewPool()
