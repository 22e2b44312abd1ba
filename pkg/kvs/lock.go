package kvs

import (
	"sync"
	"sync/atomic"

	"github.com/qorix-group/kvs/pkg/kvserrors"
)

// stateLock is the idiomatic Go rendering of the source's poisoned-mutex
// semantics: Rust's std::sync::Mutex poisons itself when a thread panics
// while holding the lock, and the source surfaces that as
// ErrorCode::MutexLockFailed. Go's sync.Mutex has no equivalent, so this
// wraps one with an atomic "tainted" flag: if the critical section panics,
// a deferred check marks the lock tainted before the panic continues
// unwinding on its own (Go convention — this never recovers it) instead of
// silently leaving the guarded state as whatever the panic left it in.
type stateLock struct {
	mu      sync.Mutex
	tainted atomic.Bool
}

const lockOp = "kvs.lock"

// withLock runs fn with the lock held, failing fast with
// KindMutexLockFailed if a prior critical section panicked while holding
// this lock.
func (l *stateLock) withLock(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tainted.Load() {
		return kvserrors.New(kvserrors.KindMutexLockFailed, lockOp, "lock poisoned by a prior panic")
	}

	ok := false
	defer func() {
		if !ok {
			l.tainted.Store(true)
		}
	}()

	err := fn()
	ok = true
	return err
}
