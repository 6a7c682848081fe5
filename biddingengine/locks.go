package biddingengine

import (
	"context"
	"sync"
	"time"

	"github.com/delta/auction-house-server/models"
)

// lotLock is a one slot semaphore, so waiting for it can be bounded by a
// timeout and a context, which a sync.Mutex cannot do. refs counts the holder
// and the waiters; the entry is dropped when the last of them leaves.
type lotLock struct {
	sem  chan struct{}
	refs int
}

// lotLocks hands out exclusive access to lots. Different lots never contend.
type lotLocks struct {
	sync.Mutex
	m map[uint32]*lotLock
}

func newLotLocks() *lotLocks {
	return &lotLocks{m: make(map[uint32]*lotLock)}
}

func (ll *lotLocks) ref(lotId uint32) *lotLock {
	ll.Lock()
	defer ll.Unlock()
	lk, ok := ll.m[lotId]
	if !ok {
		lk = &lotLock{sem: make(chan struct{}, 1)}
		ll.m[lotId] = lk
	}
	lk.refs++
	return lk
}

func (ll *lotLocks) unref(lotId uint32, lk *lotLock) {
	ll.Lock()
	defer ll.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(ll.m, lotId)
	}
}

// len returns the number of lots currently held or waited for
func (ll *lotLocks) len() int {
	ll.Lock()
	defer ll.Unlock()
	return len(ll.m)
}

// acquire waits at most timeout for the lot. The returned func releases it
// and must be called exactly once.
func (ll *lotLocks) acquire(ctx context.Context, lotId uint32, timeout time.Duration) (func(), error) {
	start := time.Now()
	if ctx.Err() != nil {
		return nil, models.LockTimeoutError{LotId: lotId}
	}

	lk := ll.ref(lotId)
	release := func() {
		<-lk.sem
		ll.unref(lotId, lk)
	}

	select {
	case lk.sem <- struct{}{}:
		return release, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case lk.sem <- struct{}{}:
		return release, nil
	case <-timer.C:
	case <-ctx.Done():
	}
	ll.unref(lotId, lk)
	return nil, models.LockTimeoutError{LotId: lotId, Waited: time.Since(start)}
}
