package biddingengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta/auction-house-server/models"
)

func TestLotLocksForgetReleasedLots(t *testing.T) {
	ll := newLotLocks()
	ctx := context.Background()

	release, err := ll.acquire(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, ll.len())

	_, err = ll.acquire(ctx, 1, 10*time.Millisecond)
	var timeout models.LockTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, uint32(1), timeout.LotId)
	assert.Equal(t, 1, ll.len(), "a timed out waiter leaves the holder's entry alone")

	other, err := ll.acquire(ctx, 2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, ll.len())
	other()

	acquired := make(chan func())
	go func() {
		next, err := ll.acquire(ctx, 1, time.Second)
		if err == nil {
			acquired <- next
		}
		close(acquired)
	}()

	release()
	next, ok := <-acquired
	require.True(t, ok, "the waiter gets the lot once it is released")
	assert.Equal(t, 1, ll.len())
	next()

	assert.Equal(t, 0, ll.len())
}

func TestLotLocksCancelledContext(t *testing.T) {
	ll := newLotLocks()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ll.acquire(ctx, 1, time.Second)
	assert.ErrorAs(t, err, &models.LockTimeoutError{})
	assert.Equal(t, 0, ll.len())
}

func TestEngineReleasesLotLocks(t *testing.T) {
	f := newFixture(t)
	a, b := f.bidder(), f.bidder()

	f.setMax(a, 10000)
	f.mustBid(b, 1000)
	_, err := f.bid(b, 1)
	require.Error(t, err)

	assert.Equal(t, 0, f.engine.locks.len())
}
