package datastreams

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, bus *EventBus, auctionId uint32) (*Subscription, func() []Event) {
	var (
		mu  sync.Mutex
		got []Event
	)
	sub, err := bus.Subscribe(auctionId, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)
	return sub, func() []Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), got...)
	}
}

func TestPublishReachesOnlyThatAuction(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	_, a1 := collect(t, bus, 1)
	_, a2 := collect(t, bus, 1)
	_, b := collect(t, bus, 2)

	bus.Publish(1, Event{Type: BidPlaced, LotId: 10})

	assert.Eventually(t, func() bool { return len(a1()) == 1 && len(a2()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint32(1), a1()[0].AuctionId)
	assert.Equal(t, uint32(10), a1()[0].LotId)
	assert.Empty(t, b())
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	_, got := collect(t, bus, 1)
	for i := uint32(1); i <= 20; i++ {
		bus.Publish(1, Event{Type: BidPlaced, LotId: i})
	}

	require.Eventually(t, func() bool { return len(got()) == 20 }, time.Second, 5*time.Millisecond)
	for i, ev := range got() {
		assert.Equal(t, uint32(i+1), ev.LotId)
	}
}

func TestLateSubscriberGetsNoReplay(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	bus.Publish(1, Event{Type: BidPlaced})
	_, got := collect(t, bus, 1)
	bus.Publish(1, Event{Type: LotStatus})

	require.Eventually(t, func() bool { return len(got()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, LotStatus, got()[0].Type)
}

func TestSlowSubscriberNeverBlocksPublish(t *testing.T) {
	bus := NewEventBusWithQueueSize(2)
	defer bus.Close()

	release := make(chan struct{})
	var handled int32
	_, err := bus.Subscribe(1, func(ev Event) {
		<-release
		atomic.AddInt32(&handled, 1)
	})
	require.NoError(t, err)
	_, fast := collect(t, bus, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(1, Event{Type: BidPlaced})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	close(release)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&handled) >= 1 }, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&handled), int32(3))
	assert.NotEmpty(t, fast())
}

func TestUnsubscribeRemovesEmptyGroups(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	sub1, got := collect(t, bus, 5)
	sub2, _ := collect(t, bus, 5)
	assert.Equal(t, 2, bus.Subscribers(5))

	bus.Unsubscribe(sub1)
	assert.Equal(t, 1, bus.Subscribers(5))
	bus.Publish(5, Event{Type: BidPlaced})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, got())

	bus.Unsubscribe(sub2)
	bus.Unsubscribe(sub2)
	assert.Equal(t, 0, bus.Subscribers(5))

	bus.groupsLock.RLock()
	_, exists := bus.groups[5]
	bus.groupsLock.RUnlock()
	assert.False(t, exists)
}

func TestCloseStopsSubscribers(t *testing.T) {
	bus := NewEventBus()
	collect(t, bus, 1)
	collect(t, bus, 2)

	bus.Close()
	assert.Equal(t, 0, bus.Subscribers(1))

	_, err := bus.Subscribe(1, func(Event) {})
	assert.Equal(t, ErrBusClosed, err)

	bus.Publish(1, Event{Type: BidPlaced})
}
