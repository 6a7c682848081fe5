package datastreams

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/utils"
)

// DefaultQueueSize is how many undelivered events a subscriber may have
// before further events are dropped for it
const DefaultQueueSize = 64

var ErrBusClosed = errors.New("Event bus is closed")

// Subscription identifies one subscriber of one auction
type Subscription struct {
	Id        string
	AuctionId uint32
}

// EventBus is an in-process publish/subscribe hub with one group per auction.
// Delivery is best effort and at most once; there is no replay.
type EventBus struct {
	logger    *logrus.Entry
	queueSize int

	groupsLock sync.RWMutex
	groups     map[uint32]*broadcastStream
	closed     bool

	wg sync.WaitGroup
}

// NewEventBus creates an EventBus with DefaultQueueSize subscriber queues
func NewEventBus() *EventBus {
	return NewEventBusWithQueueSize(DefaultQueueSize)
}

func NewEventBusWithQueueSize(queueSize int) *EventBus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &EventBus{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "datastreams.EventBus",
		}),
		queueSize: queueSize,
		groups:    make(map[uint32]*broadcastStream),
	}
}

// Subscribe registers handler for every event later published to auctionId.
// handler runs on the subscription's own goroutine, one event at a time.
func (eb *EventBus) Subscribe(auctionId uint32, handler func(Event)) (*Subscription, error) {
	l := eb.logger.WithFields(logrus.Fields{
		"method":          "Subscribe",
		"param_auctionId": auctionId,
	})

	lis := newListener(uuid.NewString(), eb.queueSize, handler)

	eb.groupsLock.Lock()
	if eb.closed {
		eb.groupsLock.Unlock()
		return nil, ErrBusClosed
	}
	group, exists := eb.groups[auctionId]
	if !exists {
		l.Debugf("Group not found. Creating")
		group = newBroadcastStream(auctionId)
		eb.groups[auctionId] = group
	}
	group.addListener(lis)
	eb.wg.Add(1)
	eb.groupsLock.Unlock()

	go lis.run(&eb.wg)

	l.Debugf("Added listener %s", lis.id)
	return &Subscription{Id: lis.id, AuctionId: auctionId}, nil
}

// Unsubscribe stops delivery to sub. Removes the auction's group once empty.
func (eb *EventBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	l := eb.logger.WithFields(logrus.Fields{
		"method":          "Unsubscribe",
		"param_auctionId": sub.AuctionId,
		"param_id":        sub.Id,
	})

	eb.groupsLock.Lock()
	defer eb.groupsLock.Unlock()

	group, exists := eb.groups[sub.AuctionId]
	if !exists {
		l.Debugf("Group not found")
		return
	}

	if lis := group.removeListener(sub.Id); lis != nil {
		lis.stop()
	}

	if group.count() == 0 {
		l.Debugf("Removing group because of zero listeners")
		delete(eb.groups, sub.AuctionId)
	}
}

// Publish queues ev for every current subscriber of auctionId. It never
// blocks on a subscriber.
func (eb *EventBus) Publish(auctionId uint32, ev Event) {
	if ev.AuctionId == 0 {
		ev.AuctionId = auctionId
	}

	eb.groupsLock.RLock()
	group, exists := eb.groups[auctionId]
	eb.groupsLock.RUnlock()

	if !exists {
		return
	}
	group.broadcast(ev)
}

// Subscribers returns the number of subscribers of auctionId
func (eb *EventBus) Subscribers(auctionId uint32) int {
	eb.groupsLock.RLock()
	group, exists := eb.groups[auctionId]
	eb.groupsLock.RUnlock()
	if !exists {
		return 0
	}
	return group.count()
}

// Close stops every subscription and waits for their goroutines to return.
// Later Subscribe calls fail with ErrBusClosed.
func (eb *EventBus) Close() {
	eb.groupsLock.Lock()
	eb.closed = true
	groups := eb.groups
	eb.groups = make(map[uint32]*broadcastStream)
	eb.groupsLock.Unlock()

	for _, group := range groups {
		for _, lis := range group.drain() {
			lis.stop()
		}
	}
	eb.wg.Wait()

	eb.logger.Info("Closed")
}
