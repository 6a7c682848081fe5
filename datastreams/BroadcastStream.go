package datastreams

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/utils"
)

// listener is a single subscriber. Events wait in queue until the
// subscriber's goroutine hands them to handler.
type listener struct {
	id      string
	queue   chan Event
	done    chan struct{}
	handler func(Event)
	once    sync.Once
}

func newListener(id string, queueSize int, handler func(Event)) *listener {
	return &listener{
		id:      id,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
		handler: handler,
	}
}

func (lis *listener) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-lis.done:
			return
		case ev := <-lis.queue:
			lis.handler(ev)
		}
	}
}

func (lis *listener) stop() {
	lis.once.Do(func() { close(lis.done) })
}

// broadcastStream is one auction's group of listeners
type broadcastStream struct {
	logger *logrus.Entry

	sync.RWMutex
	listeners map[string]*listener
}

func newBroadcastStream(auctionId uint32) *broadcastStream {
	return &broadcastStream{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module":    "datastreams.BroadcastStream",
			"auctionId": auctionId,
		}),
		listeners: make(map[string]*listener),
	}
}

func (bs *broadcastStream) addListener(lis *listener) {
	bs.Lock()
	bs.listeners[lis.id] = lis
	bs.Unlock()
}

func (bs *broadcastStream) removeListener(id string) *listener {
	bs.Lock()
	defer bs.Unlock()
	lis, ok := bs.listeners[id]
	if !ok {
		return nil
	}
	delete(bs.listeners, id)
	return lis
}

// broadcast queues ev for every listener without blocking. A listener whose
// queue is full misses the event.
func (bs *broadcastStream) broadcast(ev Event) (delivered, dropped int) {
	l := bs.logger.WithFields(logrus.Fields{
		"method": "broadcast",
		"type":   ev.Type,
	})

	bs.RLock()
	defer bs.RUnlock()

	for id, lis := range bs.listeners {
		select {
		case <-lis.done:
		case lis.queue <- ev:
			delivered++
		default:
			dropped++
			l.Warnf("Queue of listener %s is full. Dropping event", id)
		}
	}

	l.Debugf("Queued for %d listeners, dropped for %d", delivered, dropped)
	return delivered, dropped
}

func (bs *broadcastStream) count() int {
	bs.RLock()
	defer bs.RUnlock()
	return len(bs.listeners)
}

func (bs *broadcastStream) drain() []*listener {
	bs.Lock()
	defer bs.Unlock()
	all := make([]*listener, 0, len(bs.listeners))
	for id, lis := range bs.listeners {
		all = append(all, lis)
		delete(bs.listeners, id)
	}
	return all
}
