package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/utils"
)

const deliveryTimeout = 15 * time.Second

type job struct {
	userId  uint32
	t       models.NotificationType
	payload map[string]interface{}
}

// Dispatcher is a Notifier backed by a pool of worker goroutines. Notify only
// queues; a full queue drops the notification.
type Dispatcher struct {
	logger   *logrus.Entry
	users    UserLookup
	channels []Channel
	workers  int

	queue     chan job
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{}
}

// NewDispatcher creates a Dispatcher. Call Start before the first Notify.
func NewDispatcher(users UserLookup, workers, queueSize int, channels ...Channel) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "notifications.Dispatcher",
		}),
		users:    users,
		channels: channels,
		workers:  workers,
		queue:    make(chan job, queueSize),
		stopped:  make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.work()
		}
		d.logger.Infof("Started %d workers", d.workers)
	})
}

// Stop delivers what is already queued and waits for the workers to exit
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopped)
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) Notify(userId uint32, t models.NotificationType, payload map[string]interface{}) {
	l := d.logger.WithFields(logrus.Fields{
		"method":       "Notify",
		"param_userId": userId,
		"param_type":   t,
	})

	select {
	case <-d.stopped:
		l.Warnf("Dispatcher stopped. Dropping notification")
		return
	default:
	}

	defer func() {
		// the queue may be closed by a concurrent Stop
		if r := recover(); r != nil {
			l.Warnf("Dispatcher stopped. Dropping notification")
		}
	}()

	select {
	case d.queue <- job{userId, t, payload}:
		l.Debugf("Queued")
	default:
		l.Errorf("Queue full. Dropping notification")
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	l := d.logger.WithFields(logrus.Fields{
		"method":       "deliver",
		"param_userId": j.userId,
		"param_type":   j.t,
	})

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	user, err := d.users.GetUser(ctx, j.userId)
	if err != nil {
		l.Errorf("Unable to load recipient: %+v", err)
		return
	}

	msg, err := Render(j.t, j.payload)
	if err != nil {
		l.Errorf("Unable to render: %+v", err)
		return
	}

	for _, ch := range d.channels {
		if err := ch.Deliver(ctx, user, msg); err != nil {
			l.Errorf("Delivery over %s failed: %+v", ch.Name(), err)
			continue
		}
		l.Debugf("Delivered over %s", ch.Name())
	}
}
