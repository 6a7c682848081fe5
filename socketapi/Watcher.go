package socketapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/utils"
)

const (
	reconnectInitialInterval = 250 * time.Millisecond
	reconnectMaxInterval     = 10 * time.Second
)

// Watcher follows one auction from the viewer's side. It keeps a connection
// open, reconnecting with exponential backoff whenever the server goes away,
// and hands every event to OnEvent. A snapshot event starts each connection.
type Watcher struct {
	logger *logrus.Entry

	Id        string
	URL       string
	AuctionId uint32
	OnEvent   func(datastreams.Event)

	// PongWait is how long the server may stay silent, pings included,
	// before the connection is considered dead
	PongWait time.Duration
	Dialer   *websocket.Dialer

	newBackOff func() backoff.BackOff
}

// NewWatcher creates a Watcher for the websocket endpoint at rawURL
func NewWatcher(rawURL string, auctionId uint32, onEvent func(datastreams.Event)) *Watcher {
	id := uuid.NewString()
	return &Watcher{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module":    "socketapi.Watcher",
			"watcherId": id,
			"auctionId": auctionId,
		}),
		Id:        id,
		URL:       rawURL,
		AuctionId: auctionId,
		OnEvent:   onEvent,
		PongWait:  pongWait,
		Dialer:    websocket.DefaultDialer,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = reconnectInitialInterval
			b.MaxInterval = reconnectMaxInterval
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Run watches until ctx is done or the server rejects the auction outright
func (w *Watcher) Run(ctx context.Context) error {
	var l = w.logger.WithFields(logrus.Fields{
		"method": "Run",
	})

	target, err := w.target()
	if err != nil {
		return err
	}

	// paces reconnects to a server that accepts and then drops us at once
	pace := w.newBackOff()
	for {
		conn, err := w.connect(ctx, target)
		if err != nil {
			return err
		}

		delivered, err := w.read(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered > 0 {
			pace.Reset()
		}

		wait := pace.NextBackOff()
		l.Warnf("Connection lost: '%v'. Reconnecting in %s", err, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) target() (string, error) {
	u, err := url.Parse(w.URL)
	if err != nil {
		return "", fmt.Errorf("parse watcher url: %w", err)
	}
	q := u.Query()
	q.Set("auction", strconv.FormatUint(uint64(w.AuctionId), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (w *Watcher) connect(ctx context.Context, target string) (*websocket.Conn, error) {
	var l = w.logger.WithFields(logrus.Fields{
		"method":       "connect",
		"param_target": target,
	})

	var conn *websocket.Conn
	dial := func() error {
		c, resp, err := w.Dialer.DialContext(ctx, target, http.Header{"X-Client-Id": {w.Id}})
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(fmt.Errorf("server refused watcher with %s", resp.Status))
			}
			return err
		}
		conn = c
		return nil
	}

	notify := func(err error, wait time.Duration) {
		l.Debugf("Dial failed: '%v'. Retrying in %s", err, wait)
	}

	if err := backoff.RetryNotify(dial, backoff.WithContext(w.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	l.Debugf("Connected")
	return conn, nil
}

// read delivers events until the connection dies and reports how many it saw
func (w *Watcher) read(ctx context.Context, conn *websocket.Conn) (int, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	conn.SetReadDeadline(time.Now().Add(w.PongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(w.PongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for delivered := 0; ; delivered++ {
		var ev datastreams.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return delivered, err
		}
		conn.SetReadDeadline(time.Now().Add(w.PongWait))
		if w.OnEvent != nil {
			w.OnEvent(ev)
		}
	}
}
