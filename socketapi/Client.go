package socketapi

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/utils"
)

const (
	maxMessageSize = 512
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendQueueSize  = 32
)

// client is one connected viewer. Viewers only listen; anything they send
// other than "ping" is ignored.
type client struct {
	logger *logrus.Entry

	id        string
	auctionId uint32
	conn      *websocket.Conn
	send      chan interface{}

	pingPeriod time.Duration
	pongWait   time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, auctionId uint32, pingPeriod, pongWait time.Duration) *client {
	id := uuid.NewString()
	return &client{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module":    "socketapi.client",
			"clientId":  id,
			"auctionId": auctionId,
		}),
		id:         id,
		auctionId:  auctionId,
		conn:       conn,
		send:       make(chan interface{}, sendQueueSize),
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		done:       make(chan struct{}),
	}
}

func (c *client) Done() <-chan struct{} {
	return c.done
}

// push queues msg, giving up once the client is gone
func (c *client) push(msg interface{}) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

// close asks WritePump to say goodbye and hang up
func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) ReadPump() {
	var l = c.logger.WithFields(logrus.Fields{
		"method": "client.ReadPump",
	})

	defer func() {
		l.Debugf("Closing connection")
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		msgType, bytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.Errorf("Error in receiving from websocket: '%v'", err)
			}
			return
		}
		if msgType == websocket.TextMessage && string(bytes) == "ping" {
			c.push("pong")
		}
	}
}

func (c *client) WritePump() {
	var l = c.logger.WithFields(logrus.Fields{
		"method": "client.WritePump",
	})

	pingTicker := time.NewTicker(c.pingPeriod)

	defer func() {
		pingTicker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			var err error
			switch t := msg.(type) {
			case string:
				err = c.conn.WriteMessage(websocket.TextMessage, []byte(t))
			case datastreams.Event:
				err = c.conn.WriteJSON(t)
			default:
				l.Errorf("Message should be a string or an event. Given %T", t)
				return
			}
			if err != nil {
				l.Errorf("Error writing message. Stopping. '%v'", err)
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				l.Errorf("Error sending ping message. Stopping. '%v'", err)
				return
			}
		}
	}
}
