// Package socketapi streams auction events to live viewers over websockets
package socketapi

import (
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/biddingengine"
	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/utils"
)

// Handler upgrades viewers of an auction to a websocket. The first message a
// viewer receives is a snapshot of every visible lot, followed by the
// auction's events as they are published.
type Handler struct {
	logger *logrus.Entry

	engine   *biddingengine.Engine
	bus      *datastreams.EventBus
	upgrader websocket.Upgrader
	clock    utils.Clock

	pingPeriod time.Duration
	pongWait   time.Duration

	clientsLock sync.Mutex
	clients     map[string]*client
	closed      bool
}

// NewHandler creates a Handler. Cross-origin upgrades are accepted in every
// stage except prod.
func NewHandler(engine *biddingengine.Engine, bus *datastreams.EventBus, config *utils.Config) *Handler {
	h := &Handler{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "socketapi.Handler",
		}),
		engine:     engine,
		bus:        bus,
		clock:      utils.SystemClock,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		clients:    make(map[string]*client),
	}
	if config != nil && config.HeartbeatSeconds > 0 {
		h.pingPeriod = time.Duration(config.HeartbeatSeconds) * time.Second
		h.pongWait = h.pingPeriod * 10 / 9
	}

	prod := config != nil && config.Stage == "prod"
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if !prod {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var l = h.logger.WithFields(logrus.Fields{
		"method":     "ServeHTTP",
		"param_addr": r.RemoteAddr,
	})

	auctionId, err := strconv.ParseUint(r.URL.Query().Get("auction"), 10, 32)
	if err != nil || auctionId == 0 {
		http.Error(w, "auction query parameter is required", http.StatusBadRequest)
		return
	}

	// fail before upgrading so the dialer sees a plain 404
	if _, err := h.engine.Auction(r.Context(), uint32(auctionId)); err != nil {
		if models.IsNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		l.Errorf("Unable to load auction: %+v", err)
		http.Error(w, "Internal error occurred", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Errorf("Could not upgrade connection: '%s'", err)
		return
	}
	l.Debugf("Upgraded to websocket protocol")

	c := newClient(conn, uint32(auctionId), h.pingPeriod, h.pongWait)
	if !h.track(c) {
		conn.Close()
		return
	}
	defer h.untrack(c)

	ready := make(chan struct{})
	sub, err := h.bus.Subscribe(uint32(auctionId), func(ev datastreams.Event) {
		select {
		case <-ready:
		case <-c.Done():
			return
		}
		c.push(ev)
	})
	if err != nil {
		l.Errorf("Unable to subscribe: %+v", err)
		conn.Close()
		return
	}
	defer h.bus.Unsubscribe(sub)

	// subscribed before reading, so nothing between snapshot and stream is lost;
	// events carry full lot state and repeating one is harmless
	lots, err := h.engine.AuctionSnapshot(r.Context(), uint32(auctionId))
	if err != nil {
		l.Errorf("Unable to take snapshot: %+v", err)
		conn.Close()
		return
	}
	c.push(datastreams.Event{
		Type:      datastreams.Snapshot,
		AuctionId: uint32(auctionId),
		Lots:      lots,
		Time:      h.clock.Now(),
	})
	close(ready)

	l.Infof("Viewer %s watching auction %d", c.id, auctionId)
	go c.WritePump()
	c.ReadPump()
}

func (h *Handler) track(c *client) bool {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Handler) untrack(c *client) {
	h.clientsLock.Lock()
	delete(h.clients, c.id)
	h.clientsLock.Unlock()
}

// Viewers returns the number of connected viewers
func (h *Handler) Viewers() int {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()
	return len(h.clients)
}

// Disconnect drops every connected viewer without refusing new ones
func (h *Handler) Disconnect() {
	h.clientsLock.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsLock.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// Close disconnects every viewer and refuses new ones
func (h *Handler) Close() {
	h.clientsLock.Lock()
	h.closed = true
	h.clientsLock.Unlock()
	h.Disconnect()
}
