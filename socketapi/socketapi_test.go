package socketapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta/auction-house-server/biddingengine"
	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/store"
	"github.com/delta/auction-house-server/utils"
)

type env struct {
	t       *testing.T
	ctx     context.Context
	store   store.Store
	engine  *biddingengine.Engine
	bus     *datastreams.EventBus
	handler *Handler
	server  *httptest.Server

	auction *models.Auction
	lot     *models.Lot
	bidder  uint32
}

func newEnv(t *testing.T) *env {
	e := &env{
		t:     t,
		ctx:   context.Background(),
		store: store.NewMemoryStore(utils.SystemClock),
		bus:   datastreams.NewEventBus(),
	}
	e.engine = biddingengine.NewEngine(biddingengine.Config{}, biddingengine.Deps{
		Store:     e.store,
		Publisher: e.bus,
	})
	e.handler = NewHandler(e.engine, e.bus, &utils.Config{Stage: "test"})
	e.server = httptest.NewServer(e.handler)
	t.Cleanup(func() {
		e.handler.Close()
		e.server.Close()
		e.bus.Close()
	})

	var err error
	e.auction, err = e.engine.CreateAuction(e.ctx, biddingengine.CreateAuctionRequest{Title: "Photographs"}, 1)
	require.NoError(t, err)
	for _, to := range []lifecycle.AuctionStatus{lifecycle.AuctionPreview, lifecycle.AuctionLive} {
		_, err := e.engine.TransitionAuction(e.ctx, e.auction.Id, to, 1)
		require.NoError(t, err)
	}

	e.lot, err = e.engine.CreateLot(e.ctx, biddingengine.CreateLotRequest{
		AuctionId: e.auction.Id, LotNumber: 7, Title: "Silver gelatin print", StartingBid: 2000,
	}, 1)
	require.NoError(t, err)
	for _, to := range []lifecycle.LotStatus{lifecycle.LotCatalogued, lifecycle.LotPublished, lifecycle.LotActive} {
		_, err := e.engine.TransitionLot(e.ctx, e.lot.Id, to, 1)
		require.NoError(t, err)
	}

	user := &models.User{Email: "viewer@example.com", Name: "Viewer", PasswordHash: "x"}
	require.NoError(t, e.store.CreateUser(e.ctx, user))
	_, err = e.engine.RegisterBidder(e.ctx, e.auction.Id, user.Id)
	require.NoError(t, err)
	_, err = e.engine.ApproveRegistration(e.ctx, e.auction.Id, user.Id, 1)
	require.NoError(t, err)
	e.bidder = user.Id

	return e
}

func (e *env) url() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http")
}

func (e *env) bid(amount int64) {
	_, err := e.engine.PlaceBid(e.ctx, biddingengine.PlaceBidRequest{LotId: e.lot.Id, BidderId: e.bidder, Amount: amount})
	require.NoError(e.t, err)
}

func readEvent(t *testing.T, conn *websocket.Conn) datastreams.Event {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev datastreams.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestViewerGetsSnapshotThenEvents(t *testing.T) {
	e := newEnv(t)
	e.bid(2000)

	conn, _, err := websocket.DefaultDialer.Dial(e.url()+"?auction="+itoa(e.auction.Id), nil)
	require.NoError(t, err)
	defer conn.Close()

	snap := readEvent(t, conn)
	assert.Equal(t, datastreams.Snapshot, snap.Type)
	require.Len(t, snap.Lots, 1)
	assert.Equal(t, int64(2000), snap.Lots[0].CurrentAmount)
	assert.Equal(t, int64(2500), snap.Lots[0].NextMinimumBid)

	require.Eventually(t, func() bool { return e.bus.Subscribers(e.auction.Id) == 1 }, time.Second, 10*time.Millisecond)
	e.bid(2500)

	ev := readEvent(t, conn)
	assert.Equal(t, datastreams.BidPlaced, ev.Type)
	assert.Equal(t, e.lot.Id, ev.LotId)
	require.NotNil(t, ev.Lot)
	assert.Equal(t, int64(2500), ev.Lot.CurrentAmount)
	assert.Equal(t, int64(3000), ev.Lot.NextMinimumBid)
}

func TestPingIsAnswered(t *testing.T) {
	e := newEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(e.url()+"?auction="+itoa(e.auction.Id), nil)
	require.NoError(t, err)
	defer conn.Close()
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, "pong", string(msg))
}

func TestUnknownAuctionIsRefused(t *testing.T) {
	e := newEnv(t)

	_, resp, err := websocket.DefaultDialer.Dial(e.url()+"?auction=99", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(e.url(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnsubscribesOnDisconnect(t *testing.T) {
	e := newEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(e.url()+"?auction="+itoa(e.auction.Id), nil)
	require.NoError(t, err)
	readEvent(t, conn)
	assert.Equal(t, 1, e.handler.Viewers())

	conn.Close()
	assert.Eventually(t, func() bool {
		return e.bus.Subscribers(e.auction.Id) == 0 && e.handler.Viewers() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherReconnectsAndResnapshots(t *testing.T) {
	e := newEnv(t)
	events := make(chan datastreams.Event, 16)

	w := NewWatcher(e.url(), e.auction.Id, func(ev datastreams.Event) { events <- ev })
	w.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(300 * time.Millisecond) }
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	nextSnapshot := func() datastreams.Event {
		for {
			select {
			case ev := <-events:
				if ev.Type == datastreams.Snapshot {
					return ev
				}
			case <-time.After(5 * time.Second):
				t.Fatal("no snapshot")
				return datastreams.Event{}
			}
		}
	}

	first := nextSnapshot()
	require.Len(t, first.Lots, 1)
	assert.Equal(t, int64(0), first.Lots[0].CurrentAmount)

	e.handler.Disconnect()
	e.bid(2000)

	second := nextSnapshot()
	require.Len(t, second.Lots, 1)
	assert.Equal(t, int64(2000), second.Lots[0].CurrentAmount, "a bid made while disconnected shows up in the new snapshot")

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherGivesUpOnUnknownAuction(t *testing.T) {
	e := newEnv(t)

	w := NewWatcher(e.url(), 404, nil)
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func itoa(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
