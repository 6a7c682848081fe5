package biddingengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
)

func TestSellLot(t *testing.T) {
	f := newFixture(t)
	a, b := f.bidder(), f.bidder()
	f.mustBid(a, 1500)
	f.mustBid(b, 2000)
	f.reset()

	st, err := f.engine.TransitionLot(f.ctx, f.lot.Id, lifecycle.LotSold, admin)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.LotSold, st.Status)
	assert.Equal(t, int64(2000), st.HammerPrice)

	inv, err := f.store.GetInvoiceByLot(f.ctx, f.lot.Id)
	require.NoError(t, err)
	assert.Equal(t, b, inv.BidderId)
	assert.Equal(t, int64(500), inv.Premium)
	assert.Equal(t, int64(2500), inv.Total)

	won := f.notified(models.LotWonNotification)
	require.Len(t, won, 1)
	assert.Equal(t, b, won[0].userId)
	assert.Equal(t, int64(2500), won[0].payload["total"])

	events := f.published()
	require.Len(t, events, 1)
	assert.Equal(t, datastreams.LotStatus, events[0].Type)
	assert.Equal(t, lifecycle.LotSold, events[0].Lot.Status)

	_, err = f.bid(a, 2500)
	assert.Equal(t, models.LotNotActiveError{LotId: f.lot.Id, Status: lifecycle.LotSold}, err)

	_, err = f.engine.TransitionLot(f.ctx, f.lot.Id, lifecycle.LotActive, admin)
	assert.ErrorAs(t, err, &lifecycle.InvalidTransitionError{})

	lot, err := f.store.GetLot(f.ctx, f.lot.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), lot.HammerPrice)
}

func TestSellRequiresWinner(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.TransitionLot(f.ctx, f.lot.Id, lifecycle.LotSold, admin)
	assert.Equal(t, models.NoWinningBidError{LotId: f.lot.Id}, err)
	assert.Equal(t, lifecycle.LotActive, f.state().Status)
}

func TestSellRequiresReserve(t *testing.T) {
	f := newFixture(t)
	f.lot = f.newLot(2, 500, 3000)
	a := f.bidder()
	f.mustBid(a, 2000)

	_, err := f.engine.TransitionLot(f.ctx, f.lot.Id, lifecycle.LotSold, admin)
	assert.Equal(t, models.ReserveNotMetError{LotId: f.lot.Id, Highest: 2000}, err)
	assert.Equal(t, lifecycle.LotActive, f.state().Status)
	assert.Zero(t, f.state().HammerPrice)

	f.mustBid(a, 3000)
	st, err := f.engine.TransitionLot(f.ctx, f.lot.Id, lifecycle.LotSold, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), st.HammerPrice)
}

func TestReopenedLotLetsCeilingsAnswer(t *testing.T) {
	f := newFixture(t)
	f.lot = f.newLot(2, 500, 5000)
	a, b := f.bidder(), f.bidder()
	f.mustBid(a, 1000)

	_, err := f.engine.TransitionLot(f.ctx, f.lot.Id, lifecycle.LotPassed, admin)
	require.NoError(t, err)
	res := f.setMax(b, 8000)
	assert.Equal(t, int64(1000), res.Lot.CurrentAmount)
	f.reset()

	st, err := f.engine.TransitionLot(f.ctx, f.lot.Id, lifecycle.LotActive, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), st.CurrentAmount)
	assert.Equal(t, uint32(models.FirstPaddle+1), st.WinningBid.Paddle)

	events := f.published()
	require.Len(t, events, 2)
	assert.Equal(t, datastreams.LotStatus, events[0].Type)
	assert.Equal(t, datastreams.BidPlaced, events[1].Type)
}

func TestInvalidLotTransition(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.TransitionLot(f.ctx, f.lot.Id, lifecycle.LotDraft, admin)
	var invalid lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, f.published())
}

func TestTransitionAuction(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.TransitionAuction(f.ctx, f.auction.Id, lifecycle.AuctionPreview, admin)
	assert.ErrorAs(t, err, &lifecycle.InvalidTransitionError{})

	auction, err := f.engine.TransitionAuction(f.ctx, f.auction.Id, lifecycle.AuctionReconciliation, admin)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.AuctionReconciliation, auction.Status)

	events := f.published()
	require.Len(t, events, 1)
	assert.Equal(t, datastreams.AuctionStatus, events[0].Type)
	assert.Equal(t, lifecycle.AuctionReconciliation, events[0].AuctionStatus)

	f.mu.Lock()
	audits := f.audits
	f.mu.Unlock()
	require.Len(t, audits, 1)
	assert.Equal(t, "Auctions", audits[0].Table)

	_, err = f.engine.RegisterBidder(f.ctx, f.auction.Id, 1)
	assert.ErrorAs(t, err, &models.AuctionNotLiveError{})
}
