package biddingengine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/audit"
	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/notifications"
	"github.com/delta/auction-house-server/store"
)

// TransitionLot moves a lot through its lifecycle. Selling fixes the hammer
// price at the winning amount and bills the winner. Opening a lot in a live
// auction lets absentee ceilings bid at once.
func (e *Engine) TransitionLot(ctx context.Context, lotId uint32, to lifecycle.LotStatus, actor uint32) (*models.LotState, error) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":      "TransitionLot",
		"param_lotId": lotId,
		"param_to":    to,
		"param_actor": actor,
	})

	l.Debugf("Attempting")

	var (
		lg     *ledger
		from   lifecycle.LotStatus
		before models.Lot
	)

	err := e.inLot(ctx, lotId, func(tx store.LotTx) error {
		var err error
		if lg, err = e.openLedger(tx); err != nil {
			return err
		}
		from = lg.lot.Status
		before = *lg.lot

		if err := lifecycle.TransitionLot(from, to); err != nil {
			return err
		}

		if to == lifecycle.LotSold {
			if lg.winner == nil {
				return models.NoWinningBidError{LotId: lotId}
			}
			if lg.lot.ReservePrice > 0 && lg.winner.Amount < lg.lot.ReservePrice {
				return models.ReserveNotMetError{LotId: lotId, Highest: lg.winner.Amount}
			}
			lg.lot.HammerPrice = lg.winner.Amount
		}

		lg.lot.Status = to
		lg.lotDirty = true

		if lifecycle.CanBid(lg.lot.Status, lg.auction.Status) {
			if err := e.resolveProxies(lg); err != nil {
				return err
			}
		}
		return lg.flush()
	}, func() {
		e.publisher.Publish(lg.lot.AuctionId, datastreams.Event{
			Type:      datastreams.LotStatus,
			AuctionId: lg.lot.AuctionId,
			LotId:     lg.lot.Id,
			Lot:       lg.state(),
			Time:      e.clock.Now(),
		})
		e.publishBids(lg, nil)
	})

	if err != nil {
		l.Debugf("Rejected: %+v", err)
		return nil, err
	}

	e.audit(ctx, audit.Entry{
		Table:    models.Lot{}.TableName(),
		RecordId: lotId,
		Action:   "transition",
		OldState: before,
		NewState: lg.lot,
		Actor:    actor,
	})

	l.Infof("Lot moved from %s to %s", from, to)

	if to == lifecycle.LotSold {
		e.settle(ctx, lg.lot, lg.auction, lg.winner)
	}

	return lg.state(), nil
}

// settle bills the winner of a sold lot and tells them. Failures are logged;
// the sale itself stands.
func (e *Engine) settle(ctx context.Context, lot *models.Lot, auction *models.Auction, winner *models.Bid) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":      "settle",
		"param_lotId": lot.Id,
	})

	inv, err := e.invoices.Generate(ctx, lot, auction, winner)
	if err != nil {
		l.Errorf("Unable to generate invoice: %+v", err)
		return
	}

	l.Infof("Invoice %d created. Total %d", inv.Id, inv.Total)

	e.notifier.Notify(winner.BidderId, models.LotWonNotification, map[string]interface{}{
		notifications.KeyLotNumber:    lot.LotNumber,
		notifications.KeyAuctionTitle: auction.Title,
		notifications.KeyPaddle:       winner.Paddle,
		notifications.KeyHammerPrice:  inv.HammerPrice,
		notifications.KeyPremium:      inv.Premium,
		notifications.KeyTotal:        inv.Total,
	})
}

// TransitionAuction moves an auction through its lifecycle. When it goes
// live, absentee ceilings on lots already open start bidding.
func (e *Engine) TransitionAuction(ctx context.Context, auctionId uint32, to lifecycle.AuctionStatus, actor uint32) (*models.Auction, error) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":          "TransitionAuction",
		"param_auctionId": auctionId,
		"param_to":        to,
		"param_actor":     actor,
	})

	l.Debugf("Attempting")

	before, err := e.store.GetAuction(ctx, auctionId)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.TransitionAuction(before.Status, to); err != nil {
		return nil, err
	}

	after, err := e.store.UpdateAuctionStatus(ctx, auctionId, before.Status, to)
	if err != nil {
		l.Debugf("Rejected: %+v", err)
		return nil, err
	}

	e.audit(ctx, audit.Entry{
		Table:    models.Auction{}.TableName(),
		RecordId: auctionId,
		Action:   "transition",
		OldState: before,
		NewState: after,
		Actor:    actor,
	})

	e.publisher.Publish(auctionId, datastreams.Event{
		Type:          datastreams.AuctionStatus,
		AuctionId:     auctionId,
		AuctionStatus: to,
		Time:          e.clock.Now(),
	})

	l.Infof("Auction moved from %s to %s", before.Status, to)

	if to == lifecycle.AuctionLive {
		if err := e.openLots(ctx, auctionId); err != nil {
			l.Errorf("Unable to resolve absentee bids on open lots: %+v", err)
		}
	}

	return after, nil
}

// openLots lets ceilings bid on every active lot of an auction that just went live
func (e *Engine) openLots(ctx context.Context, auctionId uint32) error {
	lots, err := e.store.GetLotsByAuction(ctx, auctionId)
	if err != nil {
		return err
	}

	for _, lot := range lots {
		if lot.Status != lifecycle.LotActive {
			continue
		}

		var lg *ledger
		err := e.inLot(ctx, lot.Id, func(tx store.LotTx) error {
			var err error
			if lg, err = e.openLedger(tx); err != nil {
				return err
			}
			if !lifecycle.CanBid(lg.lot.Status, lg.auction.Status) {
				return nil
			}
			if err := e.resolveProxies(lg); err != nil {
				return err
			}
			return lg.flush()
		}, func() {
			e.publishBids(lg, nil)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
