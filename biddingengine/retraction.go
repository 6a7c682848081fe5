package biddingengine

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/audit"
	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/store"
)

type RetractResult struct {
	Retraction *models.BidRetraction
	Bid        *models.Bid
	// NewWinningBid is nil when the retracted bid was not winning or no bid remains
	NewWinningBid *models.Bid
	Lot           *models.LotState
}

// RetractBid withdraws a bid on an admin's behalf. If it was winning, the
// highest remaining bid wins again. Absentee ceilings do not bid in response.
func (e *Engine) RetractBid(ctx context.Context, bidId uint32, reason string, adminId uint32) (*RetractResult, error) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":        "RetractBid",
		"param_bidId":   bidId,
		"param_adminId": adminId,
	})

	l.Debugf("Attempting")

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.ValidationError{Field: "reason", Reason: "is required"}
	}

	stored, err := e.store.GetBid(ctx, bidId)
	if err != nil {
		return nil, err
	}

	var (
		lg     *ledger
		res    = &RetractResult{}
		before models.Bid
	)

	err = e.inLot(ctx, stored.LotId, func(tx store.LotTx) error {
		var err error
		if lg, err = e.openLedger(tx); err != nil {
			return err
		}

		switch lg.lot.Status {
		case lifecycle.LotActive, lifecycle.LotPassed:
		default:
			return models.LotNotActiveError{LotId: lg.lot.Id, Status: lg.lot.Status}
		}

		existing, err := tx.Retraction(bidId)
		if err != nil {
			return err
		}
		var bid *models.Bid
		for _, b := range lg.bids {
			if b.Id == bidId {
				bid = b
			}
		}
		if bid == nil {
			return models.NotFoundError{Entity: "Bid", Id: bidId}
		}
		if existing != nil || bid.IsRetracted {
			return models.AlreadyRetractedError{BidId: bidId}
		}
		before = *bid

		res.Retraction = &models.BidRetraction{
			BidId:     bidId,
			LotId:     lg.lot.Id,
			Reason:    reason,
			AdminId:   adminId,
			CreatedAt: e.clock.Now(),
		}
		if err := tx.InsertRetraction(res.Retraction); err != nil {
			return err
		}

		wasWinning := bid.IsWinning
		bid.IsRetracted = true
		bid.IsWinning = false
		if err := tx.UpdateBid(bid); err != nil {
			return err
		}
		res.Bid = bid

		if !wasWinning {
			return nil
		}

		lg.winner = models.HighestStanding(lg.bids)
		lg.lot.WinningBidId = 0
		if lg.winner != nil {
			lg.winner.IsWinning = true
			if err := tx.UpdateBid(lg.winner); err != nil {
				return err
			}
			lg.lot.WinningBidId = lg.winner.Id
			res.NewWinningBid = lg.winner
		}
		lg.lotDirty = true
		return lg.flush()
	}, func() {
		e.publisher.Publish(lg.lot.AuctionId, datastreams.Event{
			Type:      datastreams.BidRetracted,
			AuctionId: lg.lot.AuctionId,
			LotId:     lg.lot.Id,
			Lot:       lg.state(),
			Bid:       res.Bid.ToView(),
			Time:      e.clock.Now(),
		})
	})

	if err != nil {
		l.Debugf("Rejected: %+v", err)
		return nil, err
	}

	e.audit(ctx, audit.Entry{
		Table:    models.Bid{}.TableName(),
		RecordId: bidId,
		Action:   "retract",
		OldState: before,
		NewState: res.Bid,
		Actor:    adminId,
	})

	res.Lot = lg.state()
	l.Infof("Retracted. Lot now at %d", res.Lot.CurrentAmount)
	return res, nil
}
