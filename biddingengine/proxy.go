package biddingengine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/store"
	"github.com/delta/auction-house-server/utils"
)

type MaxBidResult struct {
	MaxBid *models.AbsenteeBid
	// Lot is the settled state after the ceiling was applied
	Lot *models.LotState
}

// SetMaxBid records a confidential ceiling for the bidder, replacing any
// earlier one. When the lot is open and another bidder is winning, the house
// bids on their behalf straight away.
func (e *Engine) SetMaxBid(ctx context.Context, lotId, bidderId uint32, maxAmount int64) (*MaxBidResult, error) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":         "SetMaxBid",
		"param_lotId":    lotId,
		"param_bidderId": bidderId,
	})

	l.Debugf("Attempting")

	if maxAmount <= 0 {
		return nil, models.ValidationError{Field: "max_amount", Reason: "must be positive"}
	}

	var (
		lg      *ledger
		ceiling *models.AbsenteeBid
	)

	err := e.inLot(ctx, lotId, func(tx store.LotTx) error {
		var err error
		if lg, err = e.openLedger(tx); err != nil {
			return err
		}

		switch lg.lot.Status {
		case lifecycle.LotSold, lifecycle.LotWithdrawn:
			return models.LotClosedError{LotId: lotId, Status: lg.lot.Status}
		}
		if _, err := approvedRegistration(tx, lg.auction.Id, bidderId); err != nil {
			return err
		}

		biddable := lifecycle.CanBid(lg.lot.Status, lg.auction.Status)
		if min := lg.minimumBid(); biddable && maxAmount < min {
			return models.BidTooLowError{Amount: maxAmount, Minimum: min}
		}

		ceilings, err := tx.AbsenteeBids()
		if err != nil {
			return err
		}
		ceiling = &models.AbsenteeBid{LotId: lotId, BidderId: bidderId}
		for _, c := range ceilings {
			if c.BidderId == bidderId {
				ceiling = c
				break
			}
		}
		ceiling.MaxAmount = maxAmount
		ceiling.IsActive = true
		if err := tx.SaveAbsenteeBid(ceiling); err != nil {
			return err
		}

		if biddable && lg.winner != nil && lg.winner.BidderId != bidderId {
			if err := e.resolveProxies(lg); err != nil {
				return err
			}
		}
		return lg.flush()
	}, func() {
		e.publishBids(lg, nil)
	})

	if err != nil {
		l.Debugf("Rejected: %+v", err)
		return nil, err
	}

	l.Infof("Ceiling set. %d proxy bids placed", len(lg.placed))

	return &MaxBidResult{
		MaxBid: ceiling,
		Lot:    lg.state(),
	}, nil
}

// CancelMaxBid deactivates the bidder's ceiling. Bids already placed from it stand.
func (e *Engine) CancelMaxBid(ctx context.Context, lotId, bidderId uint32) error {
	var l = e.logger.WithFields(logrus.Fields{
		"method":         "CancelMaxBid",
		"param_lotId":    lotId,
		"param_bidderId": bidderId,
	})

	err := e.inLot(ctx, lotId, func(tx store.LotTx) error {
		if lot := tx.Lot(); lot.Status == lifecycle.LotSold {
			return models.LotClosedError{LotId: lotId, Status: lot.Status}
		}

		ceilings, err := tx.AbsenteeBids()
		if err != nil {
			return err
		}
		for _, c := range ceilings {
			if c.BidderId == bidderId {
				c.IsActive = false
				return tx.SaveAbsenteeBid(c)
			}
		}
		return models.ErrNoMaxBid
	}, nil)

	if err != nil {
		l.Debugf("Rejected: %+v", err)
		return err
	}

	l.Infof("Cancelled")
	return nil
}

// GetMaxBid returns the bidder's own active ceiling
func (e *Engine) GetMaxBid(ctx context.Context, lotId, bidderId uint32) (*models.AbsenteeBid, error) {
	ab, err := e.store.GetAbsenteeBid(ctx, lotId, bidderId)
	if models.IsNotFound(err) || (err == nil && !ab.IsActive) {
		return nil, models.ErrNoMaxBid
	}
	return ab, err
}

// resolveProxies answers the winning bid on behalf of ceilings until no
// ceiling can beat the current winner. Ceilings never open a lot. Every round
// leaves at least one ceiling unable to bid again, so it ends within
// len(ceilings)+1 rounds. The winner ends up one increment above the second
// highest ceiling that could still bid, never above their own.
func (e *Engine) resolveProxies(lg *ledger) error {
	if lg.winner == nil {
		return nil
	}

	all, err := lg.tx.AbsenteeBids()
	if err != nil {
		return err
	}

	var (
		ceilings []*models.AbsenteeBid
		paddles  = make(map[uint32]uint32)
	)
	for _, c := range all {
		reg, err := lg.tx.Registration(c.BidderId)
		if models.IsNotFound(err) || (err == nil && !reg.IsApproved) {
			continue
		}
		if err != nil {
			return err
		}
		paddles[c.BidderId] = reg.Paddle
		ceilings = append(ceilings, c)
	}
	if len(ceilings) == 0 {
		return nil
	}

	ceilingOf := func(bidderId uint32) *models.AbsenteeBid {
		for _, c := range ceilings {
			if c.BidderId == bidderId {
				return c
			}
		}
		return nil
	}

	proxyBid := func(bidderId uint32, amount int64) error {
		return lg.place(&models.Bid{
			BidderId: bidderId,
			Amount:   amount,
			Type:     models.System,
			Paddle:   paddles[bidderId],
		})
	}

	for round := 0; round <= len(ceilings); round++ {
		var challenger *models.AbsenteeBid
		for _, c := range ceilings {
			if c.BidderId == lg.winner.BidderId {
				continue
			}
			if challenger == nil || c.MaxAmount > challenger.MaxAmount {
				challenger = c
			}
		}
		if challenger == nil {
			return nil
		}

		min := lg.minimumBid()
		if challenger.MaxAmount < min {
			return nil
		}

		winnerMax := lg.winner.Amount
		if own := ceilingOf(lg.winner.BidderId); own != nil && own.MaxAmount > winnerMax {
			winnerMax = own.MaxAmount
		}

		if challenger.MaxAmount > winnerMax {
			// the challenger has to clear every ceiling still able to bid, not just the winner's
			opponentMax := winnerMax
			for _, c := range ceilings {
				if c == challenger || c.BidderId == lg.winner.BidderId || c.MaxAmount < min {
					continue
				}
				opponentMax = utils.MaxInt64(opponentMax, c.MaxAmount)
			}
			amount := utils.MinInt64(challenger.MaxAmount, e.schedule.NextMinimumBid(opponentMax))
			if err := proxyBid(challenger.BidderId, amount); err != nil {
				return err
			}
			continue
		}

		amount := utils.MinInt64(winnerMax, e.schedule.NextMinimumBid(challenger.MaxAmount))
		if err := proxyBid(lg.winner.BidderId, amount); err != nil {
			return err
		}
	}
	return nil
}
