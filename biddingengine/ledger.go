package biddingengine

import (
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/store"
)

// ledger is the working copy of one lot's bids inside a lot transaction.
// Every bid placed in one resolution step goes through it, so the winning
// flag moves exactly once per bid and the lot row is written once.
type ledger struct {
	e       *Engine
	tx      store.LotTx
	lot     *models.Lot
	auction *models.Auction
	bids    []*models.Bid
	winner  *models.Bid

	// placed holds the bids inserted during this step, in order
	placed []*models.Bid
	// outbid holds bidders who lost the lead during this step and did not get it back
	outbid   map[uint32]bool
	lotDirty bool
}

func (e *Engine) openLedger(tx store.LotTx) (*ledger, error) {
	bids, err := tx.Bids()
	if err != nil {
		return nil, err
	}

	lg := &ledger{
		e:       e,
		tx:      tx,
		lot:     tx.Lot(),
		auction: tx.Auction(),
		bids:    bids,
		outbid:  make(map[uint32]bool),
	}
	for _, b := range bids {
		if b.IsWinning && !b.IsRetracted {
			lg.winner = b
		}
	}
	return lg, nil
}

func (lg *ledger) currentAmount() int64 {
	if lg.winner == nil {
		return 0
	}
	return lg.winner.Amount
}

func (lg *ledger) minimumBid() int64 {
	return lg.e.minimumBid(lg.lot, lg.winner)
}

// place records bid as the new winner and demotes the previous one
func (lg *ledger) place(bid *models.Bid) error {
	if min := lg.minimumBid(); bid.Amount < min {
		return models.BidTooLowError{Amount: bid.Amount, Minimum: min}
	}

	prev := lg.winner
	bid.LotId = lg.lot.Id
	bid.IsWinning = true
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = lg.e.clock.Now()
	}
	if err := lg.tx.InsertBid(bid); err != nil {
		return err
	}

	if prev != nil {
		prev.IsWinning = false
		if err := lg.tx.UpdateBid(prev); err != nil {
			return err
		}
		if prev.BidderId != bid.BidderId {
			lg.outbid[prev.BidderId] = true
		}
	}
	delete(lg.outbid, bid.BidderId)

	lg.winner = bid
	lg.bids = append(lg.bids, bid)
	lg.placed = append(lg.placed, bid)
	lg.lot.WinningBidId = bid.Id
	lg.lotDirty = true
	return nil
}

// flush writes the lot row if anything on it changed
func (lg *ledger) flush() error {
	if !lg.lotDirty {
		return nil
	}
	if err := lg.tx.UpdateLot(lg.lot); err != nil {
		return err
	}
	lg.lotDirty = false
	return nil
}

func (lg *ledger) state() *models.LotState {
	return lg.e.lotState(lg.lot, lg.bids)
}
