package models

import (
	"time"

	"github.com/delta/auction-house-server/lifecycle"
)

// BidView is a bid as viewers see it. The bidder is only identified by paddle.
type BidView struct {
	Id          uint32    `json:"id"`
	Amount      int64     `json:"amount"`
	Type        BidType   `json:"type"`
	Paddle      uint32    `json:"paddle"`
	IsWinning   bool      `json:"is_winning"`
	IsRetracted bool      `json:"is_retracted"`
	CreatedAt   time.Time `json:"created_at"`
}

func (b *Bid) ToView() *BidView {
	return &BidView{
		Id:          b.Id,
		Amount:      b.Amount,
		Type:        b.Type,
		Paddle:      b.Paddle,
		IsWinning:   b.IsWinning,
		IsRetracted: b.IsRetracted,
		CreatedAt:   b.CreatedAt,
	}
}

// LotState is the public, point-in-time state of a lot
type LotState struct {
	LotId          uint32              `json:"lot_id"`
	AuctionId      uint32              `json:"auction_id"`
	LotNumber      uint32              `json:"lot_number"`
	Status         lifecycle.LotStatus `json:"status"`
	CurrentAmount  int64               `json:"current_amount"`
	WinningBid     *BidView            `json:"winning_bid,omitempty"`
	NextMinimumBid int64               `json:"next_minimum_bid"`
	BidCount       int                 `json:"bid_count"`
	HammerPrice    int64               `json:"hammer_price,omitempty"`
}
