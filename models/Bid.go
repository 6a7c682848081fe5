package models

import (
	"sort"
	"time"
)

type Bid struct {
	Id          uint32    `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	LotId       uint32    `gorm:"column:lotId;not null;index" json:"lot_id"`
	BidderId    uint32    `gorm:"column:bidderId;not null" json:"bidder_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Type        BidType   `gorm:"not null" json:"type"`
	Paddle      uint32    `gorm:"not null" json:"paddle"`
	IsWinning   bool      `gorm:"column:isWinning;not null" json:"is_winning"`
	IsRetracted bool      `gorm:"column:isRetracted;not null" json:"is_retracted"`
	CreatedAt   time.Time `gorm:"column:createdAt" json:"created_at"`
}

func (Bid) TableName() string {
	return "Bids"
}

// Outranks reports whether b beats other when choosing a winner among
// non-retracted bids: higher amount, then earlier creation, then lower id.
func (b *Bid) Outranks(other *Bid) bool {
	if b.Amount != other.Amount {
		return b.Amount > other.Amount
	}
	if !b.CreatedAt.Equal(other.CreatedAt) {
		return b.CreatedAt.Before(other.CreatedAt)
	}
	return b.Id < other.Id
}

// HighestStanding returns the best non-retracted bid, or nil when none remain
func HighestStanding(bids []*Bid) *Bid {
	var best *Bid
	for _, b := range bids {
		if b.IsRetracted {
			continue
		}
		if best == nil || b.Outranks(best) {
			best = b
		}
	}
	return best
}

// SortByCreation orders bids by creation time, oldest first
func SortByCreation(bids []*Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.Before(bids[j].CreatedAt)
		}
		return bids[i].Id < bids[j].Id
	})
}
