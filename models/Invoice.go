package models

import "time"

type Invoice struct {
	Id          uint32 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	LotId       uint32 `gorm:"column:lotId;not null;unique" json:"lot_id"`
	AuctionId   uint32 `gorm:"column:auctionId;not null" json:"auction_id"`
	BidderId    uint32 `gorm:"column:bidderId;not null" json:"bidder_id"`
	HammerPrice int64  `gorm:"column:hammerPrice;not null" json:"hammer_price"`
	Premium     int64  `gorm:"not null" json:"premium"`
	Total       int64  `gorm:"not null" json:"total"`
	// Breakdown is the JSON encoded per-tier premium contributions
	Breakdown string    `gorm:"type:text" json:"breakdown"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"created_at"`
}

func (Invoice) TableName() string {
	return "Invoices"
}
