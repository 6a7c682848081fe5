package models

import "time"

// AbsenteeBid is a confidential ceiling up to which the house bids on the
// bidder's behalf. It must never be serialized to other bidders.
type AbsenteeBid struct {
	Id        uint32    `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	LotId     uint32    `gorm:"column:lotId;not null;index" json:"lot_id"`
	BidderId  uint32    `gorm:"column:bidderId;not null" json:"bidder_id"`
	MaxAmount int64     `gorm:"column:maxAmount;not null" json:"max_amount"`
	IsActive  bool      `gorm:"column:isActive;not null" json:"is_active"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updated_at"`
}

func (AbsenteeBid) TableName() string {
	return "AbsenteeBids"
}
