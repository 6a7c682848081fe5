package models

import "time"

// FirstPaddle is the paddle number given to the first approved bidder of an auction
const FirstPaddle = 100

// Registration is a bidder's request to take part in an auction. Paddle is
// assigned on approval and is unique within the auction.
type Registration struct {
	Id         uint32    `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	AuctionId  uint32    `gorm:"column:auctionId;not null;index" json:"auction_id"`
	BidderId   uint32    `gorm:"column:bidderId;not null" json:"bidder_id"`
	Paddle     uint32    `gorm:"not null" json:"paddle"`
	IsApproved bool      `gorm:"column:isApproved;not null" json:"is_approved"`
	CreatedAt  time.Time `gorm:"column:createdAt" json:"created_at"`
}

func (Registration) TableName() string {
	return "Registrations"
}
