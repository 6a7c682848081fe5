package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/delta/auction-house-server/lifecycle"
)

type Auction struct {
	Id              uint32                  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Title           string                  `gorm:"not null" json:"title"`
	StartsAt        time.Time               `gorm:"column:startsAt" json:"starts_at"`
	EndsAt          time.Time               `gorm:"column:endsAt" json:"ends_at"`
	Status          lifecycle.AuctionStatus `gorm:"not null" json:"status"`
	FlatPremiumRate decimal.Decimal         `gorm:"column:flatPremiumRate;type:decimal(6,4);not null" json:"flat_premium_rate"`
	CreatedAt       time.Time               `gorm:"column:createdAt" json:"created_at"`
	UpdatedAt       time.Time               `gorm:"column:updatedAt" json:"updated_at"`
}

func (Auction) TableName() string {
	return "Auctions"
}
