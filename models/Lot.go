package models

import (
	"time"

	"github.com/delta/auction-house-server/lifecycle"
)

type Lot struct {
	Id           uint32              `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	AuctionId    uint32              `gorm:"column:auctionId;not null;index" json:"auction_id"`
	LotNumber    uint32              `gorm:"column:lotNumber;not null" json:"lot_number"`
	Title        string              `gorm:"not null" json:"title"`
	EstimateLow  int64               `gorm:"column:estimateLow" json:"estimate_low"`
	EstimateHigh int64               `gorm:"column:estimateHigh" json:"estimate_high"`
	StartingBid  int64               `gorm:"column:startingBid;not null" json:"starting_bid"`
	ReservePrice int64               `gorm:"column:reservePrice" json:"-"`
	Status       lifecycle.LotStatus `gorm:"not null" json:"status"`
	// VisibilityOverride hides or shows a lot regardless of its status when set
	VisibilityOverride *bool     `gorm:"column:visibilityOverride" json:"visibility_override,omitempty"`
	HammerPrice        int64     `gorm:"column:hammerPrice" json:"hammer_price"`
	WinningBidId       uint32    `gorm:"column:winningBidId" json:"winning_bid_id"`
	CreatedAt          time.Time `gorm:"column:createdAt" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updatedAt" json:"updated_at"`
}

func (Lot) TableName() string {
	return "Lots"
}

// IsVisible reports whether viewers may see the lot in the catalogue
func (l *Lot) IsVisible() bool {
	if l.VisibilityOverride != nil {
		return *l.VisibilityOverride
	}
	switch l.Status {
	case lifecycle.LotDraft, lifecycle.LotCatalogued:
		return false
	}
	return true
}
