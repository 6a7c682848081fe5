package models

import (
	"github.com/shopspring/decimal"

	"github.com/delta/auction-house-server/premium"
)

// PremiumTier is one bracket of an auction's buyer's premium table.
// MaxAmount 0 means the bracket is unbounded.
type PremiumTier struct {
	Id        uint32          `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	AuctionId uint32          `gorm:"column:auctionId;not null;index" json:"auction_id"`
	MinAmount int64           `gorm:"column:minAmount;not null" json:"min_amount"`
	MaxAmount int64           `gorm:"column:maxAmount;not null" json:"max_amount"`
	Rate      decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"rate"`
}

func (PremiumTier) TableName() string {
	return "PremiumTiers"
}

func (pt *PremiumTier) ToTier() premium.Tier {
	return premium.Tier{Min: pt.MinAmount, Max: pt.MaxAmount, Rate: pt.Rate}
}

// ToTiers converts a stored table into calculator tiers
func ToTiers(rows []*PremiumTier) []premium.Tier {
	tiers := make([]premium.Tier, 0, len(rows))
	for _, r := range rows {
		tiers = append(tiers, r.ToTier())
	}
	return tiers
}
