package models

import "time"

type BidRetraction struct {
	Id        uint32    `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	BidId     uint32    `gorm:"column:bidId;not null;unique" json:"bid_id"`
	LotId     uint32    `gorm:"column:lotId;not null" json:"lot_id"`
	Reason    string    `gorm:"not null" json:"reason"`
	AdminId   uint32    `gorm:"column:adminId;not null" json:"admin_id"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"created_at"`
}

func (BidRetraction) TableName() string {
	return "BidRetractions"
}
