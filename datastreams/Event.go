// Package datastreams fans auction events out to live viewers. Every auction
// is one group; each subscriber has its own queue and goroutine so a slow
// viewer can never hold up the bidding engine.
package datastreams

import (
	"time"

	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
)

type EventType string

const (
	BidPlaced     EventType = "bid_placed"
	BidRetracted  EventType = "bid_retracted"
	LotStatus     EventType = "lot_status"
	AuctionStatus EventType = "auction_status"
	// Snapshot is only ever sent by transports to a freshly connected viewer
	Snapshot EventType = "snapshot"
)

// Event is a settled change to an auction. Lot carries the lot's full public
// state after the change, so a viewer never has to merge partial updates.
type Event struct {
	Type          EventType               `json:"type"`
	AuctionId     uint32                  `json:"auction_id"`
	LotId         uint32                  `json:"lot_id,omitempty"`
	Lot           *models.LotState        `json:"lot,omitempty"`
	Lots          []*models.LotState      `json:"lots,omitempty"`
	Bid           *models.BidView         `json:"bid,omitempty"`
	AuctionStatus lifecycle.AuctionStatus `json:"auction_status,omitempty"`
	Time          time.Time               `json:"time"`
}

// Publisher is the side of the bus the bidding engine sees
type Publisher interface {
	Publish(auctionId uint32, ev Event)
}
