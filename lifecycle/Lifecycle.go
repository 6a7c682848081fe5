// Package lifecycle holds the auction and lot state machines.
package lifecycle

import (
	"fmt"
	"strings"
)

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionDraft          AuctionStatus = "draft"
	AuctionPreview        AuctionStatus = "preview"
	AuctionLive           AuctionStatus = "live"
	AuctionReconciliation AuctionStatus = "reconciliation"
	AuctionArchive        AuctionStatus = "archive"
)

// LotStatus is the lifecycle state of a lot
type LotStatus string

const (
	LotDraft      LotStatus = "draft"
	LotCatalogued LotStatus = "catalogued"
	LotPublished  LotStatus = "published"
	LotActive     LotStatus = "active"
	LotSold       LotStatus = "sold"
	LotPassed     LotStatus = "passed"
	LotWithdrawn  LotStatus = "withdrawn"
)

// auctions move strictly forward, one step at a time
var auctionTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionDraft:          {AuctionPreview},
	AuctionPreview:        {AuctionLive},
	AuctionLive:           {AuctionReconciliation},
	AuctionReconciliation: {AuctionArchive},
	AuctionArchive:        {},
}

var lotTransitions = map[LotStatus][]LotStatus{
	LotDraft:      {LotCatalogued},
	LotCatalogued: {LotPublished, LotDraft},
	LotPublished:  {LotActive, LotCatalogued, LotWithdrawn},
	LotActive:     {LotSold, LotPassed, LotWithdrawn},
	LotPassed:     {LotActive},
	LotSold:       {},
	LotWithdrawn:  {},
}

// InvalidTransitionError reports a rejected state change together with the
// current state and the states that would have been accepted
type InvalidTransitionError struct {
	Entity  string
	From    string
	To      string
	Allowed []string
}

func (e InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s cannot move from %s to %s: %s is terminal", e.Entity, e.From, e.To, e.From)
	}
	return fmt.Sprintf("%s cannot move from %s to %s; allowed: %s", e.Entity, e.From, e.To, strings.Join(e.Allowed, ", "))
}

// Valid reports whether s is a known auction status
func (s AuctionStatus) Valid() bool {
	_, ok := auctionTransitions[s]
	return ok
}

// Next returns the statuses an auction may move to from s
func (s AuctionStatus) Next() []AuctionStatus {
	return append([]AuctionStatus(nil), auctionTransitions[s]...)
}

// CanTransition reports whether an auction may move from s to to
func (s AuctionStatus) CanTransition(to AuctionStatus) bool {
	for _, n := range auctionTransitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

// TransitionAuction validates moving an auction from `from` to `to`
func TransitionAuction(from, to AuctionStatus) error {
	if from.CanTransition(to) {
		return nil
	}
	allowed := []string{}
	for _, n := range from.Next() {
		allowed = append(allowed, string(n))
	}
	return InvalidTransitionError{Entity: "auction", From: string(from), To: string(to), Allowed: allowed}
}

// Valid reports whether s is a known lot status
func (s LotStatus) Valid() bool {
	_, ok := lotTransitions[s]
	return ok
}

// Next returns the statuses a lot may move to from s
func (s LotStatus) Next() []LotStatus {
	return append([]LotStatus(nil), lotTransitions[s]...)
}

// IsTerminal reports whether no transition leaves s
func (s LotStatus) IsTerminal() bool {
	return s.Valid() && len(lotTransitions[s]) == 0
}

// CanTransition reports whether a lot may move from s to to
func (s LotStatus) CanTransition(to LotStatus) bool {
	for _, n := range lotTransitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

// TransitionLot validates moving a lot from `from` to `to`
func TransitionLot(from, to LotStatus) error {
	if from.CanTransition(to) {
		return nil
	}
	allowed := []string{}
	for _, n := range from.Next() {
		allowed = append(allowed, string(n))
	}
	return InvalidTransitionError{Entity: "lot", From: string(from), To: string(to), Allowed: allowed}
}

// CanBid reports whether bids may be placed on a lot in the given states
func CanBid(lot LotStatus, auction AuctionStatus) bool {
	return lot == LotActive && auction == AuctionLive
}
