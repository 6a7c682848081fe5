// Package models holds the records of the auction house ledger and the
// errors that the bidding engine reports to its callers.
package models

// BidType says how a bid reached the house
type BidType string

const (
	Online   BidType = "online"
	Phone    BidType = "phone"
	Floor    BidType = "floor"
	Absentee BidType = "absentee"
	System   BidType = "system"
)

var bidTypes = map[BidType]bool{
	Online:   true,
	Phone:    true,
	Floor:    true,
	Absentee: true,
	System:   true,
}

func (bt BidType) String() string {
	return string(bt)
}

// Valid reports whether bt is a known bid type
func (bt BidType) Valid() bool {
	return bidTypes[bt]
}

// Placeable reports whether a caller may submit a bid of this type directly.
// Absentee and system bids are only ever generated by the proxy engine.
func (bt BidType) Placeable() bool {
	return bt == Online || bt == Phone || bt == Floor
}

// NotificationType is the kind of message sent to a user
type NotificationType string

const (
	OutbidNotification       NotificationType = "outbid"
	RegistrationNotification NotificationType = "registration"
	LotWonNotification       NotificationType = "lot_won"
)
