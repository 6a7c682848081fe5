package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/delta/auction-house-server/lifecycle"
)

var (
	ErrNoMaxBid          = errors.New("No active maximum bid for this lot")
	UnauthorizedError    = errors.New("Invalid credentials")
	AlreadyExistsError   = errors.New("Already exists")
	ErrAlreadyRegistered = errors.New("Bidder is already registered for this auction")
)

// ValidationError is returned for malformed input, before any state is touched
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Reason)
}

type BidTooLowError struct {
	Amount  int64
	Minimum int64
}

func (e BidTooLowError) Error() string {
	return fmt.Sprintf("Bid of %d is too low. Minimum bid is %d", e.Amount, e.Minimum)
}

type LotNotActiveError struct {
	LotId  uint32
	Status lifecycle.LotStatus
}

func (e LotNotActiveError) Error() string {
	return fmt.Sprintf("Lot %d is not open for bidding (status %s)", e.LotId, e.Status)
}

type AuctionNotLiveError struct {
	AuctionId uint32
	Status    lifecycle.AuctionStatus
}

func (e AuctionNotLiveError) Error() string {
	return fmt.Sprintf("Auction %d is not live (status %s)", e.AuctionId, e.Status)
}

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("Too many requests. Retry in %s", e.RetryAfter)
}

type AlreadyRetractedError struct {
	BidId uint32
}

func (e AlreadyRetractedError) Error() string {
	return fmt.Sprintf("Bid %d has already been retracted", e.BidId)
}

// LockTimeoutError is returned when the lot's critical section could not be
// entered in time. Nothing has been written; the request can be retried.
type LockTimeoutError struct {
	LotId  uint32
	Waited time.Duration
}

func (e LockTimeoutError) Error() string {
	return fmt.Sprintf("Lot %d is busy, gave up after %s", e.LotId, e.Waited)
}

type NotRegisteredError struct {
	AuctionId uint32
	BidderId  uint32
}

func (e NotRegisteredError) Error() string {
	return fmt.Sprintf("Bidder %d has no approved registration for auction %d", e.BidderId, e.AuctionId)
}

type LotClosedError struct {
	LotId  uint32
	Status lifecycle.LotStatus
}

func (e LotClosedError) Error() string {
	return fmt.Sprintf("Lot %d is closed (status %s)", e.LotId, e.Status)
}

// ReserveNotMetError does not carry the reserve itself, which stays confidential
type ReserveNotMetError struct {
	LotId   uint32
	Highest int64
}

func (e ReserveNotMetError) Error() string {
	return fmt.Sprintf("Highest bid %d on lot %d does not meet the reserve", e.Highest, e.LotId)
}

type NoWinningBidError struct {
	LotId uint32
}

func (e NoWinningBidError) Error() string {
	return fmt.Sprintf("Lot %d has no winning bid", e.LotId)
}

type NotFoundError struct {
	Entity string
	Id     uint32
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.Id)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
