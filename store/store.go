// Package store is the durable ledger behind the bidding engine. Everything
// that reads and then writes a lot's bids goes through WithLotTx, which runs
// the callback atomically against that one lot.
package store

import (
	"context"

	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
)

// LotTx is a unit of work scoped to a single lot. Values returned from it are
// copies; changes are only kept when written back and the callback succeeds.
type LotTx interface {
	Lot() *models.Lot
	Auction() *models.Auction

	// Bids returns every bid on the lot, retracted ones included, oldest first
	Bids() ([]*models.Bid, error)
	InsertBid(bid *models.Bid) error
	UpdateBid(bid *models.Bid) error

	// AbsenteeBids returns the active ceilings on the lot, oldest first
	AbsenteeBids() ([]*models.AbsenteeBid, error)
	// SaveAbsenteeBid inserts the ceiling when it has no id and updates it otherwise
	SaveAbsenteeBid(ab *models.AbsenteeBid) error

	Retraction(bidID uint32) (*models.BidRetraction, error)
	InsertRetraction(r *models.BidRetraction) error

	Registration(bidderID uint32) (*models.Registration, error)

	UpdateLot(lot *models.Lot) error
}

// Store is the ledger store. Lookups of missing records fail with
// models.NotFoundError.
type Store interface {
	CreateAuction(ctx context.Context, auction *models.Auction) error
	GetAuction(ctx context.Context, auctionID uint32) (*models.Auction, error)
	ListAuctions(ctx context.Context) ([]*models.Auction, error)
	// UpdateAuctionStatus moves an auction from one status to another, failing
	// with a lifecycle.InvalidTransitionError if it is no longer in from
	UpdateAuctionStatus(ctx context.Context, auctionID uint32, from, to lifecycle.AuctionStatus) (*models.Auction, error)

	CreateLot(ctx context.Context, lot *models.Lot) error
	GetLot(ctx context.Context, lotID uint32) (*models.Lot, error)
	GetLotsByAuction(ctx context.Context, auctionID uint32) ([]*models.Lot, error)

	GetBid(ctx context.Context, bidID uint32) (*models.Bid, error)
	GetBids(ctx context.Context, lotID uint32) ([]*models.Bid, error)
	GetAbsenteeBid(ctx context.Context, lotID, bidderID uint32) (*models.AbsenteeBid, error)

	GetPremiumTiers(ctx context.Context, auctionID uint32) ([]*models.PremiumTier, error)
	// SetPremiumTiers replaces the auction's whole tier table. Callers validate it first.
	SetPremiumTiers(ctx context.Context, auctionID uint32, tiers []*models.PremiumTier) error

	CreateRegistration(ctx context.Context, reg *models.Registration) error
	GetRegistration(ctx context.Context, auctionID, bidderID uint32) (*models.Registration, error)
	// ApproveRegistration approves a registration and assigns the next free
	// paddle of the auction. Approving twice returns the existing paddle.
	ApproveRegistration(ctx context.Context, auctionID, bidderID uint32) (*models.Registration, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID uint32) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	GetInvoiceByLot(ctx context.Context, lotID uint32) (*models.Invoice, error)

	// WithLotTx runs fn atomically for one lot. If fn returns an error nothing
	// it wrote is kept.
	WithLotTx(ctx context.Context, lotID uint32, fn func(tx LotTx) error) error

	Close() error
}
