package biddingengine

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/audit"
	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/notifications"
	"github.com/delta/auction-house-server/premium"
)

type CreateAuctionRequest struct {
	Title    string
	StartsAt time.Time
	EndsAt   time.Time
	// FlatPremiumRate falls back to the configured default when nil
	FlatPremiumRate *decimal.Decimal
	// Tiers is optional. Without it the flat rate applies.
	Tiers []premium.Tier
}

// CreateAuction creates a draft auction together with its premium table
func (e *Engine) CreateAuction(ctx context.Context, req CreateAuctionRequest, actor uint32) (*models.Auction, error) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":      "CreateAuction",
		"param_title": req.Title,
		"param_actor": actor,
	})

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, models.ValidationError{Field: "title", Reason: "is required"}
	}
	if !req.EndsAt.IsZero() && req.EndsAt.Before(req.StartsAt) {
		return nil, models.ValidationError{Field: "ends_at", Reason: "is before starts_at"}
	}

	rate := e.defaultFlatPremium
	if req.FlatPremiumRate != nil {
		rate = *req.FlatPremiumRate
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, models.ValidationError{Field: "flat_premium_rate", Reason: "must be within [0, 1]"}
	}
	if err := premium.ValidateTiers(req.Tiers); err != nil {
		return nil, err
	}

	auction := &models.Auction{
		Title:           title,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		Status:          lifecycle.AuctionDraft,
		FlatPremiumRate: rate,
	}
	if err := e.store.CreateAuction(ctx, auction); err != nil {
		l.Errorf("Unable to create auction: %+v", err)
		return nil, err
	}

	if len(req.Tiers) > 0 {
		if err := e.store.SetPremiumTiers(ctx, auction.Id, toTierRows(auction.Id, req.Tiers)); err != nil {
			l.Errorf("Unable to store premium tiers: %+v", err)
			return nil, err
		}
	}

	e.audit(ctx, audit.Entry{
		Table:    models.Auction{}.TableName(),
		RecordId: auction.Id,
		Action:   "create",
		NewState: auction,
		Actor:    actor,
	})

	l.Infof("Created auction %d", auction.Id)
	return auction, nil
}

func toTierRows(auctionId uint32, tiers []premium.Tier) []*models.PremiumTier {
	rows := make([]*models.PremiumTier, 0, len(tiers))
	for _, t := range premium.SortTiers(tiers) {
		rows = append(rows, &models.PremiumTier{
			AuctionId: auctionId,
			MinAmount: t.Min,
			MaxAmount: t.Max,
			Rate:      t.Rate,
		})
	}
	return rows
}

// SetPremiumTiers replaces an auction's premium table. An empty table means
// the flat rate applies. Tables are validated here so the calculator never
// sees a malformed one.
func (e *Engine) SetPremiumTiers(ctx context.Context, auctionId uint32, tiers []premium.Tier, actor uint32) error {
	var l = e.logger.WithFields(logrus.Fields{
		"method":          "SetPremiumTiers",
		"param_auctionId": auctionId,
		"param_actor":     actor,
	})

	if err := premium.ValidateTiers(tiers); err != nil {
		l.Debugf("Rejected: %+v", err)
		return err
	}

	auction, err := e.store.GetAuction(ctx, auctionId)
	if err != nil {
		return err
	}
	if auction.Status == lifecycle.AuctionArchive {
		return models.AuctionNotLiveError{AuctionId: auctionId, Status: auction.Status}
	}

	old, err := e.store.GetPremiumTiers(ctx, auctionId)
	if err != nil {
		return err
	}
	if err := e.store.SetPremiumTiers(ctx, auctionId, toTierRows(auctionId, tiers)); err != nil {
		l.Errorf("Unable to store premium tiers: %+v", err)
		return err
	}

	e.audit(ctx, audit.Entry{
		Table:    models.PremiumTier{}.TableName(),
		RecordId: auctionId,
		Action:   "replace",
		OldState: models.ToTiers(old),
		NewState: tiers,
		Actor:    actor,
	})

	l.Infof("Premium table replaced with %d tiers", len(tiers))
	return nil
}

type CreateLotRequest struct {
	AuctionId    uint32
	LotNumber    uint32
	Title        string
	EstimateLow  int64
	EstimateHigh int64
	StartingBid  int64
	// ReservePrice 0 means no reserve
	ReservePrice int64
}

// CreateLot adds a draft lot to an auction
func (e *Engine) CreateLot(ctx context.Context, req CreateLotRequest, actor uint32) (*models.Lot, error) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":          "CreateLot",
		"param_auctionId": req.AuctionId,
		"param_lotNumber": req.LotNumber,
		"param_actor":     actor,
	})

	switch {
	case req.LotNumber == 0:
		return nil, models.ValidationError{Field: "lot_number", Reason: "is required"}
	case strings.TrimSpace(req.Title) == "":
		return nil, models.ValidationError{Field: "title", Reason: "is required"}
	case req.StartingBid < 0 || req.ReservePrice < 0 || req.EstimateLow < 0:
		return nil, models.ValidationError{Field: "starting_bid", Reason: "amounts must not be negative"}
	case req.EstimateHigh < req.EstimateLow:
		return nil, models.ValidationError{Field: "estimate_high", Reason: "is below estimate_low"}
	}

	if _, err := e.store.GetAuction(ctx, req.AuctionId); err != nil {
		return nil, err
	}
	lots, err := e.store.GetLotsByAuction(ctx, req.AuctionId)
	if err != nil {
		return nil, err
	}
	for _, other := range lots {
		if other.LotNumber == req.LotNumber {
			return nil, models.ValidationError{Field: "lot_number", Reason: "is already taken in this auction"}
		}
	}

	lot := &models.Lot{
		AuctionId:    req.AuctionId,
		LotNumber:    req.LotNumber,
		Title:        strings.TrimSpace(req.Title),
		EstimateLow:  req.EstimateLow,
		EstimateHigh: req.EstimateHigh,
		StartingBid:  req.StartingBid,
		ReservePrice: req.ReservePrice,
		Status:       lifecycle.LotDraft,
	}
	if err := e.store.CreateLot(ctx, lot); err != nil {
		l.Errorf("Unable to create lot: %+v", err)
		return nil, err
	}

	e.audit(ctx, audit.Entry{
		Table:    models.Lot{}.TableName(),
		RecordId: lot.Id,
		Action:   "create",
		NewState: lot,
		Actor:    actor,
	})

	l.Infof("Created lot %d", lot.Id)
	return lot, nil
}

// RegisterBidder asks for a paddle in an auction. Bidding needs an approved registration.
func (e *Engine) RegisterBidder(ctx context.Context, auctionId, bidderId uint32) (*models.Registration, error) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":          "RegisterBidder",
		"param_auctionId": auctionId,
		"param_bidderId":  bidderId,
	})

	auction, err := e.store.GetAuction(ctx, auctionId)
	if err != nil {
		return nil, err
	}
	switch auction.Status {
	case lifecycle.AuctionReconciliation, lifecycle.AuctionArchive:
		return nil, models.AuctionNotLiveError{AuctionId: auctionId, Status: auction.Status}
	}
	if _, err := e.store.GetUser(ctx, bidderId); err != nil {
		return nil, err
	}

	reg := &models.Registration{AuctionId: auctionId, BidderId: bidderId}
	if err := e.store.CreateRegistration(ctx, reg); err != nil {
		l.Debugf("Rejected: %+v", err)
		return nil, err
	}

	l.Infof("Registered")
	return reg, nil
}

// ApproveRegistration assigns the bidder a paddle. Approving twice is harmless.
func (e *Engine) ApproveRegistration(ctx context.Context, auctionId, bidderId, actor uint32) (*models.Registration, error) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":          "ApproveRegistration",
		"param_auctionId": auctionId,
		"param_bidderId":  bidderId,
		"param_actor":     actor,
	})

	auction, err := e.store.GetAuction(ctx, auctionId)
	if err != nil {
		return nil, err
	}
	before, err := e.store.GetRegistration(ctx, auctionId, bidderId)
	if err != nil {
		return nil, err
	}

	reg, err := e.store.ApproveRegistration(ctx, auctionId, bidderId)
	if err != nil {
		l.Errorf("Unable to approve: %+v", err)
		return nil, err
	}
	if before.IsApproved {
		return reg, nil
	}

	e.audit(ctx, audit.Entry{
		Table:    models.Registration{}.TableName(),
		RecordId: reg.Id,
		Action:   "approve",
		OldState: before,
		NewState: reg,
		Actor:    actor,
	})

	e.notifier.Notify(bidderId, models.RegistrationNotification, map[string]interface{}{
		notifications.KeyAuctionTitle: auction.Title,
		notifications.KeyPaddle:       reg.Paddle,
	})

	l.Infof("Approved with paddle %d", reg.Paddle)
	return reg, nil
}
