// Package invoice bills the winner of a sold lot: hammer price plus the
// auction's buyer's premium.
package invoice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/premium"
	"github.com/delta/auction-house-server/utils"
)

// Store is the part of the ledger store invoices need
type Store interface {
	GetPremiumTiers(ctx context.Context, auctionId uint32) ([]*models.PremiumTier, error)
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	GetInvoiceByLot(ctx context.Context, lotId uint32) (*models.Invoice, error)
}

type Generator struct {
	logger *logrus.Entry
	store  Store
}

func NewGenerator(store Store) *Generator {
	return &Generator{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "invoice",
		}),
		store: store,
	}
}

// Generate creates the invoice of a sold lot. Generating twice returns the
// invoice created the first time.
func (g *Generator) Generate(ctx context.Context, lot *models.Lot, auction *models.Auction, winner *models.Bid) (*models.Invoice, error) {
	l := g.logger.WithFields(logrus.Fields{
		"method":      "Generate",
		"param_lotId": lot.Id,
	})

	if lot.HammerPrice <= 0 {
		return nil, fmt.Errorf("lot %d has no hammer price", lot.Id)
	}

	if existing, err := g.store.GetInvoiceByLot(ctx, lot.Id); err == nil {
		l.Debugf("Invoice already exists. Id: %d", existing.Id)
		return existing, nil
	}

	rows, err := g.store.GetPremiumTiers(ctx, auction.Id)
	if err != nil {
		l.Errorf("Unable to load premium tiers: %+v", err)
		return nil, err
	}

	res := premium.Calculate(lot.HammerPrice, models.ToTiers(rows), auction.FlatPremiumRate)
	breakdown, err := json.Marshal(res.Breakdown)
	if err != nil {
		return nil, err
	}

	inv := &models.Invoice{
		LotId:       lot.Id,
		AuctionId:   auction.Id,
		BidderId:    winner.BidderId,
		HammerPrice: lot.HammerPrice,
		Premium:     res.Premium,
		Total:       lot.HammerPrice + res.Premium,
		Breakdown:   string(breakdown),
	}
	if err := g.store.CreateInvoice(ctx, inv); err != nil {
		if err == models.AlreadyExistsError {
			return g.store.GetInvoiceByLot(ctx, lot.Id)
		}
		l.Errorf("Unable to save invoice: %+v", err)
		return nil, err
	}

	l.Infof("Created invoice %d. Hammer %d, premium %d", inv.Id, inv.HammerPrice, inv.Premium)
	return inv, nil
}
