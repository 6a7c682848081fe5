package invoice

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/premium"
	"github.com/delta/auction-house-server/store"
)

func setup(t *testing.T, tiers []*models.PremiumTier) (*store.MemoryStore, *models.Auction, *models.Lot) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	auction := &models.Auction{Title: "Impressionist", Status: lifecycle.AuctionLive, FlatPremiumRate: decimal.RequireFromString("0.25")}
	require.NoError(t, s.CreateAuction(ctx, auction))
	if tiers != nil {
		require.NoError(t, s.SetPremiumTiers(ctx, auction.Id, tiers))
	}

	lot := &models.Lot{AuctionId: auction.Id, LotNumber: 9, Status: lifecycle.LotSold, HammerPrice: 600000}
	require.NoError(t, s.CreateLot(ctx, lot))
	return s, auction, lot
}

func TestGenerateWithTiers(t *testing.T) {
	s, auction, lot := setup(t, []*models.PremiumTier{
		{MinAmount: 0, MaxAmount: 100000, Rate: decimal.RequireFromString("0.25")},
		{MinAmount: 100000, MaxAmount: 500000, Rate: decimal.RequireFromString("0.20")},
		{MinAmount: 500000, MaxAmount: 0, Rate: decimal.RequireFromString("0.12")},
	})

	g := NewGenerator(s)
	inv, err := g.Generate(context.Background(), lot, auction, &models.Bid{BidderId: 42, Amount: 600000})
	require.NoError(t, err)

	assert.Equal(t, int64(117000), inv.Premium)
	assert.Equal(t, int64(717000), inv.Total)
	assert.Equal(t, uint32(42), inv.BidderId)

	var breakdown []premium.Contribution
	require.NoError(t, json.Unmarshal([]byte(inv.Breakdown), &breakdown))
	assert.Len(t, breakdown, 3)

	again, err := g.Generate(context.Background(), lot, auction, &models.Bid{BidderId: 42})
	require.NoError(t, err)
	assert.Equal(t, inv.Id, again.Id)
}

func TestGenerateFlat(t *testing.T) {
	s, auction, lot := setup(t, nil)

	inv, err := NewGenerator(s).Generate(context.Background(), lot, auction, &models.Bid{BidderId: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(150000), inv.Premium)
	assert.Equal(t, int64(750000), inv.Total)
}

func TestGenerateRequiresHammerPrice(t *testing.T) {
	s, auction, lot := setup(t, nil)
	lot.HammerPrice = 0

	_, err := NewGenerator(s).Generate(context.Background(), lot, auction, &models.Bid{})
	assert.Error(t, err)
}
