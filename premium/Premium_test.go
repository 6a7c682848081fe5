package premium

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rate(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func houseTiers() []Tier {
	return []Tier{
		{Min: 0, Max: 100000, Rate: rate("0.25")},
		{Min: 100000, Max: 500000, Rate: rate("0.20")},
		{Min: 500000, Max: Unbounded, Rate: rate("0.12")},
	}
}

func TestComputeBrackets(t *testing.T) {
	require.NoError(t, ValidateTiers(houseTiers()))

	res := Compute(600000, houseTiers())
	assert.Equal(t, int64(117000), res.Premium)
	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, int64(25000), res.Breakdown[0].Premium)
	assert.Equal(t, int64(80000), res.Breakdown[1].Premium)
	assert.Equal(t, int64(12000), res.Breakdown[2].Premium)

	var portions, total int64
	for _, c := range res.Breakdown {
		portions += c.Portion
		total += c.Premium
	}
	assert.Equal(t, int64(600000), portions, "portions sum to the hammer price")
	assert.Equal(t, res.Premium, total)
}

func TestComputeWithinFirstTier(t *testing.T) {
	res := Compute(40000, houseTiers())
	assert.Equal(t, int64(10000), res.Premium)
	assert.Len(t, res.Breakdown, 1)

	res = Compute(100000, houseTiers())
	assert.Equal(t, int64(25000), res.Premium)
	assert.Len(t, res.Breakdown, 1, "a price ending exactly on a boundary stays in the lower tier")
}

func TestComputeRoundsPerTier(t *testing.T) {
	tiers := []Tier{
		{Min: 0, Max: 3, Rate: rate("0.5")},
		{Min: 3, Max: Unbounded, Rate: rate("0.5")},
	}
	// 3 * 0.5 = 1.5 -> 2, 2 * 0.5 = 1 -> 1
	res := Compute(5, tiers)
	assert.Equal(t, int64(3), res.Premium)
	assert.Equal(t, int64(2), res.Breakdown[0].Premium)
}

func TestComputeFlat(t *testing.T) {
	assert.Equal(t, int64(2500), ComputeFlat(10000, rate("0.25")))
	assert.Equal(t, int64(13), ComputeFlat(50, rate("0.25")), "12.5 rounds half up")
	assert.Equal(t, int64(0), ComputeFlat(0, rate("0.25")))
}

func TestCalculateFallsBackToFlat(t *testing.T) {
	res := Calculate(10000, nil, rate("0.2"))
	assert.Equal(t, int64(2000), res.Premium)
	require.Len(t, res.Breakdown, 1)

	res = Calculate(600000, houseTiers(), rate("0.99"))
	assert.Equal(t, int64(117000), res.Premium)
}

func TestValidateTiers(t *testing.T) {
	var cfgErr InvalidTierConfigurationError

	bad := map[string][]Tier{
		"gap": {
			{Min: 0, Max: 100, Rate: rate("0.1")},
			{Min: 200, Max: Unbounded, Rate: rate("0.1")},
		},
		"overlap": {
			{Min: 0, Max: 300, Rate: rate("0.1")},
			{Min: 200, Max: Unbounded, Rate: rate("0.1")},
		},
		"not from zero": {
			{Min: 10, Max: Unbounded, Rate: rate("0.1")},
		},
		"bounded last tier": {
			{Min: 0, Max: 100, Rate: rate("0.1")},
		},
		"unbounded middle tier": {
			{Min: 0, Max: Unbounded, Rate: rate("0.1")},
			{Min: 100, Max: Unbounded, Rate: rate("0.1")},
		},
		"rate above one": {
			{Min: 0, Max: Unbounded, Rate: rate("1.5")},
		},
		"negative rate": {
			{Min: 0, Max: Unbounded, Rate: rate("-0.1")},
		},
	}

	for name, tiers := range bad {
		err := ValidateTiers(tiers)
		assert.True(t, errors.As(err, &cfgErr), "%s: got %v", name, err)
	}

	assert.NoError(t, ValidateTiers(nil))
	shuffled := []Tier{houseTiers()[2], houseTiers()[0], houseTiers()[1]}
	assert.NoError(t, ValidateTiers(shuffled), "order of input does not matter")
}
