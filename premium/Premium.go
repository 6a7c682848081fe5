// Package premium computes the buyer's premium owed on a hammer price, either
// through a progressive tier table or a flat rate.
//
// Every contribution is rounded half up to a whole minor unit before it is
// summed, so the total always equals the sum of the breakdown lines.
package premium

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Unbounded marks the open upper end of the last tier
const Unbounded int64 = 0

// Tier is the band [Min, Max) charged at Rate. Max == Unbounded means no upper limit.
type Tier struct {
	Min  int64           `json:"min"`
	Max  int64           `json:"max"`
	Rate decimal.Decimal `json:"rate"`
}

// Contribution is the premium charged for the portion of the hammer price in one tier
type Contribution struct {
	Tier    Tier  `json:"tier"`
	Portion int64 `json:"portion"`
	Premium int64 `json:"premium"`
}

// Result is the outcome of a premium calculation
type Result struct {
	Premium   int64          `json:"premium"`
	Breakdown []Contribution `json:"breakdown"`
}

// InvalidTierConfigurationError is returned when a tier table does not
// partition [0, inf) into contiguous, non-overlapping bands
type InvalidTierConfigurationError struct {
	Reason string
}

func (e InvalidTierConfigurationError) Error() string {
	return fmt.Sprintf("invalid premium tier configuration: %s", e.Reason)
}

func invalid(format string, args ...interface{}) error {
	return InvalidTierConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

var one = decimal.NewFromInt(1)

// SortTiers returns the tiers ordered by their lower bound
func SortTiers(tiers []Tier) []Tier {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })
	return sorted
}

// ValidateTiers checks that tiers form a gapless, non-overlapping partition of [0, inf).
// An empty table is valid and means "use the flat rate".
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return nil
	}

	sorted := SortTiers(tiers)
	if sorted[0].Min != 0 {
		return invalid("first tier starts at %d, want 0", sorted[0].Min)
	}

	for i, t := range sorted {
		if t.Rate.IsNegative() || t.Rate.GreaterThan(one) {
			return invalid("tier starting at %d has rate %s outside [0, 1]", t.Min, t.Rate)
		}

		last := i == len(sorted)-1
		if t.Max == Unbounded {
			if !last {
				return invalid("tier starting at %d is unbounded but is not the last tier", t.Min)
			}
			continue
		}
		if t.Max <= t.Min {
			return invalid("tier [%d, %d) is empty", t.Min, t.Max)
		}
		if last {
			return invalid("last tier [%d, %d) must be unbounded", t.Min, t.Max)
		}

		next := sorted[i+1]
		switch {
		case next.Min > t.Max:
			return invalid("gap between %d and %d", t.Max, next.Min)
		case next.Min < t.Max:
			return invalid("tiers [%d, %d) and [%d, ...) overlap", t.Min, t.Max, next.Min)
		}
	}

	return nil
}

// Compute walks the hammer price through a well-formed tier table like
// progressive tax brackets. Callers must validate the table when it is
// written; Compute itself never fails.
func Compute(hammerPrice int64, tiers []Tier) Result {
	res := Result{Breakdown: []Contribution{}}
	if hammerPrice <= 0 {
		return res
	}

	for _, t := range SortTiers(tiers) {
		if hammerPrice <= t.Min {
			break
		}
		upper := hammerPrice
		if t.Max != Unbounded && t.Max < upper {
			upper = t.Max
		}
		portion := upper - t.Min
		contribution := roundHalfUp(decimal.NewFromInt(portion).Mul(t.Rate))

		res.Breakdown = append(res.Breakdown, Contribution{
			Tier:    t,
			Portion: portion,
			Premium: contribution,
		})
		res.Premium += contribution
	}

	return res
}

// ComputeFlat charges a single rate on the whole hammer price
func ComputeFlat(hammerPrice int64, flatRate decimal.Decimal) int64 {
	if hammerPrice <= 0 {
		return 0
	}
	return roundHalfUp(decimal.NewFromInt(hammerPrice).Mul(flatRate))
}

// Calculate uses the tier table when there is one and falls back to the flat rate otherwise
func Calculate(hammerPrice int64, tiers []Tier, flatRate decimal.Decimal) Result {
	if len(tiers) > 0 {
		return Compute(hammerPrice, tiers)
	}

	p := ComputeFlat(hammerPrice, flatRate)
	return Result{
		Premium: p,
		Breakdown: []Contribution{{
			Tier:    Tier{Min: 0, Max: Unbounded, Rate: flatRate},
			Portion: hammerPrice,
			Premium: p,
		}},
	}
}

// roundHalfUp rounds a non-negative amount to a whole minor unit, halves going up
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
