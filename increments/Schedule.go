// Package increments holds the bid increment ladder: the rule mapping the
// current price of a lot to the smallest acceptable next bid.
package increments

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidSchedule is returned when a band table cannot produce a monotonic ladder
var ErrInvalidSchedule = errors.New("invalid increment schedule")

// Band applies Increment to every current amount >= From, up to the next band
type Band struct {
	From      int64 `json:"from"`
	Increment int64 `json:"increment"`
}

// Schedule is an immutable increment ladder. It is safe for concurrent use.
type Schedule struct {
	bands []Band
}

// NewSchedule validates the bands and builds a Schedule.
// Bands must start at 0, be strictly ascending, and carry positive
// increments that never decrease from one band to the next.
func NewSchedule(bands []Band) (*Schedule, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", ErrInvalidSchedule)
	}

	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })

	if sorted[0].From != 0 {
		return nil, fmt.Errorf("%w: first band starts at %d, want 0", ErrInvalidSchedule, sorted[0].From)
	}
	for i, b := range sorted {
		if b.Increment <= 0 {
			return nil, fmt.Errorf("%w: band at %d has increment %d", ErrInvalidSchedule, b.From, b.Increment)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if b.From == prev.From {
			return nil, fmt.Errorf("%w: duplicate band at %d", ErrInvalidSchedule, b.From)
		}
		if b.Increment < prev.Increment {
			return nil, fmt.Errorf("%w: increment drops from %d to %d at %d", ErrInvalidSchedule, prev.Increment, b.Increment, b.From)
		}
	}

	return &Schedule{bands: sorted}, nil
}

// MustNewSchedule is NewSchedule for static tables; it panics on error
func MustNewSchedule(bands []Band) *Schedule {
	s, err := NewSchedule(bands)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultSchedule is the house ladder used when an auction configures none
func DefaultSchedule() *Schedule {
	return MustNewSchedule([]Band{
		{From: 0, Increment: 500},
		{From: 10000, Increment: 1000},
		{From: 50000, Increment: 2500},
		{From: 100000, Increment: 5000},
		{From: 500000, Increment: 10000},
	})
}

// Increment returns the increment that applies at the given amount
func (s *Schedule) Increment(current int64) int64 {
	if current < 0 {
		current = 0
	}
	// index of the first band starting above current; the band before it applies
	i := sort.Search(len(s.bands), func(i int) bool { return s.bands[i].From > current })
	return s.bands[i-1].Increment
}

// NextMinimumBid returns the smallest amount a new bid must meet or exceed
// when the current winning amount is current (0 if there is none).
func (s *Schedule) NextMinimumBid(current int64) int64 {
	if current < 0 {
		current = 0
	}
	return current + s.Increment(current)
}

// Bands returns a copy of the ladder
func (s *Schedule) Bands() []Band {
	out := make([]Band, len(s.bands))
	copy(out, s.bands)
	return out
}
