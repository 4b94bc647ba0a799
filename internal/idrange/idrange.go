// Package idrange parses "min-max" identifier ranges and samples request
// identifiers from them.
package idrange

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// ErrInvalidRange is wrapped by every Parse failure.
var ErrInvalidRange = errors.New("invalid id range")

// Range is an inclusive identifier interval with 1 <= Min <= Max.
type Range struct {
	Min int
	Max int
}

// Default is used when no range is configured.
var Default = Range{Min: 1, Max: 10000}

func (r Range) String() string { return fmt.Sprintf("%d-%d", r.Min, r.Max) }

// Parse reads "min-max". Both bounds must be positive integers and min must
// not exceed max.
func Parse(s string) (Range, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("%w %q: expected min-max", ErrInvalidRange, s)
	}
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: bad minimum", ErrInvalidRange, s)
	}
	max, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: bad maximum", ErrInvalidRange, s)
	}
	r := Range{Min: min, Max: max}
	if err := r.Validate(); err != nil {
		return Range{}, fmt.Errorf("%w %q: %v", ErrInvalidRange, s, err)
	}
	return r, nil
}

func (r Range) Validate() error {
	if r.Min < 1 {
		return errors.New("minimum must be >= 1")
	}
	if r.Max < r.Min {
		return errors.New("maximum must be >= minimum")
	}
	return nil
}

// Sample draws n identifiers uniformly from r, duplicates allowed. A zero
// seed draws from a randomly seeded source; any other seed is reproducible.
func Sample(n int, r Range, seed uint64) []int {
	if n <= 0 {
		return nil
	}
	var rng *rand.Rand
	if seed == 0 {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	} else {
		rng = rand.New(rand.NewPCG(seed, seed))
	}
	span := r.Max - r.Min + 1
	ids := make([]int, n)
	for i := range ids {
		ids[i] = r.Min + rng.IntN(span)
	}
	return ids
}
