// Package money implements fixed-point monetary amounts in minor units.
// All order, split and payment arithmetic in the service goes through this
// type; floats are never used for amounts.
package money

import (
	"errors"
	"fmt"
)

// Scale is the number of decimal places carried by every amount.
const Scale = 2

// Money is an amount in minor units (cents). The zero value is zero money.
type Money int64

var (
	ErrNegativeAmount = errors.New("negative_amount")
	ErrInvalidWeights = errors.New("invalid_allocation_weights")
)

// FromMinor builds a Money from an amount already expressed in minor units.
func FromMinor(v int64) Money { return Money(v) }

// FromUnits builds a Money from major units and minor units, e.g. 35, 50 → 35.50.
func FromUnits(units int64, cents int64) Money {
	return Money(units*100 + cents)
}

// Minor returns the amount in minor units.
func (m Money) Minor() int64 { return int64(m) }

func (m Money) Add(o Money) Money { return m + o }

func (m Money) Sub(o Money) Money { return m - o }

// MulInt multiplies the amount by an integer quantity.
func (m Money) MulInt(n int64) Money { return Money(int64(m) * n) }

func (m Money) Neg() Money { return -m }

func (m Money) IsZero() bool { return m == 0 }

func (m Money) IsNegative() bool { return m < 0 }

// Cmp returns -1, 0 or 1 comparing m against o.
func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

// String renders the amount with two decimal places, e.g. "65.00", "-0.05".
func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Split divides the amount into n shares that sum exactly to the amount.
// The remainder is handed out one minor unit at a time to the first shares,
// so Split(6700, 3) yields 2234, 2233, 2233.
func (m Money) Split(n int) ([]Money, error) {
	if n < 1 {
		return nil, ErrInvalidWeights
	}
	weights := make([]int64, n)
	for i := range weights {
		weights[i] = 1
	}
	return m.Allocate(weights)
}

// Allocate divides the amount proportionally to the given weights. Shares
// always sum exactly to the original amount: the integer remainder left over
// by flooring is distributed one minor unit at a time, in weight order.
// The amount must be non-negative, weights must be non-negative with a
// positive sum.
func (m Money) Allocate(weights []int64) ([]Money, error) {
	if m < 0 {
		return nil, ErrNegativeAmount
	}
	if len(weights) == 0 {
		return nil, ErrInvalidWeights
	}
	var total int64
	for _, w := range weights {
		if w < 0 {
			return nil, ErrInvalidWeights
		}
		total += w
	}
	if total == 0 {
		return nil, ErrInvalidWeights
	}

	shares := make([]Money, len(weights))
	var assigned int64
	for i, w := range weights {
		share := int64(m) * w / total
		shares[i] = Money(share)
		assigned += share
	}

	remainder := int64(m) - assigned
	for i := 0; remainder > 0; i = (i + 1) % len(shares) {
		if weights[i] == 0 {
			continue
		}
		shares[i]++
		remainder--
	}
	return shares, nil
}

// Sum adds a slice of amounts.
func Sum(amounts []Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}
