// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds the codec-neutral data model shared by containers,
// codecs, filters and the transcode pipeline.
package media

import (
	"fmt"
	"math"
	"math/big"
)

// NoPTS marks an absent timestamp. It is never rescaled.
const NoPTS int64 = math.MinInt64

// Rational is a num/den fraction used for time bases, frame rates and
// aspect ratios.
type Rational struct {
	Num int
	Den int
}

// R is shorthand for Rational{num, den}.
func R(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

// Valid reports whether r is a usable, strictly positive fraction.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Invert returns den/num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// Float64 returns the fraction as a float, or 0 for a zero denominator.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Reduce returns r in lowest terms.
func (r Rational) Reduce() Rational {
	if r.Den == 0 {
		return r
	}
	g := gcd(abs(r.Num), abs(r.Den))
	if g == 0 {
		return r
	}
	out := Rational{Num: r.Num / g, Den: r.Den / g}
	if out.Den < 0 {
		out.Num, out.Den = -out.Num, -out.Den
	}
	return out
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Rescale converts v from time base from to time base to, rounding to the
// nearest integer with halves away from zero. NoPTS passes through.
func Rescale(v int64, from, to Rational) int64 {
	if v == NoPTS {
		return NoPTS
	}
	if from == to {
		return v
	}
	if !from.Valid() || !to.Valid() {
		return v
	}
	b := int64(from.Num) * int64(to.Den)
	c := int64(from.Den) * int64(to.Num)
	return rescaleRound(v, b, c)
}

// rescaleRound computes round(a*b/c) without intermediate overflow.
func rescaleRound(a, b, c int64) int64 {
	num := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	den := big.NewInt(c)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	r.Abs(r).Lsh(r, 1)
	if r.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	if !q.IsInt64() {
		if q.Sign() < 0 {
			return math.MinInt64 + 1
		}
		return math.MaxInt64
	}
	return q.Int64()
}

// CompareTS orders two timestamps expressed in different time bases.
// It returns -1, 0 or 1.
func CompareTS(a int64, ta Rational, b int64, tb Rational) int {
	left := new(big.Int).Mul(big.NewInt(a), big.NewInt(int64(ta.Num)*int64(tb.Den)))
	right := new(big.Int).Mul(big.NewInt(b), big.NewInt(int64(tb.Num)*int64(ta.Den)))
	return left.Cmp(right)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
