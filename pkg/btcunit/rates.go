// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides a set of types for dealing with bitcoin size and
// fee rate units.
package btcunit

import (
	"fmt"
	"math"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	// kilo is a generic multiplier for kilo units. Fee rates quoted per
	// kilobyte follow the bitcoind convention of 1000 bytes.
	kilo = 1000

	// floatStringPrecision is the number of decimal places to use when
	// converting a fractional unit to a string.
	floatStringPrecision = 3
)

// ZeroSatPerKVByte is a fee rate of 0 sat/kvb.
var ZeroSatPerKVByte = NewSatPerKVByte(0)

// baseFeeRate stores the canonical representation of a fee rate, which is
// satoshis per kilo-weight-unit (sat/kwu). All other fee rate units are
// derived from this.
type baseFeeRate struct {
	// satsPerKWU is the fee rate in satoshis per kilo-weight-unit, kept as
	// a rational to avoid rounding until a fee is actually computed.
	satsPerKWU *big.Rat
}

// newBaseFeeRate creates a new baseFeeRate with the given numerator and
// denominator. It handles the zero denominator case by returning a zero fee
// rate.
func newBaseFeeRate(numerator btcutil.Amount, denominator uint64) baseFeeRate {
	if denominator == 0 {
		return baseFeeRate{satsPerKWU: big.NewRat(0, 1)}
	}

	return baseFeeRate{satsPerKWU: big.NewRat(
		int64(numerator), safeUint64ToInt64(denominator),
	)}
}

// feeRational returns the exact, unrounded fee for the given weight.
func (f baseFeeRate) feeRational(wu WeightUnit) *big.Rat {
	fee := big.NewRat(0, 1)
	return fee.Mul(f.satsPerKWU, big.NewRat(safeUint64ToInt64(wu.wu), kilo))
}

// FeeForWeight calculates the fee resulting from this fee rate and the given
// weight, rounded down (truncated).
func (f baseFeeRate) FeeForWeight(wu WeightUnit) btcutil.Amount {
	fee := f.feeRational(wu)

	quotient := big.NewInt(0)
	quotient.Quo(fee.Num(), fee.Denom())

	return btcutil.Amount(quotient.Int64())
}

// FeeForWeightRoundUp calculates the fee resulting from this fee rate and the
// given weight, rounding up to the nearest satoshi.
func (f baseFeeRate) FeeForWeightRoundUp(wu WeightUnit) btcutil.Amount {
	fee := f.feeRational(wu)

	// Ceiling division: (numerator + denominator - 1) / denominator.
	result := big.NewInt(0)
	result.Add(fee.Num(), fee.Denom())
	result.Sub(result, big.NewInt(1))
	result.Quo(result, fee.Denom())

	return btcutil.Amount(result.Int64())
}

// FeeForVByte calculates the fee for the given size in vbytes, rounded down.
func (f baseFeeRate) FeeForVByte(vb VByte) btcutil.Amount {
	return f.FeeForWeight(vb.ToWU())
}

// FeeForVByteRoundUp calculates the fee for the given size in vbytes, rounded
// up to the nearest satoshi.
func (f baseFeeRate) FeeForVByteRoundUp(vb VByte) btcutil.Amount {
	return f.FeeForWeightRoundUp(vb.ToWU())
}

// SatPerKVByte represents a fee rate in sat/kvb, the unit bitcoind fee
// estimates are quoted in. Internally it is stored as sat/kwu.
type SatPerKVByte struct {
	baseFeeRate
}

// NewSatPerKVByte creates a new fee rate in sat/kvb.
func NewSatPerKVByte(fee btcutil.Amount) SatPerKVByte {
	return SatPerKVByte{newBaseFeeRate(fee, blockchain.WitnessScaleFactor)}
}

// Val returns the fee rate in whole sat/kvb, rounded down.
func (s SatPerKVByte) Val() btcutil.Amount {
	rate := big.NewRat(0, 1)
	rate.Mul(s.satsPerKWU, big.NewRat(blockchain.WitnessScaleFactor, 1))

	quotient := big.NewInt(0)
	quotient.Quo(rate.Num(), rate.Denom())

	return btcutil.Amount(quotient.Int64())
}

// Equal returns true if the fee rate is equal to the other fee rate.
func (s SatPerKVByte) Equal(other SatPerKVByte) bool {
	return s.satsPerKWU.Cmp(other.satsPerKWU) == 0
}

// GreaterThan returns true if the fee rate is greater than the other rate.
func (s SatPerKVByte) GreaterThan(other SatPerKVByte) bool {
	return s.satsPerKWU.Cmp(other.satsPerKWU) > 0
}

// LessThanOrEqual returns true if the fee rate is less than or equal to the
// other fee rate.
func (s SatPerKVByte) LessThanOrEqual(other SatPerKVByte) bool {
	return s.satsPerKWU.Cmp(other.satsPerKWU) <= 0
}

// String returns a human-readable string of the fee rate.
func (s SatPerKVByte) String() string {
	return fmt.Sprintf("%d sat/kvb", int64(s.Val()))
}

// SatPerVByte represents a fee rate in sat/vb.
type SatPerVByte struct {
	baseFeeRate
}

// NewSatPerVByte creates a new fee rate in sat/vb.
func NewSatPerVByte(fee btcutil.Amount) SatPerVByte {
	return SatPerVByte{newBaseFeeRate(
		fee*kilo, blockchain.WitnessScaleFactor,
	)}
}

// ToSatPerKVByte converts the fee rate to sat/kvb.
func (s SatPerVByte) ToSatPerKVByte() SatPerKVByte {
	return SatPerKVByte{s.baseFeeRate}
}

// String returns a human-readable string of the fee rate.
func (s SatPerVByte) String() string {
	rate := big.NewRat(0, 1)
	rate.Mul(s.satsPerKWU, big.NewRat(blockchain.WitnessScaleFactor, kilo))

	return rate.FloatString(floatStringPrecision) + " sat/vb"
}

// safeUint64ToInt64 converts a uint64 to an int64, capping the value at
// math.MaxInt64 to prevent overflow.
func safeUint64ToInt64(val uint64) int64 {
	if val > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(val)
}
