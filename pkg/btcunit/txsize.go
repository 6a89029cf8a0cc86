// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
)

// baseUnit stores the canonical representation of a transaction size, which is
// weight units (wu). All other size units are derived from this.
type baseUnit struct {
	wu uint64
}

// ToWU converts the unit to a WeightUnit.
func (b baseUnit) ToWU() WeightUnit {
	return WeightUnit{b}
}

// ToVB converts the unit to a VByte.
func (b baseUnit) ToVB() VByte {
	return VByte{b}
}

// ToKVB converts the unit to a KVByte.
func (b baseUnit) ToKVB() KVByte {
	return KVByte{b}
}

// WeightUnit defines a unit to express the transaction size. For the legacy
// transactions built by this module, which carry no witness data, the weight
// is always four times the serialized size.
type WeightUnit struct {
	// The internal size is recorded in weight units.
	baseUnit
}

// NewWeightUnit creates a new WeightUnit from a uint64 value.
func NewWeightUnit(val uint64) WeightUnit {
	return WeightUnit{baseUnit{wu: val}}
}

// String returns the string representation of the weight unit.
func (w WeightUnit) String() string {
	return fmt.Sprintf("%d wu", w.wu)
}

// VByte defines a unit to express the transaction size. One virtual byte is
// 1/4th of a weight unit. Without witness data a virtual byte is exactly one
// serialized byte.
type VByte struct {
	// The internal size is recorded in weight units.
	baseUnit
}

// NewVByte creates a new VByte from a uint64 value.
func NewVByte(val uint64) VByte {
	return VByte{baseUnit{wu: val * blockchain.WitnessScaleFactor}}
}

// Val returns the size in whole virtual bytes, rounding up any fractional
// remainder.
func (v VByte) Val() uint64 {
	return (v.wu + blockchain.WitnessScaleFactor - 1) /
		blockchain.WitnessScaleFactor
}

// Add returns the sum of two sizes.
func (v VByte) Add(other VByte) VByte {
	return VByte{baseUnit{wu: v.wu + other.wu}}
}

// String returns the string representation of the virtual byte.
func (v VByte) String() string {
	return fmt.Sprintf("%d vb", v.Val())
}

// KVByte defines a unit to express the transaction size in kilo-virtual-bytes.
type KVByte struct {
	// The internal size is recorded in weight units.
	baseUnit
}

// NewKVByte creates a new KVByte from a uint64.
func NewKVByte(val uint64) KVByte {
	return KVByte{baseUnit{wu: val * kilo * blockchain.WitnessScaleFactor}}
}

// Float returns the size in kilo-virtual-bytes, including the fractional
// part.
func (k KVByte) Float() float64 {
	return float64(k.wu) / float64(kilo*blockchain.WitnessScaleFactor)
}

// String returns the string representation of the kilo-virtual-byte with
// three decimal places, so sub-kilobyte transactions are not shown as zero.
func (k KVByte) String() string {
	return fmt.Sprintf("%.*f kvb", floatStringPrecision, k.Float())
}
