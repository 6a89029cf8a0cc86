// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/btcsuite/coinvault/chain"
	"github.com/btcsuite/coinvault/pkg/btcunit"
	"github.com/btcsuite/coinvault/pkg/txerr"
)

// txOverheadSize approximates the version, locktime and count fields.
const txOverheadSize = 10

// EstimateSizeFromSkeleton approximates the signed size of tx from its input
// and output counts alone, assuming every input is a P2PKH spend and every
// output a P2PKH output. It is not the exact serialized size.
func EstimateSizeFromSkeleton(tx *wire.MsgTx) btcunit.VByte {
	size := txOverheadSize +
		txsizes.RedeemP2PKHInputSize*len(tx.TxIn) +
		txsizes.P2PKHOutputSize*len(tx.TxOut)

	return btcunit.NewVByte(uint64(size))
}

// EstimateSizeFromBytes is EstimateSizeFromSkeleton for a serialized
// transaction.
func EstimateSizeFromBytes(raw []byte) (btcunit.VByte, error) {
	tx, err := DeserializeTx(raw)
	if err != nil {
		return btcunit.VByte{}, err
	}

	return EstimateSizeFromSkeleton(tx), nil
}

// TxSize returns the exact serialized size of tx.
func TxSize(tx *wire.MsgTx) btcunit.VByte {
	return btcunit.NewVByte(uint64(tx.SerializeSize()))
}

// TxVirtualSize returns the virtual size of tx as used for fee rates.
func TxVirtualSize(tx *wire.MsgTx) btcunit.VByte {
	weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx))
	return btcunit.NewWeightUnit(uint64(weight)).ToVB()
}

// EstimateFee returns the fee for the estimated size of tx at rate, rounded
// up to the next satoshi.
func EstimateFee(tx *wire.MsgTx, rate btcunit.SatPerKVByte) btcutil.Amount {
	return rate.FeeForVByteRoundUp(EstimateSizeFromSkeleton(tx))
}

// FeeEstimator prices transactions at the rates quoted by a fee source.
type FeeEstimator struct {
	source chain.FeeSource
}

// NewFeeEstimator returns a FeeEstimator using source for rates.
func NewFeeEstimator(source chain.FeeSource) *FeeEstimator {
	return &FeeEstimator{source: source}
}

// FeeRate returns the rate the source quotes for the priority.
func (f *FeeEstimator) FeeRate(ctx context.Context,
	priority chain.FeePriority) (btcunit.SatPerKVByte, error) {

	rate, err := f.source.EstimateFeeRate(ctx, priority)
	if err != nil {
		return btcunit.SatPerKVByte{}, collaboratorErr(
			"estimate fee rate", err,
		)
	}

	if rate < 0 {
		return btcunit.SatPerKVByte{}, txerr.Newf(
			txerr.ErrCollaboratorFailure,
			"fee source returned negative rate %v", rate,
		)
	}

	return btcunit.NewSatPerKVByte(rate), nil
}

// RealtimeFee returns the fee for tx at the rate currently quoted for the
// priority.
func (f *FeeEstimator) RealtimeFee(ctx context.Context, tx *wire.MsgTx,
	priority chain.FeePriority) (btcutil.Amount, error) {

	rate, err := f.FeeRate(ctx, priority)
	if err != nil {
		return 0, err
	}

	fee := EstimateFee(tx, rate)

	log.Debugf("Fee for %v at %v (%v): %v", EstimateSizeFromSkeleton(tx),
		rate, priority, fee)

	return fee, nil
}
