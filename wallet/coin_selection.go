// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/coinvault/chain"
	"github.com/btcsuite/coinvault/pkg/txerr"
)

// CoinSelectionStrategy orders candidate outputs before they are handed to
// SelectCoins. Implementations must be deterministic and must not modify the
// passed slice.
type CoinSelectionStrategy interface {
	// ArrangeCoins returns the candidates in the order they should be
	// considered for selection.
	ArrangeCoins(eligible []chain.UnspentOutput) ([]chain.UnspentOutput,
		error)
}

var (
	// CoinSelectionLargest considers the largest outputs first, which
	// keeps the number of inputs low.
	CoinSelectionLargest CoinSelectionStrategy = &LargestFirstCoinSelector{}

	// CoinSelectionOldest considers the most confirmed outputs first.
	CoinSelectionOldest CoinSelectionStrategy = &OldestFirstCoinSelector{}
)

// SelectCoins returns the shortest prefix of candidates whose total value is
// at least target. The candidates are used in the order given. If the whole
// list does not reach target, ErrInsufficientFunds is returned rather than a
// partial selection.
func SelectCoins(candidates []chain.UnspentOutput,
	target btcutil.Amount) ([]chain.UnspentOutput, error) {

	var (
		total btcutil.Amount
		n     int
	)
	for n < len(candidates) && total < target {
		total += candidates[n].Value
		n++
	}

	if total < target {
		return nil, txerr.Newf(txerr.ErrInsufficientFunds,
			"need %v, have %v in %d outputs", target, total,
			len(candidates))
	}

	log.Debugf("Selected %d of %d outputs worth %v for target %v", n,
		len(candidates), total, target)

	return candidates[:n:n], nil
}

// arrangeCoins applies strategy to candidates, keeping their order when no
// strategy is set.
func arrangeCoins(strategy CoinSelectionStrategy,
	candidates []chain.UnspentOutput) ([]chain.UnspentOutput, error) {

	if strategy == nil {
		return candidates, nil
	}

	return strategy.ArrangeCoins(candidates)
}

// makeInputSource returns a txauthor input source that consumes candidates
// in order until the requested target is reached.
func makeInputSource(candidates []chain.UnspentOutput) txauthor.InputSource {
	// Current inputs and their total value. These are closed over by the
	// returned input source and reused across multiple calls.
	currentTotal := btcutil.Amount(0)
	currentInputs := make([]*wire.TxIn, 0, len(candidates))
	currentScripts := make([][]byte, 0, len(candidates))
	currentInputValues := make([]btcutil.Amount, 0, len(candidates))

	return func(target btcutil.Amount) (btcutil.Amount, []*wire.TxIn,
		[]btcutil.Amount, [][]byte, error) {

		for currentTotal < target && len(candidates) != 0 {
			next := candidates[0]
			outpoint := next.OutPoint
			candidates = candidates[1:]

			nextInput := wire.NewTxIn(&outpoint, nil, nil)
			currentTotal += next.Value

			currentInputs = append(currentInputs, nextInput)
			currentScripts = append(currentScripts, next.PkScript)
			currentInputValues = append(
				currentInputValues, next.Value,
			)
		}

		return currentTotal, currentInputs, currentInputValues,
			currentScripts, nil
	}
}

// LargestFirstCoinSelector is an implementation of the CoinSelectionStrategy
// that always selects the largest coins first. Outputs of equal value keep
// their relative order.
type LargestFirstCoinSelector struct{}

// ArrangeCoins returns a copy of eligible sorted by descending value.
func (*LargestFirstCoinSelector) ArrangeCoins(
	eligible []chain.UnspentOutput) ([]chain.UnspentOutput, error) {

	arranged := make([]chain.UnspentOutput, len(eligible))
	copy(arranged, eligible)

	sort.SliceStable(arranged, func(i, j int) bool {
		return arranged[i].Value > arranged[j].Value
	})

	return arranged, nil
}

// OldestFirstCoinSelector is an implementation of the CoinSelectionStrategy
// that selects the most confirmed coins first. Outputs with equal
// confirmations keep their relative order.
type OldestFirstCoinSelector struct{}

// ArrangeCoins returns a copy of eligible sorted by descending
// confirmations.
func (*OldestFirstCoinSelector) ArrangeCoins(
	eligible []chain.UnspentOutput) ([]chain.UnspentOutput, error) {

	arranged := make([]chain.UnspentOutput, len(eligible))
	copy(arranged, eligible)

	sort.SliceStable(arranged, func(i, j int) bool {
		return arranged[i].Confirmations > arranged[j].Confirmations
	})

	return arranged, nil
}
