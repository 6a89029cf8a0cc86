// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain defines the chain backend contracts consumed by the
// transaction composer, inspector, fee estimator and merkle prover, together
// with a btcd RPC implementation of them.
package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// UnspentOutput describes a spendable output observed on chain. It is
// immutable once returned by a backend.
type UnspentOutput struct {
	// Address is the encoded address the output pays to.
	Address string

	// OutPoint is the unique reference to the output.
	OutPoint wire.OutPoint

	// Value is the amount locked in the output.
	Value btcutil.Amount

	// Confirmations is the number of blocks that confirm the output. It is
	// zero for unconfirmed outputs.
	Confirmations int64

	// PkScript is the output script. It may be empty, in which case the
	// script is derived from Address when needed.
	PkScript []byte
}

// FeePriority expresses how quickly a transaction should confirm. Backends
// map each priority to a concrete fee rate.
type FeePriority uint8

const (
	// PriorityLow asks for a rate that confirms eventually.
	PriorityLow FeePriority = iota

	// PriorityMedium asks for a rate that confirms within a few blocks.
	PriorityMedium

	// PriorityHigh asks for a rate that confirms in the next block or two.
	PriorityHigh
)

// String returns the lower case name of the priority.
func (p FeePriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// ParseFeePriority parses one of "low", "medium" or "high".
func ParseFeePriority(s string) (FeePriority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium", "":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
}

// UtxoSource returns the unspent outputs paying to an address.
type UtxoSource interface {
	// UnspentOutputs returns the unspent outputs for the address in the
	// order the backend reports them.
	UnspentOutputs(ctx context.Context,
		addr btcutil.Address) ([]UnspentOutput, error)
}

// TxFetcher returns previously confirmed or mempool transactions.
type TxFetcher interface {
	// FetchTransaction returns the serialized transaction for the hash.
	FetchTransaction(ctx context.Context,
		hash *chainhash.Hash) ([]byte, error)
}

// FeeSource quotes fee rates.
type FeeSource interface {
	// EstimateFeeRate returns a fee rate in satoshis per kilobyte for the
	// given priority.
	EstimateFeeRate(ctx context.Context,
		priority FeePriority) (btcutil.Amount, error)
}

// BlockSource gives access to block level data needed for inclusion proofs.
type BlockSource interface {
	// BlockHeight returns the height of the block that confirms the
	// transaction.
	BlockHeight(ctx context.Context, txHash *chainhash.Hash) (int32, error)

	// BlockHeader returns the header of the block at the height.
	BlockHeader(ctx context.Context, height int32) (*wire.BlockHeader,
		error)

	// BlockTxHashes returns the ordered transaction hashes of the block at
	// the height.
	BlockTxHashes(ctx context.Context, height int32) ([]chainhash.Hash,
		error)
}

// Broadcaster submits signed transactions to the network.
type Broadcaster interface {
	// Broadcast publishes the serialized transaction and returns its hash.
	Broadcast(ctx context.Context, rawTx []byte) (*chainhash.Hash, error)
}

// Interface is the full set of chain operations used by this module.
type Interface interface {
	UtxoSource
	TxFetcher
	FeeSource
	BlockSource
	Broadcaster
}
