// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet selects coins for, composes, inspects, prices and proves
// bitcoin transactions against a chain backend.
package wallet

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/wallet/txrules"
)

var (
	// ErrMissingParams is returned when a Config has no chain params.
	ErrMissingParams = errors.New("chain params cannot be nil")

	// ErrNegativeRelayFee is returned when the dust relay fee is negative.
	ErrNegativeRelayFee = errors.New("dust relay fee cannot be negative")
)

// Config holds the settings shared by the composer and the send flows.
type Config struct {
	// ChainParams selects the network addresses are decoded for.
	ChainParams *chaincfg.Params

	// DustRelayFee is the relay fee in satoshis per kilobyte used to
	// decide whether a change output is dust. Zero keeps any positive
	// change.
	DustRelayFee btcutil.Amount

	// CoinSelection arranges candidate outputs before the minimal prefix
	// is selected. A nil strategy keeps the backend order.
	CoinSelection CoinSelectionStrategy
}

// DefaultConfig returns the configuration used when no overrides are given.
func DefaultConfig(params *chaincfg.Params) *Config {
	return &Config{
		ChainParams:  params,
		DustRelayFee: txrules.DefaultRelayFeePerKb,
	}
}

// validate checks the config for sanity.
func (c *Config) validate() error {
	if c == nil {
		return errors.New("wallet config cannot be nil")
	}

	if c.ChainParams == nil {
		return ErrMissingParams
	}

	if c.DustRelayFee < 0 {
		return ErrNegativeRelayFee
	}

	return nil
}
