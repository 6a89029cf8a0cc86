// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import "errors"

var (
	// ErrUnknownPriority is returned when a fee priority string cannot be
	// parsed.
	ErrUnknownPriority = errors.New("unknown fee priority")

	// ErrNoFeeEstimate is returned when the backend has not gathered
	// enough data to estimate a fee rate.
	ErrNoFeeEstimate = errors.New("no fee estimate available")

	// ErrTxUnconfirmed is returned when a block height is requested for a
	// transaction that is not yet in a block.
	ErrTxUnconfirmed = errors.New("transaction not confirmed")
)
