// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

// Publish serializes the transaction and hands it to the chain backend.
func (t *TxCreator) Publish(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	rawTx, err := SerializeTx(tx)
	if err != nil {
		return nil, err
	}

	txid := tx.TxHash()

	const maxTxSizeForLog = 1_000_000
	if len(rawTx) < maxTxSizeForLog {
		log.Debugf("Publishing tx %v \n hex=%x", newLogClosure(
			func() string {
				return spew.Sdump(tx)
			}), rawTx)
	} else {
		log.Debugf("Publishing tx %v", txid)
	}

	hash, err := t.chain.Broadcast(ctx, rawTx)
	if err != nil {
		log.Errorf("%v: broadcast failed: %v", txid, err)
		return nil, collaboratorErr("broadcast", err)
	}

	if *hash != txid {
		return nil, fmt.Errorf("backend reported txid %v for %v",
			hash, txid)
	}

	log.Infof("Published tx %v", txid)

	return hash, nil
}
