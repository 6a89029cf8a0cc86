// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ExportPacket converts a vault transaction into a PSBT packet so that
// signers outside this package can contribute signatures. Every input
// carries its redeem script. Signatures of an input still in slot layout
// are exported as partial signatures keyed by the slot's public key, while a
// compacted input is exported as a finalized script sig.
func ExportPacket(tx *wire.MsgTx) (*psbt.Packet, error) {
	unsigned := tx.Copy()
	for _, txIn := range unsigned.TxIn {
		txIn.SignatureScript = nil
	}

	packet, err := psbt.NewFromUnsignedTx(unsigned)
	if err != nil {
		return nil, err
	}

	for i, txIn := range tx.TxIn {
		input, err := ParseInputScript(txIn.SignatureScript)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}

		pInput := &packet.Inputs[i]
		pInput.RedeemScript = input.RedeemScript
		pInput.SighashType = txscript.SigHashAll

		if input.Slots == nil {
			pInput.FinalScriptSig = txIn.SignatureScript
			continue
		}

		for slot, sig := range input.Slots {
			sig.WhenSome(func(sig []byte) {
				pInput.PartialSigs = append(
					pInput.PartialSigs, &psbt.PartialSig{
						PubKey:    input.Script.PubKeys[slot],
						Signature: sig,
					},
				)
			})
		}
	}

	if err := packet.SanityCheck(); err != nil {
		return nil, err
	}

	return packet, nil
}
