// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Signer produces the signature of one transaction input over its redeem
// script.
type Signer interface {
	SignInput(tx *wire.MsgTx, idx int, subScript []byte,
		privKey *btcec.PrivateKey) ([]byte, error)
}

// TxScriptSigner signs legacy inputs with deterministic RFC 6979 ECDSA
// signatures, so signing the same input twice yields the same bytes.
type TxScriptSigner struct {
	// HashType is appended to every signature. The zero value selects
	// SigHashAll.
	HashType txscript.SigHashType
}

// A compile-time assertion to ensure TxScriptSigner implements Signer.
var _ Signer = TxScriptSigner{}

// SignInput returns the DER signature with the hash type appended.
func (s TxScriptSigner) SignInput(tx *wire.MsgTx, idx int, subScript []byte,
	privKey *btcec.PrivateKey) ([]byte, error) {

	hashType := s.HashType
	if hashType == 0 {
		hashType = txscript.SigHashAll
	}

	return txscript.RawTxInSignature(tx, idx, subScript, hashType, privKey)
}
