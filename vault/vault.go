// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package vault implements incremental signing of transactions spending
// k-of-n multisig outputs. Every signer adds its signature to the slot of its
// key, in any order, and the first signer to reach the threshold compacts the
// input into its final spendable form.
package vault

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/coinvault/multisig"
	"github.com/btcsuite/coinvault/pkg/txerr"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// SignResult is the outcome of SignOneSigner.
type SignResult struct {
	// Tx is the updated transaction.
	Tx *wire.MsgTx

	// Changed reports, per input, whether the signer modified it. Inputs
	// that were already complete or whose redeem script does not contain
	// the signer's key are left untouched.
	Changed []bool
}

// NumChanged returns the number of inputs modified by the signer.
func (r *SignResult) NumChanged() int {
	n := 0
	for _, changed := range r.Changed {
		if changed {
			n++
		}
	}

	return n
}

// Setup returns a copy of tx in which every input carries an unsigned vault
// script for redeemScript. The passed transaction is not modified.
func Setup(tx *wire.MsgTx, redeemScript []byte) (*wire.MsgTx, error) {
	script, err := multisig.ParseRedeemScript(redeemScript)
	if err != nil {
		return nil, err
	}

	sigScript, err := newInputScript(script, redeemScript).SigScript()
	if err != nil {
		return nil, err
	}

	result := tx.Copy()
	for _, txIn := range result.TxIn {
		txIn.SignatureScript = sigScript
	}

	log.Debugf("Set up %d-of-%d vault script on %d inputs of %v",
		script.Required, script.NumKeys(), len(result.TxIn),
		result.TxHash())

	return result, nil
}

// SignOneSigner adds the signature of privKey to every input whose redeem
// script contains its public key. The passed transaction is not modified.
//
// Signatures commit to the redeem script of the input being signed and not
// to the scriptSigs of other inputs, so signers may apply their signatures in
// any order and arrive at the same transaction.
func SignOneSigner(tx *wire.MsgTx, privKey *btcec.PrivateKey,
	signer Signer) (*SignResult, error) {

	if signer == nil {
		signer = TxScriptSigner{}
	}

	pubKey := privKey.PubKey()
	result := &SignResult{
		Tx:      tx.Copy(),
		Changed: make([]bool, len(tx.TxIn)),
	}

	for i, txIn := range result.Tx.TxIn {
		input, err := ParseInputScript(txIn.SignatureScript)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}

		changed, err := signInput(tx, i, input, pubKey, privKey, signer)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if !changed {
			continue
		}

		sigScript, err := input.SigScript()
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}

		txIn.SignatureScript = sigScript
		result.Changed[i] = true

		log.Debugf("Input %d of %v now %v with %d/%d signatures", i,
			tx.TxHash(), input.State(), input.NumSignatures(),
			input.Script.Required)
	}

	log.Tracef("Signed vault tx: %v", spew.Sdump(result.Changed))

	return result, nil
}

// signInput updates input with the signature of privKey and reports whether
// anything changed.
func signInput(tx *wire.MsgTx, idx int, input *InputScript,
	pubKey *btcec.PublicKey, privKey *btcec.PrivateKey,
	signer Signer) (bool, error) {

	// Compacted inputs are final.
	if input.Slots == nil {
		return false, nil
	}

	// A slot layout that already holds enough signatures only needs to be
	// compacted. With k == n both layouts are the same bytes.
	if input.State() == StateComplete {
		if input.Script.Required == input.Script.NumKeys() {
			return false, nil
		}

		input.compact()
		return true, nil
	}

	slot := input.Script.IndexOf(pubKey)
	if slot < 0 || input.Slots[slot].IsSome() {
		return false, nil
	}

	sig, err := signer.SignInput(tx, idx, input.RedeemScript, privKey)
	if err != nil {
		return false, txerr.Collaborator("sign input", err)
	}

	input.Slots[slot] = fn.Some(sig)
	if input.State() == StateComplete {
		input.compact()
	}

	return true, nil
}

// InputStates returns the signing state of every input of tx.
func InputStates(tx *wire.MsgTx) ([]State, error) {
	states := make([]State, 0, len(tx.TxIn))
	for i, txIn := range tx.TxIn {
		input, err := ParseInputScript(txIn.SignatureScript)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}

		states = append(states, input.State())
	}

	return states, nil
}

// IsComplete reports whether every input of tx is fully signed.
func IsComplete(tx *wire.MsgTx) (bool, error) {
	states, err := InputStates(tx)
	if err != nil {
		return false, err
	}

	for _, state := range states {
		if state != StateComplete {
			return false, nil
		}
	}

	return true, nil
}

// Validate executes the scripts of every input against the outputs they
// spend.
func Validate(tx *wire.MsgTx, prevOuts txscript.PrevOutputFetcher) error {
	hashCache := txscript.NewTxSigHashes(tx, prevOuts)

	for i, txIn := range tx.TxIn {
		prevOut := prevOuts.FetchPrevOutput(txIn.PreviousOutPoint)
		if prevOut == nil {
			return txerr.Newf(txerr.ErrUnresolvableInput,
				"missing previous output %v", txIn.PreviousOutPoint)
		}

		vm, err := txscript.NewEngine(
			prevOut.PkScript, tx, i, txscript.StandardVerifyFlags,
			nil, hashCache, prevOut.Value, prevOuts,
		)
		if err == nil {
			err = vm.Execute()
		}
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}

	return nil
}
