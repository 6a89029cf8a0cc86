// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/coinvault/chain"
	"github.com/btcsuite/coinvault/pkg/txerr"
)

// DefaultFee is the flat fee in satoshis used when a caller does not choose
// one.
const DefaultFee btcutil.Amount = 10_000

var (
	// ErrNoTxOutputs is returned when a transaction is prepared without
	// any outputs.
	ErrNoTxOutputs = errors.New("tx has no outputs")

	// ErrNilKey is returned when a nil WIF key is supplied.
	ErrNilKey = errors.New("nil private key")
)

// TxCreator prepares, signs and sends transactions paying from a single
// address. Inputs are taken from the address's unspent outputs, arranged by
// the configured coin selection strategy, and change is sent back to the
// same address.
type TxCreator struct {
	cfg      *Config
	chain    chain.Interface
	composer *Composer
}

// NewTxCreator returns a TxCreator backed by the chain backend.
func NewTxCreator(cfg *Config, backend chain.Interface) (*TxCreator, error) {
	composer, err := NewComposer(cfg)
	if err != nil {
		return nil, err
	}

	if backend == nil {
		return nil, errors.New("chain backend cannot be nil")
	}

	return &TxCreator{
		cfg:      cfg,
		chain:    backend,
		composer: composer,
	}, nil
}

// PrepareMultiTx builds an unsigned transaction paying outputs from the
// unspent outputs of from, with the given flat fee.
func (t *TxCreator) PrepareMultiTx(ctx context.Context, from btcutil.Address,
	outputs []OutputRequest, fee btcutil.Amount) (*TxSkeleton, error) {

	if len(outputs) == 0 {
		return nil, ErrNoTxOutputs
	}

	if fee < 0 {
		return nil, txerr.Newf(txerr.ErrInvalidOutput,
			"negative fee %v", fee)
	}

	// Reject bad requests before the target is computed from them.
	if _, err := t.composer.outputScripts(outputs); err != nil {
		return nil, err
	}

	utxos, err := t.chain.UnspentOutputs(ctx, from)
	if err != nil {
		return nil, collaboratorErr("list unspent outputs", err)
	}

	arranged, err := arrangeCoins(t.cfg.CoinSelection, utxos)
	if err != nil {
		return nil, err
	}

	target := sumOutputs(outputs) + fee
	selected, err := SelectCoins(arranged, target)
	if err != nil {
		return nil, err
	}

	return t.composer.Compose(selected, outputs, from.EncodeAddress(), fee)
}

// PrepareMultiTxFromKey is PrepareMultiTx for the P2PKH address of the key.
// Both entry points produce identical transactions for the same address.
func (t *TxCreator) PrepareMultiTxFromKey(ctx context.Context,
	wif *btcutil.WIF, outputs []OutputRequest,
	fee btcutil.Amount) (*TxSkeleton, error) {

	from, err := t.keyAddress(wif)
	if err != nil {
		return nil, err
	}

	return t.PrepareMultiTx(ctx, from, outputs, fee)
}

// PrepareTx builds an unsigned transaction paying value to a single address.
func (t *TxCreator) PrepareTx(ctx context.Context, from btcutil.Address,
	to string, value, fee btcutil.Amount) (*TxSkeleton, error) {

	return t.PrepareMultiTx(ctx, from, []OutputRequest{{
		Address: to,
		Value:   value,
	}}, fee)
}

// SignAll signs every input of the skeleton as a P2PKH spend by the key. The
// skeleton transaction is updated in place.
func (t *TxCreator) SignAll(skeleton *TxSkeleton, wif *btcutil.WIF) error {
	from, err := t.keyAddress(wif)
	if err != nil {
		return err
	}

	pkScript, err := txscript.PayToAddrScript(from)
	if err != nil {
		return err
	}

	for i, txIn := range skeleton.Tx.TxIn {
		sigScript, err := txscript.SignatureScript(
			skeleton.Tx, i, pkScript, txscript.SigHashAll,
			wif.PrivKey, wif.CompressPubKey,
		)
		if err != nil {
			return txerr.Collaborator(
				fmt.Sprintf("sign input %d", i), err,
			)
		}

		txIn.SignatureScript = sigScript
	}

	return nil
}

// SendMultiTx prepares a transaction paying outputs from the key's address,
// signs it and broadcasts it.
func (t *TxCreator) SendMultiTx(ctx context.Context, wif *btcutil.WIF,
	outputs []OutputRequest, fee btcutil.Amount) (*chainhash.Hash, error) {

	skeleton, err := t.PrepareMultiTxFromKey(ctx, wif, outputs, fee)
	if err != nil {
		return nil, err
	}

	if err := t.SignAll(skeleton, wif); err != nil {
		return nil, err
	}

	return t.Publish(ctx, skeleton.Tx)
}

// Send pays value to a single address from the key's address.
func (t *TxCreator) Send(ctx context.Context, wif *btcutil.WIF, to string,
	value, fee btcutil.Amount) (*chainhash.Hash, error) {

	return t.SendMultiTx(ctx, wif, []OutputRequest{{
		Address: to,
		Value:   value,
	}}, fee)
}

// keyAddress returns the P2PKH address of the key on the configured
// network.
func (t *TxCreator) keyAddress(wif *btcutil.WIF) (*btcutil.AddressPubKeyHash,
	error) {

	if wif == nil {
		return nil, ErrNilKey
	}

	if !wif.IsForNet(t.cfg.ChainParams) {
		return nil, fmt.Errorf("key is not for %s",
			t.cfg.ChainParams.Name)
	}

	return btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(wif.SerializePubKey()), t.cfg.ChainParams,
	)
}

// collaboratorErr tags err as a collaborator failure unless the
// collaborator already did.
func collaboratorErr(op string, err error) error {
	if txerr.IsError(err, txerr.ErrCollaboratorFailure) {
		return err
	}

	return txerr.Collaborator(op, err)
}
