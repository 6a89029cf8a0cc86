// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/coinvault/chain"
	"github.com/btcsuite/coinvault/pkg/txerr"
)

// scriptKeyPrefix prefixes the hex script used as the key of outputs that do
// not pay to exactly one address.
const scriptKeyPrefix = "script:"

// InspectedOutput describes one output of an inspected transaction.
type InspectedOutput struct {
	// Address is the destination address, or script:<hex> when the
	// script does not pay to exactly one address.
	Address string

	// Value is the amount paid.
	Value btcutil.Amount

	// Class is the script class of the output.
	Class txscript.ScriptClass
}

// InspectionResult summarizes where the value of a transaction comes from
// and goes to.
type InspectionResult struct {
	// Fee is the total input value minus the total output value. A
	// negative fee means the transaction is invalid.
	Fee btcutil.Amount

	// TotalInput is the value of all previous outputs spent.
	TotalInput btcutil.Amount

	// TotalOutput is the value of all outputs.
	TotalOutput btcutil.Amount

	// Outputs lists the outputs in transaction order.
	Outputs []InspectedOutput

	// InputsByAddress accumulates spent value per funding address.
	InputsByAddress map[string]btcutil.Amount
}

// Inspector resolves the inputs of transactions through a chain backend.
type Inspector struct {
	fetcher chain.TxFetcher
	params  *chaincfg.Params
}

// NewInspector returns an Inspector that decodes addresses for params.
func NewInspector(fetcher chain.TxFetcher,
	params *chaincfg.Params) *Inspector {

	return &Inspector{
		fetcher: fetcher,
		params:  params,
	}
}

// InspectRaw decodes raw and inspects it.
func (i *Inspector) InspectRaw(ctx context.Context,
	raw []byte) (*InspectionResult, error) {

	tx, err := DeserializeTx(raw)
	if err != nil {
		return nil, err
	}

	return i.Inspect(ctx, tx)
}

// Inspect resolves every input of tx to the output it spends and reports
// the value flow. Any input that cannot be resolved fails the whole call with
// ErrUnresolvableInput.
func (i *Inspector) Inspect(ctx context.Context,
	tx *wire.MsgTx) (*InspectionResult, error) {

	result := &InspectionResult{
		Outputs:         make([]InspectedOutput, 0, len(tx.TxOut)),
		InputsByAddress: make(map[string]btcutil.Amount),
	}

	prevTxns := make(map[chainhash.Hash]*wire.MsgTx)
	for idx, txIn := range tx.TxIn {
		prevOut, err := i.resolve(ctx, prevTxns, txIn.PreviousOutPoint)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", idx, err)
		}

		addr := i.scriptKey(prevOut.PkScript)
		result.InputsByAddress[addr] += btcutil.Amount(prevOut.Value)
		result.TotalInput += btcutil.Amount(prevOut.Value)
	}

	for _, txOut := range tx.TxOut {
		result.Outputs = append(result.Outputs, InspectedOutput{
			Address: i.scriptKey(txOut.PkScript),
			Value:   btcutil.Amount(txOut.Value),
			Class:   txscript.GetScriptClass(txOut.PkScript),
		})
		result.TotalOutput += btcutil.Amount(txOut.Value)
	}

	result.Fee = result.TotalInput - result.TotalOutput
	if result.Fee < 0 {
		log.Warnf("Tx %v spends %v more than its inputs", tx.TxHash(),
			-result.Fee)
	}

	return result, nil
}

// resolve returns the output referenced by outPoint, fetching each previous
// transaction at most once.
func (i *Inspector) resolve(ctx context.Context,
	cache map[chainhash.Hash]*wire.MsgTx,
	outPoint wire.OutPoint) (*wire.TxOut, error) {

	prevTx, ok := cache[outPoint.Hash]
	if !ok {
		raw, err := i.fetcher.FetchTransaction(ctx, &outPoint.Hash)
		if err != nil {
			return nil, txerr.New(
				txerr.ErrUnresolvableInput,
				fmt.Sprintf("unable to fetch %v", outPoint.Hash),
				collaboratorErr("fetch transaction", err),
			)
		}

		if len(raw) == 0 {
			return nil, txerr.Newf(txerr.ErrUnresolvableInput,
				"previous tx %v not found", outPoint.Hash)
		}

		prevTx, err = DeserializeTx(raw)
		if err != nil {
			return nil, txerr.New(
				txerr.ErrUnresolvableInput,
				fmt.Sprintf("unable to decode %v", outPoint.Hash),
				err,
			)
		}

		cache[outPoint.Hash] = prevTx
	}

	if outPoint.Index >= uint32(len(prevTx.TxOut)) {
		return nil, txerr.Newf(txerr.ErrUnresolvableInput,
			"output index %d out of range for %v with %d outputs",
			outPoint.Index, outPoint.Hash, len(prevTx.TxOut))
	}

	return prevTx.TxOut[outPoint.Index], nil
}

// scriptKey returns the address the script pays to, or script:<hex> when it
// does not pay to exactly one address.
func (i *Inspector) scriptKey(pkScript []byte) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, i.params)
	if err == nil && len(addrs) == 1 {
		return addrs[0].EncodeAddress()
	}

	return scriptKeyPrefix + hex.EncodeToString(pkScript)
}
