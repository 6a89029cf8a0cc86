// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/coinvault/chain"
	"github.com/btcsuite/coinvault/pkg/btcunit"
	"github.com/btcsuite/coinvault/pkg/txerr"
)

// OutputRequest asks for value to be paid to an address.
type OutputRequest struct {
	// Address is the encoded destination address.
	Address string

	// Value is the amount to pay.
	Value btcutil.Amount
}

// String returns the request in the address:value form.
func (o OutputRequest) String() string {
	return fmt.Sprintf("%s:%d", o.Address, int64(o.Value))
}

// ParseOutputRequest parses an output request of the form address:value,
// where value is in satoshis.
func ParseOutputRequest(s string) (OutputRequest, error) {
	addr, value, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || addr == "" {
		return OutputRequest{}, txerr.Newf(txerr.ErrInvalidOutput,
			"output %q is not of the form address:value", s)
	}

	sats, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return OutputRequest{}, txerr.New(
			txerr.ErrInvalidOutput,
			fmt.Sprintf("invalid value in output %q", s), err,
		)
	}

	return OutputRequest{Address: addr, Value: btcutil.Amount(sats)}, nil
}

// TxSkeleton is an unsigned transaction together with the data it was
// composed from. Its amounts always balance:
//
//	sum(Inputs) == sum(Outputs) + Change + EffectiveFee
type TxSkeleton struct {
	// Tx is the unsigned transaction. Inputs and outputs follow the
	// order of Inputs and Outputs, with the change output last.
	Tx *wire.MsgTx

	// Inputs are the outputs spent by Tx.
	Inputs []chain.UnspentOutput

	// Outputs are the requested payments.
	Outputs []OutputRequest

	// ChangeAddress is where change is sent.
	ChangeAddress string

	// ChangeIndex is the position of the change output in Tx, or -1 when
	// no change output was added.
	ChangeIndex int

	// Change is the value of the change output. It is zero when no change
	// output was added.
	Change btcutil.Amount

	// Fee is the fee that was asked for.
	Fee btcutil.Amount

	// EffectiveFee is the fee actually paid, which includes change that
	// was too small to be worth an output.
	EffectiveFee btcutil.Amount
}

// TotalInput returns the value of all inputs.
func (s *TxSkeleton) TotalInput() btcutil.Amount {
	return sumUnspent(s.Inputs)
}

// TotalOutput returns the value of the requested outputs, excluding change.
func (s *TxSkeleton) TotalOutput() btcutil.Amount {
	return sumOutputs(s.Outputs)
}

// Composer assembles unsigned transactions.
type Composer struct {
	cfg *Config
}

// NewComposer returns a Composer for the config.
func NewComposer(cfg *Config) (*Composer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Composer{cfg: cfg}, nil
}

// Compose builds an unsigned transaction spending every input and paying
// every output in the order given. Whatever remains after the outputs and fee
// is paid to changeAddress, unless it is dust, in which case it is added to
// the fee.
func (c *Composer) Compose(inputs []chain.UnspentOutput,
	outputs []OutputRequest, changeAddress string,
	fee btcutil.Amount) (*TxSkeleton, error) {

	if fee < 0 {
		return nil, txerr.Newf(txerr.ErrInvalidOutput,
			"negative fee %v", fee)
	}

	txOuts, err := c.outputScripts(outputs)
	if err != nil {
		return nil, err
	}

	for _, in := range inputs {
		if in.Value < 0 {
			return nil, txerr.Newf(txerr.ErrInvalidOutput,
				"input %v has negative value", in.OutPoint)
		}
	}

	totalIn := sumUnspent(inputs)
	totalOut := sumOutputs(outputs)
	change := totalIn - totalOut - fee
	if change < 0 {
		return nil, txerr.Newf(txerr.ErrNegativeChange,
			"inputs %v do not cover outputs %v plus fee %v",
			totalIn, totalOut, fee)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range inputs {
		outPoint := in.OutPoint
		tx.AddTxIn(wire.NewTxIn(&outPoint, nil, nil))
	}
	for _, txOut := range txOuts {
		tx.AddTxOut(txOut)
	}

	skeleton := &TxSkeleton{
		Tx:            tx,
		Inputs:        inputs,
		Outputs:       outputs,
		ChangeAddress: changeAddress,
		ChangeIndex:   -1,
		Fee:           fee,
		EffectiveFee:  fee,
	}

	if change > 0 {
		changeScript, err := c.addressScript(changeAddress)
		if err != nil {
			return nil, err
		}

		isDust := txrules.IsDustAmount(
			change, len(changeScript), c.cfg.DustRelayFee,
		)
		if isDust {
			log.Debugf("Change %v is dust, adding it to the fee",
				change)

			skeleton.EffectiveFee += change
		} else {
			tx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
			skeleton.ChangeIndex = len(tx.TxOut) - 1
			skeleton.Change = change
		}
	}

	log.Debugf("Composed tx %v: %d inputs, %d outputs, change=%v, fee=%v",
		tx.TxHash(), len(tx.TxIn), len(tx.TxOut), skeleton.Change,
		skeleton.EffectiveFee)

	return skeleton, nil
}

// ComposeWithFeeRate selects inputs from candidates, in order, until they
// cover the outputs plus the fee for the resulting size at feeRate. Change is
// added as the last output when it is not dust.
func (c *Composer) ComposeWithFeeRate(candidates []chain.UnspentOutput,
	outputs []OutputRequest, changeAddress string,
	feeRate btcunit.SatPerKVByte) (*TxSkeleton, error) {

	txOuts, err := c.outputScripts(outputs)
	if err != nil {
		return nil, err
	}

	changeScript, err := c.addressScript(changeAddress)
	if err != nil {
		return nil, err
	}

	resolved := make([]chain.UnspentOutput, 0, len(candidates))
	for _, candidate := range candidates {
		if len(candidate.PkScript) == 0 {
			pkScript, err := c.addressScript(candidate.Address)
			if err != nil {
				return nil, err
			}
			candidate.PkScript = pkScript
		}

		resolved = append(resolved, candidate)
	}

	changeSource := &txauthor.ChangeSource{
		NewScript: func() ([]byte, error) {
			return changeScript, nil
		},
		ScriptSize: len(changeScript),
	}

	authored, err := txauthor.NewUnsignedTransaction(
		txOuts, feeRate.Val(), makeInputSource(resolved), changeSource,
	)
	if err != nil {
		var inputErr txauthor.InputSourceError
		if errors.As(err, &inputErr) {
			return nil, txerr.New(
				txerr.ErrInsufficientFunds,
				"candidates cannot cover outputs and fee", err,
			)
		}

		return nil, err
	}

	skeleton := &TxSkeleton{
		Tx:            authored.Tx,
		Inputs:        resolved[:len(authored.Tx.TxIn)],
		Outputs:       outputs,
		ChangeAddress: changeAddress,
		ChangeIndex:   authored.ChangeIndex,
	}
	if authored.ChangeIndex >= 0 {
		skeleton.Change = btcutil.Amount(
			authored.Tx.TxOut[authored.ChangeIndex].Value,
		)
	}

	skeleton.Fee = authored.TotalInput - sumOutputs(outputs) -
		skeleton.Change
	skeleton.EffectiveFee = skeleton.Fee

	log.Debugf("Composed tx %v at %v: %d inputs, fee=%v",
		authored.Tx.TxHash(), feeRate, len(authored.Tx.TxIn),
		skeleton.Fee)

	return skeleton, nil
}

// outputScripts validates the requests and returns their outputs.
func (c *Composer) outputScripts(outputs []OutputRequest) ([]*wire.TxOut,
	error) {

	txOuts := make([]*wire.TxOut, 0, len(outputs))
	for _, output := range outputs {
		if output.Value <= 0 || output.Value > btcutil.MaxSatoshi {
			return nil, txerr.Newf(txerr.ErrInvalidOutput,
				"output value %d out of range",
				int64(output.Value))
		}

		pkScript, err := c.addressScript(output.Address)
		if err != nil {
			return nil, err
		}

		txOuts = append(txOuts, wire.NewTxOut(
			int64(output.Value), pkScript,
		))
	}

	return txOuts, nil
}

// addressScript returns the output script paying to the encoded address.
func (c *Composer) addressScript(encoded string) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(encoded, c.cfg.ChainParams)
	if err != nil {
		return nil, txerr.New(
			txerr.ErrInvalidOutput,
			fmt.Sprintf("invalid address %q", encoded), err,
		)
	}

	if !addr.IsForNet(c.cfg.ChainParams) {
		return nil, txerr.Newf(txerr.ErrInvalidOutput,
			"address %q is not for %s", encoded,
			c.cfg.ChainParams.Name)
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, txerr.New(
			txerr.ErrInvalidOutput,
			fmt.Sprintf("unsupported address %q", encoded), err,
		)
	}

	return pkScript, nil
}

func sumUnspent(outputs []chain.UnspentOutput) btcutil.Amount {
	var total btcutil.Amount
	for _, output := range outputs {
		total += output.Value
	}

	return total
}

func sumOutputs(outputs []OutputRequest) btcutil.Amount {
	var total btcutil.Amount
	for _, output := range outputs {
		total += output.Value
	}

	return total
}
