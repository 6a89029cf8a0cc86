// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/coinvault/chain"
	"github.com/btcsuite/coinvault/wallet"
)

// withChain connects to the chain backend for the duration of fn. The
// context is canceled on interrupt.
func (a *app) withChain(fn func(context.Context,
	*chain.BtcdClient) error) error {

	client, err := a.cfg.newChainClient()
	if err != nil {
		return err
	}
	defer client.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return fn(ctx, client)
}

// newTxCreator returns a TxCreator for the configured network over backend.
func (a *app) newTxCreator(backend chain.Interface) (*wallet.TxCreator,
	error) {

	cfg, err := a.cfg.walletConfig()
	if err != nil {
		return nil, err
	}

	return wallet.NewTxCreator(cfg, backend)
}

type inspectCommand struct {
	Args struct {
		Tx string `positional-arg-name:"tx" required:"yes"`
	} `positional-args:"yes"`

	app *app
}

func (c *inspectCommand) Execute(_ []string) error {
	raw, err := decodeHex("transaction", c.Args.Tx)
	if err != nil {
		return err
	}

	params, err := c.app.cfg.chainParams()
	if err != nil {
		return err
	}

	return c.app.withChain(func(ctx context.Context,
		client *chain.BtcdClient) error {

		result, err := wallet.NewInspector(client, params).InspectRaw(
			ctx, raw,
		)
		if err != nil {
			return err
		}

		out := c.app.out
		fmt.Fprintf(out, "input  %v\n", result.TotalInput)
		fmt.Fprintf(out, "output %v\n", result.TotalOutput)
		fmt.Fprintf(out, "fee    %v\n", result.Fee)

		addrs := make([]string, 0, len(result.InputsByAddress))
		for addr := range result.InputsByAddress {
			addrs = append(addrs, addr)
		}
		sort.Strings(addrs)

		for _, addr := range addrs {
			fmt.Fprintf(out, "from %s %v\n", addr,
				result.InputsByAddress[addr])
		}

		for i, output := range result.Outputs {
			fmt.Fprintf(out, "to %d %s %v %v\n", i, output.Address,
				output.Value, output.Class)
		}

		return nil
	})
}

// paymentArgs are the options shared by prepare and send.
type paymentArgs struct {
	To  []string `long:"to" required:"true" description:"Output as address:satoshis; may be repeated"`
	Fee int64    `long:"fee" default:"10000" description:"Absolute fee in satoshis"`
}

// outputs parses the requested outputs.
func (p *paymentArgs) outputs() ([]wallet.OutputRequest, error) {
	return parseOutputs(p.To)
}

type prepareCommand struct {
	paymentArgs

	From string `long:"from" required:"true" description:"Address whose outputs are spent and which receives change"`

	app *app
}

func (c *prepareCommand) Execute(_ []string) error {
	params, err := c.app.cfg.chainParams()
	if err != nil {
		return err
	}

	from, err := btcutil.DecodeAddress(c.From, params)
	if err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}

	outputs, err := c.outputs()
	if err != nil {
		return err
	}

	return c.app.withChain(func(ctx context.Context,
		client *chain.BtcdClient) error {

		creator, err := c.app.newTxCreator(client)
		if err != nil {
			return err
		}

		skeleton, err := creator.PrepareMultiTx(
			ctx, from, outputs, btcutil.Amount(c.Fee),
		)
		if err != nil {
			return err
		}

		log.Infof("Prepared tx spending %d inputs (%v) with fee %v",
			len(skeleton.Inputs), skeleton.TotalInput(),
			skeleton.EffectiveFee)

		return printTx(c.app, skeleton.Tx)
	})
}

type sendCommand struct {
	paymentArgs

	WIF string `long:"wif" description:"Private key in WIF; read from the terminal when omitted"`

	app *app
}

func (c *sendCommand) Execute(_ []string) error {
	outputs, err := c.outputs()
	if err != nil {
		return err
	}

	wif, err := c.app.readWIF(c.WIF)
	if err != nil {
		return err
	}

	return c.app.withChain(func(ctx context.Context,
		client *chain.BtcdClient) error {

		creator, err := c.app.newTxCreator(client)
		if err != nil {
			return err
		}

		txid, err := creator.SendMultiTx(
			ctx, wif, outputs, btcutil.Amount(c.Fee),
		)
		if err != nil {
			return err
		}

		fmt.Fprintln(c.app.out, txid)

		return nil
	})
}

type feeCommand struct {
	Priority string `long:"priority" default:"medium" choice:"low" choice:"medium" choice:"high" description:"Confirmation priority"`
	Tx       string `long:"tx" description:"Hex encoded transaction to price at the quoted rate"`

	app *app
}

func (c *feeCommand) Execute(_ []string) error {
	priority, err := chain.ParseFeePriority(c.Priority)
	if err != nil {
		return err
	}

	return c.app.withChain(func(ctx context.Context,
		client *chain.BtcdClient) error {

		estimator := wallet.NewFeeEstimator(client)

		rate, err := estimator.FeeRate(ctx, priority)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.app.out, "rate %v\n", rate)

		if c.Tx == "" {
			return nil
		}

		tx, err := wallet.DecodeTxHex(c.Tx)
		if err != nil {
			return err
		}

		fee, err := estimator.RealtimeFee(ctx, tx, priority)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.app.out, "size %v\n",
			wallet.EstimateSizeFromSkeleton(tx))
		fmt.Fprintf(c.app.out, "fee  %v\n", fee)

		return nil
	})
}

type merkleProofCommand struct {
	Args struct {
		TxID string `positional-arg-name:"txid" required:"yes"`
	} `positional-args:"yes"`

	app *app
}

func (c *merkleProofCommand) Execute(_ []string) error {
	txHash, err := chainhash.NewHashFromStr(c.Args.TxID)
	if err != nil {
		return fmt.Errorf("invalid txid: %w", err)
	}

	return c.app.withChain(func(ctx context.Context,
		client *chain.BtcdClient) error {

		proof, err := wallet.NewMerkleProver(client).Prove(ctx, txHash)
		if err != nil {
			return err
		}

		out := c.app.out
		fmt.Fprintf(out, "block  %v (height %d)\n",
			proof.Header.BlockHash(), proof.BlockHeight)
		fmt.Fprintf(out, "root   %v\n", proof.Header.MerkleRoot)
		fmt.Fprintf(out, "index  %d\n", proof.LeafIndex)
		for _, sibling := range proof.Siblings {
			fmt.Fprintf(out, "branch %v\n", sibling)
		}
		fmt.Fprintf(out, "valid  %t\n", proof.Verify())

		return nil
	})
}
