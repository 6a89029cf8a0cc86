// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/coinvault/pkg/txerr"
)

const (
	// maxListUnspentConfs is the upper confirmation bound passed to
	// listunspent, large enough to include every confirmed output.
	maxListUnspentConfs = math.MaxInt32
)

// priorityConfTargets maps each fee priority to the confirmation target
// passed to estimatesmartfee.
var priorityConfTargets = map[FeePriority]int64{
	PriorityLow:    12,
	PriorityMedium: 6,
	PriorityHigh:   2,
}

// rpcBackend is the subset of the btcd rpcclient used by BtcdClient.
type rpcBackend interface {
	ListUnspentMinMaxAddresses(minConf, maxConf int,
		addrs []btcutil.Address) ([]btcjson.ListUnspentResult, error)
	GetRawTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error)
	GetRawTransactionVerbose(txHash *chainhash.Hash) (
		*btcjson.TxRawResult, error)
	GetBlockHeaderVerbose(blockHash *chainhash.Hash) (
		*btcjson.GetBlockHeaderVerboseResult, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
	GetBlockHeader(blockHash *chainhash.Hash) (*wire.BlockHeader, error)
	GetBlock(blockHash *chainhash.Hash) (*wire.MsgBlock, error)
	EstimateSmartFee(confTarget int64,
		mode *btcjson.EstimateSmartFeeMode) (
		*btcjson.EstimateSmartFeeResult, error)
	SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (
		*chainhash.Hash, error)
	Shutdown()
	WaitForShutdown()
}

// A compile-time check to ensure the rpcclient satisfies rpcBackend.
var _ rpcBackend = (*rpcclient.Client)(nil)

// BtcdConfig defines the config options used when initializing a BtcdClient.
type BtcdConfig struct {
	// Conn describes the connection configuration parameters for the
	// client.
	Conn *rpcclient.ConnConfig

	// Chain defines a Bitcoin network by its parameters.
	Chain *chaincfg.Params

	// MinConfs is the minimum number of confirmations an output needs to
	// be returned by UnspentOutputs.
	MinConfs int
}

// validate checks the required config options are set.
func (c *BtcdConfig) validate() error {
	if c == nil {
		return errors.New("missing rpc config")
	}

	// Make sure the chain params are configed.
	if c.Chain == nil {
		return errors.New("missing chain params config")
	}

	// Make sure connection config is supplied.
	if c.Conn == nil {
		return errors.New("missing conn config")
	}

	// If disableTLS is false, the remote RPC certificate must be provided
	// in the certs slice.
	if !c.Conn.DisableTLS && c.Conn.Certificates == nil {
		return errors.New("must provide certs when TLS is enabled")
	}

	if c.MinConfs < 0 {
		return errors.New("minconfs must not be negative")
	}

	return nil
}

// BtcdClient implements Interface on top of a btcd (or bitcoind compatible)
// JSON-RPC server. Every call is a synchronous HTTP POST request.
type BtcdClient struct {
	client   rpcBackend
	params   *chaincfg.Params
	minConfs int
}

// A compile-time check to ensure that BtcdClient satisfies the chain.Interface
// interface.
var _ Interface = (*BtcdClient)(nil)

// NewBtcdClient creates a client for the server described by the config. The
// client uses HTTP POST mode, so no long lived websocket connection is opened.
func NewBtcdClient(cfg *BtcdConfig) (*BtcdClient, error) {
	// Make sure the config is valid.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Conn.HTTPPostMode = true

	rpcClient, err := rpcclient.New(cfg.Conn, nil)
	if err != nil {
		return nil, err
	}

	return newBtcdClient(rpcClient, cfg.Chain, cfg.MinConfs), nil
}

// newBtcdClient wraps an existing rpc backend.
func newBtcdClient(backend rpcBackend, params *chaincfg.Params,
	minConfs int) *BtcdClient {

	return &BtcdClient{
		client:   backend,
		params:   params,
		minConfs: minConfs,
	}
}

// Stop shuts down the underlying rpc client and waits for it to finish.
func (c *BtcdClient) Stop() {
	c.client.Shutdown()
	c.client.WaitForShutdown()
}

// UnspentOutputs returns the unspent outputs paying to addr.
func (c *BtcdClient) UnspentOutputs(ctx context.Context,
	addr btcutil.Address) ([]UnspentOutput, error) {

	const op = "listunspent"

	if err := ctx.Err(); err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	results, err := c.client.ListUnspentMinMaxAddresses(
		c.minConfs, maxListUnspentConfs, []btcutil.Address{addr},
	)
	if err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	utxos := make([]UnspentOutput, 0, len(results))
	for _, result := range results {
		utxo, err := unspentFromResult(result)
		if err != nil {
			return nil, txerr.Collaborator(op, err)
		}

		utxos = append(utxos, utxo)
	}

	log.Debugf("Backend returned %d unspent outputs for %v", len(utxos),
		addr)

	return utxos, nil
}

// unspentFromResult converts a listunspent entry into an UnspentOutput.
func unspentFromResult(result btcjson.ListUnspentResult) (UnspentOutput,
	error) {

	hash, err := chainhash.NewHashFromStr(result.TxID)
	if err != nil {
		return UnspentOutput{}, fmt.Errorf("invalid txid %q: %w",
			result.TxID, err)
	}

	value, err := btcutil.NewAmount(result.Amount)
	if err != nil {
		return UnspentOutput{}, fmt.Errorf("invalid amount %v: %w",
			result.Amount, err)
	}

	pkScript, err := hex.DecodeString(result.ScriptPubKey)
	if err != nil {
		return UnspentOutput{}, fmt.Errorf("invalid script for %v:%d: "+
			"%w", result.TxID, result.Vout, err)
	}

	return UnspentOutput{
		Address:       result.Address,
		OutPoint:      *wire.NewOutPoint(hash, result.Vout),
		Value:         value,
		Confirmations: result.Confirmations,
		PkScript:      pkScript,
	}, nil
}

// FetchTransaction returns the serialized transaction for hash.
func (c *BtcdClient) FetchTransaction(ctx context.Context,
	hash *chainhash.Hash) ([]byte, error) {

	const op = "getrawtransaction"

	if err := ctx.Err(); err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	tx, err := c.client.GetRawTransaction(hash)
	if err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	var buf bytes.Buffer
	if err := tx.MsgTx().SerializeNoWitness(&buf); err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	return buf.Bytes(), nil
}

// EstimateFeeRate returns the fee rate in satoshis per kilobyte the backend
// suggests for the priority.
func (c *BtcdClient) EstimateFeeRate(ctx context.Context,
	priority FeePriority) (btcutil.Amount, error) {

	const op = "estimatesmartfee"

	if err := ctx.Err(); err != nil {
		return 0, txerr.Collaborator(op, err)
	}

	target, ok := priorityConfTargets[priority]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnknownPriority, priority)
	}

	mode := btcjson.EstimateModeConservative
	if priority == PriorityLow {
		mode = btcjson.EstimateModeEconomical
	}

	result, err := c.client.EstimateSmartFee(target, &mode)
	if err != nil {
		return 0, txerr.Collaborator(op, err)
	}

	return feeRateFromResult(result)
}

// feeRateFromResult converts an estimatesmartfee result, quoted in BTC/kB,
// into satoshis per kilobyte.
func feeRateFromResult(result *btcjson.EstimateSmartFeeResult) (
	btcutil.Amount, error) {

	if result == nil || result.FeeRate == nil {
		var reasons []string
		if result != nil {
			reasons = result.Errors
		}

		return 0, txerr.Collaborator(
			"estimatesmartfee",
			fmt.Errorf("%w: %v", ErrNoFeeEstimate, reasons),
		)
	}

	rate, err := btcutil.NewAmount(*result.FeeRate)
	if err != nil {
		return 0, txerr.Collaborator("estimatesmartfee", err)
	}

	return rate, nil
}

// BlockHeight returns the height of the block confirming txHash.
func (c *BtcdClient) BlockHeight(ctx context.Context,
	txHash *chainhash.Hash) (int32, error) {

	const op = "getblockheight"

	if err := ctx.Err(); err != nil {
		return 0, txerr.Collaborator(op, err)
	}

	rawTx, err := c.client.GetRawTransactionVerbose(txHash)
	if err != nil {
		return 0, txerr.Collaborator(op, err)
	}

	if rawTx.BlockHash == "" {
		return 0, txerr.Collaborator(
			op, fmt.Errorf("%w: %v", ErrTxUnconfirmed, txHash),
		)
	}

	blockHash, err := chainhash.NewHashFromStr(rawTx.BlockHash)
	if err != nil {
		return 0, txerr.Collaborator(op, err)
	}

	header, err := c.client.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return 0, txerr.Collaborator(op, err)
	}

	return header.Height, nil
}

// BlockHeader returns the header of the block at height.
func (c *BtcdClient) BlockHeader(ctx context.Context,
	height int32) (*wire.BlockHeader, error) {

	const op = "getblockheader"

	if err := ctx.Err(); err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	hash, err := c.client.GetBlockHash(int64(height))
	if err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	header, err := c.client.GetBlockHeader(hash)
	if err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	return header, nil
}

// BlockTxHashes returns the ordered transaction hashes of the block at
// height.
func (c *BtcdClient) BlockTxHashes(ctx context.Context,
	height int32) ([]chainhash.Hash, error) {

	const op = "getblock"

	if err := ctx.Err(); err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	hash, err := c.client.GetBlockHash(int64(height))
	if err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	block, err := c.client.GetBlock(hash)
	if err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	hashes := make([]chainhash.Hash, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		hashes = append(hashes, tx.TxHash())
	}

	return hashes, nil
}

// Broadcast publishes the serialized transaction.
func (c *BtcdClient) Broadcast(ctx context.Context,
	rawTx []byte) (*chainhash.Hash, error) {

	const op = "sendrawtransaction"

	if err := ctx.Err(); err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	hash, err := c.client.SendRawTransaction(&tx, false)
	if err != nil {
		return nil, txerr.Collaborator(op, err)
	}

	log.Infof("Broadcast transaction %v", hash)

	return hash, nil
}
