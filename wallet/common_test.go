package wallet

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/coinvault/chain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	errChainMock = errors.New("chain error")
	errFetchFail = errors.New("fetch fail")
	errBroadcast = errors.New("broadcast fail")
	errFeeSource = errors.New("fee source fail")
	errBlocks    = errors.New("blocks fail")
)

var (
	// chainParams are the chain parameters used throughout the wallet
	// tests.
	chainParams = chaincfg.RegressionNetParams
)

// A compile-time check to ensure mockChain satisfies chain.Interface.
var _ chain.Interface = (*mockChain)(nil)

// mockChain is a mock implementation of the chain backend.
type mockChain struct {
	mock.Mock
}

func (m *mockChain) UnspentOutputs(ctx context.Context,
	addr btcutil.Address) ([]chain.UnspentOutput, error) {

	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]chain.UnspentOutput), args.Error(1)
}

func (m *mockChain) FetchTransaction(ctx context.Context,
	hash *chainhash.Hash) ([]byte, error) {

	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockChain) EstimateFeeRate(ctx context.Context,
	priority chain.FeePriority) (btcutil.Amount, error) {

	args := m.Called(ctx, priority)
	return args.Get(0).(btcutil.Amount), args.Error(1)
}

func (m *mockChain) BlockHeight(ctx context.Context,
	txHash *chainhash.Hash) (int32, error) {

	args := m.Called(ctx, txHash)
	return args.Get(0).(int32), args.Error(1)
}

func (m *mockChain) BlockHeader(ctx context.Context,
	height int32) (*wire.BlockHeader, error) {

	args := m.Called(ctx, height)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*wire.BlockHeader), args.Error(1)
}

func (m *mockChain) BlockTxHashes(ctx context.Context,
	height int32) ([]chainhash.Hash, error) {

	args := m.Called(ctx, height)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]chainhash.Hash), args.Error(1)
}

func (m *mockChain) Broadcast(ctx context.Context,
	rawTx []byte) (*chainhash.Hash, error) {

	args := m.Called(ctx, rawTx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	// Tests that need the hash of the submitted tx return a func.
	if fn, ok := args.Get(0).(func(context.Context,
		[]byte) *chainhash.Hash); ok {

		return fn(ctx, rawTx), args.Error(1)
	}

	return args.Get(0).(*chainhash.Hash), args.Error(1)
}

// newMockChain returns a mock whose expectations are asserted on cleanup.
func newMockChain(t *testing.T) *mockChain {
	t.Helper()

	m := &mockChain{}
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// testKey returns a deterministic compressed regtest WIF.
func testKey(t *testing.T, seed byte) *btcutil.WIF {
	t.Helper()

	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	wif, err := btcutil.NewWIF(priv, &chainParams, true)
	require.NoError(t, err)

	return wif
}

// keyAddr returns the P2PKH address of the key.
func keyAddr(t *testing.T, wif *btcutil.WIF) *btcutil.AddressPubKeyHash {
	t.Helper()

	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(wif.SerializePubKey()), &chainParams,
	)
	require.NoError(t, err)

	return addr
}

// testAddr returns the encoded P2PKH address of the key derived from seed.
func testAddr(t *testing.T, seed byte) string {
	t.Helper()

	return keyAddr(t, testKey(t, seed)).EncodeAddress()
}

// addrScript returns the output script paying to the encoded address.
func addrScript(t *testing.T, encoded string) []byte {
	t.Helper()

	addr, err := btcutil.DecodeAddress(encoded, &chainParams)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return pkScript
}

// utxo returns an unspent output of the given value and confirmations.
func utxo(addr string, idx byte, value btcutil.Amount,
	confs int64) chain.UnspentOutput {

	return chain.UnspentOutput{
		Address:       addr,
		OutPoint:      wire.OutPoint{Hash: chainhash.Hash{idx}, Index: 0},
		Value:         value,
		Confirmations: confs,
	}
}

// testConfig returns the default config for regtest.
func testConfig() *Config {
	return DefaultConfig(&chainParams)
}
