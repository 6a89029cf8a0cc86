package chain

import (
	"errors"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

var errRPC = errors.New("rpc failure")

// A compile-time check to ensure mockRPC satisfies rpcBackend.
var _ rpcBackend = (*mockRPC)(nil)

// mockRPC is a mock implementation of the rpc backend used by BtcdClient.
type mockRPC struct {
	mock.Mock
}

func (m *mockRPC) ListUnspentMinMaxAddresses(minConf, maxConf int,
	addrs []btcutil.Address) ([]btcjson.ListUnspentResult, error) {

	args := m.Called(minConf, maxConf, addrs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]btcjson.ListUnspentResult), args.Error(1)
}

func (m *mockRPC) GetRawTransaction(txHash *chainhash.Hash) (*btcutil.Tx,
	error) {

	args := m.Called(txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*btcutil.Tx), args.Error(1)
}

func (m *mockRPC) GetRawTransactionVerbose(txHash *chainhash.Hash) (
	*btcjson.TxRawResult, error) {

	args := m.Called(txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*btcjson.TxRawResult), args.Error(1)
}

func (m *mockRPC) GetBlockHeaderVerbose(blockHash *chainhash.Hash) (
	*btcjson.GetBlockHeaderVerboseResult, error) {

	args := m.Called(blockHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*btcjson.GetBlockHeaderVerboseResult),
		args.Error(1)
}

func (m *mockRPC) GetBlockHash(blockHeight int64) (*chainhash.Hash, error) {
	args := m.Called(blockHeight)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*chainhash.Hash), args.Error(1)
}

func (m *mockRPC) GetBlockHeader(blockHash *chainhash.Hash) (
	*wire.BlockHeader, error) {

	args := m.Called(blockHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*wire.BlockHeader), args.Error(1)
}

func (m *mockRPC) GetBlock(blockHash *chainhash.Hash) (*wire.MsgBlock,
	error) {

	args := m.Called(blockHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*wire.MsgBlock), args.Error(1)
}

func (m *mockRPC) EstimateSmartFee(confTarget int64,
	mode *btcjson.EstimateSmartFeeMode) (*btcjson.EstimateSmartFeeResult,
	error) {

	args := m.Called(confTarget, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*btcjson.EstimateSmartFeeResult), args.Error(1)
}

func (m *mockRPC) SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (
	*chainhash.Hash, error) {

	args := m.Called(tx, allowHighFees)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*chainhash.Hash), args.Error(1)
}

func (m *mockRPC) Shutdown() {
	m.Called()
}

func (m *mockRPC) WaitForShutdown() {
	m.Called()
}
