package wallet

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/coinvault/pkg/txerr"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testBlock returns a block header committing to numTxns transactions and
// their hashes.
func testBlock(numTxns int) (*wire.BlockHeader, []chainhash.Hash) {
	txns := make([]*btcutil.Tx, 0, numTxns)
	hashes := make([]chainhash.Hash, 0, numTxns)
	for i := 0; i < numTxns; i++ {
		tx := shapeTx(1, 1)
		tx.LockTime = uint32(i)

		txns = append(txns, btcutil.NewTx(tx))
		hashes = append(hashes, tx.TxHash())
	}

	header := &wire.BlockHeader{
		Version:    4,
		MerkleRoot: blockchain.CalcMerkleRoot(txns, false),
	}

	return header, hashes
}

// TestMerkleProve checks proofs for every leaf of blocks of assorted sizes,
// including odd levels.
func TestMerkleProve(t *testing.T) {
	t.Parallel()

	for _, numTxns := range []int{1, 2, 3, 4, 5, 7, 8, 13} {
		header, hashes := testBlock(numTxns)

		for leaf := range hashes {
			m := newMockChain(t)
			txHash := hashes[leaf]

			m.On("BlockHeight", mock.Anything, &txHash).Return(
				int32(100), nil,
			).Once()
			m.On("BlockHeader", mock.Anything, int32(100)).Return(
				header, nil,
			).Once()
			m.On("BlockTxHashes", mock.Anything, int32(100)).Return(
				hashes, nil,
			).Once()

			proof, err := NewMerkleProver(m).Prove(
				context.Background(), &txHash,
			)
			require.NoError(t, err)
			require.Equal(t, leaf, proof.LeafIndex)
			require.Equal(t, int32(100), proof.BlockHeight)
			require.Equal(t, header.MerkleRoot, proof.Root())
			require.True(t, proof.Verify())

			// A tampered sibling breaks the proof.
			if len(proof.Siblings) > 0 {
				proof.Siblings[0][0] ^= 0xff
				require.False(t, proof.Verify())
			}
		}
	}
}

// TestMerkleProveErrors checks missing leaves and backend failures.
func TestMerkleProveErrors(t *testing.T) {
	t.Parallel()

	header, hashes := testBlock(3)
	missing := chainhash.Hash{0xaa}
	ctx := context.Background()

	m := newMockChain(t)
	m.On("BlockHeight", mock.Anything, &missing).Return(
		int32(5), nil,
	).Twice()
	m.On("BlockHeader", mock.Anything, int32(5)).Return(
		header, nil,
	).Twice()
	m.On("BlockTxHashes", mock.Anything, int32(5)).Return(
		hashes, nil,
	).Once()

	_, err := NewMerkleProver(m).Prove(ctx, &missing)
	require.True(t, txerr.IsError(err, txerr.ErrTransactionNotFound))

	// Hashes that do not match the header are reported.
	inconsistent := append([]chainhash.Hash{missing}, hashes...)
	m.On("BlockTxHashes", mock.Anything, int32(5)).Return(
		inconsistent, nil,
	).Once()

	_, err = NewMerkleProver(m).Prove(ctx, &missing)
	require.ErrorIs(t, err, ErrMerkleRootMismatch)

	// Backend failures are collaborator failures.
	m = newMockChain(t)
	m.On("BlockHeight", mock.Anything, &missing).Return(
		int32(0), errBlocks,
	).Once()

	_, err = NewMerkleProver(m).Prove(ctx, &missing)
	require.ErrorIs(t, err, errBlocks)
	require.True(t, txerr.IsError(err, txerr.ErrCollaboratorFailure))
}
