// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/coinvault/chain"
	"github.com/btcsuite/coinvault/pkg/txerr"
)

// ErrMerkleRootMismatch is returned when the transactions reported for a
// block do not hash to the root in its header.
var ErrMerkleRootMismatch = errors.New("merkle root mismatch")

// MerkleProof proves that a transaction is committed to by a block header.
type MerkleProof struct {
	// Header is the header of the confirming block.
	Header wire.BlockHeader

	// BlockHeight is the height of the confirming block.
	BlockHeight int32

	// LeafHash is the hash of the proven transaction.
	LeafHash chainhash.Hash

	// LeafIndex is the position of the transaction in the block.
	LeafIndex int

	// Siblings are the hashes paired with the running hash on the way
	// from the leaf to the root.
	Siblings []chainhash.Hash
}

// Root folds the siblings into the leaf and returns the resulting root.
func (p *MerkleProof) Root() chainhash.Hash {
	current := p.LeafHash
	index := p.LeafIndex

	for i := range p.Siblings {
		sibling := p.Siblings[i]
		if index%2 == 0 {
			current = blockchain.HashMerkleBranches(&current, &sibling)
		} else {
			current = blockchain.HashMerkleBranches(&sibling, &current)
		}

		index /= 2
	}

	return current
}

// Verify reports whether the proof hashes to the header's merkle root.
func (p *MerkleProof) Verify() bool {
	return p.Root() == p.Header.MerkleRoot
}

// MerkleProver builds inclusion proofs from block data.
type MerkleProver struct {
	blocks chain.BlockSource
}

// NewMerkleProver returns a MerkleProver reading blocks from source.
func NewMerkleProver(source chain.BlockSource) *MerkleProver {
	return &MerkleProver{blocks: source}
}

// Prove returns the inclusion proof of the transaction in the block that
// confirms it.
func (m *MerkleProver) Prove(ctx context.Context,
	txHash *chainhash.Hash) (*MerkleProof, error) {

	height, err := m.blocks.BlockHeight(ctx, txHash)
	if err != nil {
		return nil, collaboratorErr("block height", err)
	}

	header, err := m.blocks.BlockHeader(ctx, height)
	if err != nil {
		return nil, collaboratorErr("block header", err)
	}

	hashes, err := m.blocks.BlockTxHashes(ctx, height)
	if err != nil {
		return nil, collaboratorErr("block tx hashes", err)
	}

	leafIndex := -1
	for i := range hashes {
		if hashes[i] == *txHash {
			leafIndex = i
			break
		}
	}
	if leafIndex < 0 {
		return nil, txerr.Newf(txerr.ErrTransactionNotFound,
			"tx %v not in block %d with %d txns", txHash, height,
			len(hashes))
	}

	proof := &MerkleProof{
		Header:      *header,
		BlockHeight: height,
		LeafHash:    *txHash,
		LeafIndex:   leafIndex,
		Siblings:    merkleBranch(hashes, leafIndex),
	}

	if !proof.Verify() {
		return nil, txerr.Collaborator(
			"block tx hashes", ErrMerkleRootMismatch,
		)
	}

	log.Debugf("Proved tx %v at index %d of block %d with %d siblings",
		txHash, leafIndex, height, len(proof.Siblings))

	return proof, nil
}

// merkleBranch returns the sibling hashes of the leaf at index, from the
// leaf level up. Levels with an odd number of nodes pair the last node with
// itself.
func merkleBranch(hashes []chainhash.Hash, index int) []chainhash.Hash {
	level := make([]chainhash.Hash, len(hashes))
	copy(level, hashes)

	var siblings []chainhash.Hash
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		siblings = append(siblings, level[index^1])

		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			next[i] = blockchain.HashMerkleBranches(
				&level[2*i], &level[2*i+1],
			)
		}

		level = next
		index /= 2
	}

	return siblings
}
