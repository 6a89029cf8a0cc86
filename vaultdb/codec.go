// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vaultdb

import (
	"bytes"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	// txType is the record holding the legacy serialized transaction.
	txType tlv.Type = 0

	// redeemScriptType is the record holding the redeem script.
	redeemScriptType tlv.Type = 1

	// createdAtType is the record holding the creation time in unix
	// seconds.
	createdAtType tlv.Type = 2
)

// encodeSession serializes a session record as a TLV stream. The session ID
// is the bucket key and is not part of the record.
func encodeSession(s *Session) ([]byte, error) {
	var txBuf bytes.Buffer
	if err := s.Tx.SerializeNoWitness(&txBuf); err != nil {
		return nil, err
	}

	var (
		rawTx     = txBuf.Bytes()
		redeem    = s.RedeemScript
		createdAt = uint64(s.CreatedAt.Unix())
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(txType, &rawTx),
		tlv.MakePrimitiveRecord(redeemScriptType, &redeem),
		tlv.MakePrimitiveRecord(createdAtType, &createdAt),
	)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// decodeSession parses a session record stored under id.
func decodeSession(id chainhash.Hash, value []byte) (*Session, error) {
	var (
		rawTx     []byte
		redeem    []byte
		createdAt uint64
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(txType, &rawTx),
		tlv.MakePrimitiveRecord(redeemScriptType, &redeem),
		tlv.MakePrimitiveRecord(createdAtType, &createdAt),
	)
	if err != nil {
		return nil, err
	}

	if err := stream.Decode(bytes.NewReader(value)); err != nil {
		return nil, err
	}

	tx := &wire.MsgTx{}
	if err := tx.DeserializeNoWitness(bytes.NewReader(rawTx)); err != nil {
		return nil, err
	}

	return &Session{
		ID:           id,
		Tx:           tx,
		RedeemScript: redeem,
		CreatedAt:    time.Unix(int64(createdAt), 0),
	}, nil
}
