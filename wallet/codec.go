// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/wire"
)

// SerializeTx returns the legacy encoding of tx, without witness data.
func SerializeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSizeStripped())

	if err := tx.SerializeNoWitness(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DeserializeTx decodes a transaction in the legacy encoding. Trailing bytes
// are rejected.
func DeserializeTx(raw []byte) (*wire.MsgTx, error) {
	reader := bytes.NewReader(raw)

	tx := &wire.MsgTx{}
	if err := tx.DeserializeNoWitness(reader); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after transaction",
			reader.Len())
	}

	return tx, nil
}

// EncodeTxHex returns the hex of the legacy encoding of tx.
func EncodeTxHex(tx *wire.MsgTx) (string, error) {
	raw, err := SerializeTx(tx)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(raw), nil
}

// DecodeTxHex decodes a hex encoded transaction.
func DecodeTxHex(s string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}

	return DeserializeTx(raw)
}
