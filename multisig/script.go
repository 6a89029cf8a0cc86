// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package multisig builds and parses k-of-n multisig redeem scripts whose keys
// are derived from a set of HD extended public keys.
package multisig

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/coinvault/pkg/txerr"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// MaxPubKeys is the largest key count that can be encoded with a small
	// integer opcode.
	MaxPubKeys = 16

	// scriptVersion is the script version parsed by the tokenizer.
	scriptVersion = 0
)

// Script is a k-of-n multisig spending condition.
type Script struct {
	// Required is the number of signatures needed to spend.
	Required int

	// PubKeys are the serialized public keys in script order. Scripts built
	// by NewScript always hold compressed keys in canonical order.
	PubKeys [][]byte
}

// ComparePubKeys is the canonical ordering of serialized public keys: plain
// byte-lexicographic comparison of the compressed encoding, as in BIP 67. Any
// two implementations that agree on this ordering derive identical scripts.
func ComparePubKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}

// validateThreshold checks that required signatures fit the key count.
func validateThreshold(required, numKeys int) error {
	switch {
	case numKeys < 1:
		return txerr.Newf(txerr.ErrInvalidThreshold,
			"multisig needs at least one key")

	case numKeys > MaxPubKeys:
		return txerr.Newf(txerr.ErrInvalidThreshold,
			"%d keys exceed the maximum of %d", numKeys, MaxPubKeys)

	case required < 1 || required > numKeys:
		return txerr.Newf(txerr.ErrInvalidThreshold,
			"threshold %d outside of [1, %d]", required, numKeys)
	}

	return nil
}

// NewScript returns a required-of-len(pubKeys) script with the keys in
// canonical order, regardless of the order they were supplied in.
func NewScript(pubKeys []*btcec.PublicKey, required int) (*Script, error) {
	if err := validateThreshold(required, len(pubKeys)); err != nil {
		return nil, err
	}

	serialized := make([][]byte, 0, len(pubKeys))
	seen := fn.NewSet[string]()
	for _, pubKey := range pubKeys {
		key := pubKey.SerializeCompressed()
		if seen.Contains(string(key)) {
			return nil, txerr.Newf(txerr.ErrDuplicateKey,
				"duplicate public key %x", key)
		}

		seen.Add(string(key))
		serialized = append(serialized, key)
	}

	sort.Slice(serialized, func(i, j int) bool {
		return ComparePubKeys(serialized[i], serialized[j]) < 0
	})

	return &Script{
		Required: required,
		PubKeys:  serialized,
	}, nil
}

// NumKeys returns n, the number of keys in the script.
func (s *Script) NumKeys() int {
	return len(s.PubKeys)
}

// RedeemScript serializes the script as
// OP_k <pubkey 1> ... <pubkey n> OP_n OP_CHECKMULTISIG.
func (s *Script) RedeemScript() ([]byte, error) {
	if err := validateThreshold(s.Required, len(s.PubKeys)); err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(s.Required))
	for _, pubKey := range s.PubKeys {
		builder.AddData(pubKey)
	}
	builder.AddInt64(int64(len(s.PubKeys)))
	builder.AddOp(txscript.OP_CHECKMULTISIG)

	script, err := builder.Script()
	if err != nil {
		return nil, txerr.New(
			txerr.ErrMalformedScript, "unable to build redeem script",
			err,
		)
	}

	// The redeem script is pushed as a single element when spending.
	if len(script) > txscript.MaxScriptElementSize {
		return nil, txerr.Newf(txerr.ErrMalformedScript,
			"redeem script of %d bytes exceeds push limit of %d",
			len(script), txscript.MaxScriptElementSize)
	}

	return script, nil
}

// Address returns the pay-to-script-hash address of the redeem script.
func (s *Script) Address(params *chaincfg.Params) (*btcutil.AddressScriptHash,
	error) {

	redeemScript, err := s.RedeemScript()
	if err != nil {
		return nil, err
	}

	return btcutil.NewAddressScriptHash(redeemScript, params)
}

// IndexOf returns the position of the public key within the script, matching
// either its compressed or uncompressed encoding. It returns -1 when the key
// is not part of the script.
func (s *Script) IndexOf(pubKey *btcec.PublicKey) int {
	compressed := pubKey.SerializeCompressed()
	uncompressed := pubKey.SerializeUncompressed()

	for i, key := range s.PubKeys {
		if bytes.Equal(key, compressed) || bytes.Equal(key, uncompressed) {
			return i
		}
	}

	return -1
}

// ParseRedeemScript parses a multisig redeem script. The keys are kept in
// script order, which determines the signature order when spending.
func ParseRedeemScript(script []byte) (*Script, error) {
	malformed := func(format string, args ...any) error {
		return txerr.Newf(txerr.ErrMalformedScript, format, args...)
	}

	if len(script) == 0 {
		return nil, malformed("empty redeem script")
	}

	var (
		ops       []byte
		pushes    [][]byte
		tokenizer = txscript.MakeScriptTokenizer(scriptVersion, script)
	)
	for tokenizer.Next() {
		ops = append(ops, tokenizer.Opcode())
		pushes = append(pushes, tokenizer.Data())
	}
	if err := tokenizer.Err(); err != nil {
		return nil, txerr.New(
			txerr.ErrMalformedScript, "unable to parse redeem script",
			err,
		)
	}

	// The smallest script is OP_1 <key> OP_1 OP_CHECKMULTISIG.
	if len(ops) < 4 {
		return nil, malformed("redeem script too short: %d ops",
			len(ops))
	}

	last := len(ops) - 1
	if ops[last] != txscript.OP_CHECKMULTISIG {
		return nil, malformed("redeem script does not end with " +
			"OP_CHECKMULTISIG")
	}

	required, ok := smallInt(ops[0])
	if !ok {
		return nil, malformed("missing required signature count")
	}

	numKeys, ok := smallInt(ops[last-1])
	if !ok {
		return nil, malformed("missing public key count")
	}

	keys := pushes[1 : last-1]
	if len(keys) != numKeys {
		return nil, malformed("script declares %d keys but pushes %d",
			numKeys, len(keys))
	}

	pubKeys := make([][]byte, 0, len(keys))
	for i, key := range keys {
		if _, err := btcec.ParsePubKey(key); err != nil {
			return nil, txerr.New(
				txerr.ErrMalformedScript,
				"invalid public key in redeem script", err,
			)
		}

		pubKeys = append(pubKeys, keys[i])
	}

	if required < 1 || required > numKeys {
		return nil, malformed("threshold %d outside of [1, %d]",
			required, numKeys)
	}

	return &Script{
		Required: required,
		PubKeys:  pubKeys,
	}, nil
}

// smallInt decodes OP_1 through OP_16.
func smallInt(op byte) (int, bool) {
	if op < txscript.OP_1 || op > txscript.OP_16 {
		return 0, false
	}

	return int(op-txscript.OP_1) + 1, true
}
