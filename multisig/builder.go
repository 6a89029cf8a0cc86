// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package multisig

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/coinvault/pkg/txerr"
)

var (
	// ErrNilKey is returned when a nil extended key is supplied.
	ErrNilKey = errors.New("nil extended key")

	// ErrMissingParams is returned when a Builder has no chain params.
	ErrMissingParams = errors.New("chain params cannot be nil")
)

// KeyDeriver derives the public key found at path below an extended key.
type KeyDeriver interface {
	DeriveChildPublicKey(key *hdkeychain.ExtendedKey,
		path []uint32) (*btcec.PublicKey, error)
}

// HDKeyDeriver derives child keys with BIP 32 public derivation.
type HDKeyDeriver struct{}

// A compile-time assertion to ensure HDKeyDeriver implements KeyDeriver.
var _ KeyDeriver = HDKeyDeriver{}

// DeriveChildPublicKey walks path one index at a time. Hardened indices can
// only be derived from private extended keys.
func (HDKeyDeriver) DeriveChildPublicKey(key *hdkeychain.ExtendedKey,
	path []uint32) (*btcec.PublicKey, error) {

	if key == nil {
		return nil, ErrNilKey
	}

	child := key
	for _, index := range path {
		var err error
		child, err = child.Derive(index)
		if err != nil {
			return nil, err
		}
	}

	return child.ECPubKey()
}

// Builder derives multisig scripts from a set of extended keys.
type Builder struct {
	deriver KeyDeriver
	params  *chaincfg.Params
}

// NewBuilder returns a Builder for the given network. A nil deriver selects
// HDKeyDeriver.
func NewBuilder(params *chaincfg.Params, deriver KeyDeriver) *Builder {
	if deriver == nil {
		deriver = HDKeyDeriver{}
	}

	return &Builder{
		deriver: deriver,
		params:  params,
	}
}

// BuildScript derives the key at path below every extended key and returns
// the required-of-n script over them. The result does not depend on the order
// of keys.
func (b *Builder) BuildScript(keys []*hdkeychain.ExtendedKey, path []uint32,
	required int) (*Script, error) {

	if err := validateThreshold(required, len(keys)); err != nil {
		return nil, err
	}

	pubKeys := make([]*btcec.PublicKey, 0, len(keys))
	for _, key := range keys {
		pubKey, err := b.deriver.DeriveChildPublicKey(key, path)
		if err != nil {
			return nil, txerr.Collaborator("derive child public key", err)
		}

		pubKeys = append(pubKeys, pubKey)
	}

	script, err := NewScript(pubKeys, required)
	if err != nil {
		return nil, err
	}

	log.Debugf("Built %d-of-%d script at path %v", required, len(keys),
		FormatPath(path))

	return script, nil
}

// BuildAddress derives the script as BuildScript does and returns its P2SH
// address.
func (b *Builder) BuildAddress(keys []*hdkeychain.ExtendedKey, path []uint32,
	required int) (*btcutil.AddressScriptHash, error) {

	if b.params == nil {
		return nil, ErrMissingParams
	}

	script, err := b.BuildScript(keys, path, required)
	if err != nil {
		return nil, err
	}

	return script.Address(b.params)
}

// ParseExtendedKeys decodes base58 extended keys.
func ParseExtendedKeys(encoded []string) ([]*hdkeychain.ExtendedKey, error) {
	keys := make([]*hdkeychain.ExtendedKey, 0, len(encoded))
	for _, s := range encoded {
		key, err := hdkeychain.NewKeyFromString(s)
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
	}

	return keys, nil
}
