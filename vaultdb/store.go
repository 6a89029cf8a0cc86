// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package vaultdb persists vault signing sessions. Each session holds a vault
// transaction being signed by several parties. Signing a session reads,
// signs and writes it back inside a single database transaction, so that
// concurrent signers never overwrite each other's signatures.
package vaultdb

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/btcsuite/coinvault/vault"

	// Register the bolt backend.
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

const (
	// dbDriver is the walletdb backend sessions are stored in.
	dbDriver = "bdb"

	// dbTimeout bounds how long opening the database waits for the file
	// lock.
	dbTimeout = 10 * time.Second
)

var (
	// sessionBucketKey is the top level bucket holding session records
	// keyed by session ID.
	sessionBucketKey = []byte("vault-sessions")

	// ErrSessionNotFound is returned when no session has the given ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when a session is created for a
	// transaction that already has one.
	ErrSessionExists = errors.New("session already exists")
)

// Session is a vault transaction being signed.
type Session struct {
	// ID identifies the session. It is the hash of the transaction with
	// every signature script removed, which does not change while
	// signatures are added.
	ID chainhash.Hash

	// Tx is the transaction with its current vault scripts.
	Tx *wire.MsgTx

	// RedeemScript is the multisig redeem script of every input.
	RedeemScript []byte

	// CreatedAt is when the session was created.
	CreatedAt time.Time
}

// States returns the signing state of every input.
func (s *Session) States() ([]vault.State, error) {
	return vault.InputStates(s.Tx)
}

// SessionID returns the ID of the session for tx.
func SessionID(tx *wire.MsgTx) chainhash.Hash {
	stripped := tx.Copy()
	for _, txIn := range stripped.TxIn {
		txIn.SignatureScript = nil
	}

	return stripped.TxHash()
}

// Store keeps vault sessions in a walletdb database.
type Store struct {
	db  walletdb.DB
	now func() time.Time
}

// Open opens the session database at path, creating it if needed.
func Open(path string) (*Store, error) {
	var (
		db  walletdb.DB
		err error
	)

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		db, err = walletdb.Open(dbDriver, path, true, dbTimeout, false)

	case errors.Is(statErr, os.ErrNotExist):
		db, err = walletdb.Create(dbDriver, path, true, dbTimeout, false)

	default:
		return nil, statErr
	}
	if err != nil {
		return nil, err
	}

	store, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// New returns a Store over an open database, creating the session bucket if
// it does not exist yet.
func New(db walletdb.DB) (*Store, error) {
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		if tx.ReadWriteBucket(sessionBucketKey) != nil {
			return nil
		}

		_, err := tx.CreateTopLevelBucket(sessionBucketKey)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create session bucket: %w", err)
	}

	return &Store{
		db:  db,
		now: time.Now,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession sets up tx as a vault transaction for redeemScript and
// stores it as a new session.
func (s *Store) CreateSession(tx *wire.MsgTx,
	redeemScript []byte) (*Session, error) {

	setupTx, err := vault.Setup(tx, redeemScript)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:           SessionID(setupTx),
		Tx:           setupTx,
		RedeemScript: redeemScript,
		CreatedAt:    s.now().Truncate(time.Second),
	}

	value, err := encodeSession(session)
	if err != nil {
		return nil, err
	}

	err = walletdb.Update(s.db, func(dbtx walletdb.ReadWriteTx) error {
		bucket := dbtx.ReadWriteBucket(sessionBucketKey)
		if bucket.Get(session.ID[:]) != nil {
			return fmt.Errorf("%w: %v", ErrSessionExists, session.ID)
		}

		return bucket.Put(session.ID[:], value)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Created vault session %v with %d inputs", session.ID,
		len(setupTx.TxIn))

	return session, nil
}

// FetchSession returns the session with the given ID.
func (s *Store) FetchSession(id chainhash.Hash) (*Session, error) {
	var session *Session
	err := walletdb.View(s.db, func(dbtx walletdb.ReadTx) error {
		var err error
		session, err = fetchSession(
			dbtx.ReadBucket(sessionBucketKey), id,
		)

		return err
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// ListSessions returns every session ordered by ID.
func (s *Store) ListSessions() ([]*Session, error) {
	var sessions []*Session
	err := walletdb.View(s.db, func(dbtx walletdb.ReadTx) error {
		bucket := dbtx.ReadBucket(sessionBucketKey)

		return bucket.ForEach(func(k, v []byte) error {
			id, err := chainhash.NewHash(k)
			if err != nil {
				return err
			}

			session, err := decodeSession(*id, v)
			if err != nil {
				return fmt.Errorf("session %v: %w", id, err)
			}

			sessions = append(sessions, session)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// DeleteSession removes the session with the given ID.
func (s *Store) DeleteSession(id chainhash.Hash) error {
	return walletdb.Update(s.db, func(dbtx walletdb.ReadWriteTx) error {
		bucket := dbtx.ReadWriteBucket(sessionBucketKey)
		if bucket.Get(id[:]) == nil {
			return fmt.Errorf("%w: %v", ErrSessionNotFound, id)
		}

		return bucket.Delete(id[:])
	})
}

// Sign adds the signature of privKey to the session. The session is read,
// signed and written back within one database transaction, which serializes
// concurrent signers of the same session.
func (s *Store) Sign(id chainhash.Hash, privKey *btcec.PrivateKey,
	signer vault.Signer) (*vault.SignResult, error) {

	var result *vault.SignResult
	err := walletdb.Update(s.db, func(dbtx walletdb.ReadWriteTx) error {
		bucket := dbtx.ReadWriteBucket(sessionBucketKey)

		session, err := fetchSession(bucket, id)
		if err != nil {
			return err
		}

		result, err = vault.SignOneSigner(session.Tx, privKey, signer)
		if err != nil {
			return err
		}

		if result.NumChanged() == 0 {
			return nil
		}

		session.Tx = result.Tx
		value, err := encodeSession(session)
		if err != nil {
			return err
		}

		return bucket.Put(id[:], value)
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Signer changed %d inputs of session %v",
		result.NumChanged(), id)

	return result, nil
}

// fetchSession reads and decodes a session from the bucket.
func fetchSession(bucket walletdb.ReadBucket,
	id chainhash.Hash) (*Session, error) {

	value := bucket.Get(id[:])
	if value == nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, id)
	}

	return decodeSession(id, value)
}
