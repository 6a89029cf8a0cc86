// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/coinvault/vaultdb"
	"github.com/btcsuite/coinvault/wallet"
	"golang.org/x/term"
)

// errNoVaultTx is returned when a vault command gets neither a session nor a
// transaction.
var errNoVaultTx = errors.New("one of --session or --tx is required")

// vaultSource selects the vault transaction a command works on.
type vaultSource struct {
	Session string `long:"session" description:"ID of a stored signing session"`
	Tx      string `long:"tx" description:"Hex encoded vault transaction"`
}

// hasSession reports whether a session was selected.
func (s *vaultSource) hasSession() bool {
	return s.Session != ""
}

// sessionID parses the selected session ID.
func (s *vaultSource) sessionID() (chainhash.Hash, error) {
	id, err := chainhash.NewHashFromStr(s.Session)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("invalid session id: %w",
			err)
	}

	return *id, nil
}

// load returns the selected vault transaction, reading it from the store
// when a session is selected.
func (s *vaultSource) load(a *app) (*wire.MsgTx, error) {
	switch {
	case s.hasSession() && s.Tx != "":
		return nil, errors.New("--session and --tx are exclusive")

	case s.hasSession():
		id, err := s.sessionID()
		if err != nil {
			return nil, err
		}

		store, err := a.cfg.openStore()
		if err != nil {
			return nil, err
		}
		defer store.Close()

		session, err := store.FetchSession(id)
		if err != nil {
			return nil, err
		}

		return session.Tx, nil

	case s.Tx != "":
		return wallet.DecodeTxHex(s.Tx)

	default:
		return nil, errNoVaultTx
	}
}

// withStore opens the session store for the duration of fn.
func (a *app) withStore(fn func(*vaultdb.Store) error) error {
	store, err := a.cfg.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

// decodeHex decodes a hex argument, naming it in the error.
func decodeHex(name, s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}

	return b, nil
}

// readWIF returns the private key given on the command line, or prompts for
// it when none was given. Input from a terminal is not echoed.
func (a *app) readWIF(given string) (*btcutil.WIF, error) {
	encoded := given
	if encoded == "" {
		secret, err := a.readSecret("Private key (WIF): ")
		if err != nil {
			return nil, err
		}
		encoded = secret
	}

	wif, err := btcutil.DecodeWIF(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	params, err := a.cfg.chainParams()
	if err != nil {
		return nil, err
	}

	if !wif.IsForNet(params) {
		return nil, fmt.Errorf("private key is not for %s", params.Name)
	}

	return wif, nil
}

// readSecret reads one line of secret input.
func (a *app) readSecret(prompt string) (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}

		return string(secret), nil
	}

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read secret: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// parseOutputs parses repeated addr:sats arguments.
func parseOutputs(args []string) ([]wallet.OutputRequest, error) {
	outputs := make([]wallet.OutputRequest, 0, len(args))
	for _, arg := range args {
		output, err := wallet.ParseOutputRequest(arg)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, output)
	}

	return outputs, nil
}
