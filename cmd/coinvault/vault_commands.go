// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/coinvault/multisig"
	"github.com/btcsuite/coinvault/vault"
	"github.com/btcsuite/coinvault/vaultdb"
	"github.com/btcsuite/coinvault/wallet"
)

// hdmArgs are the options shared by the HD multisig commands.
type hdmArgs struct {
	Required int    `short:"k" long:"required" required:"true" description:"Number of signatures needed to spend"`
	Path     string `long:"path" default:"m" description:"Derivation path applied to every key, e.g. m/0/5"`
}

// xpubArgs are the extended public keys of the multisig participants.
type xpubArgs struct {
	XPubs []string `positional-arg-name:"xpub" required:"1"`
}

// build parses the keys and path and returns a builder for the configured
// network.
func (h *hdmArgs) build(a *app, xpubs []string) (*multisig.Builder,
	[]*hdkeychain.ExtendedKey, []uint32, error) {

	params, err := a.cfg.chainParams()
	if err != nil {
		return nil, nil, nil, err
	}

	keys, err := multisig.ParseExtendedKeys(xpubs)
	if err != nil {
		return nil, nil, nil, err
	}

	path, err := multisig.ParsePath(h.Path)
	if err != nil {
		return nil, nil, nil, err
	}

	return multisig.NewBuilder(params, nil), keys, path, nil
}

type hdmAddrCommand struct {
	hdmArgs

	Args xpubArgs `positional-args:"yes"`

	app *app
}

func (c *hdmAddrCommand) Execute(_ []string) error {
	builder, keys, path, err := c.build(c.app, c.Args.XPubs)
	if err != nil {
		return err
	}

	addr, err := builder.BuildAddress(keys, path, c.Required)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.app.out, addr.EncodeAddress())

	return nil
}

type hdmScriptCommand struct {
	hdmArgs

	Args xpubArgs `positional-args:"yes"`

	app *app
}

func (c *hdmScriptCommand) Execute(_ []string) error {
	builder, keys, path, err := c.build(c.app, c.Args.XPubs)
	if err != nil {
		return err
	}

	script, err := builder.BuildScript(keys, path, c.Required)
	if err != nil {
		return err
	}

	redeem, err := script.RedeemScript()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.app.out, hex.EncodeToString(redeem))

	return nil
}

type setupCommand struct {
	Store bool `long:"store" description:"Store the result as a signing session"`

	Args struct {
		Tx           string `positional-arg-name:"tx" required:"yes"`
		RedeemScript string `positional-arg-name:"redeemscript" required:"yes"`
	} `positional-args:"yes"`

	app *app
}

func (c *setupCommand) Execute(_ []string) error {
	tx, err := wallet.DecodeTxHex(c.Args.Tx)
	if err != nil {
		return err
	}

	redeem, err := decodeHex("redeem script", c.Args.RedeemScript)
	if err != nil {
		return err
	}

	if !c.Store {
		setupTx, err := vault.Setup(tx, redeem)
		if err != nil {
			return err
		}

		return printTx(c.app, setupTx)
	}

	return c.app.withStore(func(store *vaultdb.Store) error {
		session, err := store.CreateSession(tx, redeem)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.app.out, "session %v\n", session.ID)

		return printTx(c.app, session.Tx)
	})
}

type signCommand struct {
	vaultSource

	WIF string `long:"wif" description:"Private key in WIF; read from the terminal when omitted"`

	app *app
}

func (c *signCommand) Execute(_ []string) error {
	wif, err := c.app.readWIF(c.WIF)
	if err != nil {
		return err
	}

	var result *vault.SignResult
	if c.hasSession() {
		id, err := c.sessionID()
		if err != nil {
			return err
		}

		err = c.app.withStore(func(store *vaultdb.Store) error {
			var err error
			result, err = store.Sign(id, wif.PrivKey, nil)

			return err
		})
		if err != nil {
			return err
		}
	} else {
		tx, err := c.load(c.app)
		if err != nil {
			return err
		}

		result, err = vault.SignOneSigner(tx, wif.PrivKey, nil)
		if err != nil {
			return err
		}
	}

	log.Infof("Signed %d of %d inputs", result.NumChanged(),
		len(result.Changed))

	return printTx(c.app, result.Tx)
}

type statusCommand struct {
	vaultSource

	app *app
}

func (c *statusCommand) Execute(_ []string) error {
	if c.hasSession() || c.Tx != "" {
		tx, err := c.load(c.app)
		if err != nil {
			return err
		}

		states, err := vault.InputStates(tx)
		if err != nil {
			return err
		}

		fmt.Fprintln(c.app.out, formatStates(states))

		return nil
	}

	return c.app.withStore(func(store *vaultdb.Store) error {
		sessions, err := store.ListSessions()
		if err != nil {
			return err
		}

		for _, session := range sessions {
			states, err := session.States()
			if err != nil {
				return fmt.Errorf("session %v: %w", session.ID,
					err)
			}

			fmt.Fprintf(c.app.out, "%v %s %s\n", session.ID,
				session.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
				formatStates(states))
		}

		return nil
	})
}

type psbtCommand struct {
	vaultSource

	app *app
}

func (c *psbtCommand) Execute(_ []string) error {
	tx, err := c.load(c.app)
	if err != nil {
		return err
	}

	packet, err := vault.ExportPacket(tx)
	if err != nil {
		return err
	}

	encoded, err := packet.B64Encode()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.app.out, encoded)

	return nil
}

// formatStates renders input states as a comma separated list.
func formatStates(states []vault.State) string {
	names := make([]string, 0, len(states))
	for _, state := range states {
		names = append(names, state.String())
	}

	return strings.Join(names, ",")
}

// printTx writes the hex encoding of tx.
func printTx(a *app, tx *wire.MsgTx) error {
	encoded, err := wallet.EncodeTxHex(tx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, encoded)

	return nil
}
