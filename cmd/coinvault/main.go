// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command coinvault builds, signs, inspects and broadcasts bitcoin
// transactions, including k-of-n vault spends signed by several parties.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
)

// app carries the parsed global options to the commands.
type app struct {
	cfg config
	out io.Writer
	in  io.Reader
}

// newParser returns a parser for the global options with every command
// registered.
func newParser(a *app) (*flags.Parser, error) {
	parser := flags.NewParser(&a.cfg, flags.Default)

	commands := []struct {
		name  string
		short string
		long  string
		data  interface{}
	}{
		{
			name:  "hdmaddr",
			short: "Derive a k-of-n multisig address",
			long: "Derive the P2SH address of a k-of-n multisig " +
				"over child keys of the given extended public keys",
			data: &hdmAddrCommand{app: a},
		},
		{
			name:  "hdmscript",
			short: "Derive a k-of-n multisig redeem script",
			long: "Derive the redeem script of a k-of-n multisig " +
				"over child keys of the given extended public keys",
			data: &hdmScriptCommand{app: a},
		},
		{
			name:  "setup",
			short: "Prepare a transaction for vault signing",
			long: "Give every input of the transaction the empty " +
				"vault script for the redeem script, optionally " +
				"storing it as a signing session",
			data: &setupCommand{app: a},
		},
		{
			name:  "sign",
			short: "Add one signer's signatures to a vault transaction",
			long: "Sign every input of a vault transaction or stored " +
				"session with one private key",
			data: &signCommand{app: a},
		},
		{
			name:  "status",
			short: "Show the signing state of vault transactions",
			long: "Show the per input signing state of a vault " +
				"transaction, a stored session or every session",
			data: &statusCommand{app: a},
		},
		{
			name:  "psbt",
			short: "Export a vault transaction as a PSBT",
			long: "Export a vault transaction or stored session as a " +
				"base64 encoded PSBT",
			data: &psbtCommand{app: a},
		},
		{
			name:  "inspect",
			short: "Show the value flow of a transaction",
			long: "Resolve the inputs of a transaction against the " +
				"chain backend and show its fee and outputs",
			data: &inspectCommand{app: a},
		},
		{
			name:  "prepare",
			short: "Build an unsigned transaction",
			long: "Select outputs of an address and build an " +
				"unsigned transaction paying the requested outputs",
			data: &prepareCommand{app: a},
		},
		{
			name:  "send",
			short: "Build, sign and broadcast a payment",
			long: "Pay the requested outputs from the P2PKH address " +
				"of a private key",
			data: &sendCommand{app: a},
		},
		{
			name:  "fee",
			short: "Query fee rates",
			long: "Show the fee rate quoted by the chain backend and " +
				"optionally the fee of a transaction at that rate",
			data: &feeCommand{app: a},
		},
		{
			name:  "merkleproof",
			short: "Build a merkle inclusion proof",
			long: "Build and verify the merkle proof of a confirmed " +
				"transaction",
			data: &merkleProofCommand{app: a},
		},
	}

	for _, c := range commands {
		_, err := parser.AddCommand(c.name, c.short, c.long, c.data)
		if err != nil {
			return nil, err
		}
	}

	parser.CommandHandler = func(command flags.Commander,
		args []string) error {

		if err := a.start(); err != nil {
			return err
		}
		defer closeLogRotator()

		return command.Execute(args)
	}

	return parser, nil
}

// start validates the global options and starts logging.
func (a *app) start() error {
	if a.cfg.DebugLevel == "show" {
		fmt.Fprintln(a.out, "Supported subsystems",
			supportedSubsystems())
		os.Exit(0)
	}

	if err := a.cfg.validate(); err != nil {
		return err
	}

	if err := parseAndSetDebugLevels(a.cfg.DebugLevel); err != nil {
		return err
	}

	if a.cfg.LogDir == "" {
		return nil
	}

	params, err := a.cfg.chainParams()
	if err != nil {
		return err
	}

	logFile := filepath.Join(
		a.cfg.LogDir, strings.ToLower(params.Name), defaultLogFilename,
	)

	return initLogRotator(logFile)
}

func realMain(args []string) error {
	a := &app{
		cfg: defaultConfig(),
		out: os.Stdout,
		in:  os.Stdin,
	}

	parser, err := newParser(a)
	if err != nil {
		return err
	}

	_, err = parser.ParseArgs(args)

	return err
}

func main() {
	if err := realMain(os.Args[1:]); err != nil {
		// go-flags has already printed parse errors and help.
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) {
			fmt.Fprintln(os.Stderr, err)
		}

		if flagsErr != nil && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}
}
