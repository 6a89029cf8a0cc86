// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/coinvault/chain"
	"github.com/btcsuite/coinvault/vaultdb"
	"github.com/btcsuite/coinvault/wallet"
)

const (
	defaultLogFilename = "coinvault.log"
	defaultDBFilename  = "vault.db"
	defaultDebugLevel  = "info"
	defaultNetwork     = "mainnet"
)

var (
	defaultAppDir = btcutil.AppDataDir("coinvault", false)
	defaultLogDir = filepath.Join(defaultAppDir, "logs")
	defaultDBPath = filepath.Join(defaultAppDir, defaultDBFilename)

	// errNoBackend is returned by commands that need a chain backend when
	// no rpc server is configured.
	errNoBackend = errors.New("no rpc server configured, set --rpcconnect")
)

// config holds the global options shared by every command.
type config struct {
	Network    string `long:"network" description:"Bitcoin network to use" choice:"mainnet" choice:"testnet3" choice:"regtest" choice:"simnet" choice:"signet" default:"mainnet"`
	RPCConnect string `long:"rpcconnect" description:"Hostname/IP and port of the btcd or bitcoind RPC server"`
	RPCUser    string `long:"rpcuser" description:"RPC username"`
	RPCPass    string `long:"rpcpass" default-mask:"-" description:"RPC password"`
	RPCCert    string `long:"rpccert" description:"File containing the RPC server certificate"`
	NoTLS      bool   `long:"notls" description:"Disable TLS for the RPC connection"`
	MinConf    int    `long:"minconf" default:"1" description:"Minimum confirmations of spendable outputs"`
	DustFee    int64  `long:"dustrelayfee" description:"Relay fee in sat/kB used to judge dust change; defaults to the network default"`
	Oldest     bool   `long:"oldestfirst" description:"Spend the most confirmed outputs first instead of the largest"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	VaultDB    string `long:"vaultdb" description:"Path to the vault session database"`
}

// defaultConfig returns the config with every default applied.
func defaultConfig() config {
	return config{
		Network:    defaultNetwork,
		MinConf:    1,
		LogDir:     defaultLogDir,
		DebugLevel: defaultDebugLevel,
		VaultDB:    defaultDBPath,
	}
}

// chainParams returns the parameters of the configured network.
func (c *config) chainParams() (*chaincfg.Params, error) {
	switch strings.ToLower(c.Network) {
	case "mainnet", "":
		return &chaincfg.MainNetParams, nil
	case "testnet3", "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", c.Network)
	}
}

// validate checks the options that go-flags cannot check on its own.
func (c *config) validate() error {
	if _, err := c.chainParams(); err != nil {
		return err
	}

	if c.MinConf < 0 {
		return errors.New("minconf must not be negative")
	}

	if c.DustFee < 0 {
		return errors.New("dustrelayfee must not be negative")
	}

	if c.RPCConnect != "" && !c.NoTLS && c.RPCCert == "" {
		return errors.New("rpccert is required unless notls is set")
	}

	c.LogDir = cleanAndExpandPath(c.LogDir)
	c.VaultDB = cleanAndExpandPath(c.VaultDB)

	return nil
}

// walletConfig returns the composition policy for the configured network.
func (c *config) walletConfig() (*wallet.Config, error) {
	params, err := c.chainParams()
	if err != nil {
		return nil, err
	}

	cfg := wallet.DefaultConfig(params)
	if c.DustFee > 0 {
		cfg.DustRelayFee = btcutil.Amount(c.DustFee)
	}
	if c.Oldest {
		cfg.CoinSelection = wallet.CoinSelectionOldest
	}

	return cfg, nil
}

// newChainClient connects to the configured rpc server.
func (c *config) newChainClient() (*chain.BtcdClient, error) {
	if c.RPCConnect == "" {
		return nil, errNoBackend
	}

	params, err := c.chainParams()
	if err != nil {
		return nil, err
	}

	connCfg := &rpcclient.ConnConfig{
		Host:       c.RPCConnect,
		User:       c.RPCUser,
		Pass:       c.RPCPass,
		DisableTLS: c.NoTLS,
	}

	if !c.NoTLS {
		certs, err := os.ReadFile(cleanAndExpandPath(c.RPCCert))
		if err != nil {
			return nil, fmt.Errorf("read rpc cert: %w", err)
		}
		connCfg.Certificates = certs
	}

	return chain.NewBtcdClient(&chain.BtcdConfig{
		Conn:     connCfg,
		Chain:    params,
		MinConfs: c.MinConf,
	})
}

// openStore opens the vault session database, creating its directory if
// needed.
func (c *config) openStore() (*vaultdb.Store, error) {
	if err := os.MkdirAll(filepath.Dir(c.VaultDB), 0o700); err != nil {
		return nil, err
	}

	return vaultdb.Open(c.VaultDB)
}

// cleanAndExpandPath expands a leading ~ and environment variables in path.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
