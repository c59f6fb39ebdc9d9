package server

import (
	"encoding/json"
	"flag"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/protocol"
	"github.com/tendermint/tendermint/libs/log"
)

const (
	// ConfigFile holds the node options, in the home directory.
	ConfigFile = "config.json"
	// KeyFile holds the hex encoded private key of the node.
	KeyFile = "key.hex"

	flagPeer     = "peer"
	flagResolver = "resolver"
	flagLedger   = "ledger"
)

type initArgs struct {
	peer     string
	resolver string
	ledger   string
}

func parseInitArgs(args []string) (initArgs, error) {
	var res initArgs
	initFlags := flag.NewFlagSet("init", flag.ContinueOnError)
	initFlags.StringVar(&res.peer, flagPeer, "", "address of the service node")
	initFlags.StringVar(&res.resolver, flagResolver, "", "address of the pay resolver contract")
	initFlags.StringVar(&res.ledger, flagLedger, "", "address of the channel ledger contract")
	if err := initFlags.Parse(args); err != nil {
		return res, errors.Wrap(errors.ErrInput, err.Error())
	}
	return res, nil
}

// GenOptions returns the node options with the default protocol
// configuration, completed with the addresses given as flags.
func GenOptions(args []string) (simplex.Options, error) {
	flags, err := parseInitArgs(args)
	if err != nil {
		return nil, err
	}
	conf := protocol.DefaultConfiguration()
	for _, a := range []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{flagPeer, flags.peer, &conf.PeerAddress},
		{flagResolver, flags.resolver, &conf.PayResolver},
		{flagLedger, flags.ledger, &conf.LedgerAddress},
	} {
		if a.value == "" {
			continue
		}
		addr, err := crypto.ParseAddress(a.value)
		if err != nil {
			return nil, errors.Field(a.name, err, "invalid address")
		}
		*a.dst = addr
	}

	raw, err := json.Marshal(map[string]protocol.Configuration{"protocol": conf})
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	return simplex.Options{"conf": raw}, nil
}

// InitCmd writes the configuration file and generates the node key in the
// home directory. Existing files are kept.
func InitCmd(logger log.Logger, home string, args []string) error {
	if err := os.MkdirAll(home, 0700); err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}

	confPath := filepath.Join(home, ConfigFile)
	if fileExists(confPath) {
		logger.Info("Found config file", "path", confPath)
	} else {
		opts, err := GenOptions(args)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(opts, "", "  ")
		if err != nil {
			return errors.Wrap(errors.ErrInput, err.Error())
		}
		if err := ioutil.WriteFile(confPath, out, 0600); err != nil {
			return errors.Wrap(errors.ErrInput, err.Error())
		}
		logger.Info("Generated config file", "path", confPath)
	}

	keyPath := filepath.Join(home, KeyFile)
	if fileExists(keyPath) {
		logger.Info("Found key", "path", keyPath)
		return nil
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveKey(keyPath, key); err != nil {
		return err
	}
	logger.Info("Generated key", "path", keyPath, "addr", crypto.NewKeySigner(key).Address().Hex())
	return nil
}

func fileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}
