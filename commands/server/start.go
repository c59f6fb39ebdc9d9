package server

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/ethledger"
	"github.com/iov-one/simplex/node"
	"github.com/iov-one/simplex/rpcclient"
	"github.com/tendermint/tendermint/libs/log"
	"google.golang.org/grpc"
)

const (
	flagOSP       = "osp"
	flagEth       = "eth"
	flagRegistry  = "pay_registry"
	flagVersioned = "versioned"

	dataDir = "data"
)

type startArgs struct {
	osp       string
	eth       string
	registry  string
	versioned bool
}

func parseStartArgs(args []string) (startArgs, error) {
	var res startArgs
	startFlags := flag.NewFlagSet("start", flag.ContinueOnError)
	startFlags.StringVar(&res.osp, flagOSP, "localhost:10000", "gRPC address of the service node")
	startFlags.StringVar(&res.eth, flagEth, "http://localhost:8545", "Ethereum JSON-RPC endpoint")
	startFlags.StringVar(&res.registry, flagRegistry, "", "address of the pay registry contract")
	startFlags.BoolVar(&res.versioned, flagVersioned, false, "keep the history of every record")
	if err := startFlags.Parse(args); err != nil {
		return res, errors.Wrap(errors.ErrInput, err.Error())
	}
	if res.registry == "" {
		return res, errors.Field(flagRegistry, errors.ErrEmpty, "required")
	}
	return res, nil
}

// StartCmd runs the node from the home directory until interrupted.
func StartCmd(logger log.Logger, home string, args []string) error {
	flags, err := parseStartArgs(args)
	if err != nil {
		return err
	}
	registry, err := crypto.ParseAddress(flags.registry)
	if err != nil {
		return errors.Field(flagRegistry, err, "invalid address")
	}
	key, err := crypto.LoadKey(filepath.Join(home, KeyFile))
	if err != nil {
		return err
	}

	db, cleanup, err := node.OpenStore(filepath.Join(home, dataDir), flags.versioned)
	if err != nil {
		return err
	}
	defer cleanup()
	conf, err := LoadConfig(db, filepath.Join(home, ConfigFile))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case s := <-sig:
			logger.Info("Shutting down", "signal", s.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	ledger, err := ethledger.Dial(flags.eth, ethledger.Config{Ledger: conf.LedgerAddress, PayRegistry: registry}, key, logger)
	if err != nil {
		return err
	}
	client, err := rpcclient.Dial(ctx, flags.osp, grpc.WithInsecure())
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := node.New(conf, db, crypto.NewKeySigner(key), ledger, client, logger)
	if err != nil {
		return err
	}
	logger.Info("Starting node", "osp", flags.osp, "eth", flags.eth)
	if err := n.Connect(ctx, client); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
