package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/commands/server"
	"github.com/tendermint/tendermint/libs/log"
)

var (
	flagHome = "home"
	varHome  *string
)

func init() {
	defaultHome := filepath.Join(os.ExpandEnv("$HOME"), ".simplexd")
	varHome = flag.String(flagHome, defaultHome, "directory to store files under")
}

func helpMessage() {
	fmt.Println("simplexd")
	fmt.Println("        Payment channel node")
	fmt.Println("")
	fmt.Println("help     Print this message")
	fmt.Println("init     Write the configuration file and generate a key")
	fmt.Println("         -peer, -resolver, -ledger addresses fill the configuration")
	fmt.Println("validate Check the configuration file")
	fmt.Println("start    Connect to the service node and run")
	fmt.Println("         -osp, -eth endpoints, -pay_registry address, -versioned store")
	fmt.Println("version  Print the node version")
	fmt.Println("")
	flag.PrintDefaults()
}

func main() {
	logger := log.NewTMLogger(log.NewSyncWriter(os.Stdout)).
		With("module", "simplex")

	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Println("Missing command:")
		helpMessage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	rest := flag.Args()[1:]

	var err error
	switch cmd {
	case "help":
		helpMessage()
	case "init":
		err = server.InitCmd(logger, *varHome, rest)
	case "validate":
		err = server.ValidateConfig(filepath.Join(*varHome, server.ConfigFile))
	case "start":
		err = server.StartCmd(logger, *varHome, rest)
	case "version":
		fmt.Println(simplex.Version())
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		helpMessage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %+v\n\n", err)
		os.Exit(1)
	}
}
