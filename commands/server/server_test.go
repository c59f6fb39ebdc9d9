package server

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/simplextest"
	"github.com/iov-one/simplex/simplextest/assert"
	"github.com/iov-one/simplex/store"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
)

func tempHome(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "simplexd")
	require.NoError(t, err)
	return filepath.Join(dir, "home"), func() { os.RemoveAll(dir) }
}

func TestInitCmd(t *testing.T) {
	home, cleanup := tempHome(t)
	defer cleanup()

	peer, resolver, ledger := simplextest.NewAddress(), simplextest.NewAddress(), simplextest.NewAddress()
	args := []string{"-peer", peer.Hex(), "-resolver", resolver.Hex(), "-ledger", ledger.Hex()}
	require.NoError(t, InitCmd(log.NewNopLogger(), home, args))

	confPath := filepath.Join(home, ConfigFile)
	require.NoError(t, ValidateConfig(confPath))
	conf, err := LoadConfig(store.MemStore(), confPath)
	require.NoError(t, err)
	assert.Equal(t, peer, conf.PeerAddress)
	assert.Equal(t, resolver, conf.PayResolver)
	assert.Equal(t, ledger, conf.LedgerAddress)
	assert.Equal(t, uint32(1000), conf.MaxPendingPays)

	key, err := crypto.LoadKey(filepath.Join(home, KeyFile))
	require.NoError(t, err)

	// a second run keeps what is there
	require.NoError(t, InitCmd(log.NewNopLogger(), home, nil))
	again, err := crypto.LoadKey(filepath.Join(home, KeyFile))
	require.NoError(t, err)
	assert.Equal(t, crypto.NewKeySigner(key).Address(), crypto.NewKeySigner(again).Address())
	require.NoError(t, ValidateConfig(confPath))
}

func TestInitCmdWithoutAddresses(t *testing.T) {
	home, cleanup := tempHome(t)
	defer cleanup()

	require.NoError(t, InitCmd(log.NewNopLogger(), home, nil))
	err := ValidateConfig(filepath.Join(home, ConfigFile))
	assert.IsErr(t, errors.ErrEmpty, err)
}

func TestGenOptionsInvalidAddress(t *testing.T) {
	_, err := GenOptions([]string{"-peer", "not-an-address"})
	assert.FieldError(t, err, flagPeer, errors.ErrInput)
}

func TestParseStartArgs(t *testing.T) {
	cases := map[string]struct {
		Args    []string
		Want    startArgs
		WantErr *errors.Error
	}{
		"defaults": {
			Args: []string{"-pay_registry", "0x01"},
			Want: startArgs{osp: "localhost:10000", eth: "http://localhost:8545", registry: "0x01"},
		},
		"versioned store": {
			Args: []string{"-pay_registry", "0x01", "-versioned", "-osp", "osp:443"},
			Want: startArgs{osp: "osp:443", eth: "http://localhost:8545", registry: "0x01", versioned: true},
		},
		"missing registry": {
			WantErr: errors.ErrEmpty,
		},
		"unknown flag": {
			Args:    []string{"-bind", "x"},
			WantErr: errors.ErrInput,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := parseStartArgs(tc.Args)
			if tc.WantErr != nil {
				assert.IsErr(t, tc.WantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Want, got)
		})
	}
}
