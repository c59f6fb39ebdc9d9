package node_test

import (
	"context"
	"encoding/binary"
	"io/ioutil"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/node"
	"github.com/iov-one/simplex/simplextest"
	"github.com/iov-one/simplex/simplextest/assert"
	"github.com/iov-one/simplex/store"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
	"github.com/iov-one/simplex/x/protocol"
	"github.com/stretchr/testify/require"
)

// session connects the loopback transport to the node for as long as the
// context is alive.
type session struct {
	transport *simplextest.Transport
	auth      chan *protocol.AuthReq
	err       error
}

func (s *session) Run(ctx context.Context, auth *protocol.AuthReq, sink func(*simplex.CelerMsg)) error {
	s.transport.Connect(sink)
	s.auth <- auth
	<-ctx.Done()
	return s.err
}

type fixture struct {
	node      *node.Node
	self      *crypto.KeySigner
	peer      *simplextest.Peer
	transport *simplextest.Transport
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	resolver := simplextest.NewAddress()
	peer := simplextest.NewPeer(resolver)
	conf := protocol.DefaultConfiguration()
	conf.PayResolver = resolver
	conf.LedgerAddress = simplextest.NewAddress()
	conf.PeerAddress = peer.Address()

	self := simplextest.NewKey()
	transport := simplextest.NewTransport(peer)
	n, err := node.New(conf, store.NewSyncStore(store.MemStore()), self, simplextest.NewLedger(100), transport, nil)
	require.NoError(t, err)
	return fixture{node: n, self: self, peer: peer, transport: transport}
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	conf := protocol.DefaultConfiguration()
	conf.PeerAddress = simplextest.NewAddress()
	peer := simplextest.NewPeer(simplextest.NewAddress())

	_, err := node.New(conf, store.MemStore(), simplextest.NewKey(), simplextest.NewLedger(1), simplextest.NewTransport(peer), nil)
	assert.IsErr(t, errors.ErrEmpty, err)
}

func TestConnectedNodePays(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &session{transport: f.transport, auth: make(chan *protocol.AuthReq, 1)}
	done := make(chan error, 1)
	go func() { done <- f.node.Connect(ctx, s) }()

	var auth *protocol.AuthReq
	select {
	case auth = <-s.auth:
	case <-time.After(time.Second):
		t.Fatal("session not started")
	}
	require.Equal(t, f.self.Address().Bytes(), auth.MyAddr)
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, auth.Timestamp)
	require.True(t, crypto.VerifySignature(raw, auth.MySig, f.self.Address()))

	ctrl := f.node.Controller()
	token := paychan.NewTokenInfo(common.Address{})
	deposit := big.NewInt(5e16)
	_, err := ctrl.OpenChannel(ctx, token, deposit, deposit)
	require.NoError(t, err)

	cond, err := ctrl.NewHashLockCondition()
	require.NoError(t, err)
	payID, err := ctrl.SendConditionalPayment(ctx, f.peer.Address(), token, big.NewInt(7), []*payment.Condition{cond}, protocol.PayOptions{})
	require.NoError(t, err)
	f.node.Wait()

	info, err := ctrl.GetPaymentInfo(payID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	assert.Amount(t, "7", info.SettlementAmount)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("connect did not return")
	}
}

func TestConnectReturnsSessionError(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		transport: f.transport,
		auth:      make(chan *protocol.AuthReq, 1),
		err:       errors.Wrap(errors.ErrTransport, "stream closed"),
	}
	cancel()
	err := f.node.Connect(ctx, s)
	assert.IsErr(t, errors.ErrTransport, err)
}

func TestOpenStore(t *testing.T) {
	cases := map[string]bool{
		"plain":     false,
		"versioned": true,
	}
	for testName, versioned := range cases {
		t.Run(testName, func(t *testing.T) {
			dir, err := ioutil.TempDir("", "simplex-node")
			require.NoError(t, err)
			defer os.RemoveAll(dir)

			kv, cleanup, err := node.OpenStore(dir, versioned)
			require.NoError(t, err)
			defer cleanup()

			cache := kv.CacheWrap()
			require.NoError(t, cache.Set([]byte("key"), []byte("value")))
			require.NoError(t, cache.Write())

			got, err := kv.Get([]byte("key"))
			require.NoError(t, err)
			require.Equal(t, []byte("value"), got)
		})
	}
}
