package protocol_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/app"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/simplextest"
	"github.com/iov-one/simplex/simplextest/assert"
	"github.com/iov-one/simplex/store"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
	"github.com/iov-one/simplex/x/protocol"
	"github.com/stretchr/testify/require"
)

// deposit is the amount both parties lock when opening a channel.
var deposit = big.NewInt(5e16)

// node is a controller wired to a scripted peer.
type node struct {
	t          *testing.T
	ctx        context.Context
	db         simplex.CacheableKVStore
	self       *crypto.KeySigner
	conf       protocol.Configuration
	peer       *simplextest.Peer
	ledger     *simplextest.Ledger
	transport  *simplextest.Transport
	ctrl       *protocol.Controller
	dispatcher *app.Dispatcher
	token      *paychan.TokenInfo
	channelID  []byte

	mu    sync.Mutex
	inbox []*simplex.CelerMsg
}

func newNode(t *testing.T, configure func(*protocol.Configuration)) *node {
	t.Helper()
	resolver := simplextest.NewAddress()
	peer := simplextest.NewPeer(resolver)

	conf := protocol.DefaultConfiguration()
	conf.PayResolver = resolver
	conf.LedgerAddress = simplextest.NewAddress()
	conf.PeerAddress = peer.Address()
	if configure != nil {
		configure(&conf)
	}
	require.NoError(t, conf.Validate())

	n := &node{
		t:         t,
		ctx:       context.Background(),
		db:        store.NewSyncStore(store.MemStore()),
		self:      simplextest.NewKey(),
		conf:      conf,
		peer:      peer,
		ledger:    simplextest.NewLedger(100),
		transport: simplextest.NewTransport(peer),
		token:     paychan.NewTokenInfo(common.Address{}),
	}
	n.start()

	channelID, err := n.ctrl.OpenChannel(n.ctx, n.token, deposit, deposit)
	require.NoError(t, err)
	n.channelID = channelID
	return n
}

// start builds the controller and dispatcher on top of the node store.
func (n *node) start() {
	n.ctrl = protocol.NewController(n.db, n.self, n.ledger, n.transport, n.conf)
	router := app.NewRouter()
	protocol.RegisterRoutes(router, n.ctrl)
	require.NoError(n.t, router.Validate())
	n.dispatcher = app.NewDispatcher(n.ctx, simplex.HandlerFunc(router.Dispatch))
	n.transport.Connect(n.deliver)
}

// deliver hands a message to the node, as the transport subscription
// would.
func (n *node) deliver(msg *simplex.CelerMsg) {
	n.mu.Lock()
	n.inbox = append(n.inbox, msg)
	n.mu.Unlock()
	n.dispatcher.Enqueue(msg)
}

// received returns all messages of given type delivered to the node.
func (n *node) received(mt simplex.MsgType) []*simplex.CelerMsg {
	n.mu.Lock()
	defer n.mu.Unlock()
	var res []*simplex.CelerMsg
	for _, m := range n.inbox {
		if m.Type == mt {
			res = append(res, m)
		}
	}
	return res
}

// process delivers messages and waits until the node handled them together
// with everything they triggered.
func (n *node) process(msgs ...*simplex.CelerMsg) {
	for _, m := range msgs {
		n.deliver(m)
	}
	n.dispatcher.Wait()
}

func (n *node) channel() *paychan.PaymentChannel {
	n.t.Helper()
	pc, err := n.ctrl.GetChannel(n.channelID)
	require.NoError(n.t, err)
	return pc
}

func (n *node) payment(payID []byte) *protocol.PaymentInfo {
	n.t.Helper()
	info, err := n.ctrl.GetPaymentInfo(payID)
	require.NoError(n.t, err)
	return info
}

func (n *node) balance() *paychan.Balance {
	n.t.Helper()
	b, err := n.ctrl.GetBalance(n.token)
	require.NoError(n.t, err)
	return b
}

// outSeq returns the sequence number of the last cosigned outgoing state.
func (n *node) outSeq() uint64 {
	n.t.Helper()
	s, err := paychan.DecodeSimplex(n.channel().OutState)
	require.NoError(n.t, err)
	return s.SeqNum
}

// hashLockedPay sends a payment of given amount locked by a new secret.
func (n *node) hashLockedPay(dest common.Address, amount int64, opts protocol.PayOptions) []byte {
	n.t.Helper()
	cond, err := n.ctrl.NewHashLockCondition()
	require.NoError(n.t, err)
	payID, err := n.ctrl.SendConditionalPayment(n.ctx, dest, n.token, big.NewInt(amount), []*payment.Condition{cond}, opts)
	require.NoError(n.t, err)
	return payID
}

// incomingPay makes the peer send a payment to the node and returns the
// payment id with the secret opening it.
func (n *node) incomingPay(amount *big.Int, deadline uint64) (*simplex.CelerMsg, []byte, []byte) {
	n.t.Helper()
	secret, err := crypto.NewSecret()
	require.NoError(n.t, err)
	pay := n.peer.NewPay(n.self.Address(), n.token, amount, crypto.Keccak256(secret), deadline)
	msg, payID, err := n.peer.CondPayRequest(n.channelID, pay)
	require.NoError(n.t, err)
	return msg, payID, secret
}

// requireSameState fails the test if both signed states differ.
func requireSameState(t *testing.T, want, got *paychan.SignedSimplexState) {
	t.Helper()
	if !bytes.Equal(want.GetSimplexState(), got.GetSimplexState()) ||
		!bytes.Equal(want.GetSigOfPeerFrom(), got.GetSigOfPeerFrom()) ||
		!bytes.Equal(want.GetSigOfPeerTo(), got.GetSigOfPeerTo()) {
		t.Fatalf("signed states differ\nwant %v\n got %v", want, got)
	}
}

func settled(payID []byte, reason payment.PaymentSettleReason, amount *big.Int) []*protocol.SettledPayment {
	return []*protocol.SettledPayment{
		{SettledPayId: payID, Reason: reason, Amount: paychan.AmountBytes(amount)},
	}
}

func TestOpenChannel(t *testing.T) {
	n := newNode(t, nil)

	pc := n.channel()
	require.Equal(t, paychan.StatusOpen, pc.Status)
	require.Equal(t, n.self.Address(), pc.Self())
	require.Equal(t, n.peer.Address(), pc.Peer())
	require.Equal(t, uint64(0), n.outSeq())

	b := n.balance()
	assert.Amount(t, "50000000000000000", b.FreeSending)
	assert.Amount(t, "50000000000000000", b.FreeReceiving)

	// an open channel for the same token is reused
	again, err := n.ctrl.OpenChannel(n.ctx, n.token, deposit, deposit)
	require.NoError(t, err)
	require.Equal(t, n.channelID, again)
}

func TestHashLockPaymentSent(t *testing.T) {
	n := newNode(t, nil)

	payID := n.hashLockedPay(n.peer.Address(), 1, protocol.PayOptions{Note: []byte("coffee")})
	n.dispatcher.Wait()

	info := n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	require.Equal(t, payment.PaymentSettleReason_PAY_PAID_MAX, info.SettleReason)
	assert.Amount(t, "1", info.SettlementAmount)
	require.Equal(t, []byte("coffee"), info.Note)

	// request, reveal and settle
	require.Len(t, n.transport.Sent(simplex.MsgCondPayRequest), 1)
	require.Len(t, n.transport.Sent(simplex.MsgRevealSecret), 1)
	require.Len(t, n.transport.Sent(simplex.MsgPaymentSettleRequest), 1)

	pc := n.channel()
	require.Nil(t, pc.OutProposal)
	require.Equal(t, uint64(2), n.outSeq())
	out, err := paychan.DecodeSimplex(pc.OutState)
	require.NoError(t, err)
	require.Empty(t, out.GetPendingPayIds().GetPayIds())
	assert.Amount(t, "0", paychan.TransferAmount(out.TotalPendingAmount))
	assert.Amount(t, "1", paychan.TransferAmount(out.TransferToPeer))

	b := n.balance()
	assert.Amount(t, "49999999999999999", b.FreeSending)
	assert.Amount(t, "50000000000000001", b.FreeReceiving)
	assert.Amount(t, "0", b.LockedSending)

	// a late answer to the first request must not roll the state back
	responses := n.received(simplex.MsgCondPayResponse)
	require.Len(t, responses, 1)
	n.process(responses[0])
	require.Equal(t, uint64(2), n.outSeq())
	require.Equal(t, payment.StatusCoSignedSettled, n.payment(payID).Status)
}

func TestPaymentPendingUntilSecretRevealed(t *testing.T) {
	n := newNode(t, nil)

	// destination behind the peer, no receipt is ever sent back
	payID := n.hashLockedPay(simplextest.NewAddress(), 100, protocol.PayOptions{})
	n.dispatcher.Wait()

	require.Equal(t, payment.StatusCoSignedPending, n.payment(payID).Status)
	require.Empty(t, n.transport.Sent(simplex.MsgRevealSecret))

	b := n.balance()
	assert.Amount(t, "49999999999999900", b.FreeSending)
	assert.Amount(t, "100", b.LockedSending)
	assert.Amount(t, "50000000000000000", b.FreeReceiving)
}

func TestPaymentRejectedByPeer(t *testing.T) {
	n := newNode(t, nil)
	n.peer.RejectPays = "Too many pending payments"

	payID := n.hashLockedPay(n.peer.Address(), 10, protocol.PayOptions{})
	n.dispatcher.Wait()

	require.Equal(t, payment.StatusFailed, n.payment(payID).Status)
	pc := n.channel()
	require.Nil(t, pc.OutProposal)
	require.Equal(t, uint64(0), n.outSeq())
	assert.Amount(t, "50000000000000000", n.balance().FreeSending)

	// the channel is usable again
	n.peer.RejectPays = ""
	payID = n.hashLockedPay(n.peer.Address(), 10, protocol.PayOptions{})
	n.dispatcher.Wait()
	require.Equal(t, payment.StatusCoSignedSettled, n.payment(payID).Status)
	assert.Amount(t, "49999999999999990", n.balance().FreeSending)
}

func TestSendConditionalPaymentErrors(t *testing.T) {
	n := newNode(t, nil)
	cond, err := n.ctrl.NewHashLockCondition()
	require.NoError(t, err)
	conds := []*payment.Condition{cond}

	_, err = n.ctrl.SendConditionalPayment(n.ctx, n.peer.Address(), n.token, big.NewInt(0), conds, protocol.PayOptions{})
	assert.IsErr(t, errors.ErrAmount, err)

	tooMuch := new(big.Int).Add(deposit, big.NewInt(1))
	_, err = n.ctrl.SendConditionalPayment(n.ctx, n.peer.Address(), n.token, tooMuch, conds, protocol.PayOptions{})
	assert.IsErr(t, errors.ErrAmount, err)

	erc20 := paychan.NewTokenInfo(simplextest.NewAddress())
	_, err = n.ctrl.SendConditionalPayment(n.ctx, n.peer.Address(), erc20, big.NewInt(1), conds, protocol.PayOptions{})
	assert.IsErr(t, errors.ErrNotFound, err)

	require.Empty(t, n.transport.Sent(simplex.MsgCondPayRequest))
	require.Nil(t, n.channel().OutProposal)
}

func TestTooManyPendingPayments(t *testing.T) {
	n := newNode(t, func(c *protocol.Configuration) { c.MaxPendingPays = 2 })
	dest := simplextest.NewAddress()
	n.hashLockedPay(dest, 1, protocol.PayOptions{})
	n.hashLockedPay(dest, 1, protocol.PayOptions{})
	n.dispatcher.Wait()

	cond, err := n.ctrl.NewHashLockCondition()
	require.NoError(t, err)
	_, err = n.ctrl.SendConditionalPayment(n.ctx, dest, n.token, big.NewInt(1), []*payment.Condition{cond}, protocol.PayOptions{})
	assert.IsErr(t, errors.ErrState, err)
	assert.Amount(t, "2", n.balance().LockedSending)
}

func TestSettleExpiredPayments(t *testing.T) {
	n := newNode(t, nil)
	payID := n.hashLockedPay(simplextest.NewAddress(), 7, protocol.PayOptions{TimeoutBlocks: 5})
	n.dispatcher.Wait()
	require.Equal(t, payment.StatusCoSignedPending, n.payment(payID).Status)

	// deadline is block 105, the safety margin is 4 blocks
	n.ledger.Advance(8)
	expired, err := n.ctrl.SettleExpiredPayments(n.ctx)
	require.NoError(t, err)
	require.Empty(t, expired)

	n.ledger.Advance(1)
	expired, err = n.ctrl.SettleExpiredPayments(n.ctx)
	require.NoError(t, err)
	require.Equal(t, [][]byte{payID}, expired)
	n.dispatcher.Wait()

	info := n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	require.Equal(t, payment.PaymentSettleReason_PAY_EXPIRED, info.SettleReason)
	assert.Amount(t, "0", info.SettlementAmount)

	b := n.balance()
	assert.Amount(t, "50000000000000000", b.FreeSending)
	assert.Amount(t, "0", b.LockedSending)
}

func TestExpiredPaymentResolvedOnChain(t *testing.T) {
	n := newNode(t, nil)
	payID := n.hashLockedPay(simplextest.NewAddress(), 7, protocol.PayOptions{TimeoutBlocks: 5})
	n.dispatcher.Wait()

	n.ledger.Resolve(payID, big.NewInt(7), 105)
	n.ledger.Advance(20)
	expired, err := n.ctrl.SettleExpiredPayments(n.ctx)
	require.NoError(t, err)
	require.Empty(t, expired)

	// the peer proves the on-chain resolution
	proof, err := simplex.NewMsg(simplex.MsgPaymentSettleProof, &protocol.PaymentSettleProof{
		SettledPays: settled(payID, payment.PaymentSettleReason_PAY_RESOLVED_ONCHAIN, nil),
	})
	require.NoError(t, err)
	n.process(proof)

	info := n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	require.Equal(t, payment.PaymentSettleReason_PAY_RESOLVED_ONCHAIN, info.SettleReason)
	assert.Amount(t, "7", info.SettlementAmount)
}

func TestReceivePayment(t *testing.T) {
	n := newNode(t, nil)
	msg, payID, secret := n.incomingPay(big.NewInt(3), 150)
	n.process(msg)

	info := n.payment(payID)
	require.Equal(t, payment.StatusCoSignedPending, info.Status)
	require.Len(t, n.transport.Sent(simplex.MsgCondPayReceipt), 1)

	var resp protocol.CondPayResponse
	require.NoError(t, n.transport.Last(simplex.MsgCondPayResponse, &resp))
	require.Nil(t, resp.Error)
	require.True(t, paychan.IsCosigned(resp.StateCosigned, n.self.Address(), n.peer.Address()))
	assert.Amount(t, "3", n.balance().LockedReceiving)

	reveal, err := simplex.NewMsg(simplex.MsgRevealSecret, &protocol.RevealSecret{PayId: payID, Secret: secret})
	require.NoError(t, err)
	n.process(reveal)
	require.Equal(t, payment.StatusHashLockRevealed, n.payment(payID).Status)

	var ack protocol.RevealSecretAck
	require.NoError(t, n.transport.Last(simplex.MsgRevealSecretAck, &ack))
	require.True(t, crypto.VerifySignature(secret, ack.PayDestSecretSig, n.self.Address()))

	settle, err := n.peer.SettleRequest(n.channelID, settled(payID, payment.PaymentSettleReason_PAY_PAID_MAX, big.NewInt(3)))
	require.NoError(t, err)
	n.process(settle)

	info = n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	assert.Amount(t, "3", info.SettlementAmount)

	b := n.balance()
	assert.Amount(t, "50000000000000003", b.FreeSending)
	assert.Amount(t, "49999999999999997", b.FreeReceiving)
	assert.Amount(t, "0", b.LockedReceiving)
}

func TestReceivePaymentRejected(t *testing.T) {
	cases := map[string]struct {
		Amount     *big.Int
		Deadline   uint64
		Tamper     func(*protocol.CondPayRequest)
		WantReason string
		WantCode   paychan.ErrCode
	}{
		"insufficient balance": {
			Amount:     new(big.Int).Add(deposit, big.NewInt(1)),
			Deadline:   150,
			WantReason: paychan.ReasonInsufficientBalance,
		},
		"wrong base sequence": {
			Amount:   big.NewInt(1),
			Deadline: 150,
			Tamper: func(req *protocol.CondPayRequest) {
				req.BaseSeq = 7
			},
			WantCode: paychan.ErrCode_INVALID_SEQ_NUM,
		},
		"not signed by the peer": {
			Amount:   big.NewInt(1),
			Deadline: 150,
			Tamper: func(req *protocol.CondPayRequest) {
				req.StateOnlyPeerFromSig.SigOfPeerFrom, _ = simplextest.NewKey().Sign(req.StateOnlyPeerFromSig.SimplexState)
			},
			WantCode: paychan.ErrCode_INVALID_SIG,
		},
		"malformed pay": {
			Amount:   big.NewInt(1),
			Deadline: 150,
			Tamper: func(req *protocol.CondPayRequest) {
				req.CondPay = []byte("not a pay")
			},
			WantReason: paychan.ReasonMalformedConditionalPay,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			n := newNode(t, nil)
			before := n.channel().InState

			msg, payID, _ := n.incomingPay(tc.Amount, tc.Deadline)
			if tc.Tamper != nil {
				var req protocol.CondPayRequest
				require.NoError(t, msg.Load(&req))
				tc.Tamper(&req)
				var err error
				msg, err = simplex.NewMsg(simplex.MsgCondPayRequest, &req)
				require.NoError(t, err)
			}
			n.process(msg)

			var resp protocol.CondPayResponse
			require.NoError(t, n.transport.Last(simplex.MsgCondPayResponse, &resp))
			require.NotNil(t, resp.Error)
			require.Equal(t, tc.WantReason, resp.Error.Reason)
			require.Equal(t, tc.WantCode, resp.Error.Code)
			requireSameState(t, before, resp.StateCosigned)

			requireSameState(t, before, n.channel().InState)
			_, err := n.ctrl.GetPaymentInfo(payID)
			assert.IsErr(t, errors.ErrNotFound, err)
			require.Empty(t, n.transport.Sent(simplex.MsgCondPayReceipt))
		})
	}
}

func TestReplayedRequestRejected(t *testing.T) {
	n := newNode(t, nil)
	msg, payID, _ := n.incomingPay(big.NewInt(2), 150)
	n.process(msg)
	n.process(msg)

	responses := n.transport.Sent(simplex.MsgCondPayResponse)
	require.Len(t, responses, 2)
	var resp protocol.CondPayResponse
	require.NoError(t, responses[1].Load(&resp))
	require.Equal(t, paychan.ErrCode_INVALID_SEQ_NUM, resp.Error.GetCode())

	require.Equal(t, payment.StatusCoSignedPending, n.payment(payID).Status)
	assert.Amount(t, "2", n.balance().LockedReceiving)
}

func TestExpiredIncomingPayment(t *testing.T) {
	n := newNode(t, nil)
	msg, payID, _ := n.incomingPay(big.NewInt(5), 105)
	n.process(msg)

	settle, err := n.peer.SettleRequest(n.channelID, settled(payID, payment.PaymentSettleReason_PAY_EXPIRED, nil))
	require.NoError(t, err)
	n.process(settle)

	var resp protocol.PaymentSettleResponse
	require.NoError(t, n.transport.Last(simplex.MsgPaymentSettleResponse, &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, paychan.ReasonPaymentNotExpired, resp.Error.Reason)
	require.Equal(t, payment.StatusCoSignedPending, n.payment(payID).Status)

	n.ledger.Advance(9)
	settle, err = n.peer.SettleRequest(n.channelID, settled(payID, payment.PaymentSettleReason_PAY_EXPIRED, nil))
	require.NoError(t, err)
	n.process(settle)

	require.NoError(t, n.transport.Last(simplex.MsgPaymentSettleResponse, &resp))
	require.Nil(t, resp.Error)
	info := n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	require.Equal(t, payment.PaymentSettleReason_PAY_EXPIRED, info.SettleReason)
	assert.Amount(t, "0", info.SettlementAmount)
	assert.Amount(t, "0", n.balance().LockedReceiving)
	assert.Amount(t, "50000000000000000", n.balance().FreeReceiving)
}

func TestSettleRequestRejected(t *testing.T) {
	cases := map[string]struct {
		Reason     payment.PaymentSettleReason
		Amount     *big.Int
		WantReason string
	}{
		"paid less than max": {
			Reason:     payment.PaymentSettleReason_PAY_PAID_MAX,
			Amount:     big.NewInt(4),
			WantReason: paychan.ReasonInvalidSettleAmount,
		},
		"rejected but never refused": {
			Reason:     payment.PaymentSettleReason_PAY_REJECTED,
			WantReason: paychan.ReasonInvalidSettleReason,
		},
		"unknown reason": {
			Reason:     payment.PaymentSettleReason_PAY_UNSPECIFIED,
			WantReason: paychan.ReasonInvalidSettleReason,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			n := newNode(t, nil)
			msg, payID, _ := n.incomingPay(big.NewInt(5), 150)
			n.process(msg)
			before := n.channel().InState

			settle, err := n.peer.SettleRequest(n.channelID, settled(payID, tc.Reason, tc.Amount))
			require.NoError(t, err)
			n.process(settle)

			var resp protocol.PaymentSettleResponse
			require.NoError(t, n.transport.Last(simplex.MsgPaymentSettleResponse, &resp))
			require.NotNil(t, resp.Error)
			require.Equal(t, tc.WantReason, resp.Error.Reason)
			requireSameState(t, before, n.channel().InState)
			require.Equal(t, payment.StatusCoSignedPending, n.payment(payID).Status)
		})
	}
}

func TestRejectPayment(t *testing.T) {
	n := newNode(t, nil)
	msg, payID, _ := n.incomingPay(big.NewInt(5), 150)
	n.process(msg)

	require.NoError(t, n.ctrl.RejectPayment(n.ctx, payID))
	n.dispatcher.Wait()

	require.Len(t, n.transport.Sent(simplex.MsgPaymentSettleProof), 1)
	info := n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	require.Equal(t, payment.PaymentSettleReason_PAY_REJECTED, info.SettleReason)
	assert.Amount(t, "0", info.SettlementAmount)
	assert.Amount(t, "50000000000000000", n.balance().FreeReceiving)

	// settled payments cannot be rejected again
	err := n.ctrl.RejectPayment(n.ctx, payID)
	assert.IsErr(t, errors.ErrState, err)
}

func TestPeerReportedRejection(t *testing.T) {
	n := newNode(t, nil)
	payID := n.hashLockedPay(simplextest.NewAddress(), 9, protocol.PayOptions{})
	n.dispatcher.Wait()

	proof, err := simplex.NewMsg(simplex.MsgPaymentSettleProof, &protocol.PaymentSettleProof{
		SettledPays: settled(payID, payment.PaymentSettleReason_PAY_DEST_UNREACHABLE, nil),
	})
	require.NoError(t, err)
	n.process(proof)

	info := n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	require.Equal(t, payment.PaymentSettleReason_PAY_DEST_UNREACHABLE, info.SettleReason)
	assert.Amount(t, "50000000000000000", n.balance().FreeSending)
}

func TestPendingAmountMatchesPendingPayments(t *testing.T) {
	n := newNode(t, nil)
	dest := simplextest.NewAddress()
	ids := [][]byte{
		n.hashLockedPay(dest, 3, protocol.PayOptions{TimeoutBlocks: 5}),
		n.hashLockedPay(dest, 4, protocol.PayOptions{TimeoutBlocks: 50}),
		n.hashLockedPay(n.peer.Address(), 5, protocol.PayOptions{TimeoutBlocks: 50}),
	}
	n.dispatcher.Wait()

	n.ledger.Advance(10)
	_, err := n.ctrl.SettleExpiredPayments(n.ctx)
	require.NoError(t, err)
	n.dispatcher.Wait()

	out, err := paychan.DecodeSimplex(n.channel().OutState)
	require.NoError(t, err)
	want := new(big.Int)
	for _, id := range out.GetPendingPayIds().GetPayIds() {
		want.Add(want, n.payment(id).MaxAmount)
	}
	require.Equal(t, want.String(), paychan.TransferAmount(out.TotalPendingAmount).String())
	require.Equal(t, [][]byte{ids[1]}, out.GetPendingPayIds().GetPayIds())
	assert.Amount(t, "5", paychan.TransferAmount(out.TransferToPeer))
}

func TestDepositAndWithdraw(t *testing.T) {
	n := newNode(t, nil)

	require.NoError(t, n.ctrl.Deposit(n.ctx, n.channelID, big.NewInt(10)))
	require.Equal(t, 1, n.ledger.Deposits())
	assert.Amount(t, "50000000000000010", n.balance().FreeSending)

	require.NoError(t, n.ctrl.CooperativeWithdraw(n.ctx, n.channelID, big.NewInt(1000)))
	require.Equal(t, 1, n.ledger.Withdraws())
	assert.Amount(t, "49999999999999010", n.balance().FreeSending)

	err := n.ctrl.CooperativeWithdraw(n.ctx, n.channelID, deposit)
	assert.IsErr(t, errors.ErrAmount, err)
}

func TestWithdrawTimeout(t *testing.T) {
	n := newNode(t, func(c *protocol.Configuration) {
		c.WithdrawTimeout = protocol.Duration(20 * time.Millisecond)
	})
	// answers of the peer are lost
	n.transport.Connect(func(*simplex.CelerMsg) {})

	err := n.ctrl.CooperativeWithdraw(n.ctx, n.channelID, big.NewInt(1))
	assert.IsErr(t, errors.ErrTimeout, err)
	require.Equal(t, 0, n.ledger.Withdraws())
}

func TestLedgerFailure(t *testing.T) {
	n := newNode(t, nil)
	n.ledger.Err = stderrors.New("node unreachable")

	err := n.ctrl.Deposit(n.ctx, n.channelID, big.NewInt(1))
	assert.IsErr(t, errors.ErrLedger, err)
	_, err = n.ctrl.SettleExpiredPayments(n.ctx)
	assert.IsErr(t, errors.ErrLedger, err)
}

func TestTransportFailure(t *testing.T) {
	n := newNode(t, nil)
	n.transport.Err = stderrors.New("connection reset")

	cond, err := n.ctrl.NewHashLockCondition()
	require.NoError(t, err)
	_, err = n.ctrl.SendConditionalPayment(n.ctx, n.peer.Address(), n.token, big.NewInt(1), []*payment.Condition{cond}, protocol.PayOptions{})
	assert.IsErr(t, errors.ErrTransport, err)
}

func TestSyncOnChain(t *testing.T) {
	n := newNode(t, nil)
	n.ledger.SetStatus(n.channelID, paychan.StatusSettling)
	require.NoError(t, n.ctrl.SyncOnChain(n.ctx, n.channelID))
	require.Equal(t, paychan.StatusSettling, n.channel().Status)

	_, err := n.ctrl.GetBalance(n.token)
	assert.IsErr(t, errors.ErrNotFound, err)

	// a channel status never moves back
	n.ledger.SetStatus(n.channelID, paychan.StatusOpen)
	err = n.ctrl.SyncOnChain(n.ctx, n.channelID)
	assert.IsErr(t, errors.ErrState, err)
}

func TestSyncFromPeer(t *testing.T) {
	n := newNode(t, nil)
	payID := n.hashLockedPay(n.peer.Address(), 1, protocol.PayOptions{})
	n.dispatcher.Wait()
	pc := n.channel()
	info := n.payment(payID)

	// the same key on an empty store learns everything from the peer
	n.db = store.NewSyncStore(store.MemStore())
	n.start()

	ack := &protocol.AuthAck{
		Timestamp: 1,
		Channels: []*protocol.ChannelSummary{
			{
				ChannelId:       n.channelID,
				LedgerAddress:   n.conf.LedgerAddress.Bytes(),
				Token:           n.token,
				SelfToPeerState: pc.OutState,
			},
		},
		Payments: []*protocol.PaymentSummary{
			{
				PayId:            payID,
				Pay:              info.PayBytes,
				OutChannelId:     n.channelID,
				State:            payment.PayState_COSIGNED_PAID,
				SettlementAmount: paychan.AmountBytes(info.SettlementAmount),
			},
			{
				// id not matching the pay
				PayId:        crypto.Keccak256(info.PayBytes),
				Pay:          info.PayBytes,
				OutChannelId: n.channelID,
				State:        payment.PayState_COSIGNED_PENDING,
			},
		},
	}
	msg, err := simplex.NewMsg(simplex.MsgAuthAck, ack)
	require.NoError(t, err)
	n.process(msg)

	require.Equal(t, uint64(2), n.outSeq())
	requireSameState(t, pc.OutState, n.channel().OutState)
	b := n.balance()
	assert.Amount(t, "49999999999999999", b.FreeSending)
	assert.Amount(t, "50000000000000001", b.FreeReceiving)

	synced := n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, synced.Status)
	assert.Amount(t, "1", synced.SettlementAmount)

	_, err = n.ctrl.GetPaymentInfo(crypto.Keccak256(info.PayBytes))
	assert.IsErr(t, errors.ErrNotFound, err)

	// an older state reported later is ignored
	var old protocol.CondPayResponse
	require.NoError(t, n.received(simplex.MsgCondPayResponse)[0].Load(&old))
	require.NoError(t, n.ctrl.SyncFromPeer(n.ctx, &protocol.AuthAck{
		Channels: []*protocol.ChannelSummary{
			{ChannelId: n.channelID, SelfToPeerState: old.StateCosigned},
		},
	}))
	require.Equal(t, uint64(2), n.outSeq())
}

func TestUnsupportedRequest(t *testing.T) {
	n := newNode(t, nil)
	msg, err := simplex.NewMsg(simplex.MsgCooperativeWithdrawRequest, &protocol.CooperativeWithdrawRequest{
		WithdrawInfo: []byte("info"),
		RequesterSig: make([]byte, crypto.SignatureLength),
	})
	require.NoError(t, err)
	n.process(msg)

	var reply protocol.ErrorMsg
	require.NoError(t, n.transport.Last(simplex.MsgError, &reply))
	require.Equal(t, protocol.ReasonUnsupported, reply.Reason)
}

// heldReplies keeps the peer answers until the test delivers them.
type heldReplies struct {
	mu   sync.Mutex
	msgs []*simplex.CelerMsg
}

func (h *heldReplies) keep(msg *simplex.CelerMsg) {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
}

// take removes and returns the first held message of given type.
func (h *heldReplies) take(t *testing.T, mt simplex.MsgType) *simplex.CelerMsg {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, m := range h.msgs {
		if m.Type == mt {
			h.msgs = append(h.msgs[:i], h.msgs[i+1:]...)
			return m
		}
	}
	t.Fatalf("no %s held", mt)
	return nil
}

func TestPaymentStatusProgression(t *testing.T) {
	n := newNode(t, nil)
	var held heldReplies
	n.transport.Connect(held.keep)

	payID := n.hashLockedPay(n.peer.Address(), 10, protocol.PayOptions{})
	n.dispatcher.Wait()
	require.Equal(t, payment.StatusPeerFromSignedPending, n.payment(payID).Status)
	require.NotNil(t, n.channel().OutProposal)
	require.Equal(t, uint64(0), n.outSeq())

	n.process(held.take(t, simplex.MsgCondPayResponse))
	require.Equal(t, payment.StatusCoSignedPending, n.payment(payID).Status)
	require.Nil(t, n.channel().OutProposal)
	require.Equal(t, uint64(1), n.outSeq())

	// the receipt reveals the secret, the payment waits for the ack
	n.process(held.take(t, simplex.MsgCondPayReceipt))
	require.Equal(t, payment.StatusCoSignedPending, n.payment(payID).Status)
	require.Len(t, n.transport.Sent(simplex.MsgRevealSecret), 1)

	n.process(held.take(t, simplex.MsgRevealSecretAck))
	info := n.payment(payID)
	require.Equal(t, payment.StatusPeerFromSignedSettled, info.Status)
	require.Equal(t, payment.PaymentSettleReason_PAY_PAID_MAX, info.SettleReason)
	require.NotNil(t, n.channel().OutProposal)
	// the transfer only counts for receiving once the peer cosigned it
	b := n.balance()
	assert.Amount(t, "0", b.LockedSending)
	assert.Amount(t, "49999999999999990", b.FreeSending)
	assert.Amount(t, "50000000000000000", b.FreeReceiving)

	n.process(held.take(t, simplex.MsgPaymentSettleResponse))
	info = n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	assert.Amount(t, "10", info.SettlementAmount)
	require.Equal(t, uint64(2), n.outSeq())
	assert.Amount(t, "50000000000000010", n.balance().FreeReceiving)
}

func TestStaleSettleResponse(t *testing.T) {
	n := newNode(t, nil)
	first := n.hashLockedPay(n.peer.Address(), 1, protocol.PayOptions{})
	n.dispatcher.Wait()
	second := n.hashLockedPay(n.peer.Address(), 2, protocol.PayOptions{})
	n.dispatcher.Wait()
	require.Equal(t, uint64(4), n.outSeq())
	before := n.channel().OutState

	responses := n.received(simplex.MsgPaymentSettleResponse)
	require.Len(t, responses, 2)
	var old protocol.PaymentSettleResponse
	require.NoError(t, responses[0].Load(&old))
	refused, err := simplex.NewMsg(simplex.MsgPaymentSettleResponse, &protocol.PaymentSettleResponse{
		StateCosigned: old.StateCosigned,
		Error:         &paychan.Error{Reason: "busy", Seq: 3},
	})
	require.NoError(t, err)

	// neither a replayed acceptance nor a late refusal of an older state
	// changes anything
	n.process(responses[0], refused)

	requireSameState(t, before, n.channel().OutState)
	require.Nil(t, n.channel().OutProposal)
	require.Equal(t, uint64(4), n.outSeq())
	for _, id := range [][]byte{first, second} {
		require.Equal(t, payment.StatusCoSignedSettled, n.payment(id).Status)
	}
	assert.Amount(t, "49999999999999997", n.balance().FreeSending)
}

func TestSettleRefusedThenRetried(t *testing.T) {
	n := newNode(t, nil)
	n.peer.RejectSettles = "busy"

	payID := n.hashLockedPay(n.peer.Address(), 10, protocol.PayOptions{})
	n.dispatcher.Wait()
	require.Len(t, n.transport.Sent(simplex.MsgPaymentSettleRequest), 1)

	// the payment is still locked in the channel and keeps its secret
	info := n.payment(payID)
	require.Equal(t, payment.StatusHashLockRevealed, info.Status)
	assert.Amount(t, "0", info.SettlementAmount)
	pc := n.channel()
	require.Nil(t, pc.OutProposal)
	out, err := paychan.DecodeSimplex(pc.OutState)
	require.NoError(t, err)
	require.Equal(t, uint64(1), out.SeqNum)
	require.Equal(t, [][]byte{payID}, out.GetPendingPayIds().GetPayIds())
	assert.Amount(t, "10", n.balance().LockedSending)

	// the destination acknowledging the secret again settles the payment
	n.peer.RejectSettles = ""
	acks := n.received(simplex.MsgRevealSecretAck)
	require.Len(t, acks, 1)
	n.process(acks[0])

	info = n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	require.Equal(t, payment.PaymentSettleReason_PAY_PAID_MAX, info.SettleReason)
	assert.Amount(t, "10", info.SettlementAmount)
	require.Equal(t, uint64(2), n.outSeq())
	require.Len(t, n.transport.Sent(simplex.MsgPaymentSettleRequest), 2)
	b := n.balance()
	assert.Amount(t, "0", b.LockedSending)
	assert.Amount(t, "49999999999999990", b.FreeSending)
}

func TestExpirySettleRefusedThenRetried(t *testing.T) {
	n := newNode(t, nil)
	payID := n.hashLockedPay(simplextest.NewAddress(), 7, protocol.PayOptions{TimeoutBlocks: 5})
	n.dispatcher.Wait()

	n.peer.RejectSettles = "busy"
	n.ledger.Advance(9)
	expired, err := n.ctrl.SettleExpiredPayments(n.ctx)
	require.NoError(t, err)
	require.Equal(t, [][]byte{payID}, expired)
	n.dispatcher.Wait()

	require.Equal(t, payment.StatusCoSignedPending, n.payment(payID).Status)
	assert.Amount(t, "7", n.balance().LockedSending)

	// the next sweep asks again
	n.peer.RejectSettles = ""
	expired, err = n.ctrl.SettleExpiredPayments(n.ctx)
	require.NoError(t, err)
	require.Equal(t, [][]byte{payID}, expired)
	n.dispatcher.Wait()

	info := n.payment(payID)
	require.Equal(t, payment.StatusCoSignedSettled, info.Status)
	require.Equal(t, payment.PaymentSettleReason_PAY_EXPIRED, info.SettleReason)
	assert.Amount(t, "0", n.balance().LockedSending)
	assert.Amount(t, "50000000000000000", n.balance().FreeSending)
}

func TestConcurrentPaymentsOnOneChannel(t *testing.T) {
	const pays = 20

	n := newNode(t, nil)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  [][]byte
		errs []error
	)
	for i := 0; i < pays; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cond, err := n.ctrl.NewHashLockCondition()
			if err == nil {
				var payID []byte
				payID, err = n.ctrl.SendConditionalPayment(n.ctx, n.peer.Address(), n.token, big.NewInt(1), []*payment.Condition{cond}, protocol.PayOptions{})
				mu.Lock()
				ids = append(ids, payID)
				mu.Unlock()
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	n.dispatcher.Wait()

	require.Empty(t, errs)
	require.Len(t, ids, pays)
	for _, id := range ids {
		require.Equal(t, payment.StatusCoSignedSettled, n.payment(id).Status)
	}

	// every payment took one state to lock and one to settle
	pc := n.channel()
	require.Nil(t, pc.OutProposal)
	out, err := paychan.DecodeSimplex(pc.OutState)
	require.NoError(t, err)
	require.Equal(t, uint64(2*pays), out.SeqNum)
	require.Empty(t, out.GetPendingPayIds().GetPayIds())
	assert.Amount(t, "0", paychan.TransferAmount(out.TotalPendingAmount))
	assert.Amount(t, "20", paychan.TransferAmount(out.TransferToPeer))
	assert.Amount(t, "49999999999999980", n.balance().FreeSending)
}

func TestSyncedPendingPaymentResolvedByResponse(t *testing.T) {
	n := newNode(t, nil)
	var held heldReplies
	n.transport.Connect(held.keep)

	// the answer of the peer is lost together with the local store
	payID := n.hashLockedPay(simplextest.NewAddress(), 5, protocol.PayOptions{})
	n.dispatcher.Wait()
	info := n.payment(payID)
	require.Equal(t, payment.StatusPeerFromSignedPending, info.Status)
	response := held.take(t, simplex.MsgCondPayResponse)

	n.db = store.NewSyncStore(store.MemStore())
	n.start()
	ack := &protocol.AuthAck{
		Timestamp: 1,
		Channels: []*protocol.ChannelSummary{
			{
				ChannelId:     n.channelID,
				LedgerAddress: n.conf.LedgerAddress.Bytes(),
				Token:         n.token,
			},
		},
		Payments: []*protocol.PaymentSummary{
			{
				PayId:        payID,
				Pay:          info.PayBytes,
				OutChannelId: n.channelID,
				State:        payment.PayState_ONESIG_PENDING,
			},
		},
	}
	msg, err := simplex.NewMsg(simplex.MsgAuthAck, ack)
	require.NoError(t, err)
	n.process(msg)
	require.Equal(t, payment.StatusPeerFromSignedPending, n.payment(payID).Status)
	require.Equal(t, uint64(0), n.outSeq())

	// the cosigned state arrives once the session is back
	n.process(response)
	require.Equal(t, payment.StatusCoSignedPending, n.payment(payID).Status)
	require.Equal(t, uint64(1), n.outSeq())
	assert.Amount(t, "5", n.balance().LockedSending)
}
