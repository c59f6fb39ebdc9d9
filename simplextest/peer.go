package simplextest

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
	"github.com/iov-one/simplex/x/protocol"
)

// Peer is a scripted service node. It cosigns every state the node proposes
// unless told to reject, approves channel openings and cooperative
// withdrawals, and acts as the destination of payments sent to its own
// address.
//
// Peer does not validate what it signs. It is meant to drive a node into a
// known state, not to test the peer side of the protocol.
type Peer struct {
	mu       sync.Mutex
	signer   *crypto.KeySigner
	resolver common.Address
	client   common.Address
	channels map[string]*peerChannel
	received map[string]*payment.ConditionalPay

	// RejectPays makes the peer reject conditional pays with given reason.
	RejectPays string
	// RejectSettles makes the peer reject settle requests with given
	// reason.
	RejectSettles string
}

type peerChannel struct {
	id    []byte
	token *paychan.TokenInfo
	// in is the last state proposed by the node and cosigned.
	in *paychan.SignedSimplexState
	// out is the last state the peer proposed and the node cosigned.
	out *paychan.SignedSimplexState
	// proposed is the state the peer sent and the node did not answer yet.
	proposed *paychan.SignedSimplexState
	// max holds the locked amount of every payment the peer sent.
	max map[string]*big.Int
}

// NewPeer returns a peer with a fresh key, computing payment ids with given
// pay resolver.
func NewPeer(resolver common.Address) *Peer {
	return &Peer{
		signer:   NewKey(),
		resolver: resolver,
		channels: make(map[string]*peerChannel),
		received: make(map[string]*payment.ConditionalPay),
	}
}

// Address returns the address of the peer.
func (p *Peer) Address() common.Address {
	return p.signer.Address()
}

// Signer returns the key of the peer.
func (p *Peer) Signer() crypto.Signer {
	return p.signer
}

// ApproveOpen cosigns the channel initializer of the node.
func (p *Peer) ApproveOpen(req *protocol.OpenChannelRequest) (*protocol.OpenChannelResponse, error) {
	var init paychan.PaymentChannelInitializer
	if err := proto.Unmarshal(req.ChannelInitializer, &init); err != nil {
		return nil, errors.Wrap(errors.ErrMsg, err.Error())
	}
	dist := init.GetInitDistribution().GetDistribution()
	if len(dist) != 2 || common.BytesToAddress(dist[1].Account) != p.Address() {
		return nil, errors.Wrap(errors.ErrUnauthorized, "not a channel party")
	}
	requester := common.BytesToAddress(dist[0].Account)
	if !crypto.VerifySignature(req.ChannelInitializer, req.RequesterSig, requester) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "invalid requester signature")
	}
	sig, err := p.signer.Sign(req.ChannelInitializer)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.client = requester
	p.mu.Unlock()
	return &protocol.OpenChannelResponse{
		ChannelInitializer: req.ChannelInitializer,
		RequesterSig:       req.RequesterSig,
		ApproverSig:        sig,
	}, nil
}

// channel returns the view of given channel, creating it at genesis if
// needed. Must be called with the lock held.
func (p *Peer) channel(id []byte, token *paychan.TokenInfo) (*peerChannel, error) {
	if ch, ok := p.channels[string(id)]; ok {
		return ch, nil
	}
	in := &paychan.SignedSimplexState{}
	if err := paychan.SignUpdatedSimplexState(p.signer, in, paychan.NewGenesisState(id, p.client, p.Address(), token)); err != nil {
		return nil, err
	}
	out := &paychan.SignedSimplexState{}
	if err := paychan.SignUpdatedSimplexState(p.signer, out, paychan.NewGenesisState(id, p.Address(), p.client, token)); err != nil {
		return nil, err
	}
	ch := &peerChannel{id: id, token: token, in: in, out: out, max: make(map[string]*big.Int)}
	p.channels[string(id)] = ch
	return ch, nil
}

// Respond processes a message sent by the node and returns the answers of
// the peer.
func (p *Peer) Respond(msg *simplex.CelerMsg) ([]*simplex.CelerMsg, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Type {
	case simplex.MsgCondPayRequest:
		var req protocol.CondPayRequest
		if err := msg.Load(&req); err != nil {
			return nil, err
		}
		return p.cosignRequest(req.StateOnlyPeerFromSig, p.RejectPays, simplex.MsgCondPayResponse, func(cosigned *paychan.SignedSimplexState, e *paychan.Error) proto.Message {
			return &protocol.CondPayResponse{StateCosigned: cosigned, Error: e}
		}, func() ([]*simplex.CelerMsg, error) {
			return p.receive(req.CondPay)
		})
	case simplex.MsgPaymentSettleRequest:
		var req protocol.PaymentSettleRequest
		if err := msg.Load(&req); err != nil {
			return nil, err
		}
		return p.cosignRequest(req.StateOnlyPeerFromSig, p.RejectSettles, simplex.MsgPaymentSettleResponse, func(cosigned *paychan.SignedSimplexState, e *paychan.Error) proto.Message {
			return &protocol.PaymentSettleResponse{StateCosigned: cosigned, Error: e}
		}, nil)
	case simplex.MsgRevealSecret:
		var reveal protocol.RevealSecret
		if err := msg.Load(&reveal); err != nil {
			return nil, err
		}
		if _, ok := p.received[string(reveal.PayId)]; !ok {
			return nil, nil
		}
		sig, err := p.signer.Sign(reveal.Secret)
		if err != nil {
			return nil, err
		}
		return one(simplex.MsgRevealSecretAck, &protocol.RevealSecretAck{PayId: reveal.PayId, PayDestSecretSig: sig})
	case simplex.MsgCondPayResponse:
		var resp protocol.CondPayResponse
		if err := msg.Load(&resp); err != nil {
			return nil, err
		}
		return nil, p.accept(resp.StateCosigned, resp.Error)
	case simplex.MsgPaymentSettleResponse:
		var resp protocol.PaymentSettleResponse
		if err := msg.Load(&resp); err != nil {
			return nil, err
		}
		return nil, p.accept(resp.StateCosigned, resp.Error)
	case simplex.MsgPaymentSettleProof:
		var proof protocol.PaymentSettleProof
		if err := msg.Load(&proof); err != nil {
			return nil, err
		}
		return p.settleProven(proof.SettledPays)
	case simplex.MsgCooperativeWithdrawRequest:
		var req protocol.CooperativeWithdrawRequest
		if err := msg.Load(&req); err != nil {
			return nil, err
		}
		sig, err := p.signer.Sign(req.WithdrawInfo)
		if err != nil {
			return nil, err
		}
		return one(simplex.MsgCooperativeWithdrawResponse, &protocol.CooperativeWithdrawResponse{
			WithdrawInfo: req.WithdrawInfo,
			RequesterSig: req.RequesterSig,
			ApproverSig:  sig,
		})
	}
	return nil, nil
}

func (p *Peer) cosignRequest(
	signed *paychan.SignedSimplexState,
	rejectReason string,
	respType simplex.MsgType,
	response func(*paychan.SignedSimplexState, *paychan.Error) proto.Message,
	after func() ([]*simplex.CelerMsg, error),
) ([]*simplex.CelerMsg, error) {
	state, err := paychan.DecodeSimplex(signed)
	if err != nil {
		return nil, err
	}
	ch, err := p.channel(state.ChannelId, state.GetTransferToPeer().GetToken())
	if err != nil {
		return nil, err
	}
	if rejectReason != "" {
		return one(respType, response(ch.in, &paychan.Error{Reason: rejectReason, Seq: state.SeqNum}))
	}
	cosigned := paychan.CopySigned(signed)
	if err := paychan.Cosign(p.signer, cosigned); err != nil {
		return nil, err
	}
	ch.in = cosigned
	msgs, err := one(respType, response(cosigned, nil))
	if err != nil || after == nil {
		return msgs, err
	}
	more, err := after()
	return append(msgs, more...), err
}

// receive records a payment sent by the node and confirms its reception
// if the peer is the destination.
func (p *Peer) receive(raw []byte) ([]*simplex.CelerMsg, error) {
	pay, err := payment.DecodePay(raw)
	if err != nil {
		return nil, err
	}
	if common.BytesToAddress(pay.Dest) != p.Address() {
		return nil, nil
	}
	payID := payment.PaymentID(raw, p.resolver)
	p.received[string(payID)] = pay
	sig, err := p.signer.Sign(raw)
	if err != nil {
		return nil, err
	}
	return one(simplex.MsgCondPayReceipt, &protocol.CondPayReceipt{PayId: payID, PayDestSig: sig})
}

// accept updates the peer view with the answer of the node to a proposed
// state.
func (p *Peer) accept(signed *paychan.SignedSimplexState, e *paychan.Error) error {
	state, err := paychan.DecodeSimplex(signed)
	if err != nil {
		return err
	}
	ch, ok := p.channels[string(state.ChannelId)]
	if !ok {
		return errors.Wrap(errors.ErrNotFound, "channel")
	}
	ch.proposed = nil
	if e == nil || state.SeqNum > 0 {
		ch.out = paychan.CopySigned(signed)
	}
	return nil
}

// settleProven removes payments the node refused from the peer state.
func (p *Peer) settleProven(pays []*protocol.SettledPayment) ([]*simplex.CelerMsg, error) {
	byChannel := make(map[string][]*protocol.SettledPayment)
	for _, sp := range pays {
		for id, ch := range p.channels {
			if _, ok := ch.max[string(sp.SettledPayId)]; ok {
				byChannel[id] = append(byChannel[id], &protocol.SettledPayment{
					SettledPayId: sp.SettledPayId,
					Reason:       sp.Reason,
				})
			}
		}
	}
	var msgs []*simplex.CelerMsg
	for id, settled := range byChannel {
		msg, err := p.settleRequest([]byte(id), settled)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// NewPay returns a payment from the peer to dest, locked by given hash.
func (p *Peer) NewPay(dest common.Address, token *paychan.TokenInfo, amount *big.Int, hashLock []byte, resolveDeadline uint64) *payment.ConditionalPay {
	return &payment.ConditionalPay{
		PayTimestamp: payment.NewPayTimestamp(),
		Src:          p.Address().Bytes(),
		Dest:         dest.Bytes(),
		Conditions: []*payment.Condition{
			{ConditionType: payment.ConditionType_HASH_LOCK, HashLock: hashLock},
		},
		TransferFunc: &payment.TransferFunction{
			LogicType:   payment.TransferFunctionType_BOOLEAN_AND,
			MaxTransfer: paychan.NewTokenTransfer(token, dest, amount),
		},
		ResolveDeadline: resolveDeadline,
		ResolveTimeout:  10,
		PayResolver:     p.resolver.Bytes(),
	}
}

// CondPayRequest proposes a new state of the channel locking the payment
// and returns the request together with the payment id.
func (p *Peer) CondPayRequest(channelID []byte, pay *payment.ConditionalPay) (*simplex.CelerMsg, []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := proto.Marshal(pay)
	if err != nil {
		return nil, nil, err
	}
	payID := payment.PaymentID(raw, p.resolver)
	amount := payment.MaxTransfer(pay)

	ch, err := p.channel(channelID, pay.TransferFunc.MaxTransfer.Token)
	if err != nil {
		return nil, nil, err
	}
	base, err := paychan.DecodeSimplex(ch.latestOut())
	if err != nil {
		return nil, nil, err
	}
	next := paychan.NextState(base)
	next.PendingPayIds.PayIds = append(next.PendingPayIds.PayIds, payID)
	pending := new(big.Int).Add(paychan.TransferAmount(base.TotalPendingAmount), amount)
	next.TotalPendingAmount = paychan.NewTokenTransfer(ch.token, p.client, pending)
	if pay.ResolveDeadline > next.LastPayResolveDeadline {
		next.LastPayResolveDeadline = pay.ResolveDeadline
	}
	signed := &paychan.SignedSimplexState{}
	if err := paychan.SignUpdatedSimplexState(p.signer, signed, next); err != nil {
		return nil, nil, err
	}
	ch.proposed = signed
	ch.max[string(payID)] = amount

	msg, err := simplex.NewMsg(simplex.MsgCondPayRequest, &protocol.CondPayRequest{
		CondPay:              raw,
		StateOnlyPeerFromSig: signed,
		BaseSeq:              base.SeqNum,
	})
	return msg, payID, err
}

// SettleRequest proposes a new state of the channel removing given
// payments sent by the peer.
func (p *Peer) SettleRequest(channelID []byte, settled []*protocol.SettledPayment) (*simplex.CelerMsg, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settleRequest(channelID, settled)
}

func (p *Peer) settleRequest(channelID []byte, settled []*protocol.SettledPayment) (*simplex.CelerMsg, error) {
	ch, ok := p.channels[string(channelID)]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "channel")
	}
	base, err := paychan.DecodeSimplex(ch.latestOut())
	if err != nil {
		return nil, err
	}
	next := paychan.NextState(base)
	pending := paychan.TransferAmount(base.TotalPendingAmount)
	transfer := paychan.TransferAmount(base.TransferToPeer)
	for _, sp := range settled {
		max, ok := ch.max[string(sp.SettledPayId)]
		if !ok {
			return nil, errors.Wrap(errors.ErrNotFound, "payment")
		}
		var ids [][]byte
		for _, id := range next.PendingPayIds.PayIds {
			if string(id) != string(sp.SettledPayId) {
				ids = append(ids, id)
			}
		}
		next.PendingPayIds.PayIds = ids
		pending = new(big.Int).Sub(pending, max)
		transfer = new(big.Int).Add(transfer, paychan.AmountFromBytes(sp.Amount))
	}
	next.TotalPendingAmount = paychan.NewTokenTransfer(ch.token, p.client, pending)
	next.TransferToPeer = paychan.NewTokenTransfer(ch.token, p.client, transfer)
	signed := &paychan.SignedSimplexState{}
	if err := paychan.SignUpdatedSimplexState(p.signer, signed, next); err != nil {
		return nil, err
	}
	ch.proposed = signed
	return simplex.NewMsg(simplex.MsgPaymentSettleRequest, &protocol.PaymentSettleRequest{
		SettledPays:          settled,
		StateOnlyPeerFromSig: signed,
		BaseSeq:              base.SeqNum,
	})
}

func (ch *peerChannel) latestOut() *paychan.SignedSimplexState {
	if ch.proposed != nil {
		return ch.proposed
	}
	return ch.out
}

func one(t simplex.MsgType, payload proto.Message) ([]*simplex.CelerMsg, error) {
	msg, err := simplex.NewMsg(t, payload)
	if err != nil {
		return nil, err
	}
	return []*simplex.CelerMsg{msg}, nil
}
