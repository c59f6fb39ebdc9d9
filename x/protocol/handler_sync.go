package protocol

import (
	"bytes"
	"context"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
)

// AuthAckHandler reconciles the channel and payment snapshot the peer sends
// when a session is established.
type AuthAckHandler struct {
	c *Controller
}

var _ simplex.Handler = AuthAckHandler{}

func (h AuthAckHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	var ack AuthAck
	if err := msg.Load(&ack); err != nil {
		simplex.GetLogger(ctx).Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}
	return h.c.SyncFromPeer(ctx, &ack)
}

// SyncFromPeer applies the peer snapshot to the local store. Unknown
// channels are created from the ledger, known channels accept a peer state
// only if it is not older than the stored one. Channels and payments the
// peer reports inconsistently are skipped.
func (c *Controller) SyncFromPeer(ctx context.Context, ack *AuthAck) error {
	log := simplex.GetLogger(ctx)
	for _, summary := range ack.Channels {
		if err := c.syncChannel(ctx, summary); err != nil {
			if errors.ErrLedger.Is(err) || errors.ErrDatabase.Is(err) {
				return err
			}
			log.Info("channel not synchronized", "channel", hexID(summary.ChannelId), "err", err)
		}
	}
	for _, summary := range ack.Payments {
		if err := c.syncPayment(ctx, summary); err != nil {
			if errors.ErrDatabase.Is(err) {
				return err
			}
			log.Info("payment not synchronized", "pay", hexID(summary.PayId), "err", err)
		}
	}
	return nil
}

func (c *Controller) syncChannel(ctx context.Context, summary *ChannelSummary) error {
	return c.withLock(ctx, summary.ChannelId, func(db simplex.KVStore, out *outbox) error {
		pc, err := c.channels.Get(db, summary.ChannelId)
		switch {
		case errors.ErrNotFound.Is(err):
			pc, err = c.newSyncedChannel(ctx, summary)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if signed := summary.PeerToSelfState; signed != nil {
			stored, err := paychan.DecodeSimplex(pc.InState)
			if err != nil {
				return err
			}
			if state, ok := verifyIncomingCosigned(pc, signed); ok && state.SeqNum > 0 && state.SeqNum >= stored.SeqNum {
				pc.InState = paychan.CopySigned(signed)
			}
		}
		if signed := summary.SelfToPeerState; signed != nil {
			stored, err := paychan.DecodeSimplex(pc.OutState)
			if err != nil {
				return err
			}
			if state, ok := verifyOutgoing(pc, signed); ok && state.SeqNum > 0 && state.SeqNum >= stored.SeqNum {
				pc.OutState = paychan.CopySigned(signed)
				if p := pc.OutProposal; p != nil {
					if proposed, err := paychan.DecodeSimplex(p); err != nil || proposed.SeqNum <= state.SeqNum {
						pc.OutProposal = nil
					}
				}
			}
		}
		return c.channels.Save(db, pc)
	})
}

// newSyncedChannel builds the record of a channel we do not know from the
// ledger. Both directions start at genesis, signed locally.
func (c *Controller) newSyncedChannel(ctx context.Context, summary *ChannelSummary) (*paychan.PaymentChannel, error) {
	self := c.signer.Address()
	info, err := c.ledger.GetChannelInfo(ctx, summary.ChannelId, self)
	if err != nil {
		return nil, ledgerErr(err, "channel info")
	}
	if info.Status == paychan.StatusUninitialized {
		return nil, errors.Wrap(errors.ErrState, "channel not opened on chain")
	}
	peer := info.Peers[0]
	if peer == self {
		peer = info.Peers[1]
	}
	if info.Peers[0] != self && info.Peers[1] != self {
		return nil, errors.Wrap(errors.ErrUnauthorized, "not a channel party")
	}
	token := info.Token
	if token == nil {
		token = summary.Token
	}
	in, err := signGenesis(c.signer, summary.ChannelId, peer, self, token)
	if err != nil {
		return nil, err
	}
	out, err := signGenesis(c.signer, summary.ChannelId, self, peer, token)
	if err != nil {
		return nil, err
	}
	return &paychan.PaymentChannel{
		ChannelID:      summary.ChannelId,
		SelfAddress:    self.Bytes(),
		PeerAddress:    peer.Bytes(),
		Token:          token,
		LedgerAddress:  summary.LedgerAddress,
		Status:         info.Status,
		DisputeTimeout: info.DisputeTimeout,
		OnChain:        info.OnChain,
		InState:        in,
		OutState:       out,
	}, nil
}

func (c *Controller) syncPayment(ctx context.Context, summary *PaymentSummary) error {
	status, err := payment.MapWireStatus(summary.State)
	if err != nil {
		return err
	}
	if !bytes.Equal(payment.PaymentID(summary.Pay, c.conf.PayResolver), summary.PayId) {
		return errors.Wrap(errors.ErrInput, "payment id does not match the pay")
	}
	channelID := summary.OutChannelId
	if len(channelID) == 0 {
		channelID = summary.InChannelId
	}

	return c.withLock(ctx, channelID, func(db simplex.KVStore, out *outbox) error {
		p, err := c.payments.Get(db, summary.PayId)
		switch {
		case errors.ErrNotFound.Is(err):
			p = &payment.Payment{
				ID:               summary.PayId,
				InChannelID:      summary.InChannelId,
				OutChannelID:     summary.OutChannelId,
				Pay:              summary.Pay,
				Note:             summary.Note,
				Status:           status,
				SettlementAmount: summary.SettlementAmount,
			}
			if err := c.syncOutSeq(db, p); err != nil {
				return err
			}
			return c.payments.Create(db, p)
		case err != nil:
			return err
		}
		if p.Status == status {
			return nil
		}
		if err := p.Transition(status); err != nil {
			return err
		}
		if len(summary.SettlementAmount) > 0 {
			p.SettlementAmount = summary.SettlementAmount
		}
		if err := c.syncOutSeq(db, p); err != nil {
			return err
		}
		return c.payments.Save(db, p)
	})
}

// syncOutSeq attaches an outgoing payment waiting for the peer signature to
// the proposal following the cosigned outgoing state, so that the response
// to that proposal resolves it.
func (c *Controller) syncOutSeq(db simplex.ReadOnlyKVStore, p *payment.Payment) error {
	if len(p.OutChannelID) == 0 {
		return nil
	}
	if p.Status != payment.StatusPeerFromSignedPending && p.Status != payment.StatusPeerFromSignedSettled {
		return nil
	}
	pc, err := c.channels.Get(db, p.OutChannelID)
	if err != nil {
		return err
	}
	state, err := paychan.DecodeSimplex(pc.OutState)
	if err != nil {
		return err
	}
	p.OutSeq = state.SeqNum + 1
	return nil
}
