package protocol

import (
	"bytes"
	"context"
	"math/big"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
)

// SettleInfo describes the settlement of one payment we sent.
type SettleInfo struct {
	PayID  []byte
	Reason payment.PaymentSettleReason
	Amount *big.Int
}

// SendSettleRequests removes given payments from the outgoing state,
// transferring the settled amounts to the peer. All payments must have been
// sent on the same channel.
func (c *Controller) SendSettleRequests(ctx context.Context, settles []SettleInfo) error {
	if len(settles) == 0 {
		return errors.Wrap(errors.ErrEmpty, "nothing to settle")
	}
	first, err := c.payments.Get(c.db, settles[0].PayID)
	if err != nil {
		return err
	}
	channelID := first.OutChannelID
	if len(channelID) == 0 {
		return errors.Wrap(errors.ErrInput, "payment was not sent by us")
	}

	return c.withLock(ctx, channelID, func(db simplex.KVStore, out *outbox) error {
		return c.proposeSettle(ctx, db, out, channelID, settles)
	})
}

// proposeSettle builds, signs and queues the settle request. The caller
// holds the lock of the channel.
func (c *Controller) proposeSettle(ctx context.Context, db simplex.KVStore, out *outbox, channelID []byte, settles []SettleInfo) error {
	pc, err := c.channels.Get(db, channelID)
	if err != nil {
		return err
	}
	if pc.Status != paychan.StatusOpen {
		return errors.Wrapf(errors.ErrState, "channel is %s", pc.Status)
	}
	latest, err := paychan.DecodeSimplex(pc.LatestOut())
	if err != nil {
		return err
	}
	next := paychan.NextState(latest)

	var (
		removedMax = new(big.Int)
		settled    = new(big.Int)
		pays       = make([]*payment.Payment, 0, len(settles))
		wire       = make([]*SettledPayment, 0, len(settles))
	)
	for _, s := range settles {
		p, err := c.payments.Get(db, s.PayID)
		if err != nil {
			return err
		}
		if !bytes.Equal(p.OutChannelID, channelID) {
			return errors.Wrapf(errors.ErrInput, "payment %X sent on another channel", p.ID)
		}
		if !p.Status.CanTransition(payment.StatusPeerFromSignedSettled) {
			return errors.Wrapf(errors.ErrState, "payment %X is %s", p.ID, p.Status)
		}
		pay, err := p.Decode()
		if err != nil {
			return err
		}
		amount := s.Amount
		if amount == nil {
			amount = new(big.Int)
		}
		max := payment.MaxTransfer(pay)
		if amount.Sign() < 0 || amount.Cmp(max) > 0 {
			return errors.Wrapf(errors.ErrAmount, "settle amount %s exceeds %s", amount, max)
		}
		ids := next.PendingPayIds.PayIds
		if !containsID(ids, p.ID) {
			return errors.Wrapf(errors.ErrState, "payment %X is not pending", p.ID)
		}
		next.PendingPayIds.PayIds = subtractIDs(ids, [][]byte{p.ID})
		removedMax.Add(removedMax, max)
		settled.Add(settled, amount)

		p.SettlementAmount = paychan.AmountBytes(amount)
		p.SettleReason = s.Reason
		pays = append(pays, p)
		wire = append(wire, &SettledPayment{
			SettledPayId: p.ID,
			Reason:       s.Reason,
			Amount:       paychan.AmountBytes(amount),
		})
	}

	pending := new(big.Int).Sub(paychan.TransferAmount(latest.TotalPendingAmount), removedMax)
	if pending.Sign() < 0 {
		return errors.Wrapf(errors.ErrOverflow, "total pending amount %s", pending)
	}
	next.TotalPendingAmount = paychan.NewTokenTransfer(pc.Token, pc.Peer(), pending)
	transfer := new(big.Int).Add(paychan.TransferAmount(latest.TransferToPeer), settled)
	next.TransferToPeer = paychan.NewTokenTransfer(pc.Token, pc.Peer(), transfer)

	signed := &paychan.SignedSimplexState{}
	if err := paychan.SignUpdatedSimplexState(c.signer, signed, next); err != nil {
		return err
	}
	pc.OutProposal = signed
	if err := c.channels.Save(db, pc); err != nil {
		return err
	}
	for _, p := range pays {
		p.SettleFrom = p.Status
		if err := p.Transition(payment.StatusPeerFromSignedSettled); err != nil {
			return err
		}
		p.OutSeq = next.SeqNum
		if err := c.payments.Save(db, p); err != nil {
			return err
		}
	}
	simplex.GetLogger(ctx).Info("settle request sent", "channel", hexID(channelID), "seq", next.SeqNum, "pays", len(pays))
	return out.add(simplex.MsgPaymentSettleRequest, &PaymentSettleRequest{
		SettledPays:          wire,
		StateOnlyPeerFromSig: signed,
		BaseSeq:              latest.SeqNum,
	})
}

// RejectPayment refuses a payment sent to us. The peer is asked to remove
// it from the incoming state without any transfer.
func (c *Controller) RejectPayment(ctx context.Context, payID []byte) error {
	p, err := c.payments.Get(c.db, payID)
	if err != nil {
		return err
	}
	if len(p.InChannelID) == 0 {
		return errors.Wrap(errors.ErrInput, "payment was not sent to us")
	}
	return c.withLock(ctx, p.InChannelID, func(db simplex.KVStore, out *outbox) error {
		p, err := c.payments.Get(db, payID)
		if err != nil {
			return err
		}
		if p.Status != payment.StatusCoSignedPending && p.Status != payment.StatusHashLockRevealed {
			return errors.Wrapf(errors.ErrState, "payment is %s", p.Status)
		}
		if err := p.Transition(payment.StatusPeerFromSignedSettled); err != nil {
			return err
		}
		p.SettlementAmount = nil
		p.SettleReason = payment.PaymentSettleReason_PAY_REJECTED
		if err := c.payments.Save(db, p); err != nil {
			return err
		}
		return out.add(simplex.MsgPaymentSettleProof, &PaymentSettleProof{
			SettledPays: []*SettledPayment{
				{SettledPayId: p.ID, Reason: payment.PaymentSettleReason_PAY_REJECTED},
			},
		})
	})
}

// SettleExpiredPayments removes from the outgoing states every pending
// payment whose resolve deadline passed and that was not resolved on
// chain. It returns ids of the payments for which a settlement was
// requested.
func (c *Controller) SettleExpiredPayments(ctx context.Context) ([][]byte, error) {
	block, err := c.ledger.BlockNumber(ctx)
	if err != nil {
		return nil, ledgerErr(err, "block number")
	}
	channels, err := c.channels.List(c.db)
	if err != nil {
		return nil, err
	}

	var expired [][]byte
	for _, pc := range channels {
		if pc.Status != paychan.StatusOpen {
			continue
		}
		pays, err := c.payments.ByOutChannel(c.db, pc.ChannelID)
		if err != nil {
			return expired, err
		}
		var settles []SettleInfo
		for _, p := range pays {
			if p.Status != payment.StatusCoSignedPending && p.Status != payment.StatusHashLockRevealed {
				continue
			}
			pay, err := p.Decode()
			if err != nil {
				return expired, err
			}
			if block < pay.ResolveDeadline+c.conf.ExpirySafetyMargin {
				continue
			}
			res, err := c.ledger.GetPayResolution(ctx, p.ID)
			if err != nil {
				return expired, ledgerErr(err, "pay resolution")
			}
			if res != nil && res.Amount != nil && res.Amount.Sign() > 0 {
				continue
			}
			settles = append(settles, SettleInfo{PayID: p.ID, Reason: payment.PaymentSettleReason_PAY_EXPIRED, Amount: new(big.Int)})
		}
		if len(settles) == 0 {
			continue
		}
		if err := c.SendSettleRequests(ctx, settles); err != nil {
			return expired, errors.Wrapf(err, "channel %X", pc.ChannelID)
		}
		for _, s := range settles {
			expired = append(expired, s.PayID)
		}
	}
	return expired, nil
}
