package protocol

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
)

// CondPayRequestHandler accepts a conditional payment sent to us by the
// peer, locking it into the incoming state.
type CondPayRequestHandler struct {
	c *Controller
}

var _ simplex.Handler = CondPayRequestHandler{}

func (h CondPayRequestHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	log := simplex.GetLogger(ctx)
	var req CondPayRequest
	if err := msg.Load(&req); err != nil {
		log.Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}
	proposed, err := paychan.DecodeSimplex(req.StateOnlyPeerFromSig)
	if err != nil {
		log.Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}

	return h.c.withLock(ctx, proposed.ChannelId, func(db simplex.KVStore, out *outbox) error {
		pc, err := h.c.channels.Get(db, proposed.ChannelId)
		if errors.ErrNotFound.Is(err) {
			log.Debug("unknown channel", "channel", hexID(proposed.ChannelId))
			return nil
		} else if err != nil {
			return err
		}

		state, rej := paychan.VerifyIncoming(pc, req.StateOnlyPeerFromSig, req.BaseSeq)
		if rej == nil {
			if rej, err = h.check(db, pc, state, &req); err != nil {
				return err
			}
		}
		if rej != nil {
			log.Info("conditional pay rejected", "channel", hexID(pc.ChannelID), "seq", proposed.SeqNum, "err", rej)
			return out.add(simplex.MsgCondPayResponse, &CondPayResponse{
				StateCosigned: rej.LastCosigned,
				Error:         rej.Wire(proposed.SeqNum),
			})
		}

		signed := paychan.CopySigned(req.StateOnlyPeerFromSig)
		if err := paychan.Cosign(h.c.signer, signed); err != nil {
			return errors.Wrap(err, "cosign")
		}
		pc.InState = signed
		if err := h.c.channels.Save(db, pc); err != nil {
			return err
		}

		payID := payment.PaymentID(req.CondPay, h.c.conf.PayResolver)
		if err := h.c.payments.Create(db, &payment.Payment{
			ID:          payID,
			InChannelID: pc.ChannelID,
			Pay:         req.CondPay,
			Note:        req.Note,
			Status:      payment.StatusCoSignedPending,
		}); err != nil {
			return err
		}

		receipt, err := h.c.signer.Sign(req.CondPay)
		if err != nil {
			return errors.Wrap(err, "sign receipt")
		}
		log.Info("conditional pay received", "channel", hexID(pc.ChannelID), "seq", state.SeqNum, "pay", hexID(payID))
		if err := out.add(simplex.MsgCondPayResponse, &CondPayResponse{StateCosigned: signed}); err != nil {
			return err
		}
		return out.add(simplex.MsgCondPayReceipt, &CondPayReceipt{PayId: payID, PayDestSig: receipt})
	})
}

// check runs the conditional pay specific validation of the proposed
// incoming state.
func (h CondPayRequestHandler) check(db simplex.ReadOnlyKVStore, pc *paychan.PaymentChannel, state *paychan.SimplexPaymentChannel, req *CondPayRequest) (*paychan.Rejection, error) {
	last := pc.InState
	stored, err := paychan.DecodeSimplex(last)
	if err != nil {
		return nil, errors.Wrap(err, "stored incoming state")
	}
	pay, err := payment.DecodePay(req.CondPay)
	if err != nil {
		return paychan.Reject(last, paychan.ReasonMalformedConditionalPay), nil
	}
	if !paychan.SameToken(pay.GetTransferFunc().GetMaxTransfer().GetToken(), pc.Token) ||
		!paychan.SameToken(state.GetTotalPendingAmount().GetToken(), pc.Token) {
		return paychan.Reject(last, paychan.ReasonInvalidToken), nil
	}
	if paychan.TransferAmount(state.TransferToPeer).Cmp(paychan.TransferAmount(stored.TransferToPeer)) != 0 {
		return paychan.Reject(last, paychan.ReasonTransferAmountChanged), nil
	}
	if !bytes.Equal(pay.Dest, h.c.signer.Address().Bytes()) {
		return paychan.Reject(last, paychan.ReasonNotPaymentDestination), nil
	}

	amount := payment.MaxTransfer(pay)
	balance, err := paychan.CalculateBalance(pc)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(balance.FreeReceiving) > 0 {
		return paychan.Reject(last, paychan.ReasonInsufficientBalance), nil
	}
	if !bytes.Equal(pay.PayResolver, h.c.conf.PayResolver.Bytes()) {
		return paychan.Reject(last, paychan.ReasonInvalidPayResolver), nil
	}
	if state.LastPayResolveDeadline != maxUint64(stored.LastPayResolveDeadline, pay.ResolveDeadline) {
		return paychan.Reject(last, paychan.ReasonInvalidResolveDeadline), nil
	}
	wantPending := new(big.Int).Add(paychan.TransferAmount(stored.TotalPendingAmount), amount)
	if paychan.TransferAmount(state.TotalPendingAmount).Cmp(wantPending) != 0 {
		return paychan.Reject(last, paychan.ReasonInvalidTotalPending), nil
	}

	ids := state.GetPendingPayIds().GetPayIds()
	if uint32(len(ids)) > h.c.conf.MaxPendingPays {
		return paychan.Reject(last, paychan.ReasonTooManyPendingPayments), nil
	}
	payID := payment.PaymentID(req.CondPay, h.c.conf.PayResolver)
	added, removed := diffPayIDs(stored.GetPendingPayIds().GetPayIds(), ids)
	if len(removed) != 0 || len(added) != 1 || !bytes.Equal(added[0], payID) || len(ids) != len(stored.GetPendingPayIds().GetPayIds())+1 {
		return paychan.Reject(last, paychan.ReasonInvalidPendingPayList), nil
	}
	switch ok, err := h.c.payments.Has(db, payID); {
	case err != nil:
		return nil, err
	case ok:
		return paychan.Reject(last, paychan.ReasonDuplicatePayment), nil
	}
	return nil, nil
}

// CondPayResponseHandler processes the peer answer to a conditional pay we
// proposed.
type CondPayResponseHandler struct {
	c *Controller
}

var _ simplex.Handler = CondPayResponseHandler{}

func (h CondPayResponseHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	var resp CondPayResponse
	if err := msg.Load(&resp); err != nil {
		simplex.GetLogger(ctx).Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}
	return h.c.applyOutgoingResponse(ctx, resp.StateCosigned, resp.Error,
		payment.StatusPeerFromSignedPending, payment.StatusCoSignedPending)
}

// applyOutgoingResponse advances the outgoing state of a channel with the
// cosigned state returned by the peer.
//
// On success the state is accepted only if newer than the stored one, and
// payments proposed in a state up to it move to the ok status. On error
// the peer view is accepted unless older than the stored one, the pending
// proposal is dropped and payments proposed after the returned state
// fail.
func (c *Controller) applyOutgoingResponse(ctx context.Context, cosigned *paychan.SignedSimplexState, wireErr *paychan.Error, inFlight, ok payment.Status) error {
	log := simplex.GetLogger(ctx)
	returned, err := paychan.DecodeSimplex(cosigned)
	if err != nil {
		log.Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}

	return c.withLock(ctx, returned.ChannelId, func(db simplex.KVStore, out *outbox) error {
		pc, err := c.channels.Get(db, returned.ChannelId)
		if errors.ErrNotFound.Is(err) {
			log.Debug("unknown channel", "channel", hexID(returned.ChannelId))
			return nil
		} else if err != nil {
			return err
		}
		stored, err := paychan.DecodeSimplex(pc.OutState)
		if err != nil {
			return errors.Wrap(err, "stored outgoing state")
		}

		state, valid := verifyOutgoing(pc, cosigned)
		genesis := returned.SeqNum == 0 && wireErr != nil
		if !valid && !genesis {
			log.Info("invalid cosigned state", "channel", hexID(pc.ChannelID), "seq", returned.SeqNum)
			return nil
		}
		if genesis {
			// The peer never accepted anything. Our own genesis is kept.
			state = returned
		}

		if wireErr == nil {
			if state.SeqNum <= stored.SeqNum {
				log.Debug("stale response", "channel", hexID(pc.ChannelID), "seq", state.SeqNum, "stored", stored.SeqNum)
				return nil
			}
			pc.OutState = cosigned
			if p := pc.OutProposal; p != nil {
				if proposed, err := paychan.DecodeSimplex(p); err != nil || proposed.SeqNum <= state.SeqNum {
					pc.OutProposal = nil
				}
			}
			if err := c.channels.Save(db, pc); err != nil {
				return err
			}
			return c.moveInFlight(db, pc.ChannelID, inFlight, ok, 0, state.SeqNum)
		}

		log.Info("request rejected by peer", "channel", hexID(pc.ChannelID), "seq", wireErr.Seq, "code", wireErr.Code, "reason", wireErr.Reason)
		if state.SeqNum < stored.SeqNum {
			log.Debug("stale response", "channel", hexID(pc.ChannelID), "seq", state.SeqNum, "stored", stored.SeqNum)
			return nil
		}
		if !genesis {
			pc.OutState = cosigned
		}
		pc.OutProposal = nil
		if err := c.channels.Save(db, pc); err != nil {
			return err
		}
		if err := c.moveInFlight(db, pc.ChannelID, inFlight, ok, 0, state.SeqNum); err != nil {
			return err
		}
		if inFlight == payment.StatusPeerFromSignedSettled {
			return c.revertSettles(ctx, db, pc.ChannelID, state)
		}
		return c.moveInFlight(db, pc.ChannelID, inFlight, payment.StatusFailed, state.SeqNum, ^uint64(0))
	})
}

// revertSettles handles settle requests refused by the peer. Payments still
// pending in the cosigned state go back to their previous status, so that
// they can be settled again. The others are failed.
func (c *Controller) revertSettles(ctx context.Context, db simplex.KVStore, channelID []byte, cosigned *paychan.SimplexPaymentChannel) error {
	pays, err := c.payments.InFlight(db, channelID, payment.StatusPeerFromSignedSettled, cosigned.SeqNum, ^uint64(0))
	if err != nil {
		return err
	}
	pending := cosigned.GetPendingPayIds().GetPayIds()
	for _, p := range pays {
		if containsID(pending, p.ID) {
			err = p.RevertSettle()
		} else {
			err = p.Transition(payment.StatusFailed)
		}
		if err != nil {
			return err
		}
		simplex.GetLogger(ctx).Info("settle refused", "pay", hexID(p.ID), "status", p.Status)
		if err := c.payments.Save(db, p); err != nil {
			return err
		}
	}
	return nil
}

// moveInFlight transitions outgoing payments of the channel with given
// status, proposed in the sequence range (after, upTo].
func (c *Controller) moveInFlight(db simplex.KVStore, channelID []byte, from, to payment.Status, after, upTo uint64) error {
	pays, err := c.payments.InFlight(db, channelID, from, after, upTo)
	if err != nil {
		return err
	}
	for _, p := range pays {
		if err := p.Transition(to); err != nil {
			return err
		}
		if to == payment.StatusCoSignedSettled {
			c.forgetSecrets(db, p)
		}
		if err := c.payments.Save(db, p); err != nil {
			return err
		}
	}
	return nil
}

// forgetSecrets removes the hash lock secrets of a settled payment we sent.
func (c *Controller) forgetSecrets(db simplex.KVStore, p *payment.Payment) {
	pay, err := p.Decode()
	if err != nil {
		return
	}
	for _, h := range payment.HashLocks(pay) {
		// Missing secrets are fine, the lock might not be ours.
		_ = c.hashlocks.Remove(db, h)
	}
}

// CondPayReceiptHandler reveals the hash lock secrets of a payment once the
// destination confirmed its reception.
type CondPayReceiptHandler struct {
	c *Controller
}

var _ simplex.Handler = CondPayReceiptHandler{}

func (h CondPayReceiptHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	log := simplex.GetLogger(ctx)
	var receipt CondPayReceipt
	if err := msg.Load(&receipt); err != nil {
		log.Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}
	p, err := h.c.payments.Get(h.c.db, receipt.PayId)
	if errors.ErrNotFound.Is(err) {
		log.Debug("unknown payment", "pay", hexID(receipt.PayId))
		return nil
	} else if err != nil {
		return err
	}
	if len(p.OutChannelID) == 0 {
		log.Debug("receipt for a payment we did not send", "pay", hexID(p.ID))
		return nil
	}

	return h.c.withLock(ctx, p.OutChannelID, func(db simplex.KVStore, out *outbox) error {
		pay, err := p.Decode()
		if err != nil {
			return err
		}
		if !crypto.VerifySignature(p.Pay, receipt.PayDestSig, common.BytesToAddress(pay.Dest)) {
			log.Info("invalid receipt signature", "pay", hexID(p.ID))
			return nil
		}
		for _, hash := range payment.HashLocks(pay) {
			secret, err := h.c.hashlocks.Secret(db, hash)
			if errors.ErrNotFound.Is(err) {
				continue
			} else if err != nil {
				return err
			}
			if err := out.add(simplex.MsgRevealSecret, &RevealSecret{PayId: p.ID, Secret: secret}); err != nil {
				return err
			}
		}
		return nil
	})
}
