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

// PaymentSettleRequestHandler accepts the removal of payments from the
// incoming state, proposed by the peer.
type PaymentSettleRequestHandler struct {
	c *Controller
}

var _ simplex.Handler = PaymentSettleRequestHandler{}

func (h PaymentSettleRequestHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	log := simplex.GetLogger(ctx)
	var req PaymentSettleRequest
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

		var settled []*payment.Payment
		state, rej := paychan.VerifyIncoming(pc, req.StateOnlyPeerFromSig, req.BaseSeq)
		if rej == nil {
			settled, rej, err = h.check(ctx, db, pc, state, &req)
			if err != nil {
				return err
			}
		}
		if rej != nil {
			log.Info("settle request rejected", "channel", hexID(pc.ChannelID), "seq", proposed.SeqNum, "err", rej)
			return out.add(simplex.MsgPaymentSettleResponse, &PaymentSettleResponse{
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
		for i, p := range settled {
			sp := req.SettledPays[i]
			if err := p.Transition(payment.StatusCoSignedSettled); err != nil {
				return err
			}
			p.SettlementAmount = paychan.AmountBytes(paychan.AmountFromBytes(sp.Amount))
			p.SettleReason = sp.Reason
			if err := h.c.payments.Save(db, p); err != nil {
				return err
			}
			log.Info("payment settled", "channel", hexID(pc.ChannelID), "pay", hexID(p.ID), "reason", sp.Reason)
		}
		return out.add(simplex.MsgPaymentSettleResponse, &PaymentSettleResponse{StateCosigned: signed})
	})
}

// check validates the proposed state against the settled payments. Loaded
// payments are returned in the order of the request.
func (h PaymentSettleRequestHandler) check(ctx context.Context, db simplex.ReadOnlyKVStore, pc *paychan.PaymentChannel, state *paychan.SimplexPaymentChannel, req *PaymentSettleRequest) ([]*payment.Payment, *paychan.Rejection, error) {
	last := pc.InState
	stored, err := paychan.DecodeSimplex(last)
	if err != nil {
		return nil, nil, errors.Wrap(err, "stored incoming state")
	}
	if !paychan.SameToken(state.GetTransferToPeer().GetToken(), pc.Token) {
		return nil, paychan.Reject(last, paychan.ReasonInvalidToken), nil
	}

	ids := make([][]byte, len(req.SettledPays))
	for i, sp := range req.SettledPays {
		ids[i] = sp.SettledPayId
	}
	added, removed := diffPayIDs(stored.GetPendingPayIds().GetPayIds(), state.GetPendingPayIds().GetPayIds())
	if len(added) != 0 || !sameIDs(ids, removed) {
		return nil, paychan.Reject(last, paychan.ReasonInvalidPendingPayList), nil
	}
	if state.LastPayResolveDeadline != stored.LastPayResolveDeadline {
		return nil, paychan.Reject(last, paychan.ReasonInvalidResolveDeadline), nil
	}

	var (
		block       uint64
		haveBlock   bool
		totalMax    = new(big.Int)
		totalSettle = new(big.Int)
		pays        = make([]*payment.Payment, 0, len(req.SettledPays))
	)
	for _, sp := range req.SettledPays {
		p, err := h.c.payments.Get(db, sp.SettledPayId)
		if errors.ErrNotFound.Is(err) {
			return nil, paychan.Reject(last, paychan.ReasonPaymentNotFound), nil
		} else if err != nil {
			return nil, nil, err
		}
		if !bytes.Equal(p.InChannelID, pc.ChannelID) {
			return nil, paychan.Reject(last, paychan.ReasonPaymentNotFound), nil
		}
		pay, err := p.Decode()
		if err != nil {
			return nil, nil, err
		}
		max := payment.MaxTransfer(pay)
		amount := paychan.AmountFromBytes(sp.Amount)

		switch sp.Reason {
		case payment.PaymentSettleReason_PAY_EXPIRED:
			if !haveBlock {
				if block, err = h.c.ledger.BlockNumber(ctx); err != nil {
					return nil, nil, ledgerErr(err, "block number")
				}
				haveBlock = true
			}
			if block < pay.ResolveDeadline+h.c.conf.ExpirySafetyMargin {
				return nil, paychan.Reject(last, paychan.ReasonPaymentNotExpired), nil
			}
			if amount.Sign() != 0 {
				return nil, paychan.Reject(last, paychan.ReasonInvalidSettleAmount), nil
			}
			res, err := h.c.ledger.GetPayResolution(ctx, p.ID)
			if err != nil {
				return nil, nil, ledgerErr(err, "pay resolution")
			}
			if res != nil && res.Amount != nil && res.Amount.Sign() > 0 {
				return nil, paychan.Reject(last, paychan.ReasonInvalidSettleAmount), nil
			}
		case payment.PaymentSettleReason_PAY_PAID_MAX, payment.PaymentSettleReason_PAY_RESOLVED_ONCHAIN:
			if amount.Cmp(max) != 0 {
				return nil, paychan.Reject(last, paychan.ReasonInvalidSettleAmount), nil
			}
		case payment.PaymentSettleReason_PAY_REJECTED, payment.PaymentSettleReason_PAY_DEST_UNREACHABLE:
			if p.Status != payment.StatusPeerFromSignedSettled {
				return nil, paychan.Reject(last, paychan.ReasonInvalidSettleReason), nil
			}
			if amount.Sign() != 0 {
				return nil, paychan.Reject(last, paychan.ReasonInvalidSettleAmount), nil
			}
		default:
			return nil, paychan.Reject(last, paychan.ReasonInvalidSettleReason), nil
		}
		if !p.Status.CanTransition(payment.StatusCoSignedSettled) {
			return nil, paychan.Reject(last, paychan.ReasonPaymentAlreadyProcessing), nil
		}
		totalMax.Add(totalMax, max)
		totalSettle.Add(totalSettle, amount)
		pays = append(pays, p)
	}

	transferDelta := new(big.Int).Sub(paychan.TransferAmount(state.TransferToPeer), paychan.TransferAmount(stored.TransferToPeer))
	if transferDelta.Cmp(totalSettle) != 0 {
		return nil, paychan.Reject(last, paychan.ReasonInvalidSettleAmount), nil
	}
	pendingDelta := new(big.Int).Sub(paychan.TransferAmount(stored.TotalPendingAmount), paychan.TransferAmount(state.TotalPendingAmount))
	if pendingDelta.Cmp(totalMax) != 0 {
		return nil, paychan.Reject(last, paychan.ReasonInvalidTotalPending), nil
	}
	return pays, nil, nil
}

// PaymentSettleResponseHandler processes the peer answer to a settlement
// we proposed.
type PaymentSettleResponseHandler struct {
	c *Controller
}

var _ simplex.Handler = PaymentSettleResponseHandler{}

func (h PaymentSettleResponseHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	var resp PaymentSettleResponse
	if err := msg.Load(&resp); err != nil {
		simplex.GetLogger(ctx).Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}
	return h.c.applyOutgoingResponse(ctx, resp.StateCosigned, resp.Error,
		payment.StatusPeerFromSignedSettled, payment.StatusCoSignedSettled)
}

// PaymentSettleProofHandler settles payments we sent when the peer proves
// they can be removed from the outgoing state.
type PaymentSettleProofHandler struct {
	c *Controller
}

var _ simplex.Handler = PaymentSettleProofHandler{}

func (h PaymentSettleProofHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	log := simplex.GetLogger(ctx)
	var proof PaymentSettleProof
	if err := msg.Load(&proof); err != nil {
		log.Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}

	var (
		channelID []byte
		settles   []SettleInfo
		block     uint64
		haveBlock bool
	)
	for _, sp := range proof.SettledPays {
		p, err := h.c.payments.Get(h.c.db, sp.SettledPayId)
		if errors.ErrNotFound.Is(err) {
			log.Debug("unknown payment", "pay", hexID(sp.SettledPayId))
			continue
		} else if err != nil {
			return err
		}
		if len(p.OutChannelID) == 0 {
			continue
		}
		if channelID == nil {
			channelID = p.OutChannelID
		} else if !bytes.Equal(channelID, p.OutChannelID) {
			log.Info("settle proof across channels", "channel", hexID(channelID), "other", hexID(p.OutChannelID))
			return nil
		}
		if p.Status != payment.StatusCoSignedPending && p.Status != payment.StatusHashLockRevealed {
			continue
		}
		pay, err := p.Decode()
		if err != nil {
			return err
		}

		info := SettleInfo{PayID: p.ID, Reason: sp.Reason, Amount: new(big.Int)}
		switch sp.Reason {
		case payment.PaymentSettleReason_PAY_RESOLVED_ONCHAIN:
			res, err := h.c.ledger.GetPayResolution(ctx, p.ID)
			if err != nil {
				return ledgerErr(err, "pay resolution")
			}
			if res == nil || res.Amount == nil {
				log.Info("payment not resolved on chain", "pay", hexID(p.ID))
				continue
			}
			info.Amount = res.Amount
		case payment.PaymentSettleReason_PAY_EXPIRED:
			if !haveBlock {
				if block, err = h.c.ledger.BlockNumber(ctx); err != nil {
					return ledgerErr(err, "block number")
				}
				haveBlock = true
			}
			if block < pay.ResolveDeadline+h.c.conf.ExpirySafetyMargin {
				continue
			}
		case payment.PaymentSettleReason_PAY_REJECTED, payment.PaymentSettleReason_PAY_DEST_UNREACHABLE:
		default:
			log.Debug("settle reason not actionable", "pay", hexID(p.ID), "reason", sp.Reason)
			continue
		}
		settles = append(settles, info)
	}
	if len(settles) == 0 {
		return nil
	}
	return h.c.SendSettleRequests(ctx, settles)
}
