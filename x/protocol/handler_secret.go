package protocol

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/payment"
)

// RevealSecretHandler stores the hash lock secret of a payment we receive
// and acknowledges it.
type RevealSecretHandler struct {
	c *Controller
}

var _ simplex.Handler = RevealSecretHandler{}

func (h RevealSecretHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	log := simplex.GetLogger(ctx)
	var reveal RevealSecret
	if err := msg.Load(&reveal); err != nil {
		log.Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}
	p, err := h.c.payments.Get(h.c.db, reveal.PayId)
	if errors.ErrNotFound.Is(err) {
		log.Debug("unknown payment", "pay", hexID(reveal.PayId))
		return nil
	} else if err != nil {
		return err
	}
	if len(p.InChannelID) == 0 {
		log.Debug("secret of a payment we did not receive", "pay", hexID(p.ID))
		return nil
	}

	return h.c.withLock(ctx, p.InChannelID, func(db simplex.KVStore, out *outbox) error {
		p, err := h.c.payments.Get(db, reveal.PayId)
		if err != nil {
			return err
		}
		pay, err := p.Decode()
		if err != nil {
			return err
		}
		if !bytes.Equal(pay.Dest, h.c.signer.Address().Bytes()) {
			log.Debug("secret of a payment to somebody else", "pay", hexID(p.ID))
			return nil
		}
		hash := crypto.Keccak256(reveal.Secret)
		if !containsID(payment.HashLocks(pay), hash) {
			log.Info("secret does not open any hash lock", "pay", hexID(p.ID))
			return nil
		}
		if err := h.c.hashlocks.Store(db, hash, reveal.Secret); err != nil {
			return err
		}
		if p.Status == payment.StatusCoSignedPending {
			if err := p.Transition(payment.StatusHashLockRevealed); err != nil {
				return err
			}
			if err := h.c.payments.Save(db, p); err != nil {
				return err
			}
		}
		sig, err := h.c.signer.Sign(reveal.Secret)
		if err != nil {
			return errors.Wrap(err, "sign secret")
		}
		log.Info("secret revealed", "pay", hexID(p.ID))
		return out.add(simplex.MsgRevealSecretAck, &RevealSecretAck{PayId: p.ID, PayDestSecretSig: sig})
	})
}

// RevealSecretAckHandler settles a payment we sent once its destination
// proved knowing the secret.
type RevealSecretAckHandler struct {
	c *Controller
}

var _ simplex.Handler = RevealSecretAckHandler{}

func (h RevealSecretAckHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	log := simplex.GetLogger(ctx)
	var ack RevealSecretAck
	if err := msg.Load(&ack); err != nil {
		log.Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}
	p, err := h.c.payments.Get(h.c.db, ack.PayId)
	if errors.ErrNotFound.Is(err) {
		log.Debug("unknown payment", "pay", hexID(ack.PayId))
		return nil
	} else if err != nil {
		return err
	}
	if len(p.OutChannelID) == 0 {
		log.Debug("secret ack for a payment we did not send", "pay", hexID(p.ID))
		return nil
	}

	return h.c.withLock(ctx, p.OutChannelID, func(db simplex.KVStore, out *outbox) error {
		p, err := h.c.payments.Get(db, ack.PayId)
		if err != nil {
			return err
		}
		pay, err := p.Decode()
		if err != nil {
			return err
		}
		dest := common.BytesToAddress(pay.Dest)
		acked := false
		for _, hash := range payment.HashLocks(pay) {
			secret, err := h.c.hashlocks.Secret(db, hash)
			if errors.ErrNotFound.Is(err) {
				continue
			} else if err != nil {
				return err
			}
			if crypto.VerifySignature(secret, ack.PayDestSecretSig, dest) {
				acked = true
				break
			}
		}
		if !acked {
			log.Info("invalid secret ack signature", "pay", hexID(p.ID))
			return nil
		}
		switch p.Status {
		case payment.StatusCoSignedPending:
			if err := p.Transition(payment.StatusHashLockRevealed); err != nil {
				return err
			}
			if err := h.c.payments.Save(db, p); err != nil {
				return err
			}
		case payment.StatusHashLockRevealed:
			// settlement refused earlier, ask again
		default:
			log.Debug("secret ack ignored", "pay", hexID(p.ID), "status", p.Status)
			return nil
		}
		if !payment.OnlyHashLock(pay) {
			return nil
		}
		// written together with the reveal
		return h.c.proposeSettle(ctx, db, out, p.OutChannelID, []SettleInfo{{
			PayID:  p.ID,
			Reason: payment.PaymentSettleReason_PAY_PAID_MAX,
			Amount: payment.MaxTransfer(pay),
		}})
	})
}
