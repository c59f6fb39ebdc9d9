package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
)

// NewHashLockCondition generates and stores a new secret, returning the
// condition locked by its hash.
func (c *Controller) NewHashLockCondition() (*payment.Condition, error) {
	db := c.db.CacheWrap()
	hash, err := c.hashlocks.Create(db)
	if err != nil {
		db.Discard()
		return nil, err
	}
	if err := db.Write(); err != nil {
		return nil, err
	}
	return &payment.Condition{ConditionType: payment.ConditionType_HASH_LOCK, HashLock: hash}, nil
}

// PayOptions are the optional parameters of a conditional payment.
type PayOptions struct {
	// TimeoutBlocks sets the resolve deadline relative to the current
	// block. The configured pay timeout is used when zero.
	TimeoutBlocks uint64
	Note          []byte
}

// SendConditionalPayment sends a conditional payment to dest through the
// open channel with the configured peer and returns the payment id.
func (c *Controller) SendConditionalPayment(ctx context.Context, dest common.Address, token *paychan.TokenInfo, amount *big.Int, conditions []*payment.Condition, opts PayOptions) ([]byte, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.Wrap(errors.ErrAmount, "amount must be positive")
	}
	self := c.signer.Address()
	pc, err := c.channels.FirstOpen(c.db, self, c.conf.PeerAddress, token)
	if err != nil {
		return nil, err
	}
	block, err := c.ledger.BlockNumber(ctx)
	if err != nil {
		return nil, ledgerErr(err, "block number")
	}
	timeout := opts.TimeoutBlocks
	if timeout == 0 {
		timeout = c.conf.PayTimeoutBlocks
	}

	pay := &payment.ConditionalPay{
		PayTimestamp: payment.NewPayTimestamp(),
		Src:          self.Bytes(),
		Dest:         dest.Bytes(),
		Conditions:   conditions,
		TransferFunc: &payment.TransferFunction{
			LogicType:   payment.TransferFunctionType_BOOLEAN_AND,
			MaxTransfer: paychan.NewTokenTransfer(token, dest, amount),
		},
		ResolveDeadline: block + timeout,
		ResolveTimeout:  c.conf.ResolveTimeoutBlocks,
		PayResolver:     c.conf.PayResolver.Bytes(),
	}
	raw, err := proto.Marshal(pay)
	if err != nil {
		return nil, errors.Wrap(errors.ErrMsg, err.Error())
	}
	payID := payment.PaymentID(raw, c.conf.PayResolver)

	err = c.withLock(ctx, pc.ChannelID, func(db simplex.KVStore, out *outbox) error {
		pc, err := c.channels.Get(db, pc.ChannelID)
		if err != nil {
			return err
		}
		if pc.Status != paychan.StatusOpen {
			return errors.Wrapf(errors.ErrState, "channel is %s", pc.Status)
		}
		balance, err := paychan.CalculateBalance(pc)
		if err != nil {
			return err
		}
		if amount.Cmp(balance.FreeSending) > 0 {
			return errors.Wrapf(errors.ErrAmount, "insufficient balance %s", balance.FreeSending)
		}

		latest, err := paychan.DecodeSimplex(pc.LatestOut())
		if err != nil {
			return err
		}
		if uint32(len(latest.GetPendingPayIds().GetPayIds())) >= c.conf.MaxPendingPays {
			return errors.Wrap(errors.ErrState, "too many pending payments")
		}
		next := paychan.NextState(latest)
		next.PendingPayIds.PayIds = append(next.PendingPayIds.PayIds, payID)
		pending := new(big.Int).Add(paychan.TransferAmount(latest.TotalPendingAmount), amount)
		next.TotalPendingAmount = paychan.NewTokenTransfer(token, pc.Peer(), pending)
		next.LastPayResolveDeadline = maxUint64(latest.LastPayResolveDeadline, pay.ResolveDeadline)

		signed := &paychan.SignedSimplexState{}
		if err := paychan.SignUpdatedSimplexState(c.signer, signed, next); err != nil {
			return err
		}
		pc.OutProposal = signed
		if err := c.channels.Save(db, pc); err != nil {
			return err
		}

		p := &payment.Payment{
			ID:           payID,
			OutChannelID: pc.ChannelID,
			Pay:          raw,
			Note:         opts.Note,
			Status:       payment.StatusInitial,
			OutSeq:       next.SeqNum,
		}
		if err := p.Transition(payment.StatusPeerFromSignedPending); err != nil {
			return err
		}
		if err := c.payments.Create(db, p); err != nil {
			return err
		}
		return out.add(simplex.MsgCondPayRequest, &CondPayRequest{
			CondPay:              raw,
			StateOnlyPeerFromSig: signed,
			BaseSeq:              latest.SeqNum,
			Note:                 opts.Note,
		})
	})
	if err != nil {
		return nil, err
	}
	simplex.GetLogger(ctx).Info("conditional pay sent", "channel", hexID(pc.ChannelID), "pay", hexID(payID), "amount", amount)
	return payID, nil
}
