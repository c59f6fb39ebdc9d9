package protocol

import (
	"bytes"
	"context"
	"math/big"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
)

// SyncOnChain refreshes the deposit and withdrawal snapshot and the status
// of the channel from the ledger.
func (c *Controller) SyncOnChain(ctx context.Context, channelID []byte) error {
	info, err := c.ledger.GetChannelInfo(ctx, channelID, c.signer.Address())
	if err != nil {
		return ledgerErr(err, "channel info")
	}
	return c.withLock(ctx, channelID, func(db simplex.KVStore, _ *outbox) error {
		pc, err := c.channels.Get(db, channelID)
		if err != nil {
			return err
		}
		if err := pc.AdvanceStatus(info.Status); err != nil {
			return err
		}
		pc.OnChain = info.OnChain
		return c.channels.Save(db, pc)
	})
}

// Deposit adds funds of the local party to the channel.
func (c *Controller) Deposit(ctx context.Context, channelID []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(errors.ErrAmount, "amount must be positive")
	}
	pc, err := c.channels.Get(c.db, channelID)
	if err != nil {
		return err
	}
	if pc.Status != paychan.StatusOpen {
		return errors.Wrapf(errors.ErrState, "channel is %s", pc.Status)
	}
	if err := c.ledger.Deposit(ctx, channelID, pc.Self(), amount); err != nil {
		return ledgerErr(err, "deposit")
	}
	return c.SyncOnChain(ctx, channelID)
}

// CooperativeWithdraw withdraws funds of the local party from the channel
// with the agreement of the peer. It waits for the peer response for at
// most the configured withdraw timeout.
func (c *Controller) CooperativeWithdraw(ctx context.Context, channelID []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(errors.ErrAmount, "amount must be positive")
	}
	pc, err := c.channels.Get(c.db, channelID)
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
	info, err := c.ledger.GetChannelInfo(ctx, channelID, pc.Self())
	if err != nil {
		return ledgerErr(err, "channel info")
	}
	block, err := c.ledger.BlockNumber(ctx)
	if err != nil {
		return ledgerErr(err, "block number")
	}

	raw, err := proto.Marshal(&CooperativeWithdrawInfo{
		ChannelId:        channelID,
		SeqNum:           info.WithdrawSeq + 1,
		Withdraw:         &paychan.AccountAmtPair{Account: pc.SelfAddress, Amt: paychan.AmountBytes(amount)},
		WithdrawDeadline: block + c.conf.WithdrawDeadlineBlocks,
	})
	if err != nil {
		return errors.Wrap(errors.ErrMsg, err.Error())
	}
	sig, err := c.signer.Sign(raw)
	if err != nil {
		return errors.Wrap(err, "sign withdraw")
	}

	future, err := c.withdraws.add(channelID)
	if err != nil {
		return err
	}
	defer c.withdraws.remove(channelID)

	msg, err := simplex.NewMsg(simplex.MsgCooperativeWithdrawRequest, &CooperativeWithdrawRequest{WithdrawInfo: raw, RequesterSig: sig})
	if err != nil {
		return err
	}
	if err := c.send(ctx, msg); err != nil {
		return err
	}

	timer := time.NewTimer(time.Duration(c.conf.WithdrawTimeout))
	defer timer.Stop()
	var resp *CooperativeWithdrawResponse
	select {
	case resp = <-future:
	case <-timer.C:
		return errors.Wrap(errors.ErrTimeout, "no cooperative withdraw response")
	case <-ctx.Done():
		return errors.Wrap(errors.ErrTimeout, ctx.Err().Error())
	}

	if resp.Error != nil {
		return errors.Wrapf(errors.ErrState, "withdraw rejected: %s", resp.Error.Reason)
	}
	if !bytes.Equal(resp.WithdrawInfo, raw) {
		return errors.Wrap(errors.ErrUnauthorized, "peer changed the withdraw info")
	}
	if !crypto.VerifySignature(raw, resp.ApproverSig, pc.Peer()) {
		return errors.Wrap(errors.ErrUnauthorized, "invalid peer signature")
	}
	if err := c.ledger.CooperativeWithdraw(ctx, resp); err != nil {
		return ledgerErr(err, "cooperative withdraw")
	}
	simplex.GetLogger(ctx).Info("cooperative withdraw", "channel", hexID(channelID), "amount", amount)
	return c.SyncOnChain(ctx, channelID)
}
