package protocol

import (
	"bytes"
	"context"
	"math/big"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
)

// OpenChannel opens a channel with the configured peer for given token and
// returns its id. An open channel for the same token is reused.
func (c *Controller) OpenChannel(ctx context.Context, token *paychan.TokenInfo, selfDeposit, peerDeposit *big.Int) ([]byte, error) {
	self, peer := c.signer.Address(), c.conf.PeerAddress
	partyKey := paychan.PartyKey(self, peer, token)
	unlock := c.locks.lock(partyKey)
	defer unlock()

	switch pc, err := c.channels.FirstOpen(c.db, self, peer, token); {
	case err == nil:
		return pc.ChannelID, nil
	case !errors.ErrNotFound.Is(err):
		return nil, err
	}

	block, err := c.ledger.BlockNumber(ctx)
	if err != nil {
		return nil, ledgerErr(err, "block number")
	}
	init := &paychan.PaymentChannelInitializer{
		InitDistribution: &paychan.TokenDistribution{
			Token: token,
			Distribution: []*paychan.AccountAmtPair{
				{Account: self.Bytes(), Amt: paychan.AmountBytes(selfDeposit)},
				{Account: peer.Bytes(), Amt: paychan.AmountBytes(peerDeposit)},
			},
		},
		OpenDeadline:   block + c.conf.OpenDeadlineBlocks,
		DisputeTimeout: c.conf.DisputeTimeoutBlocks,
	}
	raw, err := proto.Marshal(init)
	if err != nil {
		return nil, errors.Wrap(errors.ErrMsg, err.Error())
	}
	sig, err := c.signer.Sign(raw)
	if err != nil {
		return nil, errors.Wrap(err, "sign initializer")
	}

	resp, err := c.transport.OpenChannel(ctx, &OpenChannelRequest{ChannelInitializer: raw, RequesterSig: sig})
	if err != nil {
		if errors.ErrTransport.Is(err) {
			return nil, err
		}
		return nil, errors.Wrapf(errors.ErrTransport, "open channel: %s", err)
	}
	if err := resp.Validate(); err != nil {
		return nil, errors.Wrap(err, "open channel response")
	}
	if !bytes.Equal(resp.ChannelInitializer, raw) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "peer changed the channel initializer")
	}
	if !crypto.VerifySignature(raw, resp.ApproverSig, peer) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "invalid peer signature")
	}

	channelID, err := c.ledger.OpenChannel(ctx, resp)
	if err != nil {
		return nil, ledgerErr(err, "open channel")
	}
	info, err := c.ledger.GetChannelInfo(ctx, channelID, self)
	if err != nil {
		return nil, ledgerErr(err, "channel info")
	}

	in, err := signGenesis(c.signer, channelID, peer, self, token)
	if err != nil {
		return nil, err
	}
	out, err := signGenesis(c.signer, channelID, self, peer, token)
	if err != nil {
		return nil, err
	}
	pc := &paychan.PaymentChannel{
		ChannelID:      channelID,
		SelfAddress:    self.Bytes(),
		PeerAddress:    peer.Bytes(),
		Token:          token,
		LedgerAddress:  c.conf.LedgerAddress.Bytes(),
		Status:         paychan.StatusOpen,
		DisputeTimeout: info.DisputeTimeout,
		OnChain:        info.OnChain,
		InState:        in,
		OutState:       out,
	}
	err = c.withLock(ctx, channelID, func(db simplex.KVStore, _ *outbox) error {
		return c.channels.Save(db, pc)
	})
	if err != nil {
		return nil, err
	}
	simplex.GetLogger(ctx).Info("channel opened", "channel", hexID(channelID), "token", token.GetTokenType())
	return channelID, nil
}
