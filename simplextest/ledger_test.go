package simplextest

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/simplextest/assert"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/protocol"
	"github.com/stretchr/testify/require"
)

func TestLedgerOpenChannel(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(10)
	peer := NewPeer(NewAddress())
	self := NewKey()

	raw, err := proto.Marshal(&paychan.PaymentChannelInitializer{
		InitDistribution: &paychan.TokenDistribution{
			Token: paychan.NewTokenInfo(common.Address{}),
			Distribution: []*paychan.AccountAmtPair{
				{Account: self.Address().Bytes(), Amt: big.NewInt(7).Bytes()},
				{Account: peer.Address().Bytes(), Amt: big.NewInt(3).Bytes()},
			},
		},
		OpenDeadline:   20,
		DisputeTimeout: 5,
	})
	require.NoError(t, err)
	sig, err := self.Sign(raw)
	require.NoError(t, err)
	resp, err := peer.ApproveOpen(&protocol.OpenChannelRequest{ChannelInitializer: raw, RequesterSig: sig})
	require.NoError(t, err)

	id, err := l.OpenChannel(ctx, resp)
	require.NoError(t, err)
	_, err = l.OpenChannel(ctx, resp)
	assert.IsErr(t, errors.ErrLedger, err)

	mine, err := l.GetChannelInfo(ctx, id, self.Address())
	require.NoError(t, err)
	require.Equal(t, paychan.StatusOpen, mine.Status)
	require.Equal(t, uint64(5), mine.DisputeTimeout)
	assert.Amount(t, "7", paychan.AmountFromBytes(mine.OnChain.SelfDeposit))
	assert.Amount(t, "3", paychan.AmountFromBytes(mine.OnChain.PeerDeposit))

	theirs, err := l.GetChannelInfo(ctx, id, peer.Address())
	require.NoError(t, err)
	assert.Amount(t, "3", paychan.AmountFromBytes(theirs.OnChain.SelfDeposit))

	require.NoError(t, l.Deposit(ctx, id, peer.Address(), big.NewInt(2)))
	err = l.Deposit(ctx, id, NewAddress(), big.NewInt(2))
	assert.IsErr(t, errors.ErrLedger, err)
	mine, err = l.GetChannelInfo(ctx, id, self.Address())
	require.NoError(t, err)
	assert.Amount(t, "5", paychan.AmountFromBytes(mine.OnChain.PeerDeposit))

	_, err = l.GetChannelInfo(ctx, []byte("unknown"), self.Address())
	assert.IsErr(t, errors.ErrNotFound, err)

	l.Advance(20)
	block, err := l.BlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(30), block)
}

func TestLedgerPayResolution(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(1)
	id := []byte("pay")

	res, err := l.GetPayResolution(ctx, id)
	require.NoError(t, err)
	require.Nil(t, res)

	l.Resolve(id, big.NewInt(4), 9)
	res, err = l.GetPayResolution(ctx, id)
	require.NoError(t, err)
	assert.Amount(t, "4", res.Amount)
	require.Equal(t, uint64(9), res.ResolveDeadline)
}
