package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/x/paychan"
)

// ChannelInfo is the on-chain view of a channel, balances seen from the
// party given to Ledger.GetChannelInfo.
type ChannelInfo struct {
	Status         paychan.ChannelStatus
	Token          *paychan.TokenInfo
	Peers          [2]common.Address
	OnChain        paychan.OnChainBalance
	DisputeTimeout uint64
	// WithdrawSeq is the sequence number of the last cooperative withdraw.
	WithdrawSeq uint64
}

// PayResolution is the on-chain resolution of a conditional payment.
type PayResolution struct {
	Amount          *big.Int
	ResolveDeadline uint64
}

// Ledger is the channel ledger contract. Every method that submits a
// transaction returns once the transaction was mined.
type Ledger interface {
	BlockNumber(ctx context.Context) (uint64, error)
	// GetChannelInfo returns ErrNotFound for an unknown channel.
	GetChannelInfo(ctx context.Context, channelID []byte, self common.Address) (*ChannelInfo, error)
	// OpenChannel submits the cosigned initializer and returns the id of
	// the opened channel.
	OpenChannel(ctx context.Context, resp *OpenChannelResponse) ([]byte, error)
	Deposit(ctx context.Context, channelID []byte, receiver common.Address, amount *big.Int) error
	CooperativeWithdraw(ctx context.Context, resp *CooperativeWithdrawResponse) error
	// GetPayResolution returns nil if the payment was not resolved on
	// chain.
	GetPayResolution(ctx context.Context, payID []byte) (*PayResolution, error)
}

// Transport exchanges messages with the peer.
type Transport interface {
	Send(ctx context.Context, msg *simplex.CelerMsg) error
	OpenChannel(ctx context.Context, req *OpenChannelRequest) (*OpenChannelResponse, error)
}
