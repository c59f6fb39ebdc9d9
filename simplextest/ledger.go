package simplextest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/protocol"
)

// Ledger is an in-memory channel ledger. Transactions are applied
// immediately and the block number changes only when told to.
type Ledger struct {
	mu          sync.Mutex
	block       uint64
	channels    map[string]*ledgerChannel
	resolutions map[string]*protocol.PayResolution
	deposits    int
	withdraws   int

	// Err is returned by every call when set.
	Err error
}

type ledgerChannel struct {
	status         paychan.ChannelStatus
	token          *paychan.TokenInfo
	peers          [2]common.Address
	deposit        [2]*big.Int
	withdrawal     [2]*big.Int
	disputeTimeout uint64
	withdrawSeq    uint64
}

var _ protocol.Ledger = (*Ledger)(nil)

// NewLedger returns an empty ledger at given block.
func NewLedger(block uint64) *Ledger {
	return &Ledger{
		block:       block,
		channels:    make(map[string]*ledgerChannel),
		resolutions: make(map[string]*protocol.PayResolution),
	}
}

// Advance moves the ledger given number of blocks forward.
func (l *Ledger) Advance(blocks uint64) {
	l.mu.Lock()
	l.block += blocks
	l.mu.Unlock()
}

// Resolve records the on-chain resolution of a payment.
func (l *Ledger) Resolve(payID []byte, amount *big.Int, deadline uint64) {
	l.mu.Lock()
	l.resolutions[string(payID)] = &protocol.PayResolution{Amount: amount, ResolveDeadline: deadline}
	l.mu.Unlock()
}

// SetStatus changes the status of a channel, as a settle transaction would.
func (l *Ledger) SetStatus(channelID []byte, s paychan.ChannelStatus) {
	l.mu.Lock()
	if ch, ok := l.channels[string(channelID)]; ok {
		ch.status = s
	}
	l.mu.Unlock()
}

// Deposits returns the number of deposit transactions submitted.
func (l *Ledger) Deposits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deposits
}

// Withdraws returns the number of cooperative withdraw transactions
// submitted.
func (l *Ledger) Withdraws() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withdraws
}

func (l *Ledger) BlockNumber(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block, l.Err
}

func (l *Ledger) GetChannelInfo(ctx context.Context, channelID []byte, self common.Address) (*protocol.ChannelInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	ch, ok := l.channels[string(channelID)]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "channel")
	}
	me, other := 0, 1
	if ch.peers[1] == self {
		me, other = 1, 0
	}
	return &protocol.ChannelInfo{
		Status: ch.status,
		Token:  ch.token,
		Peers:  ch.peers,
		OnChain: paychan.OnChainBalance{
			SelfDeposit:    paychan.AmountBytes(ch.deposit[me]),
			SelfWithdrawal: paychan.AmountBytes(ch.withdrawal[me]),
			PeerDeposit:    paychan.AmountBytes(ch.deposit[other]),
			PeerWithdrawal: paychan.AmountBytes(ch.withdrawal[other]),
		},
		DisputeTimeout: ch.disputeTimeout,
		WithdrawSeq:    ch.withdrawSeq,
	}, nil
}

func (l *Ledger) OpenChannel(ctx context.Context, resp *protocol.OpenChannelResponse) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	var init paychan.PaymentChannelInitializer
	if err := proto.Unmarshal(resp.ChannelInitializer, &init); err != nil {
		return nil, errors.Wrap(errors.ErrLedger, err.Error())
	}
	dist := init.GetInitDistribution().GetDistribution()
	if len(dist) != 2 {
		return nil, errors.Wrap(errors.ErrLedger, "initializer requires two parties")
	}
	if l.block > init.OpenDeadline {
		return nil, errors.Wrap(errors.ErrLedger, "open deadline passed")
	}
	channelID := crypto.Keccak256(resp.ChannelInitializer)
	if _, ok := l.channels[string(channelID)]; ok {
		return nil, errors.Wrap(errors.ErrLedger, "channel already opened")
	}
	ch := &ledgerChannel{
		status:         paychan.StatusOpen,
		token:          init.InitDistribution.Token,
		disputeTimeout: init.DisputeTimeout,
	}
	for i, d := range dist {
		ch.peers[i] = common.BytesToAddress(d.Account)
		ch.deposit[i] = paychan.AmountFromBytes(d.Amt)
		ch.withdrawal[i] = new(big.Int)
	}
	l.channels[string(channelID)] = ch
	return channelID, nil
}

func (l *Ledger) Deposit(ctx context.Context, channelID []byte, receiver common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	ch, ok := l.channels[string(channelID)]
	if !ok {
		return errors.Wrap(errors.ErrLedger, "unknown channel")
	}
	i, err := ch.party(receiver)
	if err != nil {
		return err
	}
	ch.deposit[i] = new(big.Int).Add(ch.deposit[i], amount)
	l.deposits++
	return nil
}

func (l *Ledger) CooperativeWithdraw(ctx context.Context, resp *protocol.CooperativeWithdrawResponse) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	var info protocol.CooperativeWithdrawInfo
	if err := proto.Unmarshal(resp.WithdrawInfo, &info); err != nil {
		return errors.Wrap(errors.ErrLedger, err.Error())
	}
	ch, ok := l.channels[string(info.ChannelId)]
	if !ok {
		return errors.Wrap(errors.ErrLedger, "unknown channel")
	}
	if info.SeqNum != ch.withdrawSeq+1 {
		return errors.Wrapf(errors.ErrLedger, "withdraw sequence %d", info.SeqNum)
	}
	if l.block > info.WithdrawDeadline {
		return errors.Wrap(errors.ErrLedger, "withdraw deadline passed")
	}
	i, err := ch.party(common.BytesToAddress(info.Withdraw.GetAccount()))
	if err != nil {
		return err
	}
	if !crypto.VerifySignature(resp.WithdrawInfo, resp.RequesterSig, ch.peers[i]) ||
		!crypto.VerifySignature(resp.WithdrawInfo, resp.ApproverSig, ch.peers[1-i]) {
		return errors.Wrap(errors.ErrLedger, "invalid withdraw signatures")
	}
	ch.withdrawal[i] = new(big.Int).Add(ch.withdrawal[i], paychan.AmountFromBytes(info.Withdraw.GetAmt()))
	ch.withdrawSeq = info.SeqNum
	l.withdraws++
	return nil
}

func (l *Ledger) GetPayResolution(ctx context.Context, payID []byte) (*protocol.PayResolution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	return l.resolutions[string(payID)], nil
}

func (ch *ledgerChannel) party(addr common.Address) (int, error) {
	switch addr {
	case ch.peers[0]:
		return 0, nil
	case ch.peers[1]:
		return 1, nil
	}
	return 0, errors.Wrap(errors.ErrLedger, "not a channel party")
}
