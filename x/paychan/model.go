package paychan

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/orm"
)

// ChannelStatus is the on-chain lifecycle stage of a channel.
type ChannelStatus int32

const (
	StatusUninitialized ChannelStatus = 0
	StatusOpen          ChannelStatus = 1
	StatusSettling      ChannelStatus = 2
	StatusSettled       ChannelStatus = 3
)

var statusNames = map[ChannelStatus]string{
	StatusUninitialized: "uninitialized",
	StatusOpen:          "open",
	StatusSettling:      "settling",
	StatusSettled:       "settled",
}

func (s ChannelStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// OnChainBalance is the latest snapshot of the channel funds held by the
// ledger contract. All amounts are big endian encoded.
type OnChainBalance struct {
	SelfDeposit               []byte
	SelfWithdrawal            []byte
	SelfPendingWithdrawal     []byte
	PeerDeposit               []byte
	PeerWithdrawal            []byte
	PeerPendingWithdrawal     []byte
	PendingWithdrawalDeadline uint64
}

// PaymentChannel is the local record of a channel with the peer for a
// single token.
type PaymentChannel struct {
	ChannelID      []byte
	SelfAddress    []byte
	PeerAddress    []byte
	Token          *TokenInfo
	LedgerAddress  []byte
	Status         ChannelStatus
	DisputeTimeout uint64
	OnChain        OnChainBalance
	// InState is the latest accepted state proposed by the peer.
	InState *SignedSimplexState
	// OutState is the latest outgoing state cosigned by the peer.
	OutState *SignedSimplexState
	// OutProposal is the outgoing state signed only by us and not yet
	// acknowledged by the peer. Nil when nothing is in flight.
	OutProposal *SignedSimplexState
}

var _ orm.Model = (*PaymentChannel)(nil)

// Validate ensures the payment channel is valid.
func (pc *PaymentChannel) Validate() error {
	var errs error
	if len(pc.ChannelID) != 32 {
		errs = errors.AppendField(errs, "ChannelID", errors.ErrModel)
	}
	if len(pc.SelfAddress) != common.AddressLength {
		errs = errors.AppendField(errs, "SelfAddress", errors.ErrModel)
	}
	if len(pc.PeerAddress) != common.AddressLength {
		errs = errors.AppendField(errs, "PeerAddress", errors.ErrModel)
	}
	if pc.Token.GetTokenType() == TokenType_INVALID {
		errs = errors.AppendField(errs, "Token", errors.ErrModel)
	}
	if pc.Status < StatusOpen || pc.Status > StatusSettled {
		errs = errors.AppendField(errs, "Status", errors.ErrState)
	}
	if pc.InState == nil {
		errs = errors.AppendField(errs, "InState", errors.ErrEmpty)
	}
	if pc.OutState == nil {
		errs = errors.AppendField(errs, "OutState", errors.ErrEmpty)
	}
	return errs
}

// Self returns the address of the local party.
func (pc *PaymentChannel) Self() common.Address {
	return common.BytesToAddress(pc.SelfAddress)
}

// Peer returns the address of the remote party.
func (pc *PaymentChannel) Peer() common.Address {
	return common.BytesToAddress(pc.PeerAddress)
}

// LatestOut returns the outgoing state further outgoing updates must be
// built upon: the pending proposal if there is one, the cosigned state
// otherwise.
func (pc *PaymentChannel) LatestOut() *SignedSimplexState {
	if pc.OutProposal != nil {
		return pc.OutProposal
	}
	return pc.OutState
}

// AdvanceStatus moves the channel to the given status. Status can only move
// forward, OPEN -> SETTLING -> SETTLED. Setting the current status again is
// a no-op.
func (pc *PaymentChannel) AdvanceStatus(to ChannelStatus) error {
	if to == pc.Status {
		return nil
	}
	if to < pc.Status || to > StatusSettled || to < StatusOpen {
		return errors.Wrapf(errors.ErrState, "channel status %s cannot change to %s", pc.Status, to)
	}
	pc.Status = to
	return nil
}

// ChannelBucket stores PaymentChannel records keyed by channel id.
type ChannelBucket struct {
	orm.Bucket
}

// NewChannelBucket returns a bucket for storing PaymentChannel state.
func NewChannelBucket() ChannelBucket {
	b := orm.NewBucket("paychan", &PaymentChannel{}).
		WithIndex("party", partyIndexer)
	return ChannelBucket{Bucket: b}
}

// PartyKey returns the index value identifying all channels between given
// parties for given token.
func PartyKey(self, peer common.Address, token *TokenInfo) []byte {
	res := make([]byte, 0, 2*common.AddressLength+1+common.AddressLength)
	res = append(res, self.Bytes()...)
	res = append(res, peer.Bytes()...)
	res = append(res, byte(token.GetTokenType()))
	return append(res, TokenAddress(token).Bytes()...)
}

func partyIndexer(m orm.Model) ([][]byte, error) {
	pc, ok := m.(*PaymentChannel)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, m)
	}
	return [][]byte{PartyKey(pc.Self(), pc.Peer(), pc.Token)}, nil
}

// Get returns the channel with given id or ErrNotFound.
func (b ChannelBucket) Get(db simplex.ReadOnlyKVStore, channelID []byte) (*PaymentChannel, error) {
	var pc PaymentChannel
	if err := b.One(db, channelID, &pc); err != nil {
		return nil, err
	}
	return &pc, nil
}

// Save stores the channel under its id.
func (b ChannelBucket) Save(db simplex.KVStore, pc *PaymentChannel) error {
	return b.Put(db, pc.ChannelID, pc)
}

// ByParties returns all channels between given parties for given token, in
// channel id order.
func (b ChannelBucket) ByParties(db simplex.ReadOnlyKVStore, self, peer common.Address, token *TokenInfo) ([]*PaymentChannel, error) {
	var res []*PaymentChannel
	if _, err := b.ByIndex(db, "party", PartyKey(self, peer, token), &res); err != nil {
		return nil, err
	}
	return res, nil
}

// FirstOpen returns the first open channel between given parties for given
// token, or ErrNotFound.
func (b ChannelBucket) FirstOpen(db simplex.ReadOnlyKVStore, self, peer common.Address, token *TokenInfo) (*PaymentChannel, error) {
	chans, err := b.ByParties(db, self, peer, token)
	if err != nil {
		return nil, err
	}
	for _, pc := range chans {
		if pc.Status == StatusOpen {
			return pc, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "no open channel with %s for %s", peer.Hex(), token.GetTokenType())
}

// List returns all stored channels.
func (b ChannelBucket) List(db simplex.ReadOnlyKVStore) ([]*PaymentChannel, error) {
	var res []*PaymentChannel
	if _, err := b.All(db, &res); err != nil {
		return nil, err
	}
	return res, nil
}
