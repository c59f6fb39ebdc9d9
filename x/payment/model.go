package payment

import (
	"encoding/binary"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/orm"
)

// Status is the local lifecycle stage of a payment.
type Status int32

const (
	StatusInitial               Status = 0
	StatusPeerFromSignedPending Status = 1
	StatusCoSignedPending       Status = 2
	StatusHashLockRevealed      Status = 3
	StatusPeerFromSignedSettled Status = 4
	StatusCoSignedSettled       Status = 5
	StatusFailed                Status = 6
	StatusExpired               Status = 7
)

var statusNames = map[Status]string{
	StatusInitial:               "INITIAL",
	StatusPeerFromSignedPending: "PEER_FROM_SIGNED_PENDING",
	StatusCoSignedPending:       "CO_SIGNED_PENDING",
	StatusHashLockRevealed:      "HASH_LOCK_REVEALED",
	StatusPeerFromSignedSettled: "PEER_FROM_SIGNED_SETTLED",
	StatusCoSignedSettled:       "CO_SIGNED_SETTLED",
	StatusFailed:                "FAILED",
	StatusExpired:               "EXPIRED",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// transitions lists the statuses each status can move to. Absent statuses
// are terminal.
var transitions = map[Status][]Status{
	StatusInitial:               {StatusPeerFromSignedPending, StatusCoSignedPending},
	StatusPeerFromSignedPending: {StatusCoSignedPending, StatusFailed},
	StatusCoSignedPending:       {StatusHashLockRevealed, StatusPeerFromSignedSettled, StatusCoSignedSettled, StatusFailed, StatusExpired},
	StatusHashLockRevealed:      {StatusPeerFromSignedSettled, StatusCoSignedSettled, StatusExpired},
	StatusPeerFromSignedSettled: {StatusCoSignedSettled, StatusFailed, StatusExpired},
}

// CanTransition returns true if the status can move to the given one.
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal returns true if no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// MapWireStatus converts the status reported by the peer into the local
// one.
func MapWireStatus(s PayState) (Status, error) {
	switch s {
	case PayState_ONESIG_PENDING:
		return StatusPeerFromSignedPending, nil
	case PayState_COSIGNED_PENDING:
		return StatusCoSignedPending, nil
	case PayState_SECRET_REVEALED:
		return StatusHashLockRevealed, nil
	case PayState_ONESIG_PAID, PayState_ONESIG_CANCELED:
		return StatusPeerFromSignedSettled, nil
	case PayState_COSIGNED_PAID, PayState_COSIGNED_CANCELED:
		return StatusCoSignedSettled, nil
	case PayState_NACKED:
		return StatusFailed, nil
	case PayState_EXPIRED:
		return StatusExpired, nil
	}
	return StatusInitial, errors.Wrapf(errors.ErrInput, "unknown pay state %d", s)
}

// Payment is the local record of a conditional payment we send or receive.
type Payment struct {
	ID []byte
	// InChannelID is the channel the payment was received on, empty when
	// we are the source.
	InChannelID []byte
	// OutChannelID is the channel the payment was sent on, empty when we
	// are the destination.
	OutChannelID []byte
	// Pay is the serialized ConditionalPay.
	Pay  []byte
	Note []byte

	Status           Status
	SettlementAmount []byte
	SettleReason     PaymentSettleReason
	// OutSeq is the sequence number of the outgoing state that carries the
	// latest proposal made for this payment.
	OutSeq uint64
	// SettleFrom is the status the payment had when we proposed its
	// settlement.
	SettleFrom Status
}

var _ orm.Model = (*Payment)(nil)

// Validate ensures the payment is valid.
func (p *Payment) Validate() error {
	var errs error
	if len(p.ID) != 32 {
		errs = errors.AppendField(errs, "ID", errors.ErrModel)
	}
	if len(p.Pay) == 0 {
		errs = errors.AppendField(errs, "Pay", errors.ErrEmpty)
	}
	if len(p.InChannelID) == 0 && len(p.OutChannelID) == 0 {
		errs = errors.AppendField(errs, "OutChannelID", errors.ErrEmpty)
	}
	if _, ok := statusNames[p.Status]; !ok {
		errs = errors.AppendField(errs, "Status", errors.ErrState)
	}
	return errs
}

// Decode returns the conditional pay of the payment.
func (p *Payment) Decode() (*ConditionalPay, error) {
	return DecodePay(p.Pay)
}

// Transition moves the payment to the given status. Statuses only move
// forward, except for failing a payment.
func (p *Payment) Transition(to Status) error {
	if !p.Status.CanTransition(to) {
		return errors.Wrapf(errors.ErrState, "payment status %s cannot change to %s", p.Status, to)
	}
	p.Status = to
	return nil
}

// RevertSettle moves a payment whose settlement was refused by the peer back
// to the status it had before the settle request. The payment is still
// pending in the channel, so it can be settled again.
func (p *Payment) RevertSettle() error {
	if p.Status != StatusPeerFromSignedSettled {
		return errors.Wrapf(errors.ErrState, "payment status %s has no settlement to revert", p.Status)
	}
	p.Status = StatusCoSignedPending
	if p.SettleFrom == StatusHashLockRevealed {
		p.Status = StatusHashLockRevealed
	}
	p.SettlementAmount = nil
	p.SettleReason = PaymentSettleReason_PAY_UNSPECIFIED
	p.SettleFrom = StatusInitial
	return nil
}

// PaymentBucket stores Payment records keyed by payment id.
type PaymentBucket struct {
	orm.Bucket
}

// NewPaymentBucket returns a bucket for storing payments.
func NewPaymentBucket() PaymentBucket {
	b := orm.NewBucket("payment", &Payment{}).
		WithIndex("status", statusIndexer).
		WithIndex("in_channel", inChannelIndexer).
		WithIndex("out_channel", outChannelIndexer)
	return PaymentBucket{Bucket: b}
}

func statusKey(s Status) []byte {
	res := make([]byte, 4)
	binary.BigEndian.PutUint32(res, uint32(s))
	return res
}

func statusIndexer(m orm.Model) ([][]byte, error) {
	p, ok := m.(*Payment)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, m)
	}
	return [][]byte{statusKey(p.Status)}, nil
}

func inChannelIndexer(m orm.Model) ([][]byte, error) {
	p, ok := m.(*Payment)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, m)
	}
	if len(p.InChannelID) == 0 {
		return nil, nil
	}
	return [][]byte{p.InChannelID}, nil
}

func outChannelIndexer(m orm.Model) ([][]byte, error) {
	p, ok := m.(*Payment)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, m)
	}
	if len(p.OutChannelID) == 0 {
		return nil, nil
	}
	return [][]byte{p.OutChannelID}, nil
}

// Get returns the payment with given id or ErrNotFound.
func (b PaymentBucket) Get(db simplex.ReadOnlyKVStore, id []byte) (*Payment, error) {
	var p Payment
	if err := b.One(db, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create stores a new payment. It fails with ErrDuplicate if a payment with
// the same id exists.
func (b PaymentBucket) Create(db simplex.KVStore, p *Payment) error {
	switch ok, err := b.Has(db, p.ID); {
	case err != nil:
		return err
	case ok:
		return errors.Wrapf(errors.ErrDuplicate, "payment %X", p.ID)
	}
	return b.Put(db, p.ID, p)
}

// Save stores the payment under its id.
func (b PaymentBucket) Save(db simplex.KVStore, p *Payment) error {
	return b.Put(db, p.ID, p)
}

// ByStatus returns all payments with given status.
func (b PaymentBucket) ByStatus(db simplex.ReadOnlyKVStore, s Status) ([]*Payment, error) {
	return b.by(db, "status", statusKey(s))
}

// ByInChannel returns all payments received on given channel.
func (b PaymentBucket) ByInChannel(db simplex.ReadOnlyKVStore, channelID []byte) ([]*Payment, error) {
	return b.by(db, "in_channel", channelID)
}

// ByOutChannel returns all payments sent on given channel.
func (b PaymentBucket) ByOutChannel(db simplex.ReadOnlyKVStore, channelID []byte) ([]*Payment, error) {
	return b.by(db, "out_channel", channelID)
}

// InFlight returns the payments sent on given channel with given status
// whose latest proposal was made in the sequence range (after, upTo].
func (b PaymentBucket) InFlight(db simplex.ReadOnlyKVStore, channelID []byte, s Status, after, upTo uint64) ([]*Payment, error) {
	pays, err := b.ByOutChannel(db, channelID)
	if err != nil {
		return nil, err
	}
	var res []*Payment
	for _, p := range pays {
		if p.Status == s && p.OutSeq > after && p.OutSeq <= upTo {
			res = append(res, p)
		}
	}
	return res, nil
}

func (b PaymentBucket) by(db simplex.ReadOnlyKVStore, index string, value []byte) ([]*Payment, error) {
	var res []*Payment
	if _, err := b.ByIndex(db, index, value, &res); err != nil {
		return nil, err
	}
	return res, nil
}
