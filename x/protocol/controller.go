package protocol

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/hashlock"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
)

// Controller owns the channel and payment state of the local party. Both
// the inbound message handlers and the outbound request builders are
// methods of the controller.
//
// Every operation touching a channel runs with the channel lock held and
// inside a single cache wrap, so that the read, mutate, sign, persist and
// send sequence is never interleaved with another operation on the same
// channel, and a failure leaves the store unchanged.
type Controller struct {
	db        simplex.CacheableKVStore
	signer    crypto.Signer
	ledger    Ledger
	transport Transport
	conf      Configuration

	channels  paychan.ChannelBucket
	payments  payment.PaymentBucket
	hashlocks hashlock.Bucket

	locks     *lockSet
	withdraws *futures
}

// NewController returns a controller operating on given store.
func NewController(db simplex.CacheableKVStore, signer crypto.Signer, ledger Ledger, transport Transport, conf Configuration) *Controller {
	return &Controller{
		db:        db,
		signer:    signer,
		ledger:    ledger,
		transport: transport,
		conf:      conf,
		channels:  paychan.NewChannelBucket(),
		payments:  payment.NewPaymentBucket(),
		hashlocks: hashlock.NewBucket(),
		locks:     newLockSet(),
		withdraws: newFutures(),
	}
}

// outbox collects messages that are sent once the store changes are
// written.
type outbox []*simplex.CelerMsg

func (o *outbox) add(t simplex.MsgType, payload proto.Message) error {
	msg, err := simplex.NewMsg(t, payload)
	if err != nil {
		return err
	}
	*o = append(*o, msg)
	return nil
}

// withLock runs fn holding the lock of given key, inside a cache wrap that
// is written only if fn succeeds. Collected messages are sent after the
// write, still holding the lock.
func (c *Controller) withLock(ctx context.Context, key []byte, fn func(db simplex.KVStore, out *outbox) error) error {
	unlock := c.locks.lock(key)
	defer unlock()

	db := c.db.CacheWrap()
	var out outbox
	if err := fn(db, &out); err != nil {
		db.Discard()
		return err
	}
	if err := db.Write(); err != nil {
		return errors.Wrap(err, "write")
	}
	for _, msg := range out {
		if err := c.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) send(ctx context.Context, msg *simplex.CelerMsg) error {
	if err := c.transport.Send(ctx, msg); err != nil {
		if errors.ErrTransport.Is(err) {
			return err
		}
		return errors.Wrapf(errors.ErrTransport, "send %s: %s", msg.Type, err)
	}
	return nil
}

func ledgerErr(err error, action string) error {
	if errors.ErrLedger.Is(err) || errors.ErrNotFound.Is(err) {
		return errors.Wrap(err, action)
	}
	return errors.Wrapf(errors.ErrLedger, "%s: %s", action, err)
}

func hexID(id []byte) string {
	return hex.EncodeToString(id)
}

// lockSet is a set of named mutexes, created on first use and released
// when nobody holds or waits for them.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*refLock)}
}

func (l *lockSet) lock(key []byte) (unlock func()) {
	name := string(key)
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &refLock{}
		l.locks[name] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, name)
		}
		l.mu.Unlock()
	}
}

// size returns the number of locks in use.
func (l *lockSet) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// futures holds the cooperative withdraw requests waiting for a response,
// at most one per channel.
type futures struct {
	mu      sync.Mutex
	pending map[string]chan *CooperativeWithdrawResponse
}

func newFutures() *futures {
	return &futures{pending: make(map[string]chan *CooperativeWithdrawResponse)}
}

func (f *futures) add(channelID []byte) (<-chan *CooperativeWithdrawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pending[string(channelID)]; ok {
		return nil, errors.Wrap(errors.ErrDuplicate, "withdraw already in progress")
	}
	ch := make(chan *CooperativeWithdrawResponse, 1)
	f.pending[string(channelID)] = ch
	return ch, nil
}

func (f *futures) remove(channelID []byte) {
	f.mu.Lock()
	delete(f.pending, string(channelID))
	f.mu.Unlock()
}

// resolve delivers the response to the waiting request. It returns false
// if nobody is waiting.
func (f *futures) resolve(channelID []byte, resp *CooperativeWithdrawResponse) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.pending[string(channelID)]
	if !ok {
		return false
	}
	delete(f.pending, string(channelID))
	ch <- resp
	return true
}
