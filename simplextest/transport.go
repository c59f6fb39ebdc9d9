package simplextest

import (
	"context"
	"sync"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/protocol"
)

// Transport delivers messages of the node to a scripted peer and the
// answers of the peer to a sink, usually a dispatcher. Every sent message
// is recorded.
type Transport struct {
	mu   sync.Mutex
	peer *Peer
	sink func(*simplex.CelerMsg)
	sent []*simplex.CelerMsg

	// Err is returned by Send when set. The message is still recorded.
	Err error
}

var _ protocol.Transport = (*Transport)(nil)

// NewTransport returns a transport connected to given peer. Peer can be nil
// to only record messages.
func NewTransport(peer *Peer) *Transport {
	return &Transport{peer: peer}
}

// Connect sets the destination of the peer answers. The sink must not
// block on handling the message.
func (t *Transport) Connect(sink func(*simplex.CelerMsg)) {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
}

func (t *Transport) Send(ctx context.Context, msg *simplex.CelerMsg) error {
	t.mu.Lock()
	t.sent = append(t.sent, msg)
	peer, sink, failure := t.peer, t.sink, t.Err
	t.mu.Unlock()

	if failure != nil {
		return failure
	}
	if peer == nil {
		return nil
	}
	replies, err := peer.Respond(msg)
	if err != nil {
		return errors.Wrap(errors.ErrTransport, err.Error())
	}
	if sink != nil {
		for _, r := range replies {
			sink(r)
		}
	}
	return nil
}

func (t *Transport) OpenChannel(ctx context.Context, req *protocol.OpenChannelRequest) (*protocol.OpenChannelResponse, error) {
	if t.peer == nil {
		return nil, errors.Wrap(errors.ErrTransport, "no peer")
	}
	return t.peer.ApproveOpen(req)
}

// Sent returns all recorded messages of given type, in sending order.
func (t *Transport) Sent(mt simplex.MsgType) []*simplex.CelerMsg {
	t.mu.Lock()
	defer t.mu.Unlock()
	var res []*simplex.CelerMsg
	for _, m := range t.sent {
		if m.Type == mt {
			res = append(res, m)
		}
	}
	return res
}

// Last returns the payload of the last recorded message of given type
// loaded into dest. It fails with ErrNotFound if there is none.
func (t *Transport) Last(mt simplex.MsgType, dest proto.Message) error {
	msgs := t.Sent(mt)
	if len(msgs) == 0 {
		return errors.Wrapf(errors.ErrNotFound, "no %s sent", mt)
	}
	return msgs[len(msgs)-1].Load(dest)
}
