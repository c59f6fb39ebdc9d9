package rpcclient

import (
	"context"
	"io"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/protocol"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Client is the connection of a node to its service node.
type Client struct {
	conn *grpc.ClientConn
}

var _ protocol.Transport = (*Client)(nil)

// Dial connects to the service node at target. Options are passed to
// grpc, a transport security option must be among them.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{}))}, opts...)
	conn, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransport, "dial %s: %s", target, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an existing connection. The connection must force the
// gogo protobuf codec, as Dial does.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close terminates the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// CreateSession authenticates the node and returns the state of its
// channels as known by the service node.
func (c *Client) CreateSession(ctx context.Context, req *protocol.AuthReq) (*protocol.AuthAck, error) {
	var ack protocol.AuthAck
	if err := c.conn.Invoke(ctx, method("CreateSession"), req, &ack); err != nil {
		return nil, transportErr(err, "create session")
	}
	return &ack, nil
}

// Send delivers a protocol message to the service node.
func (c *Client) Send(ctx context.Context, msg *simplex.CelerMsg) error {
	if err := c.conn.Invoke(ctx, method("Send"), msg, &Empty{}); err != nil {
		return transportErr(err, "send "+msg.Type.String())
	}
	return nil
}

// OpenChannel asks the service node to cosign a channel initializer.
func (c *Client) OpenChannel(ctx context.Context, req *protocol.OpenChannelRequest) (*protocol.OpenChannelResponse, error) {
	var resp protocol.OpenChannelResponse
	if err := c.conn.Invoke(ctx, method("RequestOpenChannel"), req, &resp); err != nil {
		return nil, transportErr(err, "open channel")
	}
	return &resp, nil
}

// Subscribe passes every message streamed by the service node to sink, in
// order, until the stream ends or the context is cancelled. A stream closed
// by the server returns nil.
func (c *Client) Subscribe(ctx context.Context, req *protocol.AuthReq, sink func(*simplex.CelerMsg)) error {
	stream, err := c.conn.NewStream(ctx, subscribeDesc, method("Subscribe"))
	if err != nil {
		return transportErr(err, "subscribe")
	}
	if err := stream.SendMsg(req); err != nil {
		return transportErr(err, "subscribe")
	}
	if err := stream.CloseSend(); err != nil {
		return transportErr(err, "subscribe")
	}
	for {
		msg := new(simplex.CelerMsg)
		switch err := stream.RecvMsg(msg); {
		case err == io.EOF:
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return errors.Wrap(errors.ErrTimeout, ctx.Err().Error())
			}
			return transportErr(err, "receive")
		}
		sink(msg)
	}
}

// Run establishes a session and streams inbound messages to sink until the
// context is cancelled. The session snapshot is delivered first, as an
// AuthAck message.
func (c *Client) Run(ctx context.Context, auth *protocol.AuthReq, sink func(*simplex.CelerMsg)) error {
	ack, err := c.CreateSession(ctx, auth)
	if err != nil {
		return err
	}
	msg, err := simplex.NewMsg(simplex.MsgAuthAck, ack)
	if err != nil {
		return err
	}
	sink(msg)
	return c.Subscribe(ctx, auth, sink)
}

func transportErr(err error, action string) error {
	if s, ok := status.FromError(err); ok {
		return errors.Wrapf(errors.ErrTransport, "%s: %s: %s", action, s.Code(), s.Message())
	}
	return errors.Wrapf(errors.ErrTransport, "%s: %s", action, err)
}
