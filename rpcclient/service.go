package rpcclient

import (
	"context"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/x/protocol"
	"google.golang.org/grpc"
)

const serviceName = "rpc.Rpc"

// RpcServer is the service run by the service node. It is implemented by
// test servers only, a node is always the client.
type RpcServer interface {
	CreateSession(context.Context, *protocol.AuthReq) (*protocol.AuthAck, error)
	Send(context.Context, *simplex.CelerMsg) (*Empty, error)
	RequestOpenChannel(context.Context, *protocol.OpenChannelRequest) (*protocol.OpenChannelResponse, error)
	Subscribe(*protocol.AuthReq, Rpc_SubscribeServer) error
}

// Rpc_SubscribeServer is the server side of the subscription stream.
type Rpc_SubscribeServer interface {
	Send(*simplex.CelerMsg) error
	grpc.ServerStream
}

// ServerCodec returns the server option required to serve RpcServer.
func ServerCodec() grpc.ServerOption {
	return grpc.CustomCodec(codec{})
}

// RegisterRpcServer registers the service implementation with given
// server.
func RegisterRpcServer(s *grpc.Server, srv RpcServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RpcServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: createSessionHandler},
		{MethodName: "Send", Handler: sendHandler},
		{MethodName: "RequestOpenChannel", Handler: requestOpenChannelHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
}

var subscribeDesc = &serviceDesc.Streams[0]

func method(name string) string {
	return "/" + serviceName + "/" + name
}

func createSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(protocol.AuthReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RpcServer).CreateSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method("CreateSession")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RpcServer).CreateSession(ctx, req.(*protocol.AuthReq))
	}
	return interceptor(ctx, in, info, handler)
}

func sendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(simplex.CelerMsg)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RpcServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method("Send")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RpcServer).Send(ctx, req.(*simplex.CelerMsg))
	}
	return interceptor(ctx, in, info, handler)
}

func requestOpenChannelHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(protocol.OpenChannelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RpcServer).RequestOpenChannel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method("RequestOpenChannel")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RpcServer).RequestOpenChannel(ctx, req.(*protocol.OpenChannelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(protocol.AuthReq)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RpcServer).Subscribe(in, &subscribeServer{stream})
}

type subscribeServer struct {
	grpc.ServerStream
}

func (s *subscribeServer) Send(m *simplex.CelerMsg) error {
	return s.ServerStream.SendMsg(m)
}
