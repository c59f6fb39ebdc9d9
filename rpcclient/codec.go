package rpcclient

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/errors"
)

// codec serializes gRPC payloads with gogo protobuf, which the message
// types of this repository are written for.
type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, errors.WithType(errors.ErrType, v)
	}
	return proto.Marshal(m)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(proto.Message)
	if !ok {
		return errors.WithType(errors.ErrType, v)
	}
	return proto.Unmarshal(data, m)
}

func (codec) Name() string {
	return "proto"
}

// String is required by servers registering the codec with
// grpc.CustomCodec.
func (codec) String() string {
	return "proto"
}

// Empty is the response of calls returning nothing.
type Empty struct{}

func (m *Empty) Reset()         { *m = Empty{} }
func (m *Empty) String() string { return proto.CompactTextString(m) }
func (*Empty) ProtoMessage()    {}
