package simplex

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/errors"
)

// MsgType tags the payload carried by a CelerMsg envelope.
type MsgType int32

const (
	MsgUnknown MsgType = iota
	MsgAuthReq
	MsgAuthAck
	MsgCondPayRequest
	MsgCondPayResponse
	MsgCondPayReceipt
	MsgRevealSecret
	MsgRevealSecretAck
	MsgPaymentSettleRequest
	MsgPaymentSettleResponse
	MsgPaymentSettleProof
	MsgCooperativeWithdrawRequest
	MsgCooperativeWithdrawResponse
	MsgError
)

var msgTypeNames = map[MsgType]string{
	MsgUnknown:                     "unknown",
	MsgAuthReq:                     "auth_req",
	MsgAuthAck:                     "auth_ack",
	MsgCondPayRequest:              "cond_pay_request",
	MsgCondPayResponse:             "cond_pay_response",
	MsgCondPayReceipt:              "cond_pay_receipt",
	MsgRevealSecret:                "reveal_secret",
	MsgRevealSecretAck:             "reveal_secret_ack",
	MsgPaymentSettleRequest:        "payment_settle_request",
	MsgPaymentSettleResponse:       "payment_settle_response",
	MsgPaymentSettleProof:          "payment_settle_proof",
	MsgCooperativeWithdrawRequest:  "cooperative_withdraw_request",
	MsgCooperativeWithdrawResponse: "cooperative_withdraw_response",
	MsgError:                       "error",
}

// MsgTypes returns all message kinds that can arrive in an envelope. A
// dispatcher must have a handler registered for each of them.
func MsgTypes() []MsgType {
	return []MsgType{
		MsgAuthReq,
		MsgAuthAck,
		MsgCondPayRequest,
		MsgCondPayResponse,
		MsgCondPayReceipt,
		MsgRevealSecret,
		MsgRevealSecretAck,
		MsgPaymentSettleRequest,
		MsgPaymentSettleResponse,
		MsgPaymentSettleProof,
		MsgCooperativeWithdrawRequest,
		MsgCooperativeWithdrawResponse,
		MsgError,
	}
}

func (t MsgType) String() string {
	if n, ok := msgTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("msg_type_%d", int32(t))
}

// CelerMsg is the envelope of every protocol message exchanged with the
// peer. Payload is the independently serialized message of the given Type.
type CelerMsg struct {
	Type    MsgType `protobuf:"varint,1,opt,name=type,proto3" json:"type,omitempty"`
	Payload []byte  `protobuf:"bytes,2,opt,name=payload,proto3" json:"payload,omitempty"`
}

func (m *CelerMsg) Reset()         { *m = CelerMsg{} }
func (m *CelerMsg) String() string { return proto.CompactTextString(m) }
func (*CelerMsg) ProtoMessage()    {}

// NewMsg serializes given payload and wraps it into an envelope.
func NewMsg(t MsgType, payload proto.Message) (*CelerMsg, error) {
	raw, err := proto.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrMsg, "marshal %s: %s", t, err)
	}
	return &CelerMsg{Type: t, Payload: raw}, nil
}

// Load deserializes the envelope payload into dest.
func (m *CelerMsg) Load(dest proto.Message) error {
	if err := proto.Unmarshal(m.Payload, dest); err != nil {
		return errors.Wrapf(errors.ErrMsg, "unmarshal %s: %s", m.Type, err)
	}
	if v, ok := dest.(validater); ok {
		if err := v.Validate(); err != nil {
			return errors.Wrapf(err, "invalid %s", m.Type)
		}
	}
	return nil
}

type validater interface {
	Validate() error
}
