package protocol

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
)

type AuthReq struct {
	MyAddr          []byte `protobuf:"bytes,1,opt,name=my_addr,json=myAddr,proto3" json:"my_addr,omitempty"`
	Timestamp       uint64 `protobuf:"varint,2,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	MySig           []byte `protobuf:"bytes,3,opt,name=my_sig,json=mySig,proto3" json:"my_sig,omitempty"`
	ProtocolVersion uint64 `protobuf:"varint,4,opt,name=protocol_version,json=protocolVersion,proto3" json:"protocol_version,omitempty"`
}

func (m *AuthReq) Reset()         { *m = AuthReq{} }
func (m *AuthReq) String() string { return proto.CompactTextString(m) }
func (*AuthReq) ProtoMessage()    {}

// ChannelSummary is the peer view of a channel. States are named from the
// local party point of view.
type ChannelSummary struct {
	ChannelId       []byte                      `protobuf:"bytes,1,opt,name=channel_id,json=channelId,proto3" json:"channel_id,omitempty"`
	LedgerAddress   []byte                      `protobuf:"bytes,2,opt,name=ledger_address,json=ledgerAddress,proto3" json:"ledger_address,omitempty"`
	Token           *paychan.TokenInfo          `protobuf:"bytes,3,opt,name=token" json:"token,omitempty"`
	PeerToSelfState *paychan.SignedSimplexState `protobuf:"bytes,4,opt,name=peer_to_self_state,json=peerToSelfState" json:"peer_to_self_state,omitempty"`
	SelfToPeerState *paychan.SignedSimplexState `protobuf:"bytes,5,opt,name=self_to_peer_state,json=selfToPeerState" json:"self_to_peer_state,omitempty"`
}

func (m *ChannelSummary) Reset()         { *m = ChannelSummary{} }
func (m *ChannelSummary) String() string { return proto.CompactTextString(m) }
func (*ChannelSummary) ProtoMessage()    {}

type PaymentSummary struct {
	PayId            []byte           `protobuf:"bytes,1,opt,name=pay_id,json=payId,proto3" json:"pay_id,omitempty"`
	Pay              []byte           `protobuf:"bytes,2,opt,name=pay,proto3" json:"pay,omitempty"`
	Note             []byte           `protobuf:"bytes,3,opt,name=note,proto3" json:"note,omitempty"`
	InChannelId      []byte           `protobuf:"bytes,4,opt,name=in_channel_id,json=inChannelId,proto3" json:"in_channel_id,omitempty"`
	OutChannelId     []byte           `protobuf:"bytes,5,opt,name=out_channel_id,json=outChannelId,proto3" json:"out_channel_id,omitempty"`
	State            payment.PayState `protobuf:"varint,6,opt,name=state,proto3" json:"state,omitempty"`
	SettlementAmount []byte           `protobuf:"bytes,7,opt,name=settlement_amount,json=settlementAmount,proto3" json:"settlement_amount,omitempty"`
}

func (m *PaymentSummary) Reset()         { *m = PaymentSummary{} }
func (m *PaymentSummary) String() string { return proto.CompactTextString(m) }
func (*PaymentSummary) ProtoMessage()    {}

type AuthAck struct {
	Timestamp uint64            `protobuf:"varint,1,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	Channels  []*ChannelSummary `protobuf:"bytes,2,rep,name=channels" json:"channels,omitempty"`
	Payments  []*PaymentSummary `protobuf:"bytes,3,rep,name=payments" json:"payments,omitempty"`
}

func (m *AuthAck) Reset()         { *m = AuthAck{} }
func (m *AuthAck) String() string { return proto.CompactTextString(m) }
func (*AuthAck) ProtoMessage()    {}

type CondPayRequest struct {
	CondPay              []byte                      `protobuf:"bytes,1,opt,name=cond_pay,json=condPay,proto3" json:"cond_pay,omitempty"`
	StateOnlyPeerFromSig *paychan.SignedSimplexState `protobuf:"bytes,2,opt,name=state_only_peer_from_sig,json=stateOnlyPeerFromSig" json:"state_only_peer_from_sig,omitempty"`
	BaseSeq              uint64                      `protobuf:"varint,3,opt,name=base_seq,json=baseSeq,proto3" json:"base_seq,omitempty"`
	Note                 []byte                      `protobuf:"bytes,4,opt,name=note,proto3" json:"note,omitempty"`
}

func (m *CondPayRequest) Reset()         { *m = CondPayRequest{} }
func (m *CondPayRequest) String() string { return proto.CompactTextString(m) }
func (*CondPayRequest) ProtoMessage()    {}

type CondPayResponse struct {
	StateCosigned *paychan.SignedSimplexState `protobuf:"bytes,1,opt,name=state_cosigned,json=stateCosigned" json:"state_cosigned,omitempty"`
	Error         *paychan.Error              `protobuf:"bytes,2,opt,name=error" json:"error,omitempty"`
}

func (m *CondPayResponse) Reset()         { *m = CondPayResponse{} }
func (m *CondPayResponse) String() string { return proto.CompactTextString(m) }
func (*CondPayResponse) ProtoMessage()    {}

type CondPayReceipt struct {
	PayId      []byte `protobuf:"bytes,1,opt,name=pay_id,json=payId,proto3" json:"pay_id,omitempty"`
	PayDestSig []byte `protobuf:"bytes,2,opt,name=pay_dest_sig,json=payDestSig,proto3" json:"pay_dest_sig,omitempty"`
}

func (m *CondPayReceipt) Reset()         { *m = CondPayReceipt{} }
func (m *CondPayReceipt) String() string { return proto.CompactTextString(m) }
func (*CondPayReceipt) ProtoMessage()    {}

type RevealSecret struct {
	PayId  []byte `protobuf:"bytes,1,opt,name=pay_id,json=payId,proto3" json:"pay_id,omitempty"`
	Secret []byte `protobuf:"bytes,2,opt,name=secret,proto3" json:"secret,omitempty"`
}

func (m *RevealSecret) Reset()         { *m = RevealSecret{} }
func (m *RevealSecret) String() string { return proto.CompactTextString(m) }
func (*RevealSecret) ProtoMessage()    {}

type RevealSecretAck struct {
	PayId            []byte `protobuf:"bytes,1,opt,name=pay_id,json=payId,proto3" json:"pay_id,omitempty"`
	PayDestSecretSig []byte `protobuf:"bytes,2,opt,name=pay_dest_secret_sig,json=payDestSecretSig,proto3" json:"pay_dest_secret_sig,omitempty"`
}

func (m *RevealSecretAck) Reset()         { *m = RevealSecretAck{} }
func (m *RevealSecretAck) String() string { return proto.CompactTextString(m) }
func (*RevealSecretAck) ProtoMessage()    {}

type SettledPayment struct {
	SettledPayId []byte                      `protobuf:"bytes,1,opt,name=settled_pay_id,json=settledPayId,proto3" json:"settled_pay_id,omitempty"`
	Reason       payment.PaymentSettleReason `protobuf:"varint,2,opt,name=reason,proto3" json:"reason,omitempty"`
	Amount       []byte                      `protobuf:"bytes,3,opt,name=amount,proto3" json:"amount,omitempty"`
}

func (m *SettledPayment) Reset()         { *m = SettledPayment{} }
func (m *SettledPayment) String() string { return proto.CompactTextString(m) }
func (*SettledPayment) ProtoMessage()    {}

type PaymentSettleRequest struct {
	SettledPays          []*SettledPayment           `protobuf:"bytes,1,rep,name=settled_pays,json=settledPays" json:"settled_pays,omitempty"`
	StateOnlyPeerFromSig *paychan.SignedSimplexState `protobuf:"bytes,2,opt,name=state_only_peer_from_sig,json=stateOnlyPeerFromSig" json:"state_only_peer_from_sig,omitempty"`
	BaseSeq              uint64                      `protobuf:"varint,3,opt,name=base_seq,json=baseSeq,proto3" json:"base_seq,omitempty"`
}

func (m *PaymentSettleRequest) Reset()         { *m = PaymentSettleRequest{} }
func (m *PaymentSettleRequest) String() string { return proto.CompactTextString(m) }
func (*PaymentSettleRequest) ProtoMessage()    {}

type PaymentSettleResponse struct {
	StateCosigned *paychan.SignedSimplexState `protobuf:"bytes,1,opt,name=state_cosigned,json=stateCosigned" json:"state_cosigned,omitempty"`
	Error         *paychan.Error              `protobuf:"bytes,2,opt,name=error" json:"error,omitempty"`
}

func (m *PaymentSettleResponse) Reset()         { *m = PaymentSettleResponse{} }
func (m *PaymentSettleResponse) String() string { return proto.CompactTextString(m) }
func (*PaymentSettleResponse) ProtoMessage()    {}

type PaymentSettleProof struct {
	SettledPays []*SettledPayment `protobuf:"bytes,1,rep,name=settled_pays,json=settledPays" json:"settled_pays,omitempty"`
}

func (m *PaymentSettleProof) Reset()         { *m = PaymentSettleProof{} }
func (m *PaymentSettleProof) String() string { return proto.CompactTextString(m) }
func (*PaymentSettleProof) ProtoMessage()    {}

type CooperativeWithdrawInfo struct {
	ChannelId        []byte                  `protobuf:"bytes,1,opt,name=channel_id,json=channelId,proto3" json:"channel_id,omitempty"`
	SeqNum           uint64                  `protobuf:"varint,2,opt,name=seq_num,json=seqNum,proto3" json:"seq_num,omitempty"`
	Withdraw         *paychan.AccountAmtPair `protobuf:"bytes,3,opt,name=withdraw" json:"withdraw,omitempty"`
	WithdrawDeadline uint64                  `protobuf:"varint,4,opt,name=withdraw_deadline,json=withdrawDeadline,proto3" json:"withdraw_deadline,omitempty"`
}

func (m *CooperativeWithdrawInfo) Reset()         { *m = CooperativeWithdrawInfo{} }
func (m *CooperativeWithdrawInfo) String() string { return proto.CompactTextString(m) }
func (*CooperativeWithdrawInfo) ProtoMessage()    {}

type CooperativeWithdrawRequest struct {
	WithdrawInfo []byte `protobuf:"bytes,1,opt,name=withdraw_info,json=withdrawInfo,proto3" json:"withdraw_info,omitempty"`
	RequesterSig []byte `protobuf:"bytes,2,opt,name=requester_sig,json=requesterSig,proto3" json:"requester_sig,omitempty"`
}

func (m *CooperativeWithdrawRequest) Reset()         { *m = CooperativeWithdrawRequest{} }
func (m *CooperativeWithdrawRequest) String() string { return proto.CompactTextString(m) }
func (*CooperativeWithdrawRequest) ProtoMessage()    {}

type CooperativeWithdrawResponse struct {
	WithdrawInfo []byte         `protobuf:"bytes,1,opt,name=withdraw_info,json=withdrawInfo,proto3" json:"withdraw_info,omitempty"`
	RequesterSig []byte         `protobuf:"bytes,2,opt,name=requester_sig,json=requesterSig,proto3" json:"requester_sig,omitempty"`
	ApproverSig  []byte         `protobuf:"bytes,3,opt,name=approver_sig,json=approverSig,proto3" json:"approver_sig,omitempty"`
	Error        *paychan.Error `protobuf:"bytes,4,opt,name=error" json:"error,omitempty"`
}

func (m *CooperativeWithdrawResponse) Reset()         { *m = CooperativeWithdrawResponse{} }
func (m *CooperativeWithdrawResponse) String() string { return proto.CompactTextString(m) }
func (*CooperativeWithdrawResponse) ProtoMessage()    {}

type OpenChannelRequest struct {
	ChannelInitializer []byte `protobuf:"bytes,1,opt,name=channel_initializer,json=channelInitializer,proto3" json:"channel_initializer,omitempty"`
	RequesterSig       []byte `protobuf:"bytes,2,opt,name=requester_sig,json=requesterSig,proto3" json:"requester_sig,omitempty"`
}

func (m *OpenChannelRequest) Reset()         { *m = OpenChannelRequest{} }
func (m *OpenChannelRequest) String() string { return proto.CompactTextString(m) }
func (*OpenChannelRequest) ProtoMessage()    {}

type OpenChannelResponse struct {
	ChannelInitializer []byte `protobuf:"bytes,1,opt,name=channel_initializer,json=channelInitializer,proto3" json:"channel_initializer,omitempty"`
	RequesterSig       []byte `protobuf:"bytes,2,opt,name=requester_sig,json=requesterSig,proto3" json:"requester_sig,omitempty"`
	ApproverSig        []byte `protobuf:"bytes,3,opt,name=approver_sig,json=approverSig,proto3" json:"approver_sig,omitempty"`
}

func (m *OpenChannelResponse) Reset()         { *m = OpenChannelResponse{} }
func (m *OpenChannelResponse) String() string { return proto.CompactTextString(m) }
func (*OpenChannelResponse) ProtoMessage()    {}

type ErrorMsg struct {
	Reason string `protobuf:"bytes,1,opt,name=reason,proto3" json:"reason,omitempty"`
	Seq    uint64 `protobuf:"varint,2,opt,name=seq,proto3" json:"seq,omitempty"`
}

func (m *ErrorMsg) Reset()         { *m = ErrorMsg{} }
func (m *ErrorMsg) String() string { return proto.CompactTextString(m) }
func (*ErrorMsg) ProtoMessage()    {}
