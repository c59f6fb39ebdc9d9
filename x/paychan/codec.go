package paychan

import (
	"github.com/gogo/protobuf/proto"
)

// Wire types below are serialized with protobuf. Signatures are always
// created over the serialized bytes, never over a re-encoded value.

type TokenType int32

const (
	TokenType_INVALID TokenType = 0
	TokenType_ETH     TokenType = 1
	TokenType_ERC20   TokenType = 2
)

var TokenType_name = map[TokenType]string{
	TokenType_INVALID: "INVALID",
	TokenType_ETH:     "ETH",
	TokenType_ERC20:   "ERC20",
}

func (t TokenType) String() string {
	if n, ok := TokenType_name[t]; ok {
		return n
	}
	return "UNKNOWN"
}

type TokenInfo struct {
	TokenType    TokenType `protobuf:"varint,1,opt,name=token_type,json=tokenType,proto3" json:"token_type,omitempty"`
	TokenAddress []byte    `protobuf:"bytes,2,opt,name=token_address,json=tokenAddress,proto3" json:"token_address,omitempty"`
}

func (m *TokenInfo) Reset()         { *m = TokenInfo{} }
func (m *TokenInfo) String() string { return proto.CompactTextString(m) }
func (*TokenInfo) ProtoMessage()    {}

func (m *TokenInfo) GetTokenType() TokenType {
	if m != nil {
		return m.TokenType
	}
	return TokenType_INVALID
}

func (m *TokenInfo) GetTokenAddress() []byte {
	if m != nil {
		return m.TokenAddress
	}
	return nil
}

type AccountAmtPair struct {
	Account []byte `protobuf:"bytes,1,opt,name=account,proto3" json:"account,omitempty"`
	// Amt is a big endian encoded unsigned integer.
	Amt []byte `protobuf:"bytes,2,opt,name=amt,proto3" json:"amt,omitempty"`
}

func (m *AccountAmtPair) Reset()         { *m = AccountAmtPair{} }
func (m *AccountAmtPair) String() string { return proto.CompactTextString(m) }
func (*AccountAmtPair) ProtoMessage()    {}

func (m *AccountAmtPair) GetAccount() []byte {
	if m != nil {
		return m.Account
	}
	return nil
}

func (m *AccountAmtPair) GetAmt() []byte {
	if m != nil {
		return m.Amt
	}
	return nil
}

type TokenTransfer struct {
	Token    *TokenInfo      `protobuf:"bytes,1,opt,name=token,proto3" json:"token,omitempty"`
	Receiver *AccountAmtPair `protobuf:"bytes,2,opt,name=receiver,proto3" json:"receiver,omitempty"`
}

func (m *TokenTransfer) Reset()         { *m = TokenTransfer{} }
func (m *TokenTransfer) String() string { return proto.CompactTextString(m) }
func (*TokenTransfer) ProtoMessage()    {}

func (m *TokenTransfer) GetToken() *TokenInfo {
	if m != nil {
		return m.Token
	}
	return nil
}

func (m *TokenTransfer) GetReceiver() *AccountAmtPair {
	if m != nil {
		return m.Receiver
	}
	return nil
}

type PayIdList struct {
	PayIds       [][]byte `protobuf:"bytes,1,rep,name=pay_ids,json=payIds,proto3" json:"pay_ids,omitempty"`
	NextListHash []byte   `protobuf:"bytes,2,opt,name=next_list_hash,json=nextListHash,proto3" json:"next_list_hash,omitempty"`
}

func (m *PayIdList) Reset()         { *m = PayIdList{} }
func (m *PayIdList) String() string { return proto.CompactTextString(m) }
func (*PayIdList) ProtoMessage()    {}

func (m *PayIdList) GetPayIds() [][]byte {
	if m != nil {
		return m.PayIds
	}
	return nil
}

type SimplexPaymentChannel struct {
	ChannelId              []byte         `protobuf:"bytes,1,opt,name=channel_id,json=channelId,proto3" json:"channel_id,omitempty"`
	PeerFrom               []byte         `protobuf:"bytes,2,opt,name=peer_from,json=peerFrom,proto3" json:"peer_from,omitempty"`
	SeqNum                 uint64         `protobuf:"varint,3,opt,name=seq_num,json=seqNum,proto3" json:"seq_num,omitempty"`
	TransferToPeer         *TokenTransfer `protobuf:"bytes,4,opt,name=transfer_to_peer,json=transferToPeer,proto3" json:"transfer_to_peer,omitempty"`
	PendingPayIds          *PayIdList     `protobuf:"bytes,5,opt,name=pending_pay_ids,json=pendingPayIds,proto3" json:"pending_pay_ids,omitempty"`
	LastPayResolveDeadline uint64         `protobuf:"varint,6,opt,name=last_pay_resolve_deadline,json=lastPayResolveDeadline,proto3" json:"last_pay_resolve_deadline,omitempty"`
	TotalPendingAmount     *TokenTransfer `protobuf:"bytes,7,opt,name=total_pending_amount,json=totalPendingAmount,proto3" json:"total_pending_amount,omitempty"`
}

func (m *SimplexPaymentChannel) Reset()         { *m = SimplexPaymentChannel{} }
func (m *SimplexPaymentChannel) String() string { return proto.CompactTextString(m) }
func (*SimplexPaymentChannel) ProtoMessage()    {}

func (m *SimplexPaymentChannel) GetSeqNum() uint64 {
	if m != nil {
		return m.SeqNum
	}
	return 0
}

func (m *SimplexPaymentChannel) GetTransferToPeer() *TokenTransfer {
	if m != nil {
		return m.TransferToPeer
	}
	return nil
}

func (m *SimplexPaymentChannel) GetPendingPayIds() *PayIdList {
	if m != nil {
		return m.PendingPayIds
	}
	return nil
}

func (m *SimplexPaymentChannel) GetTotalPendingAmount() *TokenTransfer {
	if m != nil {
		return m.TotalPendingAmount
	}
	return nil
}

type SignedSimplexState struct {
	SimplexState  []byte `protobuf:"bytes,1,opt,name=simplex_state,json=simplexState,proto3" json:"simplex_state,omitempty"`
	SigOfPeerFrom []byte `protobuf:"bytes,2,opt,name=sig_of_peer_from,json=sigOfPeerFrom,proto3" json:"sig_of_peer_from,omitempty"`
	SigOfPeerTo   []byte `protobuf:"bytes,3,opt,name=sig_of_peer_to,json=sigOfPeerTo,proto3" json:"sig_of_peer_to,omitempty"`
}

func (m *SignedSimplexState) Reset()         { *m = SignedSimplexState{} }
func (m *SignedSimplexState) String() string { return proto.CompactTextString(m) }
func (*SignedSimplexState) ProtoMessage()    {}

func (m *SignedSimplexState) GetSimplexState() []byte {
	if m != nil {
		return m.SimplexState
	}
	return nil
}

func (m *SignedSimplexState) GetSigOfPeerFrom() []byte {
	if m != nil {
		return m.SigOfPeerFrom
	}
	return nil
}

func (m *SignedSimplexState) GetSigOfPeerTo() []byte {
	if m != nil {
		return m.SigOfPeerTo
	}
	return nil
}

type TokenDistribution struct {
	Token        *TokenInfo        `protobuf:"bytes,1,opt,name=token,proto3" json:"token,omitempty"`
	Distribution []*AccountAmtPair `protobuf:"bytes,2,rep,name=distribution,proto3" json:"distribution,omitempty"`
}

func (m *TokenDistribution) Reset()         { *m = TokenDistribution{} }
func (m *TokenDistribution) String() string { return proto.CompactTextString(m) }
func (*TokenDistribution) ProtoMessage()    {}

func (m *TokenDistribution) GetToken() *TokenInfo {
	if m != nil {
		return m.Token
	}
	return nil
}

func (m *TokenDistribution) GetDistribution() []*AccountAmtPair {
	if m != nil {
		return m.Distribution
	}
	return nil
}

type PaymentChannelInitializer struct {
	InitDistribution *TokenDistribution `protobuf:"bytes,1,opt,name=init_distribution,json=initDistribution,proto3" json:"init_distribution,omitempty"`
	OpenDeadline     uint64             `protobuf:"varint,2,opt,name=open_deadline,json=openDeadline,proto3" json:"open_deadline,omitempty"`
	DisputeTimeout   uint64             `protobuf:"varint,3,opt,name=dispute_timeout,json=disputeTimeout,proto3" json:"dispute_timeout,omitempty"`
	MsgValueReceiver uint64             `protobuf:"varint,4,opt,name=msg_value_receiver,json=msgValueReceiver,proto3" json:"msg_value_receiver,omitempty"`
}

func (m *PaymentChannelInitializer) Reset()         { *m = PaymentChannelInitializer{} }
func (m *PaymentChannelInitializer) String() string { return proto.CompactTextString(m) }
func (*PaymentChannelInitializer) ProtoMessage()    {}

func (m *PaymentChannelInitializer) GetInitDistribution() *TokenDistribution {
	if m != nil {
		return m.InitDistribution
	}
	return nil
}

func (m *PaymentChannelInitializer) GetOpenDeadline() uint64 {
	if m != nil {
		return m.OpenDeadline
	}
	return 0
}

func (m *PaymentChannelInitializer) GetMsgValueReceiver() uint64 {
	if m != nil {
		return m.MsgValueReceiver
	}
	return 0
}

type ErrCode int32

const (
	ErrCode_OK              ErrCode = 0
	ErrCode_INVALID_SIG     ErrCode = 1
	ErrCode_WRONG_PEER      ErrCode = 2
	ErrCode_INVALID_SEQ_NUM ErrCode = 3
)

var ErrCode_name = map[ErrCode]string{
	ErrCode_OK:              "OK",
	ErrCode_INVALID_SIG:     "INVALID_SIG",
	ErrCode_WRONG_PEER:      "WRONG_PEER",
	ErrCode_INVALID_SEQ_NUM: "INVALID_SEQ_NUM",
}

func (c ErrCode) String() string {
	if n, ok := ErrCode_name[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// Error is carried by responses to report why a proposed state was not
// accepted. Either Code or Reason is set.
type Error struct {
	Code   ErrCode `protobuf:"varint,1,opt,name=code,proto3" json:"code,omitempty"`
	Reason string  `protobuf:"bytes,2,opt,name=reason,proto3" json:"reason,omitempty"`
	// Seq is the proposed sequence number that was rejected.
	Seq uint64 `protobuf:"varint,3,opt,name=seq,proto3" json:"seq,omitempty"`
}

func (m *Error) Reset()         { *m = Error{} }
func (m *Error) String() string { return proto.CompactTextString(m) }
func (*Error) ProtoMessage()    {}

func (m *Error) GetCode() ErrCode {
	if m != nil {
		return m.Code
	}
	return ErrCode_OK
}

func (m *Error) GetReason() string {
	if m != nil {
		return m.Reason
	}
	return ""
}

func (m *Error) GetSeq() uint64 {
	if m != nil {
		return m.Seq
	}
	return 0
}
