package payment

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/x/paychan"
)

type ConditionType int32

const (
	ConditionType_HASH_LOCK         ConditionType = 0
	ConditionType_DEPLOYED_CONTRACT ConditionType = 1
	ConditionType_VIRTUAL_CONTRACT  ConditionType = 2
)

var ConditionType_name = map[ConditionType]string{
	ConditionType_HASH_LOCK:         "HASH_LOCK",
	ConditionType_DEPLOYED_CONTRACT: "DEPLOYED_CONTRACT",
	ConditionType_VIRTUAL_CONTRACT:  "VIRTUAL_CONTRACT",
}

func (c ConditionType) String() string {
	if n, ok := ConditionType_name[c]; ok {
		return n
	}
	return "UNKNOWN"
}

type TransferFunctionType int32

const (
	TransferFunctionType_BOOLEAN_AND     TransferFunctionType = 0
	TransferFunctionType_BOOLEAN_OR      TransferFunctionType = 1
	TransferFunctionType_BOOLEAN_CIRCUIT TransferFunctionType = 2
	TransferFunctionType_NUMERIC_ADD     TransferFunctionType = 3
	TransferFunctionType_NUMERIC_MAX     TransferFunctionType = 4
	TransferFunctionType_NUMERIC_MIN     TransferFunctionType = 5
)

type Condition struct {
	ConditionType           ConditionType `protobuf:"varint,1,opt,name=condition_type,json=conditionType,proto3" json:"condition_type,omitempty"`
	HashLock                []byte        `protobuf:"bytes,2,opt,name=hash_lock,json=hashLock,proto3" json:"hash_lock,omitempty"`
	DeployedContractAddress []byte        `protobuf:"bytes,3,opt,name=deployed_contract_address,json=deployedContractAddress,proto3" json:"deployed_contract_address,omitempty"`
	VirtualContractAddress  []byte        `protobuf:"bytes,4,opt,name=virtual_contract_address,json=virtualContractAddress,proto3" json:"virtual_contract_address,omitempty"`
	ArgsQueryFinalization   []byte        `protobuf:"bytes,5,opt,name=args_query_finalization,json=argsQueryFinalization,proto3" json:"args_query_finalization,omitempty"`
	ArgsQueryOutcome        []byte        `protobuf:"bytes,6,opt,name=args_query_outcome,json=argsQueryOutcome,proto3" json:"args_query_outcome,omitempty"`
}

func (m *Condition) Reset()         { *m = Condition{} }
func (m *Condition) String() string { return proto.CompactTextString(m) }
func (*Condition) ProtoMessage()    {}

func (m *Condition) GetConditionType() ConditionType {
	if m != nil {
		return m.ConditionType
	}
	return ConditionType_HASH_LOCK
}

func (m *Condition) GetHashLock() []byte {
	if m != nil {
		return m.HashLock
	}
	return nil
}

type TransferFunction struct {
	LogicType   TransferFunctionType   `protobuf:"varint,1,opt,name=logic_type,json=logicType,proto3" json:"logic_type,omitempty"`
	MaxTransfer *paychan.TokenTransfer `protobuf:"bytes,2,opt,name=max_transfer,json=maxTransfer" json:"max_transfer,omitempty"`
}

func (m *TransferFunction) Reset()         { *m = TransferFunction{} }
func (m *TransferFunction) String() string { return proto.CompactTextString(m) }
func (*TransferFunction) ProtoMessage()    {}

func (m *TransferFunction) GetMaxTransfer() *paychan.TokenTransfer {
	if m != nil {
		return m.MaxTransfer
	}
	return nil
}

type ConditionalPay struct {
	PayTimestamp    uint64            `protobuf:"varint,1,opt,name=pay_timestamp,json=payTimestamp,proto3" json:"pay_timestamp,omitempty"`
	Src             []byte            `protobuf:"bytes,2,opt,name=src,proto3" json:"src,omitempty"`
	Dest            []byte            `protobuf:"bytes,3,opt,name=dest,proto3" json:"dest,omitempty"`
	Conditions      []*Condition      `protobuf:"bytes,4,rep,name=conditions" json:"conditions,omitempty"`
	TransferFunc    *TransferFunction `protobuf:"bytes,5,opt,name=transfer_func,json=transferFunc" json:"transfer_func,omitempty"`
	ResolveDeadline uint64            `protobuf:"varint,6,opt,name=resolve_deadline,json=resolveDeadline,proto3" json:"resolve_deadline,omitempty"`
	ResolveTimeout  uint64            `protobuf:"varint,7,opt,name=resolve_timeout,json=resolveTimeout,proto3" json:"resolve_timeout,omitempty"`
	PayResolver     []byte            `protobuf:"bytes,8,opt,name=pay_resolver,json=payResolver,proto3" json:"pay_resolver,omitempty"`
}

func (m *ConditionalPay) Reset()         { *m = ConditionalPay{} }
func (m *ConditionalPay) String() string { return proto.CompactTextString(m) }
func (*ConditionalPay) ProtoMessage()    {}

func (m *ConditionalPay) GetConditions() []*Condition {
	if m != nil {
		return m.Conditions
	}
	return nil
}

func (m *ConditionalPay) GetTransferFunc() *TransferFunction {
	if m != nil {
		return m.TransferFunc
	}
	return nil
}

func (m *ConditionalPay) GetResolveDeadline() uint64 {
	if m != nil {
		return m.ResolveDeadline
	}
	return 0
}

// PaymentSettleReason tells why a pending payment was removed from a
// simplex state.
type PaymentSettleReason int32

const (
	PaymentSettleReason_PAY_UNSPECIFIED      PaymentSettleReason = 0
	PaymentSettleReason_PAY_PAID_MAX         PaymentSettleReason = 1
	PaymentSettleReason_PAY_REJECTED         PaymentSettleReason = 2
	PaymentSettleReason_PAY_RESOLVED_ONCHAIN PaymentSettleReason = 3
	PaymentSettleReason_PAY_EXPIRED          PaymentSettleReason = 4
	PaymentSettleReason_PAY_DEST_UNREACHABLE PaymentSettleReason = 5
)

var PaymentSettleReason_name = map[PaymentSettleReason]string{
	PaymentSettleReason_PAY_UNSPECIFIED:      "PAY_UNSPECIFIED",
	PaymentSettleReason_PAY_PAID_MAX:         "PAY_PAID_MAX",
	PaymentSettleReason_PAY_REJECTED:         "PAY_REJECTED",
	PaymentSettleReason_PAY_RESOLVED_ONCHAIN: "PAY_RESOLVED_ONCHAIN",
	PaymentSettleReason_PAY_EXPIRED:          "PAY_EXPIRED",
	PaymentSettleReason_PAY_DEST_UNREACHABLE: "PAY_DEST_UNREACHABLE",
}

func (r PaymentSettleReason) String() string {
	if n, ok := PaymentSettleReason_name[r]; ok {
		return n
	}
	return "UNKNOWN"
}

// PayState is the payment status as reported by the peer during session
// synchronization.
type PayState int32

const (
	PayState_UNSPECIFIED       PayState = 0
	PayState_ONESIG_PENDING    PayState = 1
	PayState_COSIGNED_PENDING  PayState = 2
	PayState_SECRET_REVEALED   PayState = 3
	PayState_ONESIG_PAID       PayState = 4
	PayState_COSIGNED_PAID     PayState = 5
	PayState_ONESIG_CANCELED   PayState = 6
	PayState_COSIGNED_CANCELED PayState = 7
	PayState_NACKED            PayState = 8
	PayState_EXPIRED           PayState = 9
)
