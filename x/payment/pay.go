package payment

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
)

// PaymentID returns the id of the serialized conditional pay resolved by
// given pay resolver contract.
func PaymentID(payBytes []byte, resolver common.Address) []byte {
	return crypto.Keccak256(crypto.Keccak256(payBytes), resolver.Bytes())
}

// DecodePay deserializes a conditional pay and ensures it is well formed.
func DecodePay(raw []byte) (*ConditionalPay, error) {
	var pay ConditionalPay
	if err := proto.Unmarshal(raw, &pay); err != nil {
		return nil, errors.Wrap(errors.ErrMsg, err.Error())
	}
	if err := pay.Validate(); err != nil {
		return nil, err
	}
	return &pay, nil
}

// Validate ensures the conditional pay is well formed.
func (m *ConditionalPay) Validate() error {
	var errs error
	if len(m.Src) != common.AddressLength {
		errs = errors.AppendField(errs, "Src", errors.ErrMsg)
	}
	if len(m.Dest) != common.AddressLength {
		errs = errors.AppendField(errs, "Dest", errors.ErrMsg)
	}
	if len(m.PayResolver) != common.AddressLength {
		errs = errors.AppendField(errs, "PayResolver", errors.ErrMsg)
	}
	if m.GetTransferFunc().GetMaxTransfer().GetToken().GetTokenType() == paychan.TokenType_INVALID {
		errs = errors.AppendField(errs, "TransferFunc", errors.ErrMsg)
	}
	for _, c := range m.Conditions {
		if c.ConditionType == ConditionType_HASH_LOCK && len(c.HashLock) != 32 {
			errs = errors.AppendField(errs, "Conditions", errors.ErrMsg)
			break
		}
	}
	if m.ResolveDeadline == 0 {
		errs = errors.AppendField(errs, "ResolveDeadline", errors.ErrEmpty)
	}
	return errs
}

// MaxTransfer returns the amount locked by the payment.
func MaxTransfer(pay *ConditionalPay) *big.Int {
	return paychan.TransferAmount(pay.GetTransferFunc().GetMaxTransfer())
}

// HashLocks returns the hashes of all hash lock conditions of the payment.
func HashLocks(pay *ConditionalPay) [][]byte {
	var res [][]byte
	for _, c := range pay.GetConditions() {
		if c.ConditionType == ConditionType_HASH_LOCK {
			res = append(res, c.HashLock)
		}
	}
	return res
}

// OnlyHashLock returns true if the payment is conditioned by a single hash
// lock and nothing else, so that revealing the secret settles it in full.
func OnlyHashLock(pay *ConditionalPay) bool {
	c := pay.GetConditions()
	return len(c) == 1 && c[0].ConditionType == ConditionType_HASH_LOCK
}

// NewPayTimestamp returns a pay timestamp, the current time in milliseconds
// followed by six random digits.
func NewPayTimestamp() uint64 {
	ms := uint64(time.Now().UnixNano() / int64(time.Millisecond))
	suffix, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(err)
	}
	return ms*1000000 + suffix.Uint64()
}
