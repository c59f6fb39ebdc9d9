package protocol

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
)

func validateAddress(b []byte) error {
	if len(b) != common.AddressLength {
		return errors.Wrapf(errors.ErrMsg, "address must be %d bytes", common.AddressLength)
	}
	return nil
}

func validateID(b []byte) error {
	if len(b) != 32 {
		return errors.Wrap(errors.ErrMsg, "id must be 32 bytes")
	}
	return nil
}

func validateSig(b []byte) error {
	if len(b) != crypto.SignatureLength {
		return errors.Wrap(errors.ErrUnauthorized, "malformed signature")
	}
	return nil
}

func validateState(s *paychan.SignedSimplexState) error {
	if s == nil || len(s.SimplexState) == 0 {
		return errors.Wrap(errors.ErrEmpty, "simplex state")
	}
	return nil
}

func (m *AuthReq) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "MyAddr", validateAddress(m.MyAddr))
	errs = errors.AppendField(errs, "MySig", validateSig(m.MySig))
	if m.Timestamp == 0 {
		errs = errors.AppendField(errs, "Timestamp", errors.ErrEmpty)
	}
	return errs
}

func (m *AuthAck) Validate() error {
	var errs error
	for i, c := range m.Channels {
		if c == nil {
			errs = errors.AppendField(errs, errors.Index("Channels", i), errors.ErrEmpty)
			continue
		}
		errs = errors.Append(errs, errors.Nest(errors.Index("Channels", i), c.Validate()))
	}
	for i, p := range m.Payments {
		if p == nil {
			errs = errors.AppendField(errs, errors.Index("Payments", i), errors.ErrEmpty)
			continue
		}
		errs = errors.Append(errs, errors.Nest(errors.Index("Payments", i), p.Validate()))
	}
	return errs
}

func (m *ChannelSummary) Validate() error {
	return errors.AppendField(nil, "ChannelId", validateID(m.ChannelId))
}

func (m *PaymentSummary) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "PayId", validateID(m.PayId))
	if len(m.Pay) == 0 {
		errs = errors.AppendField(errs, "Pay", errors.ErrEmpty)
	}
	return errs
}

func (m *CondPayRequest) Validate() error {
	var errs error
	if len(m.CondPay) == 0 {
		errs = errors.AppendField(errs, "CondPay", errors.ErrEmpty)
	}
	errs = errors.AppendField(errs, "StateOnlyPeerFromSig", validateState(m.StateOnlyPeerFromSig))
	return errs
}

func (m *CondPayResponse) Validate() error {
	return errors.AppendField(nil, "StateCosigned", validateState(m.StateCosigned))
}

func (m *CondPayReceipt) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "PayId", validateID(m.PayId))
	errs = errors.AppendField(errs, "PayDestSig", validateSig(m.PayDestSig))
	return errs
}

func (m *RevealSecret) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "PayId", validateID(m.PayId))
	if len(m.Secret) == 0 {
		errs = errors.AppendField(errs, "Secret", errors.ErrEmpty)
	}
	return errs
}

func (m *RevealSecretAck) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "PayId", validateID(m.PayId))
	errs = errors.AppendField(errs, "PayDestSecretSig", validateSig(m.PayDestSecretSig))
	return errs
}

func (m *SettledPayment) Validate() error {
	return errors.AppendField(nil, "SettledPayId", validateID(m.SettledPayId))
}

func validateSettled(pays []*SettledPayment) error {
	if len(pays) == 0 {
		return errors.Field("SettledPays", errors.ErrEmpty, "nothing settled")
	}
	var errs error
	for i, p := range pays {
		if p == nil {
			errs = errors.AppendField(errs, errors.Index("SettledPays", i), errors.ErrEmpty)
			continue
		}
		errs = errors.Append(errs, errors.Nest(errors.Index("SettledPays", i), p.Validate()))
	}
	return errs
}

func (m *PaymentSettleRequest) Validate() error {
	var errs error
	errs = errors.Append(errs, validateSettled(m.SettledPays))
	errs = errors.AppendField(errs, "StateOnlyPeerFromSig", validateState(m.StateOnlyPeerFromSig))
	return errs
}

func (m *PaymentSettleResponse) Validate() error {
	return errors.AppendField(nil, "StateCosigned", validateState(m.StateCosigned))
}

func (m *PaymentSettleProof) Validate() error {
	return validateSettled(m.SettledPays)
}

func (m *CooperativeWithdrawInfo) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "ChannelId", validateID(m.ChannelId))
	errs = errors.AppendField(errs, "Withdraw", validateAddress(m.Withdraw.GetAccount()))
	if m.WithdrawDeadline == 0 {
		errs = errors.AppendField(errs, "WithdrawDeadline", errors.ErrEmpty)
	}
	return errs
}

func (m *CooperativeWithdrawRequest) Validate() error {
	var errs error
	if len(m.WithdrawInfo) == 0 {
		errs = errors.AppendField(errs, "WithdrawInfo", errors.ErrEmpty)
	}
	errs = errors.AppendField(errs, "RequesterSig", validateSig(m.RequesterSig))
	return errs
}

func (m *CooperativeWithdrawResponse) Validate() error {
	if len(m.WithdrawInfo) == 0 {
		return errors.Field("WithdrawInfo", errors.ErrEmpty, "missing")
	}
	if m.Error != nil {
		return nil
	}
	var errs error
	errs = errors.AppendField(errs, "RequesterSig", validateSig(m.RequesterSig))
	errs = errors.AppendField(errs, "ApproverSig", validateSig(m.ApproverSig))
	return errs
}

func (m *OpenChannelRequest) Validate() error {
	var errs error
	if len(m.ChannelInitializer) == 0 {
		errs = errors.AppendField(errs, "ChannelInitializer", errors.ErrEmpty)
	}
	errs = errors.AppendField(errs, "RequesterSig", validateSig(m.RequesterSig))
	return errs
}

func (m *OpenChannelResponse) Validate() error {
	var errs error
	if len(m.ChannelInitializer) == 0 {
		errs = errors.AppendField(errs, "ChannelInitializer", errors.ErrEmpty)
	}
	errs = errors.AppendField(errs, "RequesterSig", validateSig(m.RequesterSig))
	errs = errors.AppendField(errs, "ApproverSig", validateSig(m.ApproverSig))
	return errs
}

func (m *ErrorMsg) Validate() error {
	return nil
}
