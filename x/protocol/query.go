package protocol

import (
	"encoding/binary"
	"math/big"
	"time"

	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/payment"
)

// ProtocolVersion is announced when establishing a session.
const ProtocolVersion = 1

// PaymentInfo describes a payment for the local API.
type PaymentInfo struct {
	ID               []byte
	Pay              *payment.ConditionalPay
	// PayBytes is the serialized pay, as signed by its source.
	PayBytes         []byte
	Note             []byte
	Status           payment.Status
	MaxAmount        *big.Int
	SettlementAmount *big.Int
	SettleReason     payment.PaymentSettleReason
}

// GetPaymentInfo returns the payment with given id or ErrNotFound.
func (c *Controller) GetPaymentInfo(payID []byte) (*PaymentInfo, error) {
	p, err := c.payments.Get(c.db, payID)
	if err != nil {
		return nil, err
	}
	pay, err := p.Decode()
	if err != nil {
		return nil, err
	}
	return &PaymentInfo{
		ID:               p.ID,
		Pay:              pay,
		PayBytes:         p.Pay,
		Note:             p.Note,
		Status:           p.Status,
		MaxAmount:        payment.MaxTransfer(pay),
		SettlementAmount: paychan.AmountFromBytes(p.SettlementAmount),
		SettleReason:     p.SettleReason,
	}, nil
}

// GetBalance returns the balance of the open channel with the configured
// peer for given token, or ErrNotFound.
func (c *Controller) GetBalance(token *paychan.TokenInfo) (*paychan.Balance, error) {
	pc, err := c.channels.FirstOpen(c.db, c.signer.Address(), c.conf.PeerAddress, token)
	if err != nil {
		return nil, err
	}
	return paychan.CalculateBalance(pc)
}

// GetChannel returns the channel with given id or ErrNotFound.
func (c *Controller) GetChannel(channelID []byte) (*paychan.PaymentChannel, error) {
	return c.channels.Get(c.db, channelID)
}

// AuthRequest returns a signed session request proving the ownership of
// the local address.
func (c *Controller) AuthRequest() (*AuthReq, error) {
	ts := uint64(time.Now().Unix())
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, ts)
	sig, err := c.signer.Sign(raw)
	if err != nil {
		return nil, err
	}
	return &AuthReq{
		MyAddr:          c.signer.Address().Bytes(),
		Timestamp:       ts,
		MySig:           sig,
		ProtocolVersion: ProtocolVersion,
	}, nil
}
