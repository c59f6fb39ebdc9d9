package paychan

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
)

// DecodeSimplex deserializes the state carried by a signed state.
func DecodeSimplex(signed *SignedSimplexState) (*SimplexPaymentChannel, error) {
	if signed == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "no simplex state")
	}
	var s SimplexPaymentChannel
	if err := proto.Unmarshal(signed.SimplexState, &s); err != nil {
		return nil, errors.Wrap(errors.ErrMsg, err.Error())
	}
	return &s, nil
}

// SignUpdatedSimplexState serializes the new state into signed and sets our
// signature slot. Signatures over a previous payload are dropped.
func SignUpdatedSimplexState(signer crypto.Signer, signed *SignedSimplexState, state *SimplexPaymentChannel) error {
	raw, err := proto.Marshal(state)
	if err != nil {
		return errors.Wrap(errors.ErrMsg, err.Error())
	}
	if !bytes.Equal(raw, signed.SimplexState) {
		signed.SimplexState = raw
		signed.SigOfPeerFrom = nil
		signed.SigOfPeerTo = nil
	}
	sig, err := signer.Sign(raw)
	if err != nil {
		return err
	}
	if common.BytesToAddress(state.PeerFrom) == signer.Address() {
		signed.SigOfPeerFrom = sig
	} else {
		signed.SigOfPeerTo = sig
	}
	return nil
}

// Cosign signs the payload of a state proposed by the peer.
func Cosign(signer crypto.Signer, signed *SignedSimplexState) error {
	state, err := DecodeSimplex(signed)
	if err != nil {
		return err
	}
	sig, err := signer.Sign(signed.SimplexState)
	if err != nil {
		return err
	}
	if common.BytesToAddress(state.PeerFrom) == signer.Address() {
		signed.SigOfPeerFrom = sig
	} else {
		signed.SigOfPeerTo = sig
	}
	return nil
}

// IsCosigned returns true if the state carries valid signatures of both
// given parties, the peer from signature created by the state peer from.
func IsCosigned(signed *SignedSimplexState, a, b common.Address) bool {
	state, err := DecodeSimplex(signed)
	if err != nil {
		return false
	}
	from := common.BytesToAddress(state.PeerFrom)
	var to common.Address
	switch from {
	case a:
		to = b
	case b:
		to = a
	default:
		return false
	}
	return crypto.VerifySignature(signed.SimplexState, signed.SigOfPeerFrom, from) &&
		crypto.VerifySignature(signed.SimplexState, signed.SigOfPeerTo, to)
}

// CopySigned returns a deep copy of the signed state.
func CopySigned(s *SignedSimplexState) *SignedSimplexState {
	if s == nil {
		return nil
	}
	return &SignedSimplexState{
		SimplexState:  append([]byte(nil), s.SimplexState...),
		SigOfPeerFrom: append([]byte(nil), s.SigOfPeerFrom...),
		SigOfPeerTo:   append([]byte(nil), s.SigOfPeerTo...),
	}
}

// NextState returns a copy of the state with the sequence number
// incremented, ready to be mutated and signed.
func NextState(s *SimplexPaymentChannel) *SimplexPaymentChannel {
	next := proto.Clone(s).(*SimplexPaymentChannel)
	next.SeqNum++
	if next.PendingPayIds == nil {
		next.PendingPayIds = &PayIdList{}
	}
	return next
}

// NewGenesisState returns the zero sequence state of one direction of a
// freshly opened channel.
func NewGenesisState(channelID []byte, from, to common.Address, token *TokenInfo) *SimplexPaymentChannel {
	return &SimplexPaymentChannel{
		ChannelId:          channelID,
		PeerFrom:           from.Bytes(),
		SeqNum:             0,
		TransferToPeer:     NewTokenTransfer(token, to, new(big.Int)),
		PendingPayIds:      &PayIdList{},
		TotalPendingAmount: NewTokenTransfer(token, to, new(big.Int)),
	}
}

// Rejection describes why a state proposed by the peer cannot be accepted.
// It is sent back to the peer together with the last state we both agreed
// on, so that the peer can resynchronize.
type Rejection struct {
	Code         ErrCode
	Reason       string
	LastCosigned *SignedSimplexState
}

// Reject returns a rejection with a free text reason.
func Reject(last *SignedSimplexState, reason string) *Rejection {
	return &Rejection{Reason: reason, LastCosigned: last}
}

// RejectCode returns a rejection with a protocol error code.
func RejectCode(last *SignedSimplexState, code ErrCode) *Rejection {
	return &Rejection{Code: code, LastCosigned: last}
}

func (r *Rejection) Error() string {
	if r.Reason != "" {
		return r.Reason
	}
	return fmt.Sprintf("protocol error %s", r.Code)
}

// Wire returns the error reported to the peer for the rejected sequence
// number.
func (r *Rejection) Wire(seq uint64) *Error {
	return &Error{Code: r.Code, Reason: r.Reason, Seq: seq}
}

// VerifyIncoming runs the checks shared by every request advancing the
// incoming state of a channel: the channel is open, the state was signed by
// the peer as its peer from, belongs to this channel and is based on the
// stored sequence number while proposing a greater one.
func VerifyIncoming(pc *PaymentChannel, signed *SignedSimplexState, baseSeq uint64) (*SimplexPaymentChannel, *Rejection) {
	last := pc.InState
	if pc.Status != StatusOpen {
		return nil, Reject(last, ReasonChannelNotOpen)
	}
	state, err := DecodeSimplex(signed)
	if err != nil {
		return nil, Reject(last, ReasonMalformedState)
	}
	if !crypto.VerifySignature(signed.SimplexState, signed.SigOfPeerFrom, pc.Peer()) {
		return nil, RejectCode(last, ErrCode_INVALID_SIG)
	}
	stored, err := DecodeSimplex(last)
	if err != nil {
		return nil, Reject(last, ReasonMalformedState)
	}
	if !bytes.Equal(state.PeerFrom, stored.PeerFrom) || !bytes.Equal(state.ChannelId, pc.ChannelID) {
		return nil, RejectCode(last, ErrCode_WRONG_PEER)
	}
	if baseSeq != stored.SeqNum || state.SeqNum <= stored.SeqNum {
		return nil, RejectCode(last, ErrCode_INVALID_SEQ_NUM)
	}
	return state, nil
}

// Reasons of rejected requests reported to the peer.
const (
	ReasonChannelNotOpen           = "Channel not open"
	ReasonMalformedState           = "Malformed simplex state"
	ReasonInsufficientBalance      = "Insufficient balance"
	ReasonPaymentNotExpired        = "Payment not expired"
	ReasonTransferAmountChanged    = "Transfer amount changed"
	ReasonNotPaymentDestination    = "Not payment destination"
	ReasonInvalidPayResolver       = "Invalid pay resolver"
	ReasonInvalidResolveDeadline   = "Invalid resolve deadline"
	ReasonInvalidTotalPending      = "Invalid total pending amount"
	ReasonTooManyPendingPayments   = "Too many pending payments"
	ReasonInvalidPendingPayList    = "Invalid pending pay list"
	ReasonDuplicatePayment         = "Duplicate payment"
	ReasonPaymentNotFound          = "Payment not found"
	ReasonInvalidSettleAmount      = "Invalid settle amount"
	ReasonInvalidSettleReason      = "Invalid settle reason"
	ReasonInvalidToken             = "Invalid token"
	ReasonMalformedConditionalPay  = "Malformed conditional pay"
	ReasonPaymentAlreadyProcessing = "Payment already settling"
)
