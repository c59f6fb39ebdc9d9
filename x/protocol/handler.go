package protocol

import (
	"context"

	"github.com/iov-one/simplex"
)

// ErrorHandler logs errors reported by the peer.
type ErrorHandler struct{}

var _ simplex.Handler = ErrorHandler{}

func (ErrorHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	var e ErrorMsg
	if err := msg.Load(&e); err != nil {
		simplex.GetLogger(ctx).Debug("dropping malformed error", "err", err)
		return nil
	}
	simplex.GetLogger(ctx).Info("peer error", "reason", e.Reason, "seq", e.Seq)
	return nil
}

// ReasonUnsupported answers requests only a service node can serve.
const ReasonUnsupported = "unsupported"

// UnsupportedHandler answers server side requests with an error.
type UnsupportedHandler struct {
	c *Controller
}

var _ simplex.Handler = UnsupportedHandler{}

func (h UnsupportedHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	simplex.GetLogger(ctx).Debug("unsupported request")
	reply, err := simplex.NewMsg(simplex.MsgError, &ErrorMsg{Reason: ReasonUnsupported})
	if err != nil {
		return err
	}
	return h.c.send(ctx, reply)
}

// RegisterRoutes registers a handler for every inbound message type.
func RegisterRoutes(r simplex.Registry, c *Controller) {
	r.Handle(simplex.MsgAuthReq, UnsupportedHandler{c})
	r.Handle(simplex.MsgAuthAck, AuthAckHandler{c})
	r.Handle(simplex.MsgCondPayRequest, CondPayRequestHandler{c})
	r.Handle(simplex.MsgCondPayResponse, CondPayResponseHandler{c})
	r.Handle(simplex.MsgCondPayReceipt, CondPayReceiptHandler{c})
	r.Handle(simplex.MsgRevealSecret, RevealSecretHandler{c})
	r.Handle(simplex.MsgRevealSecretAck, RevealSecretAckHandler{c})
	r.Handle(simplex.MsgPaymentSettleRequest, PaymentSettleRequestHandler{c})
	r.Handle(simplex.MsgPaymentSettleResponse, PaymentSettleResponseHandler{c})
	r.Handle(simplex.MsgPaymentSettleProof, PaymentSettleProofHandler{c})
	r.Handle(simplex.MsgCooperativeWithdrawRequest, UnsupportedHandler{c})
	r.Handle(simplex.MsgCooperativeWithdrawResponse, CooperativeWithdrawResponseHandler{c})
	r.Handle(simplex.MsgError, ErrorHandler{})
}
