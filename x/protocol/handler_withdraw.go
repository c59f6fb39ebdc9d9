package protocol

import (
	"context"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
)

// CooperativeWithdrawResponseHandler delivers the peer answer to the
// pending withdraw request of the channel.
type CooperativeWithdrawResponseHandler struct {
	c *Controller
}

var _ simplex.Handler = CooperativeWithdrawResponseHandler{}

func (h CooperativeWithdrawResponseHandler) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	log := simplex.GetLogger(ctx)
	var resp CooperativeWithdrawResponse
	if err := msg.Load(&resp); err != nil {
		log.Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}
	var info CooperativeWithdrawInfo
	if err := proto.Unmarshal(resp.WithdrawInfo, &info); err != nil {
		log.Debug("dropping message", "err", err, "fields", errors.Fields(err))
		return nil
	}
	if !h.c.withdraws.resolve(info.ChannelId, &resp) {
		log.Debug("no withdraw waiting", "channel", hexID(info.ChannelId))
	}
	return nil
}
