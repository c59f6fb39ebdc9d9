package utils

import (
	"context"
	"testing"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/simplextest/assert"
	"github.com/tendermint/tendermint/libs/log"
)

func TestRecovery(t *testing.T) {
	panicking := simplex.HandlerFunc(func(context.Context, *simplex.CelerMsg) error {
		panic("boom")
	})
	err := NewRecovery().Handle(context.Background(), &simplex.CelerMsg{}, panicking)
	assert.IsErr(t, errors.ErrPanic, err)

	failing := simplex.HandlerFunc(func(context.Context, *simplex.CelerMsg) error {
		return errors.ErrState
	})
	err = NewRecovery().Handle(context.Background(), &simplex.CelerMsg{}, failing)
	assert.IsErr(t, errors.ErrState, err)
}

func TestLoggingAddsMessageType(t *testing.T) {
	var seen log.Logger
	h := simplex.HandlerFunc(func(ctx context.Context, msg *simplex.CelerMsg) error {
		seen = simplex.GetLogger(ctx)
		return nil
	})
	ctx := simplex.WithLogger(context.Background(), log.NewNopLogger())
	err := NewLogging().Handle(ctx, &simplex.CelerMsg{Type: simplex.MsgRevealSecret}, h)
	assert.Nil(t, err)
	if seen == nil {
		t.Fatal("handler not called")
	}
}
