package utils

import (
	"context"
	"time"

	"github.com/iov-one/simplex"
)

// Logging is a decorator to log messages as they pass through
type Logging struct{}

var _ simplex.Decorator = Logging{}

// NewLogging creates a Logging decorator
func NewLogging() Logging {
	return Logging{}
}

// Handle adds the message type to the context logger and logs the result.
// Errors are logged as errors, success as debug.
func (r Logging) Handle(ctx context.Context, msg *simplex.CelerMsg, next simplex.Handler) error {
	ctx = simplex.WithLogInfo(ctx, "msg", msg.Type)
	start := time.Now()
	err := next.Handle(ctx, msg)
	logDuration(ctx, start, err)
	return err
}

// logDuration writes information about the time and result to the logger
func logDuration(ctx context.Context, start time.Time, err error) {
	delta := time.Now().Sub(start)
	logger := simplex.GetLogger(ctx).With("duration", delta/time.Microsecond)
	if err != nil {
		logger.Error("handler failed", "err", err)
	} else {
		logger.Debug("handled")
	}
}
