package utils

import (
	"context"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
)

// Recovery is a decorator to recover from panics in handlers,
// so we can log them as errors
type Recovery struct{}

var _ simplex.Decorator = Recovery{}

// NewRecovery creates a Recovery decorator
func NewRecovery() Recovery {
	return Recovery{}
}

// Handle turns panics into normal errors
func (r Recovery) Handle(ctx context.Context, msg *simplex.CelerMsg, next simplex.Handler) (err error) {
	defer errors.Recover(&err)
	return next.Handle(ctx, msg)
}
