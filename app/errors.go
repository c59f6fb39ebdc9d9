package app

import "github.com/iov-one/simplex/errors"

// ErrNoSuchPath is returned when no handler is registered for a message
// type.
var ErrNoSuchPath = errors.Register(101, "no handler registered")
