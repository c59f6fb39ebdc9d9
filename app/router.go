package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
)

// Router allows us to register many handlers for different message types
// and have the proper one invoked for a given message.
type Router struct {
	routes map[simplex.MsgType]simplex.Handler
}

var _ simplex.Registry = (*Router)(nil)

// NewRouter returns a new empty router instance.
func NewRouter() *Router {
	return &Router{
		routes: make(map[simplex.MsgType]simplex.Handler),
	}
}

// Handle adds a new handler for given message type. It panics if the type
// is not known or a handler is already registered for it.
func (r *Router) Handle(t simplex.MsgType, h simplex.Handler) {
	if t == simplex.MsgUnknown {
		panic("cannot register a handler for unknown messages")
	}
	if _, ok := r.routes[t]; ok {
		panic(fmt.Sprintf("re-registering route: %s", t))
	}
	r.routes[t] = h
}

// Handler returns the handler registered for given message type. A handler
// returning ErrNoSuchPath is returned if there is none.
func (r *Router) Handler(t simplex.MsgType) simplex.Handler {
	if h, ok := r.routes[t]; ok {
		return h
	}
	return notFoundHandler(t)
}

// Validate returns an error naming every known message type without a
// handler.
func (r *Router) Validate() error {
	var missing []string
	for _, t := range simplex.MsgTypes() {
		if _, ok := r.routes[t]; !ok {
			missing = append(missing, t.String())
		}
	}
	if len(missing) != 0 {
		return errors.Wrapf(ErrNoSuchPath, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Dispatch passes the message to the handler registered for its type.
func (r *Router) Dispatch(ctx context.Context, msg *simplex.CelerMsg) error {
	return r.Handler(msg.Type).Handle(ctx, msg)
}

func notFoundHandler(t simplex.MsgType) simplex.Handler {
	return simplex.HandlerFunc(func(context.Context, *simplex.CelerMsg) error {
		return errors.Wrap(ErrNoSuchPath, t.String())
	})
}
