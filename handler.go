package simplex

import (
	"context"
	"encoding/json"
)

// Handler processes one kind of inbound protocol message.
//
// A handler must never let a protocol validation failure escape as an error.
// Invalid peer input is answered with an error bearing response instead.
// Returned errors are reserved for local failures (storage, transport) and
// are only logged by the dispatcher.
type Handler interface {
	Handle(ctx context.Context, msg *CelerMsg) error
}

// HandlerFunc allows to use a function as a Handler.
type HandlerFunc func(ctx context.Context, msg *CelerMsg) error

// Handle implements Handler.
func (fn HandlerFunc) Handle(ctx context.Context, msg *CelerMsg) error {
	return fn(ctx, msg)
}

// Registry is an interface to register your handler,
// the setup side of a Router
type Registry interface {
	Handle(t MsgType, h Handler)
}

// Options are the node options
// Each extension can look up it's key and parse the json as desired
type Options map[string]json.RawMessage

// ReadOptions reads the values stored under a given key,
// and parses the json into the given obj.
// Returns an error if it cannot parse.
// Noop and no error if key is missing
func (o Options) ReadOptions(key string, obj interface{}) error {
	msg := o[key]
	if len(msg) == 0 {
		return nil
	}
	return json.Unmarshal(msg, obj)
}

// Decorator wraps a Handler to provide common functionality, like logging
// or panic recovery.
type Decorator interface {
	Handle(ctx context.Context, msg *CelerMsg, next Handler) error
}
