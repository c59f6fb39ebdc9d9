package app

import (
	"context"
	"reflect"

	"github.com/iov-one/simplex"
)

// Decorators holds a chain of decorators, not yet resolved by a Handler
type Decorators struct {
	chain []simplex.Decorator
}

/*
ChainDecorators takes a chain of decorators,
and upon adding a final Handler (often a Router),
returns a Handler that will execute this whole stack.

  app.ChainDecorators(
    utils.NewLogging(),
    utils.NewRecovery(),
  ).WithHandler(
    simplex.HandlerFunc(router.Dispatch),
  )
*/
func ChainDecorators(chain ...simplex.Decorator) Decorators {
	chain = cutoffNil(chain)
	return Decorators{}.Chain(chain...)
}

// Chain allows us to keep adding more Decorators to the chain
func (d Decorators) Chain(chain ...simplex.Decorator) Decorators {
	chain = cutoffNil(chain)
	newChain := append(append([]simplex.Decorator(nil), d.chain...), chain...)
	return Decorators{newChain}
}

// cutoffNil will in-place remove all all nil values from given slice.
func cutoffNil(ds []simplex.Decorator) []simplex.Decorator {
	var cutoff int
	for i := 0; i < len(ds); i++ {
		ds[i-cutoff] = ds[i]
		if ds[i] == nil || (reflect.ValueOf(ds[i]).Kind() == reflect.Ptr && reflect.ValueOf(ds[i]).IsNil()) {
			cutoff++
		}
	}
	return ds[:len(ds)-cutoff]
}

// WithHandler resolves the stack and returns a concrete Handler
// that will pass through the chain of decorators before calling
// the final Handler.
func (d Decorators) WithHandler(h simplex.Handler) simplex.Handler {
	// start wrapping the handler from last decorator to first one
	// as the top of the chain is understood to be executed first
	for i := len(d.chain) - 1; i >= 0; i-- {
		h = step{d: d.chain[i], next: h}
	}
	return h
}

// step captures one step executing a decorator around a
// specific Handler.
type step struct {
	d    simplex.Decorator
	next simplex.Handler
}

var _ simplex.Handler = step{}

func (s step) Handle(ctx context.Context, msg *simplex.CelerMsg) error {
	return s.d.Handle(ctx, msg, s.next)
}
