package app

import (
	"context"
	"sync"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
)

// Dispatcher processes inbound messages one at a time, in the order they
// were enqueued.
//
// The queue is drained by a single goroutine, started when a message is
// enqueued and none is running. Handler errors are logged, never returned
// to the producer.
type Dispatcher struct {
	ctx     context.Context
	handler simplex.Handler

	mu      sync.Mutex
	queue   []*simplex.CelerMsg
	running bool
	idle    sync.WaitGroup
}

// NewDispatcher returns a dispatcher passing messages to given handler.
// The context is passed to every handler call and carries its logger.
func NewDispatcher(ctx context.Context, h simplex.Handler) *Dispatcher {
	return &Dispatcher{ctx: ctx, handler: h}
}

// Enqueue adds the message to the queue.
func (d *Dispatcher) Enqueue(msg *simplex.CelerMsg) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, msg)
	if d.running {
		return
	}
	d.running = true
	d.idle.Add(1)
	go d.drain()
}

func (d *Dispatcher) drain() {
	defer d.idle.Done()
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			d.mu.Unlock()
			return
		}
		msg := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if err := d.handle(msg); err != nil {
			simplex.GetLogger(d.ctx).Error("cannot handle message", "msg", msg.Type, "err", err)
		}
	}
}

func (d *Dispatcher) handle(msg *simplex.CelerMsg) (err error) {
	defer errors.Recover(&err)
	return d.handler.Handle(d.ctx, msg)
}

// Wait blocks until the queue is drained.
func (d *Dispatcher) Wait() {
	d.idle.Wait()
}
