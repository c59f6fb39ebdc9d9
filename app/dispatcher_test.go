package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iov-one/simplex"
	"github.com/stretchr/testify/require"
)

func TestDispatcherOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		got     []simplex.MsgType
		running int32
		overlap int32
	)
	h := simplex.HandlerFunc(func(ctx context.Context, msg *simplex.CelerMsg) error {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		time.Sleep(time.Millisecond)
		mu.Lock()
		got = append(got, msg.Type)
		mu.Unlock()
		atomic.AddInt32(&running, -1)
		return nil
	})

	d := NewDispatcher(context.Background(), h)
	var want []simplex.MsgType
	for i := 0; i < 3; i++ {
		for _, mt := range simplex.MsgTypes() {
			want = append(want, mt)
			d.Enqueue(&simplex.CelerMsg{Type: mt})
		}
	}
	d.Wait()

	require.Equal(t, want, got)
	require.Equal(t, int32(0), atomic.LoadInt32(&overlap), "handlers must not run concurrently")
}

func TestDispatcherSurvivesPanic(t *testing.T) {
	var calls int32
	h := simplex.HandlerFunc(func(ctx context.Context, msg *simplex.CelerMsg) error {
		atomic.AddInt32(&calls, 1)
		if msg.Type == simplex.MsgError {
			panic("boom")
		}
		return nil
	})
	d := NewDispatcher(context.Background(), h)
	d.Enqueue(&simplex.CelerMsg{Type: simplex.MsgError})
	d.Enqueue(&simplex.CelerMsg{Type: simplex.MsgAuthAck})
	d.Wait()
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// the dispatcher restarts after being drained
	d.Enqueue(&simplex.CelerMsg{Type: simplex.MsgAuthAck})
	d.Wait()
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
