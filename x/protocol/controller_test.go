package protocol

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockSetReleasesUnusedLocks(t *testing.T) {
	locks := newLockSet()

	unlock := locks.lock([]byte("a"))
	require.Equal(t, 1, locks.size())
	unlock()
	require.Equal(t, 0, locks.size())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		maxSeen int
	)
	for i := 0; i < 50; i++ {
		key := []byte{byte(i % 5)}
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(key)
			defer unlock()
			if key[0] != 0 {
				return
			}
			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()

			mu.Lock()
			holders--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	require.Equal(t, 0, locks.size())
}
