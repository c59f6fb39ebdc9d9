package store

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/iov-one/simplex/simplextest/assert"
)

// TestSuite runs the same checks against any CacheableKVStore
// implementation. Every check builds a fresh store with the constructor and
// compares what the store returns with a plain map holding the expected
// content.
type TestSuite struct {
	makeBase TestStoreConstructor
}

// TestStoreConstructor returns an empty store and the function releasing
// it.
type TestStoreConstructor func() (base CacheableKVStore, cleanup func())

func NewTestSuite(constructor TestStoreConstructor) *TestSuite {
	return &TestSuite{makeBase: constructor}
}

// GetSet checks that cache wraps are isolated from their store until
// written, that channel and payment records written in one cache land
// together, and that a discarded cache leaves nothing behind.
func (s *TestSuite) GetSet(t *testing.T) {
	base, cleanup := s.makeBase()
	defer cleanup()

	want := content{}
	verifyContent(t, base, want)

	initial := []Op{
		SetOp([]byte("chan:01"), []byte("open")),
		SetOp([]byte("pay:aa"), []byte("pending")),
	}
	applyOps(t, base, initial...)
	want.apply(initial...)
	verifyContent(t, base, want)

	cache := base.CacheWrap()
	settle := []Op{
		SetOp([]byte("chan:01"), []byte("seq 2")),
		SetOp([]byte("pay:aa"), []byte("settled")),
		SetOp([]byte("pay:bb"), []byte("pending")),
	}
	applyOps(t, cache, settle...)
	settled := want.clone()
	settled.apply(settle...)
	verifyContent(t, cache, settled)
	verifyContent(t, base, want)

	assert.Nil(t, cache.Write())
	verifyContent(t, base, settled)

	// the cache is empty after a write and can be used again
	verifyContent(t, cache, settled)
	applyOps(t, cache, DelOp([]byte("pay:aa")))
	assert.Nil(t, cache.Write())
	settled.apply(DelOp([]byte("pay:aa")))
	verifyContent(t, base, settled)

	dropped := base.CacheWrap()
	applyOps(t, dropped,
		SetOp([]byte("chan:02"), []byte("open")),
		DelOp([]byte("chan:01")),
	)
	dropped.Discard()
	verifyContent(t, dropped, settled)

	// writing a discarded cache must not bring its old writes back
	assert.Nil(t, dropped.Write())
	verifyContent(t, base, settled)
}

// CacheConflicts stacks caches the way message handling does, one per
// message on top of one per connection, and checks which layer wins.
func (s *TestSuite) CacheConflicts(t *testing.T) {
	base, cleanup := s.makeBase()
	defer cleanup()

	want := content{}
	stored := []Op{
		SetOp([]byte("chan:01"), []byte("seq 1")),
		SetOp([]byte("chan:02"), []byte("seq 7")),
		SetOp([]byte("pay:aa"), []byte("pending")),
	}
	applyOps(t, base, stored...)
	want.apply(stored...)

	outer := base.CacheWrap()
	outerOps := []Op{
		DelOp([]byte("chan:02")),
		SetOp([]byte("pay:aa"), []byte("revealed")),
	}
	applyOps(t, outer, outerOps...)
	atOuter := want.clone()
	atOuter.apply(outerOps...)

	inner := outer.CacheWrap()
	innerOps := []Op{
		SetOp([]byte("chan:02"), []byte("seq 8")),
		DelOp([]byte("pay:aa")),
		SetOp([]byte("pay:bb"), []byte("pending")),
	}
	applyOps(t, inner, innerOps...)
	atInner := atOuter.clone()
	atInner.apply(innerOps...)

	verifyContent(t, inner, atInner)
	verifyContent(t, outer, atOuter)
	verifyContent(t, base, want)

	assert.Nil(t, inner.Write())
	verifyContent(t, outer, atInner)
	verifyContent(t, base, want)

	// a failed connection drops everything its messages wrote
	outer.Discard()
	verifyContent(t, outer, want)
	verifyContent(t, base, want)

	// setting a value twice and deleting a missing key are no-ops
	again := base.CacheWrap()
	applyOps(t, again,
		SetOp([]byte("chan:01"), []byte("seq 1")),
		DelOp([]byte("chan:09")),
	)
	verifyContent(t, again, want)
	assert.Nil(t, again.Write())
	verifyContent(t, base, want)
}

// FuzzIterator writes random records to the store and to a cache on top of
// it and compares iteration over random ranges with the expected content.
func (s *TestSuite) FuzzIterator(t *testing.T) {
	const rounds = 20

	rnd := rand.New(rand.NewSource(1))
	for round := 0; round < rounds; round++ {
		t.Run(fmt.Sprintf("round %d", round), func(t *testing.T) {
			base, cleanup := s.makeBase()
			defer cleanup()

			keys := recordKeys(rnd, 8+rnd.Intn(24))
			want := content{}
			stored := randomOps(rnd, keys, len(keys))
			applyOps(t, base, stored...)
			want.apply(stored...)

			cache := base.CacheWrap()
			cached := want.clone()
			overlay := randomOps(rnd, keys, len(keys)/2)
			applyOps(t, cache, overlay...)
			cached.apply(overlay...)

			for i := 0; i < 10; i++ {
				start, end := randomRange(rnd, keys)
				verifyRange(t, base, want, start, end)
				verifyRange(t, cache, cached, start, end)
			}

			assert.Nil(t, cache.Write())
			verifyContent(t, base, cached)
		})
	}
}

// IteratorWithConflicts covers ranges where cached writes and deletes meet
// the stored keys at the range bounds.
func (s *TestSuite) IteratorWithConflicts(t *testing.T) {
	stored := []Op{
		SetOp([]byte("chan:01"), []byte("seq 1")),
		SetOp([]byte("chan:02"), []byte("seq 4")),
		SetOp([]byte("chan:03"), []byte("seq 9")),
		SetOp([]byte("pay:aa"), []byte("pending")),
		SetOp([]byte("pay:cc"), []byte("settled")),
	}

	cases := map[string]struct {
		cached     []Op
		start, end []byte
	}{
		"whole store, nothing cached": {},
		"cached value shadows stored one": {
			cached: []Op{SetOp([]byte("chan:02"), []byte("seq 5"))},
		},
		"all keys of a prefix deleted": {
			cached: []Op{
				DelOp([]byte("pay:aa")),
				DelOp([]byte("pay:cc")),
			},
			start: []byte("pay:"),
			end:   []byte("pay;"),
		},
		"deleted key at range start": {
			cached: []Op{DelOp([]byte("chan:01"))},
			start:  []byte("chan:01"),
			end:    []byte("chan:03"),
		},
		"cached key at exclusive range end": {
			cached: []Op{SetOp([]byte("chan:04"), []byte("seq 1"))},
			start:  []byte("chan:"),
			end:    []byte("chan:04"),
		},
		"cached keys between stored ones": {
			cached: []Op{
				SetOp([]byte("pay:bb"), []byte("pending")),
				SetOp([]byte("chan:015"), []byte("seq 1")),
				DelOp([]byte("chan:02")),
			},
		},
		"open start": {
			cached: []Op{
				SetOp([]byte("chan:00"), []byte("seq 1")),
				DelOp([]byte("chan:03")),
			},
			end: []byte("chan:03"),
		},
		"open end": {
			cached: []Op{
				SetOp([]byte("pay:dd"), []byte("pending")),
				DelOp([]byte("pay:aa")),
			},
			start: []byte("chan:03"),
		},
		"deleted key set again": {
			cached: []Op{
				DelOp([]byte("pay:aa")),
				SetOp([]byte("pay:aa"), []byte("failed")),
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			base, cleanup := s.makeBase()
			defer cleanup()

			want := content{}
			applyOps(t, base, stored...)
			want.apply(stored...)

			cache := base.CacheWrap()
			applyOps(t, cache, tc.cached...)
			want.apply(tc.cached...)

			verifyRange(t, cache, want, tc.start, tc.end)
		})
	}
}

// content is what a store is expected to hold.
type content map[string]string

func (c content) apply(ops ...Op) {
	for _, op := range ops {
		switch op.kind {
		case setKind:
			c[string(op.key)] = string(op.value)
		case delKind:
			delete(c, string(op.key))
		}
	}
}

func (c content) clone() content {
	res := make(content, len(c))
	for k, v := range c {
		res[k] = v
	}
	return res
}

// models returns the records in [start, end) sorted by key. Nil bounds are
// open.
func (c content) models(start, end []byte, reverse bool) []Model {
	var res []Model
	for k, v := range c {
		key := []byte(k)
		if start != nil && bytes.Compare(key, start) < 0 {
			continue
		}
		if end != nil && bytes.Compare(key, end) >= 0 {
			continue
		}
		res = append(res, Pair(key, []byte(v)))
	}
	sort.Slice(res, func(i, j int) bool {
		less := bytes.Compare(res[i].Key, res[j].Key) < 0
		if reverse {
			return !less
		}
		return less
	})
	return res
}

func applyOps(t testing.TB, out SetDeleter, ops ...Op) {
	t.Helper()
	for _, op := range ops {
		assert.Nil(t, op.Apply(out))
	}
}

// verifyContent checks point reads and full iteration in both directions.
func verifyContent(t testing.TB, kv ReadOnlyKVStore, want content) {
	t.Helper()
	for k, v := range want {
		got, err := kv.Get([]byte(k))
		assert.Nil(t, err)
		assert.Equal(t, []byte(v), got)
		has, err := kv.Has([]byte(k))
		assert.Nil(t, err)
		assert.Equal(t, true, has)
	}
	verifyRange(t, kv, want, nil, nil)
}

func verifyRange(t testing.TB, kv ReadOnlyKVStore, want content, start, end []byte) {
	t.Helper()

	it, err := kv.Iterator(start, end)
	assert.Nil(t, err)
	if got, exp := drain(t, it), want.models(start, end, false); !modelsEqual(exp, got) {
		t.Fatalf("ascending [%q, %q): want %s, got %s", start, end, formatModels(exp), formatModels(got))
	}

	it, err = kv.ReverseIterator(start, end)
	assert.Nil(t, err)
	if got, exp := drain(t, it), want.models(start, end, true); !modelsEqual(exp, got) {
		t.Fatalf("descending [%q, %q): want %s, got %s", start, end, formatModels(exp), formatModels(got))
	}

	// keys missing from the expected content must be missing from the store
	for _, m := range want.models(start, end, false) {
		missing := append(append([]byte{}, m.Key...), 0xff)
		if _, ok := want[string(missing)]; ok {
			continue
		}
		has, err := kv.Has(missing)
		assert.Nil(t, err)
		assert.Equal(t, false, has)
	}
}

func drain(t testing.TB, it Iterator) []Model {
	t.Helper()
	defer it.Close()
	var res []Model
	for ; it.Valid(); assert.Nil(t, it.Next()) {
		key := append([]byte{}, it.Key()...)
		value := append([]byte{}, it.Value()...)
		res = append(res, Pair(key, value))
	}
	return res
}

func modelsEqual(a, b []Model) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i].Key, b[i].Key) || !bytes.Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

func formatModels(ms []Model) string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, m := range ms {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%s=%s", m.Key, m.Value)
	}
	buf.WriteByte(']')
	return buf.String()
}

// recordKeys returns n distinct keys split between the channel and the
// payment prefix.
func recordKeys(rnd *rand.Rand, n int) [][]byte {
	seen := make(map[string]bool, n)
	keys := make([][]byte, 0, n)
	for len(keys) < n {
		prefix := "chan:"
		if rnd.Intn(2) == 0 {
			prefix = "pay:"
		}
		id := make([]byte, 1+rnd.Intn(3))
		rnd.Read(id)
		key := append([]byte(prefix), id...)
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		keys = append(keys, key)
	}
	return keys
}

// randomOps returns n writes over keys, one in four of them a delete.
func randomOps(rnd *rand.Rand, keys [][]byte, n int) []Op {
	ops := make([]Op, n)
	for i := range ops {
		key := keys[rnd.Intn(len(keys))]
		if rnd.Intn(4) == 0 {
			ops[i] = DelOp(key)
			continue
		}
		ops[i] = SetOp(key, []byte(fmt.Sprintf("seq %d", rnd.Intn(1000))))
	}
	return ops
}

// randomRange returns bounds picked among keys, either of them possibly
// open. The start never sorts after the end.
func randomRange(rnd *rand.Rand, keys [][]byte) (start, end []byte) {
	if rnd.Intn(4) > 0 {
		start = keys[rnd.Intn(len(keys))]
	}
	if rnd.Intn(4) > 0 {
		end = keys[rnd.Intn(len(keys))]
	}
	if start != nil && end != nil && bytes.Compare(start, end) > 0 {
		start, end = end, start
	}
	return start, end
}

// randKeys returns n random keys of given length.
func randKeys(n, length int) [][]byte {
	res := make([][]byte, n)
	for i := range res {
		res[i] = make([]byte, length)
		rand.Read(res[i])
	}
	return res
}
