package store

import (
	"bytes"

	"github.com/google/btree"
)

// btreeDegree is the branching factor of cache trees. Caches are short
// lived and small, one per handled message.
const btreeDegree = 2

// MemStore returns a store kept in memory only. Writes of its cache wraps
// are applied when written, which is enough for tests and for
// configuration checks.
func MemStore() CacheableKVStore {
	e := EmptyKVStore{}
	return NewBTreeCacheWrap(e, e.NewBatch, nil)
}

// BTreeCacheWrap buffers writes in a btree on top of a read only parent.
// Reads see the buffered writes first. Every write is also recorded in a
// batch of the parent, so Write applies all of them at once, and Discard
// drops them.
type BTreeCacheWrap struct {
	bt   *btree.BTree
	free *btree.FreeList
	back ReadOnlyKVStore
	ops  *pendingOps
}

// pendingOps holds the batch of a cache. It is replaced once the batch is
// written or dropped.
type pendingOps struct {
	batch Batch
	open  func() Batch
}

var _ KVCacheWrap = BTreeCacheWrap{}

// NewBTreeCacheWrap returns a cache over kv whose writes go to batches
// created by newBatch. Nested caches share the node free list, pass nil to
// allocate a new one.
func NewBTreeCacheWrap(kv ReadOnlyKVStore, newBatch func() Batch, free *btree.FreeList) BTreeCacheWrap {
	if free == nil {
		free = btree.NewFreeList(btree.DefaultFreeListSize)
	}
	return BTreeCacheWrap{
		bt:   btree.NewWithFreeList(btreeDegree, free),
		free: free,
		back: kv,
		ops:  &pendingOps{batch: newBatch(), open: newBatch},
	}
}

// CacheWrap stacks another cache on top of this one. Its writes land in
// this cache when written.
func (b BTreeCacheWrap) CacheWrap() KVCacheWrap {
	return NewBTreeCacheWrap(b, b.NewBatch, b.free)
}

func (b BTreeCacheWrap) NewBatch() Batch {
	return NewNonAtomicBatch(b)
}

// Write applies the buffered writes to the parent and empties the cache.
func (b BTreeCacheWrap) Write() error {
	err := b.ops.batch.Write()
	b.Discard()
	return err
}

// Discard empties the cache and starts a new batch. Tree nodes go back to
// the free list.
func (b BTreeCacheWrap) Discard() {
	for b.bt.DeleteMin() != nil {
	}
	b.ops.batch = b.ops.open()
}

func (b BTreeCacheWrap) Set(key, value []byte) error {
	b.bt.ReplaceOrInsert(entry{key: key, value: value})
	return b.ops.batch.Set(key, value)
}

func (b BTreeCacheWrap) Delete(key []byte) error {
	b.bt.ReplaceOrInsert(entry{key: key, deleted: true})
	return b.ops.batch.Delete(key)
}

func (b BTreeCacheWrap) Get(key []byte) ([]byte, error) {
	e, ok := b.lookup(key)
	if !ok {
		return b.back.Get(key)
	}
	if e.deleted {
		return nil, nil
	}
	return e.value, nil
}

func (b BTreeCacheWrap) Has(key []byte) (bool, error) {
	e, ok := b.lookup(key)
	if !ok {
		return b.back.Has(key)
	}
	return !e.deleted, nil
}

// lookup returns the buffered entry of key, if any.
func (b BTreeCacheWrap) lookup(key []byte) (entry, bool) {
	item := b.bt.Get(entry{key: key})
	if item == nil {
		return entry{}, false
	}
	return item.(entry), true
}

// Iterator merges buffered entries in [start, end) with the parent ones,
// in ascending key order.
func (b BTreeCacheWrap) Iterator(start, end []byte) (Iterator, error) {
	parent, err := b.back.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return newMergeIter(b.entries(start, end), parent, false)
}

// ReverseIterator is Iterator in descending key order.
func (b BTreeCacheWrap) ReverseIterator(start, end []byte) (Iterator, error) {
	parent, err := b.back.ReverseIterator(start, end)
	if err != nil {
		return nil, err
	}
	entries := b.entries(start, end)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return newMergeIter(entries, parent, true)
}

// entries returns a snapshot of the buffered entries in [start, end), in
// ascending order. Nil bounds are open.
func (b BTreeCacheWrap) entries(start, end []byte) []entry {
	var res []entry
	collect := func(item btree.Item) bool {
		res = append(res, item.(entry))
		return true
	}
	switch {
	case start == nil && end == nil:
		b.bt.Ascend(collect)
	case start == nil:
		b.bt.AscendLessThan(entry{key: end}, collect)
	case end == nil:
		b.bt.AscendGreaterOrEqual(entry{key: start}, collect)
	default:
		b.bt.AscendRange(entry{key: start}, entry{key: end}, collect)
	}
	return res
}

// entry is a buffered write. A deleted entry hides the parent value.
type entry struct {
	key     []byte
	value   []byte
	deleted bool
}

var _ btree.Item = entry{}

func (e entry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(entry).key) < 0
}
