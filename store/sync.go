package store

import "sync"

// SyncStore guards a store that is not safe for concurrent use. Cache
// wraps created from it may be used from different goroutines, as long as
// each single cache wrap is owned by one of them.
type SyncStore struct {
	mu *sync.RWMutex
	kv CacheableKVStore
}

var _ CacheableKVStore = SyncStore{}

// NewSyncStore wraps given store.
func NewSyncStore(kv CacheableKVStore) SyncStore {
	return SyncStore{mu: &sync.RWMutex{}, kv: kv}
}

func (s SyncStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kv.Get(key)
}

func (s SyncStore) Has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kv.Has(key)
}

func (s SyncStore) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(key, value)
}

func (s SyncStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(key)
}

// Iterator returns a snapshot of the range, so that no lock is held while
// the caller iterates.
func (s SyncStore) Iterator(start, end []byte) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, err := s.kv.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return snapshot(it)
}

// ReverseIterator returns a snapshot of the range, so that no lock is held
// while the caller iterates.
func (s SyncStore) ReverseIterator(start, end []byte) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, err := s.kv.ReverseIterator(start, end)
	if err != nil {
		return nil, err
	}
	return snapshot(it)
}

func snapshot(it Iterator) (Iterator, error) {
	defer it.Close()
	var res []Model
	for it.Valid() {
		res = append(res, Model{Key: it.Key(), Value: it.Value()})
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return NewSliceIterator(res), nil
}

// NewBatch returns a batch of the wrapped store that is written while
// holding the exclusive lock.
func (s SyncStore) NewBatch() Batch {
	return &syncBatch{mu: s.mu, b: s.kv.NewBatch()}
}

// CacheWrap layers a btree cache on top of the synchronized store.
func (s SyncStore) CacheWrap() KVCacheWrap {
	return NewBTreeCacheWrap(s, s.NewBatch, nil)
}

type syncBatch struct {
	mu *sync.RWMutex
	b  Batch
}

func (b *syncBatch) Set(key, value []byte) error { return b.b.Set(key, value) }
func (b *syncBatch) Delete(key []byte) error     { return b.b.Delete(key) }

func (b *syncBatch) Write() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write()
}
