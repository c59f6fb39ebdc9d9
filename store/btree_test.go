package store

import (
	"testing"
)

func memStoreConstructor() (CacheableKVStore, func()) {
	return MemStore(), func() {}
}

func TestBTreeCacheGetSet(t *testing.T) {
	NewTestSuite(memStoreConstructor).GetSet(t)
}

func TestBTreeCacheConflicts(t *testing.T) {
	NewTestSuite(memStoreConstructor).CacheConflicts(t)
}

func TestBTreeCacheFuzzIterator(t *testing.T) {
	NewTestSuite(memStoreConstructor).FuzzIterator(t)
}

func TestBTreeCacheIteratorWithConflicts(t *testing.T) {
	NewTestSuite(memStoreConstructor).IteratorWithConflicts(t)
}

func TestSyncStoreSuite(t *testing.T) {
	s := NewTestSuite(func() (CacheableKVStore, func()) {
		return NewSyncStore(MemStore()), func() {}
	})
	t.Run("get set", s.GetSet)
	t.Run("cache conflicts", s.CacheConflicts)
	t.Run("fuzz iterator", s.FuzzIterator)
	t.Run("iterator with conflicts", s.IteratorWithConflicts)
}
