package iavl

import (
	"testing"

	"github.com/iov-one/simplex/simplextest/assert"
	"github.com/iov-one/simplex/store"
	dbm "github.com/tendermint/tendermint/libs/db"
)

func makeBase() (store.CacheableKVStore, func()) {
	commit, err := NewCommitStore(dbm.NewMemDB())
	if err != nil {
		panic(err)
	}
	return commit, func() {}
}

func TestCommitStoreSuite(t *testing.T) {
	s := store.NewTestSuite(makeBase)
	t.Run("get set", s.GetSet)
	t.Run("cache conflicts", s.CacheConflicts)
	t.Run("fuzz iterator", s.FuzzIterator)
	t.Run("iterator with conflicts", s.IteratorWithConflicts)
}

func TestCommitStoreVersions(t *testing.T) {
	db := dbm.NewMemDB()
	commit, err := NewCommitStore(db)
	assert.Nil(t, err)

	id := commit.LatestVersion()
	assert.Equal(t, int64(0), id.Version)
	if len(id.Hash) != 0 {
		t.Fatal("hash is not empty")
	}

	key := []byte("channel")

	cache := commit.CacheWrap()
	assert.Nil(t, cache.Set(key, []byte("seq 1")))
	assert.Nil(t, cache.Set([]byte("payment"), []byte("pending")))
	assert.Nil(t, cache.Write())

	id = commit.LatestVersion()
	assert.Equal(t, int64(1), id.Version)
	if len(id.Hash) == 0 {
		t.Fatal("hash is empty")
	}

	// an empty cache wrap does not create a version
	assert.Nil(t, commit.CacheWrap().Write())
	assert.Equal(t, int64(1), commit.LatestVersion().Version)

	cache = commit.CacheWrap()
	assert.Nil(t, cache.Set(key, []byte("seq 2")))
	assert.Nil(t, cache.Delete([]byte("payment")))
	assert.Nil(t, cache.Write())
	assert.Equal(t, int64(2), commit.LatestVersion().Version)

	got, err := commit.Get(key)
	assert.Nil(t, err)
	assert.Equal(t, []byte("seq 2"), got)

	old, err := commit.GetVersioned(key, 1)
	assert.Nil(t, err)
	assert.Equal(t, []byte("seq 1"), old)
	old, err = commit.GetVersioned([]byte("payment"), 1)
	assert.Nil(t, err)
	assert.Equal(t, []byte("pending"), old)

	_, err = commit.GetVersioned(key, 3)
	if err == nil {
		t.Fatal("future version must not be readable")
	}

	// history survives reloading from the same database
	reloaded, err := NewCommitStore(db)
	assert.Nil(t, err)
	assert.Equal(t, int64(2), reloaded.LatestVersion().Version)
	got, err = reloaded.Get(key)
	assert.Nil(t, err)
	assert.Equal(t, []byte("seq 2"), got)
}
