package store

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/iov-one/simplex/simplextest/assert"
	dbm "github.com/tendermint/tendermint/libs/db"
)

func memDBConstructor() (CacheableKVStore, func()) {
	return NewDBStore(dbm.NewMemDB()), func() {}
}

func levelDBConstructor(t testing.TB) TestStoreConstructor {
	return func() (CacheableKVStore, func()) {
		dir, err := ioutil.TempDir("", "simplex-store")
		if err != nil {
			t.Fatalf("cannot create directory: %s", err)
		}
		db, err := OpenDBStore("test", dir)
		if err != nil {
			t.Fatalf("cannot open database: %s", err)
		}
		return db, func() {
			db.Close()
			os.RemoveAll(dir)
		}
	}
}

func TestDBStoreSuite(t *testing.T) {
	constructors := map[string]TestStoreConstructor{
		"memdb":   memDBConstructor,
		"leveldb": levelDBConstructor(t),
	}
	for name, c := range constructors {
		t.Run(name, func(t *testing.T) {
			s := NewTestSuite(c)
			s.GetSet(t)
			s.CacheConflicts(t)
			s.FuzzIterator(t)
			s.IteratorWithConflicts(t)
		})
	}
}

func TestDBStorePersistsCacheWrap(t *testing.T) {
	dir, err := ioutil.TempDir("", "simplex-store")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	db, err := OpenDBStore("node", dir)
	assert.Nil(t, err)
	cache := db.CacheWrap()
	assert.Nil(t, cache.Set([]byte("chan:1"), []byte("open")))
	assert.Nil(t, cache.Set([]byte("pay:1"), []byte("pending")))

	// nothing is written before the cache is flushed
	got, err := db.Get([]byte("chan:1"))
	assert.Nil(t, err)
	assert.Nil(t, got)

	assert.Nil(t, cache.Write())
	db.Close()

	reopened, err := OpenDBStore("node", dir)
	assert.Nil(t, err)
	defer reopened.Close()
	got, err = reopened.Get([]byte("pay:1"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("pending"), got)
}
