package store

import (
	"github.com/iov-one/simplex/errors"
	dbm "github.com/tendermint/tendermint/libs/db"
)

// DBStore exposes a tendermint database as a KVStore. All writes done
// through a CacheWrap are flushed with a single atomic database batch.
type DBStore struct {
	db dbm.DB
}

var _ CacheableKVStore = (*DBStore)(nil)

// NewDBStore wraps given database.
func NewDBStore(db dbm.DB) *DBStore {
	return &DBStore{db: db}
}

// OpenDBStore opens (or creates) a goleveldb database with given name in
// the directory.
func OpenDBStore(name, dir string) (db *DBStore, err error) {
	defer recoverDB(&err)
	return NewDBStore(dbm.NewDB(name, dbm.GoLevelDBBackend, dir)), nil
}

// Close releases the underlying database.
func (s *DBStore) Close() {
	s.db.Close()
}

// Get returns nil iff key doesn't exist.
func (s *DBStore) Get(key []byte) (val []byte, err error) {
	defer recoverDB(&err)
	return s.db.Get(key), nil
}

// Has checks if a key exists.
func (s *DBStore) Has(key []byte) (ok bool, err error) {
	defer recoverDB(&err)
	return s.db.Has(key), nil
}

// Set writes the value synchronously.
func (s *DBStore) Set(key, value []byte) (err error) {
	defer recoverDB(&err)
	s.db.SetSync(key, value)
	return nil
}

// Delete removes the key synchronously.
func (s *DBStore) Delete(key []byte) (err error) {
	defer recoverDB(&err)
	s.db.DeleteSync(key)
	return nil
}

// Iterator over a domain of keys in ascending order.
func (s *DBStore) Iterator(start, end []byte) (it Iterator, err error) {
	defer recoverDB(&err)
	return &dbIterator{it: s.db.Iterator(start, end)}, nil
}

// ReverseIterator over a domain of keys in descending order.
func (s *DBStore) ReverseIterator(start, end []byte) (Iterator, error) {
	it, err := s.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var res []Model
	for it.Valid() {
		res = append(res, Model{Key: it.Key(), Value: it.Value()})
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return NewSliceIterator(reverseModels(res)), nil
}

// NewBatch returns an atomic batch.
func (s *DBStore) NewBatch() Batch {
	return &dbBatch{b: s.db.NewBatch()}
}

// CacheWrap returns a btree cache that is written back with one atomic batch.
func (s *DBStore) CacheWrap() KVCacheWrap {
	return NewBTreeCacheWrap(s, s.NewBatch, nil)
}

type dbBatch struct {
	b dbm.Batch
}

var _ Batch = (*dbBatch)(nil)

func (b *dbBatch) Set(key, value []byte) (err error) {
	defer recoverDB(&err)
	b.b.Set(key, value)
	return nil
}

func (b *dbBatch) Delete(key []byte) (err error) {
	defer recoverDB(&err)
	b.b.Delete(key)
	return nil
}

func (b *dbBatch) Write() (err error) {
	defer recoverDB(&err)
	b.b.WriteSync()
	return nil
}

type dbIterator struct {
	it dbm.Iterator
}

var _ Iterator = (*dbIterator)(nil)

func (i *dbIterator) Valid() bool { return i.it.Valid() }

func (i *dbIterator) Next() (err error) {
	defer recoverDB(&err)
	i.it.Next()
	return nil
}

func (i *dbIterator) Key() []byte   { return i.it.Key() }
func (i *dbIterator) Value() []byte { return i.it.Value() }
func (i *dbIterator) Close()        { i.it.Close() }

// recoverDB converts a panic raised by the database backend into an
// ErrDatabase error.
func recoverDB(err *error) {
	if r := recover(); r != nil {
		*err = errors.Wrapf(errors.ErrDatabase, "%v", r)
	}
}
