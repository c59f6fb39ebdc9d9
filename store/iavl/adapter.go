package iavl

import (
	"sync"

	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/store"
	"github.com/tendermint/iavl"
	dbm "github.com/tendermint/tendermint/libs/db"
)

// DefaultCacheSize is the number of tree nodes kept in memory.
const DefaultCacheSize = 10000

// CommitID contains the tree version number and its merkle root.
type CommitID struct {
	Version int64
	Hash    []byte
}

// CommitStore keeps the whole node state in a versioned iavl tree. Every
// write that reaches the store (directly or by flushing a cache wrap) is
// saved as a new tree version, so that former channel and payment records
// stay readable through GetVersioned.
type CommitStore struct {
	mu   *sync.RWMutex
	tree *iavl.MutableTree
}

var _ store.CacheableKVStore = CommitStore{}

// NewCommitStore loads the latest version stored in the database.
func NewCommitStore(db dbm.DB) (CommitStore, error) {
	tree := iavl.NewMutableTree(db, DefaultCacheSize)
	if _, err := tree.Load(); err != nil {
		return CommitStore{}, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return CommitStore{mu: &sync.RWMutex{}, tree: tree}, nil
}

// LatestVersion returns info on the latest version saved to disk.
func (s CommitStore) LatestVersion() CommitID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CommitID{
		Version: s.tree.Version(),
		Hash:    s.tree.Hash(),
	}
}

// GetVersioned returns the value stored under the key at given version.
func (s CommitStore) GetVersioned(key []byte, version int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if version <= 0 || version > s.tree.Version() {
		return nil, errors.Wrapf(errors.ErrNotFound, "version %d", version)
	}
	_, val := s.tree.GetVersioned(key, version)
	return val, nil
}

// Get returns the value at last committed state
// returns nil iff key doesn't exist.
func (s CommitStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, val := s.tree.Get(key)
	return val, nil
}

// Has checks if a key exists.
func (s CommitStore) Has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Has(key), nil
}

// Set writes a single value as a new version.
func (s CommitStore) Set(key, value []byte) error {
	return s.commit([]store.Op{store.SetOp(key, value)})
}

// Delete removes a single value as a new version.
func (s CommitStore) Delete(key []byte) error {
	return s.commit([]store.Op{store.DelOp(key)})
}

// Iterator over a domain of keys in ascending order.
func (s CommitStore) Iterator(start, end []byte) (store.Iterator, error) {
	return s.iterate(start, end, true), nil
}

// ReverseIterator over a domain of keys in descending order.
func (s CommitStore) ReverseIterator(start, end []byte) (store.Iterator, error) {
	return s.iterate(start, end, false), nil
}

func (s CommitStore) iterate(start, end []byte, ascending bool) store.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []store.Model
	s.tree.IterateRange(start, end, ascending, func(key, value []byte) bool {
		res = append(res, store.Model{Key: key, Value: value})
		return false
	})
	return store.NewSliceIterator(res)
}

// NewBatch returns a batch that saves all operations as one version.
func (s CommitStore) NewBatch() store.Batch {
	return &commitBatch{parent: s}
}

// CacheWrap gives us a savepoint to perform actions. Write
// creates exactly one new version.
func (s CommitStore) CacheWrap() store.KVCacheWrap {
	return store.NewBTreeCacheWrap(s, s.NewBatch, nil)
}

func (s CommitStore) commit(ops []store.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		if err := op.Apply(treeWriter{s.tree}); err != nil {
			s.tree.Rollback()
			return err
		}
	}
	if _, _, err := s.tree.SaveVersion(); err != nil {
		s.tree.Rollback()
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

type treeWriter struct {
	tree *iavl.MutableTree
}

func (w treeWriter) Set(key, value []byte) error {
	w.tree.Set(key, value)
	return nil
}

func (w treeWriter) Delete(key []byte) error {
	w.tree.Remove(key)
	return nil
}

type commitBatch struct {
	parent CommitStore
	ops    []store.Op
}

func (b *commitBatch) Set(key, value []byte) error {
	b.ops = append(b.ops, store.SetOp(key, value))
	return nil
}

func (b *commitBatch) Delete(key []byte) error {
	b.ops = append(b.ops, store.DelOp(key))
	return nil
}

func (b *commitBatch) Write() error {
	if len(b.ops) == 0 {
		return nil
	}
	err := b.parent.commit(b.ops)
	b.ops = nil
	return err
}
