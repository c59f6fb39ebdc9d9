/*
Package orm provides an easy to use db wrapper

Break state space into prefixed sections called Buckets.
* Each bucket contains only one type of model.
* It has a primary key and may possess any number of secondary indexes.
* Easy queries for one and iteration.
*/
package orm

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
)

var (
	isBucketName = regexp.MustCompile(`^[a-z_]{3,10}$`).MatchString
	isIndexName  = regexp.MustCompile(`^[a-z_]{2,20}$`).MatchString
)

// Model is implemented by any entity that can be stored in a Bucket. Models
// are always passed around as pointers to structs.
type Model interface {
	Validate() error
}

// Bucket is a prefixed subspace of the DB that stores models of a single
// type, together with their secondary indexes.
//
// This is a generic building block that should generally
// be embedded in a type-safe wrapper to ensure all data
// is the same type.
type Bucket struct {
	name    string
	prefix  []byte
	model   reflect.Type
	indexes map[string]index
}

// NewBucket creates a bucket to store models of the same type as proto.
func NewBucket(name string, proto Model) Bucket {
	if !isBucketName(name) {
		panic(fmt.Sprintf("Illegal bucket: %s", name))
	}
	tp := reflect.TypeOf(proto)
	if tp == nil || tp.Kind() != reflect.Ptr || tp.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("model must be a pointer to a struct, got %T", proto))
	}
	return Bucket{
		name:   name,
		prefix: append([]byte(name), ':'),
		model:  tp,
	}
}

// Name returns the name of the bucket.
func (b Bucket) Name() string {
	return b.name
}

// WithIndex returns a copy of this bucket with given index,
// panics if it an index with that name is already registered.
//
// Designed to be chained.
func (b Bucket) WithIndex(name string, indexer Indexer) Bucket {
	if !isIndexName(name) {
		panic(fmt.Sprintf("Illegal index: %s", name))
	}
	if _, ok := b.indexes[name]; ok {
		panic(fmt.Sprintf("Index %s registered twice", name))
	}
	indexes := make(map[string]index, len(b.indexes)+1)
	for n, i := range b.indexes {
		indexes[n] = i
	}
	indexes[name] = index{name: b.name + "_" + name, indexer: indexer}
	b.indexes = indexes
	return b
}

// DBKey is the full key we store in the db, including prefix.
// We copy into a new array rather than use append, as we don't
// want consecutive calls to overwrite the same byte array.
func (b Bucket) DBKey(key []byte) []byte {
	l := len(b.prefix)
	out := make([]byte, l+len(key))
	copy(out, b.prefix)
	copy(out[l:], key)
	return out
}

// One query the database for a single model instance. Lookup is done by the
// primary key. Result is loaded into given destination model.
// ErrNotFound is returned if the entity does not exist.
func (b Bucket) One(db simplex.ReadOnlyKVStore, key []byte, dest Model) error {
	if err := b.checkType(dest); err != nil {
		return err
	}
	raw, err := db.Get(b.DBKey(key))
	if err != nil {
		return errors.Wrap(err, "cannot get")
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%s %X", b.name, key)
	}
	return Unmarshal(raw, dest)
}

// Has returns true if an entity with given key exists.
func (b Bucket) Has(db simplex.ReadOnlyKVStore, key []byte) (bool, error) {
	return db.Has(b.DBKey(key))
}

// Put validates and saves given model in the database, updating all
// indexes.
func (b Bucket) Put(db simplex.KVStore, key []byte, m Model) error {
	if len(key) == 0 {
		return errors.Field("key", errors.ErrEmpty, "missing key")
	}
	if err := b.checkType(m); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return errors.Wrapf(err, "invalid %s", b.name)
	}
	raw, err := Marshal(m)
	if err != nil {
		return err
	}
	if len(b.indexes) > 0 {
		prev, err := b.load(db, key)
		if err != nil {
			return err
		}
		for _, ix := range b.indexes {
			if err := ix.Update(db, key, prev, m); err != nil {
				return errors.Wrapf(err, "index %s", ix.name)
			}
		}
	}
	if err := db.Set(b.DBKey(key), raw); err != nil {
		return errors.Wrap(err, "cannot store in the database")
	}
	return nil
}

// Delete removes an entity with given primary key from the database.
// It returns ErrNotFound if an entity with given key does not exist.
func (b Bucket) Delete(db simplex.KVStore, key []byte) error {
	prev, err := b.load(db, key)
	if err != nil {
		return err
	}
	if prev == nil {
		return errors.Wrapf(errors.ErrNotFound, "%s %X", b.name, key)
	}
	for _, ix := range b.indexes {
		if err := ix.Update(db, key, prev, nil); err != nil {
			return errors.Wrapf(err, "index %s", ix.name)
		}
	}
	return db.Delete(b.DBKey(key))
}

// IndexKeys returns the primary keys of all entities indexed under given
// value.
func (b Bucket) IndexKeys(db simplex.ReadOnlyKVStore, indexName string, value []byte) ([][]byte, error) {
	ix, ok := b.indexes[indexName]
	if !ok {
		return nil, errors.Wrap(ErrInvalidIndex, indexName)
	}
	return ix.Keys(db, value)
}

// ByIndex loads all entities indexed under given value into destination,
// which must be a pointer to a slice of model pointers. Primary keys of
// loaded entities are returned in the same order.
func (b Bucket) ByIndex(db simplex.ReadOnlyKVStore, indexName string, value []byte, dest interface{}) ([][]byte, error) {
	keys, err := b.IndexKeys(db, indexName, value)
	if err != nil {
		return nil, err
	}
	return keys, b.loadInto(db, keys, dest)
}

// Keys returns primary keys of all entities stored in this bucket in
// ascending order.
func (b Bucket) Keys(db simplex.ReadOnlyKVStore) ([][]byte, error) {
	end := b.DBKey(nil)
	end[len(end)-1]++
	it, err := db.Iterator(b.prefix, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys [][]byte
	for it.Valid() {
		keys = append(keys, append([]byte(nil), it.Key()[len(b.prefix):]...))
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// All loads every entity of this bucket into destination, which must be a
// pointer to a slice of model pointers.
func (b Bucket) All(db simplex.ReadOnlyKVStore, dest interface{}) ([][]byte, error) {
	keys, err := b.Keys(db)
	if err != nil {
		return nil, err
	}
	return keys, b.loadInto(db, keys, dest)
}

func (b Bucket) loadInto(db simplex.ReadOnlyKVStore, keys [][]byte, dest interface{}) error {
	ptr := reflect.ValueOf(dest)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Slice || ptr.Elem().Type().Elem() != b.model {
		return errors.Wrapf(errors.ErrType, "want *[]%s, got %T", b.model, dest)
	}
	slice := ptr.Elem()
	for _, key := range keys {
		m := reflect.New(b.model.Elem())
		if err := b.One(db, key, m.Interface().(Model)); err != nil {
			return err
		}
		slice = reflect.Append(slice, m)
	}
	ptr.Elem().Set(slice)
	return nil
}

// load returns the stored model or nil if it does not exist.
func (b Bucket) load(db simplex.ReadOnlyKVStore, key []byte) (Model, error) {
	raw, err := db.Get(b.DBKey(key))
	if err != nil {
		return nil, errors.Wrap(err, "cannot get")
	}
	if raw == nil {
		return nil, nil
	}
	m := reflect.New(b.model.Elem()).Interface().(Model)
	if err := Unmarshal(raw, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (b Bucket) checkType(m Model) error {
	if reflect.TypeOf(m) != b.model {
		return errors.Wrapf(errors.ErrType, "%s cannot store %T", b.name, m)
	}
	return nil
}
