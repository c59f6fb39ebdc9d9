package orm

import (
	"bytes"
	"math"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
)

// Indexer calculates the secondary index values for a given model. A model
// may be indexed under any number of values, including none.
type Indexer func(Model) ([][]byte, error)

const nativeIdxPrefix = "_x."

// index is using the database native storage and key ordering. Every
// indexed value of every entity is a separate, empty, database entry with
// the key built from the index name, the value and the entity key. Two
// entities never share an index entry, so independent writes never
// conflict.
type index struct {
	name    string
	indexer Indexer
}

// Update updates the index. It should be called when any of the bucket
// entities has changed in the store.
//
// prev == nil means insert
// next == nil means delete
func (ix index) Update(db simplex.KVStore, key []byte, prev, next Model) error {
	if prev == nil && next == nil {
		return errors.Wrap(errors.ErrInput, "update requires at least one non-nil model")
	}

	var old, fresh [][]byte
	if prev != nil {
		values, err := ix.indexer(prev)
		if err != nil {
			return errors.Wrap(err, "indexer")
		}
		old = values
	}
	if next != nil {
		values, err := ix.indexer(next)
		if err != nil {
			return errors.Wrap(err, "indexer")
		}
		fresh = values
	}

	for _, v := range subtract(old, fresh) {
		idxKey, err := packIdxKey([][]byte{[]byte(ix.name), v, key})
		if err != nil {
			return errors.Wrap(err, "build index key")
		}
		if err := db.Delete(idxKey); err != nil {
			return errors.Wrap(err, "db delete")
		}
	}
	for _, v := range subtract(fresh, old) {
		idxKey, err := packIdxKey([][]byte{[]byte(ix.name), v, key})
		if err != nil {
			return errors.Wrap(err, "build index key")
		}
		if err := db.Set(idxKey, []byte{}); err != nil {
			return errors.Wrap(err, "db set")
		}
	}
	return nil
}

// Keys returns the keys of all entities indexed under given value, in
// ascending order.
func (ix index) Keys(db simplex.ReadOnlyKVStore, value []byte) ([][]byte, error) {
	lookupKey, err := packIdxKey([][]byte{[]byte(ix.name), value})
	if err != nil {
		return nil, errors.Wrap(err, "build index key")
	}

	// Index key is in format:
	//    <prefix>#<index name>#<value>#<entity id>
	// where # is a length byte. All entries for a value are between
	//    <prefix>#<index name>#<value> and <prefix>#<index name>#<value>{255}
	// Value 255 is never used as a length (see packIdxKey).
	end := make([]byte, len(lookupKey)+1)
	copy(end, lookupKey)
	end[len(end)-1] = math.MaxUint8

	it, err := db.Iterator(lookupKey, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys [][]byte
	for it.Valid() {
		chunks, err := unpackIdxKey(it.Key())
		if err != nil {
			return nil, errors.Wrap(err, "unpack index key")
		}
		keys = append(keys, append([]byte(nil), chunks[len(chunks)-1]...))
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// subtract returns all values of minuend that are not present in subtrahend.
func subtract(minuend, subtrahend [][]byte) [][]byte {
	var res [][]byte
outer:
	for _, m := range minuend {
		for _, s := range subtrahend {
			if bytes.Equal(m, s) {
				continue outer
			}
		}
		res = append(res, m)
	}
	return res
}

// packIdxKey serialize an index key from a set of values to a
// single key. This process can be reversed using unpackIdxKey function.
//
// When serialized, each chunk is prefixed with its length, encoded as a uint8
// value.  If a key is created from 3 chunks, "aaa", "" and "c", that key
// representation is:
//
//   _x.<3>aaa<0><1>c
//
// where <3>, <0> and <1> are that number values in bytes.
func packIdxKey(chunks [][]byte) ([]byte, error) {
	var size int
	for _, b := range chunks {
		size += len(b) + 1
	}
	res := make([]byte, 0, size+len(nativeIdxPrefix))
	res = append(res, nativeIdxPrefix...)

	for _, b := range chunks {
		// MaxUint8 is reserved for the search purpose. MaxUint8 - 1 is
		// the greatest allowed length.
		if len(b) > math.MaxUint8-1 {
			return nil, errors.Wrapf(errors.ErrInput, "no chunk can be bigger than %d bytes", math.MaxUint8-1)
		}
		res = append(res, uint8(len(b)))
		res = append(res, b...)
	}
	return res, nil
}

// unpackIdxKey decodes index key and extracts all chunks that
// compose that key.
func unpackIdxKey(b []byte) ([][]byte, error) {
	if !bytes.HasPrefix(b, []byte(nativeIdxPrefix)) {
		return nil, errors.Wrap(errors.ErrInput, "not an index key")
	}
	b = b[len(nativeIdxPrefix):]
	res := make([][]byte, 0, 3)
	for len(b) > 0 {
		size := int(b[0])
		if len(b) < 1+size {
			return nil, errors.Wrap(errors.ErrInput, "malformed offset")
		}
		res = append(res, b[1:1+size])
		b = b[1+size:]
	}
	return res, nil
}
