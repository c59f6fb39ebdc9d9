package orm

import (
	"testing"

	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/simplextest/assert"
	"github.com/iov-one/simplex/store"
)

type counter struct {
	Count  int64
	Owner  []byte
	Labels []string
}

func (c *counter) Validate() error {
	if c.Count < 0 {
		return errors.Field("Count", errors.ErrInput, "must not be negative")
	}
	return nil
}

type other struct {
	Name string
}

func (o *other) Validate() error { return nil }

func counterBucket() Bucket {
	return NewBucket("cnts", &counter{}).
		WithIndex("owner", func(m Model) ([][]byte, error) {
			c, ok := m.(*counter)
			if !ok {
				return nil, errors.Wrapf(errors.ErrType, "%T", m)
			}
			if len(c.Owner) == 0 {
				return nil, nil
			}
			return [][]byte{c.Owner}, nil
		}).
		WithIndex("label", func(m Model) ([][]byte, error) {
			c := m.(*counter)
			res := make([][]byte, len(c.Labels))
			for i, l := range c.Labels {
				res[i] = []byte(l)
			}
			return res, nil
		})
}

func TestBucketOnePutDelete(t *testing.T) {
	db := store.MemStore()
	b := counterBucket()

	assert.Nil(t, b.Put(db, []byte("c1"), &counter{Count: 1, Owner: []byte("alice")}))

	var c1 counter
	assert.Nil(t, b.One(db, []byte("c1"), &c1))
	assert.Equal(t, int64(1), c1.Count)
	assert.Equal(t, []byte("alice"), c1.Owner)

	ok, err := b.Has(db, []byte("c1"))
	assert.Nil(t, err)
	assert.Equal(t, true, ok)

	err = b.Put(db, []byte("c2"), &counter{Count: -1})
	assert.FieldError(t, err, "Count", errors.ErrInput)

	err = b.Put(db, []byte("c3"), &other{Name: "x"})
	assert.IsErr(t, errors.ErrType, err)

	err = b.Put(db, nil, &counter{Count: 3})
	assert.IsErr(t, errors.ErrEmpty, err)

	assert.Nil(t, b.Delete(db, []byte("c1")))
	assert.IsErr(t, errors.ErrNotFound, b.Delete(db, []byte("c1")))
	assert.IsErr(t, errors.ErrNotFound, b.One(db, []byte("c1"), &c1))

	// index entry is gone together with the entity
	keys, err := b.IndexKeys(db, "owner", []byte("alice"))
	assert.Nil(t, err)
	assert.Equal(t, 0, len(keys))
}

func TestBucketIndexes(t *testing.T) {
	cases := map[string]struct {
		Index    string
		Value    string
		WantKeys []string
		WantErr  *errors.Error
	}{
		"find none": {
			Index: "owner",
			Value: "carol",
		},
		"find one": {
			Index:    "owner",
			Value:    "bob",
			WantKeys: []string{"c3"},
		},
		"find many in key order": {
			Index:    "owner",
			Value:    "alice",
			WantKeys: []string{"c1", "c2"},
		},
		"multi value index": {
			Index:    "label",
			Value:    "blue",
			WantKeys: []string{"c2", "c3"},
		},
		"unknown index": {
			Index:   "color",
			Value:   "blue",
			WantErr: ErrInvalidIndex,
		},
	}

	db := store.MemStore()
	b := counterBucket()
	assert.Nil(t, b.Put(db, []byte("c1"), &counter{Count: 1, Owner: []byte("alice"), Labels: []string{"red"}}))
	assert.Nil(t, b.Put(db, []byte("c2"), &counter{Count: 2, Owner: []byte("alice"), Labels: []string{"red", "blue"}}))
	assert.Nil(t, b.Put(db, []byte("c3"), &counter{Count: 3, Owner: []byte("bob"), Labels: []string{"blue"}}))

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var res []*counter
			keys, err := b.ByIndex(db, tc.Index, []byte(tc.Value), &res)
			if tc.WantErr != nil {
				assert.IsErr(t, tc.WantErr, err)
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, len(tc.WantKeys), len(keys))
			assert.Equal(t, len(tc.WantKeys), len(res))
			for i, k := range tc.WantKeys {
				assert.Equal(t, k, string(keys[i]))
			}
		})
	}
}

func TestBucketIndexMove(t *testing.T) {
	db := store.MemStore()
	b := counterBucket()
	key := []byte("c1")

	assert.Nil(t, b.Put(db, key, &counter{Count: 1, Owner: []byte("alice")}))
	assert.Nil(t, b.Put(db, key, &counter{Count: 2, Owner: []byte("bob")}))

	keys, err := b.IndexKeys(db, "owner", []byte("alice"))
	assert.Nil(t, err)
	assert.Equal(t, 0, len(keys))

	var res []*counter
	keys, err = b.ByIndex(db, "owner", []byte("bob"), &res)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(keys))
	assert.Equal(t, int64(2), res[0].Count)
}

func TestBucketAll(t *testing.T) {
	db := store.MemStore()
	b := counterBucket()
	others := NewBucket("others", &other{})

	assert.Nil(t, b.Put(db, []byte("b"), &counter{Count: 2}))
	assert.Nil(t, b.Put(db, []byte("a"), &counter{Count: 1, Owner: []byte("alice")}))
	assert.Nil(t, others.Put(db, []byte("a"), &other{Name: "not a counter"}))

	var all []*counter
	keys, err := b.All(db, &all)
	assert.Nil(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, keys)
	assert.Equal(t, int64(1), all[0].Count)
	assert.Equal(t, int64(2), all[1].Count)

	var wrong []*other
	_, err = b.All(db, &wrong)
	assert.IsErr(t, errors.ErrType, err)
}

func TestBucketName(t *testing.T) {
	assert.Panics(t, func() { NewBucket("X", &counter{}) })
	assert.Panics(t, func() {
		counterBucket().WithIndex("owner", func(Model) ([][]byte, error) { return nil, nil })
	})
}
