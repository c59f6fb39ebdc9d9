package store

import (
	"bytes"
)

// side tells which iterator holds the next key of a merge.
type side int

const (
	exhausted side = iota
	cached
	backing
	// both iterators are positioned on the same key, the cached entry
	// shadows the backing one
	shadowed
)

// mergeIter walks buffered cache entries together with the iterator of
// the store below. Deleted entries and the backing keys they hide are
// skipped.
type mergeIter struct {
	entries []entry
	idx     int
	parent  Iterator
	reverse bool
}

var _ Iterator = (*mergeIter)(nil)

func newMergeIter(entries []entry, parent Iterator, reverse bool) (*mergeIter, error) {
	it := &mergeIter{entries: entries, parent: parent, reverse: reverse}
	if err := it.skipDeleted(); err != nil {
		it.Close()
		return nil, err
	}
	return it, nil
}

func (i *mergeIter) Valid() bool {
	return i.next() != exhausted
}

// Next advances to the following key. It panics when the iterator is
// exhausted.
func (i *mergeIter) Next() error {
	switch i.next() {
	case cached:
		i.idx++
	case shadowed:
		i.idx++
		if err := i.parent.Next(); err != nil {
			return err
		}
	case backing:
		if err := i.parent.Next(); err != nil {
			return err
		}
	default:
		panic("iterator exhausted")
	}
	return i.skipDeleted()
}

func (i *mergeIter) Key() []byte {
	switch i.next() {
	case cached, shadowed:
		return i.entries[i.idx].key
	case backing:
		return i.parent.Key()
	}
	panic("iterator exhausted")
}

func (i *mergeIter) Value() []byte {
	switch i.next() {
	case cached, shadowed:
		return i.entries[i.idx].value
	case backing:
		return i.parent.Value()
	}
	panic("iterator exhausted")
}

func (i *mergeIter) Close() {
	if i.parent != nil {
		i.parent.Close()
	}
	i.entries = nil
}

// skipDeleted moves past deleted cache entries, together with the backing
// keys they delete.
func (i *mergeIter) skipDeleted() error {
	for {
		s := i.next()
		if s != cached && s != shadowed {
			return nil
		}
		if !i.entries[i.idx].deleted {
			return nil
		}
		i.idx++
		if s == shadowed {
			if err := i.parent.Next(); err != nil {
				return err
			}
		}
	}
}

// next tells which side holds the next key in iteration order.
func (i *mergeIter) next() side {
	haveCached := i.idx < len(i.entries)
	haveBacking := i.parent != nil && i.parent.Valid()
	switch {
	case !haveCached && !haveBacking:
		return exhausted
	case !haveBacking:
		return cached
	case !haveCached:
		return backing
	}

	cmp := bytes.Compare(i.entries[i.idx].key, i.parent.Key())
	if i.reverse {
		cmp = -cmp
	}
	switch {
	case cmp < 0:
		return cached
	case cmp > 0:
		return backing
	}
	return shadowed
}
