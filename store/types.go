//nolint
package store

import "github.com/iov-one/simplex"

// Move references for all storage types into this package
// for shorter names everywhere

type ReadOnlyKVStore = simplex.ReadOnlyKVStore
type SetDeleter = simplex.SetDeleter
type KVStore = simplex.KVStore
type Batch = simplex.Batch
type Iterator = simplex.Iterator
type CacheableKVStore = simplex.CacheableKVStore
type KVCacheWrap = simplex.KVCacheWrap
type Model = simplex.Model

var Pair = simplex.Pair
