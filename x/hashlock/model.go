package hashlock

import (
	"bytes"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/orm"
)

// HashLock is a secret and its hash.
type HashLock struct {
	Hash   []byte
	Secret []byte
}

var _ orm.Model = (*HashLock)(nil)

// Validate ensures the secret matches the hash.
func (h *HashLock) Validate() error {
	if len(h.Hash) != 32 {
		return errors.Field("Hash", errors.ErrModel, "invalid hash length")
	}
	if !Verify(h.Secret, h.Hash) {
		return errors.Field("Secret", errors.ErrUnauthorized, "secret does not match hash")
	}
	return nil
}

// Verify returns true if the secret hashes to given hash.
func Verify(secret, hash []byte) bool {
	return len(secret) > 0 && bytes.Equal(crypto.Keccak256(secret), hash)
}

// Bucket stores hash locks keyed by hash.
type Bucket struct {
	orm.Bucket
}

// NewBucket returns a bucket for storing hash locks.
func NewBucket() Bucket {
	return Bucket{Bucket: orm.NewBucket("hashlock", &HashLock{})}
}

// Create generates a new secret, stores it and returns its hash.
func (b Bucket) Create(db simplex.KVStore) ([]byte, error) {
	secret, err := crypto.NewSecret()
	if err != nil {
		return nil, errors.Wrap(err, "secret")
	}
	h := &HashLock{Hash: crypto.Keccak256(secret), Secret: secret}
	if err := b.Put(db, h.Hash, h); err != nil {
		return nil, err
	}
	return h.Hash, nil
}

// Store saves a secret revealed by the peer. The secret must match the
// hash.
func (b Bucket) Store(db simplex.KVStore, hash, secret []byte) error {
	return b.Put(db, hash, &HashLock{Hash: hash, Secret: secret})
}

// Secret returns the secret of given hash or ErrNotFound.
func (b Bucket) Secret(db simplex.ReadOnlyKVStore, hash []byte) ([]byte, error) {
	var h HashLock
	if err := b.One(db, hash, &h); err != nil {
		return nil, err
	}
	return h.Secret, nil
}

// Remove deletes the secret of given hash.
func (b Bucket) Remove(db simplex.KVStore, hash []byte) error {
	return b.Delete(db, hash)
}
