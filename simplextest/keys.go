package simplextest

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex/crypto"
)

// NewKey returns a signer with a freshly generated key.
func NewKey() *crypto.KeySigner {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return crypto.NewKeySigner(key)
}

// NewAddress returns the address of a freshly generated key.
func NewAddress() common.Address {
	return NewKey().Address()
}
