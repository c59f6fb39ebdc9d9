package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/iov-one/simplex/errors"
)

// SecretLength is the size of hash lock secrets.
const SecretLength = 32

// Keccak256 returns the keccak256 hash of all given chunks concatenated.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}

// NewSecret returns a fresh random hash lock secret.
func NewSecret() ([]byte, error) {
	secret := make([]byte, SecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrap(errors.ErrHuman, err.Error())
	}
	return secret, nil
}

// GenerateKey returns a new random private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(errors.ErrHuman, err.Error())
	}
	return key, nil
}

// LoadKey reads a hex encoded private key from given file.
func LoadKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := ethcrypto.LoadECDSA(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "load key %s: %s", path, err)
	}
	return key, nil
}

// SaveKey writes given private key hex encoded into a file readable only by
// the owner.
func SaveKey(path string, key *ecdsa.PrivateKey) error {
	if err := ethcrypto.SaveECDSA(path, key); err != nil {
		return errors.Wrapf(errors.ErrInput, "save key %s: %s", path, err)
	}
	return nil
}

// ParseAddress decodes a hex encoded address, with or without 0x prefix.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(errors.ErrInput, "invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
