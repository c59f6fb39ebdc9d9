package crypto

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/iov-one/simplex/errors"
)

// SignatureLength is the size of a [R || S || V] signature.
const SignatureLength = 65

// Signer is the functionality we use from a private key.
// No serializing to support hardware devices as well.
type Signer interface {
	// Address returns the account the signatures recover to.
	Address() common.Address
	// Sign returns a signature over the signed-message hash of data.
	Sign(data []byte) ([]byte, error)
}

// KeySigner signs with an in memory private key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

var _ Signer = (*KeySigner)(nil)

// NewKeySigner returns a signer using given private key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:  key,
		addr: ethcrypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address implements Signer.
func (s *KeySigner) Address() common.Address {
	return s.addr
}

// Sign implements Signer.
func (s *KeySigner) Sign(data []byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(SignedMessageHash(data), s.key)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, err.Error())
	}
	sig[64] += 27
	return sig, nil
}

// SignedMessageHash returns the hash that is signed for given payload.
func SignedMessageHash(data []byte) []byte {
	return Keccak256([]byte("\x19Ethereum Signed Message:\n32"), Keccak256(data))
}

// RecoverSigner returns the address of the account that created the
// signature over data.
func RecoverSigner(data, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, errors.Wrapf(errors.ErrUnauthorized, "signature length %d", len(sig))
	}
	// Do not modify the signature passed by the caller.
	s := make([]byte, SignatureLength)
	copy(s, sig)
	if s[64] >= 27 {
		s[64] -= 27
	}
	if s[64] > 1 {
		return common.Address{}, errors.Wrapf(errors.ErrUnauthorized, "invalid recovery id %d", sig[64])
	}
	pub, err := ethcrypto.SigToPub(SignedMessageHash(data), s)
	if err != nil {
		return common.Address{}, errors.Wrap(errors.ErrUnauthorized, err.Error())
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifySignature returns true if sig is a valid signature of data created
// by given address.
func VerifySignature(data, sig []byte, addr common.Address) bool {
	signer, err := RecoverSigner(data, sig)
	if err != nil {
		return false
	}
	return signer == addr
}
