package paychan

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AmountFromBytes decodes a big endian unsigned integer. Empty input is zero.
func AmountFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// AmountBytes encodes a non negative integer as big endian bytes. Zero and
// nil are encoded as an empty slice.
func AmountBytes(n *big.Int) []byte {
	if n == nil || n.Sign() <= 0 {
		return nil
	}
	return n.Bytes()
}

// ParseAmount decodes a base 10 amount. It returns false if the string is
// not a non negative integer.
func ParseAmount(s string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// NewTokenInfo returns the token description for given token contract
// address. The zero address stands for ETH.
func NewTokenInfo(addr common.Address) *TokenInfo {
	if addr == (common.Address{}) {
		return &TokenInfo{TokenType: TokenType_ETH}
	}
	return &TokenInfo{TokenType: TokenType_ERC20, TokenAddress: addr.Bytes()}
}

// TokenAddress returns the contract address of the token, or the zero
// address for ETH.
func TokenAddress(t *TokenInfo) common.Address {
	return common.BytesToAddress(t.GetTokenAddress())
}

// SameToken returns true if both describe the same token.
func SameToken(a, b *TokenInfo) bool {
	return a.GetTokenType() == b.GetTokenType() && TokenAddress(a) == TokenAddress(b)
}

// NewTokenTransfer returns a transfer of amount to the receiver.
func NewTokenTransfer(token *TokenInfo, receiver common.Address, amount *big.Int) *TokenTransfer {
	return &TokenTransfer{
		Token: token,
		Receiver: &AccountAmtPair{
			Account: receiver.Bytes(),
			Amt:     AmountBytes(amount),
		},
	}
}

// TransferAmount returns the transferred amount, zero when not set.
func TransferAmount(t *TokenTransfer) *big.Int {
	return AmountFromBytes(t.GetReceiver().GetAmt())
}
