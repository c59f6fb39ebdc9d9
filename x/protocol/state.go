package protocol

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/x/paychan"
)

// diffPayIDs returns ids present only in next and ids present only in prev.
func diffPayIDs(prev, next [][]byte) (added, removed [][]byte) {
	return subtractIDs(next, prev), subtractIDs(prev, next)
}

func subtractIDs(a, b [][]byte) [][]byte {
	var res [][]byte
	for _, x := range a {
		if !containsID(b, x) {
			res = append(res, x)
		}
	}
	return res
}

func containsID(ids [][]byte, id []byte) bool {
	for _, x := range ids {
		if bytes.Equal(x, id) {
			return true
		}
	}
	return false
}

// sameIDs returns true if both lists hold the same set of distinct ids.
func sameIDs(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i, x := range a {
		if containsID(a[:i], x) || !containsID(b, x) {
			return false
		}
	}
	return true
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// verifyOutgoing decodes an outgoing state returned by the peer and
// ensures it belongs to the channel and is signed by both parties.
func verifyOutgoing(pc *paychan.PaymentChannel, signed *paychan.SignedSimplexState) (*paychan.SimplexPaymentChannel, bool) {
	state, err := paychan.DecodeSimplex(signed)
	if err != nil {
		return nil, false
	}
	if !bytes.Equal(state.ChannelId, pc.ChannelID) || common.BytesToAddress(state.PeerFrom) != pc.Self() {
		return nil, false
	}
	if !paychan.IsCosigned(signed, pc.Self(), pc.Peer()) {
		return nil, false
	}
	return state, true
}

// verifyIncomingCosigned decodes an incoming state reported by the peer and
// ensures it belongs to the channel and is signed by both parties.
func verifyIncomingCosigned(pc *paychan.PaymentChannel, signed *paychan.SignedSimplexState) (*paychan.SimplexPaymentChannel, bool) {
	state, err := paychan.DecodeSimplex(signed)
	if err != nil {
		return nil, false
	}
	if !bytes.Equal(state.ChannelId, pc.ChannelID) || common.BytesToAddress(state.PeerFrom) != pc.Peer() {
		return nil, false
	}
	if !paychan.IsCosigned(signed, pc.Self(), pc.Peer()) {
		return nil, false
	}
	return state, true
}

// signGenesis returns the zero sequence state of one channel direction,
// signed by the local party only.
func signGenesis(signer crypto.Signer, channelID []byte, from, to common.Address, token *paychan.TokenInfo) (*paychan.SignedSimplexState, error) {
	signed := &paychan.SignedSimplexState{}
	state := paychan.NewGenesisState(channelID, from, to, token)
	if err := paychan.SignUpdatedSimplexState(signer, signed, state); err != nil {
		return nil, err
	}
	return signed, nil
}
