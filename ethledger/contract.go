package ethledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
)

const ledgerABI = `[
{"type":"function","name":"openChannel","stateMutability":"payable","inputs":[{"name":"_openRequest","type":"bytes"}],"outputs":[]},
{"type":"function","name":"deposit","stateMutability":"payable","inputs":[{"name":"_channelId","type":"bytes32"},{"name":"_receiver","type":"address"},{"name":"_transferFromAmount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"cooperativeWithdraw","stateMutability":"nonpayable","inputs":[{"name":"_cooperativeWithdrawRequest","type":"bytes"}],"outputs":[]},
{"type":"function","name":"getChannelStatus","stateMutability":"view","inputs":[{"name":"_channelId","type":"bytes32"}],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"getTokenType","stateMutability":"view","inputs":[{"name":"_channelId","type":"bytes32"}],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"getTokenContract","stateMutability":"view","inputs":[{"name":"_channelId","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getDisputeTimeout","stateMutability":"view","inputs":[{"name":"_channelId","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getCooperativeWithdrawSeqNum","stateMutability":"view","inputs":[{"name":"_channelId","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getBalanceMap","stateMutability":"view","inputs":[{"name":"_channelId","type":"bytes32"}],"outputs":[{"name":"","type":"address[2]"},{"name":"","type":"uint256[2]"},{"name":"","type":"uint256[2]"}]},
{"type":"function","name":"getWithdrawIntent","stateMutability":"view","inputs":[{"name":"_channelId","type":"bytes32"}],"outputs":[{"name":"","type":"address"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"bytes32"}]}
]`

const registryABI = `[
{"type":"function","name":"getPayInfo","stateMutability":"view","inputs":[{"name":"_payId","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"}]}
]`

// openChannelTopic is the first topic of the OpenChannel event. The
// channel id is the second one.
var openChannelTopic = common.BytesToHash(crypto.Keccak256(
	[]byte("OpenChannel(bytes32,uint256,address,address[2],uint256[2])")))

var (
	ledgerContract   = mustABI(ledgerABI)
	registryContract = mustABI(registryABI)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// words splits the output of a call returning static types only.
func words(out []byte, n int) ([][]byte, error) {
	if len(out) < n*32 {
		return nil, errors.Wrapf(errors.ErrLedger, "short call output: %d bytes, want %d", len(out), n*32)
	}
	ws := make([][]byte, n)
	for i := range ws {
		ws[i] = out[i*32 : (i+1)*32]
	}
	return ws, nil
}

func wordInt(w []byte) *big.Int {
	return new(big.Int).SetBytes(w)
}

func wordUint64(w []byte) (uint64, error) {
	n := wordInt(w)
	if !n.IsUint64() {
		return 0, errors.Wrap(errors.ErrOverflow, "uint64 word")
	}
	return n.Uint64(), nil
}

func wordAddress(w []byte) common.Address {
	return common.BytesToAddress(w)
}

func channelKey(channelID []byte) ([32]byte, error) {
	var key [32]byte
	if len(channelID) != len(key) {
		return key, errors.Wrapf(errors.ErrInput, "channel id of %d bytes", len(channelID))
	}
	copy(key[:], channelID)
	return key, nil
}

// multiSigned is the request layout accepted by openChannel and
// cooperativeWithdraw: the signed payload followed by the signatures of
// both parties, in the order of the payload parties.
type multiSigned struct {
	Payload []byte   `protobuf:"bytes,1,opt,name=payload,proto3" json:"payload,omitempty"`
	Sigs    [][]byte `protobuf:"bytes,2,rep,name=sigs,proto3" json:"sigs,omitempty"`
}

func (m *multiSigned) Reset()         { *m = multiSigned{} }
func (m *multiSigned) String() string { return proto.CompactTextString(m) }
func (*multiSigned) ProtoMessage()    {}
