package ethledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/paychan"
	"github.com/iov-one/simplex/x/protocol"
	"github.com/tendermint/tendermint/libs/log"
)

// Backend is the part of an Ethereum client used by the ledger.
// *ethclient.Client implements it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Config locates the contracts.
type Config struct {
	Ledger      common.Address
	PayRegistry common.Address
}

// Ledger is a protocol.Ledger backed by the ledger and pay registry
// contracts.
type Ledger struct {
	backend Backend
	conf    Config
	key     *ecdsa.PrivateKey
	ledger  *bind.BoundContract
	logger  log.Logger
}

var _ protocol.Ledger = (*Ledger)(nil)

// Dial connects to the JSON-RPC endpoint at url.
func Dial(url string, conf Config, key *ecdsa.PrivateKey, logger log.Logger) (*Ledger, error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "dial %s: %s", url, err)
	}
	return NewLedger(client, conf, key, logger), nil
}

// NewLedger returns a ledger submitting transactions signed with key.
func NewLedger(backend Backend, conf Config, key *ecdsa.PrivateKey, logger log.Logger) *Ledger {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Ledger{
		backend: backend,
		conf:    conf,
		key:     key,
		ledger:  bind.NewBoundContract(conf.Ledger, ledgerContract, backend, backend, backend),
		logger:  logger.With("module", "ledger"),
	}
}

func (l *Ledger) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := l.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrLedger, err.Error())
	}
	return head.Number.Uint64(), nil
}

// call runs a view method and returns its n output words.
func (l *Ledger) call(ctx context.Context, contract abi.ABI, to common.Address, n int, method string, args ...interface{}) ([][]byte, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "pack %s: %s", method, err)
	}
	out, err := l.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "call %s: %s", method, err)
	}
	return words(out, n)
}

func (l *Ledger) callLedger(ctx context.Context, n int, method string, channelID [32]byte) ([][]byte, error) {
	return l.call(ctx, ledgerContract, l.conf.Ledger, n, method, channelID)
}

func (l *Ledger) GetChannelInfo(ctx context.Context, channelID []byte, self common.Address) (*protocol.ChannelInfo, error) {
	id, err := channelKey(channelID)
	if err != nil {
		return nil, err
	}
	w, err := l.callLedger(ctx, 1, "getChannelStatus", id)
	if err != nil {
		return nil, err
	}
	status := paychan.ChannelStatus(wordInt(w[0]).Int64())
	if status == paychan.StatusUninitialized {
		return nil, errors.Wrap(errors.ErrNotFound, "channel")
	}
	info := protocol.ChannelInfo{Status: status}

	if w, err = l.callLedger(ctx, 1, "getTokenType", id); err != nil {
		return nil, err
	}
	tokenType := paychan.TokenType(wordInt(w[0]).Int64())
	if w, err = l.callLedger(ctx, 1, "getTokenContract", id); err != nil {
		return nil, err
	}
	info.Token = &paychan.TokenInfo{TokenType: tokenType}
	if tokenType == paychan.TokenType_ERC20 {
		info.Token.TokenAddress = wordAddress(w[0]).Bytes()
	}

	if w, err = l.callLedger(ctx, 1, "getDisputeTimeout", id); err != nil {
		return nil, err
	}
	if info.DisputeTimeout, err = wordUint64(w[0]); err != nil {
		return nil, err
	}
	if w, err = l.callLedger(ctx, 1, "getCooperativeWithdrawSeqNum", id); err != nil {
		return nil, err
	}
	if info.WithdrawSeq, err = wordUint64(w[0]); err != nil {
		return nil, err
	}

	// peers, deposits and withdrawals, two words each
	if w, err = l.callLedger(ctx, 6, "getBalanceMap", id); err != nil {
		return nil, err
	}
	info.Peers = [2]common.Address{wordAddress(w[0]), wordAddress(w[1])}
	me, other := 0, 1
	switch self {
	case info.Peers[0]:
	case info.Peers[1]:
		me, other = 1, 0
	default:
		return nil, errors.Wrapf(errors.ErrUnauthorized, "%s is not a channel party", self.Hex())
	}
	info.OnChain = paychan.OnChainBalance{
		SelfDeposit:    paychan.AmountBytes(wordInt(w[2+me])),
		PeerDeposit:    paychan.AmountBytes(wordInt(w[2+other])),
		SelfWithdrawal: paychan.AmountBytes(wordInt(w[4+me])),
		PeerWithdrawal: paychan.AmountBytes(wordInt(w[4+other])),
	}

	// receiver, amount, request time, recipient channel
	if w, err = l.callLedger(ctx, 4, "getWithdrawIntent", id); err != nil {
		return nil, err
	}
	if amount := wordInt(w[1]); amount.Sign() > 0 {
		requested, err := wordUint64(w[2])
		if err != nil {
			return nil, err
		}
		info.OnChain.PendingWithdrawalDeadline = requested + info.DisputeTimeout
		if wordAddress(w[0]) == self {
			info.OnChain.SelfPendingWithdrawal = paychan.AmountBytes(amount)
		} else {
			info.OnChain.PeerPendingWithdrawal = paychan.AmountBytes(amount)
		}
	}
	return &info, nil
}

func (l *Ledger) GetPayResolution(ctx context.Context, payID []byte) (*protocol.PayResolution, error) {
	id, err := channelKey(payID)
	if err != nil {
		return nil, err
	}
	w, err := l.call(ctx, registryContract, l.conf.PayRegistry, 2, "getPayInfo", id)
	if err != nil {
		return nil, err
	}
	deadline, err := wordUint64(w[1])
	if err != nil {
		return nil, err
	}
	amount := wordInt(w[0])
	if deadline == 0 && amount.Sign() == 0 {
		return nil, nil
	}
	return &protocol.PayResolution{Amount: amount, ResolveDeadline: deadline}, nil
}

func (l *Ledger) OpenChannel(ctx context.Context, resp *protocol.OpenChannelResponse) ([]byte, error) {
	var init paychan.PaymentChannelInitializer
	if err := proto.Unmarshal(resp.ChannelInitializer, &init); err != nil {
		return nil, errors.Wrap(errors.ErrLedger, err.Error())
	}
	dist := init.GetInitDistribution().GetDistribution()
	if len(dist) != 2 {
		return nil, errors.Wrap(errors.ErrLedger, "initializer requires two parties")
	}
	parties := [2]common.Address{
		common.BytesToAddress(dist[0].GetAccount()),
		common.BytesToAddress(dist[1].GetAccount()),
	}
	sigs, err := l.orderSigs(parties, resp.RequesterSig, resp.ApproverSig)
	if err != nil {
		return nil, err
	}
	req, err := proto.Marshal(&multiSigned{Payload: resp.ChannelInitializer, Sigs: sigs})
	if err != nil {
		return nil, errors.Wrap(errors.ErrLedger, err.Error())
	}

	opts := l.transactOpts(ctx)
	if init.InitDistribution.GetToken().GetTokenType() == paychan.TokenType_ETH && init.MsgValueReceiver < 2 {
		opts.Value = paychan.AmountFromBytes(dist[init.MsgValueReceiver].GetAmt())
	}
	receipt, err := l.transact(ctx, opts, "openChannel", req)
	if err != nil {
		return nil, err
	}
	for _, lg := range receipt.Logs {
		if lg.Address == l.conf.Ledger && len(lg.Topics) > 1 && lg.Topics[0] == openChannelTopic {
			return lg.Topics[1].Bytes(), nil
		}
	}
	return nil, errors.Wrap(errors.ErrLedger, "no open channel event")
}

func (l *Ledger) Deposit(ctx context.Context, channelID []byte, receiver common.Address, amount *big.Int) error {
	id, err := channelKey(channelID)
	if err != nil {
		return err
	}
	info, err := l.GetChannelInfo(ctx, channelID, receiver)
	if err != nil {
		return err
	}
	opts := l.transactOpts(ctx)
	transferFrom := amount
	if info.Token.GetTokenType() == paychan.TokenType_ETH {
		opts.Value = amount
		transferFrom = new(big.Int)
	}
	_, err = l.transact(ctx, opts, "deposit", id, receiver, transferFrom)
	return err
}

func (l *Ledger) CooperativeWithdraw(ctx context.Context, resp *protocol.CooperativeWithdrawResponse) error {
	var info protocol.CooperativeWithdrawInfo
	if err := proto.Unmarshal(resp.WithdrawInfo, &info); err != nil {
		return errors.Wrap(errors.ErrLedger, err.Error())
	}
	id, err := channelKey(info.ChannelId)
	if err != nil {
		return err
	}
	w, err := l.callLedger(ctx, 6, "getBalanceMap", id)
	if err != nil {
		return err
	}
	sigs, err := l.orderSigs([2]common.Address{wordAddress(w[0]), wordAddress(w[1])}, resp.RequesterSig, resp.ApproverSig)
	if err != nil {
		return err
	}
	req, err := proto.Marshal(&multiSigned{Payload: resp.WithdrawInfo, Sigs: sigs})
	if err != nil {
		return errors.Wrap(errors.ErrLedger, err.Error())
	}
	_, err = l.transact(ctx, l.transactOpts(ctx), "cooperativeWithdraw", req)
	return err
}

// orderSigs returns both signatures in the order of the parties. The
// requester is always the local key.
func (l *Ledger) orderSigs(parties [2]common.Address, requesterSig, approverSig []byte) ([][]byte, error) {
	self := bind.NewKeyedTransactor(l.key).From
	switch self {
	case parties[0]:
		return [][]byte{requesterSig, approverSig}, nil
	case parties[1]:
		return [][]byte{approverSig, requesterSig}, nil
	}
	return nil, errors.Wrapf(errors.ErrUnauthorized, "%s is not a channel party", self.Hex())
}

func (l *Ledger) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := bind.NewKeyedTransactor(l.key)
	opts.Context = ctx
	return opts
}

// transact submits a ledger transaction and waits until it is mined.
func (l *Ledger) transact(ctx context.Context, opts *bind.TransactOpts, method string, args ...interface{}) (*types.Receipt, error) {
	tx, err := l.ledger.Transact(opts, method, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "%s: %s", method, err)
	}
	l.logger.Info("transaction submitted", "method", method, "tx", tx.Hash().Hex())
	receipt, err := bind.WaitMined(ctx, l.backend, tx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "%s: %s", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errors.Wrapf(errors.ErrLedger, "%s reverted in %s", method, tx.Hash().Hex())
	}
	return receipt, nil
}
