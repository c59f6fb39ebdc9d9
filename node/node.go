package node

import (
	"context"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/app"
	"github.com/iov-one/simplex/crypto"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/x/protocol"
	"github.com/iov-one/simplex/x/utils"
	"github.com/tendermint/tendermint/libs/log"
)

// Session is the subscription side of a transport. It authenticates with
// auth and delivers every received message to sink, in order.
type Session interface {
	Run(ctx context.Context, auth *protocol.AuthReq, sink func(*simplex.CelerMsg)) error
}

// Node is a payment channel node of a single party.
type Node struct {
	ctrl       *protocol.Controller
	dispatcher *app.Dispatcher
	logger     log.Logger
}

// New returns a node operating on db. The configuration is validated and
// every message type must be routed.
func New(conf protocol.Configuration, db simplex.CacheableKVStore, signer crypto.Signer, ledger protocol.Ledger, transport protocol.Transport, logger log.Logger) (*Node, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.With("addr", signer.Address().Hex())

	ctrl := protocol.NewController(db, signer, ledger, transport, conf)
	router := app.NewRouter()
	protocol.RegisterRoutes(router, ctrl)
	if err := router.Validate(); err != nil {
		return nil, err
	}
	handler := app.ChainDecorators(
		utils.NewLogging(),
		utils.NewRecovery(),
	).WithHandler(simplex.HandlerFunc(router.Dispatch))

	ctx := simplex.WithLogger(context.Background(), logger)
	return &Node{
		ctrl:       ctrl,
		dispatcher: app.NewDispatcher(ctx, handler),
		logger:     logger,
	}, nil
}

// Controller gives access to the outbound operations and queries.
func (n *Node) Controller() *protocol.Controller {
	return n.ctrl
}

// Deliver queues an inbound message. It never blocks.
func (n *Node) Deliver(msg *simplex.CelerMsg) {
	n.dispatcher.Enqueue(msg)
}

// Wait blocks until every delivered message was handled.
func (n *Node) Wait() {
	n.dispatcher.Wait()
}

// Connect authenticates with the service node and handles its messages
// until the session ends. Messages already delivered are handled before
// Connect returns.
func (n *Node) Connect(ctx context.Context, s Session) error {
	auth, err := n.ctrl.AuthRequest()
	if err != nil {
		return errors.Wrap(err, "auth request")
	}
	n.logger.Info("connecting to service node")
	err = s.Run(ctx, auth, n.Deliver)
	n.dispatcher.Wait()
	if err != nil {
		n.logger.Error("session closed", "err", err)
		return err
	}
	n.logger.Info("session closed")
	return nil
}
