package protocol

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/gconf"
)

const confPkg = "protocol"

// Duration is a time.Duration written as "30s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Configuration of the protocol engine.
type Configuration struct {
	// PayResolver is the address of the contract resolving conditional
	// payments on chain. It is part of every payment id.
	PayResolver   common.Address `json:"pay_resolver"`
	LedgerAddress common.Address `json:"ledger_address"`
	// PeerAddress is the service node all channels are opened with.
	PeerAddress            common.Address `json:"peer_address"`
	MaxPendingPays         uint32         `json:"max_pending_pays"`
	PayTimeoutBlocks       uint64         `json:"pay_timeout_blocks"`
	ResolveTimeoutBlocks   uint64         `json:"resolve_timeout_blocks"`
	ExpirySafetyMargin     uint64         `json:"expiry_safety_margin"`
	OpenDeadlineBlocks     uint64         `json:"open_deadline_blocks"`
	DisputeTimeoutBlocks   uint64         `json:"dispute_timeout_blocks"`
	WithdrawTimeout        Duration       `json:"withdraw_timeout"`
	WithdrawDeadlineBlocks uint64         `json:"withdraw_deadline_blocks"`
}

// DefaultConfiguration returns a configuration with every tunable set.
// Addresses must still be provided.
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxPendingPays:         1000,
		PayTimeoutBlocks:       10,
		ResolveTimeoutBlocks:   10,
		ExpirySafetyMargin:     4,
		OpenDeadlineBlocks:     100,
		DisputeTimeoutBlocks:   10,
		WithdrawTimeout:        Duration(30 * time.Second),
		WithdrawDeadlineBlocks: 10,
	}
}

func (c *Configuration) Validate() error {
	var errs error
	if c.PayResolver == (common.Address{}) {
		errs = errors.AppendField(errs, "PayResolver", errors.ErrEmpty)
	}
	if c.LedgerAddress == (common.Address{}) {
		errs = errors.AppendField(errs, "LedgerAddress", errors.ErrEmpty)
	}
	if c.PeerAddress == (common.Address{}) {
		errs = errors.AppendField(errs, "PeerAddress", errors.ErrEmpty)
	}
	if c.MaxPendingPays == 0 {
		errs = errors.AppendField(errs, "MaxPendingPays", errors.ErrInput)
	}
	if c.PayTimeoutBlocks == 0 {
		errs = errors.AppendField(errs, "PayTimeoutBlocks", errors.ErrInput)
	}
	if c.OpenDeadlineBlocks == 0 {
		errs = errors.AppendField(errs, "OpenDeadlineBlocks", errors.ErrInput)
	}
	if c.WithdrawTimeout <= 0 {
		errs = errors.AppendField(errs, "WithdrawTimeout", errors.ErrInput)
	}
	return errs
}

// InitConfig stores the configuration found in the node options, with
// defaults for every value not set.
func InitConfig(db gconf.Store, opts simplex.Options) error {
	conf := DefaultConfiguration()
	return gconf.InitConfig(db, opts, confPkg, &conf)
}

// LoadConfiguration returns the stored configuration.
func LoadConfiguration(db gconf.ReadStore) (Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, confPkg, &conf); err != nil {
		return conf, errors.Wrap(err, "load configuration")
	}
	return conf, nil
}
