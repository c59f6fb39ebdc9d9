package orm

import (
	"github.com/iov-one/simplex/errors"
	amino "github.com/tendermint/go-amino"
)

// Records are stored using amino binary encoding. Wire messages exchanged
// with the peer use protobuf instead and are kept in records as opaque
// bytes, so that signed payloads are never re-encoded.
var cdc = amino.NewCodec()

// Marshal serializes a record.
func Marshal(m Model) ([]byte, error) {
	raw, err := cdc.MarshalBinaryBare(m)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrModel, "marshal %T: %s", m, err)
	}
	return raw, nil
}

// Unmarshal loads serialized record into dest.
func Unmarshal(raw []byte, dest Model) error {
	if err := cdc.UnmarshalBinaryBare(raw, dest); err != nil {
		return errors.Wrapf(errors.ErrModel, "unmarshal %T: %s", dest, err)
	}
	return nil
}
