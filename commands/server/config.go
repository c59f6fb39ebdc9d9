package server

import (
	"encoding/json"
	"io/ioutil"

	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/gconf"
	"github.com/iov-one/simplex/store"
	"github.com/iov-one/simplex/x/protocol"
)

// ReadOptions loads the node options from a configuration file.
func ReadOptions(path string) (simplex.Options, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	var opts simplex.Options
	if err := json.Unmarshal(b, &opts); err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "cannot parse %s: %s", path, err)
	}
	return opts, nil
}

// LoadConfig stores the protocol configuration found in the options file
// and returns it. Nothing is stored if the configuration is not valid.
func LoadConfig(db gconf.Store, path string) (protocol.Configuration, error) {
	opts, err := ReadOptions(path)
	if err != nil {
		return protocol.Configuration{}, err
	}
	if err := protocol.InitConfig(db, opts); err != nil {
		return protocol.Configuration{}, errors.Wrap(err, path)
	}
	return protocol.LoadConfiguration(db)
}

// ValidateConfig checks the configuration file without touching the node
// database.
func ValidateConfig(path string) error {
	_, err := LoadConfig(store.MemStore(), path)
	return err
}
