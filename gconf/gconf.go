package gconf

import (
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/orm"
)

// ReadStore is a subset of simplex.ReadOnlyKVStore.
type ReadStore interface {
	Get([]byte) ([]byte, error)
	Has([]byte) (bool, error)
}

// Store is a subset of simplex.KVStore.
type Store interface {
	ReadStore
	Set([]byte, []byte) error
}

// Configuration is any validated record that can be stored as a package
// configuration.
type Configuration interface {
	orm.Model
}

func confKey(pkg string) []byte {
	return []byte("_c:" + pkg)
}

// Save will Validate the object, before writing it to a special "configuration"
// singleton for that package name.
func Save(db Store, pkg string, src Configuration) error {
	key := confKey(pkg)
	if err := src.Validate(); err != nil {
		return errors.Wrapf(err, "validation: key %q", key)
	}
	raw, err := orm.Marshal(src)
	if err != nil {
		return errors.Wrapf(err, "marshal: key %q", key)
	}
	if raw == nil {
		raw = []byte{}
	}
	return db.Set(key, raw)
}

// Load reads the configuration singleton of given package into dst.
// ErrNotFound is returned if the package was never configured.
func Load(db ReadStore, pkg string, dst Configuration) error {
	key := confKey(pkg)
	// a zero value configuration is encoded as empty bytes
	switch ok, err := db.Has(key); {
	case err != nil:
		return err
	case !ok:
		return errors.Wrapf(errors.ErrNotFound, "key %q", key)
	}
	raw, err := db.Get(key)
	if err != nil {
		return err
	}
	if err := orm.Unmarshal(raw, dst); err != nil {
		return errors.Wrapf(err, "unmarshal: key %q", key)
	}
	return nil
}

// InitConfig will take opts["conf"][pkg], parse it into the given Configuration object
// validate it, and store under the proper key in the database.
// Values already present in conf are kept unless the options override them,
// which allows to pass a configuration with defaults filled in.
// Returns an error if anything goes wrong
func InitConfig(db Store, opts simplex.Options, pkg string, conf Configuration) error {
	var confOptions simplex.Options
	if err := opts.ReadOptions("conf", &confOptions); err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}
	if confOptions[pkg] == nil {
		return errors.Wrapf(errors.ErrNotFound, "no configuration for %q package", pkg)
	}
	if err := confOptions.ReadOptions(pkg, conf); err != nil {
		return errors.Wrapf(errors.ErrInput, "read configuration for %s: %s", pkg, err)
	}
	if err := Save(db, pkg, conf); err != nil {
		return errors.Wrapf(err, "save configuration for %s", pkg)
	}
	return nil
}
