package node

import (
	"github.com/iov-one/simplex"
	"github.com/iov-one/simplex/errors"
	"github.com/iov-one/simplex/store"
	"github.com/iov-one/simplex/store/iavl"
	dbm "github.com/tendermint/tendermint/libs/db"
)

const dbName = "simplex"

// OpenStore opens the node database in dir. A versioned store keeps every
// former state of the channel and payment records in an iavl tree, a
// plain one keeps the latest state only. Close must be called once the
// store is no longer used.
func OpenStore(dir string, versioned bool) (kv simplex.CacheableKVStore, cleanup func(), err error) {
	defer errors.Recover(&err)

	db := dbm.NewDB(dbName, dbm.GoLevelDBBackend, dir)
	if !versioned {
		return store.NewDBStore(db), db.Close, nil
	}
	commit, err := iavl.NewCommitStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return commit, db.Close, nil
}
