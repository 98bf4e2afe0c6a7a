package ldb

import (
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/infrastructure/db/database"
	"github.com/syndtr/goleveldb/leveldb"
)

// pendingWrite is a write that was made within a transaction
// and is not yet committed. A nil value with deleted set marks
// a deletion.
type pendingWrite struct {
	value   []byte
	deleted bool
}

// LevelDBTransaction is a thin wrapper around native leveldb
// batches and snapshots. It's used for committing or rolling
// back multiple writes as a single unit. Writes made within the
// transaction are visible to reads made within it.
type LevelDBTransaction struct {
	db       *LevelDB
	snapshot *leveldb.Snapshot
	batch    *leveldb.Batch
	pending  map[string]pendingWrite
	isClosed bool
}

// Commit commits whatever changes were made to the database
// within this transaction.
func (tx *LevelDBTransaction) Commit() error {
	if tx.isClosed {
		return errors.New("cannot commit a closed transaction")
	}

	tx.isClosed = true
	tx.snapshot.Release()
	tx.pending = nil
	return errors.WithStack(tx.db.ldb.Write(tx.batch, nil))
}

// Rollback rolls back whatever changes were made to the
// database within this transaction.
func (tx *LevelDBTransaction) Rollback() error {
	if tx.isClosed {
		return errors.New("cannot rollback a closed transaction")
	}

	tx.isClosed = true
	tx.snapshot.Release()
	tx.batch.Reset()
	tx.pending = nil
	return nil
}

// RollbackUnlessClosed rolls back changes that were made to
// the database within the transaction, unless the transaction
// had already been closed using either Rollback or Commit.
func (tx *LevelDBTransaction) RollbackUnlessClosed() error {
	if tx.isClosed {
		return nil
	}
	return tx.Rollback()
}

// Put sets the value for the given key. It overwrites
// any previous value for that key.
func (tx *LevelDBTransaction) Put(key []byte, value []byte) error {
	if tx.isClosed {
		return errors.New("cannot put into a closed transaction")
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	tx.batch.Put(key, valueCopy)
	tx.pending[string(key)] = pendingWrite{value: valueCopy}
	return nil
}

// Get gets the value for the given key. It returns
// ErrNotFound if the given key does not exist.
func (tx *LevelDBTransaction) Get(key []byte) ([]byte, error) {
	if tx.isClosed {
		return nil, errors.New("cannot get from a closed transaction")
	}

	if write, ok := tx.pending[string(key)]; ok {
		if write.deleted {
			return nil, errors.Wrapf(database.ErrNotFound,
				"key %s not found", key)
		}
		return write.value, nil
	}

	data, err := tx.snapshot.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, errors.Wrapf(database.ErrNotFound,
				"key %s not found", key)
		}
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// Has returns true if the database does contains the
// given key.
func (tx *LevelDBTransaction) Has(key []byte) (bool, error) {
	if tx.isClosed {
		return false, errors.New("cannot has from a closed transaction")
	}

	if write, ok := tx.pending[string(key)]; ok {
		return !write.deleted, nil
	}

	exists, err := tx.snapshot.Has(key, nil)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return exists, nil
}

// Delete deletes the value for the given key. Will not
// return an error if the key doesn't exist.
func (tx *LevelDBTransaction) Delete(key []byte) error {
	if tx.isClosed {
		return errors.New("cannot delete from a closed transaction")
	}

	tx.batch.Delete(key)
	tx.pending[string(key)] = pendingWrite{deleted: true}
	return nil
}
