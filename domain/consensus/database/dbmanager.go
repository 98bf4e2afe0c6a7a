package database

import (
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/infrastructure/db/database"
)

type dbManager struct {
	db database.Database
}

// New returns a DBManager over the given infrastructure database.
func New(db database.Database) model.DBManager {
	return &dbManager{db: db}
}

func (dbw *dbManager) Get(key []byte) ([]byte, error) {
	return dbw.db.Get(key)
}

func (dbw *dbManager) Has(key []byte) (bool, error) {
	return dbw.db.Has(key)
}

func (dbw *dbManager) Put(key []byte, value []byte) error {
	return dbw.db.Put(key, value)
}

func (dbw *dbManager) Delete(key []byte) error {
	return dbw.db.Delete(key)
}

func (dbw *dbManager) Begin() (model.DBTransaction, error) {
	transaction, err := dbw.db.Begin()
	if err != nil {
		return nil, err
	}
	return transaction, nil
}
