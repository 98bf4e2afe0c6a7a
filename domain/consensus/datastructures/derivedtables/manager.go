package derivedtables

import (
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// Manager fans rollbacks, trims and per-block finalization out to every
// registered derived table, in registration order.
type Manager struct {
	tables []model.DerivedTable
}

// NewManager returns a Manager over the given tables.
func NewManager(tables ...model.DerivedTable) *Manager {
	return &Manager{tables: tables}
}

// Register adds a table. Tables must be registered before the chain
// starts processing blocks.
func (m *Manager) Register(table model.DerivedTable) {
	m.tables = append(m.tables, table)
}

// Tables returns the registered tables.
func (m *Manager) Tables() []model.DerivedTable {
	return m.tables
}

// Rollback rolls every table back to height.
func (m *Manager) Rollback(dbTx model.DBWriter, height uint32) error {
	for _, table := range m.tables {
		err := table.Rollback(dbTx, height)
		if err != nil {
			return errors.Wrapf(err, "failed to roll back table %s to height %d", table.Name(), height)
		}
	}
	return nil
}

// Trim trims every table at height.
func (m *Manager) Trim(dbTx model.DBWriter, height uint32) error {
	for _, table := range m.tables {
		err := table.Trim(dbTx, height)
		if err != nil {
			return errors.Wrapf(err, "failed to trim table %s at height %d", table.Name(), height)
		}
	}
	log.Debugf("Trimmed %d derived tables at height %d", len(m.tables), height)
	return nil
}

// Finish finalizes the current block in every table.
func (m *Manager) Finish(dbTx model.DBWriter) error {
	for _, table := range m.tables {
		err := table.Finish(dbTx)
		if err != nil {
			return errors.Wrapf(err, "failed to finish table %s", table.Name())
		}
	}
	return nil
}
