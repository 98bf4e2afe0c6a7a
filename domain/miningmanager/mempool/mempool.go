package mempool

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
)

// Confirmations tells whether a transaction is already in the chain.
type Confirmations interface {
	HasTransaction(txID uint64) (bool, error)
}

// ConfirmationsFunc adapts a function to Confirmations.
type ConfirmationsFunc func(txID uint64) (bool, error)

// HasTransaction calls f(txID).
func (f ConfirmationsFunc) HasTransaction(txID uint64) (bool, error) {
	return f(txID)
}

// Mempool is the pool of unconfirmed transactions. When it is full the
// transaction added first is evicted.
type Mempool struct {
	config        *Config
	timeSource    model.TimeSource
	confirmations Confirmations

	// transactions is only ever read with Peek, Keys and Values, so it
	// keeps insertion order.
	transactions *lru.Cache[uint64, *model.Transaction]
}

// New returns an empty Mempool.
func New(config *Config, timeSource model.TimeSource, confirmations Confirmations) (*Mempool, error) {
	transactions, err := lru.NewWithEvict[uint64, *model.Transaction](config.MaximumTransactionCount,
		func(txID uint64, tx *model.Transaction) {
			log.Tracef("Transaction %s left the pool", tx)
		})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Mempool{
		config:        config,
		timeSource:    timeSource,
		confirmations: confirmations,
		transactions:  transactions,
	}, nil
}

// Subscribe makes the pool drop transactions confirmed or expired by every
// pushed block.
func (mp *Mempool) Subscribe(manager *notifications.Manager) {
	manager.Subscribe(notifications.BlockPushed, mp.HandleBlockPushed)
}

// Add puts a signed, unexpired and unconfirmed transaction in the pool.
// Adding a pooled transaction again is a no-op.
func (mp *Mempool) Add(tx *model.Transaction) error {
	if !tx.HasSignature() {
		return errors.Wrapf(ErrUnsigned, "transaction %s", tx)
	}
	if now := mp.timeSource.EpochTime(); tx.Expiration() < now {
		return errors.Wrapf(ErrExpired, "transaction %s expired at %d, now is %d", tx, tx.Expiration(), now)
	}
	confirmed, err := mp.confirmations.HasTransaction(tx.ID())
	if err != nil {
		return err
	}
	if confirmed {
		return errors.Wrapf(ErrAlreadyConfirmed, "transaction %s", tx)
	}

	if mp.transactions.Contains(tx.ID()) {
		return nil
	}
	evicted := mp.transactions.Add(tx.ID(), tx)
	if evicted {
		log.Debugf("Unconfirmed pool is full, evicted its oldest transaction")
	}
	return nil
}

// Get returns a pooled transaction.
func (mp *Mempool) Get(txID uint64) (*model.Transaction, bool) {
	return mp.transactions.Peek(txID)
}

// Count returns the number of pooled transactions.
func (mp *Mempool) Count() int {
	return mp.transactions.Len()
}

// All returns the pooled transactions in block-assembly order.
func (mp *Mempool) All() []*model.Transaction {
	txs := mp.transactions.Values()
	sort.Slice(txs, func(i, j int) bool { return txs[i].Less(txs[j]) })
	return txs
}

// Remove drops a transaction from the pool.
func (mp *Mempool) Remove(tx *model.Transaction) {
	mp.transactions.Remove(tx.ID())
}

// ProcessLater puts the transactions of detached blocks back in the pool.
// Those that can no longer be confirmed are dropped.
func (mp *Mempool) ProcessLater(txs []*model.Transaction) {
	for _, tx := range txs {
		err := mp.Add(tx)
		if err != nil {
			log.Debugf("Dropping transaction %s of a detached block: %s", tx, err)
		}
	}
}

// RequeueAll is called before a block is applied. Pooled transactions keep
// no provisional state outside of block application, so there is nothing
// to undo.
func (mp *Mempool) RequeueAll() {
	log.Tracef("Requeueing %d unconfirmed transactions", mp.transactions.Len())
}

// HandleBlockPushed drops the transactions of block, and every pooled
// transaction that expired before it.
func (mp *Mempool) HandleBlockPushed(block *model.Block) {
	for _, tx := range block.Transactions {
		mp.transactions.Remove(tx.ID())
	}
	for _, txID := range mp.transactions.Keys() {
		tx, ok := mp.transactions.Peek(txID)
		if ok && tx.Expiration() < block.Timestamp {
			mp.transactions.Remove(txID)
		}
	}
}
