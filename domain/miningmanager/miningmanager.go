package miningmanager

import (
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/miningmanager/mempool"
	"github.com/pocnet/pocd/util/signing"
)

// MiningManager forges blocks as well as maintaining known transactions
// that have not yet been added to any block
type MiningManager interface {
	GenerateBlock(keyPair *signing.KeyPair, nonce uint64) (*model.Block, error)
	ValidateAndInsertTransaction(transaction *model.Transaction) error
	Transactions() []*model.Transaction
}

type miningManager struct {
	consensus Consensus
	mempool   *mempool.Mempool
}

// GenerateBlock forges a block from the pooled transactions on top of the
// chain tip
func (mm *miningManager) GenerateBlock(keyPair *signing.KeyPair, nonce uint64) (*model.Block, error) {
	return mm.consensus.GenerateBlock(keyPair, nonce)
}

// ValidateAndInsertTransaction validates the given transaction at the
// height of the next block, and adds it to the set of known transactions
// that have not yet been added to any block. Transactions that are not
// valid yet are kept.
func (mm *miningManager) ValidateAndInsertTransaction(transaction *model.Transaction) error {
	height := mm.consensus.LastBlock().Height() + 1
	err := mm.consensus.TransactionService().Validate(mm.consensus.DatabaseContext(), transaction, height)
	if err != nil && !errors.Is(err, model.ErrNotCurrentlyValid) {
		return err
	}
	return mm.mempool.Add(transaction)
}

// Transactions returns the pooled transactions in block-assembly order
func (mm *miningManager) Transactions() []*model.Transaction {
	return mm.mempool.All()
}
