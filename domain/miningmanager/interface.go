package miningmanager

import (
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/util/signing"
)

// Consensus is the part of the chain the mining manager works against.
type Consensus interface {
	LastBlock() *model.Block
	DatabaseContext() model.DBReader
	TransactionService() model.TransactionService
	GenerateBlock(keyPair *signing.KeyPair, nonce uint64) (*model.Block, error)
}
