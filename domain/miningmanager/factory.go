package miningmanager

import (
	"github.com/pocnet/pocd/domain/miningmanager/mempool"
)

// Factory instantiates new mining managers
type Factory interface {
	NewMiningManager(consensus Consensus, mempool *mempool.Mempool) MiningManager
}

type factory struct{}

// NewMiningManager creates a new mining manager
func (f *factory) NewMiningManager(consensus Consensus, mempool *mempool.Mempool) MiningManager {
	return &miningManager{
		consensus: consensus,
		mempool:   mempool,
	}
}

// NewFactory creates a new mining manager factory
func NewFactory() Factory {
	return &factory{}
}
