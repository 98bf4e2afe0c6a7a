package blockimporter

import (
	"context"
	"time"

	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"github.com/pocnet/pocd/infrastructure/metrics"
)

// idleInterval is how long the importer waits between rounds.
const idleInterval = 10 * time.Millisecond

// Chain is the part of the block processor the importer commits through.
type Chain interface {
	LastBlock() *model.Block
	PushBlock(block *model.Block) error
}

// BlockImporter commits staged blocks, one at a time, on top of the chain
// tip.
type BlockImporter struct {
	chain Chain
	cache *stagingcache.StagingCache
}

// New returns a BlockImporter moving blocks from cache to chain.
func New(chain Chain, cache *stagingcache.StagingCache) *BlockImporter {
	return &BlockImporter{
		chain: chain,
		cache: cache,
	}
}

// Run imports staged blocks until ctx is cancelled. It returns early only
// on an invariant violation, which it does not recover from.
func (bi *BlockImporter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		imported, err := bi.ImportRound()
		if err != nil {
			log.Criticalf("Block import stopped: %+v", err)
			return err
		}
		if imported {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(idleInterval):
		}
	}
}

// ImportRound commits the staged block following the chain tip, if there
// is one. It returns whether a block was committed, and an error only for
// invariant violations.
func (bi *BlockImporter) ImportRound() (bool, error) {
	defer bi.updateMetrics()

	tip := bi.chain.LastBlock()
	block, ok := bi.cache.NextBlock(tip.ID())
	if !ok {
		if bi.cache.Size() > 0 && !bi.cache.IsLocked() {
			log.Debugf("Staged blocks do not extend the tip %s, dropping them", tip)
			bi.cache.Reset()
		}
		return false, nil
	}

	err := bi.chain.PushBlock(block)
	if err != nil {
		if model.IsInvariantViolation(err) {
			return false, err
		}
		bi.handleRejection(block, err)
		return false, nil
	}
	bi.cache.RemoveBlock(block)
	return true, nil
}

func (bi *BlockImporter) handleRejection(block *model.Block, err error) {
	origin := block.OriginPeer()
	switch {
	case ruleerrors.IsOutOfOrder(err):
		log.Debugf("Block %s is out of order: %s", block, err)
	case ruleerrors.IsNotAccepted(err):
		log.Infof("Block %s was not accepted: %s", block, err)
		if origin != nil {
			origin.Blacklist(err)
		}
	default:
		log.Errorf("Failed to import block %s: %+v", block, err)
	}
	bi.cache.RemoveBlock(block)
}

func (bi *BlockImporter) updateMetrics() {
	metrics.SetStagingCache(bi.cache.Size(), bi.cache.ByteSize(), bi.cache.UnverifiedSize())
}
