package blockprocessor

import (
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/infrastructure/metrics"
)

// PopOffTo rolls the chain back until commonBlock is the tip, in a single
// database transaction, and returns the detached blocks tip first. It
// returns nothing if commonBlock is not part of the chain.
func (bp *BlockProcessor) PopOffTo(commonBlock *model.Block) ([]*model.Block, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "PopOffTo")
	defer onEnd()

	bp.commitLock.Lock()
	defer bp.commitLock.Unlock()

	return bp.popOffTo(commonBlock)
}

// popOffTo must be called with commitLock held.
func (bp *BlockProcessor) popOffTo(commonBlock *model.Block) ([]*model.Block, error) {
	if minHeight := bp.minRollbackHeight(); commonBlock.Height() < minHeight {
		return nil, errors.Wrapf(model.ErrRollbackTooDeep,
			"rollback to height %d, the minimum is %d", commonBlock.Height(), minHeight)
	}
	onChain, err := bp.chainStore.HasBlock(bp.databaseContext, commonBlock.ID())
	if err != nil {
		return nil, err
	}
	if !onChain {
		log.Debugf("Block %s is not in the chain, nothing to pop off", commonBlock)
		return nil, nil
	}

	originalTip := bp.LastBlock()
	popped, err := bp.detachBlocks(commonBlock)
	if err != nil {
		bp.setTip(originalTip)
		return nil, err
	}
	bp.stagingCache.Reset()

	for _, block := range popped {
		bp.notifications.Notify(notifications.BlockPopped, block)
	}
	metrics.ObservePoppedBlocks(len(popped), commonBlock.Height())
	log.Infof("Popped off %d blocks back to %s at height %d", len(popped), commonBlock, commonBlock.Height())
	return popped, nil
}

func (bp *BlockProcessor) detachBlocks(commonBlock *model.Block) ([]*model.Block, error) {
	dbTx, err := bp.databaseContext.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.RollbackUnlessClosed()

	genesisID := bp.params.GenesisBlockID()
	var popped []*model.Block
	block := bp.LastBlock()
	for block.ID() != commonBlock.ID() {
		if block.ID() == genesisID {
			return nil, errors.Wrapf(model.ErrPopGenesis, "while popping off to %s", commonBlock)
		}
		previous, err := bp.detachLastBlock(dbTx, block)
		if err != nil {
			return nil, err
		}
		popped = append(popped, block)
		block = previous
	}

	err = bp.derivedTables.Rollback(dbTx, commonBlock.Height()+1)
	if err != nil {
		return nil, err
	}
	err = dbTx.Commit()
	if err != nil {
		return nil, err
	}
	return popped, nil
}

func (bp *BlockProcessor) detachLastBlock(dbTx model.DBTransaction, block *model.Block) (*model.Block, error) {
	previous, found, err := bp.chainStore.Block(dbTx, block.PreviousBlockID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("predecessor %s of block %s is missing",
			model.IDToString(block.PreviousBlockID), block)
	}
	err = bp.chainStore.DeleteBlock(dbTx, block)
	if err != nil {
		return nil, err
	}
	err = bp.chainStore.StoreTip(dbTx, previous.ID())
	if err != nil {
		return nil, err
	}
	bp.setTip(previous)
	return previous, nil
}
