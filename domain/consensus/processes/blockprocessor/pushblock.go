package blockprocessor

import (
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
	"github.com/pocnet/pocd/domain/consensus/processes/blockprocessor/blocklogger"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/infrastructure/metrics"
)

// PushBlock validates a block and commits it on top of the chain tip in a
// single database transaction. Any error leaves the committed chain and
// the tip as they were, and empties the staging cache. Rejections are
// rule errors; a rejection caused by a transaction also evicts that
// transaction from the unconfirmed pool.
func (bp *BlockProcessor) PushBlock(block *model.Block) error {
	onEnd := logger.LogAndMeasureExecutionTime(log, "PushBlock")
	defer onEnd()

	bp.commitLock.Lock()
	defer bp.commitLock.Unlock()

	return bp.pushAndNotify(block)
}

// pushAndNotify must be called with commitLock held.
func (bp *BlockProcessor) pushAndNotify(block *model.Block) error {
	started := time.Now()
	err := bp.pushBlock(block)
	metrics.ObservePushBlock(err, block.Height(), started)
	if err != nil {
		log.Tracef("Rejected block %s: %s", logger.NewLogClosure(func() string {
			return spew.Sdump(block)
		}), err)
		if tx, ok := ruleerrors.TransactionOf(err); ok {
			bp.unconfirmedPool.Remove(tx)
		}
		return err
	}

	bp.notifications.Notify(notifications.BlockPushed, block)
	blocklogger.LogBlock(block)
	log.Debugf("Pushed block %s at height %d", block, block.Height())

	if block.Timestamp+bp.params.MaxTimestampDifference >= bp.timeSource.EpochTime() {
		bp.broadcaster.BroadcastBlock(block)
	}
	return nil
}

// pushBlock must be called with commitLock held.
func (bp *BlockProcessor) pushBlock(block *model.Block) error {
	previous := bp.LastBlock()
	err := bp.acceptBlock(block, previous)
	if err != nil {
		bp.setTip(previous)
		bp.stagingCache.Reset()
		return err
	}
	return nil
}

func (bp *BlockProcessor) acceptBlock(block *model.Block, previous *model.Block) error {
	now := bp.timeSource.EpochTime()
	err := bp.validateBlockInIsolation(block, previous, now)
	if err != nil {
		return err
	}
	err = bp.difficultyManager.LinkBlock(block, previous, bp.lookup)
	if err != nil {
		return err
	}

	dbTx, err := bp.databaseContext.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	totals, err := bp.validateTransactions(dbTx, block, previous, now)
	if err != nil {
		return err
	}

	bp.notifications.Notify(notifications.BeforeBlockAccept, block)
	bp.unconfirmedPool.RequeueAll()

	err = bp.chainStore.StoreBlock(dbTx, block)
	if err != nil {
		return err
	}
	err = bp.chainStore.StoreTip(dbTx, block.ID())
	if err != nil {
		return err
	}
	bp.setTip(block)

	err = bp.applyBlock(dbTx, block, totals)
	if err != nil {
		return err
	}

	trimHeight, shouldTrim := bp.trimHeight(block.Height())
	if shouldTrim {
		err = bp.derivedTables.Trim(dbTx, trimHeight)
		if err != nil {
			return err
		}
	}
	err = bp.derivedTables.Finish(dbTx)
	if err != nil {
		return err
	}

	err = dbTx.Commit()
	if err != nil {
		return err
	}
	if shouldTrim {
		bp.lastTrimHeight = trimHeight
	}
	return nil
}

// applyBlock applies the provisional and then the confirmed effects of a
// block, reconciling the declared totals with the contract payload and the
// recurring payments.
func (bp *BlockProcessor) applyBlock(dbTx model.DBWriter, block *model.Block, totals blockTotals) error {
	for _, tx := range block.Transactions {
		applied, err := bp.transactionService.ApplyUnconfirmed(dbTx, tx)
		if err != nil {
			return err
		}
		if !applied {
			return ruleerrors.NewTransactionRuleError(ruleerrors.ErrDoubleSpending, tx,
				"provisional effect of the transaction cannot be applied")
		}
	}

	remainingAmount := block.TotalAmount - totals.amount
	remainingFee := block.TotalFee - totals.fee

	if block.Height() >= bp.params.AutomatedTransactionHeight {
		contractAmount, contractFee, err := bp.contractExecutor.ValidateBlockPayload(dbTx, block.ContractPayload, block.Height())
		if err != nil {
			return errors.Wrapf(ruleerrors.ErrContractPayload, "block %s: %s", block, err)
		}
		remainingAmount -= contractAmount
		remainingFee -= contractFee
	} else if len(block.ContractPayload) > 0 {
		return errors.Wrapf(ruleerrors.ErrContractPayload,
			"block %s carries a contract payload below height %d", block, bp.params.AutomatedTransactionHeight)
	}

	if bp.recurringPayments.IsEnabled() {
		recurringFee, err := bp.recurringPayments.ApplyUnconfirmed(dbTx, block.Timestamp)
		if err != nil {
			return err
		}
		remainingFee -= recurringFee
	}

	if remainingAmount != 0 || remainingFee != 0 {
		return errors.Wrapf(ruleerrors.ErrTotalsMismatch,
			"declared totals of block %s are off by %d in amount and %d in fees",
			block, remainingAmount, remainingFee)
	}

	bp.notifications.Notify(notifications.BeforeBlockApply, block)
	err := bp.blockApplier.ApplyBlock(dbTx, block)
	if err != nil {
		return err
	}
	if bp.recurringPayments.IsEnabled() {
		err = bp.recurringPayments.ApplyConfirmed(dbTx, block)
		if err != nil {
			return err
		}
	}
	bp.notifications.Notify(notifications.AfterBlockApply, block)
	return nil
}

// trimHeight returns the height to trim the derived tables at after
// committing a block at height, if any.
func (bp *BlockProcessor) trimHeight(height uint32) (uint32, bool) {
	if !bp.config.TrimDerivedTables || height%bp.params.TrimInterval != 0 || height <= bp.params.MaxRollback {
		return 0, false
	}
	return height - bp.params.MaxRollback, true
}
