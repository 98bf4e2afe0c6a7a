package blockprocessor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/infrastructure/metrics"
)

// drainPollInterval is how often fork resolution checks whether the
// staging cache drained.
const drainPollInterval = 100 * time.Millisecond

// ResolveFork switches the chain to the fork offered by peer if it is
// heavier. forkBlocks must follow commonBlock in chain order. The staging
// cache refuses new blocks until it drains, and is reset at the end.
//
// If some fork blocks are accepted but the chain ends up no heavier than
// before, the peer is blacklisted, the fork is popped off again and the
// original blocks are replayed.
func (bp *BlockProcessor) ResolveFork(ctx context.Context, peer model.BlockOrigin,
	commonBlock *model.Block, forkBlocks []*model.Block) error {

	onEnd := logger.LogAndMeasureExecutionTime(log, "ResolveFork")
	defer onEnd()

	log.Warnf("A fork at %s is detected. Waiting for the staging cache to drain.", commonBlock)
	bp.stagingCache.Lock()
	defer bp.stagingCache.Unlock()
	defer bp.stagingCache.Reset()

	for bp.stagingCache.Size() > 0 {
		if _, ok := bp.stagingCache.NextBlock(bp.LastBlock().ID()); !ok {
			log.Debugf("Staged blocks do not extend the tip, dropping them")
			bp.stagingCache.Reset()
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(drainPollInterval):
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	bp.commitLock.Lock()
	defer bp.commitLock.Unlock()

	log.Warnf("Staging cache drained. Processing the fork.")
	originalDifficulty := bp.LastBlock().CumulativeDifficulty()
	myPopped, err := bp.popOffTo(commonBlock)
	if err != nil {
		return err
	}

	pushed := 0
	if bp.LastBlock().ID() == commonBlock.ID() {
		for _, block := range forkBlocks {
			if bp.LastBlock().ID() != block.PreviousBlockID {
				continue
			}
			err := bp.pushAndNotify(block)
			if err != nil {
				log.Infof("Fork block %s from %s was not accepted: %s", block, peer.Address(), err)
				if ruleerrors.IsRuleError(err) {
					peer.Blacklist(err)
				}
				break
			}
			pushed++
		}
	}

	if pushed > 0 && !bp.LastBlock().CumulativeDifficulty().Gt(originalDifficulty) {
		log.Warnf("The fork offered by %s is not heavier than the original chain, blacklisting", peer.Address())
		peer.Blacklist(errors.New("offered a fork that is not heavier"))
		peerPopped, err := bp.popOffTo(commonBlock)
		if err != nil {
			return err
		}
		for _, block := range peerPopped {
			bp.unconfirmedPool.ProcessLater(block.Transactions)
		}
		pushed = 0
		metrics.ObserveForkResolution(metrics.ForkUnderpower)
	}

	if pushed == 0 {
		bp.restore(myPopped)
		metrics.ObserveForkResolution(metrics.ForkRestored)
	} else {
		for _, block := range myPopped {
			bp.unconfirmedPool.ProcessLater(block.Transactions)
		}
		metrics.ObserveForkResolution(metrics.ForkSwitched)
		log.Warnf("Switched to the better chain at %s, height %d", bp.LastBlock(), bp.Height())
	}
	log.Warnf("Fork processing complete")
	return nil
}

// restore replays popped blocks, given tip first, until one is refused.
func (bp *BlockProcessor) restore(popped []*model.Block) {
	for i := len(popped) - 1; i >= 0; i-- {
		block := popped[i]
		err := bp.pushAndNotify(block)
		if err != nil {
			log.Warnf("Popped off block %s is no longer acceptable: %s", block, err)
			return
		}
	}
}
