package economicclustering

import (
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/datastructures/chainstore"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// economicClustering binds every transaction to a recent block of the
// chain it was created on, so that it cannot be replayed on a fork that
// does not contain that block.
type economicClustering struct {
	params     *chaincfg.Params
	chainStore *chainstore.ChainStore
}

// New instantiates a new EconomicClustering
func New(params *chaincfg.Params, chainStore *chainstore.ChainStore) model.EconomicClustering {
	return &economicClustering{
		params:     params,
		chainStore: chainStore,
	}
}

// ECBlock returns the block trailing by ECBlockDistance the last block
// forged at least ECRuleTerminator seconds before timestamp.
func (ec *economicClustering) ECBlock(dbContext model.DBReader, timestamp uint32) (*model.Block, error) {
	tip, err := ec.tip(dbContext)
	if err != nil {
		return nil, err
	}
	if timestamp+ec.params.MaxTimestampDifference < tip.Timestamp {
		return nil, errors.Errorf("timestamp %d is before the tip's %d", timestamp, tip.Timestamp)
	}

	var threshold uint32
	if timestamp > ec.params.ECRuleTerminator {
		threshold = timestamp - ec.params.ECRuleTerminator
	}
	anchor, err := ec.lastBlockNotAfter(dbContext, tip, threshold)
	if err != nil {
		return nil, err
	}

	var height uint32
	if anchor.Height() > ec.params.ECBlockDistance {
		height = anchor.Height() - ec.params.ECBlockDistance
	}
	return ec.blockAtHeight(dbContext, height)
}

// VerifyFork returns false if the transaction's economic clustering block
// is not the block at its declared height in the chain at currentHeight.
// Transactions referencing another transaction are bound through it.
func (ec *economicClustering) VerifyFork(dbContext model.DBReader, tx *model.Transaction, currentHeight uint32) (bool, error) {
	if tx.ReferencedTransactionFullHash != nil {
		return true, nil
	}
	if tx.ECBlockHeight > currentHeight {
		return false, nil
	}
	id, found, err := ec.chainStore.BlockIDAtHeight(dbContext, tx.ECBlockHeight)
	if err != nil {
		return false, err
	}
	return found && id == tx.ECBlockID, nil
}

func (ec *economicClustering) tip(dbContext model.DBReader) (*model.Block, error) {
	tipID, found, err := ec.chainStore.Tip(dbContext)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("the chain is empty")
	}
	tip, found, err := ec.chainStore.Block(dbContext, tipID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("tip %s is missing", model.IDToString(tipID))
	}
	return tip, nil
}

func (ec *economicClustering) blockAtHeight(dbContext model.DBReader, height uint32) (*model.Block, error) {
	id, found, err := ec.chainStore.BlockIDAtHeight(dbContext, height)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("no block at height %d", height)
	}
	block, found, err := ec.chainStore.Block(dbContext, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("block %s at height %d is missing", model.IDToString(id), height)
	}
	return block, nil
}

// lastBlockNotAfter binary searches the chain for the highest block whose
// timestamp is at most timestamp. Genesis is returned when no block is.
func (ec *economicClustering) lastBlockNotAfter(dbContext model.DBReader, tip *model.Block, timestamp uint32) (*model.Block, error) {
	if tip.Timestamp <= timestamp {
		return tip, nil
	}
	low, high := uint32(0), tip.Height()
	for low < high {
		middle := low + (high-low+1)/2
		block, err := ec.blockAtHeight(dbContext, middle)
		if err != nil {
			return nil, err
		}
		if block.Timestamp <= timestamp {
			low = middle
		} else {
			high = middle - 1
		}
	}
	return ec.blockAtHeight(dbContext, low)
}
