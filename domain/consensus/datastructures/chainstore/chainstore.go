package chainstore

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/database"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// ChainStore keeps the committed chain: blocks by id and by height, the
// transaction index and the tip pointer. Every method runs against the
// given database context, so writes become visible when the caller's
// transaction commits.
type ChainStore struct {
	// recentBlocks caches decoded blocks. A block's content never changes
	// for a given id, so entries are only consulted once the database
	// confirms the block still exists.
	recentBlocks *lru.Cache[uint64, *model.Block]
}

// New instantiates a new ChainStore that keeps up to cacheSize decoded
// blocks in memory.
func New(cacheSize int) (*ChainStore, error) {
	recentBlocks, err := lru.New[uint64, *model.Block](cacheSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &ChainStore{recentBlocks: recentBlocks}, nil
}

// StoreBlock writes a linked block along with its height and transaction
// index entries.
func (cs *ChainStore) StoreBlock(dbTx model.DBWriter, block *model.Block) error {
	blockID := block.ID()
	height := block.Height()

	err := dbTx.Put(blockKey(blockID), serializeStoredBlock(block))
	if err != nil {
		return err
	}
	err = dbTx.Put(heightKey(height), idBytes(blockID))
	if err != nil {
		return err
	}
	for i, tx := range block.Transactions {
		location := transactionLocation{blockID: blockID, height: height, index: uint16(i)}
		err = dbTx.Put(transactionKey(tx.ID()), serializeTransactionLocation(location))
		if err != nil {
			return err
		}
		err = dbTx.Put(transactionHashKey(tx.FullHash()), idBytes(tx.ID()))
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteBlock removes a block along with its height and transaction
// index entries.
func (cs *ChainStore) DeleteBlock(dbTx model.DBWriter, block *model.Block) error {
	blockID := block.ID()
	for _, tx := range block.Transactions {
		err := dbTx.Delete(transactionKey(tx.ID()))
		if err != nil {
			return err
		}
		err = dbTx.Delete(transactionHashKey(tx.FullHash()))
		if err != nil {
			return err
		}
	}
	err := dbTx.Delete(heightKey(block.Height()))
	if err != nil {
		return err
	}
	err = dbTx.Delete(blockKey(blockID))
	if err != nil {
		return err
	}
	cs.recentBlocks.Remove(blockID)
	return nil
}

// Block returns the committed block with the given id. It returns false if
// no such block exists.
func (cs *ChainStore) Block(dbContext model.DBReader, id uint64) (*model.Block, bool, error) {
	serialized, err := dbContext.Get(blockKey(id))
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if block, ok := cs.recentBlocks.Get(id); ok {
		return block, true, nil
	}
	block, err := deserializeStoredBlock(serialized)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read block %d", id)
	}
	cs.recentBlocks.Add(id, block)
	return block, true, nil
}

// HasBlock returns whether a block with the given id is committed.
func (cs *ChainStore) HasBlock(dbContext model.DBReader, id uint64) (bool, error) {
	return dbContext.Has(blockKey(id))
}

// BlockIDAtHeight returns the id of the block at the given height. It
// returns false if the chain is shorter.
func (cs *ChainStore) BlockIDAtHeight(dbContext model.DBReader, height uint32) (uint64, bool, error) {
	serialized, err := dbContext.Get(heightKey(height))
	if err != nil {
		if database.IsNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	id, err := deserializeID(serialized)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// BlockIDsAfter returns up to limit ids of the blocks following the block
// with the given id, in chain order. It returns nothing if that block is
// not committed.
func (cs *ChainStore) BlockIDsAfter(dbContext model.DBReader, id uint64, limit int) ([]uint64, error) {
	block, found, err := cs.Block(dbContext, id)
	if err != nil || !found {
		return nil, err
	}

	ids := make([]uint64, 0)
	for height := block.Height() + 1; len(ids) < limit; height++ {
		nextID, found, err := cs.BlockIDAtHeight(dbContext, height)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		ids = append(ids, nextID)
	}
	return ids, nil
}

// BlocksAfter returns the blocks following the block with the given id,
// in chain order, stopping at limit blocks or once their total size
// exceeds maxBytes.
func (cs *ChainStore) BlocksAfter(dbContext model.DBReader, id uint64, limit int, maxBytes int) ([]*model.Block, error) {
	ids, err := cs.BlockIDsAfter(dbContext, id, limit)
	if err != nil {
		return nil, err
	}

	blocks := make([]*model.Block, 0, len(ids))
	totalBytes := 0
	for _, nextID := range ids {
		block, found, err := cs.Block(dbContext, nextID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.Errorf("block %d is indexed by height but missing", nextID)
		}
		blocks = append(blocks, block)
		totalBytes += block.ByteLength()
		if totalBytes > maxBytes {
			break
		}
	}
	return blocks, nil
}

// HasTransaction returns whether a transaction with the given id is
// committed.
func (cs *ChainStore) HasTransaction(dbContext model.DBReader, txID uint64) (bool, error) {
	return dbContext.Has(transactionKey(txID))
}

// HasTransactionByFullHash returns whether a transaction with the given
// full hash is committed.
func (cs *ChainStore) HasTransactionByFullHash(dbContext model.DBReader, fullHash model.Hash) (bool, error) {
	return dbContext.Has(transactionHashKey(fullHash))
}

// TransactionByFullHash returns the committed transaction with the given
// full hash and the height it was included at.
func (cs *ChainStore) TransactionByFullHash(dbContext model.DBReader, fullHash model.Hash) (
	tx *model.Transaction, height uint32, found bool, err error) {

	serializedID, err := dbContext.Get(transactionHashKey(fullHash))
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}
	txID, err := deserializeID(serializedID)
	if err != nil {
		return nil, 0, false, err
	}
	serializedLocation, err := dbContext.Get(transactionKey(txID))
	if err != nil {
		return nil, 0, false, errors.Wrapf(err, "transaction %d is indexed by hash but not by id", txID)
	}
	location, err := deserializeTransactionLocation(serializedLocation)
	if err != nil {
		return nil, 0, false, err
	}
	block, found, err := cs.Block(dbContext, location.blockID)
	if err != nil {
		return nil, 0, false, err
	}
	if !found || int(location.index) >= len(block.Transactions) {
		return nil, 0, false, errors.Errorf("transaction %d points to a missing location in block %d",
			txID, location.blockID)
	}
	return block.Transactions[location.index], location.height, true, nil
}

// StoreTip records the id of the chain tip.
func (cs *ChainStore) StoreTip(dbTx model.DBWriter, id uint64) error {
	return dbTx.Put(tipKey, idBytes(id))
}

// Tip returns the id of the chain tip. It returns false on an empty
// database.
func (cs *ChainStore) Tip(dbContext model.DBReader) (uint64, bool, error) {
	serialized, err := dbContext.Get(tipKey)
	if err != nil {
		if database.IsNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	id, err := deserializeID(serialized)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
