package blockprocessor

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"github.com/pocnet/pocd/util/signing"
)

// ErrStagingCacheNotEmpty is returned by GenerateBlock while downloaded
// blocks are waiting to be committed.
var ErrStagingCacheNotEmpty = errors.New("staging cache is not empty")

// GenerateBlock forges a block on top of the chain tip from the unconfirmed
// pool and commits it through the same path as downloaded blocks.
func (bp *BlockProcessor) GenerateBlock(keyPair *signing.KeyPair, nonce uint64) (*model.Block, error) {
	bp.commitLock.Lock()
	defer bp.commitLock.Unlock()

	if bp.stagingCache.Size() > 0 {
		return nil, errors.WithStack(ErrStagingCacheNotEmpty)
	}

	previous := bp.LastBlock()
	now := bp.timeSource.EpochTime()
	block := &model.Block{
		Version:             bp.params.BlockVersion,
		Timestamp:           now,
		PreviousBlockID:     previous.ID(),
		GeneratorPublicKey:  keyPair.PublicKey(),
		GenerationSignature: blockverifier.GenerationSignature(previous),
		Nonce:               nonce,
	}
	if block.Version > 1 {
		block.PreviousBlockHash = previous.Hash()
	}
	err := bp.difficultyManager.LinkBlock(block, previous, bp.lookup)
	if err != nil {
		return nil, err
	}

	dbTx, err := bp.databaseContext.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.RollbackUnlessClosed()

	selected, err := bp.selectTransactions(dbTx, block, previous, now)
	if err != nil {
		return nil, err
	}

	// Provisional effects are applied only to learn what the block moves.
	var transactions []*model.Transaction
	for _, tx := range selected {
		applied, err := bp.transactionService.ApplyUnconfirmed(dbTx, tx)
		if err != nil {
			return nil, err
		}
		if !applied {
			log.Debugf("Leaving out double spending transaction %s", tx)
			continue
		}
		transactions = append(transactions, tx)
		block.TotalAmount += tx.Amount
		block.TotalFee += tx.Fee
	}
	if bp.recurringPayments.IsEnabled() {
		recurringFee, err := bp.recurringPayments.ApplyUnconfirmed(dbTx, block.Timestamp)
		if err != nil {
			return nil, err
		}
		block.TotalFee += recurringFee
	}

	block.Transactions = transactions
	block.PayloadLength = model.CalculatePayloadLength(transactions)
	block.PayloadHash = model.CalculatePayloadHash(transactions)

	if block.Height() >= bp.params.AutomatedTransactionHeight {
		freeBytes := bp.params.MaxPayloadLength - int(block.PayloadLength)
		payload, amount, fee, err := bp.contractExecutor.BuildBlockPayload(dbTx, freeBytes, block.Height())
		if err != nil {
			return nil, err
		}
		block.ContractPayload = payload
		block.TotalAmount += amount
		block.TotalFee += fee
	}

	err = dbTx.Rollback()
	if err != nil {
		return nil, err
	}

	err = signing.SignBlock(block, keyPair)
	if err != nil {
		return nil, err
	}

	log.Debugf("Generated block %s at height %d with %d transactions",
		block, block.Height(), len(block.Transactions))
	err = bp.pushAndNotify(block)
	if err != nil {
		return nil, err
	}
	bp.notifications.Notify(notifications.BlockGenerated, block)
	return block, nil
}

// selectTransactions greedily packs pooled transactions in assembly order
// until a full pass over the pool adds nothing.
func (bp *BlockProcessor) selectTransactions(dbContext model.DBReader, block *model.Block,
	previous *model.Block, now uint32) ([]*model.Transaction, error) {

	pool := bp.unconfirmedPool.All()
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Less(pool[j]) })

	var selected []*model.Transaction
	chosen := mapset.NewThreadUnsafeSet[uint64]()
	duplicateKeys := mapset.NewThreadUnsafeSet[string]()
	payloadLength := 0

	for payloadLength <= bp.params.MaxPayloadLength && len(selected) < bp.params.MaxNumberOfTransactions {
		selectedBefore := len(selected)
		for _, tx := range pool {
			if len(selected) >= bp.params.MaxNumberOfTransactions {
				break
			}
			if chosen.Contains(tx.ID()) || payloadLength+tx.Size() > bp.params.MaxPayloadLength {
				continue
			}

			err := bp.validateTransactionInBlock(dbContext, tx, block, previous, now, duplicateKeys)
			if err != nil {
				if !ruleerrors.IsRuleError(err) {
					return nil, err
				}
				continue
			}

			err = bp.transactionService.Validate(dbContext, tx, block.Height())
			if err != nil {
				bp.releaseDuplicateKey(duplicateKeys, tx)
				if !errors.Is(err, model.ErrNotCurrentlyValid) {
					log.Debugf("Evicting invalid transaction %s: %s", tx, err)
					bp.unconfirmedPool.Remove(tx)
				}
				continue
			}

			selected = append(selected, tx)
			chosen.Add(tx.ID())
			payloadLength += tx.Size()
		}
		if len(selected) == selectedBefore {
			break
		}
	}

	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Less(selected[j]) })
	return selected, nil
}

func (bp *BlockProcessor) releaseDuplicateKey(duplicateKeys mapset.Set[string], tx *model.Transaction) {
	if duplicateKey, ok := bp.transactionService.DuplicateKey(tx); ok {
		duplicateKeys.Remove(duplicateKey)
	}
}
