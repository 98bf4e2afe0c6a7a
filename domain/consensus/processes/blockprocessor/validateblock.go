package blockprocessor

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
)

// blockTotals are the sums of a block's transaction amounts and fees.
type blockTotals struct {
	amount int64
	fee    int64
}

// validateBlockInIsolation checks a block against its predecessor without
// reading the chain state beyond duplicate detection.
func (bp *BlockProcessor) validateBlockInIsolation(block *model.Block, previous *model.Block, now uint32) error {
	if block.PreviousBlockID != previous.ID() {
		return errors.Wrapf(ruleerrors.ErrPreviousBlockMismatch,
			"block %s follows %s instead of the tip %s",
			block, model.IDToString(block.PreviousBlockID), previous)
	}
	if block.Version != bp.params.BlockVersion {
		return errors.Wrapf(ruleerrors.ErrBadVersion,
			"block %s has version %d instead of %d", block, block.Version, bp.params.BlockVersion)
	}
	if block.Version > 1 && block.PreviousBlockHash != previous.Hash() {
		return errors.Wrapf(ruleerrors.ErrBadPreviousHash,
			"block %s does not carry the hash of %s", block, previous)
	}
	if block.Timestamp > now+bp.params.MaxTimestampDifference {
		return errors.Wrapf(ruleerrors.ErrTimeTooNew,
			"block %s timestamp %d is too far ahead of %d", block, block.Timestamp, now)
	}
	if block.Timestamp <= previous.Timestamp {
		return errors.Wrapf(ruleerrors.ErrTimeTooOld,
			"block %s timestamp %d is not after its predecessor's %d", block, block.Timestamp, previous.Timestamp)
	}

	blockID := block.ID()
	if blockID == 0 {
		return errors.Wrapf(ruleerrors.ErrZeroID, "block with a zero id")
	}
	exists, err := bp.chainStore.HasBlock(bp.databaseContext, blockID)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrapf(ruleerrors.ErrDuplicateBlock, "block %s is already in the chain", block)
	}

	if !block.IsVerified() {
		err = bp.blockVerifier.VerifyBlockWithPrevious(block, previous)
		if err != nil {
			return err
		}
		block.SetVerified()
	}

	if len(block.Transactions) > bp.params.MaxNumberOfTransactions {
		return errors.Wrapf(ruleerrors.ErrTooManyTransactions,
			"block %s has %d transactions", block, len(block.Transactions))
	}
	payloadLength := model.CalculatePayloadLength(block.Transactions)
	if int(block.PayloadLength) > bp.params.MaxPayloadLength || payloadLength != block.PayloadLength {
		return errors.Wrapf(ruleerrors.ErrPayloadLength,
			"block %s declares a payload of %d bytes, its transactions take %d",
			block, block.PayloadLength, payloadLength)
	}
	return nil
}

// validateTransactions runs the per-transaction checks, in block order,
// and the aggregate checks. It returns the transaction totals.
func (bp *BlockProcessor) validateTransactions(dbContext model.DBReader, block *model.Block,
	previous *model.Block, now uint32) (blockTotals, error) {

	var totals blockTotals
	duplicateKeys := mapset.NewThreadUnsafeSet[string]()
	for _, tx := range block.Transactions {
		err := bp.validateTransaction(dbContext, tx, block, previous, now, duplicateKeys)
		if err != nil {
			return totals, err
		}

		totals.amount += tx.Amount
		totals.fee += tx.Fee
		if totals.amount > chaincfg.MaxBalance || totals.fee > chaincfg.MaxBalance {
			return totals, errors.Wrapf(ruleerrors.ErrTotalsMismatch,
				"transaction totals of block %s overflow", block)
		}
	}

	if totals.amount > block.TotalAmount || totals.fee > block.TotalFee {
		return totals, errors.Wrapf(ruleerrors.ErrTotalsMismatch,
			"transactions of block %s move %d with %d fees, over the declared %d with %d fees",
			block, totals.amount, totals.fee, block.TotalAmount, block.TotalFee)
	}
	if model.CalculatePayloadHash(block.Transactions) != block.PayloadHash {
		return totals, errors.Wrapf(ruleerrors.ErrPayloadHashMismatch, "block %s", block)
	}
	return totals, nil
}

func (bp *BlockProcessor) validateTransaction(dbContext model.DBReader, tx *model.Transaction,
	block *model.Block, previous *model.Block, now uint32, duplicateKeys mapset.Set[string]) error {

	err := bp.validateTransactionInBlock(dbContext, tx, block, previous, now, duplicateKeys)
	if err != nil {
		return err
	}
	err = bp.transactionService.Validate(dbContext, tx, block.Height())
	if err != nil {
		return ruleerrors.NewTransactionRuleError(ruleerrors.ErrInvalidTransaction, tx, "%s", err)
	}
	return nil
}

// validateTransactionInBlock checks that tx fits the block and the chain
// below it. It does not validate the transaction itself.
func (bp *BlockProcessor) validateTransactionInBlock(dbContext model.DBReader, tx *model.Transaction,
	block *model.Block, previous *model.Block, now uint32, duplicateKeys mapset.Set[string]) error {

	if tx.Timestamp > now+bp.params.MaxTimestampDifference {
		return errors.Wrapf(ruleerrors.ErrTransactionTimeTooNew,
			"transaction %s timestamp %d is too far ahead of %d", tx, tx.Timestamp, now)
	}
	if tx.Timestamp > block.Timestamp+bp.params.MaxTimestampDifference || tx.Expiration() < block.Timestamp {
		return ruleerrors.NewTransactionRuleError(ruleerrors.ErrBadTransactionTimestamp, tx,
			"timestamp %d and expiration %d do not fit block timestamp %d",
			tx.Timestamp, tx.Expiration(), block.Timestamp)
	}

	exists, err := bp.chainStore.HasTransaction(dbContext, tx.ID())
	if err != nil {
		return err
	}
	if exists {
		return ruleerrors.NewTransactionRuleError(ruleerrors.ErrDuplicateTransaction, tx, "already in the chain")
	}

	if tx.ReferencedTransactionFullHash != nil {
		var resolved bool
		if previous.Height() < bp.params.ReferencedTransactionFullHashHeight {
			resolved, err = bp.chainStore.HasTransaction(dbContext,
				model.IDFromHash(*tx.ReferencedTransactionFullHash))
		} else {
			resolved, err = bp.HasAllReferencedTransactions(dbContext, tx, tx.Timestamp, 0)
		}
		if err != nil {
			return err
		}
		if !resolved {
			return ruleerrors.NewTransactionRuleError(ruleerrors.ErrMissingReferencedTransaction, tx,
				"referenced transaction %s cannot be resolved", tx.ReferencedTransactionFullHash)
		}
	}

	requiredVersion := bp.params.TransactionVersion(previous.Height())
	if tx.Version != requiredVersion {
		return ruleerrors.NewTransactionRuleError(ruleerrors.ErrBadTransactionVersion, tx,
			"version %d instead of %d", tx.Version, requiredVersion)
	}

	publicKeyMatches, err := bp.transactionService.VerifyPublicKey(dbContext, tx)
	if err != nil {
		return err
	}
	if !publicKeyMatches {
		return ruleerrors.NewTransactionRuleError(ruleerrors.ErrWrongPublicKey, tx,
			"sender %s is bound to another public key", model.IDToString(tx.SenderID()))
	}

	if previous.Height() >= bp.params.AutomatedTransactionHeight {
		onFork, err := bp.economicClustering.VerifyFork(dbContext, tx, previous.Height())
		if err != nil {
			return err
		}
		if !onFork {
			return ruleerrors.NewTransactionRuleError(ruleerrors.ErrEconomicClustering, tx,
				"block %s at height %d is not part of this chain",
				model.IDToString(tx.ECBlockID), tx.ECBlockHeight)
		}
	}

	if tx.ID() == 0 {
		return ruleerrors.NewTransactionRuleError(ruleerrors.ErrZeroTransactionID, tx, "zero id")
	}

	if duplicateKey, ok := bp.transactionService.DuplicateKey(tx); ok {
		if !duplicateKeys.Add(duplicateKey) {
			return ruleerrors.NewTransactionRuleError(ruleerrors.ErrDuplicateInBlock, tx,
				"another transaction of block %s has the key %s", block, duplicateKey)
		}
	}

	return nil
}
