package blockprocessor

import (
	"github.com/pocnet/pocd/domain/consensus/model"
)

const (
	// maxReferenceDepth bounds the length of a reference chain.
	maxReferenceDepth = 10

	// maxReferenceAge bounds, in seconds, how old the root of a
	// reference chain may be.
	maxReferenceAge = 60 * 1440 * 60
)

// HasAllReferencedTransactions returns whether the reference chain of tx
// resolves within maxReferenceDepth hops to a transaction created less
// than maxReferenceAge seconds before timestamp. count is the number of
// hops already taken.
func (bp *BlockProcessor) HasAllReferencedTransactions(dbContext model.DBReader, tx *model.Transaction,
	timestamp uint32, count int) (bool, error) {

	if tx.ReferencedTransactionFullHash == nil {
		return int64(timestamp)-int64(tx.Timestamp) < maxReferenceAge && count < maxReferenceDepth, nil
	}
	if count >= maxReferenceDepth {
		return false, nil
	}

	referenced, _, found, err := bp.chainStore.TransactionByFullHash(dbContext, *tx.ReferencedTransactionFullHash)
	if err != nil || !found {
		return false, err
	}
	return bp.HasAllReferencedTransactions(dbContext, referenced, timestamp, count+1)
}
