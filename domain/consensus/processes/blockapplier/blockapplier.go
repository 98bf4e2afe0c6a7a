package blockapplier

import (
	"github.com/pocnet/pocd/domain/consensus/datastructures/derivedtables"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/processes/transactionvalidator"
)

// blockApplier applies the confirmed effects of a block: it binds the
// public keys of the generator and of every sender, and settles the
// provisional marks of the block's transactions.
type blockApplier struct {
	publicKeys           *derivedtables.PublicKeyTable
	transactionValidator *transactionvalidator.TransactionValidator
}

// New instantiates a new BlockApplier
func New(publicKeys *derivedtables.PublicKeyTable,
	transactionValidator *transactionvalidator.TransactionValidator) model.BlockApplier {

	return &blockApplier{
		publicKeys:           publicKeys,
		transactionValidator: transactionValidator,
	}
}

func (ba *blockApplier) ApplyBlock(dbTx model.DBWriter, block *model.Block) error {
	height := block.Height()
	err := ba.publicKeys.Record(dbTx, block.GeneratorPublicKey, height)
	if err != nil {
		return err
	}
	for _, tx := range block.Transactions {
		err = ba.publicKeys.Record(dbTx, tx.SenderPublicKey, height)
		if err != nil {
			return err
		}
		err = ba.transactionValidator.ClearUnconfirmed(dbTx, tx)
		if err != nil {
			return err
		}
	}
	return nil
}
