package transactionvalidator

import (
	"strings"

	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/database"
	"github.com/pocnet/pocd/domain/consensus/datastructures/derivedtables"
	"github.com/pocnet/pocd/domain/consensus/model"
)

var unconfirmedBucket = database.MakeBucket([]byte("unconfirmed-applied"))

// TransactionValidator is the default TransactionService. It knows the
// payment and messaging transaction types.
type TransactionValidator struct {
	params     *chaincfg.Params
	publicKeys *derivedtables.PublicKeyTable
}

// New instantiates a new TransactionValidator
func New(params *chaincfg.Params, publicKeys *derivedtables.PublicKeyTable) *TransactionValidator {
	return &TransactionValidator{
		params:     params,
		publicKeys: publicKeys,
	}
}

// VerifyPublicKey returns false if the sender's account is bound to a
// different public key.
func (v *TransactionValidator) VerifyPublicKey(dbContext model.DBReader, tx *model.Transaction) (bool, error) {
	publicKey, found, err := v.publicKeys.PublicKey(dbContext, tx.SenderID())
	if err != nil || !found {
		return err == nil, err
	}
	return publicKey == tx.SenderPublicKey, nil
}

// DuplicateKey returns the key under which at most one transaction may
// appear in a block. Only alias assignments have one.
func (v *TransactionValidator) DuplicateKey(tx *model.Transaction) (string, bool) {
	if tx.Type == model.TypeMessaging && tx.Subtype == model.SubtypeAliasAssignment {
		return tx.TypeTag().String() + ":" + strings.ToLower(string(tx.Attachment)), true
	}
	return "", false
}

func unconfirmedKey(tx *model.Transaction) []byte {
	fullHash := tx.FullHash()
	return unconfirmedBucket.Key(fullHash[:])
}

// ApplyUnconfirmed marks the transaction as provisionally applied. It
// returns false if it already was within the same database transaction.
func (v *TransactionValidator) ApplyUnconfirmed(dbTx model.DBWriter, tx *model.Transaction) (bool, error) {
	key := unconfirmedKey(tx)
	applied, err := dbTx.Has(key)
	if err != nil || applied {
		return false, err
	}
	return true, dbTx.Put(key, []byte{})
}

// ClearUnconfirmed drops the provisional mark of a transaction once its
// confirmed effects are applied.
func (v *TransactionValidator) ClearUnconfirmed(dbTx model.DBWriter, tx *model.Transaction) error {
	return dbTx.Delete(unconfirmedKey(tx))
}
