package transactionvalidator

import (
	"regexp"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/util/signing"
)

const (
	maxAttachmentLength = 1000
	maxAliasLength      = 100
	minimumFee          = 1
)

var aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Validate performs the validation of a transaction that does not depend
// on account balances.
func (v *TransactionValidator) Validate(dbContext model.DBReader, tx *model.Transaction, height uint32) error {
	if tx.Version > v.params.TransactionVersion(height) {
		return errors.Wrapf(model.ErrNotCurrentlyValid,
			"transaction version %d is not active at height %d", tx.Version, height)
	}
	if tx.ECBlockHeight > height {
		return errors.Wrapf(model.ErrNotCurrentlyValid,
			"economic clustering block height %d is above height %d", tx.ECBlockHeight, height)
	}
	if tx.Amount < 0 || tx.Amount > chaincfg.MaxBalance {
		return errors.Errorf("invalid amount %d", tx.Amount)
	}
	if tx.Fee < minimumFee || tx.Fee > chaincfg.MaxBalance {
		return errors.Errorf("invalid fee %d", tx.Fee)
	}
	if tx.Deadline < 1 {
		return errors.Errorf("invalid deadline %d", tx.Deadline)
	}
	if len(tx.Attachment) > maxAttachmentLength {
		return errors.Errorf("attachment of %d bytes is over the limit of %d",
			len(tx.Attachment), maxAttachmentLength)
	}

	err := v.validateAttachment(tx)
	if err != nil {
		return err
	}

	if !signing.VerifyTransactionSignature(tx) {
		return errors.Errorf("signature of transaction %s does not verify", tx)
	}
	return nil
}

func (v *TransactionValidator) validateAttachment(tx *model.Transaction) error {
	switch tx.TypeTag() {
	case model.TypeTag{Type: model.TypePayment, Subtype: model.SubtypeOrdinaryPayment}:
		if tx.Amount <= 0 {
			return errors.Errorf("payment of %d", tx.Amount)
		}
		if tx.RecipientID == 0 {
			return errors.New("payment to no recipient")
		}
	case model.TypeTag{Type: model.TypeMessaging, Subtype: model.SubtypeArbitraryMessage}:
	case model.TypeTag{Type: model.TypeMessaging, Subtype: model.SubtypeAliasAssignment}:
		if tx.Amount != 0 {
			return errors.Errorf("alias assignment carries an amount of %d", tx.Amount)
		}
		alias := string(tx.Attachment)
		if len(alias) == 0 || len(alias) > maxAliasLength || !aliasPattern.MatchString(alias) {
			return errors.Errorf("invalid alias %q", alias)
		}
	default:
		return errors.Errorf("unknown transaction type %s", tx.TypeTag())
	}
	return nil
}
