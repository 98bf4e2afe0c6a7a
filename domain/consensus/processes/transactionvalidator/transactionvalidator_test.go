package transactionvalidator

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/database"
	"github.com/pocnet/pocd/domain/consensus/datastructures/derivedtables"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/pocnet/pocd/infrastructure/db/database/ldb"
	"github.com/pocnet/pocd/util/signing"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T) (*TransactionValidator, *derivedtables.PublicKeyTable, model.DBManager) {
	db, err := ldb.NewMemoryLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	publicKeys := derivedtables.NewPublicKeyTable()
	return New(&chaincfg.SimnetParams, publicKeys), publicKeys, database.New(db)
}

func TestValidate(t *testing.T) {
	params := &chaincfg.SimnetParams
	validator, _, dbManager := newTestValidator(t)
	sender := testutils.KeyPair(t, "sender")
	recipient := testutils.Account(t, "recipient")

	tests := []struct {
		name                string
		mutate              func(tx *model.Transaction)
		isValid             bool
		isNotCurrentlyValid bool
	}{
		{
			name:    "valid payment",
			mutate:  func(*model.Transaction) {},
			isValid: true,
		},
		{
			name:                "version from the future",
			mutate:              func(tx *model.Transaction) { tx.Version = params.TransactionVersion(0) + 1 },
			isNotCurrentlyValid: true,
		},
		{
			name:                "economic clustering block above the height",
			mutate:              func(tx *model.Transaction) { tx.ECBlockHeight = 100 },
			isNotCurrentlyValid: true,
		},
		{
			name:   "negative amount",
			mutate: func(tx *model.Transaction) { tx.Amount = -1 },
		},
		{
			name:   "amount above max balance",
			mutate: func(tx *model.Transaction) { tx.Amount = chaincfg.MaxBalance + 1 },
		},
		{
			name:   "zero fee",
			mutate: func(tx *model.Transaction) { tx.Fee = 0 },
		},
		{
			name:   "zero deadline",
			mutate: func(tx *model.Transaction) { tx.Deadline = 0 },
		},
		{
			name:   "attachment over the limit",
			mutate: func(tx *model.Transaction) { tx.Attachment = make([]byte, maxAttachmentLength+1) },
		},
		{
			name:   "payment to no recipient",
			mutate: func(tx *model.Transaction) { tx.RecipientID = 0 },
		},
		{
			name: "unknown type",
			mutate: func(tx *model.Transaction) {
				tx.Type = 42
			},
		},
		{
			name: "alias assignment with an amount",
			mutate: func(tx *model.Transaction) {
				tx.Type = model.TypeMessaging
				tx.Subtype = model.SubtypeAliasAssignment
				tx.Attachment = []byte("alias")
			},
		},
	}

	for _, test := range tests {
		tx := testutils.BuildPayment(t, params, sender, recipient, 100, testutils.PaymentOptions{})
		test.mutate(tx)
		require.NoError(t, signing.SignTransaction(tx, sender), test.name)

		err := validator.Validate(dbManager, tx, 10)
		if test.isValid {
			require.NoError(t, err, test.name)
			continue
		}
		require.Error(t, err, test.name)
		require.Equal(t, test.isNotCurrentlyValid, errors.Is(err, model.ErrNotCurrentlyValid), test.name)
	}
}

func TestValidateSignature(t *testing.T) {
	params := &chaincfg.SimnetParams
	validator, _, dbManager := newTestValidator(t)
	sender := testutils.KeyPair(t, "sender")

	tx := testutils.BuildPayment(t, params, sender, testutils.Account(t, "recipient"), 100, testutils.PaymentOptions{})
	tx.Amount++
	err := validator.Validate(dbManager, tx, 10)
	require.Error(t, err)
	require.False(t, errors.Is(err, model.ErrNotCurrentlyValid))
}

func TestValidateAlias(t *testing.T) {
	params := &chaincfg.SimnetParams
	validator, _, dbManager := newTestValidator(t)
	sender := testutils.KeyPair(t, "sender")

	tests := []struct {
		alias   string
		isValid bool
	}{
		{alias: "pocnet", isValid: true},
		{alias: "Mixed123", isValid: true},
		{alias: "", isValid: false},
		{alias: "with space", isValid: false},
		{alias: "dash-ed", isValid: false},
		{alias: strings.Repeat("a", maxAliasLength), isValid: true},
		{alias: strings.Repeat("a", maxAliasLength+1), isValid: false},
	}
	for _, test := range tests {
		tx := testutils.BuildAliasAssignment(t, params, sender, test.alias, 100)
		err := validator.Validate(dbManager, tx, 10)
		if test.isValid {
			require.NoError(t, err, "alias %q", test.alias)
		} else {
			require.Error(t, err, "alias %q", test.alias)
		}
	}
}

func TestVerifyPublicKey(t *testing.T) {
	params := &chaincfg.SimnetParams
	validator, publicKeys, dbManager := newTestValidator(t)
	sender := testutils.KeyPair(t, "sender")
	tx := testutils.BuildPayment(t, params, sender, testutils.Account(t, "recipient"), 100, testutils.PaymentOptions{})

	// Unknown accounts accept any key.
	matches, err := validator.VerifyPublicKey(dbManager, tx)
	require.NoError(t, err)
	require.True(t, matches)

	dbTx, err := dbManager.Begin()
	require.NoError(t, err)
	require.NoError(t, publicKeys.Record(dbTx, sender.PublicKey(), 1))
	require.NoError(t, publicKeys.Finish(dbTx))
	require.NoError(t, dbTx.Commit())

	matches, err = validator.VerifyPublicKey(dbManager, tx)
	require.NoError(t, err)
	require.True(t, matches)
}

func TestDuplicateKey(t *testing.T) {
	params := &chaincfg.SimnetParams
	validator, _, _ := newTestValidator(t)

	first := testutils.BuildAliasAssignment(t, params, testutils.KeyPair(t, "first"), "PocNet", 100)
	second := testutils.BuildAliasAssignment(t, params, testutils.KeyPair(t, "second"), "pocnet", 100)
	firstKey, ok := validator.DuplicateKey(first)
	require.True(t, ok)
	secondKey, ok := validator.DuplicateKey(second)
	require.True(t, ok)
	require.Equal(t, firstKey, secondKey)

	payment := testutils.BuildPayment(t, params, testutils.KeyPair(t, "sender"),
		testutils.Account(t, "recipient"), 100, testutils.PaymentOptions{})
	_, ok = validator.DuplicateKey(payment)
	require.False(t, ok)
}

func TestApplyUnconfirmed(t *testing.T) {
	params := &chaincfg.SimnetParams
	validator, _, dbManager := newTestValidator(t)
	tx := testutils.BuildPayment(t, params, testutils.KeyPair(t, "sender"),
		testutils.Account(t, "recipient"), 100, testutils.PaymentOptions{})

	dbTx, err := dbManager.Begin()
	require.NoError(t, err)
	defer dbTx.RollbackUnlessClosed()

	applied, err := validator.ApplyUnconfirmed(dbTx, tx)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = validator.ApplyUnconfirmed(dbTx, tx)
	require.NoError(t, err)
	require.False(t, applied)

	require.NoError(t, validator.ClearUnconfirmed(dbTx, tx))
	applied, err = validator.ApplyUnconfirmed(dbTx, tx)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, dbTx.Rollback())

	// Nothing survives a rolled back database transaction.
	dbTx, err = dbManager.Begin()
	require.NoError(t, err)
	defer dbTx.RollbackUnlessClosed()
	applied, err = validator.ApplyUnconfirmed(dbTx, tx)
	require.NoError(t, err)
	require.True(t, applied)
}
