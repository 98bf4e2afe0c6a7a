package ruleerrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
)

func TestWrappedRuleErrorKeepsKind(t *testing.T) {
	err := errors.Wrapf(ErrTimeTooNew, "block timestamp %d is after %d", 100, 50)
	if !errors.Is(err, ErrTimeTooNew) {
		t.Fatalf("TestWrappedRuleErrorKeepsKind: wrapped error should be ErrTimeTooNew")
	}
	kind, ok := KindOf(err)
	if !ok {
		t.Fatalf("TestWrappedRuleErrorKeepsKind: KindOf did not find a rule error")
	}
	if kind != KindOutOfOrder {
		t.Fatalf("TestWrappedRuleErrorKeepsKind: expected %s, got %s", KindOutOfOrder, kind)
	}
	if !IsOutOfOrder(err) || IsNotAccepted(err) {
		t.Fatalf("TestWrappedRuleErrorKeepsKind: out-of-order error classified as not accepted")
	}
}

func TestTransactionRuleError(t *testing.T) {
	tx := &model.Transaction{Amount: 1337, Deadline: 1440}
	err := NewTransactionRuleError(ErrDoubleSpending, tx, "sender %d", tx.SenderID())

	if !errors.Is(err, ErrDoubleSpending) {
		t.Fatalf("TestTransactionRuleError: error should be ErrDoubleSpending")
	}
	if !IsNotAccepted(err) {
		t.Fatalf("TestTransactionRuleError: transaction rejection should count as not accepted")
	}
	kind, _ := KindOf(err)
	if kind != KindTransactionNotAccepted {
		t.Fatalf("TestTransactionRuleError: expected %s, got %s", KindTransactionNotAccepted, kind)
	}
	offender, ok := TransactionOf(err)
	if !ok {
		t.Fatalf("TestTransactionRuleError: TransactionOf did not find the transaction")
	}
	if offender != tx {
		t.Fatalf("TestTransactionRuleError: TransactionOf returned a different transaction")
	}
}

func TestNonRuleError(t *testing.T) {
	err := errors.New("disk on fire")
	if IsRuleError(err) {
		t.Fatalf("TestNonRuleError: plain error classified as a rule error")
	}
	if _, ok := TransactionOf(err); ok {
		t.Fatalf("TestNonRuleError: plain error carries a transaction")
	}
}
