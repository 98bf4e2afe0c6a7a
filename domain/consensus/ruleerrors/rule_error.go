package ruleerrors

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// Kind classifies a rejection by how its caller should react to it.
type Kind int

const (
	// KindOutOfOrder rejections are retriable. The block arrived before
	// its time or on top of a different tip, usually because of clock
	// drift or a stale view. Nobody is penalized.
	KindOutOfOrder Kind = iota

	// KindNotAccepted rejections are terminal for the block: it is
	// malformed, conflicting or fraudulent. Its origin is penalized.
	KindNotAccepted

	// KindTransactionNotAccepted rejections are terminal for the block
	// because of one of its transactions. The transaction is carried by
	// the error so that it can be evicted from the unconfirmed pool.
	KindTransactionNotAccepted
)

var kindStrings = map[Kind]string{
	KindOutOfOrder:             "OutOfOrder",
	KindNotAccepted:            "NotAccepted",
	KindTransactionNotAccepted: "TransactionNotAccepted",
}

func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// These constants are used to identify a specific RuleError.
var (
	// ErrPreviousBlockMismatch indicates that the block does not extend
	// the current tip.
	ErrPreviousBlockMismatch = newRuleError(KindOutOfOrder, "ErrPreviousBlockMismatch")

	// ErrTimeTooNew indicates that the block timestamp is too far in the
	// future.
	ErrTimeTooNew = newRuleError(KindOutOfOrder, "ErrTimeTooNew")

	// ErrTimeTooOld indicates that the block timestamp is not after its
	// predecessor's.
	ErrTimeTooOld = newRuleError(KindOutOfOrder, "ErrTimeTooOld")

	// ErrTransactionTimeTooNew indicates that a transaction timestamp is
	// too far in the future.
	ErrTransactionTimeTooNew = newRuleError(KindOutOfOrder, "ErrTransactionTimeTooNew")

	// ErrBadVersion indicates that the block declares a version other
	// than the one required at its height.
	ErrBadVersion = newRuleError(KindNotAccepted, "ErrBadVersion")

	// ErrBadPreviousHash indicates that the declared previous block hash
	// does not match the hash of the tip.
	ErrBadPreviousHash = newRuleError(KindNotAccepted, "ErrBadPreviousHash")

	// ErrZeroID indicates a block whose identifier is zero.
	ErrZeroID = newRuleError(KindNotAccepted, "ErrZeroID")

	// ErrDuplicateBlock indicates a block that is already in the chain.
	ErrDuplicateBlock = newRuleError(KindNotAccepted, "ErrDuplicateBlock")

	// ErrBadGenerationSignature indicates a generation signature that does
	// not follow from the predecessor or a hit that does not meet the
	// target.
	ErrBadGenerationSignature = newRuleError(KindNotAccepted, "ErrBadGenerationSignature")

	// ErrBadBlockSignature indicates a block signature that does not
	// verify against the generator's public key.
	ErrBadBlockSignature = newRuleError(KindNotAccepted, "ErrBadBlockSignature")

	// ErrTooManyTransactions indicates a block over the transaction count
	// limit.
	ErrTooManyTransactions = newRuleError(KindNotAccepted, "ErrTooManyTransactions")

	// ErrPayloadLength indicates a block whose transactions exceed the
	// payload limit or whose declared payload length is wrong.
	ErrPayloadLength = newRuleError(KindNotAccepted, "ErrPayloadLength")

	// ErrTotalsMismatch indicates declared totals that do not match the
	// block's transactions and contract payload.
	ErrTotalsMismatch = newRuleError(KindNotAccepted, "ErrTotalsMismatch")

	// ErrPayloadHashMismatch indicates a declared payload hash that does
	// not match the block's transactions.
	ErrPayloadHashMismatch = newRuleError(KindNotAccepted, "ErrPayloadHashMismatch")

	// ErrContractPayload indicates a contract payload that failed to
	// execute.
	ErrContractPayload = newRuleError(KindNotAccepted, "ErrContractPayload")

	// ErrBadTransactionTimestamp indicates a transaction created too long
	// after its block or expired before it.
	ErrBadTransactionTimestamp = newRuleError(KindTransactionNotAccepted, "ErrBadTransactionTimestamp")

	// ErrDuplicateTransaction indicates a transaction that is already in
	// the chain.
	ErrDuplicateTransaction = newRuleError(KindTransactionNotAccepted, "ErrDuplicateTransaction")

	// ErrMissingReferencedTransaction indicates a transaction whose
	// reference chain cannot be resolved.
	ErrMissingReferencedTransaction = newRuleError(KindTransactionNotAccepted, "ErrMissingReferencedTransaction")

	// ErrBadTransactionVersion indicates a transaction declaring a
	// version other than the one required at its block's height.
	ErrBadTransactionVersion = newRuleError(KindTransactionNotAccepted, "ErrBadTransactionVersion")

	// ErrWrongPublicKey indicates a sender public key that differs from
	// the one recorded for the sender's account.
	ErrWrongPublicKey = newRuleError(KindTransactionNotAccepted, "ErrWrongPublicKey")

	// ErrEconomicClustering indicates a transaction bound to a different
	// chain.
	ErrEconomicClustering = newRuleError(KindTransactionNotAccepted, "ErrEconomicClustering")

	// ErrZeroTransactionID indicates a transaction whose identifier is
	// zero.
	ErrZeroTransactionID = newRuleError(KindTransactionNotAccepted, "ErrZeroTransactionID")

	// ErrDuplicateInBlock indicates two transactions in the same block
	// sharing a duplicate key.
	ErrDuplicateInBlock = newRuleError(KindTransactionNotAccepted, "ErrDuplicateInBlock")

	// ErrInvalidTransaction indicates a transaction that failed semantic
	// validation.
	ErrInvalidTransaction = newRuleError(KindTransactionNotAccepted, "ErrInvalidTransaction")

	// ErrDoubleSpending indicates a transaction whose provisional effect
	// could not be applied.
	ErrDoubleSpending = newRuleError(KindTransactionNotAccepted, "ErrDoubleSpending")
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block or transaction failed due to one of the many validation
// rules. The caller can use type assertions to determine if a failure was
// specifically due to a rule violation.
type RuleError struct {
	kind    Kind
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

// Kind returns the kind of the rejection.
func (e RuleError) Kind() Kind {
	return e.kind
}

func newRuleError(kind Kind, message string) RuleError {
	return RuleError{kind: kind, message: message, inner: nil}
}

// TransactionRuleError is a rejection of a block caused by one of its
// transactions.
type TransactionRuleError struct {
	Transaction *model.Transaction
	err         error
}

func (e TransactionRuleError) Error() string {
	return fmt.Sprintf("transaction %s not accepted: %s", e.Transaction, e.err)
}

// Unwrap satisfies the errors.Unwrap interface
func (e TransactionRuleError) Unwrap() error {
	return e.err
}

// NewTransactionRuleError returns a rejection of the given transaction for
// the rule identified by ruleErr.
func NewTransactionRuleError(ruleErr RuleError, tx *model.Transaction, format string, args ...interface{}) error {
	return errors.WithStack(TransactionRuleError{
		Transaction: tx,
		err:         errors.Wrapf(ruleErr, format, args...),
	})
}

// KindOf returns the kind of the rule error in err's chain. It returns
// false if err is not a rule error.
func KindOf(err error) (Kind, bool) {
	var ruleErr RuleError
	if !errors.As(err, &ruleErr) {
		return 0, false
	}
	return ruleErr.kind, true
}

// IsRuleError returns whether err is a rejection of any kind.
func IsRuleError(err error) bool {
	_, ok := KindOf(err)
	return ok
}

// IsOutOfOrder returns whether err is a retriable rejection.
func IsOutOfOrder(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindOutOfOrder
}

// IsNotAccepted returns whether err is a terminal rejection, including
// rejections caused by a transaction.
func IsNotAccepted(err error) bool {
	kind, ok := KindOf(err)
	return ok && (kind == KindNotAccepted || kind == KindTransactionNotAccepted)
}

// TransactionOf returns the transaction that caused err, if any.
func TransactionOf(err error) (*model.Transaction, bool) {
	var txErr TransactionRuleError
	if !errors.As(err, &txErr) {
		return nil, false
	}
	return txErr.Transaction, true
}
