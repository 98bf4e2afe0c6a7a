package model

import "github.com/pkg/errors"

// InvariantError is a programming or configuration error: a request the
// chain can never satisfy, such as a rollback deeper than the kept
// history. It is never a verdict on a block and must not be swallowed by
// the processing loops.
type InvariantError struct {
	message string
}

func (e InvariantError) Error() string {
	return e.message
}

func newInvariantError(message string) InvariantError {
	return InvariantError{message: message}
}

var (
	// ErrRollbackTooDeep indicates a rollback below the minimum rollback
	// height.
	ErrRollbackTooDeep = newInvariantError("rollback below the minimum rollback height")

	// ErrPopGenesis indicates an attempt to detach the genesis block.
	ErrPopGenesis = newInvariantError("cannot pop off the genesis block")

	// ErrScanUnsupported is returned by every rescan request.
	ErrScanUnsupported = newInvariantError("rescanning the blockchain is unsupported")
)

// IsInvariantViolation returns whether err is, or wraps, an InvariantError.
func IsInvariantViolation(err error) bool {
	var invariantErr InvariantError
	return errors.As(err, &invariantErr)
}

// ErrNotCurrentlyValid is wrapped by transaction validation errors that
// may resolve themselves later, for example a transaction whose
// prerequisites are not yet confirmed. Such transactions stay in the
// unconfirmed pool.
var ErrNotCurrentlyValid = errors.New("transaction is not currently valid")
