package mempool

import "github.com/pkg/errors"

var (
	// ErrUnsigned indicates a transaction without a signature.
	ErrUnsigned = errors.New("transaction is not signed")

	// ErrExpired indicates a transaction past its deadline.
	ErrExpired = errors.New("transaction expired")

	// ErrAlreadyConfirmed indicates a transaction that is already part
	// of the chain.
	ErrAlreadyConfirmed = errors.New("transaction is already confirmed")
)
