package model

import (
	"fmt"
	"sync/atomic"
)

// Transaction types and subtypes.
const (
	TypePayment   = 0
	TypeMessaging = 1

	SubtypeOrdinaryPayment  = 0
	SubtypeArbitraryMessage = 0
	SubtypeAliasAssignment  = 1
)

// TypeTag groups transactions for duplicate detection and ordering.
type TypeTag struct {
	Type    uint8
	Subtype uint8
}

func (tag TypeTag) String() string {
	return fmt.Sprintf("%d:%d", tag.Type, tag.Subtype)
}

// priority returns the rank of the tag when transactions are assembled
// into a block. Lower ranks come first.
func (tag TypeTag) priority() int {
	switch tag.Type {
	case TypePayment:
		return 0
	case TypeMessaging:
		return 1
	default:
		return 2
	}
}

// Transaction is a signed transfer or state change included in a block.
//
// A transaction's fields must not be modified once it has been signed:
// its identity is derived from its canonical bytes.
type Transaction struct {
	Type      uint8
	Subtype   uint8
	Version   uint8
	Timestamp uint32
	// Deadline is the lifetime of the transaction in minutes.
	Deadline                      uint16
	SenderPublicKey               PublicKey
	RecipientID                   uint64
	Amount                        int64
	Fee                           int64
	ReferencedTransactionFullHash *Hash
	ECBlockHeight                 uint32
	ECBlockID                     uint64
	Attachment                    []byte
	Signature                     Signature

	fullHash atomic.Pointer[Hash]
}

// TypeTag returns the type tag of the transaction.
func (tx *Transaction) TypeTag() TypeTag {
	return TypeTag{Type: tx.Type, Subtype: tx.Subtype}
}

// FullHash returns the SHA-256 digest of the transaction's canonical bytes.
func (tx *Transaction) FullHash() Hash {
	if cached := tx.fullHash.Load(); cached != nil {
		return *cached
	}
	hash := DigestBytes(tx.Bytes())
	tx.fullHash.Store(&hash)
	return hash
}

// ID returns the identifier of the transaction, derived from its full hash.
func (tx *Transaction) ID() uint64 {
	return IDFromHash(tx.FullHash())
}

// SenderID returns the account identifier of the sender.
func (tx *Transaction) SenderID() uint64 {
	return AccountID(tx.SenderPublicKey)
}

// Expiration returns the epoch time after which the transaction may no
// longer be included in a block.
func (tx *Transaction) Expiration() uint32 {
	return tx.Timestamp + uint32(tx.Deadline)*60
}

// SetSignature sets the signature of the transaction and drops its cached
// identity.
func (tx *Transaction) SetSignature(signature Signature) {
	tx.Signature = signature
	tx.fullHash.Store(nil)
}

// HasSignature returns false for transactions that were never signed.
func (tx *Transaction) HasSignature() bool {
	return tx.Signature != Signature{}
}

// Size returns the length of the transaction's canonical bytes.
func (tx *Transaction) Size() int {
	return transactionFixedSize + len(tx.Attachment)
}

// Less defines the total order in which transactions are assembled into
// a block: by type priority, then by identifier.
func (tx *Transaction) Less(other *Transaction) bool {
	priority, otherPriority := tx.TypeTag().priority(), other.TypeTag().priority()
	if priority != otherPriority {
		return priority < otherPriority
	}
	return tx.ID() < other.ID()
}

func (tx *Transaction) String() string {
	return IDToString(tx.ID())
}
