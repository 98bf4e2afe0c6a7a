package model

// TransactionService validates transactions against the account ledger and
// applies their provisional effects. Ledger bookkeeping lives behind it.
type TransactionService interface {
	// VerifyPublicKey returns false if the sender's account is already
	// bound to a different public key.
	VerifyPublicKey(dbContext DBReader, tx *Transaction) (bool, error)

	// Validate performs full semantic validation at the given height.
	// Errors that wrap ErrNotCurrentlyValid are not a verdict on the
	// transaction itself.
	Validate(dbContext DBReader, tx *Transaction, height uint32) error

	// ApplyUnconfirmed applies the provisional effect of the transaction.
	// It returns false if the transaction would double spend.
	ApplyUnconfirmed(dbTx DBWriter, tx *Transaction) (bool, error)

	// DuplicateKey returns the key under which at most one transaction
	// of the same type may appear in a block, if the type has one.
	DuplicateKey(tx *Transaction) (string, bool)
}

// ContractExecutor runs the automated transactions embedded in a block's
// contract payload.
type ContractExecutor interface {
	// ValidateBlockPayload executes the payload at the given height and
	// returns the amount and fee it moves.
	ValidateBlockPayload(dbContext DBReader, payload []byte, height uint32) (amount int64, fee int64, err error)

	// BuildBlockPayload returns a payload of at most freeBytes for a
	// block at the given height along with the amount and fee it moves.
	BuildBlockPayload(dbContext DBReader, freeBytes int, height uint32) (payload []byte, amount int64, fee int64, err error)
}

// RecurringPayments applies subscription payments that fall due at a block.
type RecurringPayments interface {
	IsEnabled() bool

	// ApplyUnconfirmed applies the payments due at timestamp and returns
	// the fees they pay.
	ApplyUnconfirmed(dbTx DBWriter, timestamp uint32) (int64, error)

	ApplyConfirmed(dbTx DBWriter, block *Block) error
}

// BlockApplier applies the confirmed effects of an accepted block: forger
// rewards and the confirmed side of every transaction.
type BlockApplier interface {
	ApplyBlock(dbTx DBWriter, block *Block) error
}

// UnconfirmedPool is the pool of transactions waiting to be forged.
type UnconfirmedPool interface {
	// All returns the pooled transactions in block-assembly order.
	All() []*Transaction
	Remove(tx *Transaction)

	// ProcessLater returns the transactions of detached blocks to the
	// pool.
	ProcessLater(txs []*Transaction)

	// RequeueAll drops the provisional effects of every pooled
	// transaction so that a block can be applied on a clean ledger.
	RequeueAll()
}

// BlockBroadcaster relays accepted blocks to remote peers.
type BlockBroadcaster interface {
	BroadcastBlock(block *Block)
}

// TimeSource returns the current time in seconds since the network epoch.
type TimeSource interface {
	EpochTime() uint32
}
