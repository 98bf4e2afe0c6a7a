package model

// BlockLookup finds a block by id wherever the caller keeps blocks that
// are not yet committed. It returns false if no such block is known.
type BlockLookup func(id uint64) (*Block, bool, error)

// ChainReader gives read access to the committed chain.
type ChainReader interface {
	LastBlock() *Block
	Block(id uint64) (*Block, bool, error)
	HasBlock(id uint64) (bool, error)
}

// DifficultyManager computes base targets and links blocks to their
// predecessors.
type DifficultyManager interface {
	CalculateBaseTarget(previous *Block, lookup BlockLookup) (uint64, error)

	// LinkBlock sets the block's height, base target and cumulative
	// difficulty from its predecessor.
	LinkBlock(block *Block, previous *Block, lookup BlockLookup) error
}

// HitCalculator computes the proof-of-capacity hit of a generator for a
// generation signature.
type HitCalculator interface {
	CalculateHit(generatorID uint64, nonce uint64, generationSignature Hash, pocVersion int) uint64
}

// EconomicClustering binds transactions to the chain they were created on.
type EconomicClustering interface {
	// ECBlock returns the economic clustering block a transaction created
	// at timestamp should reference.
	ECBlock(dbContext DBReader, timestamp uint32) (*Block, error)

	// VerifyFork returns false if the transaction's economic clustering
	// block is not part of the chain at currentHeight.
	VerifyFork(dbContext DBReader, tx *Transaction, currentHeight uint32) (bool, error)
}

// DerivedTable is a persistent projection of chain state keyed by height.
type DerivedTable interface {
	Name() string

	// Rollback discards all state written at or after height.
	Rollback(dbTx DBWriter, height uint32) error

	// Trim discards history needed only to roll back below height.
	Trim(dbTx DBWriter, height uint32) error

	// Finish flushes the table's per-block bookkeeping.
	Finish(dbTx DBWriter) error
}
