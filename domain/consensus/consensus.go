package consensus

import (
	"context"

	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/datastructures/chainstore"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
	"github.com/pocnet/pocd/domain/consensus/processes/blockimporter"
	"github.com/pocnet/pocd/domain/consensus/processes/blockprocessor"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
	"github.com/pocnet/pocd/util/signing"
)

// Consensus maintains the committed chain of the node along with the
// staging cache that feeds it.
type Consensus struct {
	params          *chaincfg.Params
	databaseContext model.DBManager
	chainStore      *chainstore.ChainStore

	blockProcessor     *blockprocessor.BlockProcessor
	stagingCache       *stagingcache.StagingCache
	scheduler          *blockverifier.Scheduler
	importer           *blockimporter.BlockImporter
	difficultyManager  model.DifficultyManager
	economicClustering model.EconomicClustering
	transactionService model.TransactionService
	notifications      *notifications.Manager
}

// Params returns the network parameters of the chain.
func (c *Consensus) Params() *chaincfg.Params {
	return c.params
}

// DatabaseContext returns the database the chain is committed to.
func (c *Consensus) DatabaseContext() model.DBReader {
	return c.databaseContext
}

// ChainStore returns the store of the committed chain.
func (c *Consensus) ChainStore() *chainstore.ChainStore {
	return c.chainStore
}

// BlockProcessor returns the owner of the committed chain.
func (c *Consensus) BlockProcessor() *blockprocessor.BlockProcessor {
	return c.blockProcessor
}

// StagingCache returns the cache of downloaded blocks.
func (c *Consensus) StagingCache() *stagingcache.StagingCache {
	return c.stagingCache
}

// Notifications returns the chain event bus.
func (c *Consensus) Notifications() *notifications.Manager {
	return c.notifications
}

// DifficultyManager returns the base target rules of the chain.
func (c *Consensus) DifficultyManager() model.DifficultyManager {
	return c.difficultyManager
}

// EconomicClustering returns the economic clustering rules of the chain.
func (c *Consensus) EconomicClustering() model.EconomicClustering {
	return c.economicClustering
}

// TransactionService returns the validator of single transactions.
func (c *Consensus) TransactionService() model.TransactionService {
	return c.transactionService
}

// LastBlock returns the committed tip.
func (c *Consensus) LastBlock() *model.Block {
	return c.blockProcessor.LastBlock()
}

// Block returns a committed block.
func (c *Consensus) Block(id uint64) (*model.Block, bool, error) {
	return c.blockProcessor.Block(id)
}

// BlockAtHeight returns the committed block at the given height.
func (c *Consensus) BlockAtHeight(height uint32) (*model.Block, bool, error) {
	return c.blockProcessor.BlockAtHeight(height)
}

// BlockIDsAfter returns up to limit ids of the committed blocks following
// the block with the given id.
func (c *Consensus) BlockIDsAfter(id uint64, limit int) ([]uint64, error) {
	return c.chainStore.BlockIDsAfter(c.databaseContext, id, limit)
}

// BlocksAfter returns the committed blocks following the block with the
// given id, bounded by count and total size.
func (c *Consensus) BlocksAfter(id uint64, limit int, maxBytes int) ([]*model.Block, error) {
	return c.chainStore.BlocksAfter(c.databaseContext, id, limit, maxBytes)
}

// ResolveFork switches the chain to forkBlocks if they make it heavier.
func (c *Consensus) ResolveFork(ctx context.Context, peer model.BlockOrigin,
	commonBlock *model.Block, forkBlocks []*model.Block) error {

	return c.blockProcessor.ResolveFork(ctx, peer, commonBlock, forkBlocks)
}

// Scan re-applies the chain from height. It is unsupported.
func (c *Consensus) Scan(height uint32, validate bool) error {
	return c.blockProcessor.Scan(height, validate)
}

// GenerateBlock forges a block on top of the committed tip.
func (c *Consensus) GenerateBlock(keyPair *signing.KeyPair, nonce uint64) (*model.Block, error) {
	return c.blockProcessor.GenerateBlock(keyPair, nonce)
}

// RunVerifier verifies staged blocks until ctx is cancelled.
func (c *Consensus) RunVerifier(ctx context.Context) {
	log.Infof("Starting block verification")
	c.scheduler.Run(ctx)
	log.Infof("Block verification stopped")
}

// RunImporter commits staged blocks until ctx is cancelled or an
// invariant violation stops it.
func (c *Consensus) RunImporter(ctx context.Context) error {
	log.Infof("Starting block import")
	err := c.importer.Run(ctx)
	log.Infof("Block import stopped")
	return err
}

// Start runs the verifier and the importer in their own goroutines. done
// is called once the importer stops, with its error if any.
func (c *Consensus) Start(ctx context.Context, done func(err error)) {
	spawn("Consensus.RunVerifier", func() {
		c.RunVerifier(ctx)
	})
	spawn("Consensus.RunImporter", func() {
		done(c.RunImporter(ctx))
	})
}

// HasTransaction returns whether a transaction is committed.
func (c *Consensus) HasTransaction(txID uint64) (bool, error) {
	return c.chainStore.HasTransaction(c.databaseContext, txID)
}
