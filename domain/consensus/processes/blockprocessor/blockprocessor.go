package blockprocessor

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/datastructures/chainstore"
	"github.com/pocnet/pocd/domain/consensus/datastructures/derivedtables"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
)

// Config holds the chain processing options.
type Config struct {
	TrimDerivedTables bool
	StagingCache      stagingcache.Config
}

// BlockProcessor owns the committed chain. It accepts blocks on top of the
// tip, rolls the chain back and switches forks. PushBlock and PopOffTo are
// serialized; the tip may be read concurrently at any time.
type BlockProcessor struct {
	params          *chaincfg.Params
	config          Config
	databaseContext model.DBManager

	chainStore         *chainstore.ChainStore
	derivedTables      *derivedtables.Manager
	stagingCache       *stagingcache.StagingCache
	difficultyManager  model.DifficultyManager
	blockVerifier      *blockverifier.BlockVerifier
	economicClustering model.EconomicClustering
	transactionService model.TransactionService
	contractExecutor   model.ContractExecutor
	recurringPayments  model.RecurringPayments
	blockApplier       model.BlockApplier
	unconfirmedPool    model.UnconfirmedPool
	broadcaster        model.BlockBroadcaster
	notifications      *notifications.Manager
	timeSource         model.TimeSource

	// commitLock serializes every mutation of the committed chain.
	commitLock     sync.Mutex
	lastTrimHeight uint32

	tipLock sync.RWMutex
	tip     *model.Block
}

// New instantiates a new BlockProcessor and loads the chain tip, adding
// the genesis block to an empty database.
func New(
	params *chaincfg.Params,
	config Config,
	databaseContext model.DBManager,
	chainStore *chainstore.ChainStore,
	derivedTables *derivedtables.Manager,
	difficultyManager model.DifficultyManager,
	blockVerifier *blockverifier.BlockVerifier,
	economicClustering model.EconomicClustering,
	transactionService model.TransactionService,
	contractExecutor model.ContractExecutor,
	recurringPayments model.RecurringPayments,
	blockApplier model.BlockApplier,
	unconfirmedPool model.UnconfirmedPool,
	broadcaster model.BlockBroadcaster,
	notifications *notifications.Manager,
	timeSource model.TimeSource) (*BlockProcessor, error) {

	bp := &BlockProcessor{
		params:          params,
		config:          config,
		databaseContext: databaseContext,

		chainStore:         chainStore,
		derivedTables:      derivedTables,
		difficultyManager:  difficultyManager,
		blockVerifier:      blockVerifier,
		economicClustering: economicClustering,
		transactionService: transactionService,
		contractExecutor:   contractExecutor,
		recurringPayments:  recurringPayments,
		blockApplier:       blockApplier,
		unconfirmedPool:    unconfirmedPool,
		broadcaster:        broadcaster,
		notifications:      notifications,
		timeSource:         timeSource,
	}
	bp.stagingCache = stagingcache.New(config.StagingCache, bp)

	err := bp.loadTip()
	if err != nil {
		return nil, err
	}
	return bp, nil
}

func (bp *BlockProcessor) loadTip() error {
	tipID, found, err := bp.chainStore.Tip(bp.databaseContext)
	if err != nil {
		return err
	}
	if !found {
		return bp.AddGenesisBlock()
	}
	tip, found, err := bp.chainStore.Block(bp.databaseContext, tipID)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("chain tip %s is missing from the database", model.IDToString(tipID))
	}
	bp.setTip(tip)
	log.Infof("Loaded chain tip %s at height %d", tip, tip.Height())
	return nil
}

// AddGenesisBlock stores the genesis block in an empty database.
func (bp *BlockProcessor) AddGenesisBlock() error {
	bp.commitLock.Lock()
	defer bp.commitLock.Unlock()

	genesis := bp.params.GenesisBlock()
	dbTx, err := bp.databaseContext.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	err = bp.chainStore.StoreBlock(dbTx, genesis)
	if err != nil {
		return err
	}
	err = bp.chainStore.StoreTip(dbTx, genesis.ID())
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}
	bp.setTip(genesis)
	log.Infof("Added genesis block %s", genesis)
	return nil
}

func (bp *BlockProcessor) setTip(block *model.Block) {
	bp.tipLock.Lock()
	defer bp.tipLock.Unlock()

	bp.tip = block
}

// LastBlock returns the chain tip.
func (bp *BlockProcessor) LastBlock() *model.Block {
	bp.tipLock.RLock()
	defer bp.tipLock.RUnlock()

	return bp.tip
}

// Height returns the height of the chain tip.
func (bp *BlockProcessor) Height() uint32 {
	return bp.LastBlock().Height()
}

// Block returns a committed block.
func (bp *BlockProcessor) Block(id uint64) (*model.Block, bool, error) {
	return bp.chainStore.Block(bp.databaseContext, id)
}

// HasBlock returns whether a block is committed.
func (bp *BlockProcessor) HasBlock(id uint64) (bool, error) {
	return bp.chainStore.HasBlock(bp.databaseContext, id)
}

// BlockAtHeight returns the committed block at the given height.
func (bp *BlockProcessor) BlockAtHeight(height uint32) (*model.Block, bool, error) {
	id, found, err := bp.chainStore.BlockIDAtHeight(bp.databaseContext, height)
	if err != nil || !found {
		return nil, false, err
	}
	return bp.Block(id)
}

// StagingCache returns the staging cache on top of this chain.
func (bp *BlockProcessor) StagingCache() *stagingcache.StagingCache {
	return bp.stagingCache
}

// ChainStore returns the store of the committed chain.
func (bp *BlockProcessor) ChainStore() *chainstore.ChainStore {
	return bp.chainStore
}

// DatabaseContext returns the database the chain is committed to.
func (bp *BlockProcessor) DatabaseContext() model.DBReader {
	return bp.databaseContext
}

// MinRollbackHeight returns the lowest height the chain may be rolled back
// to. Without trimming the whole chain can be rolled back.
func (bp *BlockProcessor) MinRollbackHeight() uint32 {
	bp.commitLock.Lock()
	defer bp.commitLock.Unlock()

	return bp.minRollbackHeight()
}

func (bp *BlockProcessor) minRollbackHeight() uint32 {
	if !bp.config.TrimDerivedTables {
		return 0
	}
	if bp.lastTrimHeight > 0 {
		return bp.lastTrimHeight
	}
	height := bp.Height()
	if height <= bp.params.MaxRollback {
		return 0
	}
	return height - bp.params.MaxRollback
}

func (bp *BlockProcessor) lookup(id uint64) (*model.Block, bool, error) {
	return bp.chainStore.Block(bp.databaseContext, id)
}
