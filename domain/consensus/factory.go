package consensus

import (
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/database"
	"github.com/pocnet/pocd/domain/consensus/datastructures/chainstore"
	"github.com/pocnet/pocd/domain/consensus/datastructures/derivedtables"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
	"github.com/pocnet/pocd/domain/consensus/processes/blockapplier"
	"github.com/pocnet/pocd/domain/consensus/processes/blockimporter"
	"github.com/pocnet/pocd/domain/consensus/processes/blockprocessor"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
	"github.com/pocnet/pocd/domain/consensus/processes/contractexecutor"
	"github.com/pocnet/pocd/domain/consensus/processes/difficultymanager"
	"github.com/pocnet/pocd/domain/consensus/processes/economicclustering"
	"github.com/pocnet/pocd/domain/consensus/processes/recurringpayments"
	"github.com/pocnet/pocd/domain/consensus/processes/transactionvalidator"
	infrastructuredatabase "github.com/pocnet/pocd/infrastructure/db/database"
	"golang.org/x/sync/semaphore"
)

const defaultChainStoreCacheSize = 1440

// Config is the configuration of a Consensus.
type Config struct {
	Params              *chaincfg.Params
	BlockProcessor      blockprocessor.Config
	Verification        blockverifier.SchedulerConfig
	ChainStoreCacheSize int
}

// External holds the collaborators a Consensus does not own.
type External struct {
	UnconfirmedPool model.UnconfirmedPool
	Broadcaster     model.BlockBroadcaster
	TimeSource      model.TimeSource
}

// Factory instantiates new Consensuses
type Factory interface {
	NewConsensus(config *Config, db infrastructuredatabase.Database, external External) (*Consensus, error)
}

type factory struct {
	acceleratedPermits *semaphore.Weighted
}

// NewFactory creates a new Consensus factory. Every Consensus created by
// the same factory shares the accelerated verification permits.
func NewFactory() Factory {
	return &factory{
		acceleratedPermits: semaphore.NewWeighted(blockverifier.DefaultAcceleratedPermits),
	}
}

// NewConsensus instantiates a new Consensus
func (f *factory) NewConsensus(config *Config, db infrastructuredatabase.Database,
	external External) (*Consensus, error) {

	databaseContext := database.New(db)
	params := config.Params

	// Data Structures
	chainStoreCacheSize := config.ChainStoreCacheSize
	if chainStoreCacheSize == 0 {
		chainStoreCacheSize = defaultChainStoreCacheSize
	}
	chainStore, err := chainstore.New(chainStoreCacheSize)
	if err != nil {
		return nil, err
	}
	publicKeyTable := derivedtables.NewPublicKeyTable()
	derivedTables := derivedtables.NewManager(publicKeyTable)
	notificationManager := notifications.New()

	// Processes
	difficultyManager := difficultymanager.New(params)
	blockVerifier := blockverifier.New(params, blockverifier.NewHitCalculator())
	economicClustering := economicclustering.New(params, chainStore)
	transactionValidator := transactionvalidator.New(params, publicKeyTable)
	blockApplier := blockapplier.New(publicKeyTable, transactionValidator)

	blockProcessor, err := blockprocessor.New(
		params,
		config.BlockProcessor,
		databaseContext,
		chainStore,
		derivedTables,
		difficultyManager,
		blockVerifier,
		economicClustering,
		transactionValidator,
		contractexecutor.New(),
		recurringpayments.NewDisabled(),
		blockApplier,
		external.UnconfirmedPool,
		external.Broadcaster,
		notificationManager,
		external.TimeSource)
	if err != nil {
		return nil, err
	}

	stagingCache := blockProcessor.StagingCache()
	scheduler := blockverifier.NewScheduler(config.Verification, stagingCache, blockVerifier, f.acceleratedPermits)
	importer := blockimporter.New(blockProcessor, stagingCache)

	return &Consensus{
		params:             params,
		databaseContext:    databaseContext,
		chainStore:         chainStore,
		blockProcessor:     blockProcessor,
		stagingCache:       stagingCache,
		scheduler:          scheduler,
		importer:           importer,
		difficultyManager:  difficultyManager,
		economicClustering: economicClustering,
		transactionService: transactionValidator,
		notifications:      notificationManager,
	}, nil
}
