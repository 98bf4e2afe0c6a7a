package app

import (
	"context"
	"sync/atomic"

	"github.com/pocnet/pocd/app/forging"
	"github.com/pocnet/pocd/app/protocol"
	"github.com/pocnet/pocd/app/protocol/peer"
	"github.com/pocnet/pocd/domain/consensus"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
	"github.com/pocnet/pocd/domain/miningmanager"
	"github.com/pocnet/pocd/domain/miningmanager/mempool"
	"github.com/pocnet/pocd/infrastructure/config"
	infrastructuredatabase "github.com/pocnet/pocd/infrastructure/db/database"
	"github.com/pocnet/pocd/infrastructure/metrics"
	"github.com/pocnet/pocd/infrastructure/network/peerrpc"
	"github.com/pocnet/pocd/util/clock"
	"github.com/pocnet/pocd/util/signing"
)

// ComponentManager is a wrapper for all the pocd services
type ComponentManager struct {
	cfg             *config.Config
	consensus       *consensus.Consensus
	miningManager   miningmanager.MiningManager
	protocolManager *protocol.Manager
	peerServer      *peerrpc.Server
	metricsServer   *metrics.Server
	forger          *forging.Forger

	cancel            context.CancelFunc
	started, shutdown int32
}

// NewComponentManager returns a new ComponentManager instance. A nil
// forgingKey disables forging.
// Use Start() to begin all services within this ComponentManager
func NewComponentManager(cfg *config.Config, db infrastructuredatabase.Database,
	forgingKey *signing.KeyPair) (*ComponentManager, error) {

	params := cfg.NetParams()
	timeSource := clock.New(params)
	peers := peer.NewSet(cfg.MaxBroadcastPeers)

	// The pool is built before the chain it asks about.
	var c *consensus.Consensus
	unconfirmedPool, err := mempool.New(&mempool.Config{MaximumTransactionCount: cfg.MaxUnconfirmed}, timeSource,
		mempool.ConfirmationsFunc(func(txID uint64) (bool, error) {
			return c.HasTransaction(txID)
		}))
	if err != nil {
		return nil, err
	}

	consensusConfig := &consensus.Config{
		Params: params,
		Verification: blockverifier.SchedulerConfig{
			Accelerated:          cfg.AcceleratedVerify,
			AcceleratedThreshold: cfg.AcceleratedQueueThreshold,
			AcceleratedBatchSize: cfg.AcceleratedBatchSize,
		},
		ChainStoreCacheSize: cfg.ChainStoreCacheSize,
	}
	consensusConfig.BlockProcessor.TrimDerivedTables = cfg.TrimDerivedTables
	consensusConfig.BlockProcessor.StagingCache = stagingcache.Config{
		MaxBlocks:   cfg.BlockCacheCount,
		MaxBytes:    cfg.BlockCacheMB * 1024 * 1024,
		MaxRollback: params.MaxRollback,
	}
	c, err = consensus.NewFactory().NewConsensus(consensusConfig, db, consensus.External{
		UnconfirmedPool: unconfirmedPool,
		Broadcaster:     peers,
		TimeSource:      timeSource,
	})
	if err != nil {
		return nil, err
	}
	unconfirmedPool.Subscribe(c.Notifications())

	miningManager := miningmanager.NewFactory().NewMiningManager(c, unconfirmedPool)
	protocolManager := protocol.NewManager(c, peers)

	var forger *forging.Forger
	if forgingKey != nil {
		forger = forging.New(params, c, miningManager, blockverifier.NewHitCalculator(), timeSource, forgingKey)
	}

	return &ComponentManager{
		cfg:             cfg,
		consensus:       c,
		miningManager:   miningManager,
		protocolManager: protocolManager,
		peerServer:      peerrpc.NewServer(cfg.Listeners, protocolManager),
		forger:          forger,
	}, nil
}

// Consensus returns the chain of this ComponentManager
func (a *ComponentManager) Consensus() *consensus.Consensus {
	return a.consensus
}

// MiningManager returns the MiningManager of this ComponentManager
func (a *ComponentManager) MiningManager() miningmanager.MiningManager {
	return a.miningManager
}

// ProtocolManager returns the protocol.Manager of this ComponentManager
func (a *ComponentManager) ProtocolManager() *protocol.Manager {
	return a.protocolManager
}

// Start launches all the pocd services. They run until ctx is cancelled
// or Stop is called.
func (a *ComponentManager) Start(ctx context.Context) error {
	// Already started?
	if atomic.AddInt32(&a.started, 1) != 1 {
		return nil
	}

	log.Trace("Starting pocd")
	ctx, a.cancel = context.WithCancel(ctx)

	err := a.peerServer.Start()
	if err != nil {
		return err
	}

	if a.cfg.MetricsListen != "" {
		a.metricsServer, err = metrics.Start(a.cfg.MetricsListen)
		if err != nil {
			return err
		}
	}

	err = a.protocolManager.ConnectToPeers(a.cfg.ConnectPeers)
	if err != nil {
		return err
	}

	a.consensus.Start(ctx, func(err error) {
		if err != nil {
			log.Criticalf("Block import stopped: %+v", err)
		}
	})
	a.protocolManager.Start(ctx)
	if a.forger != nil {
		a.forger.Start(ctx)
	}

	log.Infof("Node started at height %d", a.consensus.LastBlock().Height())
	return nil
}

// Stop gracefully shuts down all the pocd services.
func (a *ComponentManager) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&a.shutdown, 1) != 1 {
		log.Infof("Pocd is already in the process of shutting down")
		return
	}

	log.Warnf("Pocd shutting down")

	if a.cancel != nil {
		a.cancel()
	}

	err := a.peerServer.Stop()
	if err != nil {
		log.Errorf("Error stopping the peer server: %+v", err)
	}

	if a.metricsServer != nil {
		err := a.metricsServer.Stop()
		if err != nil {
			log.Errorf("Error stopping the metrics server: %+v", err)
		}
	}

	a.protocolManager.Close()
}
