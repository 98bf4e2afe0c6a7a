package blockverifier_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

// genesisChain is a committed chain made of the genesis block only.
type genesisChain struct {
	lock    sync.Mutex
	genesis *model.Block
	err     error
}

func (c *genesisChain) LastBlock() *model.Block {
	return c.genesis
}

func (c *genesisChain) Block(id uint64) (*model.Block, bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.err != nil {
		return nil, false, c.err
	}
	if id == c.genesis.ID() {
		return c.genesis, true, nil
	}
	return nil, false, nil
}

func (c *genesisChain) HasBlock(id uint64) (bool, error) {
	_, found, err := c.Block(id)
	return found, err
}

func (c *genesisChain) setErr(err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.err = err
}

type schedulerTest struct {
	chain     *genesisChain
	cache     *stagingcache.StagingCache
	scheduler *blockverifier.Scheduler
	permits   *semaphore.Weighted
	blocks    []*model.Block
	peer      *testutils.FakePeer
}

func newSchedulerTest(t *testing.T, config blockverifier.SchedulerConfig, length int) *schedulerTest {
	params := &chaincfg.SimnetParams
	chain := &genesisChain{genesis: params.GenesisBlock()}
	cache := stagingcache.New(stagingcache.Config{
		MaxBlocks:   100,
		MaxBytes:    1 << 20,
		MaxRollback: params.MaxRollback,
	}, chain)

	peer := testutils.NewFakePeer("10.0.0.2:8123")
	blocks := testutils.BuildChain(t, params, chain.genesis, testutils.KeyPair(t, "generator"), length)
	for _, block := range blocks {
		block.SetOriginPeer(peer)
		require.True(t, cache.Add(block))
	}

	permits := semaphore.NewWeighted(blockverifier.DefaultAcceleratedPermits)
	verifier := blockverifier.New(params, blockverifier.NewHitCalculator())
	return &schedulerTest{
		chain:     chain,
		cache:     cache,
		scheduler: blockverifier.NewScheduler(config, cache, verifier, permits),
		permits:   permits,
		blocks:    blocks,
		peer:      peer,
	}
}

func sequentialConfig() blockverifier.SchedulerConfig {
	return blockverifier.SchedulerConfig{AcceleratedThreshold: 1000, AcceleratedBatchSize: 512}
}

func acceleratedConfig() blockverifier.SchedulerConfig {
	return blockverifier.SchedulerConfig{Accelerated: true, AcceleratedThreshold: 1, AcceleratedBatchSize: 512}
}

func TestSequentialVerification(t *testing.T) {
	st := newSchedulerTest(t, sequentialConfig(), 3)

	for i, block := range st.blocks {
		require.True(t, st.scheduler.VerifyRound(context.Background()))
		require.True(t, block.IsVerified())
		require.Equal(t, len(st.blocks)-i-1, st.cache.UnverifiedSize())
	}
	require.False(t, st.scheduler.VerifyRound(context.Background()))
	require.Equal(t, 3, st.cache.Size())
	require.False(t, st.peer.IsBlacklisted())
}

func TestSequentialVerificationFailure(t *testing.T) {
	st := newSchedulerTest(t, sequentialConfig(), 3)
	st.blocks[0].Nonce++

	require.True(t, st.scheduler.VerifyRound(context.Background()))
	require.True(t, st.peer.IsBlacklisted())
	require.Zero(t, st.cache.Size())
}

func TestAcceleratedVerification(t *testing.T) {
	st := newSchedulerTest(t, acceleratedConfig(), 4)

	require.True(t, st.scheduler.VerifyRound(context.Background()))
	for _, block := range st.blocks {
		require.True(t, block.IsVerified())
	}
	require.Zero(t, st.cache.UnverifiedSize())

	// The permit is given back.
	require.True(t, st.permits.TryAcquire(blockverifier.DefaultAcceleratedPermits))
}

func TestAcceleratedVerificationFailure(t *testing.T) {
	st := newSchedulerTest(t, acceleratedConfig(), 4)
	st.blocks[2].Nonce++

	require.True(t, st.scheduler.VerifyRound(context.Background()))
	require.True(t, st.peer.IsBlacklisted())
	require.Zero(t, st.cache.Size())
}

func TestAcceleratedVerificationBelowThreshold(t *testing.T) {
	config := acceleratedConfig()
	config.AcceleratedThreshold = 10
	st := newSchedulerTest(t, config, 4)

	require.True(t, st.scheduler.VerifyRound(context.Background()))
	require.Equal(t, 3, st.cache.UnverifiedSize())
}

func TestAcceleratedVerificationWithoutPermit(t *testing.T) {
	st := newSchedulerTest(t, acceleratedConfig(), 4)
	require.True(t, st.permits.TryAcquire(blockverifier.DefaultAcceleratedPermits))

	// Acquisition does not wait, the round verifies one block sequentially.
	require.True(t, st.scheduler.VerifyRound(context.Background()))
	require.Equal(t, 3, st.cache.UnverifiedSize())
}

func TestAcceleratedInfrastructureFailureFallsBack(t *testing.T) {
	st := newSchedulerTest(t, acceleratedConfig(), 4)
	st.chain.setErr(errors.New("storage unavailable"))

	require.False(t, st.scheduler.VerifyRound(context.Background()))
	require.False(t, st.peer.IsBlacklisted())
	require.Equal(t, 4, st.cache.Size())
	require.Equal(t, 4, st.cache.UnverifiedSize())

	st.chain.setErr(nil)
	require.True(t, st.scheduler.VerifyRound(context.Background()))
	require.Zero(t, st.cache.UnverifiedSize())
}

func TestRunVerifiesUntilCancelled(t *testing.T) {
	st := newSchedulerTest(t, sequentialConfig(), 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		st.scheduler.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return st.cache.UnverifiedSize() == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}
