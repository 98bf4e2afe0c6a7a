package blocksync_test

import (
	"context"
	"testing"
	"time"

	"github.com/pocnet/pocd/app/appmessage"
	"github.com/pocnet/pocd/app/protocol/flows/blocksync"
	"github.com/pocnet/pocd/app/protocol/peer"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/pocnet/pocd/infrastructure/db/database/ldb"
	"github.com/pocnet/pocd/util/signing"
	"github.com/stretchr/testify/require"
)

func newTestConsensus(t *testing.T, params *chaincfg.Params) *consensus.Consensus {
	db, err := ldb.NewMemoryLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	config := &consensus.Config{Params: params}
	config.BlockProcessor.StagingCache = stagingcache.Config{
		MaxBlocks:   100,
		MaxBytes:    1 << 20,
		MaxRollback: params.MaxRollback,
	}
	external := consensus.External{
		UnconfirmedPool: testutils.NewFakePool(),
		Broadcaster:     &testutils.FakeBroadcaster{},
		TimeSource:      testutils.NewFakeTimeSource(1_000_000),
	}
	c, err := consensus.NewFactory().NewConsensus(config, db, external)
	require.NoError(t, err)
	return c
}

// pushChain forges length blocks on top of the tip of each chain in turn.
// Every chain receives its own copy of the same blocks.
func pushChain(t *testing.T, generator *signing.KeyPair, length int, chains ...*consensus.Consensus) []*model.Block {
	params := chains[0].Params()
	blocks := testutils.BuildChain(t, params, chains[0].LastBlock(), generator, length)
	for _, chain := range chains {
		for _, block := range blocks {
			blockCopy, err := model.DeserializeBlock(model.SerializeBlock(block))
			require.NoError(t, err)
			require.NoError(t, chain.BlockProcessor().PushBlock(blockCopy))
		}
	}
	return blocks
}

// responderTransport answers peer requests straight from a Responder.
type responderTransport struct {
	*blocksync.Responder
	tamper           func(response *appmessage.GetNextBlocksResponseMessage)
	tamperMilestones func(response *appmessage.GetMilestoneBlockIDsResponseMessage)
}

func (rt *responderTransport) GetCumulativeDifficulty(ctx context.Context,
	request *appmessage.GetCumulativeDifficultyRequestMessage) (*appmessage.GetCumulativeDifficultyResponseMessage, error) {
	return rt.HandleGetCumulativeDifficulty(ctx, request)
}

func (rt *responderTransport) GetMilestoneBlockIDs(ctx context.Context,
	request *appmessage.GetMilestoneBlockIDsRequestMessage) (*appmessage.GetMilestoneBlockIDsResponseMessage, error) {
	response, err := rt.HandleGetMilestoneBlockIDs(ctx, request)
	if err == nil && rt.tamperMilestones != nil {
		rt.tamperMilestones(response)
	}
	return response, err
}

func (rt *responderTransport) GetNextBlockIDs(ctx context.Context,
	request *appmessage.GetNextBlockIDsRequestMessage) (*appmessage.GetNextBlockIDsResponseMessage, error) {
	return rt.HandleGetNextBlockIDs(ctx, request)
}

func (rt *responderTransport) GetNextBlocks(ctx context.Context,
	request *appmessage.GetNextBlocksRequestMessage) (*appmessage.GetNextBlocksResponseMessage, error) {

	response, err := rt.HandleGetNextBlocks(ctx, request)
	if err == nil && rt.tamper != nil {
		rt.tamper(response)
	}
	return response, err
}

func (rt *responderTransport) ProcessBlock(context.Context,
	*appmessage.ProcessBlockRequestMessage) (*appmessage.ProcessBlockResponseMessage, error) {
	return appmessage.NewProcessBlockResponseMessage(false), nil
}

func (rt *responderTransport) Close() error {
	return nil
}

type syncFixture struct {
	local, remote *consensus.Consensus
	transport     *responderTransport
	peer          *peer.Peer
	flow          *blocksync.Flow
}

func newSyncFixture(t *testing.T) *syncFixture {
	params := chaincfg.SimnetParams
	local := newTestConsensus(t, &params)
	remote := newTestConsensus(t, &params)

	transport := &responderTransport{Responder: blocksync.NewResponder(&params, remote)}
	remotePeer := peer.New("10.0.0.1:18123", transport)
	peers := peer.NewSet(8)
	require.NoError(t, peers.Add(remotePeer))

	return &syncFixture{
		local:     local,
		remote:    remote,
		transport: transport,
		peer:      remotePeer,
		flow:      blocksync.New(local, peers),
	}
}

func TestSyncRoundStagesBlocksFromHeavierPeer(t *testing.T) {
	f := newSyncFixture(t)
	blocks := pushChain(t, testutils.KeyPair(t, "remote"), 5, f.remote)

	require.NoError(t, f.flow.SyncRound(context.Background()))

	cache := f.local.StagingCache()
	require.Equal(t, 5, cache.Size())
	require.Equal(t, blocks[4].ID(), cache.LastBlockID())
	require.Equal(t, uint32(5), cache.LastBlock().Height())
	require.Equal(t, f.remote.LastBlock().CumulativeDifficulty(), cache.CumulativeDifficulty())
	require.Equal(t, f.peer.Address(), cache.LastBlock().OriginPeer().Address())
	require.False(t, f.peer.IsBlacklisted())

	feeder, height := f.flow.LastBlockchainFeeder()
	require.Same(t, f.peer, feeder)
	require.Equal(t, uint32(5), height)

	// Nothing left to download.
	require.NoError(t, f.flow.SyncRound(context.Background()))
	require.Equal(t, 5, cache.Size())
}

func TestSyncRoundIgnoresLighterPeer(t *testing.T) {
	f := newSyncFixture(t)
	pushChain(t, testutils.KeyPair(t, "remote"), 2, f.remote)
	localBlocks := pushChain(t, testutils.KeyPair(t, "local"), 3, f.local)

	require.NoError(t, f.flow.SyncRound(context.Background()))

	require.Zero(t, f.local.StagingCache().Size())
	require.Equal(t, localBlocks[2].ID(), f.local.LastBlock().ID())
	require.False(t, f.peer.IsBlacklisted())
}

func TestSyncRoundExtendsSharedChain(t *testing.T) {
	f := newSyncFixture(t)
	pushChain(t, testutils.KeyPair(t, "shared"), 3, f.remote, f.local)
	extension := pushChain(t, testutils.KeyPair(t, "remote"), 4, f.remote)

	require.NoError(t, f.flow.SyncRound(context.Background()))

	cache := f.local.StagingCache()
	require.Equal(t, 4, cache.Size())
	require.Equal(t, extension[3].ID(), cache.LastBlockID())
	require.Equal(t, uint32(7), cache.LastBlock().Height())
}

func TestSyncRoundResolvesFork(t *testing.T) {
	f := newSyncFixture(t)
	shared := pushChain(t, testutils.KeyPair(t, "shared"), 2, f.remote, f.local)
	pushChain(t, testutils.KeyPair(t, "local"), 3, f.local)
	fork := pushChain(t, testutils.KeyPair(t, "remote"), 5, f.remote)

	require.NoError(t, f.flow.SyncRound(context.Background()))

	require.Equal(t, fork[4].ID(), f.local.LastBlock().ID())
	require.Equal(t, uint32(7), f.local.LastBlock().Height())
	onChain, err := f.local.BlockProcessor().HasBlock(shared[1].ID())
	require.NoError(t, err)
	require.True(t, onChain)
	require.Zero(t, f.local.StagingCache().Size())
	require.False(t, f.peer.IsBlacklisted())
}

func TestSyncRoundBlacklistsOversizedResponses(t *testing.T) {
	f := newSyncFixture(t)
	pushChain(t, testutils.KeyPair(t, "remote"), 2, f.remote)
	f.transport.tamper = func(response *appmessage.GetNextBlocksResponseMessage) {
		padding := make([]*appmessage.BlockJSON, f.local.Params().MaxNextBlocks)
		response.NextBlocks = append(response.NextBlocks, padding...)
	}

	require.NoError(t, f.flow.SyncRound(context.Background()))

	require.True(t, f.peer.IsBlacklisted())
	require.Zero(t, f.local.StagingCache().Size())
}

func TestSyncRoundBlacklistsMalformedBlocks(t *testing.T) {
	f := newSyncFixture(t)
	pushChain(t, testutils.KeyPair(t, "remote"), 2, f.remote)
	f.transport.tamper = func(response *appmessage.GetNextBlocksResponseMessage) {
		response.NextBlocks[1].PayloadHash = "not hex"
	}

	require.NoError(t, f.flow.SyncRound(context.Background()))

	require.True(t, f.peer.IsBlacklisted())
	// The block before the malformed one was staged already.
	require.Equal(t, 1, f.local.StagingCache().Size())
}

func TestSyncRoundStopsAtLinkageMismatch(t *testing.T) {
	f := newSyncFixture(t)
	blocks := pushChain(t, testutils.KeyPair(t, "remote"), 3, f.remote)
	f.transport.tamper = func(response *appmessage.GetNextBlocksResponseMessage) {
		response.NextBlocks[1], response.NextBlocks[2] = response.NextBlocks[2], response.NextBlocks[1]
	}

	require.NoError(t, f.flow.SyncRound(context.Background()))

	cache := f.local.StagingCache()
	require.Equal(t, 1, cache.Size())
	require.Equal(t, blocks[0].ID(), cache.LastBlockID())
	require.False(t, f.peer.IsBlacklisted())
}

func TestSyncRoundDiscardsForkAtLinkageMismatch(t *testing.T) {
	f := newSyncFixture(t)
	pushChain(t, testutils.KeyPair(t, "shared"), 2, f.remote, f.local)
	local := pushChain(t, testutils.KeyPair(t, "local"), 1, f.local)
	pushChain(t, testutils.KeyPair(t, "remote"), 5, f.remote)
	f.transport.tamper = func(response *appmessage.GetNextBlocksResponseMessage) {
		response.NextBlocks[3], response.NextBlocks[4] = response.NextBlocks[4], response.NextBlocks[3]
	}

	require.NoError(t, f.flow.SyncRound(context.Background()))

	require.Equal(t, local[0].ID(), f.local.LastBlock().ID())
	require.Equal(t, uint32(3), f.local.LastBlock().Height())
	require.Zero(t, f.local.StagingCache().Size())
	require.False(t, f.peer.IsBlacklisted())
}

func TestSyncRoundBlacklistsRepeatedMilestones(t *testing.T) {
	f := newSyncFixture(t)
	pushChain(t, testutils.KeyPair(t, "local"), 1, f.local)
	remote := pushChain(t, testutils.KeyPair(t, "remote"), 3, f.remote)
	f.transport.tamperMilestones = func(response *appmessage.GetMilestoneBlockIDsResponseMessage) {
		unknown := model.IDToString(remote[2].ID())
		response.MilestoneBlockIDs = []string{unknown, unknown}
		response.Last = false
	}

	require.NoError(t, f.flow.SyncRound(context.Background()))

	require.True(t, f.peer.IsBlacklisted())
	require.Zero(t, f.local.StagingCache().Size())
}

func TestSyncRoundSkipsWhenCacheIsFull(t *testing.T) {
	f := newSyncFixture(t)
	pushChain(t, testutils.KeyPair(t, "remote"), 2, f.remote)

	params := f.local.Params()
	previous := f.local.LastBlock()
	for !f.local.StagingCache().IsFull() {
		block := testutils.BuildBlock(t, params, previous, testutils.KeyPair(t, "local"))
		require.NoError(t, f.local.DifficultyManager().LinkBlock(block, previous, f.local.StagingCache().Block))
		require.True(t, f.local.StagingCache().Add(block))
		previous = block
	}

	require.NoError(t, f.flow.SyncRound(context.Background()))
	feeder, _ := f.flow.LastBlockchainFeeder()
	require.Nil(t, feeder)
}

func TestSyncRoundWithoutPeers(t *testing.T) {
	params := chaincfg.SimnetParams
	local := newTestConsensus(t, &params)
	flow := blocksync.New(local, peer.NewSet(8))

	require.NoError(t, flow.SyncRound(context.Background()))
	require.Zero(t, local.StagingCache().Size())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newSyncFixture(t)
	pushChain(t, testutils.KeyPair(t, "remote"), 2, f.remote)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.flow.Run(ctx) }()

	require.Eventually(t, func() bool { return f.local.StagingCache().Size() == 2 }, 10*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop")
	}
}
