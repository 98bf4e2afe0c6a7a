package forging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pocnet/pocd/app/forging"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/pocnet/pocd/domain/miningmanager"
	"github.com/pocnet/pocd/domain/miningmanager/mempool"
	"github.com/pocnet/pocd/infrastructure/db/database/ldb"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type forgingNode struct {
	consensus   *consensus.Consensus
	timeSource  *testutils.FakeTimeSource
	broadcaster *testutils.FakeBroadcaster
	forger      *forging.Forger
}

func newForgingNode(t *testing.T) *forgingNode {
	params := &chaincfg.SimnetParams
	db, err := ldb.NewMemoryLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	node := &forgingNode{
		timeSource:  testutils.NewFakeTimeSource(params.GenesisTimestamp),
		broadcaster: &testutils.FakeBroadcaster{},
	}
	pool, err := mempool.New(mempool.DefaultConfig(), node.timeSource,
		mempool.ConfirmationsFunc(func(txID uint64) (bool, error) {
			return node.consensus.HasTransaction(txID)
		}))
	require.NoError(t, err)

	config := &consensus.Config{Params: params}
	config.BlockProcessor.StagingCache = stagingcache.Config{
		MaxBlocks:   100,
		MaxBytes:    1 << 20,
		MaxRollback: params.MaxRollback,
	}
	node.consensus, err = consensus.NewFactory().NewConsensus(config, db, consensus.External{
		UnconfirmedPool: pool,
		Broadcaster:     node.broadcaster,
		TimeSource:      node.timeSource,
	})
	require.NoError(t, err)
	pool.Subscribe(node.consensus.Notifications())

	miningManager := miningmanager.NewFactory().NewMiningManager(node.consensus, pool)
	node.forger = forging.New(params, node.consensus, miningManager, blockverifier.NewHitCalculator(),
		node.timeSource, testutils.KeyPair(t, "forger"))
	return node
}

func TestForgeRoundWaitsForTheDeadline(t *testing.T) {
	node := newForgingNode(t)
	genesis := node.consensus.LastBlock()

	block, err := node.forger.ForgeRound()
	require.NoError(t, err)
	require.Nil(t, block)
	require.Equal(t, genesis.ID(), node.consensus.LastBlock().ID())

	node.timeSource.Set(genesis.Timestamp + 1000)
	block, err = node.forger.ForgeRound()
	require.NoError(t, err)
	require.NotNil(t, block)
	require.Equal(t, block.ID(), node.consensus.LastBlock().ID())
	require.EqualValues(t, 1, block.Height())
	require.Equal(t, testutils.KeyPair(t, "forger").PublicKey(), block.GeneratorPublicKey)
	require.Len(t, node.broadcaster.Broadcast(), 1)

	// No time has passed since the forged block.
	block, err = node.forger.ForgeRound()
	require.NoError(t, err)
	require.Nil(t, block)
}

func TestForgeRoundWaitsForStagedBlocks(t *testing.T) {
	node := newForgingNode(t)
	params := node.consensus.Params()
	genesis := node.consensus.LastBlock()

	staged := testutils.BuildBlock(t, params, genesis, testutils.KeyPair(t, "other"))
	require.NoError(t, node.consensus.DifficultyManager().LinkBlock(staged, genesis, node.consensus.StagingCache().Block))
	require.True(t, node.consensus.StagingCache().Add(staged))

	node.timeSource.Set(genesis.Timestamp + 1000)
	block, err := node.forger.ForgeRound()
	require.NoError(t, err)
	require.Nil(t, block)
	require.Equal(t, genesis.ID(), node.consensus.LastBlock().ID())
}

func TestLoadKeyPair(t *testing.T) {
	dir := t.TempDir()
	mnemonicFile := filepath.Join(dir, "mnemonic")
	require.NoError(t, os.WriteFile(mnemonicFile, []byte("  "+testMnemonic+"\n"), 0600))

	keyPair, err := forging.LoadKeyPair(mnemonicFile, nil)
	require.NoError(t, err)
	again, err := forging.LoadKeyPair(mnemonicFile, []byte{})
	require.NoError(t, err)
	require.Equal(t, keyPair.PublicKey(), again.PublicKey())

	withPassphrase, err := forging.LoadKeyPair(mnemonicFile, []byte("secret"))
	require.NoError(t, err)
	require.NotEqual(t, keyPair.AccountID(), withPassphrase.AccountID())

	invalidFile := filepath.Join(dir, "invalid")
	require.NoError(t, os.WriteFile(invalidFile, []byte("abandon abandon abandon"), 0600))
	_, err = forging.LoadKeyPair(invalidFile, nil)
	require.Error(t, err)

	_, err = forging.LoadKeyPair(filepath.Join(dir, "missing"), nil)
	require.Error(t, err)
}
