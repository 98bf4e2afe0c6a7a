package blockprocessor

import (
	"testing"

	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/database"
	"github.com/pocnet/pocd/domain/consensus/datastructures/chainstore"
	"github.com/pocnet/pocd/domain/consensus/datastructures/derivedtables"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
	"github.com/pocnet/pocd/domain/consensus/processes/blockapplier"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
	"github.com/pocnet/pocd/domain/consensus/processes/contractexecutor"
	"github.com/pocnet/pocd/domain/consensus/processes/difficultymanager"
	"github.com/pocnet/pocd/domain/consensus/processes/economicclustering"
	"github.com/pocnet/pocd/domain/consensus/processes/recurringpayments"
	"github.com/pocnet/pocd/domain/consensus/processes/transactionvalidator"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/pocnet/pocd/infrastructure/db/database/ldb"
	"github.com/pocnet/pocd/util/signing"
	"github.com/stretchr/testify/require"
)

const testNow = 10_000_000

type testChain struct {
	t             *testing.T
	params        *chaincfg.Params
	bp            *BlockProcessor
	pool          *testutils.FakePool
	broadcaster   *testutils.FakeBroadcaster
	timeSource    *testutils.FakeTimeSource
	notifications *notifications.Manager
	generator     *signing.KeyPair
}

func newTestChain(t *testing.T, params *chaincfg.Params, config Config) *testChain {
	db, err := ldb.NewMemoryLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if config.StagingCache.MaxBlocks == 0 {
		config.StagingCache = stagingcache.Config{
			MaxBlocks:   100,
			MaxBytes:    1 << 20,
			MaxRollback: params.MaxRollback,
		}
	}

	chainStore, err := chainstore.New(100)
	require.NoError(t, err)
	publicKeys := derivedtables.NewPublicKeyTable()
	transactionValidator := transactionvalidator.New(params, publicKeys)

	tc := &testChain{
		t:             t,
		params:        params,
		pool:          testutils.NewFakePool(),
		broadcaster:   &testutils.FakeBroadcaster{},
		timeSource:    testutils.NewFakeTimeSource(testNow),
		notifications: notifications.New(),
		generator:     testutils.KeyPair(t, "generator"),
	}
	tc.bp, err = New(
		params,
		config,
		database.New(db),
		chainStore,
		derivedtables.NewManager(publicKeys),
		difficultymanager.New(params),
		blockverifier.New(params, blockverifier.NewHitCalculator()),
		economicclustering.New(params, chainStore),
		transactionValidator,
		contractexecutor.New(),
		recurringpayments.NewDisabled(),
		blockapplier.New(publicKeys, transactionValidator),
		tc.pool,
		tc.broadcaster,
		tc.notifications,
		tc.timeSource)
	require.NoError(t, err)
	return tc
}

func newSimnetChain(t *testing.T) *testChain {
	params := chaincfg.SimnetParams
	return newTestChain(t, &params, Config{})
}

// next builds a block on top of the tip.
func (tc *testChain) next(txs ...*model.Transaction) *model.Block {
	return testutils.BuildBlock(tc.t, tc.params, tc.bp.LastBlock(), tc.generator, txs...)
}

// push builds and pushes a block on top of the tip.
func (tc *testChain) push(txs ...*model.Transaction) *model.Block {
	block := tc.next(txs...)
	require.NoError(tc.t, tc.bp.PushBlock(block))
	return block
}

func (tc *testChain) pushChain(length int) []*model.Block {
	blocks := make([]*model.Block, 0, length)
	for i := 0; i < length; i++ {
		blocks = append(blocks, tc.push())
	}
	return blocks
}

// payment returns a payment from sender that fits the block following the
// tip.
func (tc *testChain) payment(sender string, options testutils.PaymentOptions) *model.Transaction {
	timestamp := tc.bp.LastBlock().Timestamp + testutils.BlockSpacing
	return testutils.BuildPayment(tc.t, tc.params, testutils.KeyPair(tc.t, sender),
		testutils.Account(tc.t, "recipient"), timestamp, options)
}

func (tc *testChain) requireTip(expected *model.Block) {
	tip := tc.bp.LastBlock()
	require.Equal(tc.t, expected.ID(), tip.ID(), "unexpected tip")
	require.Equal(tc.t, expected.Height(), tip.Height(), "unexpected height")

	storedTipID, found, err := tc.bp.ChainStore().Tip(tc.bp.DatabaseContext())
	require.NoError(tc.t, err)
	require.True(tc.t, found)
	require.Equal(tc.t, expected.ID(), storedTipID, "unexpected stored tip")
}
