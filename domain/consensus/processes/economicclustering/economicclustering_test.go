package economicclustering

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/database"
	"github.com/pocnet/pocd/domain/consensus/datastructures/chainstore"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/pocnet/pocd/infrastructure/db/database/ldb"
	"github.com/stretchr/testify/require"
)

// newTestChain commits genesis and length blocks spaced by
// testutils.BlockSpacing seconds.
func newTestChain(t *testing.T, length int) (*chainstore.ChainStore, model.DBManager, []*model.Block) {
	db, err := ldb.NewMemoryLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	dbManager := database.New(db)

	chainStore, err := chainstore.New(100)
	require.NoError(t, err)

	params := &chaincfg.SimnetParams
	genesis := params.GenesisBlock()
	blocks := append([]*model.Block{genesis},
		testutils.BuildChain(t, params, genesis, testutils.KeyPair(t, "generator"), length)...)

	dbTx, err := dbManager.Begin()
	require.NoError(t, err)
	defer dbTx.RollbackUnlessClosed()
	for height, block := range blocks {
		if height > 0 {
			block.SetLinkage(uint32(height), params.InitialBaseTarget, uint256.NewInt(uint64(height)))
		}
		require.NoError(t, chainStore.StoreBlock(dbTx, block))
	}
	require.NoError(t, chainStore.StoreTip(dbTx, blocks[length].ID()))
	require.NoError(t, dbTx.Commit())
	return chainStore, dbManager, blocks
}

func TestECBlock(t *testing.T) {
	chainStore, dbManager, blocks := newTestChain(t, 10)

	withTerminator := chaincfg.SimnetParams
	withTerminator.ECRuleTerminator = 30

	tests := []struct {
		name           string
		params         *chaincfg.Params
		timestamp      uint32
		expectedHeight uint32
	}{
		{name: "at the tip", params: &chaincfg.SimnetParams, timestamp: 100, expectedHeight: 7},
		{name: "after the tip", params: &chaincfg.SimnetParams, timestamp: 110, expectedHeight: 7},
		{name: "between blocks", params: &chaincfg.SimnetParams, timestamp: 95, expectedHeight: 6},
		{name: "rule terminator", params: &withTerminator, timestamp: 100, expectedHeight: 4},
		{name: "rule terminator between blocks", params: &withTerminator, timestamp: 105, expectedHeight: 4},
		{name: "near genesis", params: &withTerminator, timestamp: 86, expectedHeight: 2},
	}
	for _, test := range tests {
		ec := New(test.params, chainStore)
		block, err := ec.ECBlock(dbManager, test.timestamp)
		require.NoError(t, err, test.name)
		require.Equal(t, blocks[test.expectedHeight].ID(), block.ID(), test.name)
	}
}

func TestECBlockShortChain(t *testing.T) {
	chainStore, dbManager, blocks := newTestChain(t, 2)

	block, err := New(&chaincfg.SimnetParams, chainStore).ECBlock(dbManager, 20)
	require.NoError(t, err)
	require.Equal(t, blocks[0].ID(), block.ID())
}

func TestECBlockTooOld(t *testing.T) {
	chainStore, dbManager, _ := newTestChain(t, 10)

	ec := New(&chaincfg.SimnetParams, chainStore)
	_, err := ec.ECBlock(dbManager, 85)
	require.NoError(t, err)
	_, err = ec.ECBlock(dbManager, 84)
	require.Error(t, err)
}

func TestVerifyFork(t *testing.T) {
	params := &chaincfg.SimnetParams
	chainStore, dbManager, blocks := newTestChain(t, 10)
	ec := New(params, chainStore)
	sender := testutils.KeyPair(t, "sender")
	recipient := testutils.Account(t, "recipient")

	onChain := testutils.BuildPayment(t, params, sender, recipient, 100,
		testutils.PaymentOptions{ECBlock: blocks[6]})
	ok, err := ec.VerifyFork(dbManager, onChain, 10)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ec.VerifyFork(dbManager, onChain, 5)
	require.NoError(t, err)
	require.False(t, ok)

	offChain := testutils.BuildPayment(t, params, sender, recipient, 100,
		testutils.PaymentOptions{ECBlock: blocks[6]})
	offChain.ECBlockID = blocks[5].ID()
	ok, err = ec.VerifyFork(dbManager, offChain, 10)
	require.NoError(t, err)
	require.False(t, ok)

	// A transaction bound through a reference is not checked itself.
	reference := onChain.FullHash()
	referencing := testutils.BuildPayment(t, params, sender, recipient, 100,
		testutils.PaymentOptions{ECBlock: blocks[6], Reference: &reference})
	referencing.ECBlockID = blocks[5].ID()
	ok, err = ec.VerifyFork(dbManager, referencing, 10)
	require.NoError(t, err)
	require.True(t, ok)
}
