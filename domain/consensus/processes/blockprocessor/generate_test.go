package blockprocessor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/stretchr/testify/require"
)

func TestGenerateBlock(t *testing.T) {
	tc := newSimnetChain(t)
	tc.pushChain(2)
	previous := tc.bp.LastBlock()
	tc.timeSource.Set(previous.Timestamp + testutils.BlockSpacing)

	first := tc.payment("first", testutils.PaymentOptions{})
	second := tc.payment("second", testutils.PaymentOptions{Amount: 5, Fee: 3})
	alias := testutils.BuildAliasAssignment(t, tc.params, testutils.KeyPair(t, "alias owner"), "pocnet", previous.Timestamp)
	sameAlias := testutils.BuildAliasAssignment(t, tc.params, testutils.KeyPair(t, "squatter"), "POCNET", previous.Timestamp)
	invalid := testutils.BuildAliasAssignment(t, tc.params, testutils.KeyPair(t, "invalid"), "no spaces allowed", previous.Timestamp)
	for _, tx := range []*model.Transaction{first, second, alias, sameAlias, invalid} {
		tc.pool.Add(tx)
	}

	var generated []*model.Block
	tc.notifications.Subscribe(notifications.BlockGenerated, func(block *model.Block) {
		generated = append(generated, block)
	})

	block, err := tc.bp.GenerateBlock(tc.generator, 7)
	require.NoError(t, err)
	tc.requireTip(block)
	require.Equal(t, []*model.Block{block}, generated)
	require.Equal(t, previous.Height()+1, block.Height())
	require.Equal(t, uint64(7), block.Nonce)

	require.Len(t, block.Transactions, 3)
	for i := 1; i < len(block.Transactions); i++ {
		require.True(t, block.Transactions[i-1].Less(block.Transactions[i]))
	}
	require.Equal(t, first.Amount+second.Amount, block.TotalAmount)
	require.Equal(t, first.Fee+second.Fee+alias.Fee, block.TotalFee)

	includedAliases := 0
	for _, tx := range block.Transactions {
		if tx.ID() == alias.ID() || tx.ID() == sameAlias.ID() {
			includedAliases++
		}
	}
	require.Equal(t, 1, includedAliases, "only one assignment of an alias fits a block")
	require.True(t, tc.pool.Contains(alias) && tc.pool.Contains(sameAlias),
		"transactions left out for a duplicate key should stay pooled")
	require.False(t, tc.pool.Contains(invalid), "an invalid transaction should be evicted")
	require.Equal(t, []*model.Block{block}, tc.broadcaster.Broadcast())
}

func TestGenerateEmptyBlock(t *testing.T) {
	tc := newSimnetChain(t)
	tc.timeSource.Set(tc.bp.LastBlock().Timestamp + testutils.BlockSpacing)

	block, err := tc.bp.GenerateBlock(tc.generator, 0)
	require.NoError(t, err)
	require.Empty(t, block.Transactions)
	require.Equal(t, model.CalculatePayloadHash(nil), block.PayloadHash)
	tc.requireTip(block)
}

func TestGenerateBlockWithStagedBlocks(t *testing.T) {
	tc := newSimnetChain(t)
	tip := tc.bp.LastBlock()
	require.True(t, tc.bp.StagingCache().Add(tc.next()))

	_, err := tc.bp.GenerateBlock(tc.generator, 0)
	require.True(t, errors.Is(err, ErrStagingCacheNotEmpty), "unexpected error: %v", err)
	tc.requireTip(tip)
}

func TestGenerateBlockTooEarly(t *testing.T) {
	tc := newSimnetChain(t)
	tc.pushChain(1)
	tip := tc.bp.LastBlock()
	tc.timeSource.Set(tip.Timestamp)

	_, err := tc.bp.GenerateBlock(tc.generator, 0)
	require.Error(t, err)
	tc.requireTip(tip)
}
