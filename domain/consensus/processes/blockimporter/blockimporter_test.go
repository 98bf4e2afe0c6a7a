package blockimporter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/stretchr/testify/require"
)

// fakeChain commits every pushed block unless pushErr returns an error
// for it.
type fakeChain struct {
	lock    sync.Mutex
	blocks  []*model.Block
	pushErr func(block *model.Block) error
}

func (c *fakeChain) LastBlock() *model.Block {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.blocks[len(c.blocks)-1]
}

func (c *fakeChain) PushBlock(block *model.Block) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.pushErr != nil {
		if err := c.pushErr(block); err != nil {
			return err
		}
	}
	if block.PreviousBlockID != c.blocks[len(c.blocks)-1].ID() {
		return errors.Wrap(ruleerrors.ErrPreviousBlockMismatch, "does not extend the tip")
	}
	c.blocks = append(c.blocks, block)
	return nil
}

func (c *fakeChain) Block(id uint64) (*model.Block, bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, block := range c.blocks {
		if block.ID() == id {
			return block, true, nil
		}
	}
	return nil, false, nil
}

func (c *fakeChain) HasBlock(id uint64) (bool, error) {
	_, found, err := c.Block(id)
	return found, err
}

func setup(t *testing.T, length int) (*BlockImporter, *fakeChain, *stagingcache.StagingCache, []*model.Block) {
	params := &chaincfg.SimnetParams
	chain := &fakeChain{blocks: []*model.Block{params.GenesisBlock()}}
	cache := stagingcache.New(stagingcache.Config{
		MaxBlocks:   100,
		MaxBytes:    1 << 20,
		MaxRollback: params.MaxRollback,
	}, chain)

	generator := testutils.KeyPair(t, "generator")
	blocks := testutils.BuildChain(t, params, chain.LastBlock(), generator, length)
	for i, block := range blocks {
		block.SetLinkage(uint32(i+1), params.InitialBaseTarget, uint256.NewInt(uint64(i+1)))
		require.True(t, cache.Add(block))
	}
	return New(chain, cache), chain, cache, blocks
}

func TestImportRound(t *testing.T) {
	importer, chain, cache, blocks := setup(t, 3)

	for _, block := range blocks {
		imported, err := importer.ImportRound()
		require.NoError(t, err)
		require.True(t, imported)
		require.Same(t, block, chain.LastBlock())
	}
	require.Zero(t, cache.Size())

	imported, err := importer.ImportRound()
	require.NoError(t, err)
	require.False(t, imported)
}

func TestImportRoundBlacklistsOnNotAccepted(t *testing.T) {
	importer, chain, cache, blocks := setup(t, 2)
	peer := testutils.NewFakePeer("10.0.0.1:8123")
	blocks[0].SetOriginPeer(peer)
	chain.pushErr = func(*model.Block) error {
		return errors.Wrap(ruleerrors.ErrBadBlockSignature, "signature does not verify")
	}

	imported, err := importer.ImportRound()
	require.NoError(t, err)
	require.False(t, imported)
	require.True(t, peer.IsBlacklisted())
	require.Len(t, chain.blocks, 1)

	// The rejected block is unstaged, its successor no longer chains from
	// the tip and gets dropped on the next round.
	require.Equal(t, 1, cache.Size())
	imported, err = importer.ImportRound()
	require.NoError(t, err)
	require.False(t, imported)
	require.Zero(t, cache.Size())
}

func TestImportRoundDoesNotBlacklistOnOutOfOrder(t *testing.T) {
	importer, chain, _, blocks := setup(t, 1)
	peer := testutils.NewFakePeer("10.0.0.1:8123")
	blocks[0].SetOriginPeer(peer)
	chain.pushErr = func(*model.Block) error {
		return errors.Wrap(ruleerrors.ErrTimeTooNew, "block is from the future")
	}

	imported, err := importer.ImportRound()
	require.NoError(t, err)
	require.False(t, imported)
	require.False(t, peer.IsBlacklisted())
}

func TestImportRoundKeepsStagedBlocksWhileLocked(t *testing.T) {
	importer, chain, cache, blocks := setup(t, 2)

	// Another block took the tip, the staged ones are now stale.
	other := testutils.BuildBlock(t, &chaincfg.SimnetParams, chain.LastBlock(), testutils.KeyPair(t, "other"))
	require.NotEqual(t, blocks[0].ID(), other.ID())
	chain.blocks = append(chain.blocks, other)

	cache.Lock()
	imported, err := importer.ImportRound()
	require.NoError(t, err)
	require.False(t, imported)
	require.Equal(t, 2, cache.Size())

	cache.Unlock()
	imported, err = importer.ImportRound()
	require.NoError(t, err)
	require.False(t, imported)
	require.Zero(t, cache.Size())
}

func TestRunStopsOnInvariantViolation(t *testing.T) {
	importer, chain, _, _ := setup(t, 1)
	chain.pushErr = func(*model.Block) error {
		return errors.WithStack(model.ErrRollbackTooDeep)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := importer.Run(ctx)
	require.ErrorIs(t, err, model.ErrRollbackTooDeep)
}

func TestRunIsCancellable(t *testing.T) {
	importer, chain, _, blocks := setup(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- importer.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return chain.LastBlock() == blocks[2]
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}
