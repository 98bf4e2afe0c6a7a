package blocksync

import (
	"context"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/app/appmessage"
	peerpkg "github.com/pocnet/pocd/app/protocol/peer"
	"github.com/pocnet/pocd/app/protocol/protocolerrors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/infrastructure/metrics"
	"github.com/pocnet/pocd/util/panics"
)

// roundInterval is the pause between two sync rounds.
const roundInterval = 10 * time.Millisecond

// SyncContext is the interface for the context needed by the block sync flow.
type SyncContext interface {
	Params() *chaincfg.Params
	StagingCache() *stagingcache.StagingCache
	DifficultyManager() model.DifficultyManager
	ResolveFork(ctx context.Context, peer model.BlockOrigin, commonBlock *model.Block, forkBlocks []*model.Block) error
}

// PeerSource hands out the peer to sync with.
type PeerSource interface {
	AnyConnectedPeer() (*peerpkg.Peer, bool)
}

// Flow downloads blocks from peers whose chain is heavier than the staged
// tip. Blocks extending the staged tip go to the staging cache; blocks
// forking below it are handed to fork resolution.
type Flow struct {
	SyncContext
	peers PeerSource

	feederLock   sync.RWMutex
	feeder       *peerpkg.Peer
	feederHeight uint32
}

// New returns a sync flow drawing peers from peers.
func New(syncContext SyncContext, peers PeerSource) *Flow {
	return &Flow{
		SyncContext: syncContext,
		peers:       peers,
	}
}

// Start runs the flow in its own goroutine until ctx is cancelled. An
// invariant violation terminates the process.
func (flow *Flow) Start(ctx context.Context) {
	spawn("blocksync.Run", func() {
		err := flow.Run(ctx)
		if err != nil {
			panics.Exit(log, fmt.Sprintf("Block sync stopped: %+v", err))
		}
	})
}

// Run performs sync rounds until ctx is cancelled. It returns only on an
// invariant violation, or nil once ctx is done.
func (flow *Flow) Run(ctx context.Context) error {
	log.Infof("Starting block sync")
	defer log.Infof("Block sync stopped")

	for {
		err := flow.SyncRound(ctx)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(roundInterval):
		}
	}
}

// LastBlockchainFeeder returns the last peer asked for its chain and the
// height it reported.
func (flow *Flow) LastBlockchainFeeder() (*peerpkg.Peer, uint32) {
	flow.feederLock.RLock()
	defer flow.feederLock.RUnlock()

	return flow.feeder, flow.feederHeight
}

func (flow *Flow) setFeeder(peer *peerpkg.Peer, height uint32) {
	flow.feederLock.Lock()
	defer flow.feederLock.Unlock()

	flow.feeder = peer
	flow.feederHeight = height
	metrics.SetFeederHeight(height)
}

// SyncRound performs a single download attempt from a random connected
// peer. Misbehaving peers are blacklisted. Only invariant violations are
// returned.
func (flow *Flow) SyncRound(ctx context.Context) error {
	if flow.StagingCache().IsFull() {
		return nil
	}
	peer, ok := flow.peers.AnyConnectedPeer()
	if !ok {
		return nil
	}

	err := flow.syncWithPeer(ctx, peer)
	if err == nil {
		return nil
	}
	if model.IsInvariantViolation(err) {
		return err
	}
	if protocolerrors.ShouldBlacklist(err) {
		log.Infof("Blacklisting %s: %s", peer, err)
		peer.Blacklist(err)
		return nil
	}
	log.Debugf("Sync with %s failed: %s", peer, err)
	return nil
}

func (flow *Flow) syncWithPeer(ctx context.Context, peer *peerpkg.Peer) error {
	cache := flow.StagingCache()

	response, err := peer.Transport().GetCumulativeDifficulty(ctx,
		appmessage.NewGetCumulativeDifficultyRequestMessage())
	if err != nil {
		return errors.Wrap(err, "cumulative difficulty request failed")
	}
	if response.BlockchainHeight == nil || response.CumulativeDifficulty == "" {
		log.Debugf("Peer %s did not report its chain", peer)
		return nil
	}
	flow.setFeeder(peer, *response.BlockchainHeight)

	peerDifficulty, err := uint256.FromDecimal(response.CumulativeDifficulty)
	if err != nil {
		return protocolerrors.Wrapf(true, err, "malformed cumulative difficulty %q", response.CumulativeDifficulty)
	}
	localDifficulty := cache.CumulativeDifficulty()
	if !peerDifficulty.Gt(localDifficulty) {
		return nil
	}

	genesisID := flow.Params().GenesisBlockID()
	cacheLastBlockID := cache.LastBlockID()
	commonBlockID := genesisID
	if cacheLastBlockID != genesisID {
		commonBlockID, err = flow.commonMilestoneBlockID(ctx, peer, cacheLastBlockID)
		if err != nil || commonBlockID == 0 {
			return err
		}
	}

	saveInCache := true
	if commonBlockID != cacheLastBlockID {
		canBeFork, err := cache.CanBeFork(commonBlockID)
		if err != nil {
			return err
		}
		if !canBeFork {
			log.Warnf("Peer %s offers a fork more than %d blocks deep, ignoring it",
				peer, flow.Params().MaxRollback)
			return nil
		}
		commonBlockID, err = flow.commonBlockID(ctx, peer, commonBlockID)
		if err != nil || commonBlockID == 0 {
			return err
		}
		saveInCache = false
	}

	commonBlock, found, err := cache.Block(commonBlockID)
	if err != nil {
		return err
	}
	if !found {
		log.Debugf("Common block %s with %s is gone", model.IDToString(commonBlockID), peer)
		return nil
	}

	forkBlocks, err := flow.downloadBlocks(ctx, peer, commonBlock, saveInCache)
	if err != nil || len(forkBlocks) == 0 {
		return err
	}

	if ctx.Err() != nil {
		return nil
	}
	forkTip := forkBlocks[len(forkBlocks)-1]
	if !forkTip.CumulativeDifficulty().Gt(localDifficulty) {
		return protocolerrors.Errorf(true, "announced cumulative difficulty %s but its fork only reaches %s",
			peerDifficulty.Dec(), forkTip.CumulativeDifficulty().Dec())
	}
	log.Infof("Resolving a fork of %d blocks at %s offered by %s", len(forkBlocks), commonBlock, peer)
	return flow.ResolveFork(ctx, peer, commonBlock, forkBlocks)
}

// commonMilestoneBlockID pages through the peer's milestone ids until it
// finds one we know. It returns 0 when the search is abandoned. A peer that
// sends the same milestone id twice is walking in circles.
func (flow *Flow) commonMilestoneBlockID(ctx context.Context, peer *peerpkg.Peer,
	cacheLastBlockID uint64) (uint64, error) {

	probed := mapset.NewThreadUnsafeSet[uint64]()
	lastMilestoneBlockID := ""
	for {
		if ctx.Err() != nil {
			return 0, nil
		}
		request := appmessage.NewGetMilestoneBlockIDsRequestMessage("", lastMilestoneBlockID)
		if lastMilestoneBlockID == "" {
			request.LastBlockID = model.IDToString(cacheLastBlockID)
		}
		response, err := peer.Transport().GetMilestoneBlockIDs(ctx, request)
		if err != nil {
			return 0, errors.Wrap(err, "milestone block ids request failed")
		}
		if len(response.MilestoneBlockIDs) == 0 {
			return flow.Params().GenesisBlockID(), nil
		}
		if len(response.MilestoneBlockIDs) > flow.Params().MaxMilestoneBlockIDs {
			return 0, protocolerrors.Errorf(true, "sent %d milestone block ids, at most %d are allowed",
				len(response.MilestoneBlockIDs), flow.Params().MaxMilestoneBlockIDs)
		}
		// The peer has nothing beyond our staged tip.
		if response.Last {
			return 0, nil
		}

		for _, milestoneBlockID := range response.MilestoneBlockIDs {
			id, err := model.IDFromString(milestoneBlockID)
			if err != nil {
				return 0, protocolerrors.Wrap(true, err, "malformed milestone block id")
			}
			if !probed.Add(id) {
				return 0, protocolerrors.Errorf(true, "sent milestone block id %s twice", milestoneBlockID)
			}
			known, err := flow.StagingCache().HasBlock(id)
			if err != nil {
				return 0, err
			}
			if known {
				return id, nil
			}
			lastMilestoneBlockID = milestoneBlockID
		}
	}
}

// commonBlockID walks the peer's block ids forward from commonBlockID and
// returns the last one we know.
func (flow *Flow) commonBlockID(ctx context.Context, peer *peerpkg.Peer, commonBlockID uint64) (uint64, error) {
	for {
		if ctx.Err() != nil {
			return 0, nil
		}
		response, err := peer.Transport().GetNextBlockIDs(ctx,
			appmessage.NewGetNextBlockIDsRequestMessage(model.IDToString(commonBlockID)))
		if err != nil {
			return 0, errors.Wrap(err, "next block ids request failed")
		}
		if len(response.NextBlockIDs) == 0 {
			return 0, nil
		}
		if len(response.NextBlockIDs) > flow.Params().MaxNextBlockIDs {
			return 0, protocolerrors.Errorf(true, "sent %d next block ids, at most %d are allowed",
				len(response.NextBlockIDs), flow.Params().MaxNextBlockIDs)
		}

		for _, nextBlockID := range response.NextBlockIDs {
			id, err := model.IDFromString(nextBlockID)
			if err != nil {
				return 0, protocolerrors.Wrap(true, err, "malformed next block id")
			}
			known, err := flow.StagingCache().HasBlock(id)
			if err != nil {
				return 0, err
			}
			if !known {
				return commonBlockID, nil
			}
			commonBlockID = id
		}
	}
}

// downloadBlocks fetches the blocks following commonBlock. When
// saveInCache is set they are staged as they arrive, otherwise they are
// returned as a fork.
func (flow *Flow) downloadBlocks(ctx context.Context, peer *peerpkg.Peer, commonBlock *model.Block,
	saveInCache bool) ([]*model.Block, error) {

	response, err := peer.Transport().GetNextBlocks(ctx,
		appmessage.NewGetNextBlocksRequestMessage(model.IDToString(commonBlock.ID())))
	if err != nil {
		return nil, errors.Wrap(err, "next blocks request failed")
	}
	if len(response.NextBlocks) > flow.Params().MaxNextBlocks {
		return nil, protocolerrors.Errorf(true, "sent %d blocks, at most %d are allowed",
			len(response.NextBlocks), flow.Params().MaxNextBlocks)
	}
	if len(response.NextBlocks) == 0 {
		return nil, nil
	}

	cache := flow.StagingCache()
	downloaded := make(map[uint64]*model.Block, len(response.NextBlocks))
	lookup := func(id uint64) (*model.Block, bool, error) {
		if block, ok := downloaded[id]; ok {
			return block, true, nil
		}
		return cache.Block(id)
	}

	var forkBlocks []*model.Block
	staged := 0
	lastBlock := commonBlock
	for _, blockJSON := range response.NextBlocks {
		if ctx.Err() != nil {
			return nil, nil
		}
		block, err := appmessage.BlockJSONToDomainBlock(blockJSON)
		if err != nil {
			return nil, protocolerrors.Wrap(true, err, "sent a malformed block")
		}
		if block.PreviousBlockID != lastBlock.ID() {
			log.Debugf("Block %s from %s does not follow %s, discarding the batch", block, peer, lastBlock)
			return nil, nil
		}

		block.SetOriginPeer(peer)
		block.SetByteLength(len(model.SerializeBlock(block)))
		err = flow.DifficultyManager().LinkBlock(block, lastBlock, lookup)
		if err != nil {
			return nil, err
		}

		if saveInCache {
			if !cache.Add(block) {
				log.Debugf("The staging cache refused %s, stopping the download", block)
				break
			}
			staged++
		} else {
			forkBlocks = append(forkBlocks, block)
		}
		downloaded[block.ID()] = block
		lastBlock = block
	}

	if staged > 0 {
		log.Debugf("Staged %d blocks from %s, staged tip is now %s", staged, peer, lastBlock)
		metrics.ObserveDownloadedBlocks(metrics.DownloadStaged, staged)
	}
	if len(forkBlocks) > 0 {
		metrics.ObserveDownloadedBlocks(metrics.DownloadFork, len(forkBlocks))
	}
	return forkBlocks, nil
}
