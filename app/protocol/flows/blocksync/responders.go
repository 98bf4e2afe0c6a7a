package blocksync

import (
	"context"

	"github.com/pocnet/pocd/app/appmessage"
	"github.com/pocnet/pocd/app/protocol/protocolerrors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/model"
)

const (
	// milestoneLimit bounds the number of ids in a milestone response.
	milestoneLimit = 10

	// milestoneFirstJump is the distance between milestones when
	// answering a first probe.
	milestoneFirstJump = 10

	// milestoneMaxJump bounds the distance between milestones when
	// answering a follow-up probe.
	milestoneMaxJump = 1440

	// maxNextBlocksBytes bounds the total size of a next blocks response.
	// The block that crosses it is still sent.
	maxNextBlocksBytes = 1 << 20
)

// ChainReader is the committed chain the sync responders answer from.
type ChainReader interface {
	LastBlock() *model.Block
	Block(id uint64) (*model.Block, bool, error)
	BlockAtHeight(height uint32) (*model.Block, bool, error)
	BlockIDsAfter(id uint64, limit int) ([]uint64, error)
	BlocksAfter(id uint64, limit int, maxBytes int) ([]*model.Block, error)
}

// Responder answers the sync requests of other nodes.
type Responder struct {
	params *chaincfg.Params
	chain  ChainReader
}

// NewResponder returns a Responder answering from chain.
func NewResponder(params *chaincfg.Params, chain ChainReader) *Responder {
	return &Responder{
		params: params,
		chain:  chain,
	}
}

// HandleGetCumulativeDifficulty reports the height and cumulative
// difficulty of the committed tip.
func (r *Responder) HandleGetCumulativeDifficulty(context.Context,
	*appmessage.GetCumulativeDifficultyRequestMessage) (*appmessage.GetCumulativeDifficultyResponseMessage, error) {

	tip := r.chain.LastBlock()
	return appmessage.NewGetCumulativeDifficultyResponseMessage(tip.Height(), tip.CumulativeDifficulty().Dec()), nil
}

// HandleGetMilestoneBlockIDs answers a common ancestor probe. If the
// requester's tip is on our chain it is echoed back, flagged as last when
// it is also our tip. Otherwise ids are sampled downwards from our tip or
// from below the requester's last milestone, with a growing stride.
func (r *Responder) HandleGetMilestoneBlockIDs(_ context.Context,
	request *appmessage.GetMilestoneBlockIDsRequestMessage) (*appmessage.GetMilestoneBlockIDsResponseMessage, error) {

	tip := r.chain.LastBlock()
	if request.LastBlockID != "" {
		lastBlockID, err := model.IDFromString(request.LastBlockID)
		if err != nil {
			return nil, protocolerrors.Wrap(true, err, "malformed last block id")
		}
		if lastBlockID == tip.ID() {
			return appmessage.NewGetMilestoneBlockIDsResponseMessage([]string{request.LastBlockID}, true), nil
		}
		_, found, err := r.chain.Block(lastBlockID)
		if err != nil {
			return nil, err
		}
		if found {
			return appmessage.NewGetMilestoneBlockIDsResponseMessage([]string{request.LastBlockID}, false), nil
		}
	}

	chainHeight := int(tip.Height())
	var height, jump int
	switch {
	case request.LastMilestoneBlockID != "":
		lastMilestoneBlockID, err := model.IDFromString(request.LastMilestoneBlockID)
		if err != nil {
			return nil, protocolerrors.Wrap(true, err, "malformed last milestone block id")
		}
		lastMilestoneBlock, found, err := r.chain.Block(lastMilestoneBlockID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, protocolerrors.Errorf(false, "milestone block %s is not on our chain",
				request.LastMilestoneBlockID)
		}
		height = int(lastMilestoneBlock.Height())
		jump = min(milestoneMaxJump, max(chainHeight-height, 1))
		height = max(height-jump, 0)
	case request.LastBlockID != "":
		height = chainHeight
		jump = milestoneFirstJump
	default:
		return nil, protocolerrors.New(true, "milestone request without a block id")
	}

	milestoneBlockIDs := make([]string, 0, milestoneLimit)
	for height > 0 && len(milestoneBlockIDs) < milestoneLimit {
		block, found, err := r.chain.BlockAtHeight(uint32(height))
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		milestoneBlockIDs = append(milestoneBlockIDs, model.IDToString(block.ID()))
		height -= jump
	}
	return appmessage.NewGetMilestoneBlockIDsResponseMessage(milestoneBlockIDs, false), nil
}

// HandleGetNextBlockIDs returns the ids of the committed blocks following
// the requested one.
func (r *Responder) HandleGetNextBlockIDs(_ context.Context,
	request *appmessage.GetNextBlockIDsRequestMessage) (*appmessage.GetNextBlockIDsResponseMessage, error) {

	blockID, err := model.IDFromString(request.BlockID)
	if err != nil {
		return nil, protocolerrors.Wrap(true, err, "malformed block id")
	}
	ids, err := r.chain.BlockIDsAfter(blockID, r.params.MaxNextBlockIDs)
	if err != nil {
		return nil, err
	}

	nextBlockIDs := make([]string, len(ids))
	for i, id := range ids {
		nextBlockIDs[i] = model.IDToString(id)
	}
	return appmessage.NewGetNextBlockIDsResponseMessage(nextBlockIDs), nil
}

// HandleGetNextBlocks returns the committed blocks following the requested
// one.
func (r *Responder) HandleGetNextBlocks(_ context.Context,
	request *appmessage.GetNextBlocksRequestMessage) (*appmessage.GetNextBlocksResponseMessage, error) {

	blockID, err := model.IDFromString(request.BlockID)
	if err != nil {
		return nil, protocolerrors.Wrap(true, err, "malformed block id")
	}
	blocks, err := r.chain.BlocksAfter(blockID, r.params.MaxNextBlocks, maxNextBlocksBytes)
	if err != nil {
		return nil, err
	}

	nextBlocks := make([]*appmessage.BlockJSON, len(blocks))
	for i, block := range blocks {
		nextBlocks[i] = appmessage.DomainBlockToBlockJSON(block)
	}
	return appmessage.NewGetNextBlocksResponseMessage(nextBlocks), nil
}
