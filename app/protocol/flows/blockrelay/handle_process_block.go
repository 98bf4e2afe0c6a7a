package blockrelay

import (
	"context"

	"github.com/pocnet/pocd/app/appmessage"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// RelayContext is the interface for the context needed by the
// HandleProcessBlock flow.
type RelayContext interface {
	StagingCache() *stagingcache.StagingCache
	DifficultyManager() model.DifficultyManager
}

// OriginResolver returns the peer a request came from, if it is known.
type OriginResolver func(ctx context.Context) (model.BlockOrigin, bool)

// HandleProcessBlock stages a block announced by a peer if it directly
// extends the staged tip. Anything else is ignored: forks are only picked
// up by block sync.
func HandleProcessBlock(ctx context.Context, relayContext RelayContext, resolveOrigin OriginResolver,
	request *appmessage.ProcessBlockRequestMessage) (*appmessage.ProcessBlockResponseMessage, error) {

	block, err := appmessage.BlockJSONToDomainBlock(request.Block)
	if err != nil {
		log.Debugf("A peer announced an unprocessable block: %s", err)
		return appmessage.NewProcessBlockResponseMessage(false), nil
	}

	cache := relayContext.StagingCache()
	lastBlock := cache.LastBlock()
	if block.PreviousBlockID != lastBlock.ID() {
		log.Debugf("Announced block %s follows %s, which is not the staged tip %s",
			block, model.IDToString(block.PreviousBlockID), lastBlock)
		return appmessage.NewProcessBlockResponseMessage(false), nil
	}

	if origin, ok := resolveOrigin(ctx); ok {
		block.SetOriginPeer(origin)
	}
	block.SetByteLength(len(model.SerializeBlock(block)))
	err = relayContext.DifficultyManager().LinkBlock(block, lastBlock, cache.Block)
	if err != nil {
		return nil, err
	}

	accepted := cache.Add(block)
	if accepted {
		log.Debugf("Staged announced block %s at height %d", block, block.Height())
	}
	return appmessage.NewProcessBlockResponseMessage(accepted), nil
}
