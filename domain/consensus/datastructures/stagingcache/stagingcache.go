package stagingcache

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// Config bounds the content of a StagingCache.
type Config struct {
	MaxBlocks   int
	MaxBytes    int
	MaxRollback uint32
}

// StagingCache holds downloaded blocks between their download and their
// commit. It is shared by the sync, verification and import tasks; every
// method takes the cache lock for its whole duration, so a Reset is never
// observed half done.
//
// Staged blocks always form a single chain extending the committed tip:
// Add refuses blocks that do not extend the staged tip.
type StagingCache struct {
	lock   sync.Mutex
	config Config
	chain  model.ChainReader

	blocks     map[uint64]*model.Block
	byPrevious map[uint64]uint64
	order      []uint64
	unverified []uint64
	byteSize   int
	isLocked   bool
}

// New returns an empty StagingCache on top of the given chain.
func New(config Config, chain model.ChainReader) *StagingCache {
	sc := &StagingCache{
		config: config,
		chain:  chain,
	}
	sc.clear()
	return sc
}

func (sc *StagingCache) clear() {
	sc.blocks = make(map[uint64]*model.Block)
	sc.byPrevious = make(map[uint64]uint64)
	sc.order = nil
	sc.unverified = nil
	sc.byteSize = 0
}

// Add stages a block that extends the staged tip. It returns false, and
// stages nothing, if the block does not extend the staged tip, if the
// cache is locked, or if the block would exceed the size caps.
func (sc *StagingCache) Add(block *model.Block) bool {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	if sc.isLocked {
		log.Debugf("Not staging block %s: the cache is locked", block)
		return false
	}
	blockID := block.ID()
	if _, exists := sc.blocks[blockID]; exists {
		return false
	}
	if block.PreviousBlockID != sc.lastBlockLocked().ID() {
		log.Debugf("Not staging block %s: it does not extend the staged tip", block)
		return false
	}
	blockSize := sc.sizeOf(block)
	if len(sc.blocks)+1 > sc.config.MaxBlocks || sc.byteSize+blockSize > sc.config.MaxBytes {
		log.Debugf("Not staging block %s: the cache is full", block)
		return false
	}

	sc.blocks[blockID] = block
	sc.byPrevious[block.PreviousBlockID] = blockID
	sc.order = append(sc.order, blockID)
	if !block.IsVerified() {
		sc.unverified = append(sc.unverified, blockID)
	}
	sc.byteSize += blockSize
	return true
}

func (sc *StagingCache) sizeOf(block *model.Block) int {
	if byteLength := block.ByteLength(); byteLength > 0 {
		return byteLength
	}
	return len(model.SerializeBlock(block))
}

// NextBlock returns the staged block whose predecessor is afterID.
func (sc *StagingCache) NextBlock(afterID uint64) (*model.Block, bool) {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	blockID, ok := sc.byPrevious[afterID]
	if !ok {
		return nil, false
	}
	return sc.blocks[blockID], true
}

// FirstUnverified returns the oldest staged block that was not verified
// yet.
func (sc *StagingCache) FirstUnverified() (*model.Block, bool) {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	if len(sc.unverified) == 0 {
		return nil, false
	}
	return sc.blocks[sc.unverified[0]], true
}

// UnverifiedBatch returns up to maxSize of the oldest unverified blocks,
// stopping before the first block whose proof-of-capacity version differs
// from the first one's.
func (sc *StagingCache) UnverifiedBatch(maxSize int, pocVersion func(block *model.Block) int) []*model.Block {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	if len(sc.unverified) == 0 {
		return nil
	}
	batch := make([]*model.Block, 0, maxSize)
	version := pocVersion(sc.blocks[sc.unverified[0]])
	for _, blockID := range sc.unverified {
		if len(batch) >= maxSize {
			break
		}
		block := sc.blocks[blockID]
		if pocVersion(block) != version {
			break
		}
		batch = append(batch, block)
	}
	return batch
}

// UnverifiedSize returns the number of staged blocks not verified yet.
func (sc *StagingCache) UnverifiedSize() int {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	return len(sc.unverified)
}

// RemoveUnverified takes a block out of the verification queue. The block
// stays staged.
func (sc *StagingCache) RemoveUnverified(blockID uint64) {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	sc.removeUnverifiedLocked(blockID)
}

func (sc *StagingCache) removeUnverifiedLocked(blockID uint64) {
	for i, unverifiedID := range sc.unverified {
		if unverifiedID == blockID {
			sc.unverified = append(sc.unverified[:i], sc.unverified[i+1:]...)
			return
		}
	}
}

// RemoveUnverifiedBatch marks every block of a verified batch as verified
// and takes them out of the verification queue.
func (sc *StagingCache) RemoveUnverifiedBatch(blocks []*model.Block) {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	for _, block := range blocks {
		block.SetVerified()
		sc.removeUnverifiedLocked(block.ID())
	}
}

// RemoveBlock unstages a block after it was committed.
func (sc *StagingCache) RemoveBlock(block *model.Block) {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	blockID := block.ID()
	staged, ok := sc.blocks[blockID]
	if !ok {
		return
	}
	delete(sc.blocks, blockID)
	if sc.byPrevious[staged.PreviousBlockID] == blockID {
		delete(sc.byPrevious, staged.PreviousBlockID)
	}
	for i, orderedID := range sc.order {
		if orderedID == blockID {
			sc.order = append(sc.order[:i], sc.order[i+1:]...)
			break
		}
	}
	sc.removeUnverifiedLocked(blockID)
	sc.byteSize -= sc.sizeOf(staged)
}

// Reset empties the cache. A locked cache stays locked.
func (sc *StagingCache) Reset() {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	sc.clear()
	log.Debugf("Staging cache reset")
}

// Lock makes Add refuse every block until Unlock is called.
func (sc *StagingCache) Lock() {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	sc.isLocked = true
}

// Unlock undoes Lock.
func (sc *StagingCache) Unlock() {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	sc.isLocked = false
}

// Size returns the number of staged blocks.
func (sc *StagingCache) Size() int {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	return len(sc.blocks)
}

// ByteSize returns the total size of the staged blocks.
func (sc *StagingCache) ByteSize() int {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	return sc.byteSize
}

// IsLocked returns whether Add refuses every block.
func (sc *StagingCache) IsLocked() bool {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	return sc.isLocked
}

// IsFull returns whether the cache reached either of its caps.
func (sc *StagingCache) IsFull() bool {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	return len(sc.blocks) >= sc.config.MaxBlocks || sc.byteSize >= sc.config.MaxBytes
}

// LastBlock returns the staged tip: the last staged block, or the
// committed tip if nothing is staged.
func (sc *StagingCache) LastBlock() *model.Block {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	return sc.lastBlockLocked()
}

func (sc *StagingCache) lastBlockLocked() *model.Block {
	if len(sc.order) == 0 {
		return sc.chain.LastBlock()
	}
	return sc.blocks[sc.order[len(sc.order)-1]]
}

// LastBlockID returns the id of the staged tip.
func (sc *StagingCache) LastBlockID() uint64 {
	return sc.LastBlock().ID()
}

// CumulativeDifficulty returns the cumulative difficulty of the staged tip.
func (sc *StagingCache) CumulativeDifficulty() *uint256.Int {
	return sc.LastBlock().CumulativeDifficulty()
}

// Block returns a staged or committed block.
func (sc *StagingCache) Block(id uint64) (*model.Block, bool, error) {
	sc.lock.Lock()
	block, ok := sc.blocks[id]
	sc.lock.Unlock()
	if ok {
		return block, true, nil
	}
	return sc.chain.Block(id)
}

// HasBlock returns whether a block is staged or committed.
func (sc *StagingCache) HasBlock(id uint64) (bool, error) {
	sc.lock.Lock()
	_, ok := sc.blocks[id]
	sc.lock.Unlock()
	if ok {
		return true, nil
	}
	return sc.chain.HasBlock(id)
}

// CanBeFork returns whether a chain forking at the given block would be
// within the maximum rollback depth of the staged tip.
func (sc *StagingCache) CanBeFork(commonBlockID uint64) (bool, error) {
	tipHeight := sc.LastBlock().Height()
	commonBlock, found, err := sc.Block(commonBlockID)
	if err != nil || !found {
		return false, err
	}
	if commonBlock.Height() >= tipHeight {
		return true, nil
	}
	return tipHeight-commonBlock.Height() <= sc.config.MaxRollback, nil
}
