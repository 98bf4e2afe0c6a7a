package difficultymanager

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/model"
)

const (
	// averagingWindow is how many ancestors the base target averages over.
	averagingWindow = 24

	// minimumHistory is the height below which the initial base target is
	// kept.
	minimumHistory = 4
)

// difficultyManager computes base targets with a moving average over the
// preceding blocks and links blocks to their predecessors.
type difficultyManager struct {
	initialBaseTarget uint64
	maxBaseTarget     uint64
	targetBlockTime   uint32
}

// New instantiates a new DifficultyManager
func New(params *chaincfg.Params) model.DifficultyManager {
	return &difficultyManager{
		initialBaseTarget: params.InitialBaseTarget,
		maxBaseTarget:     params.MaxBaseTarget,
		targetBlockTime:   params.TargetBlockTime,
	}
}

// CalculateBaseTarget returns the base target of the block following
// previous. The average base target of the window is scaled by how much
// the window's actual timespan differs from the target timespan, and the
// result stays within 10% of the previous base target.
func (dm *difficultyManager) CalculateBaseTarget(previous *model.Block, lookup model.BlockLookup) (uint64, error) {
	if previous.Height() < minimumHistory {
		return dm.initialBaseTarget, nil
	}

	windowSize := uint32(averagingWindow)
	if previous.Height() < windowSize {
		windowSize = previous.Height()
	}

	sum := new(uint256.Int)
	current := previous
	for i := uint32(0); i < windowSize; i++ {
		sum.Add(sum, uint256.NewInt(current.BaseTarget()))
		ancestor, found, err := lookup(current.PreviousBlockID)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, errors.Errorf("missing ancestor %s of block %s while calculating the base target",
				model.IDToString(current.PreviousBlockID), current)
		}
		current = ancestor
	}
	windowStart := current

	average := new(uint256.Int).Div(sum, uint256.NewInt(uint64(windowSize)))
	targetTimespan := uint64(windowSize) * uint64(dm.targetBlockTime)
	actualTimespan := uint64(previous.Timestamp - windowStart.Timestamp)

	baseTarget := new(uint256.Int).Mul(average, uint256.NewInt(actualTimespan))
	baseTarget.Div(baseTarget, uint256.NewInt(targetTimespan))

	previousBaseTarget := uint256.NewInt(previous.BaseTarget())
	lowerBound := new(uint256.Int).Div(new(uint256.Int).Mul(previousBaseTarget, uint256.NewInt(90)), uint256.NewInt(100))
	upperBound := new(uint256.Int).Div(new(uint256.Int).Mul(previousBaseTarget, uint256.NewInt(110)), uint256.NewInt(100))
	if baseTarget.Lt(lowerBound) {
		baseTarget = lowerBound
	}
	if baseTarget.Gt(upperBound) {
		baseTarget = upperBound
	}
	if maxBaseTarget := uint256.NewInt(dm.maxBaseTarget); baseTarget.Gt(maxBaseTarget) {
		baseTarget = maxBaseTarget
	}
	if baseTarget.IsZero() {
		baseTarget = uint256.NewInt(1)
	}
	return baseTarget.Uint64(), nil
}

// LinkBlock sets the block's height, base target and cumulative
// difficulty. The cumulative difficulty grows by 2^64 / baseTarget.
func (dm *difficultyManager) LinkBlock(block *model.Block, previous *model.Block, lookup model.BlockLookup) error {
	if block.PreviousBlockID != previous.ID() {
		return errors.Errorf("block %s does not follow block %s", block, previous)
	}
	baseTarget, err := dm.CalculateBaseTarget(previous, lookup)
	if err != nil {
		return err
	}
	block.SetLinkage(previous.Height()+1, baseTarget,
		CumulativeDifficulty(previous.CumulativeDifficulty(), baseTarget))
	return nil
}

var twoTo64 = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

// CumulativeDifficulty returns the cumulative difficulty of a block with
// the given base target on top of a chain with previousCumulativeDifficulty.
func CumulativeDifficulty(previousCumulativeDifficulty *uint256.Int, baseTarget uint64) *uint256.Int {
	increment := new(uint256.Int).Div(twoTo64, uint256.NewInt(baseTarget))
	return new(uint256.Int).Add(previousCumulativeDifficulty, increment)
}
