package blockverifier

import (
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"github.com/pocnet/pocd/util/signing"
)

// BlockVerifier verifies the proof of capacity and the signature of
// blocks. It does not look at transactions.
type BlockVerifier struct {
	params        *chaincfg.Params
	hitCalculator model.HitCalculator
}

// New instantiates a new BlockVerifier
func New(params *chaincfg.Params, hitCalculator model.HitCalculator) *BlockVerifier {
	return &BlockVerifier{
		params:        params,
		hitCalculator: hitCalculator,
	}
}

// VerifyBlock verifies a block against its predecessor, found through
// lookup. Rejections are rule errors; any other error means the block
// could not be verified.
func (bv *BlockVerifier) VerifyBlock(block *model.Block, lookup model.BlockLookup) error {
	previous, found, err := lookup(block.PreviousBlockID)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("predecessor %s of block %s is unknown",
			model.IDToString(block.PreviousBlockID), block)
	}
	return bv.VerifyBlockWithPrevious(block, previous)
}

// VerifyBlockWithPrevious verifies a block against a known predecessor.
func (bv *BlockVerifier) VerifyBlockWithPrevious(block *model.Block, previous *model.Block) error {
	err := bv.verifyGenerationSignature(block, previous)
	if err != nil {
		return err
	}
	if !signing.VerifyBlockSignature(block) {
		return errors.Wrapf(ruleerrors.ErrBadBlockSignature, "block %s", block)
	}
	return nil
}

func (bv *BlockVerifier) verifyGenerationSignature(block *model.Block, previous *model.Block) error {
	if block.GenerationSignature != GenerationSignature(previous) {
		return errors.Wrapf(ruleerrors.ErrBadGenerationSignature,
			"block %s does not carry the generation signature of its predecessor", block)
	}
	if block.Timestamp <= previous.Timestamp {
		return errors.Wrapf(ruleerrors.ErrBadGenerationSignature,
			"block %s is not after its predecessor", block)
	}

	pocVersion := bv.params.PoCVersion(previous.Height() + 1)
	hit := bv.hitCalculator.CalculateHit(block.GeneratorID(), block.Nonce, block.GenerationSignature, pocVersion)
	elapsed := block.Timestamp - previous.Timestamp
	if !IsHitValid(hit, previous.BaseTarget(), elapsed) {
		return errors.Wrapf(ruleerrors.ErrBadGenerationSignature,
			"hit of block %s does not meet the target after %d seconds", block, elapsed)
	}
	return nil
}

// PoCVersion returns the proof-of-capacity scheme of a linked block.
func (bv *BlockVerifier) PoCVersion(block *model.Block) int {
	return bv.params.PoCVersion(block.Height())
}
