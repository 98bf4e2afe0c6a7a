package blockverifier

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"golang.org/x/sync/errgroup"
)

// InfrastructureError is a failure of the batch verification backend
// itself. It says nothing about the blocks being verified.
type InfrastructureError struct {
	err error
}

func (e *InfrastructureError) Error() string {
	return "batch verification failed: " + e.err.Error()
}

// Unwrap satisfies the errors.Unwrap interface
func (e *InfrastructureError) Unwrap() error {
	return e.err
}

// BatchValidationError identifies the first block of a batch that failed
// verification.
type BatchValidationError struct {
	Block *model.Block
	err   error
}

func (e *BatchValidationError) Error() string {
	return "block " + e.Block.String() + " failed batch verification: " + e.err.Error()
}

// Unwrap satisfies the errors.Unwrap interface
func (e *BatchValidationError) Unwrap() error {
	return e.err
}

// VerifyBatch verifies a run of consecutive blocks in parallel. It returns
// a *BatchValidationError for the earliest block that does not verify, or
// an *InfrastructureError if the batch could not be verified at all.
func (bv *BlockVerifier) VerifyBatch(ctx context.Context, blocks []*model.Block, lookup model.BlockLookup) error {
	previous := make([]*model.Block, len(blocks))
	for i, block := range blocks {
		if i > 0 && blocks[i-1].ID() == block.PreviousBlockID {
			previous[i] = blocks[i-1]
			continue
		}
		predecessor, found, err := lookup(block.PreviousBlockID)
		if err != nil {
			return &InfrastructureError{err: err}
		}
		if !found {
			return &InfrastructureError{err: errors.Errorf("predecessor of block %s is unknown", block)}
		}
		previous[i] = predecessor
	}

	results := make([]error, len(blocks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())
	for i := range blocks {
		i := i
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = bv.VerifyBlockWithPrevious(blocks[i], previous[i])
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return &InfrastructureError{err: err}
	}

	for i, result := range results {
		if result == nil {
			continue
		}
		if !ruleerrors.IsRuleError(result) {
			return &InfrastructureError{err: result}
		}
		return &BatchValidationError{Block: blocks[i], err: result}
	}
	return nil
}
