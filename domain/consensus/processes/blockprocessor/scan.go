package blockprocessor

import (
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// Scan would replay the chain from height, revalidating every block. It
// is not supported and always fails.
func (bp *BlockProcessor) Scan(height uint32, validate bool) error {
	return errors.Wrapf(model.ErrScanUnsupported, "rescan from height %d (validate: %t)", height, validate)
}
