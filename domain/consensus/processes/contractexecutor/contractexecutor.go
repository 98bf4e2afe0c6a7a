package contractexecutor

import (
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// contractExecutor is the ContractExecutor of a node that runs no
// automated transactions: it builds empty payloads and accepts only empty
// payloads.
type contractExecutor struct{}

// New instantiates a new ContractExecutor
func New() model.ContractExecutor {
	return contractExecutor{}
}

func (contractExecutor) ValidateBlockPayload(_ model.DBReader, payload []byte, height uint32) (int64, int64, error) {
	if len(payload) != 0 {
		return 0, 0, errors.Errorf("unexpected contract payload of %d bytes at height %d", len(payload), height)
	}
	return 0, 0, nil
}

func (contractExecutor) BuildBlockPayload(model.DBReader, int, uint32) ([]byte, int64, int64, error) {
	return nil, 0, 0, nil
}
