package chainstore

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// linkageSize is the length of the linkage prefix of a stored block:
// height, base target and cumulative difficulty.
const linkageSize = 4 + 8 + 32

// transactionLocationSize is the length of a stored transaction location:
// block id, block height and index within the block.
const transactionLocationSize = 8 + 4 + 2

func serializeStoredBlock(block *model.Block) []byte {
	blockBytes := model.SerializeBlock(block)
	serialized := make([]byte, linkageSize, linkageSize+len(blockBytes))
	binary.LittleEndian.PutUint32(serialized[0:4], block.Height())
	binary.LittleEndian.PutUint64(serialized[4:12], block.BaseTarget())
	cumulativeDifficulty := block.CumulativeDifficulty().Bytes32()
	copy(serialized[12:44], cumulativeDifficulty[:])
	return append(serialized, blockBytes...)
}

func deserializeStoredBlock(serialized []byte) (*model.Block, error) {
	if len(serialized) < linkageSize {
		return nil, errors.Errorf("stored block is %d bytes long, shorter than its linkage", len(serialized))
	}
	block, err := model.DeserializeBlock(serialized[linkageSize:])
	if err != nil {
		return nil, errors.Wrap(err, "corrupt stored block")
	}
	height := binary.LittleEndian.Uint32(serialized[0:4])
	baseTarget := binary.LittleEndian.Uint64(serialized[4:12])
	cumulativeDifficulty := new(uint256.Int).SetBytes32(serialized[12:44])
	block.SetLinkage(height, baseTarget, cumulativeDifficulty)
	block.SetVerified()
	block.SetByteLength(len(serialized) - linkageSize)
	return block, nil
}

type transactionLocation struct {
	blockID uint64
	height  uint32
	index   uint16
}

func serializeTransactionLocation(location transactionLocation) []byte {
	serialized := make([]byte, transactionLocationSize)
	binary.LittleEndian.PutUint64(serialized[0:8], location.blockID)
	binary.LittleEndian.PutUint32(serialized[8:12], location.height)
	binary.LittleEndian.PutUint16(serialized[12:14], location.index)
	return serialized
}

func deserializeTransactionLocation(serialized []byte) (transactionLocation, error) {
	if len(serialized) != transactionLocationSize {
		return transactionLocation{}, errors.Errorf("stored transaction location is %d bytes long, expected %d",
			len(serialized), transactionLocationSize)
	}
	return transactionLocation{
		blockID: binary.LittleEndian.Uint64(serialized[0:8]),
		height:  binary.LittleEndian.Uint32(serialized[8:12]),
		index:   binary.LittleEndian.Uint16(serialized[12:14]),
	}, nil
}

func deserializeID(serialized []byte) (uint64, error) {
	if len(serialized) != 8 {
		return 0, errors.Errorf("stored id is %d bytes long, expected 8", len(serialized))
	}
	return binary.LittleEndian.Uint64(serialized), nil
}
