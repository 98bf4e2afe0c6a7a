package blockverifier

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/pocnet/pocd/domain/consensus/model"
)

type hitCalculator struct{}

// NewHitCalculator returns the HitCalculator that derives hits from the
// generator's account and nonce. Plot files are not read: the hit a
// plotted nonce would yield is modeled by the same digest.
func NewHitCalculator() model.HitCalculator {
	return hitCalculator{}
}

// CalculateHit returns the first eight bytes, little endian, of
// sha256(generationSignature || generatorID || nonce || pocVersion).
func (hitCalculator) CalculateHit(generatorID uint64, nonce uint64, generationSignature model.Hash, pocVersion int) uint64 {
	var buf [8 + 8 + 1]byte
	binary.LittleEndian.PutUint64(buf[0:8], generatorID)
	binary.LittleEndian.PutUint64(buf[8:16], nonce)
	buf[16] = byte(pocVersion)
	digest := model.DigestBytes(generationSignature[:], buf[:])
	return binary.LittleEndian.Uint64(digest[:8])
}

// GenerationSignature returns the generation signature of the block
// forged on top of previous.
func GenerationSignature(previous *model.Block) model.Hash {
	var generatorID [8]byte
	binary.LittleEndian.PutUint64(generatorID[:], previous.GeneratorID())
	return model.DigestBytes(previous.GenerationSignature[:], generatorID[:])
}

// IsHitValid returns whether a hit allows forging elapsed seconds after a
// block with the given base target.
func IsHitValid(hit uint64, previousBaseTarget uint64, elapsed uint32) bool {
	target := new(uint256.Int).Mul(uint256.NewInt(previousBaseTarget), uint256.NewInt(uint64(elapsed)))
	return uint256.NewInt(hit).Lt(target)
}

// Deadline returns how many seconds after a block with the given base
// target the hit allows forging.
func Deadline(hit uint64, previousBaseTarget uint64) uint64 {
	if previousBaseTarget == 0 {
		return ^uint64(0)
	}
	return hit/previousBaseTarget + 1
}
