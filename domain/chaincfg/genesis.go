package chaincfg

import (
	"github.com/holiman/uint256"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// genesisGeneratorPublicKey is the key recorded as the forger of the
// genesis block. Nobody holds its private key.
var genesisGeneratorPublicKey = [32]byte{
	0x30, 0x5a, 0x98, 0xc8, 0xa0, 0x1f, 0x38, 0x51,
	0x6e, 0x2f, 0x9c, 0x48, 0x13, 0xa8, 0x8b, 0x85,
	0x0c, 0x84, 0x6b, 0x8b, 0x6c, 0xa3, 0x45, 0x02,
	0x27, 0x3a, 0xa1, 0xc5, 0x6f, 0xd2, 0x9a, 0x0b,
}

// GenesisBlock returns a new instance of the network's first block, linked
// at height zero.
func (p *Params) GenesisBlock() *model.Block {
	block := &model.Block{
		Version:            -1,
		Timestamp:          p.GenesisTimestamp,
		PreviousBlockID:    0,
		PayloadHash:        model.DigestBytes(),
		GeneratorPublicKey: model.PublicKey(p.GenesisGeneratorPublicKey),
		Transactions:       []*model.Transaction{},
	}
	block.SetLinkage(0, p.InitialBaseTarget, new(uint256.Int))
	block.SetVerified()
	return block
}

// GenesisBlockID returns the identifier of the network's first block.
func (p *Params) GenesisBlockID() uint64 {
	return p.GenesisBlock().ID()
}
