package model

import (
	"sync"
	"sync/atomic"

	"github.com/holiman/uint256"
)

// BlockOrigin is the peer a block was downloaded from. It is nil for
// locally generated blocks.
type BlockOrigin interface {
	Address() string
	Blacklist(reason error)
}

// Block is a proof-of-capacity block.
//
// The exported fields form the block's identity and must not be modified
// after the block is signed. Chain linkage (height, base target and
// cumulative difficulty) is assigned once the predecessor is known, and the
// verification flag is set by whichever task verifies the block first.
type Block struct {
	Version             int32
	Timestamp           uint32
	PreviousBlockID     uint64
	TotalAmount         int64
	TotalFee            int64
	PayloadLength       uint32
	PayloadHash         Hash
	GeneratorPublicKey  PublicKey
	GenerationSignature Hash
	PreviousBlockHash   Hash
	Nonce               uint64
	ContractPayload     []byte
	BlockSignature      Signature
	Transactions        []*Transaction

	id atomic.Uint64

	linkageLock          sync.RWMutex
	isLinked             bool
	height               uint32
	baseTarget           uint64
	cumulativeDifficulty *uint256.Int

	verified   atomic.Bool
	byteLength atomic.Int64
	originPeer atomic.Pointer[blockOriginHolder]
}

type blockOriginHolder struct {
	origin BlockOrigin
}

// ID returns the identifier of the block, derived from the hash of its
// signed canonical bytes. A zero ID is never valid.
func (b *Block) ID() uint64 {
	if id := b.id.Load(); id != 0 {
		return id
	}
	id := IDFromHash(b.Hash())
	b.id.Store(id)
	return id
}

// Hash returns the SHA-256 digest of the block's canonical bytes.
func (b *Block) Hash() Hash {
	return DigestBytes(b.Bytes())
}

// GeneratorID returns the account identifier of the forger.
func (b *Block) GeneratorID() uint64 {
	return AccountID(b.GeneratorPublicKey)
}

// SetBlockSignature sets the block's signature and drops its cached
// identity.
func (b *Block) SetBlockSignature(signature Signature) {
	b.BlockSignature = signature
	b.id.Store(0)
}

// SetLinkage records the block's position in the chain.
func (b *Block) SetLinkage(height uint32, baseTarget uint64, cumulativeDifficulty *uint256.Int) {
	b.linkageLock.Lock()
	defer b.linkageLock.Unlock()

	b.isLinked = true
	b.height = height
	b.baseTarget = baseTarget
	b.cumulativeDifficulty = new(uint256.Int).Set(cumulativeDifficulty)
}

// IsLinked returns true once the block's predecessor is known and its
// linkage has been set.
func (b *Block) IsLinked() bool {
	b.linkageLock.RLock()
	defer b.linkageLock.RUnlock()

	return b.isLinked
}

// Height returns the block's height. It is zero for unlinked blocks.
func (b *Block) Height() uint32 {
	b.linkageLock.RLock()
	defer b.linkageLock.RUnlock()

	return b.height
}

// BaseTarget returns the block's base target.
func (b *Block) BaseTarget() uint64 {
	b.linkageLock.RLock()
	defer b.linkageLock.RUnlock()

	return b.baseTarget
}

// CumulativeDifficulty returns a copy of the block's cumulative
// difficulty, or zero for unlinked blocks.
func (b *Block) CumulativeDifficulty() *uint256.Int {
	b.linkageLock.RLock()
	defer b.linkageLock.RUnlock()

	if b.cumulativeDifficulty == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(b.cumulativeDifficulty)
}

// IsVerified returns true if the block's signatures were already
// verified.
func (b *Block) IsVerified() bool {
	return b.verified.Load()
}

// SetVerified marks the block's signatures as verified.
func (b *Block) SetVerified() {
	b.verified.Store(true)
}

// ByteLength returns the size of the block as it was received.
func (b *Block) ByteLength() int {
	return int(b.byteLength.Load())
}

// SetByteLength records the size of the block as it was received.
func (b *Block) SetByteLength(byteLength int) {
	b.byteLength.Store(int64(byteLength))
}

// OriginPeer returns the peer the block came from, or nil.
func (b *Block) OriginPeer() BlockOrigin {
	holder := b.originPeer.Load()
	if holder == nil {
		return nil
	}
	return holder.origin
}

// SetOriginPeer records the peer the block came from.
func (b *Block) SetOriginPeer(origin BlockOrigin) {
	b.originPeer.Store(&blockOriginHolder{origin: origin})
}

func (b *Block) String() string {
	return IDToString(b.ID())
}
