package chaincfg

import (
	"time"

	"github.com/pkg/errors"
)

// OneCoin is the number of base units in one coin.
const OneCoin = 100_000_000

// MaxBalance is the total supply expressed in base units. No amount or fee
// may exceed it.
const MaxBalance = 2_158_812_800 * OneCoin

// Params defines a network by its consensus parameters.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort string

	// EpochBeginning is the moment all block and transaction timestamps
	// are counted from.
	EpochBeginning time.Time

	// MaxRollback is the depth below the tip the chain may be rolled
	// back to, and the deepest fork a peer may offer.
	MaxRollback uint32

	// MaxTimestampDifference is the tolerated clock drift, in seconds.
	MaxTimestampDifference uint32

	// MaxPayloadLength bounds the total size of a block's transactions.
	MaxPayloadLength int

	// MaxNumberOfTransactions bounds the transaction count of a block.
	MaxNumberOfTransactions int

	// BlockVersion is the version every new block must declare.
	BlockVersion int32

	// TargetBlockTime is the desired time between blocks, in seconds.
	TargetBlockTime uint32

	InitialBaseTarget uint64
	MaxBaseTarget     uint64

	// ReferencedTransactionFullHashHeight is the height from which a
	// referenced transaction must be resolvable through its whole
	// reference chain rather than merely exist.
	ReferencedTransactionFullHashHeight uint32

	// AutomatedTransactionHeight is the height from which economic
	// clustering is enforced.
	AutomatedTransactionHeight uint32

	// TransactionVersionOneHeight is the height from which transactions
	// must declare version 1.
	TransactionVersionOneHeight uint32

	// PoC2Height is the height from which blocks are forged with the
	// second proof-of-capacity scheme.
	PoC2Height uint32

	// ECRuleTerminator is how old, in seconds, an economic clustering
	// block must be relative to the transaction referencing it.
	ECRuleTerminator uint32

	// ECBlockDistance is how many blocks an economic clustering block
	// trails the last block older than the transaction.
	ECBlockDistance uint32

	// MaxMilestoneBlockIDs, MaxNextBlockIDs and MaxNextBlocks bound
	// peer responses during sync. Larger responses get the peer
	// blacklisted.
	MaxMilestoneBlockIDs int
	MaxNextBlockIDs      int
	MaxNextBlocks        int

	// TrimInterval is how many blocks pass between derived table trims.
	TrimInterval uint32

	GenesisTimestamp          uint32
	GenesisGeneratorPublicKey [32]byte
}

// TransactionVersion returns the version transactions must declare in a
// block following a block at the given height.
func (p *Params) TransactionVersion(previousHeight uint32) uint8 {
	if previousHeight < p.TransactionVersionOneHeight {
		return 0
	}
	return 1
}

// PoCVersion returns the proof-of-capacity scheme of a block at the given
// height.
func (p *Params) PoCVersion(height uint32) int {
	if height < p.PoC2Height {
		return 1
	}
	return 2
}

// EpochTime converts a wall-clock time to seconds since the network epoch.
func (p *Params) EpochTime(t time.Time) uint32 {
	seconds := t.Sub(p.EpochBeginning) / time.Second
	if seconds < 0 {
		return 0
	}
	return uint32(seconds)
}

var epochBeginning = time.Date(2014, time.August, 11, 2, 0, 0, 0, time.UTC)

// MainnetParams defines the network parameters for the main network.
var MainnetParams = Params{
	Name:                    "mainnet",
	DefaultPort:             "8123",
	EpochBeginning:          epochBeginning,
	MaxRollback:             1440,
	MaxTimestampDifference:  15,
	MaxPayloadLength:        255 * 176,
	MaxNumberOfTransactions: 255,
	BlockVersion:            3,
	TargetBlockTime:         240,
	InitialBaseTarget:       18325193796,
	MaxBaseTarget:           18325193796,

	ReferencedTransactionFullHashHeight: 0,
	AutomatedTransactionHeight:          49200,
	TransactionVersionOneHeight:         67000,
	PoC2Height:                          502000,

	ECRuleTerminator: 2400,
	ECBlockDistance:  3,

	MaxMilestoneBlockIDs: 20,
	MaxNextBlockIDs:      1440,
	MaxNextBlocks:        1440,

	TrimInterval: 1440,

	GenesisTimestamp:          0,
	GenesisGeneratorPublicKey: genesisGeneratorPublicKey,
}

// SimnetParams defines the network parameters for the simulation test
// network. Its base target is high enough that any nonce forges a block a
// few seconds after its predecessor, and every feature is active from
// genesis.
var SimnetParams = Params{
	Name:                    "simnet",
	DefaultPort:             "18123",
	EpochBeginning:          epochBeginning,
	MaxRollback:             1440,
	MaxTimestampDifference:  15,
	MaxPayloadLength:        255 * 176,
	MaxNumberOfTransactions: 255,
	BlockVersion:            3,
	TargetBlockTime:         10,
	InitialBaseTarget:       1 << 63,
	MaxBaseTarget:           1 << 63,

	ReferencedTransactionFullHashHeight: 0,
	AutomatedTransactionHeight:          0,
	TransactionVersionOneHeight:         0,
	PoC2Height:                          0,

	ECRuleTerminator: 0,
	ECBlockDistance:  3,

	MaxMilestoneBlockIDs: 20,
	MaxNextBlockIDs:      1440,
	MaxNextBlocks:        1440,

	TrimInterval: 1440,

	GenesisTimestamp:          0,
	GenesisGeneratorPublicKey: genesisGeneratorPublicKey,
}

// ErrUnknownNetwork describes an error where the requested network is not
// known.
var ErrUnknownNetwork = errors.New("unknown network")

// ParamsByName returns the parameters of the named network.
func ParamsByName(name string) (*Params, error) {
	switch name {
	case MainnetParams.Name:
		return &MainnetParams, nil
	case SimnetParams.Name:
		return &SimnetParams, nil
	default:
		return nil, errors.Wrapf(ErrUnknownNetwork, "network %s", name)
	}
}
