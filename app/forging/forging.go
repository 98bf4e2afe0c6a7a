package forging

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/processes/blockprocessor"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"github.com/pocnet/pocd/domain/miningmanager"
	"github.com/pocnet/pocd/util/panics"
	"github.com/pocnet/pocd/util/signing"
)

const (
	roundInterval  = time.Second
	noncesPerRound = 1000
)

// ChainReader exposes the committed chain tip.
type ChainReader interface {
	LastBlock() *model.Block
}

type candidate struct {
	nonce    uint64
	hit      uint64
	deadline uint64
}

// Forger searches nonces for the best hit on the current tip and forges a
// block once that hit's deadline has passed.
type Forger struct {
	params        *chaincfg.Params
	chain         ChainReader
	miningManager miningmanager.MiningManager
	hitCalculator model.HitCalculator
	timeSource    model.TimeSource
	keyPair       *signing.KeyPair

	tipID     uint64
	nextNonce uint64
	best      *candidate
}

// New returns a Forger generating blocks with keyPair.
func New(params *chaincfg.Params, chain ChainReader, miningManager miningmanager.MiningManager,
	hitCalculator model.HitCalculator, timeSource model.TimeSource, keyPair *signing.KeyPair) *Forger {

	return &Forger{
		params:        params,
		chain:         chain,
		miningManager: miningManager,
		hitCalculator: hitCalculator,
		timeSource:    timeSource,
		keyPair:       keyPair,
	}
}

// Start runs the forger in its own goroutine until ctx is cancelled. An
// invariant violation terminates the process.
func (f *Forger) Start(ctx context.Context) {
	spawn("forging.Run", func() {
		err := f.Run(ctx)
		if err != nil {
			panics.Exit(log, fmt.Sprintf("Forging stopped: %+v", err))
		}
	})
}

// Run performs forging rounds until ctx is cancelled.
func (f *Forger) Run(ctx context.Context) error {
	log.Infof("Forging as account %s", model.IDToString(f.keyPair.AccountID()))
	defer log.Infof("Forging stopped")

	ticker := time.NewTicker(roundInterval)
	defer ticker.Stop()
	for {
		_, err := f.ForgeRound()
		if err != nil {
			if model.IsInvariantViolation(err) {
				return err
			}
			log.Warnf("Forging round failed: %s", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ForgeRound tries the next batch of nonces against the tip and forges a
// block if the best hit so far is already valid. It returns the forged
// block, or nil when it is not time yet.
func (f *Forger) ForgeRound() (*model.Block, error) {
	tip := f.chain.LastBlock()
	if tip.ID() != f.tipID {
		f.tipID = tip.ID()
		f.nextNonce = 0
		f.best = nil
	}
	f.searchNonces(tip)

	now := f.timeSource.EpochTime()
	if now <= tip.Timestamp || !blockverifier.IsHitValid(f.best.hit, tip.BaseTarget(), now-tip.Timestamp) {
		log.Tracef("Waiting for deadline %ds after block %s", f.best.deadline, tip)
		return nil, nil
	}

	block, err := f.miningManager.GenerateBlock(f.keyPair, f.best.nonce)
	if err != nil {
		if errors.Is(err, blockprocessor.ErrStagingCacheNotEmpty) {
			log.Debugf("Not forging while downloaded blocks are pending")
			return nil, nil
		}
		if ruleerrors.IsRuleError(err) {
			log.Warnf("Forged block was rejected: %s", err)
			f.best = nil
			return nil, nil
		}
		return nil, err
	}
	log.Infof("Forged block %s at height %d with %d transactions",
		block, block.Height(), len(block.Transactions))
	return block, nil
}

func (f *Forger) searchNonces(tip *model.Block) {
	generationSignature := blockverifier.GenerationSignature(tip)
	pocVersion := f.params.PoCVersion(tip.Height() + 1)
	generatorID := f.keyPair.AccountID()

	for i := 0; i < noncesPerRound; i++ {
		nonce := f.nextNonce
		f.nextNonce++
		hit := f.hitCalculator.CalculateHit(generatorID, nonce, generationSignature, pocVersion)
		if f.best == nil || hit < f.best.hit {
			f.best = &candidate{
				nonce:    nonce,
				hit:      hit,
				deadline: blockverifier.Deadline(hit, tip.BaseTarget()),
			}
		}
	}
}
