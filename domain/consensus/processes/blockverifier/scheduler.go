package blockverifier

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"github.com/pocnet/pocd/infrastructure/metrics"
	"golang.org/x/sync/semaphore"
)

// DefaultAcceleratedPermits is how many accelerated batches may run at
// once across the whole process.
const DefaultAcceleratedPermits = 2

// idleInterval is how long the scheduler waits between rounds.
const idleInterval = 10 * time.Millisecond

// SchedulerConfig configures the verification scheduler.
type SchedulerConfig struct {
	Accelerated          bool
	AcceleratedThreshold int
	AcceleratedBatchSize int
}

// Scheduler drains the staging cache's verification queue.
type Scheduler struct {
	config   SchedulerConfig
	cache    *stagingcache.StagingCache
	verifier *BlockVerifier
	permits  *semaphore.Weighted
}

// NewScheduler returns a Scheduler over the given cache. permits is
// shared by every scheduler of the process.
func NewScheduler(config SchedulerConfig, cache *stagingcache.StagingCache,
	verifier *BlockVerifier, permits *semaphore.Weighted) *Scheduler {

	return &Scheduler{
		config:   config,
		cache:    cache,
		verifier: verifier,
		permits:  permits,
	}
}

// Run verifies staged blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.VerifyRound(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(idleInterval):
		}
	}
}

// VerifyRound verifies either one accelerated batch or one block. It
// returns false if there was nothing to verify.
func (s *Scheduler) VerifyRound(ctx context.Context) bool {
	if s.shouldAccelerate() {
		verified, fallBack := s.verifyBatch(ctx)
		if !fallBack {
			return verified
		}
	}
	return s.verifySequential()
}

func (s *Scheduler) shouldAccelerate() bool {
	return s.config.Accelerated &&
		s.cache.UnverifiedSize() > s.config.AcceleratedThreshold &&
		s.permits.TryAcquire(1)
}

// verifyBatch must only be called after acquiring a permit.
func (s *Scheduler) verifyBatch(ctx context.Context) (verified bool, fallBack bool) {
	defer s.permits.Release(1)

	batch := s.cache.UnverifiedBatch(s.config.AcceleratedBatchSize, s.verifier.PoCVersion)
	if len(batch) == 0 {
		return false, false
	}

	err := s.verifier.VerifyBatch(ctx, batch, s.cache.Block)
	metrics.ObserveVerification(metrics.PathAccelerated, len(batch), err)
	if err == nil {
		s.cache.RemoveUnverifiedBatch(batch)
		log.Debugf("Verified a batch of %d blocks", len(batch))
		return true, false
	}

	var batchErr *BatchValidationError
	if errors.As(err, &batchErr) {
		log.Infof("Block %s failed verification: %s", batchErr.Block, err)
		s.blacklistOrigin(batchErr.Block, err)
		s.cache.Reset()
		return true, false
	}

	log.Warnf("Accelerated verification unavailable, falling back to sequential verification: %s", err)
	return false, true
}

func (s *Scheduler) verifySequential() bool {
	block, ok := s.cache.FirstUnverified()
	if !ok {
		return false
	}

	err := s.verifier.VerifyBlock(block, s.cache.Block)
	metrics.ObserveVerification(metrics.PathSequential, 1, err)
	if err != nil {
		if !ruleerrors.IsRuleError(err) {
			// The predecessor vanished, most likely because the cache was
			// reset meanwhile.
			log.Debugf("Could not verify block %s: %s", block, err)
			return false
		}
		log.Infof("Block %s failed verification: %s", block, err)
		s.blacklistOrigin(block, err)
		s.cache.Reset()
		return true
	}

	block.SetVerified()
	s.cache.RemoveUnverified(block.ID())
	return true
}

func (s *Scheduler) blacklistOrigin(block *model.Block, reason error) {
	if origin := block.OriginPeer(); origin != nil {
		origin.Blacklist(reason)
	}
}
