package metrics

import (
	"time"

	"github.com/pocnet/pocd/domain/consensus/ruleerrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pocd"

var (
	blocksPushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "blocks_pushed_total",
		Help:      "Count of blocks committed to the chain.",
	})

	blocksRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "blocks_rejected_total",
		Help:      "Count of blocks rejected by the import pipeline.",
	}, []string{"kind"})

	blocksPoppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "blocks_popped_total",
		Help:      "Count of blocks detached by rollbacks.",
	})

	pushBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "push_block_duration_seconds",
		Help:      "Duration of block imports.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	chainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "height",
		Help:      "Height of the chain tip.",
	})

	forkSwitchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "fork_switches_total",
		Help:      "Count of fork resolutions by outcome.",
	}, []string{"outcome"})

	peersBlacklistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "peers_blacklisted_total",
		Help:      "Count of peers blacklisted.",
	})

	blocksDownloadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "blocks_downloaded_total",
		Help:      "Count of blocks downloaded from peers by destination.",
	}, []string{"destination"})

	feederHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "feeder_height",
		Help:      "Chain height last reported by the sync peer.",
	})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verifier",
		Name:      "verifications_total",
		Help:      "Count of verification rounds by path and status.",
	}, []string{"path", "status"})

	verificationBlocks = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "verifier",
		Name:      "verification_blocks",
		Help:      "Number of blocks verified per round.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"path"})

	stagedBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "staging",
		Name:      "blocks",
		Help:      "Number of staged blocks.",
	})

	stagedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "staging",
		Name:      "bytes",
		Help:      "Total size of the staged blocks.",
	})

	unverifiedBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "staging",
		Name:      "unverified_blocks",
		Help:      "Number of staged blocks waiting for verification.",
	})
)

// Verification paths.
const (
	PathSequential  = "sequential"
	PathAccelerated = "accelerated"
)

// Fork resolution outcomes.
const (
	ForkSwitched   = "switched"
	ForkRestored   = "restored"
	ForkUnderpower = "underpowered"
)

// ObservePushBlock records the outcome of a block import.
func ObservePushBlock(err error, height uint32, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
		kind := "other"
		if ruleKind, ok := ruleerrors.KindOf(err); ok {
			kind = ruleKind.String()
		}
		blocksRejectedTotal.WithLabelValues(kind).Inc()
	} else {
		blocksPushedTotal.Inc()
		chainHeight.Set(float64(height))
	}
	pushBlockDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}

// ObservePoppedBlocks records a rollback.
func ObservePoppedBlocks(count int, height uint32) {
	blocksPoppedTotal.Add(float64(count))
	chainHeight.Set(float64(height))
}

// ObserveForkResolution records the outcome of a fork resolution.
func ObserveForkResolution(outcome string) {
	forkSwitchesTotal.WithLabelValues(outcome).Inc()
}

// ObservePeerBlacklisted records a blacklisted peer.
func ObservePeerBlacklisted() {
	peersBlacklistedTotal.Inc()
}

// Destinations of downloaded blocks.
const (
	DownloadStaged = "staged"
	DownloadFork   = "fork"
)

// ObserveDownloadedBlocks records blocks received from a sync peer.
func ObserveDownloadedBlocks(destination string, count int) {
	blocksDownloadedTotal.WithLabelValues(destination).Add(float64(count))
}

// SetFeederHeight records the chain height reported by the sync peer.
func SetFeederHeight(height uint32) {
	feederHeight.Set(float64(height))
}

// ObserveVerification records a verification round.
func ObserveVerification(path string, blocks int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	verificationsTotal.WithLabelValues(path, status).Inc()
	verificationBlocks.WithLabelValues(path).Observe(float64(blocks))
}

// SetStagingCache records the size of the staging cache.
func SetStagingCache(blocks int, bytes int, unverified int) {
	stagedBlocks.Set(float64(blocks))
	stagedBytes.Set(float64(bytes))
	unverifiedBlocks.Set(float64(unverified))
}
