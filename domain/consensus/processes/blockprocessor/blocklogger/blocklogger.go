// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blocklogger

import (
	"sync"
	"time"

	"github.com/pocnet/pocd/domain/consensus/model"
)

// progressInterval is how many pushed blocks pass between progress lines.
const progressInterval = 5000

var (
	stats = struct {
		receivedLogBlocks int64
		receivedLogTx     int64
		lastBlockLogTime  time.Time
	}{
		lastBlockLogTime: time.Now(),
	}
	statsLock sync.Mutex
)

// LogBlock counts a pushed block and, every progressInterval blocks,
// logs the chain height and import rate as an information message to show
// progress to the user.
func LogBlock(block *model.Block) {
	statsLock.Lock()
	defer statsLock.Unlock()

	stats.receivedLogBlocks++
	stats.receivedLogTx += int64(len(block.Transactions))
	if stats.receivedLogBlocks < progressInterval {
		return
	}

	now := time.Now()
	duration := now.Sub(stats.lastBlockLogTime)
	// Truncate the duration to 10s of milliseconds.
	tDuration := duration.Round(10 * time.Millisecond)
	rate := float64(stats.receivedLogBlocks) / duration.Seconds()

	txStr := "transactions"
	if stats.receivedLogTx == 1 {
		txStr = "transaction"
	}
	log.Infof("Processed %d blocks in the last %s (%d %s, height %d, %.1f blocks/s)",
		stats.receivedLogBlocks, tDuration, stats.receivedLogTx, txStr, block.Height(), rate)

	stats.receivedLogBlocks = 0
	stats.receivedLogTx = 0
	stats.lastBlockLogTime = now
}
