// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// interruptSignals defines the signals that will be handled to do a clean
// shutdown.
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// InterruptListener returns a context that is cancelled when an interrupt
// signal is received or when parent is done. Signals received after the
// first one are logged and otherwise ignored, so a second Ctrl+C does not
// kill the process mid-shutdown.
func InterruptListener(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, interruptSignals...)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, interruptSignals...)
	go func() {
		<-ctx.Done()
		log.Infof("Received shutdown request. Shutting down...")
		for sig := range signals {
			log.Infof("Received signal (%s). Already shutting down...", sig)
		}
	}()

	return ctx, func() {
		stop()
		signal.Stop(signals)
		close(signals)
	}
}
