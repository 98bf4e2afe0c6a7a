// Package clock provides the node's view of the current time.
package clock

import (
	"time"

	"github.com/pocnet/pocd/domain/chaincfg"
)

// Clock reads the system time as seconds since a network's epoch.
type Clock struct {
	params *chaincfg.Params
	now    func() time.Time
}

// New returns a Clock for the given network.
func New(params *chaincfg.Params) *Clock {
	return &Clock{
		params: params,
		now:    time.Now,
	}
}

// EpochTime implements model.TimeSource.
func (c *Clock) EpochTime() uint32 {
	return c.params.EpochTime(c.now())
}
