package peer

import (
	"context"
	"sync"
	"time"

	"github.com/pocnet/pocd/app/appmessage"
	"github.com/pocnet/pocd/infrastructure/metrics"
)

// BlacklistDuration is how long a blacklisted peer is not asked for
// anything.
const BlacklistDuration = 10 * time.Minute

// Transport carries requests to a remote peer.
type Transport interface {
	GetCumulativeDifficulty(ctx context.Context,
		request *appmessage.GetCumulativeDifficultyRequestMessage) (*appmessage.GetCumulativeDifficultyResponseMessage, error)
	GetMilestoneBlockIDs(ctx context.Context,
		request *appmessage.GetMilestoneBlockIDsRequestMessage) (*appmessage.GetMilestoneBlockIDsResponseMessage, error)
	GetNextBlockIDs(ctx context.Context,
		request *appmessage.GetNextBlockIDsRequestMessage) (*appmessage.GetNextBlockIDsResponseMessage, error)
	GetNextBlocks(ctx context.Context,
		request *appmessage.GetNextBlocksRequestMessage) (*appmessage.GetNextBlocksResponseMessage, error)
	ProcessBlock(ctx context.Context,
		request *appmessage.ProcessBlockRequestMessage) (*appmessage.ProcessBlockResponseMessage, error)
	Close() error
}

// Peer is a remote node we sync from and relay blocks to.
type Peer struct {
	address   string
	transport Transport

	lock             sync.Mutex
	blacklistedUntil time.Time
	blacklistReason  error
	timeNow          func() time.Time
}

// New returns a peer reachable at address through transport.
func New(address string, transport Transport) *Peer {
	return &Peer{
		address:   address,
		transport: transport,
		timeNow:   time.Now,
	}
}

// Address returns the address of the peer.
func (p *Peer) Address() string {
	return p.address
}

// Transport returns the transport requests to the peer go through.
func (p *Peer) Transport() Transport {
	return p.transport
}

// Blacklist stops using the peer for BlacklistDuration.
func (p *Peer) Blacklist(reason error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	log.Warnf("Blacklisting peer %s: %s", p.address, reason)
	p.blacklistedUntil = p.timeNow().Add(BlacklistDuration)
	p.blacklistReason = reason
	metrics.ObservePeerBlacklisted()
}

// IsBlacklisted returns whether the peer is currently blacklisted.
func (p *Peer) IsBlacklisted() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.blacklistedUntil.IsZero() {
		return false
	}
	if p.timeNow().After(p.blacklistedUntil) {
		log.Debugf("Peer %s is no longer blacklisted", p.address)
		p.blacklistedUntil = time.Time{}
		p.blacklistReason = nil
		return false
	}
	return true
}

// BlacklistReason returns why the peer was last blacklisted, or nil.
func (p *Peer) BlacklistReason() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.blacklistReason
}

func (p *Peer) String() string {
	return p.address
}
