package peer

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/app/appmessage"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// broadcastTimeout bounds a single block announcement.
const broadcastTimeout = 30 * time.Second

// ErrDuplicatePeer is returned when adding a peer whose address is
// already known.
var ErrDuplicatePeer = errors.New("peer already exists")

// Set holds the peers the node knows of.
type Set struct {
	lock              sync.RWMutex
	peers             map[string]*Peer
	maxBroadcastPeers int
}

// NewSet returns an empty peer set. Blocks are announced to at most
// maxBroadcastPeers peers.
func NewSet(maxBroadcastPeers int) *Set {
	return &Set{
		peers:             make(map[string]*Peer),
		maxBroadcastPeers: maxBroadcastPeers,
	}
}

// Add adds a peer to the set.
func (s *Set) Add(peer *Peer) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.peers[peer.Address()]; ok {
		return errors.Wrapf(ErrDuplicatePeer, "peer %s", peer.Address())
	}
	s.peers[peer.Address()] = peer
	log.Infof("Added peer %s", peer.Address())
	return nil
}

// Remove removes the peer at address and closes its transport.
func (s *Set) Remove(address string) {
	s.lock.Lock()
	peer, ok := s.peers[address]
	delete(s.peers, address)
	s.lock.Unlock()

	if !ok {
		return
	}
	err := peer.Transport().Close()
	if err != nil {
		log.Warnf("Error closing the transport of %s: %s", address, err)
	}
}

// Peers returns every peer in the set.
func (s *Set) Peers() []*Peer {
	s.lock.RLock()
	defer s.lock.RUnlock()

	peers := make([]*Peer, 0, len(s.peers))
	for _, peer := range s.peers {
		peers = append(peers, peer)
	}
	return peers
}

// PeerByHost returns a peer whose address has the given host part.
// Inbound connections come from ephemeral ports, so peers are matched on
// their host alone.
func (s *Set) PeerByHost(host string) (*Peer, bool) {
	for _, peer := range s.Peers() {
		peerHost, _, err := net.SplitHostPort(peer.Address())
		if err != nil {
			peerHost = peer.Address()
		}
		if peerHost == host {
			return peer, true
		}
	}
	return nil, false
}

// AnyConnectedPeer returns a random peer that is not blacklisted.
func (s *Set) AnyConnectedPeer() (*Peer, bool) {
	candidates := s.connectedPeers()
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[rand.Intn(len(candidates))], true
}

func (s *Set) connectedPeers() []*Peer {
	var connected []*Peer
	for _, peer := range s.Peers() {
		if !peer.IsBlacklisted() {
			connected = append(connected, peer)
		}
	}
	return connected
}

// BroadcastBlock announces block to a random selection of peers, other
// than the peer it came from. It does not wait for the announcements to
// complete.
func (s *Set) BroadcastBlock(block *model.Block) {
	var originAddress string
	if origin := block.OriginPeer(); origin != nil {
		originAddress = origin.Address()
	}

	candidates := s.connectedPeers()
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	request := appmessage.NewProcessBlockRequestMessage(appmessage.DomainBlockToBlockJSON(block))
	sent := 0
	for _, peer := range candidates {
		if sent >= s.maxBroadcastPeers {
			break
		}
		if peer.Address() == originAddress {
			continue
		}
		sent++
		peer := peer
		spawn("Set.BroadcastBlock", func() {
			ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
			defer cancel()
			response, err := peer.Transport().ProcessBlock(ctx, request)
			if err != nil {
				log.Debugf("Could not announce block %s to %s: %s", block, peer, err)
				return
			}
			log.Tracef("Peer %s accepted block %s: %t", peer, block, response.Accepted)
		})
	}
}

// Close closes the transport of every peer.
func (s *Set) Close() {
	for _, peer := range s.Peers() {
		s.Remove(peer.Address())
	}
}
