package protocol

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/app/appmessage"
	"github.com/pocnet/pocd/app/protocol/flows/blockrelay"
	"github.com/pocnet/pocd/app/protocol/flows/blocksync"
	peerpkg "github.com/pocnet/pocd/app/protocol/peer"
	"github.com/pocnet/pocd/app/protocol/protocolerrors"
	"github.com/pocnet/pocd/domain/consensus"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/infrastructure/network/peerrpc"
	"google.golang.org/grpc"
)

// Manager manages the p2p protocol. It serves the requests of other nodes
// and drives block sync against them.
type Manager struct {
	consensus *consensus.Consensus
	peers     *peerpkg.Set
	blockSync *blocksync.Flow
	responder *blocksync.Responder
	isClosed  uint32
}

// NewManager creates a new instance of the p2p protocol manager
func NewManager(consensus *consensus.Consensus, peers *peerpkg.Set) *Manager {
	return &Manager{
		consensus: consensus,
		peers:     peers,
		blockSync: blocksync.New(consensus, peers),
		responder: blocksync.NewResponder(consensus.Params(), consensus),
	}
}

// ConnectToPeers dials every address and adds the resulting peers. Dialing
// is lazy, so unreachable addresses only fail on their first request.
func (m *Manager) ConnectToPeers(addresses []string, options ...grpc.DialOption) error {
	for _, address := range addresses {
		client, err := peerrpc.Dial(address, options...)
		if err != nil {
			return errors.Wrapf(err, "error dialing peer %s", address)
		}
		err = m.peers.Add(peerpkg.New(address, client))
		if err != nil {
			client.Close()
			if errors.Is(err, peerpkg.ErrDuplicatePeer) {
				log.Warnf("Peer %s is configured more than once", address)
				continue
			}
			return err
		}
	}
	return nil
}

// Start runs block sync until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.blockSync.Start(ctx)
}

// Close closes the protocol manager and disconnects every peer.
func (m *Manager) Close() {
	if !atomic.CompareAndSwapUint32(&m.isClosed, 0, 1) {
		panic(errors.New("The protocol manager was already closed"))
	}
	m.peers.Close()
}

// Peers returns the known peers
func (m *Manager) Peers() []*peerpkg.Peer {
	return m.peers.Peers()
}

// LastBlockchainFeeder returns the last sync peer and the height it
// reported.
func (m *Manager) LastBlockchainFeeder() (*peerpkg.Peer, uint32) {
	return m.blockSync.LastBlockchainFeeder()
}

// GetCumulativeDifficulty implements peerrpc.Handler.
func (m *Manager) GetCumulativeDifficulty(ctx context.Context,
	request *appmessage.GetCumulativeDifficultyRequestMessage) (*appmessage.GetCumulativeDifficultyResponseMessage, error) {

	return m.responder.HandleGetCumulativeDifficulty(ctx, request)
}

// GetMilestoneBlockIDs implements peerrpc.Handler.
func (m *Manager) GetMilestoneBlockIDs(ctx context.Context,
	request *appmessage.GetMilestoneBlockIDsRequestMessage) (*appmessage.GetMilestoneBlockIDsResponseMessage, error) {

	response, err := m.responder.HandleGetMilestoneBlockIDs(ctx, request)
	m.blacklistRequesterOnProtocolError(ctx, err)
	return response, err
}

// GetNextBlockIDs implements peerrpc.Handler.
func (m *Manager) GetNextBlockIDs(ctx context.Context,
	request *appmessage.GetNextBlockIDsRequestMessage) (*appmessage.GetNextBlockIDsResponseMessage, error) {

	response, err := m.responder.HandleGetNextBlockIDs(ctx, request)
	m.blacklistRequesterOnProtocolError(ctx, err)
	return response, err
}

// GetNextBlocks implements peerrpc.Handler.
func (m *Manager) GetNextBlocks(ctx context.Context,
	request *appmessage.GetNextBlocksRequestMessage) (*appmessage.GetNextBlocksResponseMessage, error) {

	response, err := m.responder.HandleGetNextBlocks(ctx, request)
	m.blacklistRequesterOnProtocolError(ctx, err)
	return response, err
}

// ProcessBlock implements peerrpc.Handler.
func (m *Manager) ProcessBlock(ctx context.Context,
	request *appmessage.ProcessBlockRequestMessage) (*appmessage.ProcessBlockResponseMessage, error) {

	return blockrelay.HandleProcessBlock(ctx, m.consensus, m.requester, request)
}

// requester returns the known peer a request came from.
func (m *Manager) requester(ctx context.Context) (model.BlockOrigin, bool) {
	address, ok := peerrpc.RemoteAddress(ctx)
	if !ok {
		return nil, false
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	peer, ok := m.peers.PeerByHost(host)
	if !ok {
		return nil, false
	}
	return peer, true
}

func (m *Manager) blacklistRequesterOnProtocolError(ctx context.Context, err error) {
	if !protocolerrors.ShouldBlacklist(err) {
		return
	}
	if requester, ok := m.requester(ctx); ok {
		requester.Blacklist(err)
	}
}
