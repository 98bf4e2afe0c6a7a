package protocol

import (
	"context"
	"net"
	"testing"

	"github.com/pocnet/pocd/app/appmessage"
	peerpkg "github.com/pocnet/pocd/app/protocol/peer"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus"
	"github.com/pocnet/pocd/domain/consensus/datastructures/stagingcache"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/pocnet/pocd/infrastructure/db/database/ldb"
	"github.com/stretchr/testify/require"
	grpcpeer "google.golang.org/grpc/peer"
)

func newTestManager(t *testing.T) *Manager {
	db, err := ldb.NewMemoryLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	params := chaincfg.SimnetParams
	config := &consensus.Config{Params: &params}
	config.BlockProcessor.StagingCache = stagingcache.Config{
		MaxBlocks:   100,
		MaxBytes:    1 << 20,
		MaxRollback: params.MaxRollback,
	}
	c, err := consensus.NewFactory().NewConsensus(config, db, consensus.External{
		UnconfirmedPool: testutils.NewFakePool(),
		Broadcaster:     &testutils.FakeBroadcaster{},
		TimeSource:      testutils.NewFakeTimeSource(1_000_000),
	})
	require.NoError(t, err)
	return NewManager(c, peerpkg.NewSet(8))
}

func fromAddress(address string) context.Context {
	tcpAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		panic(err)
	}
	return grpcpeer.NewContext(context.Background(), &grpcpeer.Peer{Addr: tcpAddress})
}

func TestConnectToPeers(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.ConnectToPeers([]string{"127.0.0.1:18123", "127.0.0.2:18123", "127.0.0.1:18123"}))
	require.Len(t, manager.Peers(), 2)

	manager.Close()
	require.Empty(t, manager.Peers())
	require.Panics(t, manager.Close)
}

func TestProcessBlockRecordsTheRequester(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.ConnectToPeers([]string{"127.0.0.1:18123"}))
	t.Cleanup(manager.peers.Close)

	params := manager.consensus.Params()
	block := testutils.BuildBlock(t, params, manager.consensus.LastBlock(), testutils.KeyPair(t, "generator"))
	response, err := manager.ProcessBlock(fromAddress("127.0.0.1:40000"),
		appmessage.NewProcessBlockRequestMessage(appmessage.DomainBlockToBlockJSON(block)))
	require.NoError(t, err)
	require.True(t, response.Accepted)

	staged := manager.consensus.StagingCache().LastBlock()
	require.Equal(t, block.ID(), staged.ID())
	require.Equal(t, "127.0.0.1:18123", staged.OriginPeer().Address())
}

func TestMalformedRequestsBlacklistTheRequester(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.ConnectToPeers([]string{"127.0.0.1:18123"}))
	t.Cleanup(manager.peers.Close)

	_, err := manager.GetNextBlocks(fromAddress("127.0.0.1:40000"), appmessage.NewGetNextBlocksRequestMessage("block"))
	require.Error(t, err)
	require.True(t, manager.Peers()[0].IsBlacklisted())
}

func TestGetCumulativeDifficulty(t *testing.T) {
	manager := newTestManager(t)
	response, err := manager.GetCumulativeDifficulty(context.Background(),
		appmessage.NewGetCumulativeDifficultyRequestMessage())
	require.NoError(t, err)
	require.Zero(t, *response.BlockchainHeight)
	require.Equal(t, manager.consensus.LastBlock().CumulativeDifficulty().Dec(), response.CumulativeDifficulty)
}
