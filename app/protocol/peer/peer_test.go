package peer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/app/appmessage"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/stretchr/testify/require"
)

// recordingTransport records block announcements and answers nothing else.
type recordingTransport struct {
	lock      sync.Mutex
	announced []*appmessage.BlockJSON
	closed    bool
}

var errUnsupported = errors.New("unsupported")

func (t *recordingTransport) GetCumulativeDifficulty(context.Context,
	*appmessage.GetCumulativeDifficultyRequestMessage) (*appmessage.GetCumulativeDifficultyResponseMessage, error) {
	return nil, errUnsupported
}

func (t *recordingTransport) GetMilestoneBlockIDs(context.Context,
	*appmessage.GetMilestoneBlockIDsRequestMessage) (*appmessage.GetMilestoneBlockIDsResponseMessage, error) {
	return nil, errUnsupported
}

func (t *recordingTransport) GetNextBlockIDs(context.Context,
	*appmessage.GetNextBlockIDsRequestMessage) (*appmessage.GetNextBlockIDsResponseMessage, error) {
	return nil, errUnsupported
}

func (t *recordingTransport) GetNextBlocks(context.Context,
	*appmessage.GetNextBlocksRequestMessage) (*appmessage.GetNextBlocksResponseMessage, error) {
	return nil, errUnsupported
}

func (t *recordingTransport) ProcessBlock(_ context.Context,
	request *appmessage.ProcessBlockRequestMessage) (*appmessage.ProcessBlockResponseMessage, error) {

	t.lock.Lock()
	defer t.lock.Unlock()
	t.announced = append(t.announced, request.Block)
	return appmessage.NewProcessBlockResponseMessage(true), nil
}

func (t *recordingTransport) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.closed = true
	return nil
}

func (t *recordingTransport) announcedCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.announced)
}

func TestBlacklistExpires(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	peer := New("10.0.0.1:8123", &recordingTransport{})
	peer.timeNow = func() time.Time { return now }

	require.False(t, peer.IsBlacklisted())
	reason := errors.New("sent rubbish")
	peer.Blacklist(reason)
	require.True(t, peer.IsBlacklisted())
	require.Equal(t, reason, peer.BlacklistReason())

	now = now.Add(BlacklistDuration)
	require.True(t, peer.IsBlacklisted())
	now = now.Add(time.Second)
	require.False(t, peer.IsBlacklisted())
	require.NoError(t, peer.BlacklistReason())
}

func TestSetAdd(t *testing.T) {
	set := NewSet(2)
	require.NoError(t, set.Add(New("10.0.0.1:8123", &recordingTransport{})))
	err := set.Add(New("10.0.0.1:8123", &recordingTransport{}))
	require.ErrorIs(t, err, ErrDuplicatePeer)
	require.Len(t, set.Peers(), 1)
}

func TestPeerByHost(t *testing.T) {
	set := NewSet(2)
	known := New("10.0.0.1:8123", &recordingTransport{})
	require.NoError(t, set.Add(known))

	peer, ok := set.PeerByHost("10.0.0.1")
	require.True(t, ok)
	require.Same(t, known, peer)

	_, ok = set.PeerByHost("10.0.0.2")
	require.False(t, ok)
}

func TestAnyConnectedPeerSkipsBlacklisted(t *testing.T) {
	set := NewSet(2)
	_, ok := set.AnyConnectedPeer()
	require.False(t, ok)

	good := New("10.0.0.1:8123", &recordingTransport{})
	bad := New("10.0.0.2:8123", &recordingTransport{})
	require.NoError(t, set.Add(good))
	require.NoError(t, set.Add(bad))
	bad.Blacklist(errors.New("sent rubbish"))

	for i := 0; i < 20; i++ {
		peer, ok := set.AnyConnectedPeer()
		require.True(t, ok)
		require.Same(t, good, peer)
	}

	good.Blacklist(errors.New("sent rubbish"))
	_, ok = set.AnyConnectedPeer()
	require.False(t, ok)
}

func TestBroadcastBlock(t *testing.T) {
	params := &chaincfg.SimnetParams
	block := testutils.BuildBlock(t, params, params.GenesisBlock(), testutils.KeyPair(t, "generator"))

	set := NewSet(2)
	transports := make([]*recordingTransport, 4)
	for i := range transports {
		transports[i] = &recordingTransport{}
		require.NoError(t, set.Add(New(string(rune('a'+i))+":8123", transports[i])))
	}
	blacklisted := set.Peers()[0]
	blacklisted.Blacklist(errors.New("sent rubbish"))

	set.BroadcastBlock(block)
	total := func() int {
		count := 0
		for _, transport := range transports {
			count += transport.announcedCount()
		}
		return count
	}
	require.Eventually(t, func() bool { return total() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Zero(t, blacklisted.Transport().(*recordingTransport).announcedCount())
}

func TestBroadcastBlockSkipsOrigin(t *testing.T) {
	params := &chaincfg.SimnetParams
	block := testutils.BuildBlock(t, params, params.GenesisBlock(), testutils.KeyPair(t, "generator"))

	set := NewSet(5)
	origin := &recordingTransport{}
	other := &recordingTransport{}
	originPeer := New("10.0.0.1:8123", origin)
	require.NoError(t, set.Add(originPeer))
	require.NoError(t, set.Add(New("10.0.0.2:8123", other)))
	block.SetOriginPeer(originPeer)

	set.BroadcastBlock(block)
	require.Eventually(t, func() bool { return other.announcedCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Zero(t, origin.announcedCount())

	other.lock.Lock()
	require.Equal(t, appmessage.DomainBlockToBlockJSON(block), other.announced[0])
	other.lock.Unlock()
}

func TestSetClose(t *testing.T) {
	set := NewSet(1)
	transport := &recordingTransport{}
	require.NoError(t, set.Add(New("10.0.0.1:8123", transport)))

	set.Close()
	require.Empty(t, set.Peers())
	require.True(t, transport.closed)
}
