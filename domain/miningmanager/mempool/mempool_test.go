package mempool

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/notifications"
	"github.com/pocnet/pocd/domain/consensus/utils/testutils"
	"github.com/stretchr/testify/require"
)

type fakeConfirmations map[uint64]bool

func (c fakeConfirmations) HasTransaction(txID uint64) (bool, error) {
	return c[txID], nil
}

func newTestMempool(t *testing.T, maxCount int, confirmations fakeConfirmations) *Mempool {
	mp, err := New(&Config{MaximumTransactionCount: maxCount}, testutils.NewFakeTimeSource(1000), confirmations)
	require.NoError(t, err)
	return mp
}

func payment(t *testing.T, sender string, timestamp uint32) *model.Transaction {
	return testutils.BuildPayment(t, &chaincfg.SimnetParams, testutils.KeyPair(t, sender),
		testutils.Account(t, "recipient"), timestamp, testutils.PaymentOptions{})
}

func TestAddRejectsUnusableTransactions(t *testing.T) {
	confirmed := payment(t, "confirmed", 1000)
	mp := newTestMempool(t, 10, fakeConfirmations{confirmed.ID(): true})

	err := mp.Add(confirmed)
	require.True(t, errors.Is(err, ErrAlreadyConfirmed), "unexpected error: %v", err)

	expired := testutils.BuildPayment(t, &chaincfg.SimnetParams, testutils.KeyPair(t, "expired"),
		testutils.Account(t, "recipient"), 0, testutils.PaymentOptions{Deadline: 1})
	err = mp.Add(expired)
	require.True(t, errors.Is(err, ErrExpired), "unexpected error: %v", err)

	unsigned := &model.Transaction{Type: model.TypePayment, Timestamp: 1000, Deadline: 10}
	err = mp.Add(unsigned)
	require.True(t, errors.Is(err, ErrUnsigned), "unexpected error: %v", err)

	require.Zero(t, mp.Count())
}

func TestFullPoolEvictsOldest(t *testing.T) {
	mp := newTestMempool(t, 3, fakeConfirmations{})

	txs := []*model.Transaction{
		payment(t, "first", 1000),
		payment(t, "second", 1000),
		payment(t, "third", 1000),
		payment(t, "fourth", 1000),
	}
	for _, tx := range txs {
		require.NoError(t, mp.Add(tx))
	}

	require.Equal(t, 3, mp.Count())
	_, ok := mp.Get(txs[0].ID())
	require.False(t, ok, "the oldest transaction should have been evicted")
	for _, tx := range txs[1:] {
		_, ok := mp.Get(tx.ID())
		require.True(t, ok)
	}
}

func TestAllIsInAssemblyOrder(t *testing.T) {
	mp := newTestMempool(t, 10, fakeConfirmations{})
	alias := testutils.BuildAliasAssignment(t, &chaincfg.SimnetParams, testutils.KeyPair(t, "alias"), "pocnet", 1000)
	require.NoError(t, mp.Add(alias))
	for _, sender := range []string{"a", "b", "c"} {
		require.NoError(t, mp.Add(payment(t, sender, 1000)))
	}

	all := mp.All()
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		require.False(t, all[i].Less(all[i-1]), "transactions %d and %d are out of order", i-1, i)
	}
	require.Equal(t, alias.ID(), all[len(all)-1].ID(), "payments go before messages")
}

func TestBlockPushedDropsConfirmedAndExpired(t *testing.T) {
	mp := newTestMempool(t, 10, fakeConfirmations{})
	manager := notifications.New()
	mp.Subscribe(manager)

	confirmed := payment(t, "confirmed", 1000)
	expiring := testutils.BuildPayment(t, &chaincfg.SimnetParams, testutils.KeyPair(t, "expiring"),
		testutils.Account(t, "recipient"), 1000, testutils.PaymentOptions{Deadline: 1})
	pending := payment(t, "pending", 1000)
	for _, tx := range []*model.Transaction{confirmed, expiring, pending} {
		require.NoError(t, mp.Add(tx))
	}

	manager.Notify(notifications.BlockPushed, &model.Block{
		Timestamp:    1000 + 120,
		Transactions: []*model.Transaction{confirmed},
	})

	require.Equal(t, 1, mp.Count())
	_, ok := mp.Get(pending.ID())
	require.True(t, ok)
}

func TestProcessLaterSkipsConfirmed(t *testing.T) {
	confirmed := payment(t, "confirmed", 1000)
	mp := newTestMempool(t, 10, fakeConfirmations{confirmed.ID(): true})
	detached := payment(t, "detached", 1000)

	mp.ProcessLater([]*model.Transaction{confirmed, detached})

	require.Equal(t, 1, mp.Count())
	_, ok := mp.Get(detached.ID())
	require.True(t, ok)
}
