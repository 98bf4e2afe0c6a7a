package notifications

import (
	"testing"

	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/stretchr/testify/require"
)

func TestNotifyRunsListenersInOrder(t *testing.T) {
	manager := New()
	block := &model.Block{Timestamp: 17}

	var calls []string
	manager.Subscribe(BlockPushed, func(b *model.Block) {
		require.Same(t, block, b)
		calls = append(calls, "first")
	})
	manager.Subscribe(BlockPushed, func(*model.Block) {
		calls = append(calls, "second")
	})
	manager.Subscribe(BlockPopped, func(*model.Block) {
		calls = append(calls, "popped")
	})

	manager.Notify(BlockPushed, block)
	require.Equal(t, []string{"first", "second"}, calls)
}

func TestNotifySurvivesPanickingListener(t *testing.T) {
	manager := New()

	reached := false
	manager.Subscribe(AfterBlockApply, func(*model.Block) {
		panic("listener failure")
	})
	manager.Subscribe(AfterBlockApply, func(*model.Block) {
		reached = true
	})

	require.NotPanics(t, func() {
		manager.Notify(AfterBlockApply, &model.Block{})
	})
	require.True(t, reached, "listeners after a panicking one must still run")
}

func TestNotifyWithoutListeners(t *testing.T) {
	manager := New()
	require.NotPanics(t, func() {
		manager.Notify(RescanBegin, nil)
	})
}
