package notifications

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/pocnet/pocd/domain/consensus/model"
)

// EventType is the kind of a chain event.
type EventType int

// Chain events, in roughly the order a block meets them.
const (
	// BlockScanned fires for every block replayed by a rescan.
	BlockScanned EventType = iota

	// BeforeBlockAccept fires once a block passed validation, inside the
	// storage transaction, before any of its effects are applied.
	BeforeBlockAccept

	// BeforeBlockApply fires after a block's provisional effects and
	// before its confirmed effects.
	BeforeBlockApply

	// AfterBlockApply fires after a block's confirmed effects, inside the
	// storage transaction.
	AfterBlockApply

	// BlockPushed fires after a block was committed.
	BlockPushed

	// BlockPopped fires for every block detached by a rollback.
	BlockPopped

	// BlockGenerated fires after a locally forged block was committed.
	BlockGenerated

	// RescanBegin and RescanEnd bracket a rescan.
	RescanBegin
	RescanEnd
)

var eventTypeStrings = map[EventType]string{
	BlockScanned:      "BlockScanned",
	BeforeBlockAccept: "BeforeBlockAccept",
	BeforeBlockApply:  "BeforeBlockApply",
	AfterBlockApply:   "AfterBlockApply",
	BlockPushed:       "BlockPushed",
	BlockPopped:       "BlockPopped",
	BlockGenerated:    "BlockGenerated",
	RescanBegin:       "RescanBegin",
	RescanEnd:         "RescanEnd",
}

func (t EventType) String() string {
	if s, ok := eventTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Listener is called synchronously with the block an event is about.
type Listener func(block *model.Block)

// Manager dispatches chain events to their listeners.
type Manager struct {
	listeners     map[EventType][]Listener
	listenersLock sync.RWMutex
}

// New returns a Manager without listeners.
func New() *Manager {
	return &Manager{
		listeners: make(map[EventType][]Listener),
	}
}

// Subscribe registers a listener for the given event type. Listeners of
// one type run in the order they were subscribed.
func (m *Manager) Subscribe(eventType EventType, listener Listener) {
	m.listenersLock.Lock()
	defer m.listenersLock.Unlock()

	m.listeners[eventType] = append(m.listeners[eventType], listener)
}

// Notify runs every listener of the given event type. A listener that
// panics is logged and skipped: listeners never affect the processing of
// the block they are told about.
func (m *Manager) Notify(eventType EventType, block *model.Block) {
	m.listenersLock.RLock()
	listeners := m.listeners[eventType]
	m.listenersLock.RUnlock()

	for _, listener := range listeners {
		m.runListener(eventType, listener, block)
	}
}

func (m *Manager) runListener(eventType EventType, listener Listener, block *model.Block) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf("Listener for %s of block %s panicked: %+v\n%s",
				eventType, block, err, debug.Stack())
		}
	}()
	listener(block)
}
