package testutils

import (
	"sort"
	"sync"

	"github.com/pocnet/pocd/domain/consensus/model"
)

// FakePool is an in-memory UnconfirmedPool that records what the chain
// hands back to it.
type FakePool struct {
	lock         sync.Mutex
	transactions map[uint64]*model.Transaction
	processLater []*model.Transaction
	removed      []*model.Transaction
	requeued     int
}

// NewFakePool returns a pool holding txs.
func NewFakePool(txs ...*model.Transaction) *FakePool {
	pool := &FakePool{transactions: make(map[uint64]*model.Transaction)}
	for _, tx := range txs {
		pool.Add(tx)
	}
	return pool
}

// Add puts tx in the pool.
func (p *FakePool) Add(tx *model.Transaction) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.transactions[tx.ID()] = tx
}

// All implements model.UnconfirmedPool.
func (p *FakePool) All() []*model.Transaction {
	p.lock.Lock()
	defer p.lock.Unlock()

	txs := make([]*model.Transaction, 0, len(p.transactions))
	for _, tx := range p.transactions {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Less(txs[j]) })
	return txs
}

// Remove implements model.UnconfirmedPool.
func (p *FakePool) Remove(tx *model.Transaction) {
	p.lock.Lock()
	defer p.lock.Unlock()

	delete(p.transactions, tx.ID())
	p.removed = append(p.removed, tx)
}

// ProcessLater implements model.UnconfirmedPool.
func (p *FakePool) ProcessLater(txs []*model.Transaction) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.processLater = append(p.processLater, txs...)
}

// RequeueAll implements model.UnconfirmedPool.
func (p *FakePool) RequeueAll() {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.requeued++
}

// Removed returns the transactions evicted so far.
func (p *FakePool) Removed() []*model.Transaction {
	p.lock.Lock()
	defer p.lock.Unlock()

	return append([]*model.Transaction(nil), p.removed...)
}

// ProcessedLater returns the transactions returned to the pool so far.
func (p *FakePool) ProcessedLater() []*model.Transaction {
	p.lock.Lock()
	defer p.lock.Unlock()

	return append([]*model.Transaction(nil), p.processLater...)
}

// Contains returns whether tx is in the pool.
func (p *FakePool) Contains(tx *model.Transaction) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	_, ok := p.transactions[tx.ID()]
	return ok
}

// FakeBroadcaster records broadcast blocks.
type FakeBroadcaster struct {
	lock   sync.Mutex
	blocks []*model.Block
}

// BroadcastBlock implements model.BlockBroadcaster.
func (b *FakeBroadcaster) BroadcastBlock(block *model.Block) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.blocks = append(b.blocks, block)
}

// Broadcast returns the broadcast blocks in order.
func (b *FakeBroadcaster) Broadcast() []*model.Block {
	b.lock.Lock()
	defer b.lock.Unlock()

	return append([]*model.Block(nil), b.blocks...)
}

// FakeTimeSource is a settable clock.
type FakeTimeSource struct {
	lock sync.Mutex
	now  uint32
}

// NewFakeTimeSource returns a clock set to now.
func NewFakeTimeSource(now uint32) *FakeTimeSource {
	return &FakeTimeSource{now: now}
}

// EpochTime implements model.TimeSource.
func (ts *FakeTimeSource) EpochTime() uint32 {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	return ts.now
}

// Set moves the clock to now.
func (ts *FakeTimeSource) Set(now uint32) {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	ts.now = now
}

// FakePeer is a BlockOrigin that records blacklisting.
type FakePeer struct {
	address string

	lock    sync.Mutex
	reasons []error
}

// NewFakePeer returns a peer with the given address.
func NewFakePeer(address string) *FakePeer {
	return &FakePeer{address: address}
}

// Address implements model.BlockOrigin.
func (p *FakePeer) Address() string {
	return p.address
}

// Blacklist implements model.BlockOrigin.
func (p *FakePeer) Blacklist(reason error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.reasons = append(p.reasons, reason)
}

// IsBlacklisted returns whether the peer was blacklisted at least once.
func (p *FakePeer) IsBlacklisted() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return len(p.reasons) > 0
}

// BlacklistReasons returns every reason the peer was blacklisted for.
func (p *FakePeer) BlacklistReasons() []error {
	p.lock.Lock()
	defer p.lock.Unlock()

	return append([]error(nil), p.reasons...)
}
