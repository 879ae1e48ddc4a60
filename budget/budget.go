// Package budget implements a concurrent token pool: a fixed number of
// tokens can be allocated by competing goroutines, each allocation can be
// partially consumed, and whatever an allocation never consumed is
// returned to the pool on Release.
package budget

import "sync/atomic"

// Budget is a pool of tokens shared across concurrent callers.
type Budget struct {
	remaining atomic.Uint64
}

// New creates a Budget with the given number of tokens available.
func New(tokens uint64) *Budget {
	b := &Budget{}
	b.remaining.Store(tokens)
	return b
}

// Remaining reports the tokens currently unallocated. Racy by
// construction: useful for observability, not for deciding whether an
// Allocate call will succeed.
func (b *Budget) Remaining() uint64 {
	return b.remaining.Load()
}

// Allocate reserves amount tokens from the pool, returning an Allocation
// on success. It returns nil if fewer than amount tokens are available.
// Safe for concurrent use: a compare-and-swap loop ensures the total
// tokens ever allocated never exceeds the budget's capacity, even under
// contention.
func (b *Budget) Allocate(amount uint64) *Allocation {
	for {
		witness := b.remaining.Load()
		if witness < amount {
			return nil
		}
		if b.remaining.CompareAndSwap(witness, witness-amount) {
			return &Allocation{remaining: &b.remaining, allocated: amount}
		}
	}
}

// Allocation is a reservation of tokens carved out of a Budget. Tokens
// left unconsumed when Release is called are returned to the Budget.
type Allocation struct {
	remaining *atomic.Uint64
	allocated uint64
}

// Allocated reports the tokens still held by this allocation (not yet
// consumed or released).
func (a *Allocation) Allocated() uint64 {
	return a.allocated
}

// Consume deducts amount from the allocation's remaining tokens. It
// returns false without modifying the allocation if amount exceeds what
// remains allocated.
func (a *Allocation) Consume(amount uint64) bool {
	if amount > a.allocated {
		return false
	}
	a.allocated -= amount
	return true
}

// Release returns every unconsumed token in the allocation to the parent
// Budget and zeroes the allocation. Idempotent: calling Release twice
// only returns tokens once. There is no finalizer-based release (Go has
// no Drop); callers must call Release explicitly, typically via defer,
// the moment the allocation is known to be done being consumed from.
func (a *Allocation) Release() {
	if a.allocated == 0 {
		return
	}
	a.remaining.Add(a.allocated)
	a.allocated = 0
}
