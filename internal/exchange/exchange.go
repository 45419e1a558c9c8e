// internal/exchange/exchange.go
package exchange

import (
	"context"
	"sync"
)

// slot holds the latest value of one channel.
// mu guards value only; count is guarded by the exchange notification lock.
type slot[T any] struct {
	mu    sync.Mutex
	value T
	count uint64
}

// Exchange is a fixed set of independently lockable channel slots shared
// between one producer and any number of consumers.
//
// Writers publish the value under the slot lock and only then bump the
// counters under the shared notification lock, so a woken waiter always
// reads the published value (or a newer one).
type Exchange[T any] struct {
	slots []slot[T]

	mu     sync.Mutex // notification lock: counters, total, parked
	cond   *sync.Cond
	total  uint64
	parked int
}

// New creates an exchange with n slots, all holding the zero value of T.
func New[T any](n int) *Exchange[T] {
	if n <= 0 {
		panic("exchange: slot count must be > 0")
	}
	e := &Exchange[T]{slots: make([]slot[T], n)}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Len returns the number of slots.
func (e *Exchange[T]) Len() int { return len(e.slots) }

// Get returns the current value of slot i. It never blocks on other slots.
func (e *Exchange[T]) Get(i int) T {
	s := &e.slots[i]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores v in slot i and wakes every waiter.
func (e *Exchange[T]) Set(i int, v T) {
	s := &e.slots[i]

	// ---- publish ----
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()

	// ---- notify ----
	e.mu.Lock()
	e.bumpLocked(i)
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Count returns the modification counter of slot i.
func (e *Exchange[T]) Count(i int) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots[i].count
}

// Total returns the sum of all slot counters.
func (e *Exchange[T]) Total() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

// WaitForUpdate blocks until slot i is written.
// Exactly one write must have happened since the call started; anything else
// returns a *ConsistencyError.
func (e *Exchange[T]) WaitForUpdate(ctx context.Context, i int) error {
	e.checkIndex(i)

	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.waitLocked(ctx, i, e.slots[i].count)
	return err
}

// WaitForUpdateAfter is WaitForUpdate for a consumer that tracks the slot
// counter itself: it waits until slot i's counter moves past seen and returns
// the new counter. Writes that happened before the call are observed, so a
// consumer that starts late does not lose the first value.
func (e *Exchange[T]) WaitForUpdateAfter(ctx context.Context, i int, seen uint64) (uint64, error) {
	e.checkIndex(i)

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.waitLocked(ctx, i, seen)
}

// WaitForNewer waits until slot i's counter moves past seen and returns the
// new counter. Unlike WaitForUpdateAfter it accepts any number of writes in
// between: it is for consumers that only want the newest value, such as a
// sender that coalesces commands while a slow write is in flight.
func (e *Exchange[T]) WaitForNewer(ctx context.Context, i int, seen uint64) (uint64, error) {
	e.checkIndex(i)

	e.mu.Lock()
	defer e.mu.Unlock()

	stop := context.AfterFunc(ctx, e.wake)
	defer stop()

	for seen == e.slots[i].count {
		if err := ctx.Err(); err != nil {
			return seen, err
		}
		e.parkLocked()
	}
	return e.slots[i].count, nil
}

func (e *Exchange[T]) waitLocked(ctx context.Context, i int, initial uint64) (uint64, error) {
	stop := context.AfterFunc(ctx, e.wake)
	defer stop()

	for initial == e.slots[i].count {
		if err := ctx.Err(); err != nil {
			return initial, err
		}
		e.parkLocked()
	}

	got := e.slots[i].count
	if got != initial+1 {
		return got, violation(&ConsistencyError{
			Slot:  i,
			Delta: got - initial,
		})
	}
	return got, nil
}

// WaitForAny blocks until any slot is written and returns its index.
// Exactly one slot must have advanced by exactly one; anything else returns a
// *ConsistencyError.
func (e *Exchange[T]) WaitForAny(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	initialTotal := e.total
	initial := make([]uint64, len(e.slots))
	for i := range e.slots {
		initial[i] = e.slots[i].count
	}

	stop := context.AfterFunc(ctx, e.wake)
	defer stop()

	for initialTotal == e.total {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		e.parkLocked()
	}

	if e.total != initialTotal+1 {
		return -1, violation(&ConsistencyError{
			Slot:  -1,
			Delta: e.total - initialTotal,
		})
	}

	modified := -1
	for i := range e.slots {
		delta := e.slots[i].count - initial[i]
		switch {
		case delta == 0:
		case delta == 1 && modified == -1:
			modified = i
		default:
			return -1, violation(&ConsistencyError{
				Slot:  i,
				Delta: delta,
			})
		}
	}
	if modified == -1 {
		return -1, violation(&ConsistencyError{Slot: -1})
	}
	return modified, nil
}

// ---- internal ----

func (e *Exchange[T]) checkIndex(i int) {
	if i < 0 || i >= len(e.slots) {
		panic("exchange: slot index out of range")
	}
}

func (e *Exchange[T]) bumpLocked(i int) {
	e.slots[i].count++
	e.total++
}

func (e *Exchange[T]) parkLocked() {
	e.parked++
	e.cond.Wait()
	e.parked--
}

// wake unparks all waiters so they can observe a cancelled context.
func (e *Exchange[T]) wake() {
	e.mu.Lock()
	e.cond.Broadcast()
	e.mu.Unlock()
}
