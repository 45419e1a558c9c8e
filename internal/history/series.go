// internal/history/series.go
package history

import (
	"math"
	"sync"
)

// History is the read capability the control layer consumes.
// An empty history has Len() == 0; callers must not read Newest() as data then.
type History interface {
	Len() int
	Newest() float64
	NewestIndex() int64
}

// Series is a bounded, append-only, time-indexed series.
// One producer appends; any number of readers may read concurrently.
// The first appended element gets time index 0 and every append adds one.
type Series struct {
	mu   sync.RWMutex
	buf  []float64
	next int64 // time index of the next append
}

const DefaultCapacity = 1000

// NewSeries creates a series retaining the newest capacity elements.
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Series{buf: make([]float64, capacity)}
}

var _ History = (*Series)(nil)

// Append stores v and returns its time index.
func (s *Series) Append(v float64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.next
	s.buf[idx%int64(len(s.buf))] = v
	s.next++
	return idx
}

// Len returns the number of retained elements.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lenLocked()
}

// Newest returns the newest element, or NaN when empty.
func (s *Series) Newest() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.next == 0 {
		return math.NaN()
	}
	return s.buf[(s.next-1)%int64(len(s.buf))]
}

// NewestIndex returns the time index of the newest element, or -1 when empty.
func (s *Series) NewestIndex() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next - 1
}

// OldestIndex returns the time index of the oldest retained element, or -1 when empty.
func (s *Series) OldestIndex() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.next == 0 {
		return -1
	}
	return s.next - int64(s.lenLocked())
}

// At returns the element with the given time index if it is still retained.
func (s *Series) At(index int64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= s.next || index < s.next-int64(s.lenLocked()) {
		return 0, false
	}
	return s.buf[index%int64(len(s.buf))], true
}

func (s *Series) lenLocked() int {
	if s.next < int64(len(s.buf)) {
		return int(s.next)
	}
	return len(s.buf)
}
