package engine

import (
	"sync"
	"time"

	. "gungnir/internal/common"
)

// Sequencer hands out order ids together with their arrival timestamps. Ids
// are strictly increasing and timestamps never go backwards in id order, even
// if the wall clock does.
type Sequencer struct {
	mu   sync.Mutex
	next OrderID
	last time.Time
	now  func() time.Time
}

// NewSequencer creates a sequencer whose first id is start+1.
func NewSequencer(start OrderID, now func() time.Time) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{next: start, now: now}
}

// Next returns the next id and its timestamp.
func (s *Sequencer) Next() (OrderID, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	ts := s.now()
	if ts.Before(s.last) {
		ts = s.last
	}
	s.last = ts
	return s.next, ts
}

// Current returns the last issued id.
func (s *Sequencer) Current() OrderID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
