// Package events keeps recent motion and capture events and fans them out to live subscribers
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/trapcam/internal/capture"
)

// Type names an event on the live feed.
type Type string

const (
	Motion        Type = "motion"
	Capture       Type = "capture"
	ActionFailed  Type = "action_failed"
	AcquireFailed Type = "acquire_failed"
)

// Event is one entry in the history and one message on the live feed.
type Event struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	Time          time.Time       `json:"time"`
	TraceID       string          `json:"trace_id,omitempty"`
	ChangedPixels int             `json:"changed_pixels,omitempty"`
	Capture       *capture.Result `json:"capture,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Store is a bounded in-memory event history with non-blocking fan-out.
type Store struct {
	mu      sync.RWMutex
	entries []Event
	maxSize int
	subs    map[chan Event]struct{}
	buffer  int
	dropped uint64
}

// NewStore keeps the last maxEntries events; each subscriber channel holds subscriberBuffer.
func NewStore(maxEntries, subscriberBuffer int) *Store {
	return &Store{
		entries: make([]Event, 0, maxEntries),
		maxSize: maxEntries,
		subs:    make(map[chan Event]struct{}),
		buffer:  subscriberBuffer,
	}
}

// Add stamps e with an ID and time if missing, stores it and emits it to every subscriber.
func (s *Store) Add(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
	s.emit(e)
	return e
}

// emit never blocks; slow subscribers lose events. Caller holds mu.
func (s *Store) emit(e Event) {
	for ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.dropped++
		}
	}
}

// Subscribe returns a channel of new events and a function that closes it.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, s.buffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// Recent returns up to n events, oldest first. n <= 0 returns everything held.
func (s *Store) Recent(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && n < len(s.entries) {
		start = len(s.entries) - n
	}
	result := make([]Event, len(s.entries)-start)
	copy(result, s.entries[start:])
	return result
}

// Since returns the events newer than d ago.
func (s *Store) Since(d time.Duration) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-d)
	var result []Event
	for _, e := range s.entries {
		if !e.Time.Before(cutoff) {
			result = append(result, e)
		}
	}
	return result
}

// Last returns the newest event of type t.
func (s *Store) Last(t Type) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Type == t {
			return s.entries[i], true
		}
	}
	return Event{}, false
}

// Dropped counts events not delivered to a full subscriber.
func (s *Store) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
