package events

import (
	"testing"
	"time"

	"github.com/GriffinCanCode/trapcam/internal/capture"
)

func TestStoreAdd(t *testing.T) {
	s := NewStore(30, 10)
	e := s.Add(Event{Type: Motion, ChangedPixels: 301})

	if e.ID == "" || e.Time.IsZero() {
		t.Errorf("Add() did not stamp the event: %+v", e)
	}
	entries := s.Recent(0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Type != Motion || entries[0].ChangedPixels != 301 {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestStoreKeepsID(t *testing.T) {
	s := NewStore(5, 1)
	res := &capture.Result{ID: "cap-1", Basename: "20181003-214502"}
	e := s.Add(Event{ID: res.ID, Type: Capture, Capture: res})
	if e.ID != "cap-1" {
		t.Errorf("ID = %q, want cap-1", e.ID)
	}
}

func TestStoreMaxSize(t *testing.T) {
	s := NewStore(5, 10)
	for i := range 10 {
		s.Add(Event{Type: Motion, ChangedPixels: i})
	}

	entries := s.Recent(0)
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	if entries[0].ChangedPixels != 5 || entries[4].ChangedPixels != 9 {
		t.Errorf("kept %d..%d, want newest 5..9", entries[0].ChangedPixels, entries[4].ChangedPixels)
	}
}

func TestRecent(t *testing.T) {
	s := NewStore(30, 10)
	for i := range 4 {
		s.Add(Event{Type: Motion, ChangedPixels: i})
	}

	tests := []struct {
		n, want, first int
	}{
		{0, 4, 0},
		{-1, 4, 0},
		{2, 2, 2},
		{10, 4, 0},
	}
	for _, tt := range tests {
		got := s.Recent(tt.n)
		if len(got) != tt.want || got[0].ChangedPixels != tt.first {
			t.Errorf("Recent(%d) = %d events starting at %d, want %d starting at %d",
				tt.n, len(got), got[0].ChangedPixels, tt.want, tt.first)
		}
	}
}

func TestSince(t *testing.T) {
	s := NewStore(30, 10)
	s.Add(Event{Type: Motion, Time: time.Now().Add(-5 * time.Minute)})
	s.Add(Event{Type: Capture})

	recent := s.Since(time.Minute)
	if len(recent) != 1 || recent[0].Type != Capture {
		t.Errorf("Since(1m) = %+v, want only the capture", recent)
	}
}

func TestLast(t *testing.T) {
	s := NewStore(30, 10)
	if _, ok := s.Last(Motion); ok {
		t.Error("Last() on empty store should report false")
	}
	s.Add(Event{Type: Motion, ChangedPixels: 1})
	s.Add(Event{Type: Capture})
	s.Add(Event{Type: Motion, ChangedPixels: 2})

	e, ok := s.Last(Motion)
	if !ok || e.ChangedPixels != 2 {
		t.Errorf("Last(Motion) = %+v, %v", e, ok)
	}
}

func TestSubscribe(t *testing.T) {
	s := NewStore(30, 1)
	ch, cancel := s.Subscribe()

	s.Add(Event{Type: Motion, ChangedPixels: 400})

	select {
	case e := <-ch:
		if e.Type != Motion || e.ChangedPixels != 400 {
			t.Errorf("received %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	// buffer of one: the second Add is dropped rather than blocking
	s.Add(Event{Type: Motion})
	s.Add(Event{Type: Motion})
	if s.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", s.Dropped())
	}

	cancel()
	cancel()
	if s.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after cancel", s.Subscribers())
	}
	<-ch // buffered event
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	s.Add(Event{Type: Motion}) // must not panic on a closed subscriber
}
