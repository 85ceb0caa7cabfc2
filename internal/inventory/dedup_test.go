// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package inventory

import "testing"

func TestMemorySet(t *testing.T) {
	s := NewMemorySet()

	seen, err := s.Seen("o-1")
	if err != nil {
		t.Fatalf("Seen() error = %v", err)
	}
	if seen {
		t.Error("Seen(o-1) = true on empty set")
	}

	if err := s.Mark("o-1"); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if seen, _ := s.Seen("o-1"); !seen {
		t.Error("Seen(o-1) = false after Mark")
	}
	if seen, _ := s.Seen("o-2"); seen {
		t.Error("Seen(o-2) = true, marks must not bleed across orders")
	}

	if err := s.Unmark("o-1"); err != nil {
		t.Fatalf("Unmark() error = %v", err)
	}
	if seen, _ := s.Seen("o-1"); seen {
		t.Error("Seen(o-1) = true after Unmark")
	}
}

func TestBadgerSet(t *testing.T) {
	path := t.TempDir()

	s, err := NewBadgerSet(path)
	if err != nil {
		t.Fatalf("NewBadgerSet() error = %v", err)
	}

	if seen, err := s.Seen("o-1"); err != nil || seen {
		t.Errorf("Seen(o-1) = (%v, %v), want (false, nil)", seen, err)
	}
	if err := s.Mark("o-1"); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if seen, _ := s.Seen("o-1"); !seen {
		t.Error("Seen(o-1) = false after Mark")
	}
	if err := s.Unmark("o-1"); err != nil {
		t.Fatalf("Unmark() error = %v", err)
	}
	if seen, _ := s.Seen("o-1"); seen {
		t.Error("Seen(o-1) = true after Unmark")
	}

	// Marks survive a close and reopen.
	if err := s.Mark("o-2"); err != nil {
		t.Fatalf("Mark(o-2) error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewBadgerSet(path)
	if err != nil {
		t.Fatalf("NewBadgerSet() reopen error = %v", err)
	}
	defer reopened.Close()

	if seen, _ := reopened.Seen("o-2"); !seen {
		t.Error("Seen(o-2) = false after reopen, want true")
	}
}
