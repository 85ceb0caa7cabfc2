// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package inventory consumes OrderPlaced events and emits exactly one
// reservation outcome per distinct order, surviving at-least-once
// redelivery through a processed-order set.
package inventory

import (
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

// DedupSet tracks which orders already produced an outcome. Seen before
// deciding, Mark before publishing, Unmark if the publish fails so a
// redelivery can retry.
type DedupSet interface {
	Seen(orderID string) (bool, error)
	Mark(orderID string) error
	Unmark(orderID string) error
	Close() error
}

// MemorySet is an in-process DedupSet. It resets on restart, at which
// point JetStream's duplicate window on the outcome stream catches the
// re-emits for recently processed orders.
type MemorySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemorySet returns an empty in-memory set.
func NewMemorySet() *MemorySet {
	return &MemorySet{seen: make(map[string]struct{})}
}

func (s *MemorySet) Seen(orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[orderID]
	return ok, nil
}

func (s *MemorySet) Mark(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[orderID] = struct{}{}
	return nil
}

func (s *MemorySet) Unmark(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, orderID)
	return nil
}

func (s *MemorySet) Close() error { return nil }

// BadgerSet is a DedupSet persisted in Badger, so a restarted processor
// does not re-emit outcomes for orders handled before the crash.
type BadgerSet struct {
	db *badger.DB
}

// NewBadgerSet opens (or creates) the set at path.
func NewBadgerSet(path string) (*BadgerSet, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dedup store %s: %w", path, err)
	}
	return &BadgerSet{db: db}, nil
}

func (s *BadgerSet) Seen(orderID string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(orderID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup lookup %s: %w", orderID, err)
	}
	return true, nil
}

func (s *BadgerSet) Mark(orderID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(orderID), nil)
	})
	if err != nil {
		return fmt.Errorf("dedup mark %s: %w", orderID, err)
	}
	return nil
}

func (s *BadgerSet) Unmark(orderID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(orderID))
	})
	if err != nil {
		return fmt.Errorf("dedup unmark %s: %w", orderID, err)
	}
	return nil
}

func (s *BadgerSet) Close() error {
	return s.db.Close()
}
