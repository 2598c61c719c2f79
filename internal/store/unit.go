package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoUnit is returned by CommitUnit and RollbackUnit without BeginUnit.
var ErrNoUnit = errors.New("no open unit")

// ErrUnitOpen is returned by BeginUnit while another unit is open.
var ErrUnitOpen = errors.New("unit already open")

// BeginUnit opens the all-or-nothing transaction wrapping one batch. Record
// reads and writes use it until CommitUnit or RollbackUnit. Audit events and
// range reviews are written outside the unit.
func (s *Store) BeginUnit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return ErrUnitOpen
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit: %w", err)
	}
	s.tx = tx
	return nil
}

// CommitUnit commits the open unit.
func (s *Store) CommitUnit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return ErrNoUnit
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit unit: %w", err)
	}
	return nil
}

// RollbackUnit discards the open unit.
func (s *Store) RollbackUnit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return ErrNoUnit
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("rollback unit: %w", err)
	}
	return nil
}

// InUnit reports whether a unit is open.
func (s *Store) InUnit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}
