// internal/repository/memory/tx.go
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"wallet-ledger/internal/repository"
	"wallet-ledger/pkg/db"
)

var errRawQuery = errors.New("memory: raw SQL is not supported")

// Tx is the in-memory counterpart of *sqlx.Tx. Writes made through it are
// buffered and become visible to readers only on Commit. Ids and unique
// codes are claimed at write time and given back on Rollback.
type Tx struct {
	mu     sync.Mutex
	store  *Store
	writes []pendingWrite
	undo   []func()
	done   bool
}

// pendingWrite is one buffered write. check runs again at commit time,
// against the committed state, before any write is applied.
type pendingWrite struct {
	check func() error
	apply func()
}

var (
	_ db.TxController       = (*Tx)(nil)
	_ repository.DBExecutor = (*Tx)(nil)
)

// BeginTx matches db.BeginTxFunc. The beginner argument is ignored.
func BeginTx(_ context.Context, _ db.DBTxBeginner) (db.TxController, error) {
	return &Tx{}, nil
}

// Commit applies every buffered write atomically. If a conditional write no
// longer holds, nothing is applied and the transaction is rolled back.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true

	if s := t.store; s != nil {
		s.mu.Lock()
		for _, w := range t.writes {
			if w.check == nil {
				continue
			}
			if err := w.check(); err != nil {
				s.mu.Unlock()
				t.release()
				return fmt.Errorf("memory: commit: %w", err)
			}
		}
		for _, w := range t.writes {
			w.apply()
		}
		s.mu.Unlock()
	}
	t.writes, t.undo = nil, nil
	return nil
}

func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.release()
	return nil
}

// release drops buffered writes and gives back claimed ids and codes.
// Callers hold t.mu but not the store lock.
func (t *Tx) release() {
	undo := t.undo
	t.writes, t.undo = nil, nil
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

func (t *Tx) buffer(s *Store, w pendingWrite, undo func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		if undo != nil {
			undo()
		}
		return sql.ErrTxDone
	}
	if t.store == nil {
		t.store = s
	}
	if t.store != s {
		if undo != nil {
			undo()
		}
		return errors.New("memory: transaction spans two stores")
	}
	t.writes = append(t.writes, w)
	if undo != nil {
		t.undo = append(t.undo, undo)
	}
	return nil
}

func (t *Tx) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return errRawQuery
}

func (t *Tx) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errRawQuery
}

func (t *Tx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errRawQuery
}

// QueryRowContext always returns nil; memory repositories never issue SQL.
func (t *Tx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}
