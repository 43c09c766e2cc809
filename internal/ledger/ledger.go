// Package ledger is the only place a kid's point balance is mutated. Every
// adjustment is serialized per kid, clamped at a zero floor, and recorded as
// an audit entry, so the balance invariant lives in exactly one primitive.
package ledger

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/finchley/pocketmoney/internal/core"
	"github.com/finchley/pocketmoney/internal/model"
)

type Ledger struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(db *sql.DB) *Ledger {
	return &Ledger{
		db:    db,
		locks: make(map[int64]*sync.Mutex),
	}
}

// kidLock returns the mutex serializing mutations for one kid. Locks for
// different kids are independent, so unrelated kids never contend.
func (l *Ledger) kidLock(kidID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[kidID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[kidID] = lock
	}
	return lock
}

// Adjust atomically applies delta to the kid's balance and returns the new
// balance. A negative delta larger than the balance is absorbed: the balance
// lands on exactly zero rather than the operation failing. Callers must not
// pre-clamp; this is the single place the floor is enforced.
func (l *Ledger) Adjust(kidID int64, delta int, reason string) (int, error) {
	return l.apply(kidID, delta, reason, false)
}

// Debit atomically removes exactly points from the kid's balance. Unlike a
// negative Adjust it never clamps: when the balance cannot cover the full
// amount it fails with ErrInsufficientPoints and writes nothing. The
// sufficiency check runs inside the kid lock and transaction, so a stale
// balance read by the caller cannot slip a short debit through.
func (l *Ledger) Debit(kidID int64, points int, reason string) (int, error) {
	if points <= 0 {
		return 0, fmt.Errorf("debit must be positive, got %d: %w", points, core.ErrValidation)
	}
	return l.apply(kidID, -points, reason, true)
}

func (l *Ledger) apply(kidID int64, delta int, reason string, requireFull bool) (int, error) {
	lock := l.kidLock(kidID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRow(`SELECT points FROM kids WHERE id = ?`, kidID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("kid %d: %w", kidID, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	newBalance := balance + delta
	if newBalance < 0 {
		if requireFull {
			return 0, fmt.Errorf("need %d points, have %d: %w", -delta, balance, core.ErrInsufficientPoints)
		}
		newBalance = 0
	}
	applied := newBalance - balance

	_, err = tx.Exec(
		`UPDATE kids SET points = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newBalance, kidID,
	)
	if err != nil {
		return 0, fmt.Errorf("write balance: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO ledger_entries (kid_id, delta, applied, balance_after, reason) VALUES (?, ?, ?, ?, ?)`,
		kidID, delta, applied, newBalance, reason,
	)
	if err != nil {
		return 0, fmt.Errorf("write ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return newBalance, nil
}

// Balance returns the kid's current spendable balance.
func (l *Ledger) Balance(kidID int64) (int, error) {
	var balance int
	err := l.db.QueryRow(`SELECT points FROM kids WHERE id = ?`, kidID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("kid %d: %w", kidID, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// Entries returns the kid's most recent audit entries, newest first.
func (l *Ledger) Entries(kidID int64, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(
		`SELECT id, kid_id, delta, applied, balance_after, reason, created_at
		 FROM ledger_entries WHERE kid_id = ? ORDER BY id DESC LIMIT ?`,
		kidID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.KidID, &e.Delta, &e.Applied, &e.BalanceAfter, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
