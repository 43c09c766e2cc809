package ledger

import (
	"errors"
	"sync"
	"testing"

	"github.com/finchley/pocketmoney/internal/core"
	"github.com/finchley/pocketmoney/internal/database"
)

func setupLedgerTest(t *testing.T) (*Ledger, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	result, err := db.Exec(`INSERT INTO kids (name) VALUES ('Maya')`)
	if err != nil {
		t.Fatalf("insert kid: %v", err)
	}
	kidID, _ := result.LastInsertId()
	return New(db), kidID
}

func TestAdjustCreditAndDebit(t *testing.T) {
	l, kid := setupLedgerTest(t)

	balance, err := l.Adjust(kid, 100, "test credit")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance = %d, want 100", balance)
	}

	balance, err = l.Adjust(kid, -40, "test debit")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if balance != 60 {
		t.Errorf("balance = %d, want 60", balance)
	}

	stored, err := l.Balance(kid)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if stored != 60 {
		t.Errorf("stored balance = %d, want 60", stored)
	}
}

func TestAdjustClampsAtZero(t *testing.T) {
	l, kid := setupLedgerTest(t)

	if _, err := l.Adjust(kid, 30, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Debit larger than the balance lands on exactly zero.
	balance, err := l.Adjust(kid, -100, "overdraw")
	if err != nil {
		t.Fatalf("overdraw: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}

	// The audit entry records both the requested and the applied delta.
	entries, err := l.Entries(kid, 10)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	last := entries[0]
	if last.Delta != -100 {
		t.Errorf("delta = %d, want -100", last.Delta)
	}
	if last.Applied != -30 {
		t.Errorf("applied = %d, want -30", last.Applied)
	}
	if last.BalanceAfter != 0 {
		t.Errorf("balance_after = %d, want 0", last.BalanceAfter)
	}
}

func TestAdjustUnknownKid(t *testing.T) {
	l, _ := setupLedgerTest(t)

	_, err := l.Adjust(9999, 10, "nope")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAdjustConcurrentSameKid(t *testing.T) {
	l, kid := setupLedgerTest(t)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := l.Adjust(kid, 5, "concurrent"); err != nil {
				t.Errorf("adjust: %v", err)
			}
		}()
	}
	wg.Wait()

	balance, err := l.Balance(kid)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != n*5 {
		t.Errorf("balance = %d, want %d", balance, n*5)
	}

	entries, err := l.Entries(kid, n+5)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != n {
		t.Errorf("entries = %d, want %d", len(entries), n)
	}
}

func TestDebitExactSuccess(t *testing.T) {
	l, kid := setupLedgerTest(t)

	if _, err := l.Adjust(kid, 100, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	balance, err := l.Debit(kid, 60, "payout")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if balance != 40 {
		t.Errorf("balance = %d, want 40", balance)
	}
}

func TestDebitInsufficientWritesNothing(t *testing.T) {
	l, kid := setupLedgerTest(t)

	if _, err := l.Adjust(kid, 30, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := l.Debit(kid, 100, "payout"); !errors.Is(err, core.ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}

	balance, err := l.Balance(kid)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 30 {
		t.Errorf("balance = %d, want 30 untouched", balance)
	}

	entries, err := l.Entries(kid, 10)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want only the seed entry", len(entries))
	}
}

func TestDebitRejectsNonPositive(t *testing.T) {
	l, kid := setupLedgerTest(t)

	if _, err := l.Debit(kid, 0, "noop"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("debit 0 err = %v, want ErrValidation", err)
	}
	if _, err := l.Debit(kid, -5, "credit in disguise"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("debit -5 err = %v, want ErrValidation", err)
	}
}

// Concurrent debits must decide sufficiency under the kid lock: with 500
// points and twenty requests for 100 each, exactly five may succeed no
// matter how the goroutines interleave.
func TestDebitConcurrentSameKid(t *testing.T) {
	l, kid := setupLedgerTest(t)

	if _, err := l.Adjust(kid, 500, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, short := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Debit(kid, 100, "payout")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, core.ErrInsufficientPoints):
				short++
			default:
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 || short != 15 {
		t.Errorf("succeeded = %d, short = %d, want 5 and 15", succeeded, short)
	}

	balance, err := l.Balance(kid)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}

	entries, err := l.Entries(kid, 50)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 6 {
		t.Errorf("len(entries) = %d, want seed + 5 debits", len(entries))
	}
}
