package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/finchley/pocketmoney/internal/database"
	"github.com/finchley/pocketmoney/internal/store"
)

func setupPINTest(t *testing.T) (*store.SettingsStore, http.Handler) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	settings := store.NewSettingsStore(db)
	handler := RequireParentPIN(settings)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)
	return settings, handler
}

func TestParentPINOpenUntilSet(t *testing.T) {
	_, handler := setupPINTest(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/payouts/1/pay", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status with no pin configured = %d, want 200", rec.Code)
	}
}

func TestParentPINRequired(t *testing.T) {
	settings, handler := setupPINTest(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	if err := settings.Set(store.SettingParentPINHash, string(hash)); err != nil {
		t.Fatalf("store pin hash: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/payouts/1/pay", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without header = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payouts/1/pay", nil)
	req.Header.Set(PINHeader, "9999")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with wrong pin = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/payouts/1/pay", nil)
	req.Header.Set(PINHeader, "1234")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with correct pin = %d, want 200", rec.Code)
	}
}
