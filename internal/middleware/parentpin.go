package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/finchley/pocketmoney/internal/store"
)

// PINHeader carries the parent PIN on gated requests.
const PINHeader = "X-Parent-PIN"

// RequireParentPIN gates parent-only routes behind the stored PIN. Until a
// PIN has been set the gate is open, so a fresh install can be configured
// from the device itself.
func RequireParentPIN(settings *store.SettingsStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hash, err := settings.Get(store.SettingParentPINHash)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			if hash == "" {
				next.ServeHTTP(w, r)
				return
			}

			pin := r.Header.Get(PINHeader)
			if pin == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) != nil {
				http.Error(w, "Parent PIN required", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
