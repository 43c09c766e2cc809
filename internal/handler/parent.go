package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/finchley/pocketmoney/internal/store"
)

// ParentHandler manages the parent PIN that gates approval and payout routes.
type ParentHandler struct {
	settings *store.SettingsStore
	logger   *slog.Logger
}

func NewParentHandler(ss *store.SettingsStore, logger *slog.Logger) *ParentHandler {
	return &ParentHandler{settings: ss, logger: logger}
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SetPIN sets or changes the parent PIN. Once a PIN exists the current PIN
// must accompany the change.
func (h *ParentHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN        string `json:"pin"`
		CurrentPIN string `json:"current_pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if len(req.PIN) < 4 || len(req.PIN) > 8 || !isDigits(req.PIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pin must be 4-8 digits"})
		return
	}

	existing, err := h.settings.Get(store.SettingParentPINHash)
	if err != nil {
		writeError(w, h.logger, "get pin hash", err)
		return
	}
	if existing != "" {
		if bcrypt.CompareHashAndPassword([]byte(existing), []byte(req.CurrentPIN)) != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "current pin is incorrect"})
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, "hash pin", err)
		return
	}
	if err := h.settings.Set(store.SettingParentPINHash, string(hash)); err != nil {
		writeError(w, h.logger, "store pin hash", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// VerifyPIN checks a PIN without granting anything; clients use it to unlock
// the parent view. The route is rate limited.
func (h *ParentHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	hash, err := h.settings.Get(store.SettingParentPINHash)
	if err != nil {
		writeError(w, h.logger, "get pin hash", err)
		return
	}
	if hash == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"valid": true, "pin_set": false})
		return
	}

	valid := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)) == nil
	status := http.StatusOK
	if !valid {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, map[string]bool{"valid": valid, "pin_set": true})
}
