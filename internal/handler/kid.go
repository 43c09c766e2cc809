package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finchley/pocketmoney/internal/history"
	"github.com/finchley/pocketmoney/internal/ledger"
	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/store"
	"github.com/finchley/pocketmoney/internal/websocket"
)

type KidHandler struct {
	kidStore  *store.KidStore
	ledger    *ledger.Ledger
	analytics *history.Analytics
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewKidHandler(ks *store.KidStore, l *ledger.Ledger, a *history.Analytics, hub *websocket.Hub, logger *slog.Logger) *KidHandler {
	return &KidHandler{kidStore: ks, ledger: l, analytics: a, hub: hub, logger: logger}
}

func (h *KidHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type kidRequest struct {
	Name        string `json:"name"`
	AvatarColor string `json:"avatar_color"`
	AvatarEmoji string `json:"avatar_emoji"`
}

func (h *KidHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req kidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	kid, err := h.kidStore.Create(req.Name, req.AvatarColor, req.AvatarEmoji)
	if err != nil {
		writeError(w, h.logger, "create kid", err)
		return
	}

	h.broadcast(websocket.EntityEvent("kid", "created", kid.ID))
	writeJSON(w, http.StatusCreated, kid)
}

func (h *KidHandler) List(w http.ResponseWriter, r *http.Request) {
	kids, err := h.kidStore.List()
	if err != nil {
		writeError(w, h.logger, "list kids", err)
		return
	}
	if kids == nil {
		kids = []model.Kid{}
	}
	writeJSON(w, http.StatusOK, kids)
}

func (h *KidHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	kid, err := h.kidStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "get kid", err)
		return
	}
	if kid == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
		return
	}
	writeJSON(w, http.StatusOK, kid)
}

func (h *KidHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req kidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	existing, err := h.kidStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "update kid lookup", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
		return
	}

	kid, err := h.kidStore.Update(id, req.Name, req.AvatarColor, req.AvatarEmoji)
	if err != nil {
		writeError(w, h.logger, "update kid", err)
		return
	}

	h.broadcast(websocket.EntityEvent("kid", "updated", id))
	writeJSON(w, http.StatusOK, kid)
}

func (h *KidHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.kidStore.Delete(id); err != nil {
		if err == sql.ErrNoRows {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
			return
		}
		writeError(w, h.logger, "delete kid", err)
		return
	}

	h.broadcast(websocket.EntityEvent("kid", "deleted", id))
	w.WriteHeader(http.StatusNoContent)
}

// SetMultiplier is the only route that can change a kid's point multiplier.
func (h *KidHandler) SetMultiplier(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Multiplier float64 `json:"multiplier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Multiplier <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multiplier must be positive"})
		return
	}

	existing, err := h.kidStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "set multiplier lookup", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
		return
	}

	kid, err := h.kidStore.SetMultiplier(id, req.Multiplier)
	if err != nil {
		writeError(w, h.logger, "set multiplier", err)
		return
	}

	h.broadcast(websocket.EntityEvent("kid", "updated", id))
	writeJSON(w, http.StatusOK, kid)
}

// AdjustPoints applies a parent-initiated ledger adjustment.
func (h *KidHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Delta  int    `json:"delta"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta must be nonzero"})
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "adjustment"
	}

	balance, err := h.ledger.Adjust(id, req.Delta, "adjustment: "+reason)
	if err != nil {
		writeError(w, h.logger, "adjust points", err)
		return
	}

	h.broadcast(websocket.BalanceEvent(id, balance))
	writeJSON(w, http.StatusOK, map[string]any{"kid_id": id, "points": balance})
}

// Points returns the kid's balance with its derived completion counters.
func (h *KidHandler) Points(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	kid, err := h.kidStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "get points", err)
		return
	}
	if kid == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
		return
	}

	counters, err := h.analytics.Counters(id, kid.CompletedTotal)
	if err != nil {
		writeError(w, h.logger, "get counters", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kid_id":   id,
		"points":   kid.Points,
		"streak":   kid.ChoreStreak,
		"counters": counters,
	})
}

func (h *KidHandler) Badges(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	badges, err := h.kidStore.ListBadges(id)
	if err != nil {
		writeError(w, h.logger, "list badges", err)
		return
	}
	if badges == nil {
		badges = []model.Badge{}
	}
	writeJSON(w, http.StatusOK, badges)
}

func (h *KidHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.kidStore.Leaderboard()
	if err != nil {
		writeError(w, h.logger, "leaderboard", err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
