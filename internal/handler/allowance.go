package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finchley/pocketmoney/internal/allowance"
	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/websocket"
)

type AllowanceHandler struct {
	converter *allowance.Converter
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewAllowanceHandler(c *allowance.Converter, hub *websocket.Hub, logger *slog.Logger) *AllowanceHandler {
	return &AllowanceHandler{converter: c, hub: hub, logger: logger}
}

func (h *AllowanceHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

func (h *AllowanceHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	view, err := h.converter.GetSettings(id)
	if err != nil {
		writeError(w, h.logger, "get allowance settings", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AllowanceHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		PointsPerDollar int  `json:"points_per_dollar"`
		MinimumPayout   int  `json:"minimum_payout"`
		AutoPayout      bool `json:"auto_payout"`
		PayoutDay       int  `json:"payout_day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	settings, err := h.converter.UpdateSettings(id, req.PointsPerDollar, req.MinimumPayout, req.AutoPayout, req.PayoutDay)
	if err != nil {
		writeError(w, h.logger, "update allowance settings", err)
		return
	}

	h.broadcast(websocket.EntityEvent("allowance_settings", "updated", id))
	writeJSON(w, http.StatusOK, settings)
}

// RequestPayout converts points into a pending payout, deducting the points
// immediately.
func (h *AllowanceHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Points int    `json:"points"`
		Method string `json:"method"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	payout, err := h.converter.RequestPayout(id, req.Points, req.Method, req.Notes)
	if err != nil {
		writeError(w, h.logger, "request payout", err)
		return
	}

	h.broadcast(websocket.EntityEvent("payout", "created", payout.ID))
	writeJSON(w, http.StatusCreated, payout)
}

func (h *AllowanceHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	status := model.PayoutStatus(r.URL.Query().Get("status"))
	payouts, err := h.converter.ListPayouts(id, status)
	if err != nil {
		writeError(w, h.logger, "list payouts", err)
		return
	}
	if payouts == nil {
		payouts = []model.Payout{}
	}
	writeJSON(w, http.StatusOK, payouts)
}

// Pay settles a pending payout. The points moved when the payout was
// requested, so this only flips state.
func (h *AllowanceHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		PaidBy string `json:"paid_by"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.PaidBy) == "" {
		req.PaidBy = "parent"
	}

	payout, err := h.converter.Pay(id, req.PaidBy, req.Notes)
	if err != nil {
		writeError(w, h.logger, "pay payout", err)
		return
	}

	h.broadcast(websocket.EntityEvent("payout", "paid", id))
	writeJSON(w, http.StatusOK, payout)
}

// Cancel voids a pending payout and refunds its points.
func (h *AllowanceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	payout, err := h.converter.Cancel(id)
	if err != nil {
		writeError(w, h.logger, "cancel payout", err)
		return
	}

	h.broadcast(websocket.EntityEvent("payout", "cancelled", id))
	writeJSON(w, http.StatusOK, payout)
}

func (h *AllowanceHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	payouts, err := h.converter.ListPending()
	if err != nil {
		writeError(w, h.logger, "list pending payouts", err)
		return
	}
	if payouts == nil {
		payouts = []model.Payout{}
	}
	writeJSON(w, http.StatusOK, payouts)
}

func (h *AllowanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	summary, err := h.converter.Summary(id)
	if err != nil {
		writeError(w, h.logger, "allowance summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
