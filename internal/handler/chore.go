package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/store"
	"github.com/finchley/pocketmoney/internal/websocket"
	"github.com/finchley/pocketmoney/internal/workflow"
)

type ChoreHandler struct {
	choreStore *store.ChoreStore
	chores     *workflow.ChoreService
	queue      pendingCounter
	hub        *websocket.Hub
	logger     *slog.Logger
}

// pendingCounter reports how many items wait on a parent decision, for the
// queue_changed broadcast after claim mutations.
type pendingCounter interface {
	PendingCount() (int, error)
}

func NewChoreHandler(cs *store.ChoreStore, svc *workflow.ChoreService, queue pendingCounter, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{choreStore: cs, chores: svc, queue: queue, hub: hub, logger: logger}
}

func (h *ChoreHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

func (h *ChoreHandler) broadcastQueue() {
	if h.hub == nil || h.queue == nil {
		return
	}
	pending, err := h.queue.PendingCount()
	if err != nil {
		h.logger.Error("pending count", "error", err)
		return
	}
	h.hub.Broadcast(websocket.QueueEvent(pending))
}

type choreRequest struct {
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	CategoryID          *int64  `json:"category_id"`
	DefaultPoints       int     `json:"default_points"`
	SharedChore         bool    `json:"shared_chore"`
	RecurringFrequency  string  `json:"recurring_frequency"`
	ApplicableDays      []int   `json:"applicable_days"`
	AllowMultiplePerDay bool    `json:"allow_multiple_claims_per_day"`
	AssignedKids        []int64 `json:"assigned_kids"`
}

func (req *choreRequest) validate() (store.ChoreParams, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return store.ChoreParams{}, "title is required"
	}
	if req.DefaultPoints < 0 {
		return store.ChoreParams{}, "default_points must be >= 0"
	}

	freq := model.Frequency(req.RecurringFrequency)
	if freq == "" {
		freq = model.FrequencyNone
	}
	if !freq.Valid() {
		return store.ChoreParams{}, "recurring_frequency must be none, daily, weekly, or custom"
	}
	for _, d := range req.ApplicableDays {
		if d < 0 || d > 6 {
			return store.ChoreParams{}, "applicable_days entries must be 0-6"
		}
	}

	return store.ChoreParams{
		Title:               req.Title,
		Description:         req.Description,
		CategoryID:          req.CategoryID,
		DefaultPoints:       req.DefaultPoints,
		SharedChore:         req.SharedChore,
		RecurringFrequency:  freq,
		ApplicableDays:      req.ApplicableDays,
		AllowMultiplePerDay: req.AllowMultiplePerDay,
		AssignedKids:        req.AssignedKids,
	}, ""
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	params, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	chore, err := h.choreStore.Create(params)
	if err != nil {
		writeError(w, h.logger, "create chore", err)
		return
	}

	h.broadcast(websocket.EntityEvent("chore", "created", chore.ID))
	writeJSON(w, http.StatusCreated, chore)
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.choreStore.List()
	if err != nil {
		writeError(w, h.logger, "list chores", err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	chore, err := h.choreStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "get chore", err)
		return
	}
	if chore == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return
	}
	writeJSON(w, http.StatusOK, chore)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	params, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	existing, err := h.choreStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "update chore lookup", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return
	}

	chore, err := h.choreStore.Update(id, params)
	if err != nil {
		writeError(w, h.logger, "update chore", err)
		return
	}

	h.broadcast(websocket.EntityEvent("chore", "updated", id))
	writeJSON(w, http.StatusOK, chore)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.choreStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "delete chore lookup", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return
	}

	if err := h.choreStore.Delete(id); err != nil {
		writeError(w, h.logger, "delete chore", err)
		return
	}

	h.broadcast(websocket.EntityEvent("chore", "deleted", id))
	h.broadcastQueue()
	w.WriteHeader(http.StatusNoContent)
}

// Claim opens a claim for a kid on the chore.
func (h *ChoreHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		KidID int64 `json:"kid_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.KidID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kid_id is required"})
		return
	}

	claim, err := h.chores.Claim(id, req.KidID)
	if err != nil {
		writeError(w, h.logger, "claim chore", err)
		return
	}

	h.broadcast(websocket.EntityEvent("claim", "created", claim.ID))
	h.broadcastQueue()
	writeJSON(w, http.StatusCreated, claim)
}

type decisionRequest struct {
	DecidedBy     string `json:"decided_by"`
	PointsAwarded *int   `json:"points_awarded"`
}

// ApproveClaim approves a claim and awards its points.
func (h *ChoreHandler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.DecidedBy) == "" {
		req.DecidedBy = "parent"
	}

	claim, balance, err := h.chores.Approve(id, req.DecidedBy, req.PointsAwarded)
	if err != nil {
		writeError(w, h.logger, "approve claim", err)
		return
	}

	h.broadcast(websocket.EntityEvent("claim", "approved", id))
	h.broadcast(websocket.BalanceEvent(claim.KidID, balance))
	h.broadcastQueue()
	writeJSON(w, http.StatusOK, map[string]any{"claim": claim, "points": balance})
}

// DisapproveClaim closes a claim without points.
func (h *ChoreHandler) DisapproveClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.DecidedBy) == "" {
		req.DecidedBy = "parent"
	}

	claim, err := h.chores.Disapprove(id, req.DecidedBy)
	if err != nil {
		writeError(w, h.logger, "disapprove claim", err)
		return
	}

	h.broadcast(websocket.EntityEvent("claim", "disapproved", id))
	h.broadcastQueue()
	writeJSON(w, http.StatusOK, claim)
}
