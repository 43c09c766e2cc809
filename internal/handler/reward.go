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

type RewardHandler struct {
	rewardStore *store.RewardStore
	rewards     *workflow.RewardService
	queue       pendingCounter
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, svc *workflow.RewardService, queue pendingCounter, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewardStore: rs, rewards: svc, queue: queue, hub: hub, logger: logger}
}

func (h *RewardHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

func (h *RewardHandler) broadcastQueue() {
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

type rewardRequest struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Cost             int     `json:"cost"`
	RequiresApproval bool    `json:"requires_approval"`
	Active           *bool   `json:"active"`
	EligibleKids     []int64 `json:"eligible_kids"`
}

func (req *rewardRequest) validate() (store.RewardParams, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return store.RewardParams{}, "title is required"
	}
	if req.Cost < 0 {
		return store.RewardParams{}, "cost must be >= 0"
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return store.RewardParams{
		Title:            req.Title,
		Description:      req.Description,
		Cost:             req.Cost,
		RequiresApproval: req.RequiresApproval,
		Active:           active,
		EligibleKids:     req.EligibleKids,
	}, ""
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	params, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	reward, err := h.rewardStore.Create(params)
	if err != nil {
		writeError(w, h.logger, "create reward", err)
		return
	}

	h.broadcast(websocket.EntityEvent("reward", "created", reward.ID))
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardStore.List()
	if err != nil {
		writeError(w, h.logger, "list rewards", err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	reward, err := h.rewardStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "get reward", err)
		return
	}
	if reward == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	params, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	existing, err := h.rewardStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "update reward lookup", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	reward, err := h.rewardStore.Update(id, params)
	if err != nil {
		writeError(w, h.logger, "update reward", err)
		return
	}

	h.broadcast(websocket.EntityEvent("reward", "updated", id))
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.rewardStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "delete reward lookup", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	if err := h.rewardStore.Delete(id); err != nil {
		writeError(w, h.logger, "delete reward", err)
		return
	}

	h.broadcast(websocket.EntityEvent("reward", "deleted", id))
	h.broadcastQueue()
	w.WriteHeader(http.StatusNoContent)
}

// Redeem spends points on a reward. Rewards that require approval produce a
// pending redemption; the rest deduct immediately.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
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

	redemption, err := h.rewards.Redeem(id, req.KidID)
	if err != nil {
		writeError(w, h.logger, "redeem reward", err)
		return
	}

	h.broadcast(websocket.EntityEvent("redemption", "created", redemption.ID))
	h.broadcastQueue()
	writeJSON(w, http.StatusCreated, redemption)
}

func (h *RewardHandler) ApproveRedemption(w http.ResponseWriter, r *http.Request) {
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

	redemption, err := h.rewards.Approve(id, req.DecidedBy)
	if err != nil {
		writeError(w, h.logger, "approve redemption", err)
		return
	}

	h.broadcast(websocket.EntityEvent("redemption", "approved", id))
	h.broadcastQueue()
	writeJSON(w, http.StatusOK, redemption)
}

func (h *RewardHandler) RejectRedemption(w http.ResponseWriter, r *http.Request) {
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

	redemption, err := h.rewards.Reject(id, req.DecidedBy)
	if err != nil {
		writeError(w, h.logger, "reject redemption", err)
		return
	}

	h.broadcast(websocket.EntityEvent("redemption", "rejected", id))
	h.broadcastQueue()
	writeJSON(w, http.StatusOK, redemption)
}
