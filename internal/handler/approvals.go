package handler

import (
	"log/slog"
	"net/http"

	"github.com/finchley/pocketmoney/internal/approvals"
)

type ApprovalsHandler struct {
	queue  *approvals.Queue
	logger *slog.Logger
}

func NewApprovalsHandler(q *approvals.Queue, logger *slog.Logger) *ApprovalsHandler {
	return &ApprovalsHandler{queue: q, logger: logger}
}

// Pending returns everything waiting on a parent decision, oldest first.
func (h *ApprovalsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	items, err := h.queue.PendingApprovals()
	if err != nil {
		writeError(w, h.logger, "pending approvals", err)
		return
	}
	if items == nil {
		items = []approvals.PendingItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ApprovalsHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.queue.PendingCount()
	if err != nil {
		writeError(w, h.logger, "pending count", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *ApprovalsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	items, err := h.queue.History(limit)
	if err != nil {
		writeError(w, h.logger, "approval history", err)
		return
	}
	if items == nil {
		items = []approvals.DecidedItem{}
	}
	writeJSON(w, http.StatusOK, items)
}
