package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/store"
	"github.com/finchley/pocketmoney/internal/websocket"
)

type CategoryHandler struct {
	categoryStore *store.CategoryStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewCategoryHandler(cs *store.CategoryStore, hub *websocket.Hub, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categoryStore: cs, hub: hub, logger: logger}
}

func (h *CategoryHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type categoryRequest struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	category, err := h.categoryStore.Create(req.Name, req.SortOrder)
	if err != nil {
		writeError(w, h.logger, "create category", err)
		return
	}

	h.broadcast(websocket.EntityEvent("category", "created", category.ID))
	writeJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryStore.List()
	if err != nil {
		writeError(w, h.logger, "list categories", err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	existing, err := h.categoryStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "update category lookup", err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
		return
	}

	category, err := h.categoryStore.Update(id, req.Name, req.SortOrder)
	if err != nil {
		writeError(w, h.logger, "update category", err)
		return
	}

	h.broadcast(websocket.EntityEvent("category", "updated", id))
	writeJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.categoryStore.Delete(id); err != nil {
		if err == sql.ErrNoRows {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
			return
		}
		writeError(w, h.logger, "delete category", err)
		return
	}

	h.broadcast(websocket.EntityEvent("category", "deleted", id))
	w.WriteHeader(http.StatusNoContent)
}
