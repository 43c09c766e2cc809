package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/finchley/pocketmoney/internal/history"
	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/store"
)

type HistoryHandler struct {
	analytics *history.Analytics
	kidStore  *store.KidStore
	logger    *slog.Logger
}

func NewHistoryHandler(a *history.Analytics, ks *store.KidStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{analytics: a, kidStore: ks, logger: logger}
}

func (h *HistoryHandler) kid(w http.ResponseWriter, r *http.Request) (*model.Kid, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil, false
	}

	kid, err := h.kidStore.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "history kid lookup", err)
		return nil, false
	}
	if kid == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
		return nil, false
	}
	return kid, true
}

func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.kid(w, r)
	if !ok {
		return
	}

	status := model.ClaimStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.ClaimClaimed, model.ClaimApproved, model.ClaimDisapproved:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be claimed, approved, or disapproved"})
		return
	}

	var categoryID *int64
	if s := r.URL.Query().Get("category_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		categoryID = &id
	}

	page, err := h.analytics.History(kid.ID, queryInt(r, "page", 1), queryInt(r, "per_page", 20), status, categoryID)
	if err != nil {
		writeError(w, h.logger, "kid history", err)
		return
	}
	if page.Items == nil {
		page.Items = []model.ChoreClaim{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.kid(w, r)
	if !ok {
		return
	}

	stats, err := h.analytics.Stats(kid.ID, queryInt(r, "days", 7))
	if err != nil {
		writeError(w, h.logger, "kid stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ExportCSV streams the kid's approved history as a CSV download.
func (h *HistoryHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.kid(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(kid.Name)))

	if err := h.analytics.ExportCSV(w, kid.ID); err != nil {
		// Headers are gone by now; all we can do is log.
		h.logger.Error("export csv", "kid_id", kid.ID, "error", err)
	}
}

// exportFilename builds a safe download name from the kid's name.
func exportFilename(name string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ', c == '-', c == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "kid"
	}
	return slug + "-chore-history.csv"
}
