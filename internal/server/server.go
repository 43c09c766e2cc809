// Package server wires the stores, workflows, and handlers into one HTTP
// router.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/finchley/pocketmoney/internal/allowance"
	"github.com/finchley/pocketmoney/internal/approvals"
	"github.com/finchley/pocketmoney/internal/config"
	"github.com/finchley/pocketmoney/internal/handler"
	"github.com/finchley/pocketmoney/internal/history"
	"github.com/finchley/pocketmoney/internal/ledger"
	"github.com/finchley/pocketmoney/internal/middleware"
	"github.com/finchley/pocketmoney/internal/store"
	"github.com/finchley/pocketmoney/internal/streak"
	ws "github.com/finchley/pocketmoney/internal/websocket"
	"github.com/finchley/pocketmoney/internal/workflow"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	kidH          *handler.KidHandler
	categoryH     *handler.CategoryHandler
	choreH        *handler.ChoreHandler
	rewardH       *handler.RewardHandler
	allowanceH    *handler.AllowanceHandler
	approvalsH    *handler.ApprovalsHandler
	historyH      *handler.HistoryHandler
	parentH       *handler.ParentHandler
	settingsStore *store.SettingsStore
	rateLimiter   *middleware.RateLimiter
	pinRateLimit  int
	pinRateWindow time.Duration
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	kidStore := store.NewKidStore(db)
	categoryStore := store.NewCategoryStore(db)
	choreStore := store.NewChoreStore(db)
	rewardStore := store.NewRewardStore(db)
	allowanceStore := store.NewAllowanceStore(db)
	settingsStore := store.NewSettingsStore(db)

	pointsLedger := ledger.New(db)
	streaks := streak.NewTracker(choreStore, kidStore)
	choreSvc := workflow.NewChoreService(choreStore, kidStore, pointsLedger, streaks, logger.With("component", "workflow"))
	rewardSvc := workflow.NewRewardService(rewardStore, kidStore, pointsLedger)
	converter := allowance.NewConverter(allowanceStore, kidStore, pointsLedger)
	queue := approvals.NewQueue(db)
	analytics := history.NewAnalytics(db)

	return &Server{
		db:            db,
		hub:           hub,
		kidH:          handler.NewKidHandler(kidStore, pointsLedger, analytics, hub, logger.With("component", "kid")),
		categoryH:     handler.NewCategoryHandler(categoryStore, hub, logger.With("component", "category")),
		choreH:        handler.NewChoreHandler(choreStore, choreSvc, queue, hub, logger.With("component", "chore")),
		rewardH:       handler.NewRewardHandler(rewardStore, rewardSvc, queue, hub, logger.With("component", "reward")),
		allowanceH:    handler.NewAllowanceHandler(converter, hub, logger.With("component", "allowance")),
		approvalsH:    handler.NewApprovalsHandler(queue, logger.With("component", "approvals")),
		historyH:      handler.NewHistoryHandler(analytics, kidStore, logger.With("component", "history")),
		parentH:       handler.NewParentHandler(settingsStore, logger.With("component", "parent")),
		settingsStore: settingsStore,
		rateLimiter:   middleware.NewRateLimiter(),
		pinRateLimit:  cfg.PINRateLimit,
		pinRateWindow: time.Duration(cfg.PINRateWindow) * time.Second,
		logger:        logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.Handler(s.hub, s.logger.With("component", "websocket")))

	// Kids
	mux.HandleFunc("GET /api/kids", s.kidH.List)
	mux.HandleFunc("POST /api/kids", s.kidH.Create)
	mux.HandleFunc("GET /api/kids/{id}", s.kidH.Get)
	mux.HandleFunc("PUT /api/kids/{id}", s.kidH.Update)
	mux.HandleFunc("DELETE /api/kids/{id}", s.pinGated(s.kidH.Delete))
	mux.HandleFunc("POST /api/kids/{id}/multiplier", s.pinGated(s.kidH.SetMultiplier))
	mux.HandleFunc("POST /api/kids/{id}/adjust-points", s.pinGated(s.kidH.AdjustPoints))
	mux.HandleFunc("GET /api/kids/{id}/points", s.kidH.Points)
	mux.HandleFunc("GET /api/kids/{id}/badges", s.kidH.Badges)
	mux.HandleFunc("GET /api/leaderboard", s.kidH.Leaderboard)

	// Categories
	mux.HandleFunc("GET /api/categories", s.categoryH.List)
	mux.HandleFunc("POST /api/categories", s.categoryH.Create)
	mux.HandleFunc("PUT /api/categories/{id}", s.categoryH.Update)
	mux.HandleFunc("DELETE /api/categories/{id}", s.categoryH.Delete)

	// Chores and claims
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/claim", s.choreH.Claim)
	mux.HandleFunc("POST /api/claims/{id}/approve", s.pinGated(s.choreH.ApproveClaim))
	mux.HandleFunc("POST /api/claims/{id}/disapprove", s.pinGated(s.choreH.DisapproveClaim))

	// Rewards and redemptions
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards/{id}", s.rewardH.Get)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)
	mux.HandleFunc("POST /api/redemptions/{id}/approve", s.pinGated(s.rewardH.ApproveRedemption))
	mux.HandleFunc("POST /api/redemptions/{id}/reject", s.pinGated(s.rewardH.RejectRedemption))

	// Allowance and payouts
	mux.HandleFunc("GET /api/kids/{id}/allowance", s.allowanceH.GetSettings)
	mux.HandleFunc("PUT /api/kids/{id}/allowance", s.pinGated(s.allowanceH.UpdateSettings))
	mux.HandleFunc("POST /api/kids/{id}/payouts", s.allowanceH.RequestPayout)
	mux.HandleFunc("GET /api/kids/{id}/payouts", s.allowanceH.ListPayouts)
	mux.HandleFunc("GET /api/kids/{id}/allowance/summary", s.allowanceH.Summary)
	mux.HandleFunc("POST /api/payouts/{id}/pay", s.pinGated(s.allowanceH.Pay))
	mux.HandleFunc("POST /api/payouts/{id}/cancel", s.pinGated(s.allowanceH.Cancel))
	mux.HandleFunc("GET /api/payouts/pending", s.allowanceH.ListPending)

	// Approval queue
	mux.HandleFunc("GET /api/approvals/pending", s.approvalsH.Pending)
	mux.HandleFunc("GET /api/approvals/count", s.approvalsH.Count)
	mux.HandleFunc("GET /api/approvals/history", s.approvalsH.History)

	// History and analytics
	mux.HandleFunc("GET /api/kids/{id}/history", s.historyH.History)
	mux.HandleFunc("GET /api/kids/{id}/stats", s.historyH.Stats)
	mux.HandleFunc("GET /api/kids/{id}/history/export", s.historyH.ExportCSV)

	// Parent PIN
	mux.HandleFunc("POST /api/parent/pin", s.pinGated(s.parentH.SetPIN))
	mux.HandleFunc("POST /api/parent/pin/verify", s.rateLimited(s.parentH.VerifyPIN))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// pinGated wraps parent-only routes behind the stored PIN.
func (s *Server) pinGated(h http.HandlerFunc) http.HandlerFunc {
	gate := middleware.RequireParentPIN(s.settingsStore)
	return func(w http.ResponseWriter, r *http.Request) {
		gate(h).ServeHTTP(w, r)
	}
}

// rateLimited throttles PIN verification per client IP.
func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, s.pinRateLimit, s.pinRateWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
