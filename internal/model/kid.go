package model

import "time"

type Kid struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	AvatarColor      string    `json:"avatar_color"`
	AvatarEmoji      string    `json:"avatar_emoji"`
	Points           int       `json:"points"`
	PointsMultiplier float64   `json:"points_multiplier"`
	ChoreStreak      int       `json:"overall_chore_streak"`
	CompletedTotal   int       `json:"completed_chores_total"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// KidCounters carries the derived completion windows alongside the stored
// total. Today/weekly/monthly are computed from approved claims so they never
// need a midnight rollover job.
type KidCounters struct {
	Today   int `json:"completed_chores_today"`
	Weekly  int `json:"completed_chores_weekly"`
	Monthly int `json:"completed_chores_monthly"`
	Total   int `json:"completed_chores_total"`
}

type Badge struct {
	Badge     string    `json:"badge"`
	AwardedAt time.Time `json:"awarded_at"`
}

// LeaderboardEntry summarizes a kid's lifetime point flow.
type LeaderboardEntry struct {
	KidID       int64  `json:"kid_id"`
	KidName     string `json:"kid_name"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}

// LedgerEntry is one audited balance mutation. Applied can differ from Delta
// when a debit was clamped at the zero floor.
type LedgerEntry struct {
	ID           int64     `json:"id"`
	KidID        int64     `json:"kid_id"`
	Delta        int       `json:"delta"`
	Applied      int       `json:"applied"`
	BalanceAfter int       `json:"balance_after"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}
