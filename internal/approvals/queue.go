// Package approvals is a read-only aggregator over items waiting on a parent
// decision: open chore claims and pending reward redemptions. It never
// mutates state.
package approvals

import (
	"database/sql"
	"fmt"
	"time"
)

type Queue struct {
	db *sql.DB
}

func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// PendingItem is one thing a parent still has to decide.
type PendingItem struct {
	Kind        string    `json:"kind"` // "chore_claim" or "reward_redemption"
	ID          int64     `json:"id"`
	KidID       int64     `json:"kid_id"`
	KidName     string    `json:"kid_name"`
	Title       string    `json:"title"`
	Points      int       `json:"points"`
	RequestedAt time.Time `json:"requested_at"`
}

// DecidedItem is one resolved claim or redemption, for the recent-activity
// feed.
type DecidedItem struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	KidID     int64     `json:"kid_id"`
	KidName   string    `json:"kid_name"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Points    int       `json:"points"`
	DecidedAt time.Time `json:"decided_at"`
	DecidedBy string    `json:"decided_by"`
}

// PendingApprovals returns open claims and pending redemptions across all
// kids, oldest first. Claim points show the chore's current default (the
// award is only fixed at approval).
func (q *Queue) PendingApprovals() ([]PendingItem, error) {
	rows, err := q.db.Query(`
		SELECT 'chore_claim', cc.id, cc.kid_id, k.name, cc.chore_title,
			COALESCE(c.default_points, 0), cc.claimed_at
		FROM chore_claims cc
		JOIN kids k ON k.id = cc.kid_id
		LEFT JOIN chores c ON c.id = cc.chore_id
		WHERE cc.status = 'claimed'
		UNION ALL
		SELECT 'reward_redemption', rr.id, rr.kid_id, k.name, rr.reward_title,
			rr.cost, rr.requested_at
		FROM reward_redemptions rr
		JOIN kids k ON k.id = rr.kid_id
		WHERE rr.status = 'pending'
		ORDER BY 7 ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	defer rows.Close()

	var items []PendingItem
	for rows.Next() {
		var it PendingItem
		if err := rows.Scan(&it.Kind, &it.ID, &it.KidID, &it.KidName, &it.Title, &it.Points, &it.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan pending item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// PendingCount returns how many items wait on a parent decision.
func (q *Queue) PendingCount() (int, error) {
	var n int
	err := q.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM chore_claims WHERE status = 'claimed')
			+ (SELECT COUNT(*) FROM reward_redemptions WHERE status = 'pending')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending approvals: %w", err)
	}
	return n, nil
}

// History returns the most recently decided claims and redemptions, newest
// first, capped at limit.
func (q *Queue) History(limit int) ([]DecidedItem, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.db.Query(`
		SELECT 'chore_claim', cc.id, cc.kid_id, k.name, cc.chore_title, cc.status,
			COALESCE(cc.points_awarded, 0), cc.decided_at, COALESCE(cc.decided_by, '')
		FROM chore_claims cc
		JOIN kids k ON k.id = cc.kid_id
		WHERE cc.status != 'claimed'
		UNION ALL
		SELECT 'reward_redemption', rr.id, rr.kid_id, k.name, rr.reward_title, rr.status,
			rr.cost, rr.decided_at, COALESCE(rr.decided_by, '')
		FROM reward_redemptions rr
		JOIN kids k ON k.id = rr.kid_id
		WHERE rr.status != 'pending'
		ORDER BY 8 DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list approval history: %w", err)
	}
	defer rows.Close()

	var items []DecidedItem
	for rows.Next() {
		var it DecidedItem
		if err := rows.Scan(&it.Kind, &it.ID, &it.KidID, &it.KidName, &it.Title, &it.Status, &it.Points, &it.DecidedAt, &it.DecidedBy); err != nil {
			return nil, fmt.Errorf("scan decided item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
