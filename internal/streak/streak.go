// Package streak derives consecutive-day completion streaks from approved
// chore claims.
package streak

import (
	"fmt"
	"time"

	"github.com/finchley/pocketmoney/internal/store"
)

// Milestones are the informational streak thresholds consumed by badges and
// presentation layers. They are not load-bearing for streak arithmetic.
var Milestones = []int{3, 7, 14, 30, 100}

type Tracker struct {
	chores *store.ChoreStore
	kids   *store.KidStore
}

func NewTracker(chores *store.ChoreStore, kids *store.KidStore) *Tracker {
	return &Tracker{chores: chores, kids: kids}
}

// OnApproval updates the kid's streak after a chore approval has been
// recorded at the given time. Only the first approval of a calendar day moves
// the streak: it increments when the kid also had an approval the previous
// day, otherwise resets to 1. Later approvals on the same day change nothing.
// Returns the kid's current streak.
func (t *Tracker) OnApproval(kidID int64, approvedAt time.Time) (int, error) {
	dayStart := startOfDay(approvedAt)
	dayEnd := dayStart.Add(24 * time.Hour)

	// The approval that triggered this call is already recorded, so a count
	// of one means it was the first of the day.
	todayCount, err := t.chores.ApprovedCountBetween(kidID, dayStart, dayEnd)
	if err != nil {
		return 0, fmt.Errorf("count today: %w", err)
	}

	kid, err := t.kids.GetByID(kidID)
	if err != nil {
		return 0, err
	}
	if kid == nil {
		return 0, nil
	}
	if todayCount != 1 {
		return kid.ChoreStreak, nil
	}

	yesterdayCount, err := t.chores.ApprovedCountBetween(kidID, dayStart.Add(-24*time.Hour), dayStart)
	if err != nil {
		return 0, fmt.Errorf("count yesterday: %w", err)
	}

	streak := 1
	if yesterdayCount > 0 {
		streak = kid.ChoreStreak + 1
	}
	if err := t.kids.SetStreak(kidID, streak); err != nil {
		return 0, err
	}
	return streak, nil
}

// MilestoneReached reports whether streak sits exactly on a milestone.
func MilestoneReached(streak int) bool {
	for _, m := range Milestones {
		if streak == m {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
