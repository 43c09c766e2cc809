// Package workflow implements the claim and redemption state machines that
// sit between the HTTP surface and the points ledger.
package workflow

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/finchley/pocketmoney/internal/core"
	"github.com/finchley/pocketmoney/internal/ledger"
	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/store"
	"github.com/finchley/pocketmoney/internal/streak"
)

// ChoreService runs the claim lifecycle: available -> claimed -> approved or
// disapproved. Approval is the only path that awards points.
type ChoreService struct {
	chores  *store.ChoreStore
	kids    *store.KidStore
	ledger  *ledger.Ledger
	streaks *streak.Tracker
	logger  *slog.Logger

	now func() time.Time
}

func NewChoreService(chores *store.ChoreStore, kids *store.KidStore, l *ledger.Ledger, streaks *streak.Tracker, logger *slog.Logger) *ChoreService {
	return &ChoreService{
		chores:  chores,
		kids:    kids,
		ledger:  l,
		streaks: streaks,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *ChoreService) SetClock(now func() time.Time) {
	s.now = now
}

// Claim opens a claim for kidID against choreID.
func (s *ChoreService) Claim(choreID, kidID int64) (*model.ChoreClaim, error) {
	chore, err := s.chores.GetByID(choreID)
	if err != nil {
		return nil, err
	}
	if chore == nil {
		return nil, fmt.Errorf("chore %d: %w", choreID, core.ErrNotFound)
	}

	kid, err := s.kids.GetByID(kidID)
	if err != nil {
		return nil, err
	}
	if kid == nil {
		return nil, fmt.Errorf("kid %d: %w", kidID, core.ErrNotFound)
	}

	// A shared chore with no explicit assignees is open to every kid.
	assigned := slices.Contains(chore.AssignedKids, kidID)
	if !assigned && !(chore.SharedChore && len(chore.AssignedKids) == 0) {
		return nil, fmt.Errorf("kid %d, chore %d: %w", kidID, choreID, core.ErrNotAssigned)
	}

	now := s.now()
	if !claimableOn(chore, now) {
		return nil, fmt.Errorf("chore %d is not scheduled for %s: %w", choreID, now.Weekday(), core.ErrValidation)
	}

	if !chore.AllowMultiplePerDay {
		dayStart := startOfDay(now)
		blocked, err := s.chores.HasBlockingClaim(choreID, kidID, dayStart, dayStart.Add(24*time.Hour))
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, fmt.Errorf("kid %d, chore %d: %w", kidID, choreID, core.ErrDuplicateClaim)
		}
	}

	return s.chores.CreateClaim(chore, kidID, now)
}

// Approve awards points for a claim. The amount is pointsOverride when the
// approver supplied one, otherwise the chore's default scaled by the kid's
// multiplier, rounded to whole points. Approving a claim twice fails on the
// second call: the status-guarded transition lands first and the loser gets
// ErrInvalidState, so the balance moves exactly once.
func (s *ChoreService) Approve(claimID int64, decidedBy string, pointsOverride *int) (*model.ChoreClaim, int, error) {
	claim, err := s.chores.GetClaimByID(claimID)
	if err != nil {
		return nil, 0, err
	}
	if claim == nil {
		return nil, 0, fmt.Errorf("claim %d: %w", claimID, core.ErrNotFound)
	}
	if claim.Status != model.ClaimClaimed {
		return nil, 0, fmt.Errorf("claim %d is %s: %w", claimID, claim.Status, core.ErrInvalidState)
	}

	kid, err := s.kids.GetByID(claim.KidID)
	if err != nil {
		return nil, 0, err
	}
	if kid == nil {
		return nil, 0, fmt.Errorf("kid %d: %w", claim.KidID, core.ErrNotFound)
	}

	var amount int
	switch {
	case pointsOverride != nil:
		if *pointsOverride < 0 {
			return nil, 0, fmt.Errorf("points_awarded must be >= 0: %w", core.ErrValidation)
		}
		amount = *pointsOverride
	case claim.ChoreID != nil:
		chore, err := s.chores.GetByID(*claim.ChoreID)
		if err != nil {
			return nil, 0, err
		}
		if chore != nil {
			amount = int(math.Round(float64(chore.DefaultPoints) * kid.PointsMultiplier))
		}
	}

	now := s.now()
	ok, err := s.chores.DecideClaim(claimID, model.ClaimApproved, decidedBy, &amount, now)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, fmt.Errorf("claim %d already decided: %w", claimID, core.ErrInvalidState)
	}

	balance, err := s.ledger.Adjust(claim.KidID, amount, fmt.Sprintf("chore_claim:%d", claimID))
	if err != nil {
		// Put the claim back so the approval can be retried; an approved
		// claim with no credited points must not survive.
		if rerr := s.chores.RevertClaimDecision(claimID); rerr != nil {
			return nil, 0, fmt.Errorf("revert claim %d: %v: %w", claimID, rerr, err)
		}
		return nil, 0, err
	}

	// Streaks and badges are informational; a failure here never unwinds an
	// approval that already credited points.
	newStreak, err := s.streaks.OnApproval(claim.KidID, now)
	if err != nil {
		s.logger.Warn("streak update failed", "kid_id", claim.KidID, "claim_id", claimID, "error", err)
	} else if err := s.awardBadges(claim.KidID, kid.CompletedTotal+1, newStreak); err != nil {
		s.logger.Warn("badge award failed", "kid_id", claim.KidID, "claim_id", claimID, "error", err)
	}

	decided, err := s.chores.GetClaimByID(claimID)
	if err != nil {
		return nil, 0, err
	}
	return decided, balance, nil
}

// Disapprove closes a claim without awarding points.
func (s *ChoreService) Disapprove(claimID int64, decidedBy string) (*model.ChoreClaim, error) {
	claim, err := s.chores.GetClaimByID(claimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, fmt.Errorf("claim %d: %w", claimID, core.ErrNotFound)
	}
	if claim.Status != model.ClaimClaimed {
		return nil, fmt.Errorf("claim %d is %s: %w", claimID, claim.Status, core.ErrInvalidState)
	}

	ok, err := s.chores.DecideClaim(claimID, model.ClaimDisapproved, decidedBy, nil, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("claim %d already decided: %w", claimID, core.ErrInvalidState)
	}
	return s.chores.GetClaimByID(claimID)
}

// awardBadges grants milestone badges. Badges are additive and never block
// the approval that earned them.
func (s *ChoreService) awardBadges(kidID int64, completedTotal, currentStreak int) error {
	if completedTotal == 1 {
		if err := s.kids.AwardBadge(kidID, "first_chore"); err != nil {
			return err
		}
	}
	for _, m := range []int{10, 50, 100, 500} {
		if completedTotal == m {
			if err := s.kids.AwardBadge(kidID, fmt.Sprintf("chores_%d", m)); err != nil {
				return err
			}
		}
	}
	if streak.MilestoneReached(currentStreak) {
		if err := s.kids.AwardBadge(kidID, fmt.Sprintf("streak_%d", currentStreak)); err != nil {
			return err
		}
	}
	return nil
}

// claimableOn reports whether the chore can be claimed on the given day.
// Only a custom schedule restricts weekdays; daily and weekly chores are
// claimable any day.
func claimableOn(chore *model.Chore, t time.Time) bool {
	if chore.RecurringFrequency != model.FrequencyCustom || len(chore.ApplicableDays) == 0 {
		return true
	}
	return slices.Contains(chore.ApplicableDays, int(t.Weekday()))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
