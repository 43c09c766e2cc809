package workflow

import (
	"fmt"
	"slices"
	"time"

	"github.com/finchley/pocketmoney/internal/core"
	"github.com/finchley/pocketmoney/internal/ledger"
	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/store"
)

// RewardService runs the redemption lifecycle. Rewards that need no approval
// deduct points at redeem time and produce an already-approved redemption;
// the rest sit pending, with points held until a parent decides.
type RewardService struct {
	rewards *store.RewardStore
	kids    *store.KidStore
	ledger  *ledger.Ledger

	now func() time.Time
}

func NewRewardService(rewards *store.RewardStore, kids *store.KidStore, l *ledger.Ledger) *RewardService {
	return &RewardService{
		rewards: rewards,
		kids:    kids,
		ledger:  l,
		now:     time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *RewardService) SetClock(now func() time.Time) {
	s.now = now
}

// Redeem requests a reward for a kid.
func (s *RewardService) Redeem(rewardID, kidID int64) (*model.RewardRedemption, error) {
	reward, err := s.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, fmt.Errorf("reward %d: %w", rewardID, core.ErrNotFound)
	}
	if !reward.Active {
		return nil, fmt.Errorf("reward %d is inactive: %w", rewardID, core.ErrInvalidState)
	}

	kid, err := s.kids.GetByID(kidID)
	if err != nil {
		return nil, err
	}
	if kid == nil {
		return nil, fmt.Errorf("kid %d: %w", kidID, core.ErrNotFound)
	}

	if len(reward.EligibleKids) > 0 && !slices.Contains(reward.EligibleKids, kidID) {
		return nil, fmt.Errorf("kid %d, reward %d: %w", kidID, rewardID, core.ErrNotEligible)
	}
	if kid.Points < reward.Cost {
		return nil, fmt.Errorf("need %d points, have %d: %w", reward.Cost, kid.Points, core.ErrInsufficientPoints)
	}

	now := s.now()
	if reward.RequiresApproval {
		// Points stay untouched until a parent approves.
		return s.rewards.CreateRedemption(reward, kidID, model.RedemptionPending, now, "")
	}

	redemption, err := s.rewards.CreateRedemption(reward, kidID, model.RedemptionApproved, now, "auto")
	if err != nil {
		return nil, err
	}
	// The debit re-checks sufficiency under the kid's ledger lock; the
	// snapshot check above is only a fast path.
	if _, err := s.ledger.Debit(kidID, reward.Cost, fmt.Sprintf("reward_redemption:%d", redemption.ID)); err != nil {
		if derr := s.rewards.DeleteRedemption(redemption.ID); derr != nil {
			return nil, fmt.Errorf("roll back redemption %d: %v: %w", redemption.ID, derr, err)
		}
		return nil, err
	}
	return redemption, nil
}

// Approve settles a pending redemption, re-checking sufficiency because the
// balance may have dropped since the request.
func (s *RewardService) Approve(redemptionID int64, decidedBy string) (*model.RewardRedemption, error) {
	redemption, err := s.rewards.GetRedemptionByID(redemptionID)
	if err != nil {
		return nil, err
	}
	if redemption == nil {
		return nil, fmt.Errorf("redemption %d: %w", redemptionID, core.ErrNotFound)
	}
	if redemption.Status != model.RedemptionPending {
		return nil, fmt.Errorf("redemption %d is %s: %w", redemptionID, redemption.Status, core.ErrInvalidState)
	}

	// Debit before the state flip: the ledger re-checks sufficiency under
	// the kid lock, and a failed debit leaves the redemption pending. When
	// a concurrent approver won the state flip instead, the debit is
	// reversed below.
	if _, err := s.ledger.Debit(redemption.KidID, redemption.Cost, fmt.Sprintf("reward_redemption:%d", redemptionID)); err != nil {
		return nil, err
	}

	ok, err := s.rewards.DecideRedemption(redemptionID, model.RedemptionApproved, decidedBy, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, aerr := s.ledger.Adjust(redemption.KidID, redemption.Cost, fmt.Sprintf("reward_redemption:%d reversal", redemptionID)); aerr != nil {
			return nil, fmt.Errorf("reverse debit for redemption %d: %v: %w", redemptionID, aerr, core.ErrInvalidState)
		}
		return nil, fmt.Errorf("redemption %d already decided: %w", redemptionID, core.ErrInvalidState)
	}
	return s.rewards.GetRedemptionByID(redemptionID)
}

// Reject closes a pending redemption with no ledger effect.
func (s *RewardService) Reject(redemptionID int64, decidedBy string) (*model.RewardRedemption, error) {
	redemption, err := s.rewards.GetRedemptionByID(redemptionID)
	if err != nil {
		return nil, err
	}
	if redemption == nil {
		return nil, fmt.Errorf("redemption %d: %w", redemptionID, core.ErrNotFound)
	}
	if redemption.Status != model.RedemptionPending {
		return nil, fmt.Errorf("redemption %d is %s: %w", redemptionID, redemption.Status, core.ErrInvalidState)
	}

	ok, err := s.rewards.DecideRedemption(redemptionID, model.RedemptionRejected, decidedBy, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("redemption %d already decided: %w", redemptionID, core.ErrInvalidState)
	}
	return s.rewards.GetRedemptionByID(redemptionID)
}
