package model

import "time"

type Reward struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Cost             int       `json:"cost"`
	RequiresApproval bool      `json:"requires_approval"`
	Active           bool      `json:"active"`
	// EligibleKids empty means any kid may redeem.
	EligibleKids []int64   `json:"eligible_kids"`
	CreatedAt    time.Time `json:"created_at"`
}

// RedemptionStatus is the lifecycle state of a reward redemption.
// pending -> approved | rejected; both decisions are terminal. Redemptions
// of rewards that skip approval are created directly in the approved state.
type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionRejected RedemptionStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s RedemptionStatus) Terminal() bool {
	return s == RedemptionApproved || s == RedemptionRejected
}

type RewardRedemption struct {
	ID          int64            `json:"id"`
	RewardID    *int64           `json:"reward_id"`
	RewardTitle string           `json:"reward_title"`
	Cost        int              `json:"cost"`
	KidID       int64            `json:"kid_id"`
	Status      RedemptionStatus `json:"status"`
	RequestedAt time.Time        `json:"requested_at"`
	DecidedAt   *time.Time       `json:"decided_at"`
	DecidedBy   *string          `json:"decided_by"`
}
