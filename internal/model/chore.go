package model

import "time"

// Frequency is how often a chore comes back around.
type Frequency string

const (
	FrequencyNone   Frequency = "none"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

// Valid reports whether f is one of the recognized frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return true
	}
	return false
}

type Chore struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	CategoryID         *int64    `json:"category_id"`
	DefaultPoints      int       `json:"default_points"`
	SharedChore        bool      `json:"shared_chore"`
	RecurringFrequency Frequency `json:"recurring_frequency"`
	// ApplicableDays holds weekday numbers (0 = Sunday) for custom
	// recurrence. Empty means any day.
	ApplicableDays      []int     `json:"applicable_days"`
	AllowMultiplePerDay bool      `json:"allow_multiple_claims_per_day"`
	AssignedKids        []int64   `json:"assigned_kids"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ClaimStatus is the lifecycle state of a single chore claim.
// claimed -> approved | disapproved; both decisions are terminal.
type ClaimStatus string

const (
	ClaimClaimed     ClaimStatus = "claimed"
	ClaimApproved    ClaimStatus = "approved"
	ClaimDisapproved ClaimStatus = "disapproved"
)

// Terminal reports whether no further transition is allowed from s.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimApproved || s == ClaimDisapproved
}

type ChoreClaim struct {
	ID            int64       `json:"id"`
	ChoreID       *int64      `json:"chore_id"`
	ChoreTitle    string      `json:"chore_title"`
	CategoryID    *int64      `json:"category_id"`
	KidID         int64       `json:"kid_id"`
	Status        ClaimStatus `json:"status"`
	PointsAwarded *int        `json:"points_awarded"`
	ClaimedAt     time.Time   `json:"claimed_at"`
	DecidedAt     *time.Time  `json:"decided_at"`
	DecidedBy     *string     `json:"decided_by"`
}
