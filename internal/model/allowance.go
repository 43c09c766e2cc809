package model

import (
	"fmt"
	"time"
)

// AllowanceSettings is the per-kid conversion configuration.
type AllowanceSettings struct {
	KidID           int64     `json:"kid_id"`
	PointsPerDollar int       `json:"points_per_dollar"`
	MinimumPayout   int       `json:"minimum_payout"`
	AutoPayout      bool      `json:"auto_payout"`
	// PayoutDay is a weekday number (0 = Sunday), used only when
	// AutoPayout is set.
	PayoutDay int       `json:"payout_day"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PayoutStatus is the lifecycle state of a payout.
// pending -> paid | cancelled; both are terminal. Points are deducted when
// the payout is requested, so cancellation refunds and payment does not
// touch the ledger again.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutPaid      PayoutStatus = "paid"
	PayoutCancelled PayoutStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s PayoutStatus) Terminal() bool {
	return s == PayoutPaid || s == PayoutCancelled
}

type Payout struct {
	ID              int64        `json:"id"`
	KidID           int64        `json:"kid_id"`
	PointsConverted int          `json:"points_converted"`
	DollarCents     int64        `json:"dollar_cents"`
	PayoutMethod    string       `json:"payout_method"`
	Status          PayoutStatus `json:"status"`
	Notes           string       `json:"notes"`
	RequestedAt     time.Time    `json:"requested_at"`
	PaidBy          *string      `json:"paid_by"`
	PaidAt          *time.Time   `json:"paid_at"`
}

// DollarAmount renders the payout value with two-decimal currency rounding.
func (p Payout) DollarAmount() string {
	return FormatCents(p.DollarCents)
}

// FormatCents renders a cent amount as a decimal dollar string, e.g. 250 -> "2.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
