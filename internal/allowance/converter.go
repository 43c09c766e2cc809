// Package allowance converts points into real money through a parent-mediated
// payout flow. Points are deducted when a payout is requested, reserving the
// funds; paying settles the request and cancelling refunds it.
package allowance

import (
	"fmt"
	"time"

	"github.com/finchley/pocketmoney/internal/core"
	"github.com/finchley/pocketmoney/internal/ledger"
	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/store"
)

type Converter struct {
	store  *store.AllowanceStore
	kids   *store.KidStore
	ledger *ledger.Ledger

	now func() time.Time
}

func NewConverter(s *store.AllowanceStore, kids *store.KidStore, l *ledger.Ledger) *Converter {
	return &Converter{
		store:  s,
		kids:   kids,
		ledger: l,
		now:    time.Now,
	}
}

// SetClock overrides the converter clock. Tests only.
func (c *Converter) SetClock(now func() time.Time) {
	c.now = now
}

// SettingsView is the settings payload enriched with the kid's balance and
// its dollar equivalent at the current conversion rate.
type SettingsView struct {
	model.AllowanceSettings
	KidPoints        int    `json:"kid_points"`
	DollarEquivalent string `json:"dollar_equivalent"`
}

// Summary aggregates a kid's allowance position.
type Summary struct {
	KidID          int64  `json:"kid_id"`
	Balance        int    `json:"balance"`
	PendingCount   int    `json:"pending_count"`
	PendingDollars string `json:"pending_dollars"`
	PaidCount      int    `json:"paid_count"`
	PaidDollars    string `json:"paid_dollars"`
}

// centsFor converts points to cents at the given rate with standard
// two-decimal currency rounding (half away from zero).
func centsFor(points, pointsPerDollar int) int64 {
	return (int64(points)*100 + int64(pointsPerDollar)/2) / int64(pointsPerDollar)
}

func (c *Converter) GetSettings(kidID int64) (*SettingsView, error) {
	kid, err := c.kids.GetByID(kidID)
	if err != nil {
		return nil, err
	}
	if kid == nil {
		return nil, fmt.Errorf("kid %d: %w", kidID, core.ErrNotFound)
	}

	settings, err := c.store.GetSettings(kidID)
	if err != nil {
		return nil, err
	}

	return &SettingsView{
		AllowanceSettings: *settings,
		KidPoints:         kid.Points,
		DollarEquivalent:  model.FormatCents(centsFor(kid.Points, settings.PointsPerDollar)),
	}, nil
}

func (c *Converter) UpdateSettings(kidID int64, pointsPerDollar, minimumPayout int, autoPayout bool, payoutDay int) (*model.AllowanceSettings, error) {
	kid, err := c.kids.GetByID(kidID)
	if err != nil {
		return nil, err
	}
	if kid == nil {
		return nil, fmt.Errorf("kid %d: %w", kidID, core.ErrNotFound)
	}

	if pointsPerDollar <= 0 {
		return nil, fmt.Errorf("points_per_dollar must be > 0: %w", core.ErrValidation)
	}
	if minimumPayout < 0 {
		return nil, fmt.Errorf("minimum_payout must be >= 0: %w", core.ErrValidation)
	}
	if payoutDay < 0 || payoutDay > 6 {
		return nil, fmt.Errorf("payout_day must be a weekday number 0-6: %w", core.ErrValidation)
	}

	return c.store.UpsertSettings(kidID, pointsPerDollar, minimumPayout, autoPayout, payoutDay)
}

// RequestPayout reserves points for a payout. The deduction happens here, at
// request time, not when the payout is eventually paid.
func (c *Converter) RequestPayout(kidID int64, points int, method, notes string) (*model.Payout, error) {
	kid, err := c.kids.GetByID(kidID)
	if err != nil {
		return nil, err
	}
	if kid == nil {
		return nil, fmt.Errorf("kid %d: %w", kidID, core.ErrNotFound)
	}

	if points <= 0 {
		return nil, fmt.Errorf("points_to_convert must be > 0: %w", core.ErrValidation)
	}
	if method == "" {
		method = "cash"
	}

	settings, err := c.store.GetSettings(kidID)
	if err != nil {
		return nil, err
	}

	if points < settings.MinimumPayout {
		return nil, fmt.Errorf("minimum payout is %d points: %w", settings.MinimumPayout, core.ErrBelowMinimum)
	}

	payout, err := c.store.CreatePayout(kidID, points, centsFor(points, settings.PointsPerDollar), method, notes, c.now())
	if err != nil {
		return nil, err
	}
	// Sufficiency is decided by the debit itself, under the kid's ledger
	// lock. A snapshot check here could pass for two concurrent requests.
	if _, err := c.ledger.Debit(kidID, points, fmt.Sprintf("payout:%d", payout.ID)); err != nil {
		if derr := c.store.DeletePayout(payout.ID); derr != nil {
			return nil, fmt.Errorf("roll back payout %d: %v: %w", payout.ID, derr, err)
		}
		return nil, err
	}
	return payout, nil
}

// Pay settles a pending payout. Points were already deducted at request
// time, so this only flips state and records who paid.
func (c *Converter) Pay(payoutID int64, paidBy, notes string) (*model.Payout, error) {
	payout, err := c.store.GetPayoutByID(payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, fmt.Errorf("payout %d: %w", payoutID, core.ErrNotFound)
	}

	ok, err := c.store.MarkPaid(payoutID, paidBy, notes, c.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("payout %d is %s: %w", payoutID, payout.Status, core.ErrInvalidState)
	}
	return c.store.GetPayoutByID(payoutID)
}

// Cancel voids a pending payout and refunds the reserved points. A paid
// payout cannot be cancelled.
func (c *Converter) Cancel(payoutID int64) (*model.Payout, error) {
	payout, err := c.store.GetPayoutByID(payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, fmt.Errorf("payout %d: %w", payoutID, core.ErrNotFound)
	}

	ok, err := c.store.MarkCancelled(payoutID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("payout %d is %s: %w", payoutID, payout.Status, core.ErrInvalidState)
	}

	if _, err := c.ledger.Adjust(payout.KidID, payout.PointsConverted, fmt.Sprintf("payout_refund:%d", payoutID)); err != nil {
		return nil, err
	}
	return c.store.GetPayoutByID(payoutID)
}

func (c *Converter) ListPayouts(kidID int64, status model.PayoutStatus) ([]model.Payout, error) {
	switch status {
	case "", model.PayoutPending, model.PayoutPaid, model.PayoutCancelled:
	default:
		return nil, fmt.Errorf("unknown payout status %q: %w", status, core.ErrValidation)
	}
	return c.store.ListPayoutsByKid(kidID, status)
}

func (c *Converter) ListPending() ([]model.Payout, error) {
	return c.store.ListPending()
}

func (c *Converter) Summary(kidID int64) (*Summary, error) {
	kid, err := c.kids.GetByID(kidID)
	if err != nil {
		return nil, err
	}
	if kid == nil {
		return nil, fmt.Errorf("kid %d: %w", kidID, core.ErrNotFound)
	}

	pendingCount, pendingCents, err := c.store.PayoutTotals(kidID, model.PayoutPending)
	if err != nil {
		return nil, err
	}
	paidCount, paidCents, err := c.store.PayoutTotals(kidID, model.PayoutPaid)
	if err != nil {
		return nil, err
	}

	return &Summary{
		KidID:          kidID,
		Balance:        kid.Points,
		PendingCount:   pendingCount,
		PendingDollars: model.FormatCents(pendingCents),
		PaidCount:      paidCount,
		PaidDollars:    model.FormatCents(paidCents),
	}, nil
}
