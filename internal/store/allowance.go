package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/finchley/pocketmoney/internal/model"
)

type AllowanceStore struct {
	db *sql.DB
}

func NewAllowanceStore(db *sql.DB) *AllowanceStore {
	return &AllowanceStore{db: db}
}

// --- Settings methods ---

const (
	DefaultPointsPerDollar = 100
	DefaultMinimumPayout   = 100
)

// GetSettings returns the kid's allowance settings, falling back to defaults
// when the kid has never been configured.
func (s *AllowanceStore) GetSettings(kidID int64) (*model.AllowanceSettings, error) {
	row := s.db.QueryRow(
		`SELECT kid_id, points_per_dollar, minimum_payout, auto_payout, payout_day, updated_at
		 FROM allowance_settings WHERE kid_id = ?`,
		kidID,
	)

	var as model.AllowanceSettings
	var autoPayout int
	err := row.Scan(&as.KidID, &as.PointsPerDollar, &as.MinimumPayout, &autoPayout, &as.PayoutDay, &as.UpdatedAt)
	if err == sql.ErrNoRows {
		return &model.AllowanceSettings{
			KidID:           kidID,
			PointsPerDollar: DefaultPointsPerDollar,
			MinimumPayout:   DefaultMinimumPayout,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get allowance settings: %w", err)
	}
	as.AutoPayout = autoPayout != 0
	return &as, nil
}

func (s *AllowanceStore) UpsertSettings(kidID int64, pointsPerDollar, minimumPayout int, autoPayout bool, payoutDay int) (*model.AllowanceSettings, error) {
	_, err := s.db.Exec(
		`INSERT INTO allowance_settings (kid_id, points_per_dollar, minimum_payout, auto_payout, payout_day, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(kid_id) DO UPDATE SET
			points_per_dollar = excluded.points_per_dollar,
			minimum_payout = excluded.minimum_payout,
			auto_payout = excluded.auto_payout,
			payout_day = excluded.payout_day,
			updated_at = CURRENT_TIMESTAMP`,
		kidID, pointsPerDollar, minimumPayout, boolToInt(autoPayout), payoutDay,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert allowance settings: %w", err)
	}
	return s.GetSettings(kidID)
}

// --- Payout methods ---

func scanPayout(scanner interface{ Scan(...any) error }) (*model.Payout, error) {
	var p model.Payout
	var paidBy sql.NullString
	var paidAt sql.NullTime

	err := scanner.Scan(
		&p.ID, &p.KidID, &p.PointsConverted, &p.DollarCents, &p.PayoutMethod,
		&p.Status, &p.Notes, &p.RequestedAt, &paidBy, &paidAt,
	)
	if err != nil {
		return nil, err
	}

	if paidBy.Valid {
		p.PaidBy = &paidBy.String
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return &p, nil
}

const payoutCols = `id, kid_id, points_converted, dollar_cents, payout_method, status, notes, requested_at, paid_by, paid_at`

func (s *AllowanceStore) CreatePayout(kidID int64, points int, dollarCents int64, method, notes string, requestedAt time.Time) (*model.Payout, error) {
	result, err := s.db.Exec(
		`INSERT INTO payouts (kid_id, points_converted, dollar_cents, payout_method, notes, requested_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		kidID, points, dollarCents, method, notes, requestedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert payout: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetPayoutByID(id)
}

func (s *AllowanceStore) GetPayoutByID(id int64) (*model.Payout, error) {
	row := s.db.QueryRow(`SELECT `+payoutCols+` FROM payouts WHERE id = ?`, id)
	p, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payout: %w", err)
	}
	return p, nil
}

// MarkPaid settles a pending payout. Guarded on status so only one caller
// can settle it; returns false when the payout was not pending.
func (s *AllowanceStore) MarkPaid(id int64, paidBy, notes string, paidAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE payouts SET status = 'paid', paid_by = ?, paid_at = ?,
			notes = CASE WHEN ? != '' THEN ? ELSE notes END
		 WHERE id = ? AND status = 'pending'`,
		paidBy, paidAt.UTC(), notes, notes, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark payout paid: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeletePayout removes a payout row outright. Only used to roll back a
// request whose debit failed; settled payouts are never deleted.
func (s *AllowanceStore) DeletePayout(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM payouts WHERE id = ? AND status = 'pending'`, id); err != nil {
		return fmt.Errorf("delete payout: %w", err)
	}
	return nil
}

// MarkCancelled cancels a pending payout, guarded like MarkPaid.
func (s *AllowanceStore) MarkCancelled(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE payouts SET status = 'cancelled' WHERE id = ? AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark payout cancelled: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ListPayoutsByKid returns the kid's payouts, newest first. An empty status
// means all statuses.
func (s *AllowanceStore) ListPayoutsByKid(kidID int64, status model.PayoutStatus) ([]model.Payout, error) {
	query := `SELECT ` + payoutCols + ` FROM payouts WHERE kid_id = ?`
	args := []any{kidID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []model.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// ListPending returns pending payouts across all kids, oldest first.
func (s *AllowanceStore) ListPending() ([]model.Payout, error) {
	rows, err := s.db.Query(`SELECT ` + payoutCols + ` FROM payouts WHERE status = 'pending' ORDER BY requested_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending payouts: %w", err)
	}
	defer rows.Close()

	var payouts []model.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// PayoutTotals aggregates count and dollar value for one status of one kid.
func (s *AllowanceStore) PayoutTotals(kidID int64, status model.PayoutStatus) (count int, totalCents int64, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(dollar_cents), 0) FROM payouts WHERE kid_id = ? AND status = ?`,
		kidID, string(status),
	).Scan(&count, &totalCents)
	if err != nil {
		return 0, 0, fmt.Errorf("payout totals: %w", err)
	}
	return count, totalCents, nil
}
