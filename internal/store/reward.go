package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/finchley/pocketmoney/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

// RewardParams carries the writable reward fields for create and update.
type RewardParams struct {
	Title            string
	Description      string
	Cost             int
	RequiresApproval bool
	Active           bool
	EligibleKids     []int64
}

// --- Reward methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var requiresApproval, active int

	err := scanner.Scan(&r.ID, &r.Title, &r.Description, &r.Cost, &requiresApproval, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.RequiresApproval = requiresApproval != 0
	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, title, description, cost, requires_approval, active, created_at`

func (s *RewardStore) Create(p RewardParams) (*model.Reward, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO rewards (title, description, cost, requires_approval, active) VALUES (?, ?, ?, ?, ?)`,
		p.Title, p.Description, p.Cost, boolToInt(p.RequiresApproval), boolToInt(p.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := replaceEligibility(tx, id, p.EligibleKids); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	if r.EligibleKids, err = s.eligibleKids(id); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns all rewards, active first, then by title.
func (s *RewardStore) List() ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT ` + rewardCols + ` FROM rewards ORDER BY active DESC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range rewards {
		eligible, err := s.eligibleKids(rewards[i].ID)
		if err != nil {
			return nil, err
		}
		rewards[i].EligibleKids = eligible
	}
	return rewards, nil
}

func (s *RewardStore) Update(id int64, p RewardParams) (*model.Reward, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE rewards SET title = ?, description = ?, cost = ?, requires_approval = ?, active = ? WHERE id = ?`,
		p.Title, p.Description, p.Cost, boolToInt(p.RequiresApproval), boolToInt(p.Active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}

	if err := replaceEligibility(tx, id, p.EligibleKids); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a reward, rejecting any still-pending redemptions of it in
// the same transaction.
func (s *RewardStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE reward_redemptions SET status = 'rejected', decided_at = CURRENT_TIMESTAMP, decided_by = 'system'
		 WHERE reward_id = ? AND status = 'pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("reject pending redemptions: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM rewards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return tx.Commit()
}

func (s *RewardStore) eligibleKids(rewardID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT kid_id FROM reward_eligibility WHERE reward_id = ? ORDER BY kid_id ASC`, rewardID)
	if err != nil {
		return nil, fmt.Errorf("list eligibility: %w", err)
	}
	defer rows.Close()

	var kids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan eligibility: %w", err)
		}
		kids = append(kids, id)
	}
	return kids, rows.Err()
}

func replaceEligibility(tx *sql.Tx, rewardID int64, kidIDs []int64) error {
	if _, err := tx.Exec(`DELETE FROM reward_eligibility WHERE reward_id = ?`, rewardID); err != nil {
		return fmt.Errorf("clear eligibility: %w", err)
	}
	for _, kidID := range kidIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO reward_eligibility (reward_id, kid_id) VALUES (?, ?)`,
			rewardID, kidID,
		); err != nil {
			return fmt.Errorf("insert eligibility: %w", err)
		}
	}
	return nil
}

// --- Redemption methods ---

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.RewardRedemption, error) {
	var r model.RewardRedemption
	var rewardID sql.NullInt64
	var decidedAt sql.NullTime
	var decidedBy sql.NullString

	err := scanner.Scan(
		&r.ID, &rewardID, &r.RewardTitle, &r.Cost, &r.KidID, &r.Status,
		&r.RequestedAt, &decidedAt, &decidedBy,
	)
	if err != nil {
		return nil, err
	}

	if rewardID.Valid {
		r.RewardID = &rewardID.Int64
	}
	if decidedAt.Valid {
		r.DecidedAt = &decidedAt.Time
	}
	if decidedBy.Valid {
		r.DecidedBy = &decidedBy.String
	}
	return &r, nil
}

const redemptionCols = `id, reward_id, reward_title, cost, kid_id, status, requested_at, decided_at, decided_by`

// CreateRedemption inserts a redemption event in the given initial status.
// Instant redemptions of no-approval rewards are born approved.
func (s *RewardStore) CreateRedemption(reward *model.Reward, kidID int64, status model.RedemptionStatus, requestedAt time.Time, decidedBy string) (*model.RewardRedemption, error) {
	var dAt sql.NullTime
	var dBy sql.NullString
	if status != model.RedemptionPending {
		dAt = sql.NullTime{Time: requestedAt.UTC(), Valid: true}
		dBy = sql.NullString{String: decidedBy, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO reward_redemptions (reward_id, reward_title, cost, kid_id, status, requested_at, decided_at, decided_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reward.ID, reward.Title, reward.Cost, kidID, string(status), requestedAt.UTC(), dAt, dBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRedemptionByID(id)
}

func (s *RewardStore) GetRedemptionByID(id int64) (*model.RewardRedemption, error) {
	row := s.db.QueryRow(`SELECT `+redemptionCols+` FROM reward_redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

// DeleteRedemption removes a redemption row outright. Only used to roll back
// an instant redemption whose debit failed; decided redemptions stay.
func (s *RewardStore) DeleteRedemption(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM reward_redemptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete redemption: %w", err)
	}
	return nil
}

// DecideRedemption transitions a redemption out of pending, guarded on the
// current status like ChoreStore.DecideClaim.
func (s *RewardStore) DecideRedemption(id int64, to model.RedemptionStatus, decidedBy string, decidedAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reward_redemptions SET status = ?, decided_at = ?, decided_by = ?
		 WHERE id = ? AND status = 'pending'`,
		string(to), decidedAt.UTC(), decidedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("decide redemption: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *RewardStore) ListRedemptionsByKid(kidID int64) ([]model.RewardRedemption, error) {
	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM reward_redemptions WHERE kid_id = ? ORDER BY requested_at DESC`,
		kidID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by kid: %w", err)
	}
	defer rows.Close()

	var redemptions []model.RewardRedemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}
