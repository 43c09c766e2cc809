package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finchley/pocketmoney/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

// ChoreParams carries the writable chore fields for create and update.
type ChoreParams struct {
	Title               string
	Description         string
	CategoryID          *int64
	DefaultPoints       int
	SharedChore         bool
	RecurringFrequency  model.Frequency
	ApplicableDays      []int
	AllowMultiplePerDay bool
	AssignedKids        []int64
}

// --- Chore methods ---

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var categoryID sql.NullInt64
	var shared, allowMultiple int
	var days string

	err := scanner.Scan(
		&c.ID, &c.Title, &c.Description, &categoryID, &c.DefaultPoints,
		&shared, &c.RecurringFrequency, &days, &allowMultiple,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		c.CategoryID = &categoryID.Int64
	}
	c.SharedChore = shared != 0
	c.AllowMultiplePerDay = allowMultiple != 0
	c.ApplicableDays = decodeDays(days)
	return &c, nil
}

const choreCols = `id, title, description, category_id, default_points, shared_chore, recurring_frequency, applicable_days, allow_multiple_claims_per_day, created_at, updated_at`

// encodeDays stores the weekday set as a comma-joined string, e.g. "1,3,5".
func encodeDays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func decodeDays(s string) []int {
	if s == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return days
}

func (s *ChoreStore) Create(p ChoreParams) (*model.Chore, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var categoryID sql.NullInt64
	if p.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *p.CategoryID, Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO chores (title, description, category_id, default_points, shared_chore, recurring_frequency, applicable_days, allow_multiple_claims_per_day)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, categoryID, p.DefaultPoints,
		boolToInt(p.SharedChore), string(p.RecurringFrequency),
		encodeDays(p.ApplicableDays), boolToInt(p.AllowMultiplePerDay),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := replaceAssignments(tx, id, p.AssignedKids); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) GetByID(id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	if c.AssignedKids, err = s.assignedKids(id); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ChoreStore) List() ([]model.Chore, error) {
	rows, err := s.db.Query(`SELECT ` + choreCols + ` FROM chores ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range chores {
		assigned, err := s.assignedKids(chores[i].ID)
		if err != nil {
			return nil, err
		}
		chores[i].AssignedKids = assigned
	}
	return chores, nil
}

func (s *ChoreStore) Update(id int64, p ChoreParams) (*model.Chore, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var categoryID sql.NullInt64
	if p.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *p.CategoryID, Valid: true}
	}

	_, err = tx.Exec(
		`UPDATE chores SET title = ?, description = ?, category_id = ?, default_points = ?, shared_chore = ?, recurring_frequency = ?, applicable_days = ?, allow_multiple_claims_per_day = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		p.Title, p.Description, categoryID, p.DefaultPoints,
		boolToInt(p.SharedChore), string(p.RecurringFrequency),
		encodeDays(p.ApplicableDays), boolToInt(p.AllowMultiplePerDay), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}

	if err := replaceAssignments(tx, id, p.AssignedKids); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a chore. Open claims against it are disapproved in the same
// transaction so nothing is left waiting on a chore that no longer exists;
// decided claims keep their snapshotted title for history.
func (s *ChoreStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE chore_claims SET status = 'disapproved', decided_at = CURRENT_TIMESTAMP, decided_by = 'system'
		 WHERE chore_id = ? AND status = 'claimed'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("cancel open claims: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM chores WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return tx.Commit()
}

func (s *ChoreStore) assignedKids(choreID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT kid_id FROM chore_assignments WHERE chore_id = ? ORDER BY kid_id ASC`, choreID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var kids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		kids = append(kids, id)
	}
	return kids, rows.Err()
}

func replaceAssignments(tx *sql.Tx, choreID int64, kidIDs []int64) error {
	if _, err := tx.Exec(`DELETE FROM chore_assignments WHERE chore_id = ?`, choreID); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, kidID := range kidIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO chore_assignments (chore_id, kid_id) VALUES (?, ?)`,
			choreID, kidID,
		); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- Claim methods ---

func scanClaim(scanner interface{ Scan(...any) error }) (*model.ChoreClaim, error) {
	var c model.ChoreClaim
	var choreID, categoryID sql.NullInt64
	var points sql.NullInt64
	var decidedAt sql.NullTime
	var decidedBy sql.NullString

	err := scanner.Scan(
		&c.ID, &choreID, &c.ChoreTitle, &categoryID, &c.KidID, &c.Status,
		&points, &c.ClaimedAt, &decidedAt, &decidedBy,
	)
	if err != nil {
		return nil, err
	}

	if choreID.Valid {
		c.ChoreID = &choreID.Int64
	}
	if categoryID.Valid {
		c.CategoryID = &categoryID.Int64
	}
	if points.Valid {
		p := int(points.Int64)
		c.PointsAwarded = &p
	}
	if decidedAt.Valid {
		c.DecidedAt = &decidedAt.Time
	}
	if decidedBy.Valid {
		c.DecidedBy = &decidedBy.String
	}
	return &c, nil
}

const claimCols = `id, chore_id, chore_title, category_id, kid_id, status, points_awarded, claimed_at, decided_at, decided_by`

func (s *ChoreStore) CreateClaim(chore *model.Chore, kidID int64, claimedAt time.Time) (*model.ChoreClaim, error) {
	var categoryID sql.NullInt64
	if chore.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *chore.CategoryID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO chore_claims (chore_id, chore_title, category_id, kid_id, status, claimed_at)
		 VALUES (?, ?, ?, ?, 'claimed', ?)`,
		chore.ID, chore.Title, categoryID, kidID, claimedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert claim: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetClaimByID(id)
}

func (s *ChoreStore) GetClaimByID(id int64) (*model.ChoreClaim, error) {
	row := s.db.QueryRow(`SELECT `+claimCols+` FROM chore_claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

// HasBlockingClaim reports whether the kid already has an unresolved claim,
// or any claim made within [dayStart, dayEnd), for this chore.
func (s *ChoreStore) HasBlockingClaim(choreID, kidID int64, dayStart, dayEnd time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM chore_claims
		 WHERE chore_id = ? AND kid_id = ?
		   AND (status = 'claimed' OR (claimed_at >= ? AND claimed_at < ?))`,
		choreID, kidID, dayStart.UTC(), dayEnd.UTC(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count blocking claims: %w", err)
	}
	return n > 0, nil
}

// DecideClaim transitions a claim out of the claimed state. The update is
// guarded on the current status, so a concurrent decision loses cleanly: the
// second caller sees zero rows affected and gets false. An approval also
// bumps the kid's completed-chores total in the same transaction.
func (s *ChoreStore) DecideClaim(claimID int64, to model.ClaimStatus, decidedBy string, pointsAwarded *int, decidedAt time.Time) (bool, error) {
	var points sql.NullInt64
	if pointsAwarded != nil {
		points = sql.NullInt64{Int64: int64(*pointsAwarded), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE chore_claims SET status = ?, points_awarded = ?, decided_at = ?, decided_by = ?
		 WHERE id = ? AND status = 'claimed'`,
		string(to), points, decidedAt.UTC(), decidedBy, claimID,
	)
	if err != nil {
		return false, fmt.Errorf("decide claim: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return false, nil
	}

	if to == model.ClaimApproved {
		if _, err := tx.Exec(
			`UPDATE kids SET completed_chores_total = completed_chores_total + 1, updated_at = CURRENT_TIMESTAMP
			 WHERE id = (SELECT kid_id FROM chore_claims WHERE id = ?)`,
			claimID,
		); err != nil {
			return false, fmt.Errorf("bump completed total: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// RevertClaimDecision puts an approved claim back to claimed and undoes the
// completed-total bump. It is the compensation path for an approval whose
// point credit failed after the state flip.
func (s *ChoreStore) RevertClaimDecision(claimID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE kids SET completed_chores_total = completed_chores_total - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = (SELECT kid_id FROM chore_claims WHERE id = ? AND status = 'approved')`,
		claimID,
	); err != nil {
		return fmt.Errorf("unwind completed total: %w", err)
	}

	result, err := tx.Exec(
		`UPDATE chore_claims SET status = 'claimed', points_awarded = NULL, decided_at = NULL, decided_by = NULL
		 WHERE id = ? AND status = 'approved'`,
		claimID,
	)
	if err != nil {
		return fmt.Errorf("revert claim: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// ApprovedCountBetween counts claims approved for the kid with decided_at in
// [start, end).
func (s *ChoreStore) ApprovedCountBetween(kidID int64, start, end time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM chore_claims
		 WHERE kid_id = ? AND status = 'approved' AND decided_at >= ? AND decided_at < ?`,
		kidID, start.UTC(), end.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count approved claims: %w", err)
	}
	return n, nil
}
