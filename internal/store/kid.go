package store

import (
	"database/sql"
	"fmt"

	"github.com/finchley/pocketmoney/internal/model"
)

type KidStore struct {
	db *sql.DB
}

func NewKidStore(db *sql.DB) *KidStore {
	return &KidStore{db: db}
}

func scanKid(scanner interface{ Scan(...any) error }) (*model.Kid, error) {
	var k model.Kid
	err := scanner.Scan(
		&k.ID, &k.Name, &k.AvatarColor, &k.AvatarEmoji, &k.Points,
		&k.PointsMultiplier, &k.ChoreStreak, &k.CompletedTotal,
		&k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

const kidCols = `id, name, avatar_color, avatar_emoji, points, points_multiplier, overall_chore_streak, completed_chores_total, created_at, updated_at`

func (s *KidStore) Create(name, avatarColor, avatarEmoji string) (*model.Kid, error) {
	result, err := s.db.Exec(
		`INSERT INTO kids (name, avatar_color, avatar_emoji) VALUES (?, ?, ?)`,
		name, avatarColor, avatarEmoji,
	)
	if err != nil {
		return nil, fmt.Errorf("insert kid: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *KidStore) GetByID(id int64) (*model.Kid, error) {
	row := s.db.QueryRow(`SELECT `+kidCols+` FROM kids WHERE id = ?`, id)
	k, err := scanKid(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get kid: %w", err)
	}
	return k, nil
}

func (s *KidStore) List() ([]model.Kid, error) {
	rows, err := s.db.Query(`SELECT ` + kidCols + ` FROM kids ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list kids: %w", err)
	}
	defer rows.Close()

	var kids []model.Kid
	for rows.Next() {
		k, err := scanKid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kid: %w", err)
		}
		kids = append(kids, *k)
	}
	return kids, rows.Err()
}

// Update changes presentation fields only. Points, multiplier, streak, and
// totals all move through their own dedicated paths.
func (s *KidStore) Update(id int64, name, avatarColor, avatarEmoji string) (*model.Kid, error) {
	_, err := s.db.Exec(
		`UPDATE kids SET name = ?, avatar_color = ?, avatar_emoji = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, avatarColor, avatarEmoji, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update kid: %w", err)
	}
	return s.GetByID(id)
}

func (s *KidStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM kids WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete kid: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetMultiplier is the only write path for the points multiplier.
func (s *KidStore) SetMultiplier(id int64, multiplier float64) (*model.Kid, error) {
	_, err := s.db.Exec(
		`UPDATE kids SET points_multiplier = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		multiplier, id,
	)
	if err != nil {
		return nil, fmt.Errorf("set multiplier: %w", err)
	}
	return s.GetByID(id)
}

func (s *KidStore) SetStreak(id int64, streak int) error {
	_, err := s.db.Exec(
		`UPDATE kids SET overall_chore_streak = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		streak, id,
	)
	if err != nil {
		return fmt.Errorf("set streak: %w", err)
	}
	return nil
}

// AwardBadge grants a badge once. Awarding an already-held badge is a no-op.
func (s *KidStore) AwardBadge(kidID int64, badge string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO kid_badges (kid_id, badge) VALUES (?, ?)`,
		kidID, badge,
	)
	if err != nil {
		return fmt.Errorf("award badge: %w", err)
	}
	return nil
}

func (s *KidStore) ListBadges(kidID int64) ([]model.Badge, error) {
	rows, err := s.db.Query(
		`SELECT badge, awarded_at FROM kid_badges WHERE kid_id = ? ORDER BY awarded_at ASC`,
		kidID,
	)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		var b model.Badge
		if err := rows.Scan(&b.Badge, &b.AwardedAt); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// Leaderboard ranks kids by current balance, with lifetime earned and spent
// totals derived from the ledger.
func (s *KidStore) Leaderboard() ([]model.LeaderboardEntry, error) {
	rows, err := s.db.Query(
		`SELECT k.id, k.name, k.points,
			COALESCE(SUM(CASE WHEN le.applied > 0 THEN le.applied ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN le.applied < 0 THEN -le.applied ELSE 0 END), 0)
		 FROM kids k
		 LEFT JOIN ledger_entries le ON le.kid_id = k.id
		 GROUP BY k.id, k.name, k.points
		 ORDER BY k.points DESC, k.name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.KidID, &e.KidName, &e.Balance, &e.TotalEarned, &e.TotalSpent); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
