// Package history is a read-only aggregator over decided chore claims:
// paginated history, summary statistics, and CSV export.
package history

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/finchley/pocketmoney/internal/model"
)

type Analytics struct {
	db *sql.DB

	now func() time.Time
}

func NewAnalytics(db *sql.DB) *Analytics {
	return &Analytics{db: db, now: time.Now}
}

// SetClock overrides the clock used for the per-day series. Tests only.
func (a *Analytics) SetClock(now func() time.Time) {
	a.now = now
}

// Page is one page of claim history.
type Page struct {
	Items   []model.ChoreClaim `json:"items"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
	HasMore bool               `json:"has_more"`
}

// History returns a page of the kid's claims, newest first, optionally
// filtered by status and category.
func (a *Analytics) History(kidID int64, page, perPage int, status model.ClaimStatus, categoryID *int64) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	where := ` WHERE kid_id = ?`
	args := []any{kidID}
	if status != "" {
		where += ` AND status = ?`
		args = append(args, string(status))
	}
	if categoryID != nil {
		where += ` AND category_id = ?`
		args = append(args, *categoryID)
	}

	var total int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM chore_claims`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	query := `SELECT id, chore_id, chore_title, category_id, kid_id, status, points_awarded, claimed_at, decided_at, decided_by
		FROM chore_claims` + where + ` ORDER BY claimed_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var items []model.ChoreClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history item: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Page{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		HasMore: page*perPage < total,
	}, nil
}

func scanClaim(scanner interface{ Scan(...any) error }) (*model.ChoreClaim, error) {
	var c model.ChoreClaim
	var choreID, categoryID, points sql.NullInt64
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

// DayCount is one slot of the per-day completion series.
type DayCount struct {
	Date   string `json:"date"`
	Count  int    `json:"count"`
	Points int    `json:"points"`
}

// CategoryStat groups approvals by category.
type CategoryStat struct {
	CategoryID   *int64 `json:"category_id"`
	CategoryName string `json:"category_name"`
	Count        int    `json:"count"`
	Points       int    `json:"points"`
}

// ChoreCount ranks chores by how often they were completed.
type ChoreCount struct {
	Title  string `json:"title"`
	Count  int    `json:"count"`
	Points int    `json:"points"`
}

// Stats summarizes a kid's approved chores.
type Stats struct {
	TotalCompleted int            `json:"total_completed"`
	TotalPoints    int            `json:"total_points"`
	AveragePoints  float64        `json:"average_points"`
	Daily          []DayCount     `json:"daily"`
	Categories     []CategoryStat `json:"categories"`
	TopChores      []ChoreCount   `json:"top_chores"`
}

// Stats computes totals over the kid's whole approved history plus a per-day
// series covering the last days calendar days (default 7), ending today.
func (a *Analytics) Stats(kidID int64, days int) (*Stats, error) {
	if days <= 0 {
		days = 7
	}

	st := &Stats{}
	err := a.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(points_awarded), 0)
		 FROM chore_claims WHERE kid_id = ? AND status = 'approved'`,
		kidID,
	).Scan(&st.TotalCompleted, &st.TotalPoints)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}
	if st.TotalCompleted > 0 {
		st.AveragePoints = float64(st.TotalPoints) / float64(st.TotalCompleted)
	}

	if st.Daily, err = a.dailySeries(kidID, days); err != nil {
		return nil, err
	}
	if st.Categories, err = a.categoryBreakdown(kidID); err != nil {
		return nil, err
	}
	if st.TopChores, err = a.topChores(kidID, 5); err != nil {
		return nil, err
	}
	return st, nil
}

func (a *Analytics) dailySeries(kidID int64, days int) ([]DayCount, error) {
	now := a.now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	start := end.Add(-time.Duration(days) * 24 * time.Hour)

	rows, err := a.db.Query(
		`SELECT decided_at, COALESCE(points_awarded, 0) FROM chore_claims
		 WHERE kid_id = ? AND status = 'approved' AND decided_at >= ? AND decided_at < ?`,
		kidID, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	defer rows.Close()

	series := make([]DayCount, days)
	for i := range series {
		series[i].Date = start.Add(time.Duration(i) * 24 * time.Hour).Format("2006-01-02")
	}

	for rows.Next() {
		var decidedAt time.Time
		var points int
		if err := rows.Scan(&decidedAt, &points); err != nil {
			return nil, fmt.Errorf("scan daily row: %w", err)
		}
		idx := int(decidedAt.In(now.Location()).Sub(start).Hours() / 24)
		if idx >= 0 && idx < days {
			series[idx].Count++
			series[idx].Points += points
		}
	}
	return series, rows.Err()
}

func (a *Analytics) categoryBreakdown(kidID int64) ([]CategoryStat, error) {
	rows, err := a.db.Query(
		`SELECT cc.category_id, COALESCE(cat.name, 'Uncategorized'),
			COUNT(*), COALESCE(SUM(cc.points_awarded), 0)
		 FROM chore_claims cc
		 LEFT JOIN categories cat ON cat.id = cc.category_id
		 WHERE cc.kid_id = ? AND cc.status = 'approved'
		 GROUP BY cc.category_id, cat.name
		 ORDER BY COUNT(*) DESC`,
		kidID,
	)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	var stats []CategoryStat
	for rows.Next() {
		var cs CategoryStat
		var categoryID sql.NullInt64
		if err := rows.Scan(&categoryID, &cs.CategoryName, &cs.Count, &cs.Points); err != nil {
			return nil, fmt.Errorf("scan category stat: %w", err)
		}
		if categoryID.Valid {
			cs.CategoryID = &categoryID.Int64
		}
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}

func (a *Analytics) topChores(kidID int64, limit int) ([]ChoreCount, error) {
	rows, err := a.db.Query(
		`SELECT chore_title, COUNT(*), COALESCE(SUM(points_awarded), 0)
		 FROM chore_claims
		 WHERE kid_id = ? AND status = 'approved'
		 GROUP BY chore_title
		 ORDER BY COUNT(*) DESC, chore_title ASC
		 LIMIT ?`,
		kidID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top chores: %w", err)
	}
	defer rows.Close()

	var chores []ChoreCount
	for rows.Next() {
		var cc ChoreCount
		if err := rows.Scan(&cc.Title, &cc.Count, &cc.Points); err != nil {
			return nil, fmt.Errorf("scan top chore: %w", err)
		}
		chores = append(chores, cc)
	}
	return chores, rows.Err()
}

// Counters derives the kid's completion windows from approved claims. The
// week runs Monday through Sunday in the server's local time.
func (a *Analytics) Counters(kidID int64, total int) (*model.KidCounters, error) {
	now := a.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	weekday := int(dayStart.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	weekStart := dayStart.Add(-time.Duration(weekday-1) * 24 * time.Hour)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	counters := &model.KidCounters{Total: total}
	var err error
	if counters.Today, err = a.approvedSince(kidID, dayStart); err != nil {
		return nil, err
	}
	if counters.Weekly, err = a.approvedSince(kidID, weekStart); err != nil {
		return nil, err
	}
	if counters.Monthly, err = a.approvedSince(kidID, monthStart); err != nil {
		return nil, err
	}
	return counters, nil
}

func (a *Analytics) approvedSince(kidID int64, since time.Time) (int, error) {
	var count int
	err := a.db.QueryRow(
		`SELECT COUNT(*) FROM chore_claims
		 WHERE kid_id = ? AND status = 'approved' AND decided_at >= ?`,
		kidID, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count approved since: %w", err)
	}
	return count, nil
}

// ExportCSV writes the kid's full approved-chore history as CSV, newest
// first, with Date/Chore/Points/Status columns.
func (a *Analytics) ExportCSV(w io.Writer, kidID int64) error {
	rows, err := a.db.Query(
		`SELECT decided_at, chore_title, COALESCE(points_awarded, 0), status
		 FROM chore_claims
		 WHERE kid_id = ? AND status = 'approved'
		 ORDER BY decided_at DESC, id DESC`,
		kidID,
	)
	if err != nil {
		return fmt.Errorf("export query: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Chore", "Points", "Status"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for rows.Next() {
		var decidedAt time.Time
		var title, status string
		var points int
		if err := rows.Scan(&decidedAt, &title, &points, &status); err != nil {
			return fmt.Errorf("scan export row: %w", err)
		}
		record := []string{
			decidedAt.Format("2006-01-02"),
			title,
			strconv.Itoa(points),
			status,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
