// Package sqlite provides a SQLite-backed leaderboard storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/splitpoint/ultimatum/internal/leaderboard"
	"github.com/splitpoint/ultimatum/internal/leaderboard/filter"
	"github.com/splitpoint/ultimatum/internal/platform/pagination"
	"github.com/splitpoint/ultimatum/internal/platform/storage/sqlitemigrate"
	"github.com/splitpoint/ultimatum/internal/storage"
	"github.com/splitpoint/ultimatum/internal/storage/sqlite/migrations"

	_ "modernc.org/sqlite"
)

// Store persists leaderboard entries in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite leaderboard store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SubmitEntry inserts one leaderboard entry. A session that is already on
// the board stays as first recorded; resubmission does not error.
func (s *Store) SubmitEntry(ctx context.Context, entry leaderboard.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	entry, err := leaderboard.NormalizeEntry(entry)
	if err != nil {
		return err
	}
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO leaderboard_entries (
		   session_id,
		   player_name,
		   human_score,
		   ai_score,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		entry.SessionID,
		entry.PlayerName,
		entry.HumanScore,
		entry.AIScore,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("submit leaderboard entry: %w", err)
	}
	return nil
}

// orderClause maps a sort key to its SQL ordering. Ties break toward the
// earliest submission, then by session ID so the total order is stable.
func orderClause(sortBy leaderboard.SortBy) (string, error) {
	switch sortBy {
	case leaderboard.SortByScore:
		return "human_score DESC, created_at ASC, session_id ASC", nil
	case leaderboard.SortByDifference:
		return "(human_score - ai_score) DESC, created_at ASC, session_id ASC", nil
	default:
		return "", fmt.Errorf("unsupported sort key: %s", sortBy)
	}
}

// ListEntries returns one ranked page of leaderboard entries.
func (s *Store) ListEntries(ctx context.Context, query storage.LeaderboardQuery) (leaderboard.Page, error) {
	if err := ctx.Err(); err != nil {
		return leaderboard.Page{}, err
	}
	if s == nil || s.sqlDB == nil {
		return leaderboard.Page{}, fmt.Errorf("storage is not configured")
	}
	if query.Page <= 0 {
		return leaderboard.Page{}, fmt.Errorf("page must be greater than zero")
	}
	if query.PageSize <= 0 {
		return leaderboard.Page{}, fmt.Errorf("page size must be greater than zero")
	}

	order, err := orderClause(query.SortBy)
	if err != nil {
		return leaderboard.Page{}, err
	}

	cond, err := filter.ParseEntryFilter(query.Filter)
	if err != nil {
		return leaderboard.Page{}, fmt.Errorf("parse leaderboard filter: %w", err)
	}
	where := ""
	if cond.Clause != "" {
		where = " WHERE " + cond.Clause
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM leaderboard_entries" + where
	if err := s.sqlDB.QueryRowContext(ctx, countQuery, cond.Params...).Scan(&total); err != nil {
		return leaderboard.Page{}, fmt.Errorf("count leaderboard entries: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT session_id, player_name, human_score, ai_score, created_at
		   FROM leaderboard_entries%s
		  ORDER BY %s
		  LIMIT ? OFFSET ?`,
		where, order,
	)
	params := append(append([]any{}, cond.Params...),
		query.PageSize, pagination.Offset(query.Page, query.PageSize))

	rows, err := s.sqlDB.QueryContext(ctx, listQuery, params...)
	if err != nil {
		return leaderboard.Page{}, fmt.Errorf("list leaderboard entries: %w", err)
	}
	defer rows.Close()

	page := leaderboard.Page{
		Entries:    make([]leaderboard.Entry, 0, query.PageSize),
		TotalPages: pagination.TotalPages(total, query.PageSize),
	}
	for rows.Next() {
		var entry leaderboard.Entry
		var createdAt int64
		if err := rows.Scan(
			&entry.SessionID,
			&entry.PlayerName,
			&entry.HumanScore,
			&entry.AIScore,
			&createdAt,
		); err != nil {
			return leaderboard.Page{}, fmt.Errorf("list leaderboard entries: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
		page.Entries = append(page.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return leaderboard.Page{}, fmt.Errorf("list leaderboard entries: %w", err)
	}

	return page, nil
}

var _ storage.LeaderboardStore = (*Store)(nil)
