package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

// HistoryRepo handles search_history.
type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

var _ library.HistoryRepo = (*HistoryRepo)(nil)

func (r *HistoryRepo) Add(ctx context.Context, userID, query string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_history(id, profile_id, query, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), userID, query, at.UTC())
	return err
}

// Since returns a user's searches made at or after since, newest first.
func (r *HistoryRepo) Since(ctx context.Context, userID string, since time.Time) ([]library.SearchItem, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, profile_id, query, created_at FROM search_history
	WHERE profile_id = ? AND created_at >= ?
	ORDER BY created_at DESC`, userID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []library.SearchItem
	for rows.Next() {
		var it library.SearchItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.Query, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
