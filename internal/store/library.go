package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

// LibraryRepo handles user_sounds.
type LibraryRepo struct {
	db *sql.DB
}

func NewLibraryRepo(db *sql.DB) *LibraryRepo { return &LibraryRepo{db: db} }

var _ library.LibraryRepo = (*LibraryRepo)(nil)

// List returns a user's entries, newest first. Entries whose sound is gone
// come back with a zero Sound.
func (r *LibraryRepo) List(ctx context.Context, userID string) ([]library.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT us.id, us.profile_id, us.sound_id, us.created_at,
	       COALESCE(s.id, ''), COALESCE(s.name, ''), s.bpm, s.musical_key, s.duration, s.url,
	       COALESCE(s.waveform, '[]'), COALESCE(s.tags, '[]')
	FROM user_sounds us
	LEFT JOIN sounds s ON s.id = us.sound_id
	WHERE us.profile_id = ?
	ORDER BY us.created_at DESC, us.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []library.Entry
	for rows.Next() {
		var e library.Entry
		s, err := scanSound(entryRow{rows: rows, entry: &e})
		if err != nil {
			return nil, err
		}
		e.Sound = s
		out = append(out, e)
	}
	return out, rows.Err()
}

// entryRow scans the user_sounds columns ahead of the sound columns.
type entryRow struct {
	rows  *sql.Rows
	entry *library.Entry
}

func (r entryRow) Scan(dest ...any) error {
	e := r.entry
	return r.rows.Scan(append([]any{&e.ID, &e.UserID, &e.SoundID, &e.SavedAt}, dest...)...)
}

func (r *LibraryRepo) Contains(ctx context.Context, userID, soundID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_sounds WHERE profile_id = ? AND sound_id = ?`, userID, soundID).Scan(&n)
	return n > 0, err
}

// Save adds a library row. Saving an existing pair keeps the original row.
func (r *LibraryRepo) Save(ctx context.Context, userID, soundID string, at time.Time) (library.Entry, error) {
	e := library.Entry{
		ID:      uuid.NewString(),
		UserID:  userID,
		SoundID: soundID,
		SavedAt: at.UTC().Truncate(time.Second),
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO user_sounds(id, profile_id, sound_id, created_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(profile_id, sound_id) DO NOTHING;
	`, e.ID, e.UserID, e.SoundID, e.SavedAt)
	if err != nil {
		return library.Entry{}, err
	}
	return e, nil
}

func (r *LibraryRepo) Remove(ctx context.Context, userID, soundID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sounds WHERE profile_id = ? AND sound_id = ?`, userID, soundID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *LibraryRepo) SavedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sound_id FROM user_sounds WHERE profile_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// DeleteOrphans removes rows whose sound no longer exists.
func (r *LibraryRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sounds WHERE sound_id NOT IN (SELECT id FROM sounds)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *LibraryRepo) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_sounds WHERE profile_id = ?`, userID).Scan(&n)
	return n, err
}
