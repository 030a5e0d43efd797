package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

// ProfileRepo handles profiles.
type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// ProfileIDFor derives the profile id for an email address.
func ProfileIDFor(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("profile:"+normalizeEmail(email))).String()
}

// Upsert returns the profile for email, creating it on first use.
func (r *ProfileRepo) Upsert(ctx context.Context, email string) (library.Profile, error) {
	email = normalizeEmail(email)
	p := library.Profile{ID: ProfileIDFor(email), Email: email, CreatedAt: Now()}

	_, err := r.db.ExecContext(ctx, `
	INSERT INTO profiles(id, email, created_at) VALUES (?, ?, ?)
	ON CONFLICT(email) DO NOTHING;
	`, p.ID, p.Email, p.CreatedAt)
	if err != nil {
		return library.Profile{}, err
	}
	return r.ByEmail(ctx, email)
}

func (r *ProfileRepo) ByEmail(ctx context.Context, email string) (library.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, email, created_at FROM profiles WHERE email = ?`, normalizeEmail(email))
	var p library.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return library.Profile{}, library.ErrProfileNotFound
		}
		return library.Profile{}, err
	}
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
