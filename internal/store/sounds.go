package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

// SoundRepo handles sounds.
type SoundRepo struct {
	db *sql.DB
}

func NewSoundRepo(db *sql.DB) *SoundRepo { return &SoundRepo{db: db} }

var _ library.SoundRepo = (*SoundRepo)(nil)

const soundColumns = `id, name, bpm, musical_key, duration, url, waveform, tags`

type scanner interface {
	Scan(dest ...any) error
}

func scanSound(row scanner) (library.Sound, error) {
	var (
		s        library.Sound
		bpm      sql.NullInt64
		key      sql.NullString
		duration sql.NullFloat64
		url      sql.NullString
		waveform string
		tags     string
	)
	if err := row.Scan(&s.ID, &s.Name, &bpm, &key, &duration, &url, &waveform, &tags); err != nil {
		return library.Sound{}, err
	}
	if bpm.Valid {
		v := int(bpm.Int64)
		s.BPM = &v
	}
	if duration.Valid {
		v := duration.Float64
		s.Duration = &v
	}
	s.Key = key.String
	s.AudioURL = url.String
	if err := json.Unmarshal([]byte(waveform), &s.Waveform); err != nil {
		return library.Sound{}, fmt.Errorf("sound %s: bad waveform: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &s.Tags); err != nil {
		return library.Sound{}, fmt.Errorf("sound %s: bad tags: %w", s.ID, err)
	}
	return s, nil
}

func collectSounds(rows *sql.Rows) ([]library.Sound, error) {
	defer rows.Close()
	var out []library.Sound
	for rows.Next() {
		s, err := scanSound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// NewSoundID returns a random sound id.
func NewSoundID() string {
	return uuid.NewString()
}

// SoundIDFor derives a stable id from a source key such as an imported file
// path, so re-importing the same file updates the existing row.
func SoundIDFor(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("sound:"+key)).String()
}

func (r *SoundRepo) Get(ctx context.Context, id string) (library.Sound, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+soundColumns+` FROM sounds WHERE id = ?`, id)
	s, err := scanSound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return library.Sound{}, library.ErrSoundNotFound
	}
	return s, err
}

func (r *SoundRepo) List(ctx context.Context) ([]library.Sound, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+soundColumns+` FROM sounds ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return collectSounds(rows)
}

// Upsert inserts or replaces a sound. An empty id gets a random one, which
// is returned.
func (r *SoundRepo) Upsert(ctx context.Context, s library.Sound) (string, error) {
	if s.ID == "" {
		s.ID = NewSoundID()
	}
	if s.Waveform == nil {
		s.Waveform = []float64{}
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}

	waveform, err := json.Marshal(s.Waveform)
	if err != nil {
		return "", err
	}
	tags, err := json.Marshal(s.Tags)
	if err != nil {
		return "", err
	}

	_, err = r.db.ExecContext(ctx, `
	INSERT INTO sounds(id, name, bpm, musical_key, duration, url, waveform, tags, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name=excluded.name, bpm=excluded.bpm, musical_key=excluded.musical_key,
		duration=excluded.duration, url=excluded.url, waveform=excluded.waveform,
		tags=excluded.tags;
	`, s.ID, s.Name, nullInt(s.BPM), nullString(s.Key), nullFloat(s.Duration), nullString(s.AudioURL),
		string(waveform), string(tags), Now())
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// Delete removes a sound. Library rows pointing at it are left for cleanup.
func (r *SoundRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sounds WHERE id = ?`, id)
	return err
}

// Tags returns every distinct tag, sorted.
func (r *SoundRepo) Tags(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT value FROM sounds, json_each(sounds.tags)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags, rows.Err()
}

// WithDoubleSlash returns sounds whose URL has a doubled slash after a
// known storage segment.
func (r *SoundRepo) WithDoubleSlash(ctx context.Context) ([]library.Sound, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+soundColumns+` FROM sounds WHERE url LIKE '%//%' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	candidates, err := collectSounds(rows)
	if err != nil {
		return nil, err
	}

	var out []library.Sound
	for _, s := range candidates {
		if library.HasDoubleSlash(s.AudioURL) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *SoundRepo) UpdateURL(ctx context.Context, id, url string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sounds SET url = ? WHERE id = ?`, nullString(url), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return library.ErrSoundNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
