// Package notes stores the voice notes owning each transcript. It
// implements the entity-update boundary the job writes transcripts
// through; the broader entity data model lives outside this core.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
create table if not exists voice_notes (
	id text primary key,
	audio_path text not null,
	transcript text,
	transcript_language text,
	created_at timestamp not null,
	updated_at timestamp not null
);
`

// Note is one recorded voice note.
type Note struct {
	ID                 string
	AudioPath          string
	Transcript         string
	TranscriptLanguage string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Repo is a sqlite-backed voice note repository.
type Repo struct {
	db *sql.DB
}

// NewRepo wraps an existing database handle, applying the schema.
func NewRepo(db *sql.DB) (*Repo, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("applying notes schema: %w", err)
	}
	return &Repo{db: db}, nil
}

// Create registers a recorded clip and returns the new note.
func (r *Repo) Create(ctx context.Context, audioPath string) (Note, error) {
	now := time.Now().UTC()
	n := Note{
		ID:        uuid.NewString(),
		AudioPath: audioPath,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, `
		insert into voice_notes (id, audio_path, transcript, transcript_language, created_at, updated_at)
		values (?, ?, null, null, ?, ?)
	`, n.ID, n.AudioPath, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("creating voice note: %w", err)
	}
	return n, nil
}

// Get returns a note by id, or nil when it does not exist.
func (r *Repo) Get(ctx context.Context, id string) (*Note, error) {
	var (
		n    Note
		text sql.NullString
		lang sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		select id, audio_path, transcript, transcript_language, created_at, updated_at
		from voice_notes where id = ?
	`, id).Scan(&n.ID, &n.AudioPath, &text, &lang, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading voice note: %w", err)
	}

	n.Transcript = text.String
	n.TranscriptLanguage = lang.String
	return &n, nil
}

// Exists reports whether a note with the given id is registered.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `select 1 from voice_notes where id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolving voice note: %w", err)
	}
	return true, nil
}

// UpdateTranscript writes the transcript and detected language back to
// the owning note. Called exactly once per successful transcription.
func (r *Repo) UpdateTranscript(ctx context.Context, id, text, languageCode string) error {
	res, err := r.db.ExecContext(ctx, `
		update voice_notes
		set transcript = ?, transcript_language = ?, updated_at = ?
		where id = ?
	`, text, languageCode, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating voice note transcript: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating voice note transcript: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("updating voice note transcript: no note with id %s", id)
	}
	return nil
}
