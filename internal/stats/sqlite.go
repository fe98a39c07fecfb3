package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
create table if not exists transcription_stats (
	id text primary key,
	entity_id text not null,
	audio_path text not null,
	status text not null,
	start_time timestamp not null,
	end_time timestamp,
	duration_ms integer not null default 0,
	audio_size_bytes integer not null default 0,
	audio_duration_seconds real not null default 0,
	transcription_text text,
	transcription_length integer not null default 0,
	detected_language text,
	engine_id text,
	speed_ratio real not null default 0,
	error_message text
);
create index if not exists idx_stats_pair_status
	on transcription_stats (entity_id, audio_path, status);
`

// SQLiteStore implements Store on a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and
// applies the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening stats database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying stats schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an existing database handle, applying the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("applying stats schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindPendingFor returns the pending record for (entityID, audioPath),
// or nil when none exists.
func (s *SQLiteStore) FindPendingFor(ctx context.Context, entityID, audioPath string) (*Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+columns+`
		from transcription_stats
		where entity_id = ? and audio_path = ? and status = ?
		limit 1
	`, entityID, audioPath, string(StatusPending))

	st, err := scanStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding pending stats: %w", err)
	}
	return st, nil
}

// Insert persists a new record, assigning a fresh id when empty.
func (s *SQLiteStore) Insert(ctx context.Context, st *Stats) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		insert into transcription_stats (`+columns+`)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args(st)...)
	if err != nil {
		return fmt.Errorf("inserting stats record: %w", err)
	}
	return nil
}

// UpdateByID overwrites the record with the same id.
func (s *SQLiteStore) UpdateByID(ctx context.Context, st *Stats) error {
	res, err := s.db.ExecContext(ctx, `
		update transcription_stats set
			entity_id = ?,
			audio_path = ?,
			status = ?,
			start_time = ?,
			end_time = ?,
			duration_ms = ?,
			audio_size_bytes = ?,
			audio_duration_seconds = ?,
			transcription_text = ?,
			transcription_length = ?,
			detected_language = ?,
			engine_id = ?,
			speed_ratio = ?,
			error_message = ?
		where id = ?
	`, append(args(st)[1:], st.ID)...)
	if err != nil {
		return fmt.Errorf("updating stats record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating stats record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("updating stats record: no record with id %s", st.ID)
	}
	return nil
}

// List returns records ordered by start time, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+columns+`
		from transcription_stats
		order by start_time desc
		limit ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stats records: %w", err)
	}
	defer rows.Close()

	var out []Stats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("listing stats records: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

const columns = `id, entity_id, audio_path, status, start_time, end_time,
	duration_ms, audio_size_bytes, audio_duration_seconds, transcription_text,
	transcription_length, detected_language, engine_id, speed_ratio, error_message`

// args flattens a record into insert/update bind values.
func args(st *Stats) []any {
	var end any
	if st.EndTime != nil {
		end = st.EndTime.UTC()
	}
	return []any{
		st.ID,
		st.EntityID,
		st.AudioPath,
		string(st.Status),
		st.StartTime.UTC(),
		end,
		st.DurationMs,
		st.AudioSizeBytes,
		st.AudioDurationSeconds,
		nullable(st.TranscriptionText),
		st.TranscriptionLength,
		nullable(st.DetectedLanguage),
		nullable(st.EngineID),
		st.SpeedRatio,
		nullable(st.ErrorMessage),
	}
}

// nullable maps empty strings to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanStats reads one record from a row.
func scanStats(row rowScanner) (*Stats, error) {
	var (
		st     Stats
		status string
		end    sql.NullTime
		text   sql.NullString
		lang   sql.NullString
		engine sql.NullString
		errMsg sql.NullString
	)

	err := row.Scan(
		&st.ID,
		&st.EntityID,
		&st.AudioPath,
		&status,
		&st.StartTime,
		&end,
		&st.DurationMs,
		&st.AudioSizeBytes,
		&st.AudioDurationSeconds,
		&text,
		&st.TranscriptionLength,
		&lang,
		&engine,
		&st.SpeedRatio,
		&errMsg,
	)
	if err != nil {
		return nil, err
	}

	st.Status = Status(status)
	if end.Valid {
		t := end.Time
		st.EndTime = &t
	}
	st.TranscriptionText = text.String
	st.DetectedLanguage = lang.String
	st.EngineID = engine.String
	st.ErrorMessage = errMsg.String
	return &st, nil
}
