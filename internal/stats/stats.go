// Package stats persists the durable record of each transcription
// attempt. A record is created pending when a job is scheduled and
// transitions exactly once to success or failed when the job completes.
package stats

import (
	"context"
	"time"
)

// Status is the lifecycle state of one transcription attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Stats is the durable record of one transcription attempt for one
// (entity, audio path) pair. At most one pending record exists per pair
// at any time.
type Stats struct {
	ID        string
	EntityID  string
	AudioPath string
	Status    Status
	StartTime time.Time
	// EndTime is nil until the record reaches a terminal status.
	EndTime              *time.Time
	DurationMs           int64
	AudioSizeBytes       int64
	AudioDurationSeconds float64
	TranscriptionText    string
	TranscriptionLength  int
	DetectedLanguage     string
	EngineID             string
	// SpeedRatio is transcription duration divided by audio duration;
	// lower is faster than real time.
	SpeedRatio   float64
	ErrorMessage string
}

// Store is the narrow persistence capability the pipeline receives.
// The pipeline never deletes records; deletion is an administrative
// action outside this core.
type Store interface {
	// FindPendingFor returns the pending record for the pair, or nil
	// when none exists.
	FindPendingFor(ctx context.Context, entityID, audioPath string) (*Stats, error)
	// Insert persists a new record, assigning an id when empty.
	Insert(ctx context.Context, s *Stats) error
	// UpdateByID overwrites the record with the same id.
	UpdateByID(ctx context.Context, s *Stats) error
	// List returns records ordered by start time, newest first.
	List(ctx context.Context, limit int) ([]Stats, error)
}
