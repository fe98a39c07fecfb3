// Package engine provides the pluggable speech-to-text engines.
//
// Variants:
//   - whisper-tiny: local compact whisper.cpp model (default)
//   - cloud: remote transcription, credential-gated, interface shape only
//   - noop: always available, fails every transcription
package engine

import (
	"context"
	"time"

	"github.com/dntrply/MedicationReminder-sub002/internal/audio"
	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
)

// Engine converts a decoded voice clip to text.
type Engine interface {
	// ID identifies the engine variant for statistics records.
	ID() string
	// Available reports whether this engine can run under the given
	// device snapshot.
	Available(snap domain.DeviceSnapshot) bool
	// Init prepares the engine for transcription. It must be balanced
	// by Cleanup.
	Init(ctx context.Context) error
	// Transcribe converts mono 16 kHz float32 audio to text plus a
	// detected language code. It is CPU-bound and must run off any
	// interactive thread.
	Transcribe(ctx context.Context, buf *audio.PcmBuffer) (domain.Outcome, error)
	// Cleanup releases engine resources. Safe to call more than once.
	Cleanup()
	// EstimateDuration predicts wall-clock transcription time for a
	// clip of the given length.
	EstimateDuration(audioSeconds float64) time.Duration
}

// ModelBacked is implemented by engines that need a model artifact
// resident before Init. The orchestrator ensures residency through the
// artifact manager for these engines only.
type ModelBacked interface {
	ModelID() string
}
