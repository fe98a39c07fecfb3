package engine

import (
	"context"
	"time"

	"github.com/dntrply/MedicationReminder-sub002/internal/audio"
	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
)

// NoOpID is the engine id of the always-available fallback variant.
const NoOpID = "noop"

// NoOp is the engine of last resort. It is always available and fails
// every transcription immediately, which guarantees the pipeline always
// has a non-nil engine to call.
type NoOp struct{}

// NewNoOp creates the fallback engine.
func NewNoOp() *NoOp { return &NoOp{} }

// ID returns the engine id.
func (n *NoOp) ID() string { return NoOpID }

// Available is always true.
func (n *NoOp) Available(_ domain.DeviceSnapshot) bool { return true }

// Init is a no-op.
func (n *NoOp) Init(_ context.Context) error { return nil }

// Transcribe fails immediately with the engine-unavailable kind.
func (n *NoOp) Transcribe(_ context.Context, _ *audio.PcmBuffer) (domain.Outcome, error) {
	return domain.Outcome{}, domain.E(domain.KindEngineUnavailable, "no transcription engine available on this device", nil)
}

// Cleanup is a no-op.
func (n *NoOp) Cleanup() {}

// EstimateDuration is zero; nothing runs.
func (n *NoOp) EstimateDuration(_ float64) time.Duration { return 0 }
