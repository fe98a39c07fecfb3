package engine

import (
	"context"
	"time"

	"github.com/dntrply/MedicationReminder-sub002/internal/audio"
	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
)

// CloudID is the engine id of the remote transcription variant.
const CloudID = "cloud"

// Cloud is the remote transcription engine. Only the interface shape
// lives in this repository; the actual transport is an external
// collaborator. Without a configured credential it reports unavailable.
type Cloud struct {
	apiKey string
}

// NewCloud creates the remote engine stub.
func NewCloud(apiKey string) *Cloud {
	return &Cloud{apiKey: apiKey}
}

// ID returns the engine id.
func (c *Cloud) ID() string { return CloudID }

// Available requires a configured credential.
func (c *Cloud) Available(_ domain.DeviceSnapshot) bool {
	return c.apiKey != ""
}

// Init is a no-op for the stub.
func (c *Cloud) Init(_ context.Context) error { return nil }

// Transcribe is not implemented in this repository.
func (c *Cloud) Transcribe(_ context.Context, _ *audio.PcmBuffer) (domain.Outcome, error) {
	return domain.Outcome{}, domain.E(domain.KindEngineUnavailable, "cloud transcription is not wired in this build", nil)
}

// Cleanup is a no-op for the stub.
func (c *Cloud) Cleanup() {}

// EstimateDuration assumes a network round-trip dominated upload.
func (c *Cloud) EstimateDuration(audioSeconds float64) time.Duration {
	return time.Duration(audioSeconds * 0.5 * float64(time.Second))
}
