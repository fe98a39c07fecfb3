package engine

import (
	"github.com/dntrply/MedicationReminder-sub002/internal/config"
	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
	"github.com/dntrply/MedicationReminder-sub002/internal/models"
)

// Select picks one engine for the given device snapshot.
//
// Deterministic priority: a configured cloud credential wins, then the
// native tiny model if the device can carry it, then the no-op
// fallback. Selection is re-evaluated per job because device state
// changes between jobs; engines are constructed fresh and never cached.
func Select(snap domain.DeviceSnapshot, cfg config.EngineConfig, manager *models.Manager) Engine {
	if cloud := NewCloud(cfg.CloudAPIKey); cloud.Available(snap) {
		return cloud
	}

	whisper := NewWhisper(cfg.WhisperBin, cfg.FallbackLanguage, cfg.MinMemoryMB, manager)
	if whisper.Available(snap) {
		return whisper
	}

	return NewNoOp()
}
