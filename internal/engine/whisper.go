package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dntrply/MedicationReminder-sub002/internal/audio"
	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
	"github.com/dntrply/MedicationReminder-sub002/internal/execx"
	"github.com/dntrply/MedicationReminder-sub002/internal/models"
)

// WhisperID is the engine id of the native tiny model variant.
const WhisperID = "whisper-tiny"

// whisperSpeedFactor approximates wall-clock seconds of inference per
// second of audio on a low-end device.
const whisperSpeedFactor = 1.5

// Whisper runs the local compact whisper.cpp model over a staged WAV
// file. It requires the whisper-tiny artifact to be resident before
// Init and a minimum amount of device memory to be available at all.
type Whisper struct {
	bin            string
	fallbackLang   string
	minMemoryBytes uint64
	manager        *models.Manager
	runner         execx.CommandRunner
	mkdirTemp      func(dir, pattern string) (string, error)
	removeAll      func(path string) error

	mu     sync.Mutex
	active bool
}

// NewWhisper creates the native tiny model engine. minMemoryMB is the
// total-memory floor below which the engine reports unavailable.
func NewWhisper(bin, fallbackLang string, minMemoryMB uint64, manager *models.Manager) *Whisper {
	return &Whisper{
		bin:            bin,
		fallbackLang:   fallbackLang,
		minMemoryBytes: minMemoryMB * 1024 * 1024,
		manager:        manager,
		runner:         &execx.Runner{},
		mkdirTemp:      os.MkdirTemp,
		removeAll:      os.RemoveAll,
	}
}

// NewWhisperForTests creates the engine with an injectable command runner.
func NewWhisperForTests(bin, fallbackLang string, minMemoryMB uint64, manager *models.Manager, runner execx.CommandRunner) *Whisper {
	w := NewWhisper(bin, fallbackLang, minMemoryMB, manager)
	w.runner = runner
	return w
}

// ID returns the engine id.
func (w *Whisper) ID() string { return WhisperID }

// ModelID names the artifact this engine needs resident before Init.
func (w *Whisper) ModelID() string { return WhisperID }

// Available requires the device memory floor and either a resident
// model artifact or satisfiable download preconditions.
func (w *Whisper) Available(snap domain.DeviceSnapshot) bool {
	if snap.TotalMemoryBytes < w.minMemoryBytes {
		return false
	}
	if w.manager.Present(WhisperID) {
		return true
	}
	return w.manager.CanDownload(WhisperID, snap) == domain.Ready
}

// Init verifies the model artifact is resident and marks the runtime
// session live. Initializing a second time while a session is live is a
// programming error and is rejected.
func (w *Whisper) Init(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active {
		return domain.E(domain.KindInitializationFailed, "whisper session already initialized", nil)
	}

	modelPath := w.manager.ModelFile(WhisperID)
	if !w.manager.Present(WhisperID) {
		return domain.E(domain.KindModelNotDownloaded, fmt.Sprintf("model artifact not resident: %s", modelPath), nil)
	}

	w.active = true
	return nil
}

// Transcribe stages the buffer as a temp WAV, runs the whisper.cpp CLI,
// and identifies the transcript language on-device. Language detection
// never fails the transcription; it falls back to the configured
// default language instead.
func (w *Whisper) Transcribe(ctx context.Context, buf *audio.PcmBuffer) (domain.Outcome, error) {
	w.mu.Lock()
	active := w.active
	w.mu.Unlock()
	if !active {
		return domain.Outcome{}, domain.E(domain.KindInitializationFailed, "whisper session not initialized", nil)
	}

	tempDir, err := w.mkdirTemp("", "medivoice-whisper-*")
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("creating temp workspace: %w", err)
	}
	defer func() { _ = w.removeAll(tempDir) }()

	wavPath := filepath.Join(tempDir, "input-16k-mono.wav")
	if err := audio.WriteWAV(wavPath, buf); err != nil {
		return domain.Outcome{}, fmt.Errorf("staging audio for whisper: %w", err)
	}

	textBase := filepath.Join(tempDir, "transcript")
	args := []string{
		"-m", w.manager.ModelFile(WhisperID),
		"-f", wavPath,
		"-of", textBase,
		"-otxt",
	}

	if _, err := w.runner.Run(ctx, w.bin, args...); err != nil {
		return domain.Outcome{}, domain.E(domain.KindUnknown, "whisper inference failed", err)
	}

	content, err := os.ReadFile(textBase + ".txt")
	if err != nil {
		return domain.Outcome{}, domain.E(domain.KindUnknown, "whisper produced no transcript file", err)
	}

	text := strings.TrimSpace(string(content))
	return domain.Outcome{
		Text:         text,
		LanguageCode: detectLanguage(text, w.fallbackLang),
	}, nil
}

// Cleanup releases the runtime session. Safe on every exit path.
func (w *Whisper) Cleanup() {
	w.mu.Lock()
	w.active = false
	w.mu.Unlock()
}

// EstimateDuration predicts inference wall-clock time for a clip.
func (w *Whisper) EstimateDuration(audioSeconds float64) time.Duration {
	return time.Duration(audioSeconds * whisperSpeedFactor * float64(time.Second))
}
