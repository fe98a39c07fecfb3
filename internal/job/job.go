// Package job orchestrates one transcription attempt end to end and
// schedules attempts for deferred background execution.
//
// Transcription is an enhancement to voice-note recording, never a
// blocker: every failure inside a job resolves to a failed statistics
// record and nothing else. No code path raises a fault to the caller.
package job

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dntrply/MedicationReminder-sub002/internal/audio"
	"github.com/dntrply/MedicationReminder-sub002/internal/device"
	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
	"github.com/dntrply/MedicationReminder-sub002/internal/engine"
	"github.com/dntrply/MedicationReminder-sub002/internal/models"
	"github.com/dntrply/MedicationReminder-sub002/internal/stats"
)

// Entities is the external entity boundary the job writes transcripts
// through.
type Entities interface {
	Exists(ctx context.Context, id string) (bool, error)
	UpdateTranscript(ctx context.Context, id, text, languageCode string) error
}

// Codec decodes and probes voice clips.
type Codec interface {
	Decode(ctx context.Context, path, containerHint string) (*audio.PcmBuffer, error)
	Probe(ctx context.Context, path, containerHint string) (audio.Info, error)
}

// Artifacts is the model manager capability the job needs.
type Artifacts interface {
	Present(id string) bool
	Download(ctx context.Context, id string, snap domain.DeviceSnapshot, progress models.Progress) error
}

// Selector resolves an engine for one job run. Selection happens per
// job because device state changes between jobs.
type Selector func(snap domain.DeviceSnapshot) engine.Engine

// Job runs one transcription attempt through its state machine:
// Started, StatsReconciled, EngineResolved, ModelReady, AudioDecoded,
// Transcribed, Finalized.
type Job struct {
	store     stats.Store
	entities  Entities
	codec     Codec
	artifacts Artifacts
	selector  Selector
	devices   device.Provider
	now       func() time.Time
}

// New builds a job orchestrator from its collaborators.
func New(store stats.Store, entities Entities, codec Codec, artifacts Artifacts, selector Selector, devices device.Provider) *Job {
	return &Job{
		store:     store,
		entities:  entities,
		codec:     codec,
		artifacts: artifacts,
		selector:  selector,
		devices:   devices,
		now:       time.Now,
	}
}

// Run executes one transcription attempt. It never returns an error:
// every failure finalizes the statistics record as failed and the
// returned record reflects the terminal state. A cancelled run leaves
// the record pending so a later schedule call resumes it; invalid
// input returns nil without touching any record.
func (j *Job) Run(ctx context.Context, req domain.Request) *stats.Stats {
	key := req.EntityID + "/" + req.AudioPath

	// Step 1: validate inputs without creating or mutating records.
	if req.EntityID == "" || req.AudioPath == "" {
		log.Printf("job %s: invalid request, dropping", key)
		return nil
	}
	ok, err := j.entities.Exists(ctx, req.EntityID)
	if err != nil || !ok {
		log.Printf("job %s: entity not resolvable, dropping (err=%v)", key, err)
		return nil
	}

	// Step 2: reconcile the statistics record. Stats are a diagnostic
	// projection; persistence trouble must not block transcription.
	st := j.reconcile(ctx, req)
	log.Printf("job %s: stats reconciled (id=%s)", key, st.ID)

	snap, err := j.devices.Snapshot()
	if err != nil {
		j.finalizeFailed(ctx, st, domain.KindUnknown, fmt.Errorf("reading device snapshot: %w", err))
		return st
	}

	// Step 3: resolve an engine. The no-op fallback guarantees a
	// non-nil handle.
	eng := j.selector(snap)
	log.Printf("job %s: engine resolved (%s)", key, eng.ID())
	st.EngineID = eng.ID()

	// Native engines hold releasable resources; Cleanup is a no-op for
	// the rest and safe on every exit path.
	defer eng.Cleanup()

	// Step 4: ensure the model artifact for engines that need one.
	if mb, isModelBacked := eng.(engine.ModelBacked); isModelBacked && !j.artifacts.Present(mb.ModelID()) {
		if !req.ConsentGranted {
			// Downloads never proceed without asserted consent.
			j.finalizeFailed(ctx, st, domain.KindModelNotDownloaded, fmt.Errorf("consent not granted for model download"))
			return st
		}
		if err := j.artifacts.Download(ctx, mb.ModelID(), snap, nil); err != nil {
			if ctx.Err() != nil {
				log.Printf("job %s: cancelled during model download, leaving pending", key)
				return st
			}
			j.finalizeFailed(ctx, st, downloadKind(err), err)
			return st
		}
	}

	if err := eng.Init(ctx); err != nil {
		j.finalizeFailed(ctx, st, kindOr(err, domain.KindInitializationFailed), err)
		return st
	}
	log.Printf("job %s: model ready", key)

	// Step 5: decode audio.
	buf, err := j.codec.Decode(ctx, req.AudioPath, "")
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("job %s: cancelled during decode, leaving pending", key)
			return st
		}
		j.finalizeFailed(ctx, st, kindOr(err, domain.KindAudioFileInvalid), err)
		return st
	}
	st.AudioDurationSeconds = buf.DurationSeconds()
	log.Printf("job %s: audio decoded (%.1fs)", key, st.AudioDurationSeconds)

	// Step 6: transcribe.
	started := j.now()
	outcome, err := eng.Transcribe(ctx, buf)
	elapsed := j.now().Sub(started)
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("job %s: cancelled during transcription, leaving pending", key)
			return st
		}
		j.finalizeFailed(ctx, st, domain.KindOf(err), err)
		return st
	}
	log.Printf("job %s: transcribed %d chars in %s", key, len(outcome.Text), elapsed.Round(time.Millisecond))

	// Step 7: write back to the owning entity, then finalize.
	if err := j.entities.UpdateTranscript(ctx, req.EntityID, outcome.Text, outcome.LanguageCode); err != nil {
		j.finalizeFailed(ctx, st, domain.KindUnknown, fmt.Errorf("writing transcript to entity: %w", err))
		return st
	}

	j.finalizeSuccess(ctx, st, outcome, elapsed)
	return st
}

// reconcile finds the pending record for the request's pair or creates
// one, guaranteeing a single pending record per pair even when the
// scheduler enqueued more than once.
func (j *Job) reconcile(ctx context.Context, req domain.Request) *stats.Stats {
	existing, err := j.store.FindPendingFor(ctx, req.EntityID, req.AudioPath)
	if err != nil {
		log.Printf("job: stats lookup failed, proceeding unpersisted: %v", err)
	}
	if existing != nil {
		return existing
	}

	st := &stats.Stats{
		EntityID:  req.EntityID,
		AudioPath: req.AudioPath,
		Status:    stats.StatusPending,
		StartTime: j.now().UTC(),
	}
	if info, err := j.codec.Probe(ctx, req.AudioPath, ""); err == nil {
		st.AudioSizeBytes = info.SizeBytes
		st.AudioDurationSeconds = info.Seconds
	}
	if err := j.store.Insert(ctx, st); err != nil {
		log.Printf("job: stats insert failed, proceeding unpersisted: %v", err)
	}
	return st
}

// finalizeSuccess applies the one allowed terminal transition for a
// successful run.
func (j *Job) finalizeSuccess(ctx context.Context, st *stats.Stats, outcome domain.Outcome, elapsed time.Duration) {
	end := j.now().UTC()
	st.Status = stats.StatusSuccess
	st.EndTime = &end
	st.DurationMs = elapsed.Milliseconds()
	st.TranscriptionText = outcome.Text
	st.TranscriptionLength = len(outcome.Text)
	st.DetectedLanguage = outcome.LanguageCode
	if st.AudioDurationSeconds > 0 {
		st.SpeedRatio = elapsed.Seconds() / st.AudioDurationSeconds
	}
	st.ErrorMessage = ""

	if err := j.store.UpdateByID(ctx, st); err != nil {
		log.Printf("job: stats finalize failed: %v", err)
	}
}

// finalizeFailed applies the terminal failed transition with the most
// specific applicable error kind.
func (j *Job) finalizeFailed(ctx context.Context, st *stats.Stats, kind domain.ErrorKind, cause error) {
	end := j.now().UTC()
	st.Status = stats.StatusFailed
	st.EndTime = &end
	st.ErrorMessage = string(kind)
	if cause != nil {
		st.ErrorMessage = fmt.Sprintf("%s: %v", kind, cause)
	}

	log.Printf("job %s/%s: failed (%s): %v", st.EntityID, st.AudioPath, kind, cause)
	if err := j.store.UpdateByID(ctx, st); err != nil {
		log.Printf("job: stats finalize failed: %v", err)
	}
}

// downloadKind maps a download failure to its statistics kind, keeping
// network-specific failures distinguishable.
func downloadKind(err error) domain.ErrorKind {
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		return kind
	}
	return domain.KindModelNotDownloaded
}

// kindOr classifies err, substituting fallback for unclassified errors.
func kindOr(err error, fallback domain.ErrorKind) domain.ErrorKind {
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		return kind
	}
	return fallback
}
