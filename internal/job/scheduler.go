package job

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
	"github.com/dntrply/MedicationReminder-sub002/internal/stats"
)

// Scheduler enqueues transcription jobs for deferred execution. Each
// recorded clip is scheduled at most once at a time; the pending
// statistics record is created synchronously at enqueue time, not when
// the job eventually runs.
type Scheduler struct {
	store  stats.Store
	codec  Codec
	runner Runner
	job    *Job
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewScheduler builds a scheduler delegating execution to runner.
func NewScheduler(store stats.Store, codec Codec, runner Runner, j *Job) *Scheduler {
	return &Scheduler{
		store:    store,
		codec:    codec,
		runner:   runner,
		job:      j,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Schedule enqueues one transcription attempt for the clip.
//
// Without consent it does nothing at all: no statistics record, no
// network activity, no job. That is the feature's disabled state, not
// an error. Duplicate calls for a pair already in flight do not enqueue
// a second task; the job's own reconciliation additionally guarantees a
// single pending record. The returned error is diagnostic only; the
// recording flow never depends on it.
func (s *Scheduler) Schedule(ctx context.Context, entityID, audioPath string, consentGranted bool) error {
	if !consentGranted {
		return nil
	}
	if entityID == "" || audioPath == "" {
		return fmt.Errorf("schedule: entity id and audio path are required")
	}

	key := entityID + "/" + audioPath

	s.mu.Lock()
	if _, dup := s.inflight[key]; dup {
		s.mu.Unlock()
		log.Printf("schedule %s: already enqueued, skipping", key)
		return nil
	}
	s.inflight[key] = struct{}{}
	s.mu.Unlock()

	if err := s.ensurePending(ctx, entityID, audioPath); err != nil {
		s.release(key)
		return err
	}

	req := domain.Request{EntityID: entityID, AudioPath: audioPath, ConsentGranted: true}
	s.runner.Submit(key, func(ctx context.Context) {
		defer s.release(key)
		s.job.Run(ctx, req)
	}, Constraints{RequiresCharging: true, RequiresBatteryNotLow: true})

	log.Printf("schedule %s: enqueued", key)
	return nil
}

// ensurePending creates the pending statistics record if the pair has
// none, capturing the clip's size and duration synchronously.
func (s *Scheduler) ensurePending(ctx context.Context, entityID, audioPath string) error {
	existing, err := s.store.FindPendingFor(ctx, entityID, audioPath)
	if err != nil {
		return fmt.Errorf("schedule: reconciling stats: %w", err)
	}
	if existing != nil {
		return nil
	}

	st := &stats.Stats{
		EntityID:  entityID,
		AudioPath: audioPath,
		Status:    stats.StatusPending,
		StartTime: s.now().UTC(),
	}
	if info, err := s.codec.Probe(ctx, audioPath, ""); err == nil {
		st.AudioSizeBytes = info.SizeBytes
		st.AudioDurationSeconds = info.Seconds
	} else {
		log.Printf("schedule %s/%s: probe failed, recording without size: %v", entityID, audioPath, err)
	}

	if err := s.store.Insert(ctx, st); err != nil {
		return fmt.Errorf("schedule: creating pending stats: %w", err)
	}
	return nil
}

// release clears the in-flight marker for a pair.
func (s *Scheduler) release(key string) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}
