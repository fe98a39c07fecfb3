package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dntrply/MedicationReminder-sub002/internal/audio"
	"github.com/dntrply/MedicationReminder-sub002/internal/device"
	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
	"github.com/dntrply/MedicationReminder-sub002/internal/engine"
	"github.com/dntrply/MedicationReminder-sub002/internal/models"
	"github.com/dntrply/MedicationReminder-sub002/internal/stats"
)

// fakeStore is an in-memory stats.Store.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]stats.Stats
	nextID  int

	findErr   error
	insertErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]stats.Stats)}
}

func (f *fakeStore) FindPendingFor(_ context.Context, entityID, audioPath string) (*stats.Stats, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.EntityID == entityID && r.AudioPath == audioPath && r.Status == stats.StatusPending {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Insert(_ context.Context, st *stats.Stats) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if st.ID == "" {
		f.nextID++
		st.ID = fmt.Sprintf("rec-%d", f.nextID)
	}
	f.records[st.ID] = *st
	return nil
}

func (f *fakeStore) UpdateByID(_ context.Context, st *stats.Stats) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[st.ID]; !ok {
		return fmt.Errorf("no record with id %s", st.ID)
	}
	f.records[st.ID] = *st
	return nil
}

func (f *fakeStore) List(_ context.Context, limit int) ([]stats.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stats.Stats, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) get(id string) (stats.Stats, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	return r, ok
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeEntities is an in-memory entity boundary.
type fakeEntities struct {
	exists    bool
	existsErr error
	updateErr error

	mu      sync.Mutex
	updates []string
}

func (f *fakeEntities) Exists(_ context.Context, _ string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeEntities) UpdateTranscript(_ context.Context, id, text, languageCode string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	f.updates = append(f.updates, id+"|"+text+"|"+languageCode)
	f.mu.Unlock()
	return nil
}

func (f *fakeEntities) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// fakeJobCodec returns canned decode and probe results.
type fakeJobCodec struct {
	buf       *audio.PcmBuffer
	decodeErr error
	info      audio.Info
	probeErr  error

	mu          sync.Mutex
	decodeCalls int
	probeCalls  int
}

func (f *fakeJobCodec) Decode(_ context.Context, _, _ string) (*audio.PcmBuffer, error) {
	f.mu.Lock()
	f.decodeCalls++
	f.mu.Unlock()
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	return f.buf, nil
}

func (f *fakeJobCodec) Probe(_ context.Context, _, _ string) (audio.Info, error) {
	f.mu.Lock()
	f.probeCalls++
	f.mu.Unlock()
	if f.probeErr != nil {
		return audio.Info{}, f.probeErr
	}
	return f.info, nil
}

// fakeArtifacts is an in-memory model manager boundary.
type fakeArtifacts struct {
	present     bool
	downloadErr error
	onDownload  func()

	mu        sync.Mutex
	downloads int
}

func (f *fakeArtifacts) Present(_ string) bool { return f.present }

func (f *fakeArtifacts) Download(_ context.Context, _ string, _ domain.DeviceSnapshot, _ models.Progress) error {
	f.mu.Lock()
	f.downloads++
	f.mu.Unlock()
	if f.onDownload != nil {
		f.onDownload()
	}
	return f.downloadErr
}

func (f *fakeArtifacts) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads
}

// fakeEngine is a scriptable engine without a model dependency.
type fakeEngine struct {
	id            string
	initErr       error
	outcome       domain.Outcome
	transcribeErr error
	onTranscribe  func()

	mu       sync.Mutex
	cleanups int
}

func (e *fakeEngine) ID() string                               { return e.id }
func (e *fakeEngine) Available(_ domain.DeviceSnapshot) bool   { return true }
func (e *fakeEngine) Init(_ context.Context) error             { return e.initErr }
func (e *fakeEngine) EstimateDuration(_ float64) time.Duration { return 0 }

func (e *fakeEngine) Transcribe(_ context.Context, _ *audio.PcmBuffer) (domain.Outcome, error) {
	if e.onTranscribe != nil {
		e.onTranscribe()
	}
	if e.transcribeErr != nil {
		return domain.Outcome{}, e.transcribeErr
	}
	return e.outcome, nil
}

func (e *fakeEngine) Cleanup() {
	e.mu.Lock()
	e.cleanups++
	e.mu.Unlock()
}

func (e *fakeEngine) cleanupCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cleanups
}

// modelBackedEngine adds a model artifact requirement.
type modelBackedEngine struct {
	fakeEngine
	modelID string
}

func (e *modelBackedEngine) ModelID() string { return e.modelID }

func chargedSnapshot() domain.DeviceSnapshot {
	return domain.DeviceSnapshot{
		TotalMemoryBytes: 4 << 30,
		FreeStorageBytes: 10 << 30,
		UnmeteredNetwork: true,
		Charging:         true,
	}
}

// fixture wires a Job from fakes with success-path defaults.
type fixture struct {
	store     *fakeStore
	entities  *fakeEntities
	codec     *fakeJobCodec
	artifacts *fakeArtifacts
	job       *Job
}

func newFixture(eng engine.Engine) *fixture {
	f := &fixture{
		store:    newFakeStore(),
		entities: &fakeEntities{exists: true},
		codec: &fakeJobCodec{
			buf:  &audio.PcmBuffer{Samples: make([]float32, audio.SampleRate*2)},
			info: audio.Info{SizeBytes: 32768, Seconds: 2},
		},
		artifacts: &fakeArtifacts{present: true},
	}
	selector := func(_ domain.DeviceSnapshot) engine.Engine { return eng }
	f.job = New(f.store, f.entities, f.codec, f.artifacts, selector, device.Static{S: chargedSnapshot()})
	return f
}

func testRequest() domain.Request {
	return domain.Request{EntityID: "note-1", AudioPath: "/clips/a.wav", ConsentGranted: true}
}

func TestRunSuccess(t *testing.T) {
	eng := &modelBackedEngine{
		fakeEngine: fakeEngine{
			id:      "whisper-tiny",
			outcome: domain.Outcome{Text: "Take two tablets with water.", LanguageCode: "en"},
		},
		modelID: "whisper-tiny",
	}
	f := newFixture(eng)

	st := f.job.Run(context.Background(), testRequest())
	if st == nil {
		t.Fatal("Run() returned nil for a valid request")
	}

	if st.Status != stats.StatusSuccess {
		t.Fatalf("Status = %s, want %s (error: %s)", st.Status, stats.StatusSuccess, st.ErrorMessage)
	}
	if st.EndTime == nil {
		t.Error("EndTime = nil on a terminal record")
	}
	if st.EngineID != "whisper-tiny" {
		t.Errorf("EngineID = %q, want whisper-tiny", st.EngineID)
	}
	if st.TranscriptionText != "Take two tablets with water." {
		t.Errorf("TranscriptionText = %q", st.TranscriptionText)
	}
	if st.TranscriptionLength != len(st.TranscriptionText) {
		t.Errorf("TranscriptionLength = %d, want %d", st.TranscriptionLength, len(st.TranscriptionText))
	}
	if st.DetectedLanguage != "en" {
		t.Errorf("DetectedLanguage = %q, want en", st.DetectedLanguage)
	}
	if st.AudioDurationSeconds != 2 {
		t.Errorf("AudioDurationSeconds = %f, want 2", st.AudioDurationSeconds)
	}
	if st.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", st.ErrorMessage)
	}

	persisted, ok := f.store.get(st.ID)
	if !ok {
		t.Fatal("terminal record not persisted")
	}
	if persisted.Status != stats.StatusSuccess {
		t.Errorf("persisted Status = %s, want %s", persisted.Status, stats.StatusSuccess)
	}

	if f.entities.updateCount() != 1 {
		t.Errorf("entity updates = %d, want 1", f.entities.updateCount())
	}
	if eng.cleanupCount() != 1 {
		t.Errorf("Cleanup() calls = %d, want 1", eng.cleanupCount())
	}
}

func TestRunInvalidRequestTouchesNothing(t *testing.T) {
	f := newFixture(&fakeEngine{id: "whisper-tiny"})

	st := f.job.Run(context.Background(), domain.Request{EntityID: "", AudioPath: "/clips/a.wav"})
	if st != nil {
		t.Errorf("Run() = %+v, want nil for an invalid request", st)
	}
	if f.store.count() != 0 {
		t.Errorf("records = %d, want 0", f.store.count())
	}
}

func TestRunUnknownEntityTouchesNothing(t *testing.T) {
	f := newFixture(&fakeEngine{id: "whisper-tiny"})
	f.entities.exists = false

	st := f.job.Run(context.Background(), testRequest())
	if st != nil {
		t.Errorf("Run() = %+v, want nil for an unknown entity", st)
	}
	if f.store.count() != 0 {
		t.Errorf("records = %d, want 0", f.store.count())
	}
}

func TestRunTranscribeFailureLeavesTranscriptUntouched(t *testing.T) {
	eng := &fakeEngine{
		id:            "whisper-tiny",
		transcribeErr: domain.E(domain.KindUnknown, "inference crashed", nil),
	}
	f := newFixture(eng)

	st := f.job.Run(context.Background(), testRequest())
	if st == nil {
		t.Fatal("Run() returned nil")
	}
	if st.Status != stats.StatusFailed {
		t.Fatalf("Status = %s, want %s", st.Status, stats.StatusFailed)
	}
	if st.EndTime == nil {
		t.Error("EndTime = nil on a terminal record")
	}
	if st.TranscriptionText != "" {
		t.Errorf("TranscriptionText = %q, want empty on failure", st.TranscriptionText)
	}
	if f.entities.updateCount() != 0 {
		t.Errorf("entity updates = %d, want 0 on failure", f.entities.updateCount())
	}
	if eng.cleanupCount() != 1 {
		t.Errorf("Cleanup() calls = %d, want 1", eng.cleanupCount())
	}
}

func TestRunNoOpEngineFailsWithEngineUnavailable(t *testing.T) {
	f := newFixture(engine.NewNoOp())

	st := f.job.Run(context.Background(), testRequest())
	if st == nil {
		t.Fatal("Run() returned nil")
	}
	if st.Status != stats.StatusFailed {
		t.Fatalf("Status = %s, want %s", st.Status, stats.StatusFailed)
	}
	if !strings.Contains(st.ErrorMessage, string(domain.KindEngineUnavailable)) {
		t.Errorf("ErrorMessage = %q, want %s kind", st.ErrorMessage, domain.KindEngineUnavailable)
	}
	if st.EngineID != engine.NoOpID {
		t.Errorf("EngineID = %q, want %s", st.EngineID, engine.NoOpID)
	}
}

func TestRunWithoutConsentSkipsDownload(t *testing.T) {
	eng := &modelBackedEngine{fakeEngine: fakeEngine{id: "whisper-tiny"}, modelID: "whisper-tiny"}
	f := newFixture(eng)
	f.artifacts.present = false

	req := testRequest()
	req.ConsentGranted = false
	st := f.job.Run(context.Background(), req)
	if st == nil {
		t.Fatal("Run() returned nil")
	}
	if st.Status != stats.StatusFailed {
		t.Fatalf("Status = %s, want %s", st.Status, stats.StatusFailed)
	}
	if !strings.Contains(st.ErrorMessage, string(domain.KindModelNotDownloaded)) {
		t.Errorf("ErrorMessage = %q, want %s kind", st.ErrorMessage, domain.KindModelNotDownloaded)
	}
	if f.artifacts.downloadCount() != 0 {
		t.Errorf("downloads = %d, want 0 without consent", f.artifacts.downloadCount())
	}
}

func TestRunDownloadFailureKeepsNetworkKind(t *testing.T) {
	eng := &modelBackedEngine{fakeEngine: fakeEngine{id: "whisper-tiny"}, modelID: "whisper-tiny"}
	f := newFixture(eng)
	f.artifacts.present = false
	f.artifacts.downloadErr = domain.E(domain.KindNetworkUnavailable, "metered network", nil)

	st := f.job.Run(context.Background(), testRequest())
	if st.Status != stats.StatusFailed {
		t.Fatalf("Status = %s, want %s", st.Status, stats.StatusFailed)
	}
	if !strings.Contains(st.ErrorMessage, string(domain.KindNetworkUnavailable)) {
		t.Errorf("ErrorMessage = %q, want %s kind", st.ErrorMessage, domain.KindNetworkUnavailable)
	}
}

func TestRunDownloadFailureDefaultsToModelKind(t *testing.T) {
	eng := &modelBackedEngine{fakeEngine: fakeEngine{id: "whisper-tiny"}, modelID: "whisper-tiny"}
	f := newFixture(eng)
	f.artifacts.present = false
	f.artifacts.downloadErr = errors.New("connection reset")

	st := f.job.Run(context.Background(), testRequest())
	if st.Status != stats.StatusFailed {
		t.Fatalf("Status = %s, want %s", st.Status, stats.StatusFailed)
	}
	if !strings.Contains(st.ErrorMessage, string(domain.KindModelNotDownloaded)) {
		t.Errorf("ErrorMessage = %q, want %s kind", st.ErrorMessage, domain.KindModelNotDownloaded)
	}
}

func TestRunInitFailure(t *testing.T) {
	eng := &fakeEngine{id: "whisper-tiny", initErr: errors.New("runtime refused to start")}
	f := newFixture(eng)

	st := f.job.Run(context.Background(), testRequest())
	if st.Status != stats.StatusFailed {
		t.Fatalf("Status = %s, want %s", st.Status, stats.StatusFailed)
	}
	if !strings.Contains(st.ErrorMessage, string(domain.KindInitializationFailed)) {
		t.Errorf("ErrorMessage = %q, want %s kind", st.ErrorMessage, domain.KindInitializationFailed)
	}
	if eng.cleanupCount() != 1 {
		t.Errorf("Cleanup() calls = %d, want 1", eng.cleanupCount())
	}
}

func TestRunDecodeFailure(t *testing.T) {
	f := newFixture(&fakeEngine{id: "whisper-tiny"})
	f.codec.decodeErr = domain.E(domain.KindAudioFileInvalid, "not a valid WAV file", nil)

	st := f.job.Run(context.Background(), testRequest())
	if st.Status != stats.StatusFailed {
		t.Fatalf("Status = %s, want %s", st.Status, stats.StatusFailed)
	}
	if !strings.Contains(st.ErrorMessage, string(domain.KindAudioFileInvalid)) {
		t.Errorf("ErrorMessage = %q, want %s kind", st.ErrorMessage, domain.KindAudioFileInvalid)
	}
}

func TestRunCancellationLeavesPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eng := &fakeEngine{
		id:            "whisper-tiny",
		onTranscribe:  cancel,
		transcribeErr: context.Canceled,
	}
	f := newFixture(eng)

	st := f.job.Run(ctx, testRequest())
	if st == nil {
		t.Fatal("Run() returned nil")
	}
	if st.Status != stats.StatusPending {
		t.Errorf("Status = %s, want %s after cancellation", st.Status, stats.StatusPending)
	}

	persisted, ok := f.store.get(st.ID)
	if !ok {
		t.Fatal("record not persisted")
	}
	if persisted.Status != stats.StatusPending {
		t.Errorf("persisted Status = %s, want %s", persisted.Status, stats.StatusPending)
	}
	if eng.cleanupCount() != 1 {
		t.Errorf("Cleanup() calls = %d, want 1 even on cancellation", eng.cleanupCount())
	}
}

func TestRunReusesPendingRecord(t *testing.T) {
	eng := &fakeEngine{id: "whisper-tiny", outcome: domain.Outcome{Text: "ok", LanguageCode: "en"}}
	f := newFixture(eng)

	pre := &stats.Stats{
		EntityID:  "note-1",
		AudioPath: "/clips/a.wav",
		Status:    stats.StatusPending,
		StartTime: time.Now().UTC(),
	}
	if err := f.store.Insert(context.Background(), pre); err != nil {
		t.Fatal(err)
	}

	st := f.job.Run(context.Background(), testRequest())
	if st.ID != pre.ID {
		t.Errorf("record id = %s, want reused %s", st.ID, pre.ID)
	}
	if f.store.count() != 1 {
		t.Errorf("records = %d, want 1", f.store.count())
	}
	if st.Status != stats.StatusSuccess {
		t.Errorf("Status = %s, want %s", st.Status, stats.StatusSuccess)
	}
}

func TestRunProceedsWhenStatsUnavailable(t *testing.T) {
	// Stats are diagnostics; a broken store must not block transcription.
	eng := &fakeEngine{id: "whisper-tiny", outcome: domain.Outcome{Text: "ok", LanguageCode: "en"}}
	f := newFixture(eng)
	f.store.findErr = errors.New("database locked")
	f.store.insertErr = errors.New("database locked")
	f.store.updateErr = errors.New("database locked")

	st := f.job.Run(context.Background(), testRequest())
	if st == nil {
		t.Fatal("Run() returned nil")
	}
	if st.Status != stats.StatusSuccess {
		t.Errorf("Status = %s, want %s", st.Status, stats.StatusSuccess)
	}
	if f.entities.updateCount() != 1 {
		t.Errorf("entity updates = %d, want 1", f.entities.updateCount())
	}
}
