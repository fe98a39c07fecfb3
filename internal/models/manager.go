package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
)

// ErrUnknownArtifact is returned for ids missing from the catalog.
var ErrUnknownArtifact = errors.New("unknown model artifact")

// ErrCorruptArtifact marks a transfer whose byte size did not match the
// expected artifact size. The partial file is discarded.
var ErrCorruptArtifact = errors.New("artifact size mismatch")

// ErrDownloadTimeout marks an attempt abandoned after the overall
// download timeout elapsed.
var ErrDownloadTimeout = errors.New("download timed out")

// Policy bounds download behavior.
type Policy struct {
	// MinFreeStorageBytes is the free-storage floor required before any
	// transfer, independent of the artifact's own size.
	MinFreeStorageBytes uint64
	// MaxAttempts bounds retries within one Download call.
	MaxAttempts int
	// Timeout caps the whole Download call, all attempts included.
	Timeout time.Duration
}

// Progress receives transfer progress. total is -1 when unknown.
type Progress func(written, total int64)

// Manager ensures model artifacts are resident, verified, and
// downloaded at most once concurrently per artifact id.
//
// Consent is the caller's responsibility: Download assumes the caller
// asserted user consent before invoking it.
type Manager struct {
	dir       string
	policy    Policy
	client    *http.Client
	artifacts []Artifact
	group     singleflight.Group
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewManager creates a manager storing artifacts under dir.
func NewManager(dir string, policy Policy) *Manager {
	return &Manager{
		dir:       dir,
		policy:    policy,
		client:    http.DefaultClient,
		artifacts: Catalog(),
		sleep:     sleepCtx,
	}
}

// NewManagerForTests creates a manager with an injectable catalog,
// HTTP client, and sleep function.
func NewManagerForTests(dir string, policy Policy, artifacts []Artifact, client *http.Client, sleep func(ctx context.Context, d time.Duration) error) *Manager {
	m := NewManager(dir, policy)
	if artifacts != nil {
		m.artifacts = artifacts
	}
	if client != nil {
		m.client = client
	}
	if sleep != nil {
		m.sleep = sleep
	}
	return m
}

// lookup resolves an artifact by id.
func (m *Manager) lookup(id string) (Artifact, bool) {
	for _, a := range m.artifacts {
		if a.ID == id {
			return a, true
		}
	}
	return Artifact{}, false
}

// ModelFile returns the local path an artifact installs to.
func (m *Manager) ModelFile(id string) string {
	a, ok := m.lookup(id)
	if !ok {
		return ""
	}
	return filepath.Join(m.dir, a.FileName)
}

// Present reports whether the artifact is resident and size-verified.
func (m *Manager) Present(id string) bool {
	a, ok := m.lookup(id)
	if !ok {
		return false
	}
	info, err := os.Stat(filepath.Join(m.dir, a.FileName))
	return err == nil && info.Size() == a.SizeBytes
}

// CanDownload reports whether a download may start under the snapshot.
// The network must be unmetered and free storage must exceed the policy
// floor.
func (m *Manager) CanDownload(id string, snap domain.DeviceSnapshot) domain.Readiness {
	if m.Present(id) {
		return domain.AlreadyPresent
	}
	if !snap.UnmeteredNetwork {
		return domain.NoWifi
	}
	if snap.FreeStorageBytes < m.policy.MinFreeStorageBytes {
		return domain.InsufficientStorage
	}
	return domain.Ready
}

// Download fetches and installs the artifact, bounded by the policy's
// attempt budget and overall timeout. Concurrent callers for the same
// artifact share one in-flight transfer. The snapshot gates are checked
// before any network transfer.
func (m *Manager) Download(ctx context.Context, id string, snap domain.DeviceSnapshot, progress Progress) error {
	a, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArtifact, id)
	}

	switch m.CanDownload(id, snap) {
	case domain.AlreadyPresent:
		return nil
	case domain.NoWifi:
		return domain.E(domain.KindNetworkUnavailable, "metered network, refusing to download model", nil)
	case domain.InsufficientStorage:
		return domain.E(domain.KindModelNotDownloaded, "insufficient free storage for model download", nil)
	}

	// Single-flight per artifact id: a second caller waits for the
	// in-flight result instead of starting a duplicate transfer.
	_, err, _ := m.group.Do(a.ID, func() (interface{}, error) {
		return nil, m.downloadWithRetry(ctx, a, progress)
	})
	return err
}

// downloadWithRetry runs the bounded retry loop under the overall
// timeout.
func (m *Manager) downloadWithRetry(ctx context.Context, a Artifact, progress Progress) error {
	ctx, cancel := context.WithTimeout(ctx, m.policy.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		lastErr = m.downloadOnce(ctx, a, progress)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return domain.E(domain.KindModelNotDownloaded, a.ID, fmt.Errorf("%w: %v", ErrDownloadTimeout, lastErr))
		}
		if attempt < m.policy.MaxAttempts {
			// Exponential backoff: 1s, 2s, 4s, ...
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if err := m.sleep(ctx, backoff); err != nil {
				return domain.E(domain.KindModelNotDownloaded, a.ID, fmt.Errorf("%w: %v", ErrDownloadTimeout, lastErr))
			}
		}
	}
	return domain.E(domain.KindModelNotDownloaded, fmt.Sprintf("%s after %d attempts", a.ID, m.policy.MaxAttempts), lastErr)
}

// downloadOnce performs one transfer attempt: fetch to a temp file,
// verify the byte size, then rename into place atomically. A size
// mismatch is treated as corruption and the partial file is discarded.
func (m *Manager) downloadOnce(ctx context.Context, a Artifact, progress Progress) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("creating models dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", a.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	destPath := filepath.Join(m.dir, a.FileName)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{writer: f, total: resp.ContentLength, progress: progress}
	written, err := io.Copy(pw, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing model file: %w", err)
	}

	if written != a.SizeBytes {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: got %d bytes, want %d", ErrCorruptArtifact, written, a.SizeBytes)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving model file: %w", err)
	}

	return nil
}

// progressWriter wraps an io.Writer and reports transfer progress.
type progressWriter struct {
	writer   io.Writer
	total    int64
	written  int64
	progress Progress
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.progress != nil {
		pw.progress(pw.written, pw.total)
	}
	return n, err
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
