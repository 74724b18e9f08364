package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/outbox"
	"github.com/mrlokans/offlinereader/internal/settingsstore"
)

type fakeFlusher struct {
	calls   atomic.Int32
	result  outbox.FlushResult
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeFlusher) FlushOutbox(context.Context) (outbox.FlushResult, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	return f.result, f.err
}

type fakeCleaner struct {
	calls  atomic.Int32
	result maintenance.Result
	err    error
}

func (f *fakeCleaner) RunCleanup(context.Context) (maintenance.Result, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type statusEntry struct {
	job     settingsstore.Job
	status  string
	message string
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []statusEntry
}

func (r *fakeRecorder) SetJobStatus(_ context.Context, job settingsstore.Job, status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, statusEntry{job, status, message})
	return nil
}

func (r *fakeRecorder) last() statusEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return statusEntry{}
	}
	return r.entries[len(r.entries)-1]
}

func defaultConfig() Config {
	return Config{SyncEnabled: true, SyncSchedule: "*/5 * * * *", CleanupSchedule: "0 * * * *"}
}

func TestRunSync_RecordsResult(t *testing.T) {
	flusher := &fakeFlusher{result: outbox.FlushResult{Success: 2, Failed: 1}}
	recorder := &fakeRecorder{}
	s := NewMaintenanceScheduler(flusher, &fakeCleaner{}, recorder, defaultConfig())

	s.runSync()
	assert.Equal(t, statusEntry{settingsstore.JobSync, settingsstore.StatusSuccess, "Sent 2, failed 1, skipped 0"}, recorder.last())

	flusher.err = errors.New("database is closed")
	s.runSync()
	assert.Equal(t, statusEntry{settingsstore.JobSync, settingsstore.StatusFailed, "database is closed"}, recorder.last())

	flusher.err = outbox.ErrFlushInProgress
	s.runSync()
	assert.Equal(t, settingsstore.StatusSkipped, recorder.last().status)
	assert.False(t, s.IsSyncing())
}

func TestRunCleanup_RecordsResult(t *testing.T) {
	cleaner := &fakeCleaner{result: maintenance.Result{Expired: 1, Evicted: 2}}
	recorder := &fakeRecorder{}
	s := NewMaintenanceScheduler(&fakeFlusher{}, cleaner, recorder, defaultConfig())

	s.runCleanup()
	assert.Equal(t, statusEntry{settingsstore.JobCleanup, settingsstore.StatusSuccess, "Expired 1, evicted 2"}, recorder.last())

	cleaner.err = errors.New("locked")
	s.runCleanup()
	assert.Equal(t, settingsstore.StatusFailed, recorder.last().status)
}

func TestRunSync_SkipsOverlappingRun(t *testing.T) {
	flusher := &fakeFlusher{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewMaintenanceScheduler(flusher, &fakeCleaner{}, nil, defaultConfig())

	done := make(chan struct{})
	go func() {
		s.runSync()
		close(done)
	}()

	<-flusher.entered
	assert.True(t, s.IsSyncing())
	s.runSync()
	assert.Equal(t, int32(1), flusher.calls.Load(), "second run must be skipped")

	close(flusher.release)
	<-done
	assert.False(t, s.IsSyncing())
}

func TestStartStop(t *testing.T) {
	s := NewMaintenanceScheduler(&fakeFlusher{}, &fakeCleaner{}, nil, defaultConfig())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")

	next := s.NextRuns()
	assert.Contains(t, next, settingsstore.JobSync)
	assert.Contains(t, next, settingsstore.JobCleanup)
	assert.True(t, next[settingsstore.JobSync].After(time.Now()))

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Empty(t, s.NextRuns())
	s.Stop()
}

func TestStart_SyncDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.SyncEnabled = false
	cfg.SyncSchedule = "not a schedule"
	s := NewMaintenanceScheduler(&fakeFlusher{}, &fakeCleaner{}, nil, cfg)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	next := s.NextRuns()
	assert.NotContains(t, next, settingsstore.JobSync)
	assert.Contains(t, next, settingsstore.JobCleanup)
}

func TestStart_InvalidSchedule(t *testing.T) {
	cfg := defaultConfig()
	cfg.SyncSchedule = "every five minutes"
	s := NewMaintenanceScheduler(&fakeFlusher{}, &fakeCleaner{}, nil, cfg)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sync schedule")
	assert.False(t, s.IsRunning())

	cfg = defaultConfig()
	cfg.CleanupSchedule = "@@"
	s = NewMaintenanceScheduler(&fakeFlusher{}, &fakeCleaner{}, nil, cfg)
	assert.Error(t, s.Start(context.Background()))
}

func TestStop_OnContextCancel(t *testing.T) {
	s := NewMaintenanceScheduler(&fakeFlusher{}, &fakeCleaner{}, nil, defaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 10*time.Millisecond)
}

func TestRunNow(t *testing.T) {
	flusher := &fakeFlusher{}
	cleaner := &fakeCleaner{}
	s := NewMaintenanceScheduler(flusher, cleaner, nil, defaultConfig())

	s.RunNow()
	assert.Eventually(t, func() bool {
		return flusher.calls.Load() == 1 && cleaner.calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
