package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/outbox"
	"github.com/mrlokans/offlinereader/internal/settingsstore"
)

const jobTimeout = 10 * time.Minute

// Flusher replays the outbox.
type Flusher interface {
	FlushOutbox(ctx context.Context) (outbox.FlushResult, error)
}

// Cleaner applies the cache policies.
type Cleaner interface {
	RunCleanup(ctx context.Context) (maintenance.Result, error)
}

// StatusRecorder keeps the outcome of the last job runs.
type StatusRecorder interface {
	SetJobStatus(ctx context.Context, job settingsstore.Job, status, message string) error
}

// Config holds the schedules of the periodic jobs.
type Config struct {
	SyncEnabled     bool
	SyncSchedule    string
	CleanupSchedule string
}

// MaintenanceScheduler flushes the outbox and runs cache maintenance on cron
// schedules. A job that is still running when its next tick fires is skipped.
type MaintenanceScheduler struct {
	flusher Flusher
	cleaner Cleaner
	status  StatusRecorder
	config  Config

	cron           *cron.Cron
	syncEntryID    cron.EntryID
	cleanupEntryID cron.EntryID
	mu             sync.RWMutex
	isRunning      bool
	isSyncing      bool
	isCleaning     bool
	cancelFunc     context.CancelFunc
}

// NewMaintenanceScheduler creates a scheduler. status may be nil.
func NewMaintenanceScheduler(flusher Flusher, cleaner Cleaner, status StatusRecorder, cfg Config) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		flusher: flusher,
		cleaner: cleaner,
		status:  status,
		config:  cfg,
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start registers the jobs and starts the cron loop. Stopping ctx stops the scheduler.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := settingsstore.ValidateCronSchedule(s.config.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule '%s': %w", s.config.CleanupSchedule, err)
	}
	cleanupID, err := s.cron.AddFunc(s.config.CleanupSchedule, s.runCleanup)
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	s.cleanupEntryID = cleanupID

	if s.config.SyncEnabled {
		if err := settingsstore.ValidateCronSchedule(s.config.SyncSchedule); err != nil {
			s.cron.Remove(cleanupID)
			return fmt.Errorf("invalid sync schedule '%s': %w", s.config.SyncSchedule, err)
		}
		syncID, err := s.cron.AddFunc(s.config.SyncSchedule, s.runSync)
		if err != nil {
			s.cron.Remove(cleanupID)
			return fmt.Errorf("failed to schedule sync job: %w", err)
		}
		s.syncEntryID = syncID
		log.Printf("Maintenance scheduler: outbox flush '%s' (%s)",
			s.config.SyncSchedule, settingsstore.GetCronDescription(s.config.SyncSchedule))
	} else {
		log.Printf("Maintenance scheduler: outbox flush disabled")
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Maintenance scheduler: cleanup '%s' (%s)",
		s.config.CleanupSchedule, settingsstore.GetCronDescription(s.config.CleanupSchedule))

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	// Jobs take mu to flip their flags, so wait outside of it.
	ctx := s.cron.Stop()
	<-ctx.Done()
	if cancel != nil {
		cancel()
	}

	log.Printf("Maintenance scheduler: stopped")
}

// RunNow triggers both jobs immediately in the background.
func (s *MaintenanceScheduler) RunNow() {
	go s.runCleanup()
	if s.config.SyncEnabled {
		go s.runSync()
	}
}

// IsRunning returns whether the scheduler is active
func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSyncing returns whether an outbox flush started by the scheduler is in progress
func (s *MaintenanceScheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// NextRuns returns the next fire time of each scheduled job.
func (s *MaintenanceScheduler) NextRuns() map[settingsstore.Job]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := make(map[settingsstore.Job]time.Time)
	if !s.isRunning {
		return next
	}
	for _, entry := range s.cron.Entries() {
		switch entry.ID {
		case s.syncEntryID:
			next[settingsstore.JobSync] = entry.Next
		case s.cleanupEntryID:
			next[settingsstore.JobCleanup] = entry.Next
		}
	}
	return next
}

// begin flips a job flag and reports whether the caller may run.
func (s *MaintenanceScheduler) begin(flag *bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *flag {
		return false
	}
	*flag = true
	return true
}

func (s *MaintenanceScheduler) end(flag *bool) {
	s.mu.Lock()
	*flag = false
	s.mu.Unlock()
}

func (s *MaintenanceScheduler) runSync() {
	if !s.begin(&s.isSyncing) {
		log.Printf("Outbox sync: skipped (already syncing)")
		return
	}
	defer s.end(&s.isSyncing)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := s.flusher.FlushOutbox(ctx)
	switch {
	case errors.Is(err, outbox.ErrFlushInProgress):
		s.record(ctx, settingsstore.JobSync, settingsstore.StatusSkipped, "Flush already in progress")
	case err != nil:
		log.Printf("Outbox sync: %v", err)
		s.record(ctx, settingsstore.JobSync, settingsstore.StatusFailed, err.Error())
	default:
		msg := fmt.Sprintf("Sent %d, failed %d, skipped %d", result.Success, result.Failed, result.Skipped)
		s.record(ctx, settingsstore.JobSync, settingsstore.StatusSuccess, msg)
	}
}

func (s *MaintenanceScheduler) runCleanup() {
	if !s.begin(&s.isCleaning) {
		log.Printf("Cleanup: skipped (already running)")
		return
	}
	defer s.end(&s.isCleaning)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := s.cleaner.RunCleanup(ctx)
	if err != nil {
		log.Printf("Cleanup: %v", err)
		s.record(ctx, settingsstore.JobCleanup, settingsstore.StatusFailed, err.Error())
		return
	}
	msg := fmt.Sprintf("Expired %d, evicted %d", result.Expired, result.Evicted)
	s.record(ctx, settingsstore.JobCleanup, settingsstore.StatusSuccess, msg)
}

func (s *MaintenanceScheduler) record(ctx context.Context, job settingsstore.Job, status, message string) {
	if s.status == nil {
		return
	}
	if err := s.status.SetJobStatus(ctx, job, status, message); err != nil {
		log.Printf("Maintenance scheduler: failed to record %s status: %v", job, err)
	}
}
