package settingsstore

import (
	"context"
	"time"

	"github.com/mrlokans/offlinereader/internal/entities"
)

// Settings is the key/value part of the persistent store.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Job names a background job whose last outcome is recorded.
type Job string

const (
	JobSync    Job = "sync"
	JobCleanup Job = "cleanup"
)

// Status values of a job run.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type jobKeys struct {
	lastAt, status, message string
}

var keysByJob = map[Job]jobKeys{
	JobSync: {
		lastAt:  entities.SettingKeySyncLastAt,
		status:  entities.SettingKeySyncLastStatus,
		message: entities.SettingKeySyncLastMessage,
	},
	JobCleanup: {
		lastAt:  entities.SettingKeyCleanupLastAt,
		status:  entities.SettingKeyCleanupLastStatus,
		message: entities.SettingKeyCleanupLastMessage,
	},
}

// JobStatus is the outcome of the last run of a job.
type JobStatus struct {
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Status    string     `json:"status,omitempty"`  // "success", "failed", "skipped", ""
	Message   string     `json:"message,omitempty"` // error message or stats summary
}

type SettingsStore struct {
	db  Settings
	now func() time.Time
}

func New(db Settings) *SettingsStore {
	return &SettingsStore{db: db, now: time.Now}
}

// GetJobStatus returns the last recorded run of job. Missing or unreadable
// values are left empty.
func (s *SettingsStore) GetJobStatus(ctx context.Context, job Job) JobStatus {
	keys := keysByJob[job]
	status := JobStatus{}

	if value, err := s.db.GetSetting(ctx, keys.lastAt); err == nil && value != "" {
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			status.LastRunAt = &ts
		}
	}

	if value, err := s.db.GetSetting(ctx, keys.status); err == nil {
		status.Status = value
	}

	if value, err := s.db.GetSetting(ctx, keys.message); err == nil {
		status.Message = value
	}

	return status
}

// SetJobStatus records the outcome of a job run at the current time.
func (s *SettingsStore) SetJobStatus(ctx context.Context, job Job, status, message string) error {
	keys := keysByJob[job]
	now := s.now().UTC().Format(time.RFC3339)

	if err := s.db.SetSetting(ctx, keys.lastAt, now); err != nil {
		return err
	}
	if err := s.db.SetSetting(ctx, keys.status, status); err != nil {
		return err
	}
	return s.db.SetSetting(ctx, keys.message, message)
}
