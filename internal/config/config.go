package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Remote
		Database
		Assets
		Global
		Sync
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Remote struct {
		URL      string // Reader server root, including its mount path
		Password string // Optional; sent to /login when set
		Timeout  time.Duration
	}
	Database struct {
		Path string
	}
	Assets struct {
		Dir string // Disk cache for /static assets
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Sync struct {
		Enabled         bool
		Schedule        string // Cron format: "*/5 * * * *" = every 5 minutes
		CleanupSchedule string // Cron format: "0 * * * *" = hourly
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

// LoadEnvFiles reads .env and .env.local into the environment. Missing files
// are ignored; variables already set win.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8124)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("remote_url", DefaultRemoteURL)
	v.SetDefault("remote_password", "")
	v.SetDefault("remote_timeout", "30s")
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("assets_dir", DefaultAssetsDir)

	// Background jobs
	v.SetDefault("sync_enabled", true)
	v.SetDefault("sync_schedule", "*/5 * * * *")  // Every 5 minutes
	v.SetDefault("cleanup_schedule", "0 * * * *") // Hourly at :00

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Remote: Remote{
			URL:      v.GetString("REMOTE_URL"),
			Password: v.GetString("REMOTE_PASSWORD"),
			Timeout:  v.GetDuration("REMOTE_TIMEOUT"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Assets: Assets{
			Dir: v.GetString("ASSETS_DIR"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Sync: Sync{
			Enabled:         v.GetBool("SYNC_ENABLED"),
			Schedule:        v.GetString("SYNC_SCHEDULE"),
			CleanupSchedule: v.GetString("CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}
