package config

const (
	// DefaultDatabasePath is the default path for the offline store
	DefaultDatabasePath = "./offline-reader.db"

	// DefaultAssetsDir is where cached static assets are kept
	DefaultAssetsDir = "./offline-assets"

	// DefaultRemoteURL is the reader server as deployed behind its /reader mount
	DefaultRemoteURL = "http://127.0.0.1:8123/reader"
)
