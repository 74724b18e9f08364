package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/offlinereader/internal/database"
	"github.com/mrlokans/offlinereader/internal/entities"
)

// setupEnv points the commands at a temp store and a fake server.
func setupEnv(t *testing.T) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/offline-package") {
			id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/books/"), "/offline-package")
			_, _ = fmt.Fprintf(w, `{"metadata":{"title":"Title %s","authors":["Ada"]},"spine_len":1,`+
				`"spine":[{"index":0,"href":"c.html","title":"c"}],`+
				`"chapters":[{"index":0,"href":"c.html","title":"c","html":"<p>x</p>"}],"images":[]}`, id)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	dbPath := filepath.Join(t.TempDir(), "store.db")
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("REMOTE_URL", server.URL)
	t.Setenv("REMOTE_PASSWORD", "")
	return dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})
	err := RootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "offlinereader v"+Version+"\n", out)
}

func TestBooksCommand_Empty(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "books")
	require.NoError(t, err)
	assert.Contains(t, out, "No books cached.")
}

func TestDownloadListRemove(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "download", "--quiet", "b1")
	require.NoError(t, err)
	assert.Contains(t, out, "Downloaded b1: 1 chapters, 0 images")

	out, err = run(t, "books")
	require.NoError(t, err)
	assert.Contains(t, out, "b1\tTitle b1\tAda")

	out, err = run(t, "remove", "b1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed b1")

	_, err = run(t, "remove", "b1")
	assert.Error(t, err)
}

func TestDownloadCommand_RequiresBookID(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "download")
	assert.Error(t, err)
}

func TestFlushCommand(t *testing.T) {
	dbPath := setupEnv(t)

	db := database.New(dbPath, database.WithLogLevel(logger.Silent))
	require.NoError(t, db.AddOutboxItem(context.Background(), &entities.OutboxItem{
		Type:    entities.OutboxProgressUpdate,
		BookID:  "b1",
		Payload: []byte(`{"chapter_index":1}`),
	}))
	require.NoError(t, db.Close())

	out, err := run(t, "flush")
	require.NoError(t, err)
	assert.Contains(t, out, "success 1, failed 0, skipped 0")
}

func TestCleanupCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "expired 0, evicted 0")
}
