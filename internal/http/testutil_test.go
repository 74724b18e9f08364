package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/offlinereader/internal/database"
	"github.com/mrlokans/offlinereader/internal/download"
	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/outbox"
	"github.com/mrlokans/offlinereader/internal/remote"
)

type apiFixture struct {
	db       *database.Database
	engine   *maintenance.Engine
	orch     *download.Orchestrator
	outbox   *outbox.Manager
	server   *fakeServer
	upstream *httptest.Server
}

// fakeServer stands in for the reading server: offline packages by book id
// and the mutation endpoints, which record every call.
type fakeServer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/offline-package") {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/books/"), "/offline-package")
		switch id {
		case "missing":
			http.Error(w, "no such book", http.StatusNotFound)
		case "broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			_, _ = fmt.Fprintf(w, `{"metadata":{"title":"Title %s","authors":["Ada"]},"spine_len":2,`+
				`"spine":[{"index":0,"href":"c0.html","title":"Zero"},{"index":1,"href":"c1.html","title":"One"}],`+
				`"chapters":[{"index":0,"href":"c0.html","title":"Zero","html":"<p>0</p>"},{"index":1,"href":"c1.html","title":"One","html":"<p>1</p>"}],`+
				`"images":[]}`, id)
		}
		return
	}

	_, _ = io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeServer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()

	db := database.New(filepath.Join(t.TempDir(), "store.db"), database.WithLogLevel(logger.Silent))
	t.Cleanup(func() { _ = db.Close() })

	server := &fakeServer{}
	upstream := httptest.NewServer(server)
	t.Cleanup(upstream.Close)

	client := remote.NewClient(upstream.URL)
	engine := maintenance.NewEngine(db)

	return &apiFixture{
		db:       db,
		engine:   engine,
		orch:     download.NewOrchestrator(db, engine, client),
		outbox:   outbox.NewManager(db, client),
		server:   server,
		upstream: upstream,
	}
}

func (f *apiFixture) router(t *testing.T) *gin.Engine {
	t.Helper()
	return NewRouter(RouterConfig{
		Database:     f.db,
		Engine:       f.engine,
		Orchestrator: f.orch,
		Outbox:       f.outbox,
		Version:      "test",
	})
}

func perform(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// fakeQueue records enqueued tasks.
type fakeQueue struct {
	mu         sync.Mutex
	tasks      []backlite.Task
	status     backlite.TaskStatus
	enqueueErr error
}

func (q *fakeQueue) Enqueue(task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	q.tasks = append(q.tasks, task)
	return fmt.Sprintf("task-%d", len(q.tasks)), nil
}

func (q *fakeQueue) Status(context.Context, string) (backlite.TaskStatus, error) {
	return q.status, nil
}
