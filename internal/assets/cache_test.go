package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "assets")

	cache, err := NewCache(cacheDir, "http://example.invalid")
	require.NoError(t, err)
	assert.Equal(t, cacheDir, cache.CacheDir())

	_, err = os.Stat(cacheDir)
	assert.NoError(t, err, "cache directory should be created")
}

func TestGet_CacheFirst(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/reader/static/css/reader.css", r.URL.Path)
		assert.Equal(t, "llmreader_auth=abc", r.Header.Get("Cookie"))
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body{}"))
	}))
	defer server.Close()

	cache, err := NewCache(t.TempDir(), server.URL+"/reader/")
	require.NoError(t, err)
	ctx := context.Background()
	header := http.Header{"Cookie": []string{"llmreader_auth=abc"}}

	file, hit, err := cache.Get(ctx, "/css/reader.css", header)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, ".css", filepath.Ext(file))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	file2, hit, err := cache.Get(ctx, "css/reader.css", nil)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, file, file2)
	assert.Equal(t, int32(1), requests.Load())

	count, err := cache.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGet_ServedFromDiskWhileOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("console.log(1)"))
	}))
	cache, err := NewCache(t.TempDir(), server.URL)
	require.NoError(t, err)

	_, _, err = cache.Get(context.Background(), "app.js", nil)
	require.NoError(t, err)
	server.Close()

	_, hit, err := cache.Get(context.Background(), "app.js", nil)
	require.NoError(t, err)
	assert.True(t, hit)

	_, _, err = cache.Get(context.Background(), "other.js", nil)
	assert.Error(t, err)
}

func TestGet_FetchErrorIsNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache, err := NewCache(t.TempDir(), server.URL)
	require.NoError(t, err)

	_, _, err = cache.Get(context.Background(), "missing.css", nil)
	assert.Error(t, err)

	count, err := cache.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGet_RejectsEmptyPath(t *testing.T) {
	cache, err := NewCache(t.TempDir(), "http://example.invalid")
	require.NoError(t, err)

	_, _, err = cache.Get(context.Background(), "/", nil)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestInvalidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	cache, err := NewCache(t.TempDir(), server.URL)
	require.NoError(t, err)

	file, _, err := cache.Get(context.Background(), "fonts/a.woff2", nil)
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate("fonts/a.woff2"))
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, cache.Invalidate("fonts/a.woff2"), "invalidating twice is fine")
}

func TestAssetFilename(t *testing.T) {
	cache, err := NewCache(t.TempDir(), "http://example.invalid")
	require.NoError(t, err)

	assert.Equal(t, cache.assetFilename("a/b.css"), cache.assetFilename("a/b.css"))
	assert.NotEqual(t, cache.assetFilename("a/b.css"), cache.assetFilename("a/c.css"))
	assert.Equal(t, ".css", filepath.Ext(cache.assetFilename("a/b.css")))
}

func TestCleanAssetPath(t *testing.T) {
	tests := map[string]string{
		"css/x.css":        "css/x.css",
		"/css/x.css":       "css/x.css",
		"../../etc/passwd": "etc/passwd",
		"a/./b/../c.js":    "a/c.js",
	}
	for in, want := range tests {
		got, err := cleanAssetPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
