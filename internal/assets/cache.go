package assets

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mrlokans/offlinereader/internal/metrics"
)

var ErrInvalidPath = errors.New("invalid asset path")

// Cache keeps a disk copy of the server's static assets (stylesheets, scripts,
// fonts). Assets are served from disk first and fetched only on a miss.
type Cache struct {
	cacheDir   string
	baseURL    string
	httpClient *http.Client
}

// NewCache creates an asset cache at cacheDir for the server rooted at baseURL.
func NewCache(cacheDir, baseURL string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Cache{
		cacheDir: cacheDir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Get returns the local file for assetPath (relative to /static/), fetching it
// first if it is not cached. hit reports whether the network was skipped.
// header, when non-nil, is copied onto the upstream request.
func (c *Cache) Get(ctx context.Context, assetPath string, header http.Header) (file string, hit bool, err error) {
	clean, err := cleanAssetPath(assetPath)
	if err != nil {
		return "", false, err
	}

	cachePath := filepath.Join(c.cacheDir, c.assetFilename(clean))

	if _, err := os.Stat(cachePath); err == nil {
		metrics.AssetHits.Inc()
		return cachePath, true, nil
	}

	metrics.AssetMisses.Inc()
	if err := c.fetchAndCache(ctx, c.baseURL+"/static/"+clean, header, cachePath); err != nil {
		return "", false, err
	}

	return cachePath, false, nil
}

// Invalidate removes the cached copy of assetPath.
func (c *Cache) Invalidate(assetPath string) error {
	clean, err := cleanAssetPath(assetPath)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(c.cacheDir, c.assetFilename(clean)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Count returns the number of cached assets.
func (c *Cache) Count() (int, error) {
	matches, err := filepath.Glob(filepath.Join(c.cacheDir, "asset_*"))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// assetFilename keeps the extension so the file server can pick the content type.
func (c *Cache) assetFilename(assetPath string) string {
	hash := sha256.Sum256([]byte(assetPath))
	return fmt.Sprintf("asset_%x%s", hash[:12], path.Ext(assetPath))
}

func (c *Cache) fetchAndCache(ctx context.Context, url string, header http.Header, cachePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", "OfflineReader/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch asset: status %d", resp.StatusCode)
	}

	// Create temp file in same directory for atomic write
	tmpFile, err := os.CreateTemp(c.cacheDir, "tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // Clean up if we didn't rename
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return err
	}

	tmpFile.Close()

	return os.Rename(tmpPath, cachePath)
}

// CacheDir returns the cache directory path.
func (c *Cache) CacheDir() string {
	return c.cacheDir
}

func cleanAssetPath(p string) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" || clean == "." {
		return "", ErrInvalidPath
	}
	return clean, nil
}
