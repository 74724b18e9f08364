// Package offline serves reader pages through the local listener. Chapters and
// images go to the server first and fall back to the local store when the
// server cannot be reached; static assets are served from disk first.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/offlinereader/internal/entities"
	"github.com/mrlokans/offlinereader/internal/metrics"
)

// CacheHeader is set on every response produced from local data.
const CacheHeader = "X-Offline-Cache"

const defaultUpstreamTimeout = 15 * time.Second

// errUpstreamUnavailable covers transport errors and 5xx answers.
var errUpstreamUnavailable = errors.New("upstream unavailable")

// Store is the read side of the persistent store.
type Store interface {
	GetBook(ctx context.Context, id string) (*entities.Book, error)
	GetChapter(ctx context.Context, bookID string, index int) (*entities.Chapter, error)
	GetImage(ctx context.Context, bookID, path string) (*entities.Image, error)
	TouchBook(ctx context.Context, id string, at time.Time) error
}

// AssetCache returns a local file for a static asset.
type AssetCache interface {
	Get(ctx context.Context, assetPath string, header http.Header) (file string, hit bool, err error)
}

// Interceptor proxies reader requests and substitutes cached content.
type Interceptor struct {
	store    Store
	assets   AssetCache
	upstream *url.URL
	client   *http.Client
	now      func() time.Time
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithHTTPClient replaces the client used for upstream requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(i *Interceptor) {
		i.client = hc
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Interceptor) {
		i.now = now
	}
}

// NewInterceptor creates an interceptor in front of the server rooted at upstreamURL.
func NewInterceptor(store Store, assets AssetCache, upstreamURL string, opts ...Option) (*Interceptor, error) {
	u, err := url.Parse(strings.TrimRight(upstreamURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", upstreamURL)
	}

	i := &Interceptor{
		store:    store,
		assets:   assets,
		upstream: u,
		client: &http.Client{
			Timeout: defaultUpstreamTimeout,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	// Redirects (e.g. to the login page) are handed to the browser unchanged.
	client := *i.client
	client.Jar = nil
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	i.client = &client
	return i, nil
}

// RegisterRoutes mounts the reader routes. Everything else the router does not
// know is passed through to the server.
func (i *Interceptor) RegisterRoutes(r *gin.Engine) {
	r.GET("/read/:book_id", i.ReadChapter)
	r.GET("/read/:book_id/*rest", i.read)
	r.GET("/static/*path", i.StaticAsset)
	r.NoRoute(i.Passthrough)
}

// read dispatches /read/:book_id/... to the chapter or image handler.
func (i *Interceptor) read(c *gin.Context) {
	rest := strings.TrimPrefix(c.Param("rest"), "/")
	switch {
	case rest == "":
		i.ReadChapter(c)
	case strings.HasPrefix(rest, "images/"):
		i.ReadImage(c)
	case !strings.Contains(rest, "/"):
		i.ReadChapter(c)
	default:
		i.Passthrough(c)
	}
}

// ReadChapter handles GET /read/:book_id[/:chapter_index], network first.
func (i *Interceptor) ReadChapter(c *gin.Context) {
	bookID := c.Param("book_id")
	rawIndex := strings.TrimPrefix(c.Param("rest"), "/")
	if rawIndex == "" {
		rawIndex = "0"
	}

	resp, err := i.forward(c)
	if err == nil {
		defer resp.Body.Close()
		metrics.ReadsFromNetwork.Inc()
		if resp.StatusCode < 300 {
			i.touch(c.Request.Context(), bookID)
		}
		i.copyResponse(c, resp)
		return
	}
	discard(resp)
	log.Printf("[OFFLINE] Chapter %s/%s from cache: %v", bookID, rawIndex, err)

	index, convErr := strconv.Atoi(rawIndex)
	if convErr != nil || index < 0 {
		i.unavailable(c, "chapter")
		return
	}

	ctx := c.Request.Context()
	book, err := i.store.GetBook(ctx, bookID)
	if err != nil {
		i.storeError(c, err)
		return
	}
	if book == nil || book.PendingDeletion {
		i.unavailable(c, "chapter")
		return
	}
	chapter, err := i.store.GetChapter(ctx, bookID, index)
	if err != nil {
		i.storeError(c, err)
		return
	}
	if chapter == nil {
		i.unavailable(c, "chapter")
		return
	}

	page, err := renderShell(book, chapter)
	if err != nil {
		i.storeError(c, err)
		return
	}
	i.touch(ctx, bookID)
	metrics.ReadsFromCache.Inc()

	c.Header(CacheHeader, "hit")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// ReadImage handles GET /read/:book_id/images/:name, network first.
func (i *Interceptor) ReadImage(c *gin.Context) {
	bookID := c.Param("book_id")

	resp, err := i.forward(c)
	if err == nil {
		defer resp.Body.Close()
		metrics.ReadsFromNetwork.Inc()
		i.copyResponse(c, resp)
		return
	}
	discard(resp)

	ctx := c.Request.Context()
	for _, key := range imageKeys(c.Request.URL.Path, path.Base(c.Param("rest"))) {
		img, err := i.store.GetImage(ctx, bookID, key)
		if err != nil {
			i.storeError(c, err)
			return
		}
		if img == nil {
			continue
		}
		metrics.ReadsFromCache.Inc()
		mimeType := img.MimeType
		if mimeType == "" {
			mimeType = http.DetectContentType(img.Data)
		}
		c.Header(CacheHeader, "hit")
		c.Data(http.StatusOK, mimeType, img.Data)
		return
	}

	log.Printf("[OFFLINE] Image %s not cached: %v", c.Request.URL.Path, err)
	i.unavailable(c, "image")
}

// imageKeys lists the store paths an image request may have been saved under.
func imageKeys(requestPath, name string) []string {
	return []string{
		requestPath,
		strings.TrimPrefix(requestPath, "/"),
		"images/" + name,
	}
}

// StaticAsset handles GET /static/*path, cache first.
func (i *Interceptor) StaticAsset(c *gin.Context) {
	if i.assets == nil {
		i.Passthrough(c)
		return
	}

	file, hit, err := i.assets.Get(c.Request.Context(), c.Param("path"), forwardHeaders(c.Request))
	if err != nil {
		log.Printf("[OFFLINE] Asset %s unavailable: %v", c.Param("path"), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "asset unavailable"})
		return
	}
	if hit {
		c.Header(CacheHeader, "hit")
	} else {
		c.Header(CacheHeader, "miss")
	}
	c.File(file)
}

// Passthrough forwards any other request to the server without fallback.
func (i *Interceptor) Passthrough(c *gin.Context) {
	resp, err := i.forward(c)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			i.copyResponse(c, resp)
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "server unreachable"})
		return
	}
	defer resp.Body.Close()
	i.copyResponse(c, resp)
}

// forward sends the incoming request to the server. A transport error or a
// 5xx answer returns errUpstreamUnavailable; for 5xx the response is returned
// too so a caller without a fallback can relay it.
func (i *Interceptor) forward(c *gin.Context) (*http.Response, error) {
	target := *i.upstream
	target.Path = i.upstream.Path + c.Request.URL.Path
	target.RawQuery = c.Request.URL.RawQuery

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target.String(), c.Request.Body)
	if err != nil {
		return nil, err
	}
	req.Header = forwardHeaders(c.Request)
	if ct := c.Request.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	req.ContentLength = c.Request.ContentLength

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUpstreamUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return resp, fmt.Errorf("%w: status %d", errUpstreamUnavailable, resp.StatusCode)
	}
	return resp, nil
}

// forwardHeaders keeps the headers the server needs, including the auth cookie.
func forwardHeaders(r *http.Request) http.Header {
	h := http.Header{}
	for _, key := range []string{"Cookie", "Accept", "Accept-Language", "User-Agent", "If-None-Match", "If-Modified-Since"} {
		for _, v := range r.Header.Values(key) {
			h.Add(key, v)
		}
	}
	return h
}

var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Content-Length":    true,
}

func (i *Interceptor) copyResponse(c *gin.Context, resp *http.Response) {
	for key, values := range resp.Header {
		if hopHeaders[key] {
			continue
		}
		for _, v := range values {
			if key == "Location" {
				v = i.localLocation(v)
			}
			c.Writer.Header().Add(key, v)
		}
	}
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		log.Printf("[OFFLINE] Relaying %s failed: %v", c.Request.URL.Path, err)
	}
}

// localLocation strips the server's mount prefix from redirect targets.
func (i *Interceptor) localLocation(location string) string {
	prefix := i.upstream.Path
	if prefix == "" {
		return location
	}
	if strings.HasPrefix(location, i.upstream.Scheme+"://"+i.upstream.Host) {
		location = strings.TrimPrefix(location, i.upstream.Scheme+"://"+i.upstream.Host)
	}
	if location == prefix || strings.HasPrefix(location, prefix+"/") {
		if trimmed := strings.TrimPrefix(location, prefix); trimmed != "" {
			return trimmed
		}
		return "/"
	}
	return location
}

func discard(resp *http.Response) {
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func (i *Interceptor) touch(ctx context.Context, bookID string) {
	if err := i.store.TouchBook(ctx, bookID, i.now()); err != nil {
		log.Printf("[OFFLINE] Could not update last read of %s: %v", bookID, err)
	}
}

func (i *Interceptor) unavailable(c *gin.Context, what string) {
	metrics.ReadsMissed.Inc()
	c.JSON(http.StatusNotFound, gin.H{"error": what + " unavailable offline"})
}

func (i *Interceptor) storeError(c *gin.Context, err error) {
	log.Printf("[OFFLINE] Store error on %s: %v", c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
