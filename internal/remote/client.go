package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

// Client talks to the reader server the local cache mirrors.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is
// attached if the client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc.Jar == nil {
			hc.Jar = c.httpClient.Jar
		}
		c.httpClient = hc
	}
}

// NewClient creates a client for the server rooted at baseURL,
// e.g. http://127.0.0.1:8123/reader.
func NewClient(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient exposes the underlying client so proxies share its cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// OfflinePackage is the server's serialized form of a whole book.
type OfflinePackage struct {
	Metadata PackageMetadata  `json:"metadata"`
	SpineLen int              `json:"spine_len"`
	TOC      json.RawMessage  `json:"toc"`
	Spine    []PackageSpine   `json:"spine"`
	Chapters []PackageChapter `json:"chapters"`
	Images   []PackageImage   `json:"images"`
}

// PackageMetadata holds the descriptive part of a package.
type PackageMetadata struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
}

// PackageSpine is one entry of the reading order.
type PackageSpine struct {
	Index int    `json:"index"`
	Href  string `json:"href"`
	Title string `json:"title"`
}

// PackageChapter is a rendered chapter.
type PackageChapter struct {
	Index int    `json:"index"`
	Href  string `json:"href"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// PackageImage names an image to fetch separately.
type PackageImage struct {
	Path string `json:"path"`
}

// Login posts the password form. The server answers with the auth cookie,
// which the jar keeps for subsequent requests.
func (c *Client) Login(ctx context.Context, password string) error {
	form := url.Values{}
	form.Set("password", password)
	form.Set("next", "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// The server redirects after a successful login; the cookie is on the 302.
	hc := *c.httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return newStatusError(req, resp)
	}
	return nil
}

// GetOfflinePackage downloads the bundle for one book.
func (c *Client) GetOfflinePackage(ctx context.Context, bookID string) (*OfflinePackage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/books/"+url.PathEscape(bookID)+"/offline-package", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var pkg OfflinePackage
	if err := json.NewDecoder(resp.Body).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("failed to decode offline package: %w", err)
	}
	return &pkg, nil
}

// FetchImage downloads an image and returns its bytes and content type.
func (c *Client) FetchImage(ctx context.Context, path string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %s: %w", path, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// CreateHighlight posts a new highlight for a book.
func (c *Client) CreateHighlight(ctx context.Context, bookID string, payload json.RawMessage) error {
	return c.send(ctx, http.MethodPost, "/api/books/"+url.PathEscape(bookID)+"/highlights", payload)
}

// UpdateHighlight updates an existing highlight (currently its note).
func (c *Client) UpdateHighlight(ctx context.Context, highlightID string, payload json.RawMessage) error {
	return c.send(ctx, http.MethodPut, "/api/highlights/"+url.PathEscape(highlightID), payload)
}

// DeleteHighlight removes a highlight.
func (c *Client) DeleteHighlight(ctx context.Context, highlightID string) error {
	return c.send(ctx, http.MethodDelete, "/api/highlights/"+url.PathEscape(highlightID), nil)
}

// UpdateProgress stores the reading position of a book.
func (c *Client) UpdateProgress(ctx context.Context, bookID string, payload json.RawMessage) error {
	return c.send(ctx, http.MethodPut, "/api/books/"+url.PathEscape(bookID)+"/progress", payload)
}

func (c *Client) send(ctx context.Context, method, path string, payload json.RawMessage) error {
	resp, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// do performs the request and returns the response for 2xx statuses only.
// The caller owns the body.
func (c *Client) do(ctx context.Context, method, path string, payload json.RawMessage) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newStatusError(req, resp)
	}
	return resp, nil
}

// resolve turns a server-relative path into an absolute URL. Absolute URLs
// pass through unchanged.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
