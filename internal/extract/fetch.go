package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/labkit/internal/util"
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// DefaultUserAgent identifies labkit to remote servers
const DefaultUserAgent = "labkit/0.1 (+https://github.com/ppiankov/labkit)"

// FetchConfig configures remote document fetching
type FetchConfig struct {
	Timeout       time.Duration
	UserAgent     string
	MaxBytes      int64
	RespectRobots bool
	HTTPProxy     string
	HTTPSProxy    string
}

// FetchResult is a remote document reduced to text
type FetchResult struct {
	Text        string
	Name        string
	ContentType string
	FinalURL    string
}

// Fetcher downloads documents over HTTP and extracts their text
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
}

// NewFetcher creates a fetcher. Zero values fall back to a 30s timeout,
// DefaultUserAgent and a 2 MB body limit.
func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 2_000_000
	}

	client := util.NewHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.HTTPSProxy)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	f := &Fetcher{httpClient: client, userAgent: cfg.UserAgent, maxBytes: cfg.MaxBytes}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, client)
	}
	return f
}

// IsURL reports whether s looks like an http(s) URL
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch downloads rawURL and extracts its text. The format comes from the
// Content-Type header, falling back to the URL's extension.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, &ExtractionError{Path: rawURL, Err: err}
	}

	finalURL := resp.Request.URL.String()
	contentType := resp.Header.Get("Content-Type")
	ext := extensionFor(contentType, resp.Request.URL)
	if ext == "" {
		return nil, fmt.Errorf("%s (%s): %w", finalURL, contentType, ErrUnsupportedFormat)
	}

	text, err := ExtractReader("remote"+ext, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &FetchResult{
		Text:        text,
		Name:        documentName(resp.Request.URL),
		ContentType: contentType,
		FinalURL:    finalURL,
	}, nil
}

func extensionFor(contentType string, u *url.URL) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "text/html", "application/xhtml+xml":
			return ".html"
		case "application/pdf":
			return ".pdf"
		case "text/plain", "text/markdown":
			return ".txt"
		}
	}
	if ext := strings.ToLower(path.Ext(u.Path)); Supported("x" + ext) {
		return ext
	}
	return ""
}

// documentName turns a URL into a readable label: the last path segment
// de-slugified, or the host
func documentName(u *url.URL) string {
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return u.Host
	}

	last := p[strings.LastIndex(p, "/")+1:]
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}
	return strings.NewReplacer("_", " ", "-", " ").Replace(last)
}
