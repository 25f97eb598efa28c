// Package feed fetches the recent-photos feed and reduces it to an ordered
// list of image URLs.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"flickrgallery/internal/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultEndpoint = "https://api.flickr.com/services/rest/"
	DefaultPerPage  = 20
	DefaultTimeout  = 15 * time.Second

	recentMethod   = "flickr.photos.getRecent"
	maxBodyBytes   = 4 << 20
	defaultExtras  = "url_s"
	flickrStatusOK = "ok"

	failureLogInterval = time.Minute
)

// ErrNetworkFetch wraps every failure returned by FetchRemoteList.
var ErrNetworkFetch = errors.New("feed: fetch failed")

// Config selects the feed endpoint and page.
type Config struct {
	Endpoint  string
	APIKey    string
	PerPage   int
	Page      int
	Timeout   time.Duration
	UserAgent string
}

// Client fetches Flickr's recent photos. It remembers the validators of the
// last good response and sends them back, so an unchanged feed costs a 304.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger

	failures *ratelimit.Counter

	mu           sync.Mutex
	etag         string
	lastModified string
	lastURLs     []string
}

func NewClient(cfg Config, httpClient *http.Client, logger *log.Logger) *Client {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.Page <= 0 {
		cfg.Page = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cfg:      cfg,
		http:     httpClient,
		logger:   logger,
		failures: ratelimit.NewCounter(failureLogInterval),
	}
}

// RequestURL returns the fully-qualified feed URL.
func (c *Client) RequestURL() (string, error) {
	base, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := base.Query()
	q.Set("method", recentMethod)
	q.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	q.Set("page", strconv.Itoa(c.cfg.Page))
	q.Set("api_key", c.cfg.APIKey)
	q.Set("format", "json")
	q.Set("nojsoncallback", "1")
	q.Set("extras", defaultExtras)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// FetchRemoteList returns the feed's image URLs in feed order. An empty list
// is a valid result. Every failure wraps ErrNetworkFetch.
func (c *Client) FetchRemoteList(ctx context.Context) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil client", ErrNetworkFetch)
	}
	urls, err := c.fetch(ctx)
	if err != nil {
		if total, suppressed, ok := c.failures.Inc(); ok {
			c.logf("feed: %v (failures=%d, %d not logged)", err, total, suppressed)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkFetch, err)
	}
	c.failures.Reset()
	return urls, nil
}

func (c *Client) fetch(parent context.Context) ([]string, error) {
	target, err := c.RequestURL()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(parent, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	c.mu.Lock()
	etag, lastModified, cached := c.etag, c.lastModified, c.lastURLs
	c.mu.Unlock()
	if cached != nil {
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		if lastModified != "" {
			req.Header.Set("If-Modified-Since", lastModified)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		return append([]string(nil), cached...), nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	urls, err := ParseRecent(body)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.etag = resp.Header.Get("ETag")
	c.lastModified = resp.Header.Get("Last-Modified")
	c.lastURLs = append([]string(nil), urls...)
	c.mu.Unlock()
	return urls, nil
}

type recentResponse struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Photos  *struct {
		Page  int           `json:"page"`
		Pages int           `json:"pages"`
		Photo []recentPhoto `json:"photo"`
	} `json:"photos"`
}

type recentPhoto struct {
	ID       string `json:"id"`
	SmallURL string `json:"url_s"`
}

// ParseRecent extracts url_s values from a getRecent JSON response, keeping
// feed order and duplicates. Photos without url_s are skipped.
func ParseRecent(body []byte) ([]string, error) {
	var resp recentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Stat != flickrStatusOK {
		if resp.Message != "" {
			return nil, fmt.Errorf("api error %d: %s", resp.Code, resp.Message)
		}
		return nil, fmt.Errorf("api status %q", resp.Stat)
	}
	if resp.Photos == nil {
		return nil, errors.New("response has no photos")
	}
	urls := make([]string, 0, len(resp.Photos.Photo))
	for _, p := range resp.Photos.Photo {
		u := strings.TrimSpace(p.SmallURL)
		if u == "" {
			continue
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (c *Client) logf(format string, args ...any) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}
