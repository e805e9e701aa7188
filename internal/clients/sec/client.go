// Package sec provides a rate-limited, cached client for SEC EDGAR
package sec

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomhaines/filingfacts/internal/common"
	"github.com/tomhaines/filingfacts/internal/interfaces"
	"github.com/tomhaines/filingfacts/internal/models"
)

const (
	DefaultBaseURL     = "https://www.sec.gov"
	DefaultDataBaseURL = "https://data.sec.gov"
	DefaultTimeout     = 30 * time.Second
	DefaultRateLimit   = 3 // requests per second
	DefaultCacheDir    = ".cache/sec"

	// Download budgets. Both are enforced on the network path only.
	DefaultMaxArtifactBytes = 25 << 20  // per-artifact cap
	DefaultMaxRunBytes      = 200 << 20 // cumulative per-run cap
)

// Client fetches SEC EDGAR artifacts with throttling, byte budgets and a
// persistent on-disk cache. Cache hits bypass the throttle and both budgets.
// One instance holds the run's byte/request counters; it is not designed for
// concurrent callers sharing a cache path.
type Client struct {
	baseURL     string
	dataBaseURL string
	userAgent   string
	cacheDir    string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *common.Logger

	maxArtifactBytes int64
	maxRunBytes      int64

	mu              sync.Mutex
	bytesDownloaded int64
	requestCount    int
	artifacts       map[string][]string // accession (no dashes) -> artifact names
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURLs sets the archive and data API base URLs
func WithBaseURLs(baseURL, dataBaseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
		c.dataBaseURL = dataBaseURL
	}
}

// WithCacheDir sets the on-disk cache directory
func WithCacheDir(dir string) ClientOption {
	return func(c *Client) {
		c.cacheDir = dir
	}
}

// WithRateLimit sets the request rate limit in requests per second
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithByteBudgets sets the per-artifact and cumulative per-run download caps
func WithByteBudgets(maxArtifactBytes, maxRunBytes int64) ClientOption {
	return func(c *Client) {
		c.maxArtifactBytes = maxArtifactBytes
		c.maxRunBytes = maxRunBytes
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new SEC client. The user agent identity is a hard
// precondition of the SEC's access policy and must not be empty.
func New(userAgent string, opts ...ClientOption) (*Client, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("sec: user agent identity is required (set SEC_USER_AGENT)")
	}

	c := &Client{
		baseURL:     DefaultBaseURL,
		dataBaseURL: DefaultDataBaseURL,
		userAgent:   userAgent,
		cacheDir:    DefaultCacheDir,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			// Accept-Encoding is set explicitly so bodies arrive as sent;
			// decoding is handled by decodeBody.
			Transport: &http.Transport{DisableCompression: true},
		},
		limiter:          rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		logger:           common.NewSilentLogger(),
		maxArtifactBytes: DefaultMaxArtifactBytes,
		maxRunBytes:      DefaultMaxRunBytes,
		artifacts:        make(map[string][]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("sec: create cache dir %s: %w", c.cacheDir, err)
	}

	return c, nil
}

// APIError represents a non-200 response from SEC EDGAR
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("SEC API error: status %d for %s", e.StatusCode, e.URL)
}

// BudgetError reports a violated download budget. Budget violations indicate
// misconfiguration and are fatal to the run.
type BudgetError struct {
	Cumulative bool
	Artifact   string // offending URL
	Bytes      int64  // artifact size, or running total for cumulative violations
	Cap        int64
}

func (e *BudgetError) Error() string {
	if e.Cumulative {
		return fmt.Sprintf("sec: run download budget exceeded: %d bytes total after %s (cap %d)", e.Bytes, e.Artifact, e.Cap)
	}
	return fmt.Sprintf("sec: artifact exceeds size cap of %d bytes: %s", e.Cap, e.Artifact)
}

// Get retrieves a URL, consulting the on-disk cache when useCache is set.
// Cached entries written by older versions may still be gzip-compressed;
// decodeBody sniffs and handles those transparently.
func (c *Client) Get(ctx context.Context, url string, useCache bool) ([]byte, error) {
	cachePath := c.cachePath(url)
	if useCache {
		if data, err := os.ReadFile(cachePath); err == nil {
			return decodeBody(data, "", "cache="+cachePath)
		}
	}

	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err == nil {
		if err := os.WriteFile(cachePath, data, 0o644); err != nil {
			c.logger.Warn().Str("path", cachePath).Err(err).Msg("cache write failed")
		}
	}

	return data, nil
}

// GetJSON retrieves a URL and decodes the JSON response into v
func (c *Client) GetJSON(ctx context.Context, url string, useCache bool, v any) error {
	data, err := c.Get(ctx, url, useCache)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("sec: decode JSON from %s: %w", url, err)
	}
	return nil
}

// GetText retrieves a URL as UTF-8 text
func (c *Client) GetText(ctx context.Context, url string, useCache bool) (string, error) {
	data, err := c.Get(ctx, url, useCache)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// fetch performs one throttled, budgeted network request.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sec: rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("sec: build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	c.logger.Debug().Str("url", url).Msg("SEC request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sec: request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxArtifactBytes+1))
	if err != nil {
		return nil, fmt.Errorf("sec: read response from %s: %w", url, err)
	}
	if int64(len(body)) > c.maxArtifactBytes {
		return nil, &BudgetError{Artifact: url, Bytes: c.maxArtifactBytes, Cap: c.maxArtifactBytes}
	}

	c.mu.Lock()
	c.bytesDownloaded += int64(len(body))
	c.requestCount++
	total := c.bytesDownloaded
	c.mu.Unlock()

	if total > c.maxRunBytes {
		return nil, &BudgetError{Cumulative: true, Artifact: url, Bytes: total, Cap: c.maxRunBytes}
	}

	c.recordArtifact(url)

	return decodeBody(body, resp.Header.Get("Content-Encoding"), "url="+url)
}

var gzipMagic = []byte{0x1f, 0x8b}

// decodeBody normalizes a response body according to its stated content
// encoding, sniffing the gzip signature when no encoding is given. A
// decompression failure is a hard error carrying the failing context.
func decodeBody(data []byte, contentEncoding, context string) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		return gunzip(data, context)
	case "deflate":
		if out, err := inflateZlib(data); err == nil {
			return out, nil
		}
		// Some servers send raw deflate streams without the zlib wrapper.
		out, err := io.ReadAll(flate.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("sec: decompress response for %s (Content-Encoding=deflate): %w", context, err)
		}
		return out, nil
	case "":
		if bytes.HasPrefix(data, gzipMagic) {
			return gunzip(data, context)
		}
		return data, nil
	default:
		return data, nil
	}
}

func gunzip(data []byte, context string) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("sec: decompress response for %s (Content-Encoding=gzip): %w", context, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("sec: decompress response for %s (Content-Encoding=gzip): %w", context, err)
	}
	return out, nil
}

func inflateZlib(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// archiveArtifactRe matches EDGAR archive artifact URLs so downloads can be
// attributed to the filing that pulled them.
var archiveArtifactRe = regexp.MustCompile(`/Archives/edgar/data/\d+/(\d+)/([^/?#]+)$`)

func (c *Client) recordArtifact(url string) {
	m := archiveArtifactRe.FindStringSubmatch(url)
	if m == nil {
		return
	}
	c.mu.Lock()
	c.artifacts[m[1]] = append(c.artifacts[m[1]], m[2])
	c.mu.Unlock()
}

// Stats reports cumulative bytes, request count and the per-filing artifact
// map for end-of-run reporting.
func (c *Client) Stats() models.ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	artifacts := make(map[string][]string, len(c.artifacts))
	for accession, names := range c.artifacts {
		artifacts[accession] = append([]string(nil), names...)
	}
	return models.ClientStats{
		BytesDownloaded:   c.bytesDownloaded,
		RequestCount:      c.requestCount,
		ArtifactsByFiling: artifacts,
	}
}

// MaxArtifactBytes returns the per-artifact download cap.
func (c *Client) MaxArtifactBytes() int64 {
	return c.maxArtifactBytes
}

// ArchiveURL builds the EDGAR archive URL for one filing artifact.
func (c *Client) ArchiveURL(cik, accession, name string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s", c.baseURL, stripLeadingZeros(cik), stripDashes(accession), name)
}

func stripDashes(accession string) string {
	return strings.ReplaceAll(accession, "-", "")
}

func stripLeadingZeros(cik string) string {
	trimmed := strings.TrimLeft(cik, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// Ensure Client implements SECClient
var _ interfaces.SECClient = (*Client)(nil)
