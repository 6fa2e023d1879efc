package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultBaseURL        = "https://huggingface.co"
	DefaultRevision       = "main"
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 1 * time.Second
	userAgent             = "nlpinitiative-classifier/1.0"
)

var (
	ErrNotFound      = errors.New("artifact not found")
	ErrUnauthorized  = errors.New("hub rejected the request credentials")
	ErrInvalidRepoID = errors.New("invalid repository id")
)

var repoIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)?$`)

// Options configures a hub Client
type Options struct {
	BaseURL        string
	Token          string
	CacheDir       string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
}

// Client resolves model repository files into local paths, downloading them
// from the hub on first use.
type Client struct {
	baseURL    string
	token      string
	cacheDir   string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a hub client, filling unset options with defaults
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.CacheDir == "" {
		opts.CacheDir = "models"
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		token:      opts.Token,
		cacheDir:   opts.CacheDir,
		httpClient: &http.Client{Timeout: opts.Timeout},
		maxRetries: opts.MaxRetries,
		backoff:    opts.InitialBackoff,
	}
}

// WithToken returns a copy of the client that authenticates with token.
// An empty token keeps the client's existing one.
func (c *Client) WithToken(token string) *Client {
	if token == "" {
		return c
	}
	clone := *c
	clone.token = token
	return &clone
}

// HasToken reports whether requests carry a credential
func (c *Client) HasToken() bool {
	return c.token != ""
}

// ValidateRepoID checks that repo looks like "name" or "owner/name"
func ValidateRepoID(repo string) error {
	if !repoIDPattern.MatchString(repo) || strings.Contains(repo, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidRepoID, repo)
	}
	return nil
}

// IsLocal reports whether repo names a directory on disk
func IsLocal(repo string) bool {
	info, err := os.Stat(repo)
	return err == nil && info.IsDir()
}

// Fetch returns a local path for filename in repo at revision. Local
// directories are read in place; hub files are cached under the cache dir.
func (c *Client) Fetch(ctx context.Context, repo, revision, filename string) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}

	if IsLocal(repo) {
		path := filepath.Join(repo, filepath.FromSlash(filename))
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s in %s", ErrNotFound, filename, repo)
			}
			return "", fmt.Errorf("failed to access %s: %w", path, err)
		}
		return path, nil
	}

	if err := ValidateRepoID(repo); err != nil {
		return "", err
	}
	if revision == "" {
		revision = DefaultRevision
	}
	if strings.Contains(revision, "..") {
		return "", fmt.Errorf("invalid revision %q", revision)
	}

	target := c.cachePath(repo, revision, filename)
	if _, err := os.Stat(target); err == nil {
		slog.Debug("[HubClient] Using cached file",
			slog.String("repo", repo),
			slog.String("file", filename))
		return target, nil
	}

	start := time.Now()
	if err := c.download(ctx, c.fileURL(repo, revision, filename), target); err != nil {
		return "", fmt.Errorf("failed to fetch %s from %s: %w", filename, repo, err)
	}

	slog.Info("[HubClient] Downloaded file",
		slog.String("repo", repo),
		slog.String("file", filename),
		slog.Duration("elapsed", time.Since(start)))
	return target, nil
}

func (c *Client) fileURL(repo, revision, filename string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, repo, url.PathEscape(revision), filename)
}

func (c *Client) cachePath(repo, revision, filename string) string {
	return filepath.Join(c.cacheDir, filepath.FromSlash(repo),
		strings.ReplaceAll(revision, "/", "--"), filepath.FromSlash(filename))
}

func (c *Client) download(ctx context.Context, fileURL, target string) error {
	resp, err := c.getWithRetry(ctx, fileURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close download: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to move download into cache: %w", err)
	}
	return nil
}

// getWithRetry retries transport failures and 5xx responses with exponential
// backoff. Any response below 500 is returned to the caller as is.
func (c *Client) getWithRetry(ctx context.Context, fileURL string) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := c.backoff

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err = c.httpClient.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		slog.Warn("[HubClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		if resp != nil {
			_ = resp.Body.Close()
		}

		if attempt == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, err)
	}
	return nil, fmt.Errorf("request failed after %d attempts: status code %d", c.maxRetries, resp.StatusCode)
}

// checkStatus maps hub responses onto sentinel errors. The hub answers 401
// for repositories that do not exist, so its error code header wins.
func checkStatus(resp *http.Response) error {
	switch code := resp.Header.Get("X-Error-Code"); code {
	case "RepoNotFound", "EntryNotFound", "RevisionNotFound":
		return fmt.Errorf("%w: %s (status %d)", ErrNotFound, code, resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w (status %d)", ErrNotFound, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
}

func validateFilename(filename string) error {
	if filename == "" || strings.HasPrefix(filename, "/") || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid file name %q", filename)
	}
	return nil
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
