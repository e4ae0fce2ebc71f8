// Package api is the client of the file-list backend: paginated file
// listing, download control and the latency probe.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/telegram-files/tfsync/internal/config"
	"github.com/telegram-files/tfsync/internal/constants"
	"github.com/telegram-files/tfsync/internal/http"
	"github.com/telegram-files/tfsync/internal/logging"
	"github.com/telegram-files/tfsync/internal/metrics"
	"github.com/telegram-files/tfsync/internal/models"
	"github.com/telegram-files/tfsync/internal/ratelimit"
	"github.com/telegram-files/tfsync/internal/version"
)

// Client represents the file-list backend client
type Client struct {
	httpClient  *nethttp.Client // retrying, for list and control calls
	probeClient *nethttp.Client // single attempt; callers apply their own retry policy
	baseURL     string
	accountID   string
	registry    *ratelimit.Registry
	limiters    map[ratelimit.Scope]*ratelimit.RateLimiter
	logger      *logging.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is empty")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Component("api")

	httpClient, err := http.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	registry := ratelimit.NewRegistry()
	limiters := registry.NewLimiters()

	// Wrap with retry logic
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.RequestRetries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.Logger = logging.NewRetryLogger(logger)
	// Hand the last response back so a final 5xx surfaces as a StatusError
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.CheckRetry = func(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
		// 429 feeds the limiter cooldown so the next attempt waits for it
		if resp != nil && resp.StatusCode == nethttp.StatusTooManyRequests {
			scope := registry.ResolveScope(resp.Request.Method, resp.Request.URL.Path)
			limiters[scope].SetCooldown(retryAfter(resp))
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return &Client{
		httpClient:  retryClient.StandardClient(),
		probeClient: httpClient,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		accountID:   cfg.AccountID,
		registry:    registry,
		limiters:    limiters,
		logger:      logger,
	}, nil
}

// AccountID returns the account the client was configured for.
func (c *Client) AccountID() string {
	return c.accountID
}

// doRequest performs an HTTP request with rate limiting and returns the
// response for a 2xx status. Other statuses are returned as *http.StatusError.
func (c *Client) doRequest(ctx context.Context, client *nethttp.Client, method, path string, body interface{}) (*nethttp.Response, error) {
	scope := c.registry.ResolveScope(method, path)
	if err := c.limiters[scope].Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(string(scope), "error").Inc()
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	metrics.APIRequests.WithLabelValues(string(scope), strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		metrics.APIThrottled.WithLabelValues(string(scope)).Inc()
		c.logger.Warn().
			Str("scope", c.registry.ScopeDisplayString(scope)).
			Str("retry_after", resp.Header.Get("Retry-After")).
			Msgf("throttled: %s %s", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &http.StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}

// ListFiles fetches one page of the chat's files. An empty cursor requests
// the first page.
func (c *Client) ListFiles(ctx context.Context, chatID int64, filter models.FilterSpec, cursor string) (models.Page, error) {
	q := url.Values{}
	filter = filter.Normalize()
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	q.Set("type", filter.Type)
	q.Set("status", filter.Status)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := fmt.Sprintf("/telegram/%s/chat/%d/files?%s", url.PathEscape(c.accountID), chatID, q.Encode())

	resp, err := c.doRequest(ctx, c.httpClient, nethttp.MethodGet, path, nil)
	if err != nil {
		return models.Page{}, fmt.Errorf("list files: %w", err)
	}
	defer resp.Body.Close()

	var page models.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return models.Page{}, fmt.Errorf("failed to decode file page: %w", err)
	}
	return page, nil
}

// StartDownload asks the backend to start downloading one file.
func (c *Client) StartDownload(ctx context.Context, chatID, messageID, fileID int64) error {
	return c.post(ctx, "/file/start-download", models.StartDownloadRequest{
		ChatID:    chatID,
		MessageID: messageID,
		FileID:    fileID,
	})
}

// StartDownloadMultiple asks the backend to start downloading several files
// of one chat.
func (c *Client) StartDownloadMultiple(ctx context.Context, chatID int64, files []models.DownloadRef) error {
	if len(files) == 0 {
		return nil
	}
	return c.post(ctx, "/file/start-download-multiple", models.StartDownloadMultipleRequest{
		ChatID: chatID,
		Files:  files,
	})
}

// CancelDownload cancels a file's download.
func (c *Client) CancelDownload(ctx context.Context, fileID int64) error {
	return c.post(ctx, "/file/cancel-download", models.CancelDownloadRequest{FileID: fileID})
}

// TogglePauseDownload pauses or resumes a file's download.
func (c *Client) TogglePauseDownload(ctx context.Context, fileID int64, paused bool) error {
	return c.post(ctx, "/file/toggle-pause-download", models.TogglePauseRequest{FileID: fileID, IsPaused: paused})
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	resp, err := c.doRequest(ctx, c.httpClient, nethttp.MethodPost, path, body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotAccepted, strings.TrimPrefix(path, "/file/"), err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// Ping runs one latency probe attempt and returns the reported latency.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ProbeTimeout)
	defer cancel()

	path := fmt.Sprintf("/telegram/%s/ping", url.PathEscape(c.accountID))
	resp, err := c.doRequest(ctx, c.probeClient, nethttp.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()

	var pr models.PingResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, fmt.Errorf("failed to decode ping response: %w", err)
	}
	if pr.Ping < 0 {
		return 0, errors.New("ping: negative latency")
	}
	metrics.ProbeLatency.Observe(pr.Ping)
	return time.Duration(pr.Ping * float64(time.Second)), nil
}

// retryAfter parses a Retry-After header in seconds.
func retryAfter(resp *nethttp.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return ratelimit.DefaultCooldownSeconds * time.Second
}
