package picker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	userAgent = "pickrelay/0.1"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer per
// "accept interfaces, return structs". auth.UserTokenSource implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the Picker API. It never retries failed requests; the
// only waits it performs are the documented readiness poll and the
// enumeration race delay.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger

	// downloadLimit stops Fetch after this many bytes plus one. Zero means
	// unlimited.
	downloadLimit int64

	// sleepFunc waits between polls. Tests override it to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// nowFunc measures the readiness wait. Tests override it.
	nowFunc func() time.Time
}

// NewClient creates a Picker API client.
// baseURL is typically "https://photospicker.googleapis.com/v1".
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		sleepFunc:  timeSleep,
		nowFunc:    time.Now,
	}
}

// SetDownloadLimit bounds how many bytes Fetch copies. Fetch reads at most
// n+1 bytes so the caller can tell an oversize payload from one that fits.
func (c *Client) SetDownloadLimit(n int64) {
	c.downloadLimit = n
}

// Do executes one authenticated request against the API. The path is
// appended to the base URL. Non-2xx responses are returned as *APIError
// with the body drained and closed. The caller closes the body on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	resp, err := c.doAuthed(ctx, method, c.baseURL+path, body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("picker: request canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("picker: %s %s: %w", method, pathOnly(path), err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", pathOnly(path)),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	return nil, c.apiError(resp)
}

// doJSON runs Do and decodes a JSON response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("picker: decoding %s response: %w", pathOnly(path), err)
	}

	return nil
}

// doAuthed executes a single request with the bearer header attached.
func (c *Client) doAuthed(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// apiError drains and closes resp and builds the typed error.
func (c *Client) apiError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(errBody)),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// pathOnly strips the query string so page tokens stay out of logs.
func pathOnly(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}

	return path
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
