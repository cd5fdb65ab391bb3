package picker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Poll interval bounds. The server suggests an interval; missing or
// unparsable values use the default, and nothing polls faster than the floor.
const (
	DefaultPollInterval = 3 * time.Second
	MinPollInterval     = 2 * time.Second
)

// Session is one picking session. MediaItemsSet flips to true server-side
// once the user finishes selecting.
type Session struct {
	ID            string
	PickerURI     string
	MediaItemsSet bool
	PollInterval  time.Duration
	// Timeout is the server's remaining lifetime for the session, zero if
	// the server did not say.
	Timeout time.Duration
}

// sessionResponse is the wire shape of a session.
type sessionResponse struct {
	ID            string `json:"id"`
	PickerURI     string `json:"pickerUri"`
	MediaItemsSet bool   `json:"mediaItemsSet"`
	PollingConfig struct {
		PollInterval json.RawMessage `json:"pollInterval"`
		TimeoutIn    json.RawMessage `json:"timeoutIn"`
	} `json:"pollingConfig"`
}

func (r *sessionResponse) toSession() *Session {
	interval := parseProtoDuration(r.PollingConfig.PollInterval)
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if interval < MinPollInterval {
		interval = MinPollInterval
	}

	return &Session{
		ID:            r.ID,
		PickerURI:     r.PickerURI,
		MediaItemsSet: r.MediaItemsSet,
		PollInterval:  interval,
		Timeout:       parseProtoDuration(r.PollingConfig.TimeoutIn),
	}
}

// parseProtoDuration accepts the JSON forms the API uses for durations:
// a string like "5s" or "1.5s", or a bare number of seconds.
func parseProtoDuration(raw json.RawMessage) time.Duration {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}

	return 0
}

// CreateSession starts a new picking session. Any failure is reported as
// ErrSessionCreate wrapping the underlying cause.
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	var resp sessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", strings.NewReader("{}"), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}

	if resp.ID == "" || resp.PickerURI == "" {
		return nil, fmt.Errorf("%w: response missing id or pickerUri", ErrSessionCreate)
	}

	s := resp.toSession()

	c.logger.Info("picker session created",
		slog.String("session_id", s.ID),
		slog.Duration("poll_interval", s.PollInterval),
		slog.Duration("timeout", s.Timeout),
	)

	return s, nil
}

// GetSession fetches the current state of a session.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var resp sessionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("picker: getting session %s: %w", id, err)
	}

	return resp.toSession(), nil
}

// WaitUntilReady polls the session until the user has finished selecting.
// Between polls it sleeps for the interval the latest response suggested.
// The wait ends with ErrSelectionTimeout after maxWait, or earlier when the
// server's own session timeout is shorter. Cancellation of ctx ends it
// immediately. maxWait <= 0 means only the server timeout applies.
func (c *Client) WaitUntilReady(ctx context.Context, s *Session, maxWait time.Duration) (*Session, error) {
	bound := maxWait
	if s.Timeout > 0 && (bound <= 0 || s.Timeout < bound) {
		bound = s.Timeout
	}

	start := c.nowFunc()

	for polls := 1; ; polls++ {
		cur, err := c.GetSession(ctx, s.ID)
		if err != nil {
			return nil, err
		}

		if cur.MediaItemsSet {
			c.logger.Info("selection finished",
				slog.String("session_id", s.ID),
				slog.Int("polls", polls),
			)

			return cur, nil
		}

		interval := cur.PollInterval

		if bound > 0 && c.nowFunc().Sub(start)+interval > bound {
			return nil, fmt.Errorf("%w after %s", ErrSelectionTimeout, bound)
		}

		c.logger.Debug("selection pending",
			slog.String("session_id", s.ID),
			slog.Duration("next_poll", interval),
		)

		if err := c.sleepFunc(ctx, interval); err != nil {
			return nil, fmt.Errorf("picker: waiting for selection: %w", err)
		}
	}
}

// DeleteSession removes the session server-side. Callers treat it as
// best-effort cleanup.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}

		return fmt.Errorf("picker: deleting session %s: %w", id, err)
	}

	c.logger.Debug("picker session deleted", slog.String("session_id", id))

	return nil
}
