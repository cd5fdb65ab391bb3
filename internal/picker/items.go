package picker

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// itemsPageSize is the largest page the API serves.
	itemsPageSize = 100

	// transientDelay separates retries of the 400/412 finalization race.
	transientDelay = 3 * time.Second
)

// Items lazily enumerates the items picked in a session, page by page.
// A 400 or 412 response means the session is still being finalized (this
// can happen even after MediaItemsSet was observed); the same page is
// re-requested after a fixed delay and the condition is never yielded.
// Any other failure is yielded once and ends the sequence. The sequence is
// forward-only: ranging again re-issues every page. Items are not
// deduplicated across pages.
func (c *Client) Items(ctx context.Context, sessionID string) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		pageToken := ""

		for page := 1; ; page++ {
			resp, err := c.listPage(ctx, sessionID, pageToken)
			if err != nil {
				yield(Item{}, err)
				return
			}

			c.logger.Debug("fetched picked items page",
				slog.String("session_id", sessionID),
				slog.Int("page", page),
				slog.Int("count", len(resp.MediaItems)),
			)

			for i := range resp.MediaItems {
				if !yield(resp.MediaItems[i].toItem(), nil) {
					return
				}
			}

			if resp.NextPageToken == "" {
				return
			}

			pageToken = resp.NextPageToken
		}
	}
}

// listPage fetches one page, absorbing the finalization race.
func (c *Client) listPage(ctx context.Context, sessionID, pageToken string) (*listMediaItemsResponse, error) {
	q := url.Values{}
	q.Set("sessionId", sessionID)
	q.Set("pageSize", strconv.Itoa(itemsPageSize))

	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	path := "/mediaItems?" + q.Encode()

	for {
		var resp listMediaItemsResponse

		err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
		if err == nil {
			return &resp, nil
		}

		if !isTransient(err) {
			return nil, fmt.Errorf("picker: listing items: %w", err)
		}

		c.logger.Info("session not finalized yet, retrying page",
			slog.String("session_id", sessionID),
			slog.String("error", ErrTransientState.Error()),
			slog.Duration("delay", transientDelay),
		)

		if sleepErr := c.sleepFunc(ctx, transientDelay); sleepErr != nil {
			return nil, fmt.Errorf("picker: listing items: %w: %w", ErrTransientState, sleepErr)
		}
	}
}
