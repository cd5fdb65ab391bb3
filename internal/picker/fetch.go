package picker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Download URL suffixes. "=dv" asks for a playable video rendition; "=d"
// returns the original bytes with location metadata stripped.
const (
	videoSuffix = "=dv"
	stillSuffix = "=d"
)

// Media describes bytes written by Fetch.
type Media struct {
	Filename string
	MimeType string
	// Size is the number of bytes written. With a download limit set, a
	// value above the limit means the payload was truncated.
	Size int64
}

// preferredExt covers common picker MIME types whose platform-registry
// extension is missing or unusual (".jpe", ".qt").
var preferredExt = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"image/heif":      ".heif",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/3gpp":      ".3gp",
	"video/webm":      ".webm",
}

// DownloadURL returns the URL for an item's bytes.
func DownloadURL(item Item) (string, error) {
	if item.BaseURL == "" {
		return "", ErrNoDownloadURL
	}

	if item.IsVideo || strings.HasPrefix(item.MimeType, "video/") {
		return item.BaseURL + videoSuffix, nil
	}

	return item.BaseURL + stillSuffix, nil
}

// Fetch streams an item's bytes into w and reports the resolved filename,
// MIME type, and size. The base URL is never logged: it grants access to
// the user's media.
func (c *Client) Fetch(ctx context.Context, item Item, w io.Writer) (*Media, error) {
	u, err := DownloadURL(item)
	if err != nil {
		c.logger.Warn("picked item has no download URL", slog.String("item_id", item.ID))
		return nil, err
	}

	resp, err := c.doAuthed(ctx, http.MethodGet, u, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("picker: download canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %w", ErrDownload, c.apiError(resp))
	}
	defer resp.Body.Close()

	mimeType := item.MimeType
	if mimeType == "" {
		mimeType = contentType(resp.Header.Get("Content-Type"))
	}

	var body io.Reader = resp.Body
	if c.downloadLimit > 0 {
		body = io.LimitReader(resp.Body, c.downloadLimit+1)
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrDownload, err)
	}

	m := &Media{
		Filename: ResolveFilename(item, mimeType),
		MimeType: mimeType,
		Size:     n,
	}

	c.logger.Debug("download complete",
		slog.String("item_id", item.ID),
		slog.String("mime_type", m.MimeType),
		slog.Int64("bytes", n),
	)

	return m, nil
}

// ResolveFilename picks the outbound file name: the item's own name, else
// its id, with an extension guessed from mimeType when the name has none.
func ResolveFilename(item Item, mimeType string) string {
	name := item.Filename
	if name == "" {
		name = item.ID
	}

	if filepath.Ext(name) != "" {
		return name
	}

	return name + extensionFor(mimeType)
}

func extensionFor(mimeType string) string {
	if mimeType == "" {
		return ""
	}

	if ext, ok := preferredExt[mimeType]; ok {
		return ext
	}

	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}

	return exts[0]
}

// contentType strips parameters from a Content-Type header value.
func contentType(header string) string {
	if header == "" {
		return ""
	}

	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}

	return strings.ToLower(mt)
}
