package picker

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Item is the canonical picked media item. Every field lookup that depends
// on the wire schema happens in toItem; the rest of the program only sees
// this type.
type Item struct {
	ID         string
	Filename   string
	MimeType   string
	BaseURL    string
	IsVideo    bool
	CreateTime time.Time
}

// mediaItemResponse mirrors a picked media item. The API has carried the
// file fields both at top level and nested under mediaFile.
type mediaItemResponse struct {
	ID         string         `json:"id"`
	CreateTime string         `json:"createTime"`
	Type       string         `json:"type"`
	Filename   string         `json:"filename"`
	MimeType   string         `json:"mimeType"`
	BaseURL    string         `json:"baseUrl"`
	MediaFile  *mediaFileJSON `json:"mediaFile"`
}

type mediaFileJSON struct {
	BaseURL  string `json:"baseUrl"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
}

type listMediaItemsResponse struct {
	MediaItems    []mediaItemResponse `json:"mediaItems"`
	NextPageToken string              `json:"nextPageToken"`
}

// toItem normalizes a wire item. The nested media file wins for the URL
// and MIME type; the top-level filename wins over the nested one.
func (m *mediaItemResponse) toItem() Item {
	var mf mediaFileJSON
	if m.MediaFile != nil {
		mf = *m.MediaFile
	}

	item := Item{
		ID:       m.ID,
		BaseURL:  firstNonEmpty(mf.BaseURL, m.BaseURL),
		MimeType: strings.ToLower(firstNonEmpty(mf.MimeType, m.MimeType)),
		Filename: norm.NFC.String(firstNonEmpty(m.Filename, mf.Filename)),
	}

	item.IsVideo = strings.EqualFold(m.Type, "VIDEO") || strings.HasPrefix(item.MimeType, "video/")

	if t, err := time.Parse(time.RFC3339Nano, m.CreateTime); err == nil {
		item.CreateTime = t
	}

	return item
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
