// Package telegram delivers media and notices through the Telegram Bot API.
// It decides how each payload is represented (photo, video, or document),
// uploads it, and reports failures as typed errors.
package telegram

import (
	"errors"
	"fmt"
	"strings"
)

// Bot API ceilings. Photos above the photo limit are recompressed by
// Telegram, so larger images go out as documents to keep their fidelity.
const (
	DefaultPhotoMaxBytes int64 = 10 << 20
	DefaultFileMaxBytes  int64 = 2 << 30
)

// ErrPayloadTooLarge means the payload exceeds the largest upload the Bot
// API accepts. It is raised before any network call.
var ErrPayloadTooLarge = errors.New("telegram: payload too large")

// Representation is how a payload is posted.
type Representation int

// Representations, in the order Classify considers them.
const (
	Photo Representation = iota + 1
	Video
	Document
)

func (r Representation) String() string {
	switch r {
	case Photo:
		return "photo"
	case Video:
		return "video"
	case Document:
		return "document"
	default:
		return fmt.Sprintf("Representation(%d)", int(r))
	}
}

// Limits holds the size thresholds used by Classify.
type Limits struct {
	PhotoMaxBytes int64
	FileMaxBytes  int64
}

// DefaultLimits returns the Bot API's documented ceilings.
func DefaultLimits() Limits {
	return Limits{PhotoMaxBytes: DefaultPhotoMaxBytes, FileMaxBytes: DefaultFileMaxBytes}
}

// Classify picks the representation for a payload. Rules, in order: over
// the file ceiling fails; a small enough image is a photo; any video is a
// video; everything else is a document.
func Classify(mimeType string, size int64, lim Limits) (Representation, error) {
	mimeType = strings.ToLower(mimeType)

	switch {
	case size > lim.FileMaxBytes:
		return 0, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, size, lim.FileMaxBytes)
	case strings.HasPrefix(mimeType, "image/") && size <= lim.PhotoMaxBytes:
		return Photo, nil
	case strings.HasPrefix(mimeType, "video/"):
		return Video, nil
	default:
		return Document, nil
	}
}
