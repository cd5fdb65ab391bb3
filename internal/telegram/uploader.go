package telegram

import (
	"context"
	"io"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// maxCaptionRunes is the Bot API caption length limit.
const maxCaptionRunes = 1024

// Payload is one file to post.
type Payload struct {
	Filename string
	MimeType string
	Size     int64
	Body     io.Reader
}

// Uploader posts payloads to a chat using the representation Classify
// picks.
type Uploader struct {
	bot      *telego.Bot
	limits   Limits
	captions bool
	logger   *slog.Logger
}

// NewUploader creates an Uploader. With captions set, each post carries the
// file name as its caption.
func NewUploader(bot *telego.Bot, limits Limits, captions bool, logger *slog.Logger) *Uploader {
	return &Uploader{bot: bot, limits: limits, captions: captions, logger: logger}
}

// Send classifies p and uploads it to chat. An oversize payload fails with
// ErrPayloadTooLarge without touching the network. A rejected upload fails
// with *DeliveryError. Either way the failure concerns this payload only.
func (u *Uploader) Send(ctx context.Context, chat telego.ChatID, p Payload) (Representation, error) {
	rep, err := Classify(p.MimeType, p.Size, u.limits)
	if err != nil {
		return 0, err
	}

	file := tu.File(tu.NameReader(p.Body, p.Filename))
	caption := u.caption(p.Filename)

	switch rep {
	case Photo:
		_, err = u.bot.SendPhoto(ctx, &telego.SendPhotoParams{ChatID: chat, Photo: file, Caption: caption})
	case Video:
		_, err = u.bot.SendVideo(ctx, &telego.SendVideoParams{
			ChatID: chat, Video: file, Caption: caption, SupportsStreaming: true,
		})
	default:
		_, err = u.bot.SendDocument(ctx, &telego.SendDocumentParams{ChatID: chat, Document: file, Caption: caption})
	}

	if err != nil {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}

		return rep, deliveryError(err)
	}

	u.logger.Debug("payload delivered",
		slog.String("chat", chat.String()),
		slog.String("as", rep.String()),
		slog.Int64("bytes", p.Size),
	)

	return rep, nil
}

func (u *Uploader) caption(filename string) string {
	if !u.captions {
		return ""
	}

	r := []rune(filename)
	if len(r) > maxCaptionRunes {
		r = r[:maxCaptionRunes]
	}

	return string(r)
}
