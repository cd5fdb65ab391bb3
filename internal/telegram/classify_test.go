package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	lim := DefaultLimits()

	tests := []struct {
		name string
		mime string
		size int64
		want Representation
	}{
		{"small jpeg", "image/jpeg", 3_000_000, Photo},
		{"image at threshold", "image/png", DefaultPhotoMaxBytes, Photo},
		{"image over threshold", "image/jpeg", DefaultPhotoMaxBytes + 1, Document},
		{"uppercase mime", "IMAGE/HEIC", 1024, Photo},
		{"video", "video/mp4", 500_000_000, Video},
		{"video at file ceiling", "video/quicktime", DefaultFileMaxBytes, Video},
		{"pdf", "application/pdf", 10, Document},
		{"unknown mime", "", 10, Document},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Classify(tt.mime, tt.size, lim)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_TooLarge(t *testing.T) {
	t.Parallel()

	for _, mime := range []string{"image/jpeg", "video/mp4", "application/zip"} {
		_, err := Classify(mime, DefaultFileMaxBytes+1, DefaultLimits())
		require.ErrorIs(t, err, ErrPayloadTooLarge, mime)
	}
}

func TestRepresentation_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "photo", Photo.String())
	assert.Equal(t, "video", Video.String())
	assert.Equal(t, "document", Document.String())
	assert.Equal(t, "Representation(0)", Representation(0).String())
}
