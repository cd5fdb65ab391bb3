package picker

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadURL(t *testing.T) {
	t.Parallel()

	u, err := DownloadURL(Item{BaseURL: "https://lh3/x", MimeType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "https://lh3/x=d", u)

	u, err = DownloadURL(Item{BaseURL: "https://lh3/x", MimeType: "video/mp4"})
	require.NoError(t, err)
	assert.Equal(t, "https://lh3/x=dv", u)

	// A VIDEO-typed item without a video MIME type still gets the playable
	// rendition.
	u, err = DownloadURL(Item{BaseURL: "https://lh3/x", IsVideo: true})
	require.NoError(t, err)
	assert.Equal(t, "https://lh3/x=dv", u)

	_, err = DownloadURL(Item{ID: "b", MimeType: "video/mp4"})
	require.ErrorIs(t, err, ErrNoDownloadURL)
}

func mediaServer(t *testing.T, contentType, body string) (*httptest.Server, *atomic.Value) {
	t.Helper()

	var lastPath atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastPath.Store(r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}

		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, &lastPath
}

func TestFetch_Photo(t *testing.T) {
	t.Parallel()

	srv, lastPath := mediaServer(t, "image/jpeg", "jpegbytes")
	c, _ := newTestClient(t, srv)

	var buf bytes.Buffer

	m, err := c.Fetch(t.Context(), Item{ID: "a", Filename: "IMG_1.jpg", MimeType: "image/jpeg", BaseURL: srv.URL + "/media/a"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "/media/a=d", lastPath.Load())
	assert.Equal(t, "jpegbytes", buf.String())
	assert.Equal(t, &Media{Filename: "IMG_1.jpg", MimeType: "image/jpeg", Size: 9}, m)
}

func TestFetch_VideoUsesPlayableRendition(t *testing.T) {
	t.Parallel()

	srv, lastPath := mediaServer(t, "video/mp4", "mp4")
	c, _ := newTestClient(t, srv)

	m, err := c.Fetch(t.Context(), Item{ID: "v", MimeType: "video/mp4", BaseURL: srv.URL + "/media/v"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "/media/v=dv", lastPath.Load())
	assert.Equal(t, "v.mp4", m.Filename)
}

func TestFetch_MimeFromContentType(t *testing.T) {
	t.Parallel()

	srv, _ := mediaServer(t, "image/png; charset=binary", "png")
	c, _ := newTestClient(t, srv)

	m, err := c.Fetch(t.Context(), Item{ID: "p", BaseURL: srv.URL + "/media/p"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.MimeType)
	assert.Equal(t, "p.png", m.Filename)
}

func TestFetch_NoDownloadURLMakesNoRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)

	_, err := c.Fetch(t.Context(), Item{ID: "b", MimeType: "video/mp4"}, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrNoDownloadURL)
}

func TestFetch_Non2xxIsDownloadError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)

	_, err := c.Fetch(t.Context(), Item{ID: "x", BaseURL: srv.URL + "/m"}, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrDownload)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestFetch_DownloadLimit(t *testing.T) {
	t.Parallel()

	srv, _ := mediaServer(t, "application/octet-stream", strings.Repeat("x", 100))

	c := NewClient(srv.URL, srv.Client(), staticToken("test-token"), slog.Default())
	c.SetDownloadLimit(10)

	var buf bytes.Buffer

	m, err := c.Fetch(t.Context(), Item{ID: "big", BaseURL: srv.URL + "/m"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(11), m.Size)
	assert.Equal(t, 11, buf.Len())
}

func TestResolveFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		item Item
		mime string
		want string
	}{
		{Item{ID: "a", Filename: "IMG_1.HEIC"}, "image/heic", "IMG_1.HEIC"},
		{Item{ID: "a", Filename: "holiday"}, "image/jpeg", "holiday.jpg"},
		{Item{ID: "abc"}, "video/quicktime", "abc.mov"},
		{Item{ID: "abc"}, "", "abc"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveFilename(tt.item, tt.mime))
	}
}
