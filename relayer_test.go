package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pickrelay/internal/auth"
	"github.com/tonimelisma/pickrelay/internal/config"
	"github.com/tonimelisma/pickrelay/internal/relay"
	"github.com/tonimelisma/pickrelay/internal/store"
	"github.com/tonimelisma/pickrelay/internal/telegram"
)

const relayTestBotToken = "1234567890:" + "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// fakePhotos serves a one-page picker selection of two stills.
type fakePhotos struct {
	mu      sync.Mutex
	auth    []string
	deleted []string
}

func (f *fakePhotos) handler(base func() string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]any{"id": "s1", "pickerUri": "https://photos.example/pick/s1"})
	})
	mux.HandleFunc("GET /sessions/s1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]any{"id": "s1", "mediaItemsSet": true})
	})
	mux.HandleFunc("DELETE /sessions/s1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, "s1")
		f.mu.Unlock()
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("GET /mediaItems", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]any{"mediaItems": []map[string]any{
			{"id": "a", "type": "PHOTO", "mediaFile": map[string]any{
				"baseUrl": base() + "/media/a", "mimeType": "image/jpeg", "filename": "a.jpg",
			}},
			{"id": "b", "type": "PHOTO", "mediaFile": map[string]any{
				"baseUrl": base() + "/media/b", "mimeType": "image/png", "filename": "b.png",
			}},
		}})
	})
	mux.HandleFunc("GET /media/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = w.Write([]byte("pixels"))
	})

	return mux
}

func (f *fakePhotos) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.auth = append(f.auth, r.Header.Get("Authorization"))
}

// fakeTelegram answers every Bot API method with a sent message and records
// the method names.
type fakeTelegram struct {
	mu      sync.Mutex
	methods []string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.methods = append(f.methods, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100,"type":"channel"}}}`))
}

func (f *fakeTelegram) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.methods...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// noRefresh fails the test if the guard tries to refresh a fresh token.
type noRefresh struct{ t *testing.T }

func (n noRefresh) Refresh(context.Context, string) (*auth.Credentials, error) {
	n.t.Error("unexpected token refresh")
	return nil, auth.ErrAuthRequired
}

func newTestRelayer(t *testing.T, photos *fakePhotos, tg *fakeTelegram) *pipelineRelayer {
	t.Helper()

	var photosURL string

	photoSrv := httptest.NewServer(photos.handler(func() string { return photosURL }))
	t.Cleanup(photoSrv.Close)
	photosURL = photoSrv.URL

	tgSrv := httptest.NewServer(tg)
	t.Cleanup(tgSrv.Close)

	cfg := config.DefaultConfig()
	cfg.Google.PickerURL = photoSrv.URL
	cfg.Transfer.UploadPause = "0s"
	cfg.Storage.DataDir = t.TempDir()

	logger := quietLogger()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg.StateDBPath(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Credentials().Put(ctx, cliUser, &auth.Credentials{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}))

	tgBot, err := telegram.NewBot(relayTestBotToken, tgSrv.URL, tgSrv.Client(), logger)
	require.NoError(t, err)

	holder, err := config.NewHolder(cfg, "")
	require.NoError(t, err)

	return &pipelineRelayer{
		holder: holder,
		guard:  auth.NewGuard(st.Credentials(), noRefresh{t}, auth.DefaultMargin, logger),
		bot:    tgBot,
		store:  st,
		logger: logger,
	}
}

func TestPipelineRelayer_RelaysSelectionIntoChannel(t *testing.T) {
	photos := &fakePhotos{}
	tg := &fakeTelegram{}
	r := newTestRelayer(t, photos, tg)

	res, err := r.run(t.Context(), cliUser, tu.ID(-100), relay.LogReporter{Logger: quietLogger()})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, []string{"sendPhoto", "sendPhoto"}, tg.sent())
	assert.Equal(t, []string{"s1"}, photos.deleted)

	for _, h := range photos.auth {
		assert.Equal(t, "Bearer at-1", h)
	}

	n, err := r.store.Ledger("-100").Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPipelineRelayer_RerunSkipsDelivered(t *testing.T) {
	photos := &fakePhotos{}
	tg := &fakeTelegram{}
	r := newTestRelayer(t, photos, tg)

	_, err := r.run(t.Context(), cliUser, tu.ID(-100), relay.LogReporter{Logger: quietLogger()})
	require.NoError(t, err)

	res, err := r.run(t.Context(), cliUser, tu.ID(-100), relay.LogReporter{Logger: quietLogger()})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, tg.sent(), 2)
}

func TestPipelineRelayer_UnknownUserNeedsAuth(t *testing.T) {
	r := newTestRelayer(t, &fakePhotos{}, &fakeTelegram{})

	err := r.Relay(t.Context(), "stranger", -100, relay.LogReporter{Logger: quietLogger()})
	require.ErrorIs(t, err, auth.ErrAuthRequired)
}
