package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLoopbackCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
		wantErr    string
	}{
		{"success", "state=s&code=c", http.StatusOK, "c", ""},
		{"state mismatch", "state=x&code=c", http.StatusBadRequest, "", "state mismatch"},
		{"provider error", "state=s&error=access_denied", http.StatusBadRequest, "", "access_denied"},
		{"missing code", "state=s", http.StatusBadRequest, "", "missing authorization code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resultCh := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, http.NoBody)

			handleLoopbackCallback(rec, req, "s", resultCh)

			assert.Equal(t, tt.wantStatus, rec.Code)

			res := <-resultCh
			if tt.wantErr != "" {
				require.Error(t, res.err)
				assert.Contains(t, res.err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, res.err)
			assert.Equal(t, tt.wantCode, res.code)
		})
	}
}

func TestLoginWithBrowser_EndToEnd(t *testing.T) {
	t.Parallel()

	verifierCh := make(chan string, 1)

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			assert.NoError(t, r.ParseForm())
			verifierCh <- r.PostForm.Get("code_verifier")
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": "at", "refresh_token": "rt", "token_type": "Bearer", "expires_in": 3600,
			})
		case "/userinfo":
			writeJSON(w, http.StatusOK, map[string]any{"email": "bob@example.com"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(provider.Close)

	o := NewOAuth(Settings{
		ClientID:    "client",
		AuthURL:     provider.URL + "/auth",
		TokenURL:    provider.URL + "/token",
		UserinfoURL: provider.URL + "/userinfo",
	}, nil, slog.Default())

	// The "browser" follows the redirect immediately.
	openURL := func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}

		q := u.Query()
		assert.Equal(t, "S256", q.Get("code_challenge_method"))

		go func() {
			resp, err := http.Get(fmt.Sprintf("%s?state=%s&code=abc", q.Get("redirect_uri"), q.Get("state")))
			if err == nil {
				resp.Body.Close()
			}
		}()

		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	creds, err := LoginWithBrowser(ctx, o, openURL, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "at", creds.AccessToken)
	assert.Equal(t, "rt", creds.RefreshToken)
	assert.Equal(t, "bob@example.com", creds.Email)
	assert.NotEmpty(t, <-verifierCh)
}
