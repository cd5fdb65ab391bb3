package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
)

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// maxUserinfoBytes caps the userinfo response body.
const maxUserinfoBytes = 64 << 10

// Settings describes the OAuth client registration and Google endpoints.
type Settings struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserinfoURL  string
	Scopes       []string
	RedirectURL  string
}

// OAuth performs the Google authorization-code exchange, token refresh, and
// the optional userinfo lookup. It implements Refresher.
type OAuth struct {
	cfg         *oauth2.Config
	userinfoURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewOAuth creates an OAuth client. httpClient may be nil to use the
// oauth2 library's default client.
func NewOAuth(s Settings, httpClient *http.Client, logger *slog.Logger) *OAuth {
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			Scopes:       append([]string(nil), s.Scopes...),
			RedirectURL:  s.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   s.AuthURL,
				TokenURL:  s.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userinfoURL: s.UserinfoURL,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// WithRedirectURL returns a copy of o that redirects to u. The loopback
// login only learns its port after binding.
func (o *OAuth) WithRedirectURL(u string) *OAuth {
	cfg := *o.cfg
	cfg.RedirectURL = u
	cp := *o
	cp.cfg = &cfg

	return &cp
}

// AuthCodeURL builds the consent URL. Offline access with forced consent
// makes Google issue a refresh token even for a returning user.
func (o *OAuth) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	all := append([]oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce}, opts...)

	return o.cfg.AuthCodeURL(state, all...)
}

// Exchange trades an authorization code for credentials.
func (o *OAuth) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*Credentials, error) {
	tok, err := o.cfg.Exchange(o.clientContext(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: token exchange failed: %w", err)
	}

	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}

	return fromOAuth2(tok), nil
}

// Refresh exchanges refreshToken for a new token set. A grant the provider
// rejects outright (revoked or expired) maps to ErrAuthRequired.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	// An empty access token is never valid, so the source always refreshes.
	src := o.cfg.TokenSource(o.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: refresh token rejected: %s", ErrAuthRequired, re.ErrorDescription)
		}

		return nil, fmt.Errorf("auth: refresh failed: %w", err)
	}

	creds := fromOAuth2(tok)

	// The library copies the old refresh token into the result when the
	// provider omits one. Report what the provider actually sent so the
	// guard owns the preservation rule.
	if rt, ok := tok.Extra("refresh_token").(string); !ok || rt == "" {
		creds.RefreshToken = ""
	}

	return creds, nil
}

// UserEmail looks up the account email for accessToken via the OpenID
// userinfo endpoint.
func (o *OAuth) UserEmail(ctx context.Context, accessToken string) (string, error) {
	if o.userinfoURL == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.userinfoURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("auth: creating userinfo request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	client := o.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserinfoBytes))
	if err != nil {
		return "", fmt.Errorf("auth: reading userinfo: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth: userinfo returned HTTP %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("auth: decoding userinfo: %w", err)
	}

	return info.Email, nil
}

// LookupEmail is UserEmail with failures logged and swallowed. The email is
// informational only.
func (o *OAuth) LookupEmail(ctx context.Context, accessToken string) string {
	email, err := o.UserEmail(ctx, accessToken)
	if err != nil {
		o.logger.Warn("could not fetch account email", slog.String("error", err.Error()))
		return ""
	}

	return email
}

func (o *OAuth) clientContext(ctx context.Context) context.Context {
	if o.httpClient == nil {
		return ctx
	}

	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

// NewState produces a cryptographically random hex string for the OAuth2
// state parameter.
func NewState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating state token: %w", err)
	}

	return hex.EncodeToString(b), nil
}
