package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultMargin is how long before expiry a token is considered stale.
const DefaultMargin = 60 * time.Second

// Refresher exchanges a refresh token for a new token set. The returned
// RefreshToken may be empty when the provider does not rotate it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
}

// Guard hands out access tokens that are valid for at least the configured
// margin, refreshing and persisting them on demand. Refreshes for the same
// user are serialized so concurrent runs never race on a rotating refresh
// token.
type Guard struct {
	store     CredentialStore
	refresher Refresher
	margin    time.Duration
	logger    *slog.Logger

	// nowFunc is injectable for tests.
	nowFunc func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGuard creates a Guard. A negative margin is treated as zero.
func NewGuard(store CredentialStore, refresher Refresher, margin time.Duration, logger *slog.Logger) *Guard {
	if margin < 0 {
		margin = 0
	}

	return &Guard{
		store:     store,
		refresher: refresher,
		margin:    margin,
		logger:    logger,
		nowFunc:   time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// EnsureValid returns a usable access token for user. A stored token that is
// still fresh is returned unchanged. Otherwise the refresh token is exchanged
// and the result persisted before the new access token is returned. A user
// without credentials or without a refresh token gets ErrAuthRequired.
func (g *Guard) EnsureValid(ctx context.Context, user string) (string, error) {
	lock := g.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	creds, err := g.store.Get(ctx, user)
	if err != nil {
		return "", fmt.Errorf("auth: loading credentials for %s: %w", user, err)
	}

	if creds == nil {
		return "", fmt.Errorf("%w: no credentials stored for %s", ErrAuthRequired, user)
	}

	if creds.ValidAt(g.nowFunc(), g.margin) {
		return creds.AccessToken, nil
	}

	if creds.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token for %s", ErrAuthRequired, user)
	}

	g.logger.Info("refreshing access token",
		slog.String("user", user),
		slog.Time("expiry", creds.Expiry),
	)

	fresh, err := g.refresher.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("auth: refreshing token for %s: %w", user, err)
	}

	updated := &Credentials{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		TokenType:    fresh.TokenType,
		Expiry:       fresh.Expiry,
		Email:        creds.Email,
	}

	// Google does not re-issue the refresh token on every exchange.
	if updated.RefreshToken == "" {
		updated.RefreshToken = creds.RefreshToken
	}

	if updated.TokenType == "" {
		updated.TokenType = creds.TokenType
	}

	if err := g.store.Put(ctx, user, updated); err != nil {
		return "", fmt.Errorf("auth: persisting refreshed token for %s: %w", user, err)
	}

	g.logger.Info("access token refreshed",
		slog.String("user", user),
		slog.Time("new_expiry", updated.Expiry),
	)

	return updated.AccessToken, nil
}

// TokenSource binds the guard to one user.
func (g *Guard) TokenSource(user string) *UserTokenSource {
	return &UserTokenSource{guard: g, user: user}
}

func (g *Guard) userLock(user string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.locks[user]
	if !ok {
		l = &sync.Mutex{}
		g.locks[user] = l
	}

	return l
}

// UserTokenSource yields a fresh access token for one user on every call.
type UserTokenSource struct {
	guard *Guard
	user  string
}

// Token returns a valid access token, refreshing if needed.
func (s *UserTokenSource) Token(ctx context.Context) (string, error) {
	return s.guard.EnsureValid(ctx, s.user)
}

// User returns the user the source is bound to.
func (s *UserTokenSource) User() string {
	return s.user
}
