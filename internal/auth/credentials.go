// Package auth owns Google OAuth credentials: the refresh-on-demand Token
// Guard, the OAuth client used for code exchange and refresh, the loopback
// browser login for the CLI, and a file-backed credential store.
package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ErrAuthRequired means no usable credential exists for the user. The
// interactive authorization flow must be run again.
var ErrAuthRequired = errors.New("auth: authorization required")

// Credentials is one user's OAuth token set plus the account it belongs to.
// A zero Expiry is treated as already expired.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Email        string
}

// CredentialStore persists credentials per user. Get returns (nil, nil) when
// the user has none. Put replaces the stored record atomically.
type CredentialStore interface {
	Get(ctx context.Context, user string) (*Credentials, error)
	Put(ctx context.Context, user string, creds *Credentials) error
}

// ValidAt reports whether the access token can be used at now with at least
// margin to spare.
func (c *Credentials) ValidAt(now time.Time, margin time.Duration) bool {
	return c.AccessToken != "" && now.Before(c.Expiry.Add(-margin))
}

// fromOAuth2 converts a token returned by the oauth2 library.
func fromOAuth2(tok *oauth2.Token) *Credentials {
	return &Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
}

// oauth2Token converts credentials into the oauth2 library's form.
func (c *Credentials) oauth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}
