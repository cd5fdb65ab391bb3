package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tonimelisma/pickrelay/internal/auth"
)

const (
	sqlGetCredentials = `SELECT email, access_token, refresh_token, token_type, expiry
		FROM users WHERE user_id = ?`

	sqlUpsertCredentials = `INSERT INTO users
		(user_id, email, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		 email = excluded.email,
		 access_token = excluded.access_token,
		 refresh_token = excluded.refresh_token,
		 token_type = excluded.token_type,
		 expiry = excluded.expiry,
		 updated_at = excluded.updated_at`

	sqlDeleteCredentials = `DELETE FROM users WHERE user_id = ?` //nolint:gosec // G101: table name, not a credential
)

// Credentials returns the store's auth.CredentialStore view.
func (s *Store) Credentials() auth.CredentialStore {
	return credentialStore{s: s}
}

type credentialStore struct {
	s *Store
}

func (c credentialStore) Get(ctx context.Context, user string) (*auth.Credentials, error) {
	return c.s.GetCredentials(ctx, user)
}

func (c credentialStore) Put(ctx context.Context, user string, creds *auth.Credentials) error {
	return c.s.PutCredentials(ctx, user, creds)
}

// GetCredentials returns the user's credentials, or (nil, nil) if none.
func (s *Store) GetCredentials(ctx context.Context, user string) (*auth.Credentials, error) {
	var (
		creds  auth.Credentials
		expiry int64
	)

	err := s.db.QueryRowContext(ctx, sqlGetCredentials, user).Scan(
		&creds.Email, &creds.AccessToken, &creds.RefreshToken, &creds.TokenType, &expiry,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent credentials are not an error
	}

	if err != nil {
		return nil, fmt.Errorf("store: reading credentials for %s: %w", user, err)
	}

	creds.Expiry = timeOrZero(expiry)

	return &creds, nil
}

// PutCredentials replaces the user's credentials.
func (s *Store) PutCredentials(ctx context.Context, user string, creds *auth.Credentials) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlUpsertCredentials,
			user, creds.Email, creds.AccessToken, creds.RefreshToken, creds.TokenType,
			unixOrZero(creds.Expiry), s.nowFunc().Unix(),
		)
		if err != nil {
			return fmt.Errorf("store: writing credentials for %s: %w", user, err)
		}

		return nil
	})
}

// DeleteCredentials forgets the user's credentials. Reports whether any
// existed.
func (s *Store) DeleteCredentials(ctx context.Context, user string) (bool, error) {
	res, err := s.db.ExecContext(ctx, sqlDeleteCredentials, user)
	if err != nil {
		return false, fmt.Errorf("store: deleting credentials for %s: %w", user, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: deleting credentials for %s: %w", user, err)
	}

	return n > 0, nil
}
